package localstore

import (
	"fmt"
	"strings"
)

// NodeType discriminates the three pipeline vertex kinds (spec §3).
type NodeType int

const (
	NodeTypeSource NodeType = iota
	NodeTypeShaper
	NodeTypeTransformation
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeSource:
		return "source"
	case NodeTypeShaper:
		return "shaper"
	case NodeTypeTransformation:
		return "transformation"
	default:
		return "unknown"
	}
}

func parseNodeType(s string) (NodeType, error) {
	switch s {
	case "source":
		return NodeTypeSource, nil
	case "shaper":
		return NodeTypeShaper, nil
	case "transformation":
		return NodeTypeTransformation, nil
	default:
		return 0, fmt.Errorf("unknown node type %q", s)
	}
}

// typedNameSeparator separates a vertex's type from its untyped name, e.g.
// "transformation:my-transformation".
const typedNameSeparator = ":"

// connectionIDSeparator separates a connection id's tail and head typed
// names. It is reserved: a vertex name may not contain it (spec §3).
const connectionIDSeparator = "→" // →

// BuildTypedName builds a vertex's typed name from its type and untyped name.
func BuildTypedName(t NodeType, name string) string {
	return t.String() + typedNameSeparator + name
}

// ParseTypedName splits a typed name back into its node type and untyped
// name.
func ParseTypedName(typedName string) (NodeType, string, error) {
	idx := strings.Index(typedName, typedNameSeparator)
	if idx < 0 {
		return 0, "", fmt.Errorf("invalid typed name %q", typedName)
	}
	t, err := parseNodeType(typedName[:idx])
	if err != nil {
		return 0, "", fmt.Errorf("invalid typed name %q: %w", typedName, err)
	}
	return t, typedName[idx+1:], nil
}

// ValidateNodeName rejects a vertex name containing the reserved
// connection-edge character (spec §3's vertex invariant).
func ValidateNodeName(name string) error {
	if name == "" {
		return fmt.Errorf("node name must not be empty")
	}
	if strings.Contains(name, connectionIDSeparator) {
		return fmt.Errorf("node name %q must not contain the %q character", name, connectionIDSeparator)
	}
	return nil
}

// BuildConnectionID builds a connection's store key from its endpoints'
// typed names (spec §4.6).
func BuildConnectionID(tailTypedName, headTypedName string) string {
	return tailTypedName + connectionIDSeparator + headTypedName
}

// ParseConnectionID splits a connection id back into its tail and head typed
// names.
func ParseConnectionID(id string) (tailTypedName, headTypedName string, err error) {
	parts := strings.Split(id, connectionIDSeparator)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid connection id %q", id)
	}
	return parts[0], parts[1], nil
}
