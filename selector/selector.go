// Package selector implements the algebraic selector variants (spec §3, §4.8)
// with their JSON and CBOR encodings.
package selector

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the four selector variants.
type Kind int

const (
	KindMatcher Kind = iota
	KindExploreIndex
	KindExploreRange
	KindExploreUnion
)

// Selector is a node in the selector algebra: Matcher (terminal leaf),
// ExploreIndex{index,next}, ExploreRange{start,end,next}, or
// ExploreUnion([]Selector). Only the fields relevant to Kind are populated.
type Selector struct {
	Kind Kind

	Label string // Matcher only; empty means unlabeled

	Index uint64 // ExploreIndex only

	Start uint64 // ExploreRange only
	End   uint64 // ExploreRange only

	Next *Selector // ExploreIndex/ExploreRange only

	Union []Selector // ExploreUnion only
}

// Matcher returns an unlabeled terminal selector.
func Matcher() Selector { return Selector{Kind: KindMatcher} }

// MatcherLabeled returns a terminal selector carrying a label.
func MatcherLabeled(label string) Selector { return Selector{Kind: KindMatcher, Label: label} }

// ExploreIndex returns a selector that descends into child index i.
func ExploreIndex(i uint64, next Selector) Selector {
	return Selector{Kind: KindExploreIndex, Index: i, Next: &next}
}

// ExploreRange returns a selector over the half-open range [start, end).
// Per spec's stated invariant, next must be a Matcher; this is enforced at
// evaluation time, not construction time, to allow round-tripping malformed
// input for error reporting.
func ExploreRange(start, end uint64, next Selector) Selector {
	return Selector{Kind: KindExploreRange, Start: start, End: end, Next: &next}
}

// ExploreUnion returns a union selector; valid only at a selector's root.
func ExploreUnion(selectors ...Selector) Selector {
	return Selector{Kind: KindExploreUnion, Union: selectors}
}

// IsMatcher reports whether s is a terminal Matcher.
func (s Selector) IsMatcher() bool { return s.Kind == KindMatcher }

// String renders a compact postfix-arrow notation, e.g. "i[0]>r[1:3]>.",
// matching the style spec.md's own prose examples use (supplemented CLI
// pretty-printing, SPEC_FULL.md §4.15).
func (s Selector) String() string {
	switch s.Kind {
	case KindMatcher:
		if s.Label != "" {
			return fmt.Sprintf(".{%s}", s.Label)
		}
		return "."
	case KindExploreIndex:
		return fmt.Sprintf("i[%d]>%s", s.Index, s.Next.String())
	case KindExploreRange:
		return fmt.Sprintf("r[%d:%d]>%s", s.Start, s.End, s.Next.String())
	case KindExploreUnion:
		parts := make([]string, len(s.Union))
		for i, u := range s.Union {
			parts[i] = u.String()
		}
		return "|" + fmt.Sprint(parts)
	default:
		return "?"
	}
}

// --- JSON codec (spec §4.8's fixed key alphabet: ".", "i", "r", "|") ---

type matcherJSON struct {
	Label *string `json:"label,omitempty"`
}

type exploreIndexJSON struct {
	I    uint64          `json:"i"`
	Next json.RawMessage `json:">"`
}

type exploreRangeJSON struct {
	Start uint64          `json:"^"`
	End   uint64          `json:"$"`
	Next  json.RawMessage `json:">"`
}

// MarshalJSON renders the selector using the single-key-map encoding.
func (s Selector) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindMatcher:
		var m matcherJSON
		if s.Label != "" {
			m.Label = &s.Label
		}
		body, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{".": body})
	case KindExploreIndex:
		nextBody, err := s.Next.MarshalJSON()
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(exploreIndexJSON{I: s.Index, Next: nextBody})
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{"i": body})
	case KindExploreRange:
		nextBody, err := s.Next.MarshalJSON()
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(exploreRangeJSON{Start: s.Start, End: s.End, Next: nextBody})
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{"r": body})
	case KindExploreUnion:
		arr := make([]json.RawMessage, len(s.Union))
		for i, u := range s.Union {
			body, err := u.MarshalJSON()
			if err != nil {
				return nil, err
			}
			arr[i] = body
		}
		listBody, err := json.Marshal(arr)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{"|": listBody})
	default:
		return nil, fmt.Errorf("unknown selector kind %d", s.Kind)
	}
}

// UnmarshalJSON parses the single-key-map encoding.
func (s *Selector) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("selector is not a JSON object: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("selector object must have exactly one key, got %d", len(raw))
	}
	for key, body := range raw {
		switch key {
		case ".":
			var m matcherJSON
			if err := json.Unmarshal(body, &m); err != nil {
				return fmt.Errorf("parse matcher: %w", err)
			}
			*s = Selector{Kind: KindMatcher}
			if m.Label != nil {
				s.Label = *m.Label
			}
			return nil
		case "i":
			var e exploreIndexJSON
			if err := json.Unmarshal(body, &e); err != nil {
				return fmt.Errorf("parse explore-index: %w", err)
			}
			var next Selector
			if err := next.UnmarshalJSON(e.Next); err != nil {
				return fmt.Errorf("parse explore-index next: %w", err)
			}
			*s = Selector{Kind: KindExploreIndex, Index: e.I, Next: &next}
			return nil
		case "r":
			var e exploreRangeJSON
			if err := json.Unmarshal(body, &e); err != nil {
				return fmt.Errorf("parse explore-range: %w", err)
			}
			var next Selector
			if err := next.UnmarshalJSON(e.Next); err != nil {
				return fmt.Errorf("parse explore-range next: %w", err)
			}
			*s = Selector{Kind: KindExploreRange, Start: e.Start, End: e.End, Next: &next}
			return nil
		case "|":
			var arr []json.RawMessage
			if err := json.Unmarshal(body, &arr); err != nil {
				return fmt.Errorf("parse explore-union: %w", err)
			}
			union := make([]Selector, len(arr))
			for i, raw := range arr {
				if err := union[i].UnmarshalJSON(raw); err != nil {
					return fmt.Errorf("parse explore-union[%d]: %w", i, err)
				}
			}
			*s = Selector{Kind: KindExploreUnion, Union: union}
			return nil
		default:
			return fmt.Errorf("unknown selector key %q", key)
		}
	}
	return fmt.Errorf("unreachable")
}

// Envelope wraps a selector in the single-key "selector" map before it is
// persisted as a block (spec §4.8).
type Envelope struct {
	Selector Selector `json:"selector"`
}
