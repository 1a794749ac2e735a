package localstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndParseTypedName(t *testing.T) {
	typed := BuildTypedName(NodeTypeTransformation, "my-transformation")
	assert.Equal(t, "transformation:my-transformation", typed)

	typ, name, err := ParseTypedName(typed)
	require.NoError(t, err)
	assert.Equal(t, NodeTypeTransformation, typ)
	assert.Equal(t, "my-transformation", name)
}

func TestParseTypedNameRejectsMissingSeparator(t *testing.T) {
	_, _, err := ParseTypedName("nosep")
	assert.Error(t, err)
}

func TestParseTypedNameRejectsUnknownType(t *testing.T) {
	_, _, err := ParseTypedName("bogus:a")
	assert.Error(t, err)
}

func TestBuildAndParseConnectionID(t *testing.T) {
	tail := BuildTypedName(NodeTypeSource, "a")
	head := BuildTypedName(NodeTypeTransformation, "t")
	id := BuildConnectionID(tail, head)

	gotTail, gotHead, err := ParseConnectionID(id)
	require.NoError(t, err)
	assert.Equal(t, tail, gotTail)
	assert.Equal(t, head, gotHead)
}

func TestParseConnectionIDRejectsMalformed(t *testing.T) {
	_, _, err := ParseConnectionID("no-separator-here")
	assert.Error(t, err)
}

func TestValidateNodeNameRejectsEmpty(t *testing.T) {
	assert.Error(t, ValidateNodeName(""))
}

func TestValidateNodeNameRejectsReservedSeparator(t *testing.T) {
	assert.Error(t, ValidateNodeName("a→b"))
}

func TestValidateNodeNameAcceptsOrdinaryName(t *testing.T) {
	assert.NoError(t, ValidateNodeName("my-source"))
}
