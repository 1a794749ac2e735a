package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpRejectsEmptySchema(t *testing.T) {
	_, err := NoOp{}.Validate("")
	assert.Error(t, err)
}

func TestNoOpAcceptsNonEmptySchema(t *testing.T) {
	tree, err := NoOp{}.Validate(`{"type":"object"}`)
	require.NoError(t, err)
	assert.Equal(t, KindObject, tree.Kind)
}
