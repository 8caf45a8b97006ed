package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttributesCoverEveryType(t *testing.T) {
	for _, typ := range Types() {
		assert.NotPanics(t, func() { Attributes(typ) }, typ.String())
		assert.NotPanics(t, func() { ChildTypes(typ) }, typ.String())
	}
}

func TestAttrKind(t *testing.T) {
	kind, ok := AttrKind(Index, "included_columns")
	assert.True(t, ok)
	assert.Equal(t, KindNameSet, kind)

	_, ok = AttrKind(Index, "no_such_attribute")
	assert.False(t, ok)
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		a, b     any
		expected bool
	}{
		{"string exact", KindString, "a", "a", true},
		{"string case differs", KindString, "a", "A", false},
		{"string nil both", KindString, nil, nil, true},
		{"folded string", KindFoldedString, "VARCHAR", "varchar", true},
		{"int vs int64", KindInt, 5, int64(5), true},
		{"int nil vs value", KindInt, nil, 5, false},
		{"int nil both", KindInt, nil, nil, true},
		{"bool from int64", KindBool, true, int64(1), true},
		{"columns ordered", KindColumns, []string{"a", "b"}, []string{"A", "B"}, true},
		{"columns order matters", KindColumns, []string{"a", "b"}, []string{"b", "a"}, false},
		{"columns length differs", KindColumns, []string{"a"}, []string{"a", "b"}, false},
		{"name set order ignored", KindNameSet, []string{"x", "y"}, []string{"Y", "x"}, true},
		{"name set nil vs empty", KindNameSet, nil, []string{}, true},
		{"name set differs", KindNameSet, []string{"x"}, []string{"y"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Equal(tt.kind, tt.a, tt.b))
		})
	}
}
