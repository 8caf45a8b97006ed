package database_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlalign/sqlalign/database"
	"github.com/sqlalign/sqlalign/database/dbtest"
)

func TestRowAccessors(t *testing.T) {
	row := database.Row{
		"name":    "person",
		"size":    int64(42),
		"decimal": []byte("17"),
		"flag":    true,
		"bit":     int64(1),
		"missing": nil,
	}

	assert.Equal(t, "person", row.String("name"))
	assert.Equal(t, 42, row.Int("size"))
	assert.Equal(t, 17, row.Int("decimal"))
	assert.True(t, row.Bool("flag"))
	assert.True(t, row.Bool("bit"))
	assert.True(t, row.IsNull("missing"))
	assert.False(t, row.IsNull("name"))
	assert.True(t, row.Has("name"))
	assert.False(t, row.Has("other"))
	assert.Panics(t, func() { row.Value("other") })
}

func TestQueryRowAndExists(t *testing.T) {
	e := dbtest.New()
	e.OnQuery("SELECT 1", database.Row{"one": 1})
	e.OnQuery("SELECT 2")

	row, err := database.QueryRow(e, "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, 1, row.Int("one"))

	row, err = database.QueryRow(e, "SELECT 2")
	require.NoError(t, err)
	assert.Nil(t, row)

	exists, err := database.QueryExists(e, "SELECT 1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = database.QueryExists(e, "SELECT 2")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = database.QueryRow(e, "SELECT 3")
	assert.Error(t, err)
}

func TestPromptConfirm(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"y\n", true},
		{"n\n", false},
		{"yes\n", false},
		{" y \n", true},
		{"", false},
	}
	for _, test := range tests {
		var out strings.Builder
		confirm := database.NewPrompt(strings.NewReader(test.answer), &out)
		assert.Equal(t, test.want, confirm("Delete tables \"app.dbo.person\"?"), "answer %q", test.answer)
		assert.Contains(t, out.String(), "(y/n)")
	}
}

func TestAutoApprove(t *testing.T) {
	assert.True(t, database.AutoApprove("anything"))
}
