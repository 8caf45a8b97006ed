package declared

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlalign/sqlalign/entity"
)

func mustColumn(t *testing.T) func(*Node, error) *Node {
	return func(column *Node, err error) *Node {
		t.Helper()
		require.NoError(t, err)
		return column
	}
}

func TestNewLoginDefaults(t *testing.T) {
	login, err := NewLogin("svc", LoginOpts{ServerRoles: []string{"dbcreator"}})
	require.NoError(t, err)
	assert.Equal(t, "SQL_LOGIN", login.Attr("type_desc"))
	assert.Equal(t, []string{"dbcreator"}, login.Attr("server_roles"))
}

func TestNewDatabaseRecoveryModel(t *testing.T) {
	tests := []struct {
		model string
		valid bool
	}{
		{"", true}, // defaults to FULL
		{"FULL", true},
		{"simple", true},
		{"BULK_LOGGED", true},
		{"INCREMENTAL", false},
	}
	for _, test := range tests {
		db, err := NewDatabase("app", DatabaseOpts{RecoveryModel: test.model})
		if !test.valid {
			assert.Error(t, err, test.model)
			continue
		}
		require.NoError(t, err, test.model)
		want := test.model
		if want == "" {
			want = "FULL"
		}
		assert.Equal(t, want, db.Attr("recovery_model_desc"))
	}
}

func TestNewDatabaseDerivesFilePaths(t *testing.T) {
	db, err := NewDatabase("app", DatabaseOpts{
		DataFileDir: "D:/data",
		LogFileDir:  `E:\log\`,
		DataSize:    1000,
	})
	require.NoError(t, err)
	assert.Equal(t, `D:\data\app.mdf`, db.Attr("data_file_path"))
	assert.Equal(t, `E:\log\app_log.ldf`, db.Attr("log_file_path"))
	assert.Equal(t, 1000, db.Attr("data_size"))
	assert.Equal(t, 100, db.Attr("log_size"))
}

func TestNewDatabaseRequiresSizeWithFileDir(t *testing.T) {
	_, err := NewDatabase("app", DatabaseOpts{DataFileDir: "D:/data"})
	assert.Error(t, err)
}

func TestTablesShorthandWrapsInDboSchema(t *testing.T) {
	table, err := NewTable("person", TableOpts{})
	require.NoError(t, err)
	db, err := NewDatabase("app", DatabaseOpts{Tables: []*Node{table}})
	require.NoError(t, err)

	found, err := db.GetTable("person", "")
	require.NoError(t, err)
	assert.Equal(t, "person", found.Name())

	schemas := db.Children(entity.Schema)
	require.Len(t, schemas, 1)
	assert.Equal(t, "dbo", schemas[0].Name())
}

func TestAddChildRejectsDuplicateNames(t *testing.T) {
	table, err := NewTable("person", TableOpts{Columns: []*Node{
		mustColumn(t)(IntColumn("id", ColumnOpts{})),
	}})
	require.NoError(t, err)

	duplicate := mustColumn(t)(IntColumn("ID", ColumnOpts{}))
	err = table.AddChild(duplicate)
	assert.Error(t, err)
}

func TestAddChildAllowsUnnamedForeignKeys(t *testing.T) {
	first, err := NewForeignKey("address_id", "address", "id", ForeignKeyOpts{})
	require.NoError(t, err)
	second, err := NewForeignKey("country_id", "country", "id", ForeignKeyOpts{})
	require.NoError(t, err)
	_, err = NewTable("person", TableOpts{ForeignKeys: []*Node{first, second}})
	assert.NoError(t, err)
}

func TestAddChildRejectsInvalidType(t *testing.T) {
	db, err := NewDatabase("app", DatabaseOpts{})
	require.NoError(t, err)
	column := mustColumn(t)(IntColumn("id", ColumnOpts{}))
	err = db.AddChild(column)
	assert.ErrorIs(t, err, entity.ErrInvalidChild)
}

func TestLongNamesAreTruncated(t *testing.T) {
	name := strings.Repeat("x", 300)
	table, err := NewTable(name, TableOpts{})
	require.NoError(t, err)
	assert.Len(t, table.Name(), 128)
}

func TestResolveWalksTheTree(t *testing.T) {
	column := mustColumn(t)(IntColumn("id", ColumnOpts{}))
	table, err := NewTable("person", TableOpts{Columns: []*Node{column}})
	require.NoError(t, err)
	db, err := NewDatabase("app", DatabaseOpts{Tables: []*Node{table}})
	require.NoError(t, err)
	server, err := NewServer(ServerOpts{Databases: []*Node{db}})
	require.NoError(t, err)

	found, err := server.Resolve("app", "dbo", "person", "id")
	require.NoError(t, err)
	assert.Equal(t, entity.Column, found.Type())

	_, err = server.Resolve("app", "dbo", "nope")
	assert.ErrorIs(t, err, entity.ErrNotExist)
}

func TestColumnConstructors(t *testing.T) {
	small, err := FloatColumn("ratio", true, ColumnOpts{})
	require.NoError(t, err)
	assert.Equal(t, 24, small.Attr("numeric_precision"))

	dt, err := DateTimeColumn("created_at", ColumnOpts{})
	require.NoError(t, err)
	assert.Equal(t, "datetime2", dt.Attr("data_type"))
	assert.Equal(t, 7, dt.Attr("datetime_precision"))

	identity, err := IdentityColumn("id")
	require.NoError(t, err)
	assert.Equal(t, true, identity.Attr("identity"))
	assert.Equal(t, false, identity.Attr("nullable"))

	_, err = NumericColumn("amount", 8, 8, ColumnOpts{})
	assert.Error(t, err)
}

func TestIndexAutoNaming(t *testing.T) {
	index, err := NewIndex([]string{"Last_Name", "First_Name"}, IndexOpts{
		IncludedColumns: []string{"Email"},
	})
	require.NoError(t, err)
	assert.Equal(t, "IX_last_name_first_name__email", index.Name())
	assert.Equal(t, []string{"last_name", "first_name"}, index.Attr("columns"))

	pk, err := NewPrimaryKey([]string{"ID"}, PrimaryKeyOpts{})
	require.NoError(t, err)
	assert.Equal(t, "PK_id", pk.Name())
	assert.Equal(t, true, pk.Attr("clustered"))
	assert.Equal(t, "NONE", pk.Attr("compression"))
}

func TestClusteredIndexColumns(t *testing.T) {
	clustered, err := NewIndex([]string{"created_at"}, IndexOpts{Clustered: true})
	require.NoError(t, err)
	plain, err := NewIndex([]string{"name"}, IndexOpts{})
	require.NoError(t, err)
	table, err := NewTable("person", TableOpts{Indexes: []*Node{plain, clustered}})
	require.NoError(t, err)
	assert.Equal(t, []string{"created_at"}, table.ClusteredIndexColumns())
}

func TestAttrPanicsOnUnknownName(t *testing.T) {
	table, err := NewTable("person", TableOpts{})
	require.NoError(t, err)
	assert.Panics(t, func() { table.Attr("no_such") })
}
