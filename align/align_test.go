package align_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlalign/sqlalign/align"
	"github.com/sqlalign/sqlalign/database"
	"github.com/sqlalign/sqlalign/database/dbtest"
	"github.com/sqlalign/sqlalign/declared"
	"github.com/sqlalign/sqlalign/entity"
	"github.com/sqlalign/sqlalign/reflected"
	"github.com/sqlalign/sqlalign/sqlbuild"
)

// liveSchema walks the reflected tree down to schema dbo in database app,
// scripting the traversal queries.
func liveSchema(t *testing.T, e *dbtest.Exec, confirm database.ConfirmFunc) *reflected.Node {
	t.Helper()
	e.OnQuery(sqlbuild.ServerName(), database.Row{"name": "testhost"})
	server, err := reflected.ServerFromExecutor(e, confirm)
	require.NoError(t, err)
	e.OnQuery(sqlbuild.DatabaseExists("app"), database.Row{"present": 1})
	db, err := server.Child(entity.Database, "app")
	require.NoError(t, err)
	e.OnQuery(sqlbuild.SchemaExists("dbo"), database.Row{"present": 1})
	schema, err := db.Child(entity.Schema, "dbo")
	require.NoError(t, err)
	// Drop the session-attach statement so tests assert on alignment work only.
	e.Executed = nil
	return schema
}

func liveTable(t *testing.T, e *dbtest.Exec, confirm database.ConfirmFunc) *reflected.Node {
	t.Helper()
	schema := liveSchema(t, e, confirm)
	e.OnQuery(sqlbuild.TableExists("app", "dbo", "person"), database.Row{"present": 1})
	table, err := schema.Child(entity.Table, "person")
	require.NoError(t, err)
	return table
}

func declaredPersonTable(t *testing.T) *declared.Node {
	t.Helper()
	id, err := declared.IntColumn("id", declared.ColumnOpts{})
	require.NoError(t, err)
	name, err := declared.VarcharColumn("name", 50, declared.ColumnOpts{Nullable: true})
	require.NoError(t, err)
	table, err := declared.NewTable("person", declared.TableOpts{Columns: []*declared.Node{id, name}})
	require.NoError(t, err)
	return table
}

func intColumnRow(name string, identity bool) database.Row {
	return database.Row{
		"name": name, "data_type": "int", "char_max_len": nil,
		"datetime_precision": nil, "numeric_precision": 10, "numeric_scale": 0,
		"nullable": false, "identity": identity,
	}
}

func varcharColumnRow(name string, length int) database.Row {
	return database.Row{
		"name": name, "data_type": "varchar", "char_max_len": length,
		"datetime_precision": nil, "numeric_precision": nil, "numeric_scale": nil,
		"nullable": true, "identity": false,
	}
}

func TestEntityConvergesColumns(t *testing.T) {
	e := dbtest.New()
	table := liveTable(t, e, database.AutoApprove)
	d := declaredPersonTable(t)

	// Live: an undeclared legacy column, and name is varchar(30) not (50).
	e.OnQuery(sqlbuild.TableColumnDetails("dbo", "person"),
		intColumnRow("id", false), varcharColumnRow("name", 30), varcharColumnRow("legacy", 10))
	e.OnQuery(sqlbuild.ColumnExists("dbo", "person", "id"), database.Row{"present": 1})
	e.OnQuery(sqlbuild.ColumnExists("dbo", "person", "name"), database.Row{"present": 1})
	e.OnQuery(sqlbuild.ColumnDetail("dbo", "person", "id"), intColumnRow("id", false))
	e.OnQuery(sqlbuild.ColumnDetail("dbo", "person", "name"), varcharColumnRow("name", 30))
	e.OnQuery(sqlbuild.ColumnDetail("dbo", "person", "name"), varcharColumnRow("name", 50))
	// Dropping legacy first enumerates dependent indexes; there are none.
	e.OnQuery(sqlbuild.TableIndexNames("dbo", "person"))
	e.OnQuery(sqlbuild.TablePrimaryKeyName("dbo", "person"))

	require.NoError(t, align.Entity(d, table, true))

	assert.Contains(t, e.Executed, sqlbuild.DropColumn("dbo", "person", "legacy"))
	assert.Contains(t, e.Executed, sqlbuild.AlterColumn("dbo", "person", "name varchar(50) NULL"))
	assert.NotContains(t, e.Executed, sqlbuild.DropColumn("dbo", "person", "id"))
	assert.NotContains(t, e.Executed, sqlbuild.DropColumn("dbo", "person", "name"))
}

func TestEntityIsIdempotentOnceConverged(t *testing.T) {
	e := dbtest.New()
	table := liveTable(t, e, database.AutoApprove)
	d := declaredPersonTable(t)

	e.OnQuery(sqlbuild.TableColumnDetails("dbo", "person"),
		intColumnRow("id", false), varcharColumnRow("name", 50))
	e.OnQuery(sqlbuild.ColumnExists("dbo", "person", "id"), database.Row{"present": 1})
	e.OnQuery(sqlbuild.ColumnExists("dbo", "person", "name"), database.Row{"present": 1})
	e.OnQuery(sqlbuild.ColumnDetail("dbo", "person", "id"), intColumnRow("id", false))
	e.OnQuery(sqlbuild.ColumnDetail("dbo", "person", "name"), varcharColumnRow("name", 50))

	require.NoError(t, align.Entity(d, table, true))
	assert.Empty(t, e.Executed)
	assert.Zero(t, e.Commits)
	// Nothing but columns is declared, so no other child type is enumerated.
	assert.NotContains(t, e.Queries, sqlbuild.TableIndexNames("dbo", "person"))
	assert.NotContains(t, e.Queries, sqlbuild.TablePrimaryKeyName("dbo", "person"))
	assert.NotContains(t, e.Queries, sqlbuild.TablePartitionNames("dbo", "person"))
	assert.NotContains(t, e.Queries, sqlbuild.TableForeignKeys("dbo", "person"))
}

func TestEntityLeavesUndeclaredChildTypesAlone(t *testing.T) {
	e := dbtest.New()
	table := liveTable(t, e, database.AutoApprove)
	d := declaredPersonTable(t)

	// Live carries an index, but the declaration says nothing about indexes,
	// so they are out of scope: no enumeration, no deletion. The index
	// listing is deliberately left unscripted; querying it would fail.
	e.OnQuery(sqlbuild.TableColumnDetails("dbo", "person"),
		intColumnRow("id", false), varcharColumnRow("name", 50))
	e.OnQuery(sqlbuild.ColumnExists("dbo", "person", "id"), database.Row{"present": 1})
	e.OnQuery(sqlbuild.ColumnExists("dbo", "person", "name"), database.Row{"present": 1})
	e.OnQuery(sqlbuild.ColumnDetail("dbo", "person", "id"), intColumnRow("id", false))
	e.OnQuery(sqlbuild.ColumnDetail("dbo", "person", "name"), varcharColumnRow("name", 50))

	require.NoError(t, align.Entity(d, table, true))
	assert.NotContains(t, e.Queries, sqlbuild.TableIndexNames("dbo", "person"))
	assert.NotContains(t, e.Executed, sqlbuild.DropIndex("dbo", "person", "ix_legacy"))
	assert.Empty(t, e.Executed)
}

func TestEntityLeavesIgnoredExtrasInPlace(t *testing.T) {
	e := dbtest.New()
	table := liveTable(t, e, database.AutoApprove)
	d := declaredPersonTable(t).IgnoreExtraChildren(entity.Column)

	e.OnQuery(sqlbuild.ColumnExists("dbo", "person", "id"), database.Row{"present": 1})
	e.OnQuery(sqlbuild.ColumnExists("dbo", "person", "name"), database.Row{"present": 1})
	e.OnQuery(sqlbuild.ColumnDetail("dbo", "person", "id"), intColumnRow("id", false))
	e.OnQuery(sqlbuild.ColumnDetail("dbo", "person", "name"), varcharColumnRow("name", 50))

	// No column enumeration is even issued; the legacy column survives.
	require.NoError(t, align.Entity(d, table, true))
	assert.NotContains(t, e.Queries, sqlbuild.TableColumnDetails("dbo", "person"))
	assert.Empty(t, e.Executed)
}

func TestEntityDeclinedDeletionIsRecoverable(t *testing.T) {
	e := dbtest.New()
	table := liveTable(t, e, declineActions("Delete columns"))
	d := declaredPersonTable(t)

	e.OnQuery(sqlbuild.TableColumnDetails("dbo", "person"),
		intColumnRow("id", false), varcharColumnRow("name", 50), varcharColumnRow("legacy", 10))
	e.OnQuery(sqlbuild.ColumnExists("dbo", "person", "id"), database.Row{"present": 1})
	e.OnQuery(sqlbuild.ColumnExists("dbo", "person", "name"), database.Row{"present": 1})
	e.OnQuery(sqlbuild.ColumnDetail("dbo", "person", "id"), intColumnRow("id", false))
	e.OnQuery(sqlbuild.ColumnDetail("dbo", "person", "name"), varcharColumnRow("name", 50))

	require.NoError(t, align.Entity(d, table, true))
	assert.NotContains(t, e.Executed, sqlbuild.DropColumn("dbo", "person", "legacy"))
}

func TestEntityVerificationFailureIsFatal(t *testing.T) {
	e := dbtest.New()
	table := liveTable(t, e, database.AutoApprove)
	d := declaredPersonTable(t)

	// The ALTER runs but the live length never moves to 50.
	e.OnQuery(sqlbuild.TableColumnDetails("dbo", "person"),
		intColumnRow("id", false), varcharColumnRow("name", 30))
	e.OnQuery(sqlbuild.ColumnExists("dbo", "person", "id"), database.Row{"present": 1})
	e.OnQuery(sqlbuild.ColumnExists("dbo", "person", "name"), database.Row{"present": 1})
	e.OnQuery(sqlbuild.ColumnDetail("dbo", "person", "id"), intColumnRow("id", false))
	e.OnQuery(sqlbuild.ColumnDetail("dbo", "person", "name"), varcharColumnRow("name", 30))

	err := align.Entity(d, table, true)
	assert.ErrorIs(t, err, entity.ErrNotAltered)
	assert.Contains(t, e.Executed, sqlbuild.AlterColumn("dbo", "person", "name varchar(50) NULL"))
}

func TestEntityRenamesFromOldName(t *testing.T) {
	e := dbtest.New()
	schema := liveSchema(t, e, database.AutoApprove)

	table, err := declared.NewTable("person", declared.TableOpts{OldName: "persons"})
	require.NoError(t, err)
	table.IgnoreAllExtraChildren()
	dSchema, err := declared.NewSchema("dbo", []*declared.Node{table})
	require.NoError(t, err)
	dSchema.IgnoreAllExtraChildren()

	// Live: only the old table name exists until the rename runs.
	e.OnQuery(sqlbuild.TableExists("app", "dbo", "persons"), database.Row{"present": 1})
	e.OnQuery(sqlbuild.TableExists("app", "dbo", "person"), database.Row{"present": 1})

	require.NoError(t, align.Entity(dSchema, schema, true))
	assert.Contains(t, e.Executed, sqlbuild.RenameTable("dbo", "persons", "person"))
}

func TestEntityCreatesDeclaredTableEndToEnd(t *testing.T) {
	e := dbtest.New()
	schema := liveSchema(t, e, database.AutoApprove)

	id, err := declared.IntColumn("id", declared.ColumnOpts{})
	require.NoError(t, err)
	name, err := declared.VarcharColumn("name", 50, declared.ColumnOpts{Nullable: true})
	require.NoError(t, err)
	pk, err := declared.NewPrimaryKey([]string{"id"}, declared.PrimaryKeyOpts{})
	require.NoError(t, err)
	table, err := declared.NewTable("person", declared.TableOpts{
		Columns:    []*declared.Node{id, name},
		PrimaryKey: pk,
	})
	require.NoError(t, err)
	dSchema, err := declared.NewSchema("dbo", []*declared.Node{table})
	require.NoError(t, err)

	// First run: no live table. Each enumeration and existence probe is
	// scripted twice, before and after creation; the last result answers the
	// second run too.
	e.OnQuery(sqlbuild.ListTables("dbo"))
	e.OnQuery(sqlbuild.ListTables("dbo"), database.Row{"name": "person"})
	e.OnQuery(sqlbuild.TableExists("app", "dbo", "person"))
	e.OnQuery(sqlbuild.TableExists("app", "dbo", "person"), database.Row{"present": 1})
	e.OnQuery(sqlbuild.TableColumnDetails("dbo", "person"),
		intColumnRow("id", false), varcharColumnRow("name", 50))
	e.OnQuery(sqlbuild.ColumnExists("dbo", "person", "id"), database.Row{"present": 1})
	e.OnQuery(sqlbuild.ColumnExists("dbo", "person", "name"), database.Row{"present": 1})
	e.OnQuery(sqlbuild.ColumnDetail("dbo", "person", "id"), intColumnRow("id", false))
	e.OnQuery(sqlbuild.ColumnDetail("dbo", "person", "name"), varcharColumnRow("name", 50))
	e.OnQuery(sqlbuild.TablePrimaryKeyName("dbo", "person"))
	e.OnQuery(sqlbuild.TablePrimaryKeyName("dbo", "person"), database.Row{"name": "PK_id"})
	e.OnQuery(sqlbuild.TablePrimaryKeyColumns("dbo", "person"))
	e.OnQuery(sqlbuild.TablePrimaryKeyColumns("dbo", "person"),
		database.Row{"pk_name": "PK_id", "column_name": "id"})
	e.OnQuery(sqlbuild.NamedIndexDetail("dbo", "person", "PK_id"), database.Row{
		"name": "PK_id", "type_desc": "CLUSTERED", "is_primary_key": true,
		"unique": true, "is_unique_constraint": false, "compression": "NONE",
	})
	e.OnQuery(sqlbuild.IndexNonPartitionColumns("dbo", "person", "PK_id"),
		database.Row{"index_name": "PK_id", "index_id": 1, "index_column_id": 1, "column_name": "id"})

	require.NoError(t, align.Entity(dSchema, schema, true))
	assert.Equal(t, []string{
		sqlbuild.CreateTable("dbo", "person", []string{"id int NOT NULL", "name varchar(50) NULL"}),
		sqlbuild.CreatePrimaryKey("dbo", "person", "PK_id", []string{"id"}, true, "NONE"),
	}, e.Executed)
	firstRunCommits := e.Commits
	assert.Equal(t, 2, firstRunCommits)

	// Second run: everything matches, nothing is emitted.
	e.Executed = nil
	require.NoError(t, align.Entity(dSchema, schema, true))
	assert.Empty(t, e.Executed)
	assert.Equal(t, firstRunCommits, e.Commits)
}

func TestEntityTypeMismatchIsFatal(t *testing.T) {
	e := dbtest.New()
	table := liveTable(t, e, database.AutoApprove)
	d, err := declared.NewSchema("dbo", nil)
	require.NoError(t, err)
	assert.Error(t, align.Entity(d, table, true))
}

func declineActions(fragment string) database.ConfirmFunc {
	return func(action string) bool {
		return !strings.Contains(action, fragment)
	}
}
