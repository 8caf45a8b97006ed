// Package sqlbuild renders the T-SQL statement and catalog query text the
// reflected tree executes. The reconciler core treats every function here as
// an opaque string producer.
package sqlbuild

import (
	"fmt"
	"strings"

	"github.com/sqlalign/sqlalign/util"
)

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func clustering(clustered bool) string {
	if clustered {
		return "CLUSTERED"
	}
	return "NONCLUSTERED"
}

// ---------------------------------------------------------------------------
// General

func MinColumnValue(schema, table, column string) string {
	return fmt.Sprintf("SELECT MIN([%s]) AS value FROM [%s].[%s]", column, schema, table)
}

func MaxColumnValue(schema, table, column string) string {
	return fmt.Sprintf("SELECT MAX([%s]) AS value FROM [%s].[%s]", column, schema, table)
}

func ServerName() string {
	return "SELECT @@SERVERNAME AS name"
}

func CurrentDatabaseName() string {
	return "SELECT DB_NAME() AS name"
}

// ---------------------------------------------------------------------------
// Databases

func UseDatabase(name string) string {
	return fmt.Sprintf("USE [%s]", name)
}

// CreateDatabase renders CREATE DATABASE with explicit file placement when
// dataFilePath is set, otherwise with server defaults.
func CreateDatabase(name, dataFilePath, logFilePath string, dataSize, logSize int) string {
	if dataFilePath == "" {
		return fmt.Sprintf("CREATE DATABASE [%s]", name)
	}
	return fmt.Sprintf(`CREATE DATABASE [%s]
 CONTAINMENT = NONE
 ON PRIMARY
( NAME = N'%s', FILENAME = N'%s' , SIZE = %dMB , MAXSIZE = UNLIMITED, FILEGROWTH = 10%%)
 LOG ON
( NAME = N'%s_log', FILENAME = N'%s' , SIZE = %dMB , MAXSIZE = UNLIMITED , FILEGROWTH = 10%%)`,
		name, name, dataFilePath, dataSize, name, logFilePath, logSize)
}

func ListDatabases() string {
	return "SELECT name, database_id, state_desc, recovery_model_desc, suser_sname(owner_sid) AS owner FROM master.sys.databases"
}

func DatabaseDetail(name string) string {
	return ListDatabases() + fmt.Sprintf(" WHERE name = '%s'", name)
}

func DatabaseExists(name string) string {
	return fmt.Sprintf("SELECT 1 AS present FROM sys.databases WHERE name = '%s'", name)
}

func DatabaseSizes(name string) string {
	return fmt.Sprintf(`SELECT
row_size_mb = CAST(SUM(CASE WHEN type_desc = 'ROWS' THEN size END) * 8. / 1024 AS DECIMAL(10,2)),
log_size_mb = CAST(SUM(CASE WHEN type_desc = 'LOG' THEN size END) * 8. / 1024 AS DECIMAL(10,2))
FROM sys.master_files WITH(NOWAIT)
WHERE database_id = DB_ID('%s')`, name)
}

func DatabaseFileInfo(name, fileType string) string {
	return fmt.Sprintf(`SELECT name,
CAST(size/128.0 AS INT) AS current_size_mb,
CAST(FILEPROPERTY(name, 'SpaceUsed')/128.0 AS INT) AS used_space_mb,
physical_name
FROM sys.master_files
WHERE database_id = DB_ID('%s') AND type_desc = '%s'`, name, fileType)
}

func SetDatabaseOption(name, option, value string) string {
	return fmt.Sprintf("ALTER DATABASE [%s] SET %s %s", name, option, value)
}

func SetDatabaseOwner(owner string) string {
	return fmt.Sprintf("EXEC sp_changedbowner '%s'", owner)
}

func RenameDatabase(oldName, newName string) string {
	return fmt.Sprintf("ALTER DATABASE %s MODIFY NAME = %s", oldName, newName)
}

func ShrinkDatabaseFile(fileName string, sizeMB int) string {
	return fmt.Sprintf("DBCC SHRINKFILE (N'%s' , %d)", fileName, sizeMB)
}

func GrowDatabaseFile(dbName, fileName string, sizeMB int) string {
	return fmt.Sprintf("ALTER DATABASE %s MODIFY FILE (NAME = %s, SIZE = %dMB)", dbName, fileName, sizeMB)
}

func SetDatabaseFilePath(dbName, fileName, path string) string {
	return fmt.Sprintf("ALTER DATABASE %s MODIFY FILE (NAME = %s, FILENAME = N'%s')", dbName, fileName, path)
}

// ---------------------------------------------------------------------------
// Logins

func ListLogins() string {
	return `SELECT sl.name, sl.isntuser, sp.type_desc, sl.sysadmin, sl.securityadmin, sl.serveradmin, sl.setupadmin, sl.processadmin, sl.diskadmin, sl.dbcreator, sl.bulkadmin
FROM master.dbo.syslogins sl
JOIN sys.server_principals sp ON sp.sid = sl.sid
WHERE sl.isntuser = 0 AND type_desc = 'SQL_LOGIN'`
}

func LoginDetail(name string) string {
	return ListLogins() + fmt.Sprintf(" AND sl.name = '%s'", name)
}

func LoginExists(name string) string {
	return fmt.Sprintf("SELECT 1 AS present FROM master.dbo.syslogins WHERE name = '%s'", name)
}

func AlterServerRole(role, action, loginName string) string {
	return fmt.Sprintf("ALTER SERVER ROLE [%s] %s MEMBER [%s]", role, action, loginName)
}

func DropLogin(name string) string {
	return fmt.Sprintf("DROP LOGIN %s", name)
}

// ---------------------------------------------------------------------------
// Users

func CreateUser(userName, loginName string) string {
	return fmt.Sprintf("CREATE USER [%s] FOR LOGIN [%s] WITH DEFAULT_SCHEMA=[dbo]", userName, loginName)
}

func ListUsers() string {
	return `SELECT dp.name as [name], dp.principal_id, sp.name as [login_name]
FROM sys.database_principals dp
JOIN sys.server_principals sp ON dp.sid=sp.sid
WHERE dp.type_desc = 'SQL_USER'`
}

func UserDetail(name string) string {
	return ListUsers() + fmt.Sprintf(" AND dp.name = '%s'", name)
}

func UserForLogin(loginName string) string {
	return ListUsers() + fmt.Sprintf(" AND sp.name = '%s'", loginName)
}

func UserExists(name string) string {
	return fmt.Sprintf("SELECT 1 AS present FROM sys.database_principals WHERE type='S' AND name ='%s'", name)
}

func UserRoles(name string) string {
	return fmt.Sprintf(`SELECT
DP1.name AS role_name,
DP2.name AS user_name
FROM sys.database_role_members AS DRM
RIGHT OUTER JOIN sys.database_principals AS DP1 ON DRM.role_principal_id = DP1.principal_id
LEFT OUTER JOIN sys.database_principals AS DP2 ON DRM.member_principal_id = DP2.principal_id
WHERE DP1.type = 'R' AND DP2.name = '%s'`, name)
}

func AlterDatabaseRole(role, action, userName string) string {
	return fmt.Sprintf("ALTER ROLE [%s] %s MEMBER [%s]", role, action, userName)
}

func DropUser(name string) string {
	return fmt.Sprintf("DROP USER %s", name)
}

// ---------------------------------------------------------------------------
// Schemas

func ListSchemas(dbName string) string {
	return fmt.Sprintf("SELECT name, schema_id, principal_id FROM [%s].sys.schemas WHERE schema_id < 16384", dbName)
}

func SchemaExists(name string) string {
	return fmt.Sprintf("SELECT 1 AS present FROM sys.schemas WHERE name='%s'", name)
}

func CreateSchema(name string) string {
	return fmt.Sprintf("CREATE SCHEMA [%s]", name)
}

// ---------------------------------------------------------------------------
// Tables

func ListTables(schema string) string {
	return fmt.Sprintf(`SELECT t.name, t.type_desc FROM sys.tables t
JOIN sys.schemas s ON t.schema_id = s.schema_id
WHERE s.name = '%s'`, schema)
}

func TableDetail(schema, table string) string {
	return ListTables(schema) + fmt.Sprintf(" AND t.name = '%s'", table)
}

func TableExists(dbName, schema, table string) string {
	return fmt.Sprintf("SELECT 1 AS present FROM [%s].INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = '%s' AND TABLE_NAME = '%s'", dbName, schema, table)
}

func CreateTable(schema, table string, columnDefs []string) string {
	return fmt.Sprintf("CREATE TABLE [%s].[%s] (%s) ON [PRIMARY]", schema, table, strings.Join(columnDefs, ", "))
}

func RenameTable(schema, oldName, newName string) string {
	return fmt.Sprintf("exec sp_rename '%s.%s', '%s'", schema, oldName, newName)
}

func DropTable(schema, table string) string {
	return fmt.Sprintf("DROP TABLE [%s].[%s]", schema, table)
}

func TableCompression(dbName, schema, table string) string {
	return fmt.Sprintf(`SELECT [s].name as [schema_name], [t].[name] AS [table_name], [p].[partition_number] AS [partition], [p].[data_compression_desc] AS [compression]
FROM [%s].[sys].[partitions] AS [p]
INNER JOIN [%s].sys.tables AS [t] ON [t].[object_id] = [p].[object_id]
INNER JOIN [%s].sys.schemas [s] ON s.schema_id = t.schema_id
WHERE [p].[index_id] in (0,1) AND [s].name = '%s' and [t].name = '%s'`, dbName, dbName, dbName, schema, table)
}

func SetTableCompression(schema, table, compression string, online bool) string {
	return fmt.Sprintf("ALTER TABLE [%s].[%s] REBUILD WITH (DATA_COMPRESSION = %s, ONLINE = %s)", schema, table, compression, onOff(online))
}

func SetIdentityInsert(dbName, schema, table string, on bool) string {
	return fmt.Sprintf("SET IDENTITY_INSERT [%s].[%s].[%s] %s", dbName, schema, table, onOff(on))
}

func TableHasData(schema, table string) string {
	return fmt.Sprintf("SELECT TOP 1 1 AS present FROM [%s].[%s]", schema, table)
}

func DeleteTableData(schema, table string) string {
	return fmt.Sprintf("DELETE FROM [%s].[%s]", schema, table)
}

func TruncateTablePartitions(schema, table string, startPartition, endPartition int) string {
	return fmt.Sprintf("TRUNCATE TABLE [%s].[%s] WITH (PARTITIONS (%d TO %d))", schema, table, startPartition, endPartition)
}

// ---------------------------------------------------------------------------
// Columns

func columnDetailBase(schema, table string) string {
	return fmt.Sprintf(`SELECT
sc.name,
isc.DATA_TYPE as [data_type],
isc.CHARACTER_MAXIMUM_LENGTH as [char_max_len],
isc.DATETIME_PRECISION as [datetime_precision],
isc.NUMERIC_PRECISION as [numeric_precision],
isc.NUMERIC_SCALE as [numeric_scale],
sc.is_nullable as [nullable],
sc.is_identity as [identity]
FROM sys.columns sc
JOIN sys.tables t ON t.object_id = sc.object_id
JOIN sys.schemas s ON s.schema_id = t.schema_id
JOIN INFORMATION_SCHEMA.COLUMNS isc ON isc.TABLE_SCHEMA = s.name AND isc.TABLE_NAME = t.name AND isc.COLUMN_NAME=sc.name
WHERE s.name = '%s' AND t.name='%s'`, schema, table)
}

func TableColumnDetails(schema, table string) string {
	return columnDetailBase(schema, table) + " ORDER BY sc.column_id"
}

func ColumnDetail(schema, table, column string) string {
	return columnDetailBase(schema, table) + fmt.Sprintf(" AND sc.name = '%s'", column)
}

func ColumnExists(schema, table, column string) string {
	return fmt.Sprintf("SELECT 1 AS present FROM sys.columns WHERE object_id=OBJECT_ID('[%s].[%s]') AND name = '%s'", schema, table, column)
}

func AddColumn(schema, table, columnDef string) string {
	return fmt.Sprintf("ALTER TABLE [%s].[%s] ADD %s", schema, table, columnDef)
}

func AlterColumn(schema, table, columnDef string) string {
	return fmt.Sprintf("ALTER TABLE [%s].[%s] ALTER COLUMN %s", schema, table, columnDef)
}

func DropColumn(schema, table, column string) string {
	return fmt.Sprintf("ALTER TABLE [%s].[%s] DROP COLUMN [%s]", schema, table, column)
}

func RenameColumn(schema, table, oldName, newName string) string {
	return fmt.Sprintf("exec sp_rename '[%s].[%s].[%s]', '%s', 'COLUMN'", schema, table, oldName, newName)
}

// ---------------------------------------------------------------------------
// Indexes and primary keys

func tableIndexDetails(schema, table string) string {
	return fmt.Sprintf(`SELECT
ind.name as [index_name],
ind.index_id as [index_id],
ind.type_desc as [type_desc],
ind.is_primary_key,
ind.is_unique as [unique],
ind.is_unique_constraint AS is_unique_constraint,
sp.data_compression_desc as [compression]
FROM sys.indexes ind
INNER JOIN sys.partitions sp ON sp.object_id = ind.object_id AND sp.index_id = ind.index_id
WHERE ind.object_id = OBJECT_ID('[%s].[%s]')`, schema, table)
}

func NamedIndexDetail(schema, table, indexName string) string {
	return tableIndexDetails(schema, table) + fmt.Sprintf(" AND ind.name = '%s'", indexName)
}

func TableIndexNames(schema, table string) string {
	return fmt.Sprintf("SELECT name FROM sys.indexes WHERE is_primary_key=0 AND type IN (1,2) AND object_id=OBJECT_ID('%s.%s')", schema, table)
}

func IndexExists(schema, table, indexName string) string {
	return fmt.Sprintf("SELECT 1 AS present FROM sys.indexes WHERE name='%s' AND object_id=OBJECT_ID('%s.%s')", indexName, schema, table)
}

func PrimaryKeyExists(schema, table, indexName string) string {
	return IndexExists(schema, table, indexName) + " AND is_primary_key=1"
}

func TablePrimaryKeyName(schema, table string) string {
	return fmt.Sprintf("SELECT name FROM sys.indexes WHERE is_primary_key=1 AND object_id=OBJECT_ID('%s.%s')", schema, table)
}

func TablePrimaryKeyColumns(schema, table string) string {
	return fmt.Sprintf(`SELECT
kc.name as pk_name,
c.NAME as column_name
FROM sys.key_constraints kc
INNER JOIN sys.index_columns ic ON kc.parent_object_id = ic.object_id AND kc.unique_index_id = ic.index_id
INNER JOIN sys.columns c ON ic.object_id = c.object_id AND ic.column_id = c.column_id
WHERE kc.[type] = 'PK' AND c.object_id = OBJECT_ID('[%s].[%s]')
ORDER BY ic.key_ordinal`, schema, table)
}

func indexColumnsBase(schema, table, indexName string) string {
	return fmt.Sprintf(`SELECT
ind.name as index_name,
ind.index_id as index_id,
ic.index_column_id as index_column_id,
col.name as column_name
FROM sys.indexes ind
INNER JOIN sys.index_columns ic ON ind.object_id = ic.object_id AND ind.index_id = ic.index_id
INNER JOIN sys.columns col ON ic.object_id = col.object_id AND ic.column_id = col.column_id
WHERE ind.name='%s' AND ind.object_id = OBJECT_ID('[%s].[%s]')`, indexName, schema, table)
}

const indexColumnsOrder = " ORDER BY ind.index_id, ic.key_ordinal"

func IndexNonPartitionColumns(schema, table, indexName string) string {
	return indexColumnsBase(schema, table, indexName) + " AND ic.is_included_column = 0 AND ic.partition_ordinal = 0" + indexColumnsOrder
}

func IndexAllColumns(schema, table, indexName string) string {
	return indexColumnsBase(schema, table, indexName) + " AND ic.is_included_column = 0" + indexColumnsOrder
}

func IndexIncludedColumns(schema, table, indexName string) string {
	return indexColumnsBase(schema, table, indexName) + " AND ic.is_included_column = 1" + indexColumnsOrder
}

func RenameIndex(schema, table, oldName, newName string) string {
	return fmt.Sprintf("exec sp_rename '[%s].[%s].[%s]', '%s', 'INDEX'", schema, table, oldName, newName)
}

// IndexSpec carries the attributes needed to render CREATE INDEX text.
type IndexSpec struct {
	Name            string
	Columns         []string
	Clustered       bool
	Unique          bool
	IncludedColumns []string
	Compression     string
	DropExisting    bool
	CreateOn        string // partition scheme clause or [PRIMARY]
}

func CreateIndex(schema, table string, spec IndexSpec) string {
	unique := ""
	if spec.Unique {
		unique = "UNIQUE "
	}
	include := ""
	if len(spec.IncludedColumns) > 0 {
		include = fmt.Sprintf(" INCLUDE (%s)", strings.Join(spec.IncludedColumns, ", "))
	}
	createOn := spec.CreateOn
	if createOn == "" {
		createOn = "[PRIMARY]"
	}
	return fmt.Sprintf("CREATE %s%s INDEX [%s] ON [%s].[%s] (%s)%s WITH (DATA_COMPRESSION = %s, DROP_EXISTING=%s) ON %s",
		unique, clustering(spec.Clustered), spec.Name, schema, table,
		strings.Join(spec.Columns, ", "), include, spec.Compression, onOff(spec.DropExisting), createOn)
}

func CreatePrimaryKey(schema, table, pkName string, columns []string, clustered bool, compression string) string {
	return fmt.Sprintf("ALTER TABLE [%s].[%s] ADD CONSTRAINT %s PRIMARY KEY %s (%s) WITH (DATA_COMPRESSION = %s)",
		schema, table, pkName, clustering(clustered), strings.Join(columns, ", "), compression)
}

func DropIndex(schema, table, indexName string) string {
	return fmt.Sprintf("DROP INDEX [%s] ON [%s].[%s]", indexName, schema, table)
}

func AlterIndexRebuild(schema, table, indexName, compression string, online bool) string {
	return fmt.Sprintf("ALTER INDEX [%s] ON [%s].[%s] REBUILD PARTITION = ALL WITH (DATA_COMPRESSION = %s, ONLINE = %s)",
		indexName, schema, table, compression, onOff(online))
}

func DropConstraint(schema, table, constraintName string) string {
	return fmt.Sprintf("ALTER TABLE [%s].[%s] DROP CONSTRAINT %s", schema, table, constraintName)
}

// ---------------------------------------------------------------------------
// Foreign keys

func TableForeignKeys(schema, table string) string {
	return fmt.Sprintf("SELECT name, type FROM sys.foreign_keys WHERE parent_object_id = OBJECT_ID('[%s].[%s]')", schema, table)
}

func ForeignKeyDetail(schema, table, fkName string) string {
	return fmt.Sprintf(`SELECT
OBJECT_SCHEMA_NAME(fkc.referenced_object_id) as [foreign_schema],
OBJECT_NAME(fkc.referenced_object_id) as [foreign_table],
COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id) as [foreign_column],
COL_NAME(fkc.parent_object_id, fkc.parent_column_id) as [column],
fk.name as [constraint_name]
FROM sys.foreign_key_columns fkc
JOIN sys.foreign_keys fk ON fk.object_id = fkc.constraint_object_id
WHERE fkc.parent_object_id = OBJECT_ID('[%s].[%s]') AND fk.name = '%s'`, schema, table, fkName)
}

func CreateForeignKey(schema, table, fkName, column, foreignSchema, foreignTable, foreignColumn string) string {
	return fmt.Sprintf("ALTER TABLE [%s].[%s] ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES [%s].[%s](%s)",
		schema, table, fkName, column, foreignSchema, foreignTable, foreignColumn)
}

// ---------------------------------------------------------------------------
// Partitions

func tablePartitionNamesBase(schema, table string) string {
	return fmt.Sprintf(`SELECT ps.name as ps_name, pf.name as pf_name
FROM sys.indexes i
JOIN sys.partition_schemes ps ON ps.data_space_id = i.data_space_id
JOIN sys.partition_functions pf ON pf.function_id = ps.function_id
WHERE i.object_id = object_id('%s.%s') AND i.type IN (0,1)`, schema, table)
}

func TablePartitionNames(schema, table string) string {
	return tablePartitionNamesBase(schema, table)
}

func PartitionNameExistsOnTable(schema, table, psName string) string {
	return tablePartitionNamesBase(schema, table) + fmt.Sprintf(" AND ps.name = '%s'", psName)
}

func tablePartitionDetails(schema, table string) string {
	return fmt.Sprintf(`SELECT c.name AS column_name, ps.name as ps_name, pf.name as pf_name
FROM sys.tables t
JOIN sys.indexes i ON (i.object_id = t.object_id)
JOIN sys.index_columns ic ON (ic.index_id = i.index_id AND ic.object_id = t.object_id)
JOIN sys.columns c ON (c.object_id = ic.object_id AND c.column_id = ic.column_id)
JOIN sys.partition_schemes ps ON ps.data_space_id = i.data_space_id
JOIN sys.partition_functions pf ON pf.function_id = ps.function_id
WHERE t.object_id = object_id('%s.%s') AND ic.partition_ordinal > 0 AND i.index_id < 2`, schema, table)
}

func TablePartitionDetailForColumn(schema, table, column string) string {
	return tablePartitionDetails(schema, table) + fmt.Sprintf(" AND c.name = '%s'", column)
}

func TablePartitionDetailForScheme(schema, table, psName string) string {
	return tablePartitionDetails(schema, table) + fmt.Sprintf(" AND ps.name = '%s'", psName)
}

func CreatePartitionFunction(pfName, columnType string, boundaryValues []string) string {
	quoted := util.TransformSlice(boundaryValues, func(value string) string {
		return "'" + value + "'"
	})
	return fmt.Sprintf("CREATE PARTITION FUNCTION %s (%s) AS RANGE RIGHT FOR VALUES (%s)",
		pfName, columnType, strings.Join(quoted, ", "))
}

func CreatePartitionScheme(psName, pfName string) string {
	return fmt.Sprintf("CREATE PARTITION SCHEME %s AS PARTITION %s ALL TO ([PRIMARY])", psName, pfName)
}

func DropPartitionFunction(pfName string) string {
	return fmt.Sprintf("DROP PARTITION FUNCTION %s", pfName)
}

func DropPartitionScheme(psName string) string {
	return fmt.Sprintf("DROP PARTITION SCHEME %s", psName)
}

func PartitionFunctionForScheme(psName string) string {
	return fmt.Sprintf(`SELECT pf.name as name
FROM sys.partition_functions pf
JOIN sys.partition_schemes ps on ps.function_id = pf.function_id
WHERE ps.name = '%s'`, psName)
}

func PartitionRangeValues(psName string) string {
	return fmt.Sprintf(`SELECT CAST(sprv.value AS [datetime2](0)) as value
FROM sys.partition_functions spf
JOIN sys.partition_schemes sps ON spf.function_id = sps.function_id
INNER JOIN sys.partition_range_values sprv ON sprv.function_id=spf.function_id
WHERE (sps.name='%s')
ORDER BY sprv.boundary_id ASC`, psName)
}

func PartitionNumberForValue(pfName, value string) string {
	return fmt.Sprintf("SELECT $PARTITION.%s('%s') AS number", pfName, value)
}

func SetPartitionNextFilegroup(psName string) string {
	return fmt.Sprintf("ALTER PARTITION SCHEME [%s] NEXT USED [PRIMARY]", psName)
}

func SplitPartitionRange(pfName, newDate string) string {
	return fmt.Sprintf("ALTER PARTITION FUNCTION %s() SPLIT RANGE ('%s')", pfName, newDate)
}

func MergePartitionRange(pfName, mergeDate string) string {
	return fmt.Sprintf("ALTER PARTITION FUNCTION %s() MERGE RANGE ('%s')", pfName, mergeDate)
}

// PartitionFunctionName derives the generated partition function name for a
// table column; PartitionSchemeName the matching scheme name.
func PartitionFunctionName(dbName, table, column string) string {
	return fmt.Sprintf("pf_%s_%s_%s", dbName, table, column)
}

func PartitionSchemeName(dbName, table, column string) string {
	return fmt.Sprintf("ps_%s_%s_%s", dbName, table, column)
}
