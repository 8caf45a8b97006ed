package sqlbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnDef(t *testing.T) {
	tests := []struct {
		name string
		spec ColumnSpec
		want string
	}{
		{
			name: "int not null",
			spec: ColumnSpec{Name: "id", DataType: "int"},
			want: "id int NOT NULL",
		},
		{
			name: "identity",
			spec: ColumnSpec{Name: "id", DataType: "int", Identity: true},
			want: "id int IDENTITY(1,1) NOT NULL",
		},
		{
			name: "varchar nullable",
			spec: ColumnSpec{Name: "name", DataType: "varchar", Nullable: true, CharMaxLen: 50},
			want: "name varchar(50) NULL",
		},
		{
			name: "numeric with scale",
			spec: ColumnSpec{Name: "amount", DataType: "numeric", NumericPrecision: 10, NumericScale: 2},
			want: "amount numeric(10,2) NOT NULL",
		},
		{
			name: "float precision only",
			spec: ColumnSpec{Name: "ratio", DataType: "float", NumericPrecision: 24, NumericScale: 0},
			want: "ratio float(24) NOT NULL",
		},
		{
			name: "datetime2 default precision",
			spec: ColumnSpec{Name: "created_at", DataType: "datetime2"},
			want: "created_at datetime2(7) NOT NULL",
		},
		{
			name: "date has no precision",
			spec: ColumnSpec{Name: "born_on", DataType: "date", Nullable: true},
			want: "born_on date NULL",
		},
		{
			name: "case folded type",
			spec: ColumnSpec{Name: "id", DataType: "INT"},
			want: "id int NOT NULL",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ColumnDef(test.spec)
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestColumnDefErrors(t *testing.T) {
	tests := []struct {
		name string
		spec ColumnSpec
	}{
		{"varchar without length", ColumnSpec{Name: "name", DataType: "varchar"}},
		{"numeric without precision", ColumnSpec{Name: "amount", DataType: "numeric"}},
		{"unknown type", ColumnSpec{Name: "blob", DataType: "geography"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ColumnDef(test.spec)
			assert.Error(t, err)
		})
	}
}

func TestTypeCategories(t *testing.T) {
	assert.True(t, IsNumericType("numeric"))
	assert.False(t, IsNumericType("float"))
	assert.True(t, HasNumericPrecision("float"))
	assert.True(t, HasDatetimePrecision("datetime2"))
	assert.False(t, HasDatetimePrecision("datetime"))
	assert.True(t, HasCharLength("nvarchar"))
	assert.True(t, IsDatetimeType("DATETIME2"))
	assert.False(t, IsDatetimeType("date"))
}

func TestCreateIndex(t *testing.T) {
	got := CreateIndex("dbo", "person", IndexSpec{
		Name:            "IX_name",
		Columns:         []string{"name"},
		IncludedColumns: []string{"created_at"},
		Compression:     "PAGE",
		DropExisting:    true,
	})
	assert.Equal(t,
		"CREATE NONCLUSTERED INDEX [IX_name] ON [dbo].[person] (name) INCLUDE (created_at) WITH (DATA_COMPRESSION = PAGE, DROP_EXISTING=ON) ON [PRIMARY]",
		got)
}

func TestCreateIndexOnPartitionScheme(t *testing.T) {
	got := CreateIndex("dbo", "person", IndexSpec{
		Name:        "IX_created_at",
		Columns:     []string{"created_at"},
		Clustered:   true,
		Unique:      true,
		Compression: "NONE",
		CreateOn:    "ps_app_person_created_at(created_at)",
	})
	assert.Equal(t,
		"CREATE UNIQUE CLUSTERED INDEX [IX_created_at] ON [dbo].[person] (created_at) WITH (DATA_COMPRESSION = NONE, DROP_EXISTING=OFF) ON ps_app_person_created_at(created_at)",
		got)
}

func TestCreatePrimaryKey(t *testing.T) {
	got := CreatePrimaryKey("dbo", "person", "PK_id", []string{"id"}, true, "NONE")
	assert.Equal(t,
		"ALTER TABLE [dbo].[person] ADD CONSTRAINT PK_id PRIMARY KEY CLUSTERED (id) WITH (DATA_COMPRESSION = NONE)",
		got)
}

func TestCreatePartitionFunction(t *testing.T) {
	got := CreatePartitionFunction("pf_app_person_created_at", "datetime2(7)",
		[]string{"20240309", "20240310"})
	assert.Equal(t,
		"CREATE PARTITION FUNCTION pf_app_person_created_at (datetime2(7)) AS RANGE RIGHT FOR VALUES ('20240309', '20240310')",
		got)
}

func TestCreateDatabase(t *testing.T) {
	assert.Equal(t, "CREATE DATABASE [app]", CreateDatabase("app", "", "", 0, 0))
	withFiles := CreateDatabase("app", `D:\data\app.mdf`, `E:\log\app_log.ldf`, 1000, 100)
	assert.Contains(t, withFiles, `FILENAME = N'D:\data\app.mdf'`)
	assert.Contains(t, withFiles, "SIZE = 1000MB")
	assert.Contains(t, withFiles, `FILENAME = N'E:\log\app_log.ldf'`)
	assert.Contains(t, withFiles, "SIZE = 100MB")
}

func TestGeneratedNames(t *testing.T) {
	assert.Equal(t, "pf_app_person_created_at", PartitionFunctionName("app", "person", "created_at"))
	assert.Equal(t, "ps_app_person_created_at", PartitionSchemeName("app", "person", "created_at"))
}
