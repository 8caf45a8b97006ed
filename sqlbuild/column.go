package sqlbuild

import (
	"fmt"
	"strings"
)

// Type categories controlling which parameters a data type carries.
var (
	intTypes                 = stringSet("bigint", "int", "smallint", "tinyint")
	numericTypes             = stringSet("decimal", "numeric")
	moneyTypes               = stringSet("money", "smallmoney")
	approxNumberTypes        = stringSet("float", "real")
	datetimeNoPrecisionTypes = stringSet("date", "datetime", "smalldatetime")
	datetimePrecisionTypes   = stringSet("time", "datetime2", "datetimeoffset")
	charTypes                = stringSet("char", "varchar", "nchar", "nvarchar", "binary", "varbinary")
)

// IsNumericType reports whether the type carries numeric precision.
func IsNumericType(dataType string) bool {
	return numericTypes[strings.ToLower(dataType)]
}

// HasNumericPrecision reports whether the type carries a precision parameter.
func HasNumericPrecision(dataType string) bool {
	lower := strings.ToLower(dataType)
	return numericTypes[lower] || approxNumberTypes[lower]
}

// HasDatetimePrecision reports whether the type carries a datetime precision.
func HasDatetimePrecision(dataType string) bool {
	return datetimePrecisionTypes[strings.ToLower(dataType)]
}

// HasCharLength reports whether the type carries a character length.
func HasCharLength(dataType string) bool {
	return charTypes[strings.ToLower(dataType)]
}

// IsDatetimeType reports whether the type can back a time-range partition.
func IsDatetimeType(dataType string) bool {
	lower := strings.ToLower(dataType)
	return lower == "datetime" || lower == "datetime2"
}

// ColumnSpec carries the attributes needed to render a column definition.
// Precision fields are nil when not applicable to the data type.
type ColumnSpec struct {
	Name              string
	DataType          string
	Identity          bool
	Nullable          bool
	CharMaxLen        any
	DatetimePrecision any
	NumericPrecision  any
	NumericScale      any
}

// ColumnDef renders the column clause used by CREATE TABLE, ADD and ALTER
// COLUMN statements.
func ColumnDef(spec ColumnSpec) (string, error) {
	dataType, err := DataTypeDef(spec)
	if err != nil {
		return "", err
	}
	parts := []string{spec.Name, dataType}
	if spec.Identity {
		parts = append(parts, "IDENTITY(1,1)")
	}
	if spec.Nullable {
		parts = append(parts, "NULL")
	} else {
		parts = append(parts, "NOT NULL")
	}
	return strings.Join(parts, " "), nil
}

// DataTypeDef renders the data type with its applicable parameters.
func DataTypeDef(spec ColumnSpec) (string, error) {
	dataType := strings.ToLower(spec.DataType)
	switch {
	case intTypes[dataType] || moneyTypes[dataType] || datetimeNoPrecisionTypes[dataType]:
		return dataType, nil
	case numericTypes[dataType] || approxNumberTypes[dataType]:
		precision, ok := intValue(spec.NumericPrecision)
		if !ok {
			return "", fmt.Errorf("column %q: numeric precision required for type %q", spec.Name, dataType)
		}
		if scale, ok := intValue(spec.NumericScale); ok && numericTypes[dataType] {
			return fmt.Sprintf("%s(%d,%d)", dataType, precision, scale), nil
		}
		return fmt.Sprintf("%s(%d)", dataType, precision), nil
	case datetimePrecisionTypes[dataType]:
		precision, ok := intValue(spec.DatetimePrecision)
		if !ok {
			precision = 7
		}
		return fmt.Sprintf("%s(%d)", dataType, precision), nil
	case charTypes[dataType]:
		length, ok := intValue(spec.CharMaxLen)
		if !ok {
			return "", fmt.Errorf("column %q: length required for type %q", spec.Name, dataType)
		}
		return fmt.Sprintf("%s(%d)", dataType, length), nil
	default:
		return "", fmt.Errorf("column %q: unsupported data type %q", spec.Name, spec.DataType)
	}
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}

func stringSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}
