package reflected

import (
	"fmt"
	"strings"
	"time"

	"github.com/sqlalign/sqlalign/database"
	"github.com/sqlalign/sqlalign/declared"
	"github.com/sqlalign/sqlalign/entity"
	"github.com/sqlalign/sqlalign/sqlbuild"
)

// A partition node stands for the partition scheme bound to a table; its name
// is the scheme name and its identity is the partitioned column. Boundaries
// are daily, RANGE RIGHT.

const partitionDateFormat = "20060102"

// boundarySpan is the number of daily boundaries created on each side of the
// observed data range for a new partition function.
const boundarySpan = 5

var timeNow = time.Now

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func partitionOps() *ops {
	return &ops{
		canCreate: true,

		listNames: func(parent *Node) ([]string, error) {
			return queryNames(parent.exec,
				sqlbuild.TablePartitionNames(parent.schemaName(), parent.name), "ps_name")
		},
		nameExists: func(parent *Node, name string) (bool, error) {
			return queryExists(parent, sqlbuild.PartitionNameExistsOnTable(
				parent.schemaName(), parent.name, name))
		},
		fromDeclared: func(parent *Node, d *declared.Node) (*Node, error) {
			row, err := database.QueryRow(parent.exec, sqlbuild.TablePartitionDetailForColumn(
				parent.schemaName(), parent.name, attrString(d, "column")))
			if err != nil {
				return nil, err
			}
			if row == nil {
				return nil, fmt.Errorf("partition on %q column %q: %w",
					parent.FullName(), attrString(d, "column"), entity.ErrNotExist)
			}
			return newNode(entity.Partition, row.String("ps_name"), parent, parent.exec, parent.confirm)
		},
		equate: func(n *Node, d *declared.Node) (bool, error) {
			column, err := n.Attr("column")
			if err != nil {
				return false, err
			}
			return strings.EqualFold(fmt.Sprint(column), attrString(d, "column")), nil
		},
		create: createPartition,
		detail: func(n *Node) (database.Row, error) {
			return database.QueryRow(n.exec, sqlbuild.TablePartitionDetailForScheme(
				n.parent.schemaName(), n.parent.name, n.name))
		},
		getters: map[string]getterFunc{
			"column": func(_ *Node, detail database.Row) (any, error) {
				return strings.ToLower(detail.String("column_name")), nil
			},
		},
		drop: dropPartition,
	}
}

// createPartition builds a daily RANGE RIGHT function spanning the column's
// current minimum to maximum value plus a buffer on each side (or around
// today for an empty table), binds a scheme to it, then moves the table's
// indexes onto the scheme.
func createPartition(parent *Node, d *declared.Node) error {
	columnName := attrString(d, "column")
	column, err := parent.Child(entity.Column, columnName)
	if err != nil {
		return err
	}
	dataType, err := column.Attr("data_type")
	if err != nil {
		return err
	}
	if !sqlbuild.IsDatetimeType(fmt.Sprint(dataType)) {
		return fmt.Errorf("partition on %q: column %q has type %v, want a datetime type",
			parent.FullName(), columnName, dataType)
	}
	precision, err := column.Attr("datetime_precision")
	if err != nil {
		return err
	}
	columnType, err := sqlbuild.DataTypeDef(sqlbuild.ColumnSpec{
		Name:              columnName,
		DataType:          fmt.Sprint(dataType),
		DatetimePrecision: precision,
	})
	if err != nil {
		return err
	}

	start := dateOnly(timeNow())
	end := start
	row, err := database.QueryRow(parent.exec,
		sqlbuild.MinColumnValue(parent.schemaName(), parent.name, columnName))
	if err != nil {
		return err
	}
	if row != nil && !row.IsNull("value") {
		start = dateOnly(row.Time("value"))
		end = start
		row, err = database.QueryRow(parent.exec,
			sqlbuild.MaxColumnValue(parent.schemaName(), parent.name, columnName))
		if err != nil {
			return err
		}
		if row != nil && !row.IsNull("value") {
			end = dateOnly(row.Time("value"))
		}
	}
	var boundaries []string
	last := end.AddDate(0, 0, boundarySpan)
	for day := start.AddDate(0, 0, -boundarySpan); !day.After(last); day = day.AddDate(0, 0, 1) {
		boundaries = append(boundaries, day.Format(partitionDateFormat))
	}

	dbName := parent.AncestorName(entity.Database)
	pfName := sqlbuild.PartitionFunctionName(dbName, parent.name, columnName)
	psName := sqlbuild.PartitionSchemeName(dbName, parent.name, columnName)
	if err := parent.exec.Exec(sqlbuild.CreatePartitionFunction(pfName, columnType, boundaries)); err != nil {
		return err
	}
	if err := parent.exec.Exec(sqlbuild.CreatePartitionScheme(psName, pfName)); err != nil {
		return err
	}
	if err := parent.exec.Commit(); err != nil {
		return err
	}
	return parent.RecreateIndexesOnFilegroup(fmt.Sprintf("%s(%s)", psName, columnName))
}

// dropPartition moves the table's indexes back to the default filegroup, then
// removes the scheme and its function.
func dropPartition(n *Node) (bool, error) {
	pfName, err := n.FunctionName()
	if err != nil {
		return false, err
	}
	if err := n.parent.RecreateIndexesOnFilegroup("[PRIMARY]"); err != nil {
		return false, err
	}
	if err := n.exec.Exec(sqlbuild.DropPartitionScheme(n.name)); err != nil {
		return false, err
	}
	if err := n.exec.Exec(sqlbuild.DropPartitionFunction(pfName)); err != nil {
		return false, err
	}
	return true, nil
}

// FunctionName resolves the partition function behind this scheme.
func (n *Node) FunctionName() (string, error) {
	row, err := database.QueryRow(n.exec, sqlbuild.PartitionFunctionForScheme(n.name))
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", fmt.Errorf("partition scheme %q: no function found", n.name)
	}
	return row.String("name"), nil
}

// BoundaryValues returns the function's range boundaries in ascending order.
func (n *Node) BoundaryValues() ([]time.Time, error) {
	rows, err := n.exec.Query(sqlbuild.PartitionRangeValues(n.name))
	if err != nil {
		return nil, err
	}
	values := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.Time("value"))
	}
	return values, nil
}

// NumberForValue returns the partition number holding the given value.
func (n *Node) NumberForValue(value time.Time) (int, error) {
	pfName, err := n.FunctionName()
	if err != nil {
		return 0, err
	}
	row, err := database.QueryRow(n.exec,
		sqlbuild.PartitionNumberForValue(pfName, value.Format(partitionDateFormat)))
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, fmt.Errorf("partition function %q: no partition number for %s", pfName, value.Format(partitionDateFormat))
	}
	return row.Int("number"), nil
}

// ExtendRange splits daily boundaries until the range covers the given date.
// Splits run as they are issued so a failure leaves a consistent prefix.
func (n *Node) ExtendRange(to time.Time) error {
	boundaries, err := n.BoundaryValues()
	if err != nil {
		return err
	}
	if len(boundaries) == 0 {
		return fmt.Errorf("partition scheme %q has no boundaries", n.name)
	}
	pfName, err := n.FunctionName()
	if err != nil {
		return err
	}
	for last := boundaries[len(boundaries)-1]; last.Before(to); {
		last = last.AddDate(0, 0, 1)
		if err := n.exec.Exec(sqlbuild.SetPartitionNextFilegroup(n.name)); err != nil {
			return err
		}
		if err := n.exec.Exec(sqlbuild.SplitPartitionRange(pfName, last.Format(partitionDateFormat))); err != nil {
			return err
		}
		if err := n.exec.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// MergeUntil merges away every boundary up to and including the given date,
// folding old partitions into their neighbor.
func (n *Node) MergeUntil(until time.Time) error {
	boundaries, err := n.BoundaryValues()
	if err != nil {
		return err
	}
	pfName, err := n.FunctionName()
	if err != nil {
		return err
	}
	for _, boundary := range boundaries {
		if boundary.After(until) {
			break
		}
		if err := n.exec.Exec(sqlbuild.MergePartitionRange(pfName, boundary.Format(partitionDateFormat))); err != nil {
			return err
		}
		if err := n.exec.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// TruncatePartitions empties a contiguous partition range of a table without
// logging row deletes. n is a table node.
func (n *Node) TruncatePartitions(start, end int) error {
	if err := n.exec.Exec(sqlbuild.TruncateTablePartitions(n.schemaName(), n.name, start, end)); err != nil {
		return err
	}
	return n.exec.Commit()
}
