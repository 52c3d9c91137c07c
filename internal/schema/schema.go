// Package schema holds explicit relational table definitions and renders
// them as Postgres DDL.
package schema

import (
	"fmt"
	"strings"
)

// OnDelete is the referential action taken when a referenced row is deleted.
type OnDelete string

const (
	NoAction OnDelete = "NO ACTION"
	Cascade  OnDelete = "CASCADE"
	SetNull  OnDelete = "SET NULL"
	Restrict OnDelete = "RESTRICT"
)

// ForeignKey points a column at another table's column.
type ForeignKey struct {
	Table    string
	Column   string
	OnDelete OnDelete
}

// Column describes a single table column. Choices restricts the column to a
// fixed set of values through a CHECK constraint.
type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
	Nullable   bool
	Unique     bool
	Choices    []string
	References *ForeignKey
}

// Table describes a table and its columns in declaration order.
type Table struct {
	Name    string
	Columns []Column
}

// Column returns the column with the given name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := Table{Name: t.Name, Columns: make([]Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = c.Clone()
	}
	return out
}

// Clone returns a deep copy of the column.
func (c Column) Clone() Column {
	out := c
	if c.Choices != nil {
		out.Choices = append([]string(nil), c.Choices...)
	}
	if c.References != nil {
		fk := *c.References
		out.References = &fk
	}
	return out
}

// CheckName is the name of the CHECK constraint guarding the column's choices.
func (c Column) CheckName(table string) string {
	return fmt.Sprintf("%s_%s_check", table, c.Name)
}

// CheckExpr renders the choice constraint expression, or "" when the column has no choices.
func (c Column) CheckExpr() string {
	if len(c.Choices) == 0 {
		return ""
	}
	values := make([]string, len(c.Choices))
	for i, v := range c.Choices {
		if c.isText() {
			values[i] = quoteLiteral(v)
		} else {
			values[i] = v
		}
	}
	return fmt.Sprintf("%s IN (%s)", c.Name, strings.Join(values, ", "))
}

// Definition renders the column as it appears inside CREATE TABLE or ADD COLUMN.
func (c Column) Definition() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte(' ')
	b.WriteString(c.Type)
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	} else if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	if fk := c.References; fk != nil {
		fmt.Fprintf(&b, " REFERENCES %s (%s)", fk.Table, fk.Column)
		if fk.OnDelete != "" && fk.OnDelete != NoAction {
			fmt.Fprintf(&b, " ON DELETE %s", fk.OnDelete)
		}
	}
	return b.String()
}

// IndexName is the name of the index created for a foreign key column.
func (c Column) IndexName(table string) string {
	return fmt.Sprintf("%s_%s_idx", table, c.Name)
}

// NeedsIndex reports whether the column gets its own index.
// Unique columns are already backed by the unique constraint's index.
func (c Column) NeedsIndex() bool {
	return c.References != nil && !c.Unique && !c.PrimaryKey
}

// CreateSQL renders the CREATE TABLE statement.
func (t Table) CreateSQL() string {
	lines := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		lines = append(lines, "    "+c.Definition())
	}
	for _, c := range t.Columns {
		if expr := c.CheckExpr(); expr != "" {
			lines = append(lines, fmt.Sprintf("    CONSTRAINT %s CHECK (%s)", c.CheckName(t.Name), expr))
		}
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", t.Name, strings.Join(lines, ",\n"))
}

// IndexSQL renders CREATE INDEX statements for the table's foreign key columns.
func (t Table) IndexSQL() []string {
	var stmts []string
	for _, c := range t.Columns {
		if c.NeedsIndex() {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s ON %s (%s)", c.IndexName(t.Name), t.Name, c.Name))
		}
	}
	return stmts
}

func (c Column) isText() bool {
	typ := strings.ToLower(c.Type)
	return typ == "text" || strings.HasPrefix(typ, "varchar") || strings.HasPrefix(typ, "char")
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
