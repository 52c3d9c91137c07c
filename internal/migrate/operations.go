package migrate

import (
	"fmt"
	"reflect"

	"bookr/internal/schema"
)

// Operation is a single schema change inside a migration.
type Operation interface {
	// Describe is a one-line summary used in plans and logs.
	Describe() string
	// Compile applies the change to state and returns the statements that
	// perform it (up) and undo it (down).
	Compile(state *schema.Registry) (up, down []string, err error)
}

// CreateTable creates a new table together with its foreign key indexes.
type CreateTable struct {
	Table schema.Table
}

func (op CreateTable) Describe() string {
	return "Create table " + op.Table.Name
}

func (op CreateTable) Compile(state *schema.Registry) ([]string, []string, error) {
	if err := state.Register(op.Table); err != nil {
		return nil, nil, err
	}
	up := append([]string{op.Table.CreateSQL()}, op.Table.IndexSQL()...)
	down := []string{fmt.Sprintf("DROP TABLE %s", op.Table.Name)}
	return up, down, nil
}

// DropTable drops a table. The down statements recreate it as it was.
type DropTable struct {
	Name string
}

func (op DropTable) Describe() string {
	return "Drop table " + op.Name
}

func (op DropTable) Compile(state *schema.Registry) ([]string, []string, error) {
	t, ok := state.Table(op.Name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", schema.ErrUnknownTable, op.Name)
	}
	for _, other := range state.Tables() {
		if other.Name == op.Name {
			continue
		}
		for _, c := range other.Columns {
			if c.References != nil && c.References.Table == op.Name {
				return nil, nil, fmt.Errorf("cannot drop %s: referenced by %s.%s", op.Name, other.Name, c.Name)
			}
		}
	}
	if err := state.Remove(op.Name); err != nil {
		return nil, nil, err
	}
	up := []string{fmt.Sprintf("DROP TABLE %s", op.Name)}
	down := append([]string{t.CreateSQL()}, t.IndexSQL()...)
	return up, down, nil
}

// AddColumn adds a column to an existing table.
type AddColumn struct {
	Table  string
	Column schema.Column
}

func (op AddColumn) Describe() string {
	return fmt.Sprintf("Add column %s to %s", op.Column.Name, op.Table)
}

func (op AddColumn) Compile(state *schema.Registry) ([]string, []string, error) {
	t, ok := state.Table(op.Table)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", schema.ErrUnknownTable, op.Table)
	}
	if _, exists := t.Column(op.Column.Name); exists {
		return nil, nil, fmt.Errorf("column %s.%s already exists", op.Table, op.Column.Name)
	}
	t.Columns = append(t.Columns, op.Column)
	if err := state.Replace(t); err != nil {
		return nil, nil, err
	}

	up := []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", op.Table, op.Column.Definition())}
	if expr := op.Column.CheckExpr(); expr != "" {
		up = append(up, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s)", op.Table, op.Column.CheckName(op.Table), expr))
	}
	if op.Column.NeedsIndex() {
		up = append(up, fmt.Sprintf("CREATE INDEX %s ON %s (%s)", op.Column.IndexName(op.Table), op.Table, op.Column.Name))
	}
	down := []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", op.Table, op.Column.Name)}
	return up, down, nil
}

// AlterColumn replaces a column's definition: type, nullability, uniqueness,
// choices and foreign key.
type AlterColumn struct {
	Table  string
	Column schema.Column
}

func (op AlterColumn) Describe() string {
	return fmt.Sprintf("Alter column %s on %s", op.Column.Name, op.Table)
}

func (op AlterColumn) Compile(state *schema.Registry) ([]string, []string, error) {
	t, ok := state.Table(op.Table)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", schema.ErrUnknownTable, op.Table)
	}
	var old schema.Column
	found := false
	for i, c := range t.Columns {
		if c.Name == op.Column.Name {
			old = c
			t.Columns[i] = op.Column
			found = true
			break
		}
	}
	if !found {
		return nil, nil, fmt.Errorf("column %s.%s does not exist", op.Table, op.Column.Name)
	}
	if old.PrimaryKey != op.Column.PrimaryKey {
		return nil, nil, fmt.Errorf("changing the primary key of %s is not supported", op.Table)
	}
	if err := state.Replace(t); err != nil {
		return nil, nil, err
	}
	return alterStatements(op.Table, old, op.Column), alterStatements(op.Table, op.Column, old), nil
}

func alterStatements(table string, from, to schema.Column) []string {
	var stmts []string
	alter := func(format string, args ...any) {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ", table)+fmt.Sprintf(format, args...))
	}
	name := to.Name

	if from.CheckExpr() != to.CheckExpr() && from.CheckExpr() != "" {
		alter("DROP CONSTRAINT IF EXISTS %s", from.CheckName(table))
	}
	if !reflect.DeepEqual(from.References, to.References) && from.References != nil {
		if from.NeedsIndex() {
			stmts = append(stmts, fmt.Sprintf("DROP INDEX IF EXISTS %s", from.IndexName(table)))
		}
		alter("DROP CONSTRAINT IF EXISTS %s_%s_fkey", table, name)
	}
	if from.Unique && !to.Unique {
		alter("DROP CONSTRAINT IF EXISTS %s_%s_key", table, name)
	}

	if from.Type != to.Type {
		alter("ALTER COLUMN %s TYPE %s USING %s::%s", name, to.Type, name, to.Type)
	}
	if from.Nullable != to.Nullable {
		if to.Nullable {
			alter("ALTER COLUMN %s DROP NOT NULL", name)
		} else {
			alter("ALTER COLUMN %s SET NOT NULL", name)
		}
	}

	if !from.Unique && to.Unique {
		alter("ADD CONSTRAINT %s_%s_key UNIQUE (%s)", table, name, name)
	}
	if !reflect.DeepEqual(from.References, to.References) && to.References != nil {
		fk := to.References
		stmt := fmt.Sprintf("ADD CONSTRAINT %s_%s_fkey FOREIGN KEY (%s) REFERENCES %s (%s)", table, name, name, fk.Table, fk.Column)
		if fk.OnDelete != "" && fk.OnDelete != schema.NoAction {
			stmt += " ON DELETE " + string(fk.OnDelete)
		}
		alter("%s", stmt)
		if to.NeedsIndex() {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s ON %s (%s)", to.IndexName(table), table, name))
		}
	}
	if from.CheckExpr() != to.CheckExpr() && to.CheckExpr() != "" {
		alter("ADD CONSTRAINT %s CHECK (%s)", to.CheckName(table), to.CheckExpr())
	}
	return stmts
}

// RunSQL runs hand-written statements. Down may be empty for irreversible changes.
type RunSQL struct {
	Description string
	Up          []string
	Down        []string
}

func (op RunSQL) Describe() string {
	if op.Description != "" {
		return op.Description
	}
	return "Raw SQL operation"
}

func (op RunSQL) Compile(*schema.Registry) ([]string, []string, error) {
	return op.Up, op.Down, nil
}
