package schema

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	// ErrDuplicateTable is returned when a table name is registered twice.
	ErrDuplicateTable = errors.New("table already registered")

	// ErrUnknownTable is returned when a table or a foreign key target is not registered.
	ErrUnknownTable = errors.New("unknown table")

	// ErrInvalidTable is returned when a table definition is malformed.
	ErrInvalidTable = errors.New("invalid table")
)

// Registry is the set of tables an application declares. Tables are kept in
// registration order, which is also a valid creation order because every
// foreign key must point at an already registered table.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	tables map[string]Table
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]Table)}
}

// Register adds a table definition.
func (r *Registry) Register(t Table) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tables[t.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTable, t.Name)
	}
	if err := r.validateLocked(t); err != nil {
		return err
	}
	r.order = append(r.order, t.Name)
	r.tables[t.Name] = t.Clone()
	return nil
}

// Replace swaps the definition of an already registered table.
func (r *Registry) Replace(t Table) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tables[t.Name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, t.Name)
	}
	if err := r.validateLocked(t); err != nil {
		return err
	}
	r.tables[t.Name] = t.Clone()
	return nil
}

// Remove drops a table definition.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tables[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	delete(r.tables, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Table returns a copy of the named table.
func (r *Registry) Table(name string) (Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tables[name]
	if !ok {
		return Table{}, false
	}
	return t.Clone(), true
}

// Tables returns copies of all tables in registration order.
func (r *Registry) Tables() []Table {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Table, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tables[name].Clone())
	}
	return out
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := NewRegistry()
	out.order = append(out.order, r.order...)
	for name, t := range r.tables {
		out.tables[name] = t.Clone()
	}
	return out
}

func (r *Registry) validateLocked(t Table) error {
	if t.Name == "" {
		return fmt.Errorf("%w: table name is required", ErrInvalidTable)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("%w: %s has no columns", ErrInvalidTable, t.Name)
	}

	seen := make(map[string]bool, len(t.Columns))
	primary := 0
	for _, c := range t.Columns {
		if c.Name == "" || c.Type == "" {
			return fmt.Errorf("%w: %s has a column without name or type", ErrInvalidTable, t.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: %s.%s declared twice", ErrInvalidTable, t.Name, c.Name)
		}
		seen[c.Name] = true
		if c.PrimaryKey {
			primary++
		}
		if fk := c.References; fk != nil {
			if fk.OnDelete == SetNull && !c.Nullable {
				return fmt.Errorf("%w: %s.%s uses SET NULL but is not nullable", ErrInvalidTable, t.Name, c.Name)
			}
			target, ok := r.tables[fk.Table]
			if fk.Table == t.Name {
				target, ok = t, true
			}
			if !ok {
				return fmt.Errorf("%w: %s.%s references %s", ErrUnknownTable, t.Name, c.Name, fk.Table)
			}
			if _, ok := target.Column(fk.Column); !ok {
				return fmt.Errorf("%w: %s.%s references missing column %s.%s", ErrInvalidTable, t.Name, c.Name, fk.Table, fk.Column)
			}
		}
	}
	if primary != 1 {
		return fmt.Errorf("%w: %s must have exactly one primary key column", ErrInvalidTable, t.Name)
	}
	return nil
}

// Diff lists the differences between a wanted and an actual registry.
// An empty result means both declare the same tables and columns.
func Diff(want, got *Registry) []string {
	var diffs []string

	for _, wt := range want.Tables() {
		gt, ok := got.Table(wt.Name)
		if !ok {
			diffs = append(diffs, fmt.Sprintf("missing table %s", wt.Name))
			continue
		}
		for _, wc := range wt.Columns {
			gc, ok := gt.Column(wc.Name)
			if !ok {
				diffs = append(diffs, fmt.Sprintf("missing column %s.%s", wt.Name, wc.Name))
				continue
			}
			if !reflect.DeepEqual(normalize(wc), normalize(gc)) {
				diffs = append(diffs, fmt.Sprintf("column %s.%s differs: want %q, got %q", wt.Name, wc.Name, describe(wc), describe(gc)))
			}
		}
		for _, gc := range gt.Columns {
			if _, ok := wt.Column(gc.Name); !ok {
				diffs = append(diffs, fmt.Sprintf("unexpected column %s.%s", wt.Name, gc.Name))
			}
		}
	}
	for _, gt := range got.Tables() {
		if _, ok := want.Table(gt.Name); !ok {
			diffs = append(diffs, fmt.Sprintf("unexpected table %s", gt.Name))
		}
	}
	return diffs
}

func normalize(c Column) Column {
	c = c.Clone()
	if len(c.Choices) == 0 {
		c.Choices = nil
	}
	return c
}

func describe(c Column) string {
	d := c.Definition()
	if expr := c.CheckExpr(); expr != "" {
		d += " CHECK (" + expr + ")"
	}
	return d
}
