// Package migrate applies ordered, dependency-linked schema migrations to a
// Postgres database through goose.
package migrate

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"bookr/internal/schema"
)

var (
	// ErrDuplicateMigration is returned when two migrations share a key or a version.
	ErrDuplicateMigration = errors.New("duplicate migration")

	// ErrUnknownDependency is returned when a migration depends on one that is not in the graph.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrDependencyOrder is returned when a dependency does not have a lower version than its dependent.
	ErrDependencyOrder = errors.New("dependency must have a lower version")

	// ErrUnknownMigration is returned when a key does not name a migration in the graph.
	ErrUnknownMigration = errors.New("unknown migration")

	// ErrDependencyNotApplied is returned when applying a migration whose dependencies are pending.
	ErrDependencyNotApplied = errors.New("dependency not applied")

	// ErrSchemaDrift is returned when the migrated schema differs from the declared one.
	ErrSchemaDrift = errors.New("migrations do not match declared schema")
)

// Key identifies a migration by app label and name, e.g. reviews.0001_initial.
type Key struct {
	App  string
	Name string
}

func (k Key) String() string {
	return k.App + "." + k.Name
}

// ParseKey parses "app.name".
func ParseKey(s string) (Key, error) {
	app, name, ok := strings.Cut(s, ".")
	if !ok || app == "" || name == "" {
		return Key{}, fmt.Errorf("invalid migration key %q, expected app.name", s)
	}
	return Key{App: app, Name: name}, nil
}

// Migration is one step of schema history.
type Migration struct {
	Key
	// Version orders the migration in the database's linear history.
	Version      int64
	Dependencies []Key
	Operations   []Operation
}

// Graph holds a set of migrations and validates their dependencies.
type Graph struct {
	migrations map[Key]*Migration
	versions   map[int64]Key
}

// NewGraph builds a graph from the given migrations.
func NewGraph(migrations ...*Migration) (*Graph, error) {
	g := &Graph{
		migrations: make(map[Key]*Migration),
		versions:   make(map[int64]Key),
	}
	for _, m := range migrations {
		if err := g.Add(m); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Add registers a migration.
func (g *Graph) Add(m *Migration) error {
	if m.Version <= 0 {
		return fmt.Errorf("migration %s: version must be positive", m.Key)
	}
	if _, ok := g.migrations[m.Key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMigration, m.Key)
	}
	if other, ok := g.versions[m.Version]; ok {
		return fmt.Errorf("%w: %s and %s share version %d", ErrDuplicateMigration, other, m.Key, m.Version)
	}
	g.migrations[m.Key] = m
	g.versions[m.Version] = m.Key
	return nil
}

// Migration returns the migration with the given key.
func (g *Graph) Migration(key Key) (*Migration, bool) {
	m, ok := g.migrations[key]
	return m, ok
}

// Plan validates every dependency and returns the migrations in apply order.
// Every dependency must exist and carry a lower version, so version order is
// also a topological order of the graph.
func (g *Graph) Plan() ([]*Migration, error) {
	plan := make([]*Migration, 0, len(g.migrations))
	for _, m := range g.migrations {
		for _, dep := range m.Dependencies {
			d, ok := g.migrations[dep]
			if !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, m.Key, dep)
			}
			if d.Version >= m.Version {
				return nil, fmt.Errorf("%w: %s (version %d) depends on %s (version %d)", ErrDependencyOrder, m.Key, m.Version, dep, d.Version)
			}
		}
		plan = append(plan, m)
	}
	sort.Slice(plan, func(i, j int) bool {
		return plan[i].Version < plan[j].Version
	})
	return plan, nil
}

// Compiled is a migration rendered to SQL.
type Compiled struct {
	Migration *Migration
	Up        []string
	Down      []string
}

// Compile renders each planned migration to SQL, tracking the schema as it
// evolves. It returns the compiled steps and the final schema state.
func Compile(plan []*Migration) ([]Compiled, *schema.Registry, error) {
	state := schema.NewRegistry()
	out := make([]Compiled, 0, len(plan))
	for _, m := range plan {
		c := Compiled{Migration: m}
		var downs [][]string
		for _, op := range m.Operations {
			up, down, err := op.Compile(state)
			if err != nil {
				return nil, nil, fmt.Errorf("migration %s: %s: %w", m.Key, op.Describe(), err)
			}
			c.Up = append(c.Up, up...)
			downs = append(downs, down)
		}
		for i := len(downs) - 1; i >= 0; i-- {
			c.Down = append(c.Down, downs[i]...)
		}
		out = append(out, c)
	}
	return out, state, nil
}

// Check compiles the graph and compares the resulting schema with want.
func Check(g *Graph, want *schema.Registry) error {
	plan, err := g.Plan()
	if err != nil {
		return err
	}
	_, state, err := Compile(plan)
	if err != nil {
		return err
	}
	if diffs := schema.Diff(want, state); len(diffs) > 0 {
		return fmt.Errorf("%w: %s", ErrSchemaDrift, strings.Join(diffs, "; "))
	}
	return nil
}
