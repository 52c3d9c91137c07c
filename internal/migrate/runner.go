package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// Status is the applied state of one migration.
type Status struct {
	Key       Key
	Version   int64
	Applied   bool
	AppliedAt time.Time
}

// Runner applies a migration graph to a database. Each migration becomes a
// goose Go migration, run inside its own transaction.
type Runner struct {
	provider  *goose.Provider
	steps     []Compiled
	byKey     map[Key]Compiled
	byVersion map[int64]Compiled
	logger    *zap.Logger
}

// NewRunner compiles the graph and prepares a goose provider for db. The
// runner owns db from here on: it is closed by Close, or immediately when
// NewRunner fails.
func NewRunner(db *sql.DB, g *Graph, logger *zap.Logger) (*Runner, error) {
	r, err := newRunner(db, g, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func newRunner(db *sql.DB, g *Graph, logger *zap.Logger) (*Runner, error) {
	plan, err := g.Plan()
	if err != nil {
		return nil, err
	}
	steps, _, err := Compile(plan)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		steps:     steps,
		byKey:     make(map[Key]Compiled, len(steps)),
		byVersion: make(map[int64]Compiled, len(steps)),
		logger:    logger,
	}

	goMigrations := make([]*goose.Migration, 0, len(steps))
	for _, step := range steps {
		r.byKey[step.Migration.Key] = step
		r.byVersion[step.Migration.Version] = step
		goMigrations = append(goMigrations, goose.NewGoMigration(
			step.Migration.Version,
			&goose.GoFunc{RunTx: execAll(step.Up)},
			&goose.GoFunc{RunTx: execAll(step.Down)},
		))
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, nil,
		goose.WithDisableGlobalRegistry(true),
		goose.WithAllowOutofOrder(true),
		goose.WithGoMigrations(goMigrations...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	r.provider = provider
	return r, nil
}

func execAll(stmts []string) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to execute %q: %w", stmt, err)
			}
		}
		return nil
	}
}

// Steps returns the compiled migrations in apply order.
func (r *Runner) Steps() []Compiled {
	return r.steps
}

// Up applies every pending migration and returns the keys it applied.
func (r *Runner) Up(ctx context.Context) ([]Key, error) {
	results, err := r.provider.Up(ctx)
	applied := r.logResults(results, "up")
	if err != nil {
		return applied, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if len(applied) == 0 {
		r.logger.Info("No migrations to apply")
	}
	return applied, nil
}

// Down rolls back the most recently applied migration. With nothing applied
// it returns the zero Key and no error.
func (r *Runner) Down(ctx context.Context) (Key, error) {
	result, err := r.provider.Down(ctx)
	if errors.Is(err, goose.ErrNoNextVersion) {
		r.logger.Info("No migrations to roll back")
		return Key{}, nil
	}
	if err != nil {
		return Key{}, fmt.Errorf("failed to roll back migration: %w", err)
	}
	rolled := r.logResults([]*goose.MigrationResult{result}, "down")
	if len(rolled) == 0 {
		return Key{}, nil
	}
	return rolled[0], nil
}

// Apply applies a single migration. It is a no-op when the migration is
// already applied and fails with ErrDependencyNotApplied when any of its
// dependencies is still pending.
func (r *Runner) Apply(ctx context.Context, key Key) error {
	step, ok := r.byKey[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMigration, key)
	}

	statuses, err := r.Status(ctx)
	if err != nil {
		return err
	}
	applied := make(map[Key]bool, len(statuses))
	for _, s := range statuses {
		applied[s.Key] = s.Applied
	}

	if applied[key] {
		r.logger.Info("Migration already applied", zap.Stringer("migration", key))
		return nil
	}
	for _, dep := range step.Migration.Dependencies {
		if !applied[dep] {
			return fmt.Errorf("%w: %s requires %s", ErrDependencyNotApplied, key, dep)
		}
	}

	result, err := r.provider.ApplyVersion(ctx, step.Migration.Version, true)
	if err != nil {
		return fmt.Errorf("failed to apply %s: %w", key, err)
	}
	r.logResults([]*goose.MigrationResult{result}, "up")
	return nil
}

// Status reports every migration in apply order.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get migration status: %w", err)
	}
	out := make([]Status, 0, len(statuses))
	for _, s := range statuses {
		step, ok := r.byVersion[s.Source.Version]
		if !ok {
			continue
		}
		out = append(out, Status{
			Key:       step.Migration.Key,
			Version:   s.Source.Version,
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

// Version returns the highest applied migration version.
func (r *Runner) Version(ctx context.Context) (int64, error) {
	v, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get version: %w", err)
	}
	return v, nil
}

// Close closes the provider and the database it was given.
func (r *Runner) Close() error {
	return r.provider.Close()
}

func (r *Runner) logResults(results []*goose.MigrationResult, direction string) []Key {
	var keys []Key
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		step, ok := r.byVersion[res.Source.Version]
		if !ok {
			continue
		}
		if res.Error != nil {
			r.logger.Error("Migration failed",
				zap.Stringer("migration", step.Migration.Key),
				zap.String("direction", direction),
				zap.Error(res.Error),
			)
			continue
		}
		keys = append(keys, step.Migration.Key)
		r.logger.Info("Migration applied",
			zap.Stringer("migration", step.Migration.Key),
			zap.Int64("version", res.Source.Version),
			zap.String("direction", direction),
			zap.Duration("duration", res.Duration),
		)
	}
	return keys
}
