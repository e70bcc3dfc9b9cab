package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gorm.io/gorm/schema"
)

//go:embed sql/pre_automigrate.sql
var preAutoMigrateSQL string

//go:embed sql/post_automigrate.sql
var postAutoMigrateSQL string

// migrationStep is one idempotent schema change applied in order.
type migrationStep struct {
	label string
	apply func(ctx context.Context, p *Pool) error
}

func migrationSteps() []migrationStep {
	return []migrationStep{
		{label: "extensions", apply: execSQL(preAutoMigrateSQL)},
		{label: "tables", apply: func(ctx context.Context, p *Pool) error {
			return p.gdb.WithContext(ctx).AutoMigrate(autoMigrateModels()...)
		}},
		{label: "indexes and constraints", apply: execSQL(postAutoMigrateSQL)},
	}
}

func execSQL(sqlText string) func(ctx context.Context, p *Pool) error {
	return func(ctx context.Context, p *Pool) error {
		trimmed := strings.TrimSpace(sqlText)
		if trimmed == "" {
			return nil
		}
		return p.gdb.WithContext(ctx).Exec(trimmed).Error
	}
}

// Migrate brings the schema up to date and returns the tables it manages. Every step is safe to repeat.
func (p *Pool) Migrate(ctx context.Context) ([]string, error) {
	if p == nil || p.gdb == nil {
		return nil, errPoolNotInitialized
	}

	for _, step := range migrationSteps() {
		if err := step.apply(ctx, p); err != nil {
			return nil, fmt.Errorf("migrate %s: %w", step.label, err)
		}
	}

	tables := make([]string, 0, len(autoMigrateModels()))
	for _, model := range autoMigrateModels() {
		if tabler, ok := model.(schema.Tabler); ok {
			tables = append(tables, tabler.TableName())
		}
	}
	return tables, nil
}
