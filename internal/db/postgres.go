// Package db wires the process's Postgres connection: DSN assembly
// from config.Config, the uuid-ossp extension the id columns rely on,
// and the one AutoMigrate call covering every table the core owns.
package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ontocore/ontocore-server/internal/branchstore"
	"github.com/ontocore/ontocore-server/internal/codesystem"
	"github.com/ontocore/ontocore-server/internal/config"
	"github.com/ontocore/ontocore-server/internal/domain"
	"github.com/ontocore/ontocore-server/internal/logger"
)

// Open dials Postgres from cfg, enables uuid-ossp and migrates every
// table (§3, §4.1, §4.5.3's CodeSystem.Version).
func Open(cfg config.Config, log *logger.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresName)

	log.Info("connecting to postgres")
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}

	if err := conn.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("db: enable uuid-ossp: %w", err)
	}

	if err := AutoMigrateAll(conn); err != nil {
		return nil, fmt.Errorf("db: migrate: %w", err)
	}
	return conn, nil
}

// AutoMigrateAll covers every table the core owns, shared by the
// process entrypoint and the Postgres-gated integration test harness.
func AutoMigrateAll(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&branchstore.Branch{},
		&branchstore.Commit{},

		&domain.Concept{},
		&domain.Description{},
		&domain.Relationship{},
		&domain.Identifier{},
		&domain.ReferenceSetMember{},
		&domain.QueryConcept{},
		&domain.CodeSystem{},

		&codesystem.Version{},
	)
}
