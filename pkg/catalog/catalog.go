// Package catalog creates the content-metadata table through a DDL executor.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/unijord/contentmeta/pkg/config"
	"github.com/unijord/contentmeta/pkg/schema"
)

// NamespaceExistsMessage is the message catalogs report when the database
// being created already exists.
const NamespaceExistsMessage = "A namespace with an identical name already exists"

var (
	// ErrNamespaceExists is returned when creating a database that already exists.
	ErrNamespaceExists = errors.New(NamespaceExistsMessage)

	// ErrNamespaceNotFound is returned when a table is created in a missing database.
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrTableNotFound is returned when a table lookup finds nothing.
	ErrTableNotFound = errors.New("table not found")

	// ErrUnsupportedStatement is returned for statements the catalog does not know.
	ErrUnsupportedStatement = errors.New("unsupported statement")
)

// Executor runs DDL statements.
type Executor interface {
	ExecuteSQL(ctx context.Context, stmt string) error
}

// IsNamespaceExists reports whether err means the database already exists.
func IsNamespaceExists(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNamespaceExists) || strings.Contains(err.Error(), NamespaceExistsMessage)
}

// EnsureTable creates the database and the table described by s.
// An already existing database is logged and otherwise ignored.
func EnsureTable(ctx context.Context, exec Executor, values config.Values, s schema.ColumnSchema, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "catalog")

	dbStmt, err := schema.RenderCreateDatabaseStatement(values)
	if err != nil {
		return err
	}
	tableStmt, err := schema.RenderCreateTableStatement(values, s)
	if err != nil {
		return err
	}
	ident, err := schema.ResolveTableIdent(values)
	if err != nil {
		return err
	}

	if err := exec.ExecuteSQL(ctx, dbStmt); err != nil {
		if !IsNamespaceExists(err) {
			return fmt.Errorf("create database %s.%s: %w", ident.Catalog, ident.Database, err)
		}
		logger.Info("namespace already exists",
			"catalog", ident.Catalog,
			"database", ident.Database,
		)
	}

	if err := exec.ExecuteSQL(ctx, tableStmt); err != nil {
		return fmt.Errorf("create table %s: %w", ident, err)
	}

	logger.Info("table ready",
		"table", ident.String(),
		"columns", s.Len(),
	)
	return nil
}
