package neo4jmirror

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// BootstrapDatabase creates the given database, if missing, together with a
// node key on the id of twin nodes. The key both indexes lookups by id and
// prevents duplicate twin nodes caused by concurrent MERGEs.
//
// To execute queries against the created database, open a session with the
// database name as the default database. For example:
//
//	s := d.NewSession(ctx, neo4j.SessionConfig{DatabaseName: name})
//	defer func() { _ = s.Close(ctx) }()
//	... use s ...
//
// This function is idempotent. It panics if name is reserved by neo4j.
func BootstrapDatabase(ctx context.Context, d neo4j.DriverWithContext, name string) error {
	if err := createDatabase(ctx, d, name); err != nil {
		return fmt.Errorf("create database: %w", err)
	}

	s := d.NewSession(ctx, neo4j.SessionConfig{DatabaseName: name})
	defer func() { _ = s.Close(ctx) }()

	// Node keys are only available in the enterprise edition.
	_, err := s.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		_, err := tx.Run(ctx, `
			CREATE CONSTRAINT twin_id IF NOT EXISTS
			FOR (t:`+TwinLabel+`)
			REQUIRE t.id IS NODE KEY
		`, nil)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("key constraint: label %v: %w", TwinLabel, err)
	}
	return s.Close(ctx)
}

func createDatabase(ctx context.Context, d neo4j.DriverWithContext, name string) error {
	if name == "" {
		panic("neo4jmirror: database name must not be empty")
	}
	if name == "neo4j" {
		panic("neo4jmirror: database name must not be neo4j: reserved for the default database")
	}
	if strings.HasPrefix(name, "system") || strings.HasPrefix(name, "_") {
		panic("neo4jmirror: names that begin with an underscore or with the prefix system are reserved for internal use")
	}

	s := d.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() { _ = s.Close(ctx) }()

	_, err := s.Run(ctx, `CREATE DATABASE $name IF NOT EXISTS WAIT`, map[string]interface{}{
		"name": name,
	})
	return err
}
