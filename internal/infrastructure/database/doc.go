// Package database provides the SQLite connection and schema migration
// support for NetRules Core.
//
// SQLite holds only the change-event history and schema bookkeeping.
// Reconciliation state (snapshots, polling counters) is deliberately
// in-memory and rebuilt from a full controller fetch on every start.
//
// # Usage
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//	defer db.Close()
//	err = db.Migrate(ctx)
//
// Migrations are SQL files embedded by the top-level migrations package
// and applied in filename order, each in its own transaction.
package database
