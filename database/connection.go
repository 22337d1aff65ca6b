package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// OpenMemory opens a private in-memory SQLite database. The engine is used
// only to check that DDL executes and to introspect column lists; generation
// runs never touch a user database.
func OpenMemory() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory sqlite: %v", err)
	}
	// introspection state must stay on one connection
	db.SetMaxOpenConns(1)
	return db, nil
}
