package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS principals (
	name      TEXT PRIMARY KEY,
	superuser INTEGER NOT NULL DEFAULT 0
);`

// SQLiteDirectory is a Directory backed by a SQLite database. Suitable
// when the principal set outlives the process or is shared between tools.
type SQLiteDirectory struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the principal database at path.
func OpenSQLite(path string) (*SQLiteDirectory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open principal database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create principals table: %w", err)
	}
	return &SQLiteDirectory{db: db}, nil
}

// Resolve returns the identity for name, or UnknownPrincipalError.
func (d *SQLiteDirectory) Resolve(ctx context.Context, name string) (Identity, error) {
	var superuser int
	err := d.db.QueryRowContext(ctx,
		"SELECT superuser FROM principals WHERE name = ?", name).Scan(&superuser)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, &UnknownPrincipalError{Name: name}
	}
	if err != nil {
		return Identity{}, fmt.Errorf("resolve %q: %w", name, err)
	}
	return Identity{Name: name, Superuser: superuser != 0}, nil
}

// Put inserts or updates a principal.
func (d *SQLiteDirectory) Put(ctx context.Context, id Identity) error {
	superuser := 0
	if id.Superuser {
		superuser = 1
	}
	_, err := d.db.ExecContext(ctx,
		"INSERT INTO principals (name, superuser) VALUES (?, ?) "+
			"ON CONFLICT(name) DO UPDATE SET superuser = excluded.superuser",
		id.Name, superuser)
	if err != nil {
		return fmt.Errorf("put %q: %w", id.Name, err)
	}
	return nil
}

// List returns all principals sorted by name.
func (d *SQLiteDirectory) List(ctx context.Context) ([]Identity, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT name, superuser FROM principals")
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	defer rows.Close()

	var out []Identity
	for rows.Next() {
		var name string
		var superuser int
		if err := rows.Scan(&name, &superuser); err != nil {
			return nil, fmt.Errorf("scan principal: %w", err)
		}
		out = append(out, Identity{Name: name, Superuser: superuser != 0})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Close closes the underlying database.
func (d *SQLiteDirectory) Close() error {
	return d.db.Close()
}
