package sqlstore

import (
	"strconv"
	"strings"
)

// Driver names accepted by Open.
const (
	Postgres = "postgres"
	SQLite   = "sqlite3"
)

type dialect struct {
	driver    string
	schema    string
	returning bool
}

var dialects = map[string]dialect{
	Postgres: {
		driver:    Postgres,
		returning: true,
		schema: `
		CREATE TABLE IF NOT EXISTS tasks (
			id SERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			description TEXT,
			due_date DATE,
			priority INTEGER NOT NULL CHECK (priority BETWEEN 1 AND 5),
			assigned_to VARCHAR(100),
			status VARCHAR(20) NOT NULL
				CHECK (status IN ('ACTIVE', 'COMPLETED', 'POSTPONED', 'CANCELLED', 'OVERDUE')),
			last_completed DATE,
			type VARCHAR(50),
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
		CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);
		`,
	},
	SQLite: {
		driver: SQLite,
		schema: `
		CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT,
			due_date DATE,
			priority INTEGER NOT NULL CHECK (priority BETWEEN 1 AND 5),
			assigned_to TEXT,
			status TEXT NOT NULL
				CHECK (status IN ('ACTIVE', 'COMPLETED', 'POSTPONED', 'CANCELLED', 'OVERDUE')),
			last_completed DATE,
			type TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
		CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);
		`,
	},
}

// rebind rewrites ? placeholders as $1, $2, ... for postgres.
func (d dialect) rebind(query string) string {
	if d.driver != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
