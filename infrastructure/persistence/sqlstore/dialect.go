package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures the differences between the supported SQL engines
type Dialect struct {
	Name       string
	Driver     string
	positional bool
	schema     string
}

var (
	// SQLite is the embedded default backend
	SQLite = Dialect{Name: "sqlite", Driver: "sqlite3", schema: sqliteSchemaV1}
	// Postgres is the networked backend
	Postgres = Dialect{Name: "postgres", Driver: "postgres", positional: true, schema: postgresSchemaV1}
)

// Rebind rewrites '?' placeholders into the dialect's form
func (d Dialect) Rebind(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// placeholders returns "?, ?, ..." with n entries
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
