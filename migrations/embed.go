// Package migrations embeds the SQL migration files into the binary so
// NetRules can migrate its schema without the files being present on the
// target filesystem.
package migrations

import (
	"embed"

	"github.com/nerrad567/netrules-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
