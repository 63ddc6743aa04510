// Package migrations embeds the point store's SQL migration files into
// the binary so the supervisor can initialize its schema without the
// .sql files present on the filesystem.
package migrations

import (
	"embed"

	"github.com/openbms-io/supervisor/internal/pointstore"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	pointstore.MigrationsFS = migrationsFS
	pointstore.MigrationsDir = "." // files are at the root of the embedded FS
}
