package commands

import (
	"database/sql"

	"github.com/cardrail/cardrail/config"
	"github.com/cardrail/cardrail/db"
	"github.com/cardrail/cardrail/errors"
	"github.com/cardrail/cardrail/logger"
)

// openDatabase opens and migrates the configured database. An explicit path
// overrides the configured one.
func openDatabase(pathOverride string) (*sql.DB, error) {
	path := pathOverride
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load configuration")
		}
		path = cfg.Database.Path
	}

	database, err := db.Open(path, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", path)
	}

	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	return database, nil
}
