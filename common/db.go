package common

import (
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ConnectDb opens the primary database, retrying a bounded number of times
// with a fixed delay. Returns nil when the database stays unreachable; the
// caller is expected to run in demo mode until restart.
func ConnectDb(dsn string, maxRetries int, retryDelay time.Duration) *gorm.DB {
	if dsn == "" {
		log.Println("SQLITE_DB not set - running without a primary database")
		return nil
	}

	if maxRetries < 1 {
		maxRetries = 1
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			TranslateError:                           true,
		})
		if err == nil {
			if pingErr := Ping(db); pingErr == nil {
				log.Println("connected to primary database at:", dsn)
				return db
			} else {
				err = pingErr
			}
		}

		log.Printf("primary database connection failed (attempt %d/%d): %v", attempt, maxRetries, err)
		if attempt < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	log.Println("primary database unreachable - serving from flat-file demo store")
	return nil
}

// Ping probes the live connection state of the primary database.
func Ping(db *gorm.DB) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
