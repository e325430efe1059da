package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"affiliate-payouts/internal/client"
	"affiliate-payouts/internal/config"
	"affiliate-payouts/internal/logger"

	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// NewDB opens a migrated in-memory sqlite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := client.InitDBClient(config.Database{Driver: "sqlite", URL: dsn}, logger.Discard())
	if err != nil {
		t.Fatalf("init db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}
