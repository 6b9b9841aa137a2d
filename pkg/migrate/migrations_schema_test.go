package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm/schema"

	"github.com/emotrace/emotrace-backend/pkg/db/models"
)

// Every mapped model column must exist in its create-table migration,
// otherwise GORM-built INSERTs name columns the migrated schema lacks.
func TestMigrationsCoverModelColumns(t *testing.T) {
	cases := []struct {
		glob  string
		model any
	}{
		{"*_create_users.sql", &models.User{}},
		{"*_create_collections.sql", &models.Collection{}},
		{"*_create_records.sql", &models.Record{}},
		{"*_create_media.sql", &models.Media{}},
	}

	for _, tc := range cases {
		matches, err := filepath.Glob(filepath.Join("migrations", tc.glob))
		if err != nil {
			t.Fatalf("glob %s: %v", tc.glob, err)
		}
		if len(matches) == 0 {
			t.Fatalf("no migration file matching %s", tc.glob)
		}

		data, err := os.ReadFile(matches[0])
		if err != nil {
			t.Fatalf("read %s: %v", matches[0], err)
		}
		content := string(data)

		parsed, err := schema.Parse(tc.model, &sync.Map{}, schema.NamingStrategy{})
		if err != nil {
			t.Fatalf("parse model for %s: %v", tc.glob, err)
		}

		for _, field := range parsed.Fields {
			if field.DBName == "" {
				continue
			}
			if !strings.Contains(content, field.DBName) {
				t.Errorf("%s: model column %q missing from migration", matches[0], field.DBName)
			}
		}
	}
}
