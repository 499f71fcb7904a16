package database

import (
	"bufio"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/a2s-dz/gestion/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationRecord tracks which migrations have been applied
type MigrationRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;size:255"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for migrations
func (MigrationRecord) TableName() string {
	return "_a2s_migrations"
}

// Migration is one embedded SQL file
type Migration struct {
	Name     string
	Dialects []Dialect // empty means every dialect
	SQL      string
}

// AppliesTo reports whether the migration runs on d
func (m Migration) AppliesTo(d Dialect) bool {
	if len(m.Dialects) == 0 {
		return true
	}
	for _, allowed := range m.Dialects {
		if allowed == d {
			return true
		}
	}
	return false
}

// RunMigrations creates the model tables, then applies pending SQL migrations
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}
	if err := db.AutoMigrate(&MigrationRecord{}); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := LoadMigrations()
	if err != nil {
		return err
	}

	dialect := DialectOf(db)
	for _, m := range migrations {
		var count int64
		if err := db.Model(&MigrationRecord{}).Where("name = ?", m.Name).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check migration %s: %w", m.Name, err)
		}
		if count > 0 {
			log.Debug().Str("migration", m.Name).Msg("migration already applied")
			continue
		}

		if !m.AppliesTo(dialect) {
			log.Info().Str("migration", m.Name).Str("dialect", string(dialect)).Msg("migration skipped for dialect")
		} else {
			log.Info().Str("migration", m.Name).Msg("applying migration")
			err := db.Transaction(func(tx *gorm.DB) error {
				for _, stmt := range splitStatements(m.SQL) {
					if err := tx.Exec(stmt).Error; err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", m.Name, err)
			}
		}

		if err := db.Create(&MigrationRecord{Name: m.Name}).Error; err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.Name, err)
		}
	}

	return nil
}

// LoadMigrations reads the embedded migrations in name order (001_, 002_, ...)
func LoadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	migrations := make([]Migration, 0, len(files))
	for _, file := range files {
		content, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", file, err)
		}
		migrations = append(migrations, Migration{
			Name:     file,
			Dialects: parseDialects(string(content)),
			SQL:      string(content),
		})
	}
	return migrations, nil
}

// parseDialects reads a leading "-- dialects: a,b" header
func parseDialects(content string) []Dialect {
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "--") {
			break
		}
		rest := strings.TrimSpace(strings.TrimPrefix(line, "--"))
		if !strings.HasPrefix(rest, "dialects:") {
			continue
		}
		var out []Dialect
		for _, d := range strings.Split(strings.TrimPrefix(rest, "dialects:"), ",") {
			if d = strings.TrimSpace(d); d != "" {
				out = append(out, Dialect(d))
			}
		}
		return out
	}
	return nil
}

// splitStatements splits a file on statement-terminating semicolons and
// drops comment-only chunks. Migrations never put ';' inside literals.
func splitStatements(content string) []string {
	var stmts []string
	for _, chunk := range strings.Split(content, ";") {
		var lines []string
		for _, line := range strings.Split(chunk, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" && !strings.HasPrefix(trimmed, "--") {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			stmts = append(stmts, strings.Join(lines, "\n"))
		}
	}
	return stmts
}
