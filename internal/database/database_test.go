package database_test

import (
	"testing"
	"time"

	"github.com/a2s-dz/gestion/internal/database"
	"github.com/a2s-dz/gestion/internal/database/dbtest"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		url     string
		dialect database.Dialect
		dsn     string
	}{
		{"postgres://u:p@db:5432/a2s?sslmode=disable", database.DialectPostgres, "postgres://u:p@db:5432/a2s?sslmode=disable"},
		{"postgresql://db/a2s", database.DialectPostgres, "postgresql://db/a2s"},
		{"sqlite://a2s.db", database.DialectSQLite, "a2s.db"},
		{"file:a2s.db?cache=shared", database.DialectSQLite, "file:a2s.db?cache=shared"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			dialect, dsn, err := database.ParseURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.dialect, dialect)
			assert.Equal(t, tt.dsn, dsn)
		})
	}

	_, _, err := database.ParseURL("mongodb://db")
	assert.Error(t, err)
}

func TestParseURLMySQL(t *testing.T) {
	dialect, dsn, err := database.ParseURL("mysql://root:s3cr%40t@db/a2s")
	require.NoError(t, err)
	assert.Equal(t, database.DialectMySQL, dialect)

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "root", cfg.User)
	assert.Equal(t, "s3cr@t", cfg.Passwd)
	assert.Equal(t, "db:3306", cfg.Addr)
	assert.Equal(t, "a2s", cfg.DBName)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, time.UTC, cfg.Loc)
}

func TestMigrationDialects(t *testing.T) {
	migrations, err := database.LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	var live database.Migration
	for _, m := range migrations {
		if m.Name == "001_live_subscription_index.sql" {
			live = m
		}
	}
	require.NotEmpty(t, live.Name)
	assert.True(t, live.AppliesTo(database.DialectPostgres))
	assert.True(t, live.AppliesTo(database.DialectSQLite))
	assert.False(t, live.AppliesTo(database.DialectMySQL))
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, database.RunMigrations(db))

	var applied int64
	require.NoError(t, db.Model(&database.MigrationRecord{}).Count(&applied).Error)
	migrations, err := database.LoadMigrations()
	require.NoError(t, err)
	assert.Equal(t, int64(len(migrations)), applied)

	var grants int64
	require.NoError(t, db.Model(&models.Permission{}).Where("role = ?", models.RoleComptable).Count(&grants).Error)
	assert.Greater(t, grants, int64(0))
}

func TestLiveSubscriptionIndex(t *testing.T) {
	db := dbtest.Open(t)

	client := models.Prospect{Nom: "Client", Statut: models.ProspectStatusActif}
	require.NoError(t, db.Create(&client).Error)
	inst := models.Installation{
		ClientID:             client.ID,
		ApplicationInstallee: "Gestion stock",
		Montant:              decimal.NewFromInt(10000),
		Type:                 models.InstallationTypeAbonnement,
		Statut:               models.InstallationStatusEnCours,
		DateInstallation:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(&inst).Error)

	live := func(status models.SubscriptionStatus) *models.Subscription {
		return &models.Subscription{
			ID:             uuid.New(),
			InstallationID: inst.ID,
			DateDebut:      inst.DateInstallation,
			DateFin:        inst.DateInstallation.AddDate(1, 0, 0),
			Statut:         status,
		}
	}

	require.NoError(t, db.Create(live(models.SubscriptionStatusActif)).Error)
	require.NoError(t, db.Create(live(models.SubscriptionStatusExpire)).Error)
	assert.Error(t, db.Create(live(models.SubscriptionStatusEnAlerte)).Error)
}
