package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/a2s-dz/gestion/internal/database/dbtest"
	apperrors "github.com/a2s-dz/gestion/internal/errors"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProspects(t *testing.T, tbl *store.Table[models.Prospect]) {
	t.Helper()
	ctx := context.Background()
	rows := []models.Prospect{
		{Nom: "Alpha", Secteur: models.SecteurCommerce, Statut: models.ProspectStatusProspect, Wilaya: "Alger"},
		{Nom: "Beta", Secteur: models.SecteurSante, Statut: models.ProspectStatusActif, Wilaya: "Oran"},
		{Nom: "Gamma_100%", Secteur: models.SecteurCommerce, Statut: models.ProspectStatusInactif, Wilaya: "Alger"},
	}
	for i := range rows {
		require.NoError(t, tbl.Insert(ctx, &rows[i]))
	}
}

func TestTableCRUD(t *testing.T) {
	st := store.New(dbtest.Open(t))
	prospects := store.NewTable[models.Prospect](st, "prospect")
	ctx := context.Background()

	p := &models.Prospect{Nom: "Sarl Tassili", Statut: models.ProspectStatusProspect}
	require.NoError(t, prospects.Insert(ctx, p))
	require.NotEqual(t, uuid.Nil, p.ID)

	got, err := prospects.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sarl Tassili", got.Nom)

	got.Notes = ""
	got.Statut = models.ProspectStatusActif
	require.NoError(t, prospects.Update(ctx, got))

	require.NoError(t, prospects.UpdateFields(ctx, p.ID, map[string]interface{}{"wilaya": "Blida"}))
	got, err = prospects.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProspectStatusActif, got.Statut)
	assert.Equal(t, "Blida", got.Wilaya)

	require.NoError(t, prospects.Delete(ctx, p.ID))
	_, err = prospects.Get(ctx, p.ID)
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(prospects.Delete(ctx, p.ID)))
	assert.True(t, apperrors.IsNotFound(prospects.Update(ctx, got)))
}

func TestTableFilters(t *testing.T) {
	st := store.New(dbtest.Open(t))
	prospects := store.NewTable[models.Prospect](st, "prospect")
	ctx := context.Background()
	seedProspects(t, prospects)

	rows, err := prospects.Find(ctx, store.Eq("wilaya", "Alger"), store.Asc("nom"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alpha", rows[0].Nom)

	rows, err = prospects.Find(ctx, store.Ne("statut", models.ProspectStatusProspect))
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = prospects.Find(ctx, store.In("statut", models.ProspectStatusActif, models.ProspectStatusInactif), store.Desc("nom"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Gamma_100%", rows[0].Nom)

	rows, err = prospects.Find(ctx, store.Like("nom", "Alph_"))
	require.NoError(t, err)
	assert.Empty(t, rows, "underscore must match literally")

	rows, err = prospects.Find(ctx, store.Like("nom", "a_100%"))
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = prospects.Find(ctx, store.AnyOf{store.Eq("nom", "Alpha"), store.Eq("nom", "Beta")})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	n, err := prospects.Count(ctx, store.Eq("secteur", models.SecteurCommerce))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := prospects.Exists(ctx, store.Eq("nom", "Delta"))
	require.NoError(t, err)
	assert.False(t, ok)

	rows, err = prospects.Find(ctx, store.Asc("nom"), store.Page{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Beta", rows[0].Nom)

	_, err = prospects.Find(ctx, store.Eq("nom; DROP TABLE prospects", "x"))
	assert.True(t, apperrors.IsCode(err, "VALIDATION_ERROR"))
}

func TestParseFilter(t *testing.T) {
	f, err := store.ParseFilter("date_fin__lte", "2026-12-31")
	require.NoError(t, err)
	assert.Equal(t, store.Filter{Column: "date_fin", Operator: "lte", Value: "2026-12-31"}, f)

	f, err = store.ParseFilter("statut__in", "actif, en_alerte,")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"actif", "en_alerte"}, f.Value)

	f, err = store.ParseFilter("statut", "actif")
	require.NoError(t, err)
	assert.Equal(t, "eq", f.Operator)

	_, err = store.ParseFilter("statut__regex", "x")
	assert.Error(t, err)
	_, err = store.ParseFilter("Statut", "x")
	assert.Error(t, err)
}

func TestTransactionRollsBack(t *testing.T) {
	st := store.New(dbtest.Open(t))
	prospects := store.NewTable[models.Prospect](st, "prospect")
	ctx := context.Background()

	err := st.Transaction(ctx, func(ctx context.Context) error {
		if err := prospects.Insert(ctx, &models.Prospect{Nom: "Rollback", Statut: models.ProspectStatusProspect}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.EqualError(t, err, "abort")

	n, err := prospects.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	err = st.Transaction(ctx, func(ctx context.Context) error {
		return st.Transaction(ctx, func(ctx context.Context) error {
			return prospects.Insert(ctx, &models.Prospect{Nom: "Nested", Statut: models.ProspectStatusProspect})
		})
	})
	require.NoError(t, err)
	n, err = prospects.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSumAndForeignKeys(t *testing.T) {
	st := store.New(dbtest.Open(t))
	prospects := store.NewTable[models.Prospect](st, "prospect")
	payments := store.NewTable[models.Payment](st, "paiement")
	ctx := context.Background()

	client := &models.Prospect{Nom: "Client", Statut: models.ProspectStatusActif}
	require.NoError(t, prospects.Insert(ctx, client))

	total, err := payments.Sum(ctx, "montant")
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	for _, amount := range []string{"6000", "3999.50"} {
		require.NoError(t, payments.Insert(ctx, &models.Payment{
			ClientID:     client.ID,
			Montant:      decimal.RequireFromString(amount),
			ModePaiement: models.PaymentModeEspeces,
			Type:         models.PaymentTypeAcquisition,
			DatePaiement: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		}))
	}

	total, err = payments.Sum(ctx, "montant", store.Eq("client_id", client.ID))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("9999.5")), total.String())

	other := &models.Prospect{Nom: "Centimes", Statut: models.ProspectStatusActif}
	require.NoError(t, prospects.Insert(ctx, other))
	for _, amount := range []string{"0.10", "0.20"} {
		require.NoError(t, payments.Insert(ctx, &models.Payment{
			ClientID:     other.ID,
			Montant:      decimal.RequireFromString(amount),
			ModePaiement: models.PaymentModeEspeces,
			Type:         models.PaymentTypeAcquisition,
			DatePaiement: time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		}))
	}
	total, err = payments.Sum(ctx, "montant", store.Eq("client_id", other.ID))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("0.3")), total.String())

	err = payments.Insert(ctx, &models.Payment{
		ClientID:     uuid.New(),
		Montant:      decimal.NewFromInt(1),
		ModePaiement: models.PaymentModeEspeces,
		Type:         models.PaymentTypeAcquisition,
		DatePaiement: time.Now(),
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForeignKeyViolation), "got %v", err)
}
