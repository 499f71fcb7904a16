package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/a2s-dz/gestion/internal/auth"
	"github.com/a2s-dz/gestion/internal/billing"
	"github.com/a2s-dz/gestion/internal/database/dbtest"
	apperrors "github.com/a2s-dz/gestion/internal/errors"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/services"
	"github.com/a2s-dz/gestion/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// All tests run on 15 June 2026 at noon UTC
var testNow = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db  *gorm.DB
	svc *services.Services
	ctx context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	rules := billing.Rules{AlertWindowDays: 30, Location: time.UTC}
	svc := services.New(store.New(db), rules, services.WithClock(func() time.Time { return testNow }))

	admin, err := svc.Users.Create(context.Background(), services.UserInput{
		Email: "admin@a2s.dz", Nom: "Admin", Role: models.RoleAdmin,
	})
	require.NoError(t, err)
	return &fixture{db: db, svc: svc, ctx: auth.WithUser(context.Background(), admin)}
}

func (f *fixture) prospect(t *testing.T, nom string) *models.Prospect {
	t.Helper()
	p, err := f.svc.Prospects.Create(f.ctx, services.ProspectInput{Nom: nom, Secteur: models.SecteurCommerce})
	require.NoError(t, err)
	return p
}

func (f *fixture) installation(t *testing.T, clientID uuid.UUID, date string, montant int64) *services.InstallationView {
	t.Helper()
	inst, err := f.svc.Installations.Create(f.ctx, services.InstallationInput{
		ClientID:             clientID,
		ApplicationInstallee: "A2S Stock",
		Montant:              decimal.NewFromInt(montant),
		Type:                 models.InstallationTypeAbonnement,
		DateInstallation:     date,
	})
	require.NoError(t, err)
	return inst
}

func (f *fixture) pay(t *testing.T, clientID, installationID uuid.UUID, montant int64) *services.PaymentResult {
	t.Helper()
	res, err := f.svc.Payments.Create(f.ctx, services.PaymentInput{
		ClientID:       clientID,
		InstallationID: &installationID,
		Montant:        decimal.NewFromInt(montant),
		ModePaiement:   models.PaymentModeEspeces,
		Type:           models.PaymentTypeAbonnement,
		DatePaiement:   "2026-06-15",
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) subscriptions(t *testing.T, installationID uuid.UUID) []services.SubscriptionView {
	t.Helper()
	subs, err := f.svc.Subscriptions.List(f.ctx, services.SubscriptionQuery{InstallationID: &installationID})
	require.NoError(t, err)
	return subs
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func actions(t *testing.T, f *fixture, prospectID uuid.UUID) []models.ActivityAction {
	t.Helper()
	events, err := f.svc.History.List(f.ctx, prospectID)
	require.NoError(t, err)
	out := make([]models.ActivityAction, len(events))
	for i, e := range events {
		out[i] = e.Action
	}
	return out
}

func assertDecimal(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.NewFromInt(want).Equal(got), "want %d, got %s", want, got)
}

// =============================================================================
// INSTALLATIONS
// =============================================================================

func TestInstallationCreateOpensOneSubscription(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Pharmacie El Amel")
	assert.Equal(t, models.ProspectStatusProspect, client.Statut)

	inst := f.installation(t, client.ID, "2026-03-01", 10000)
	require.NotNil(t, inst.Abonnement)
	assert.Equal(t, billing.PaymentStatusUnpaid, inst.StatutPaiement)
	assertDecimal(t, 10000, inst.Reste)

	subs := f.subscriptions(t, inst.ID)
	require.Len(t, subs, 1)
	assert.True(t, day(2026, time.March, 1).Equal(subs[0].DateDebut))
	assert.True(t, day(2027, time.March, 1).Equal(subs[0].DateFin))
	assert.Equal(t, models.SubscriptionStatusActif, subs[0].Statut)

	converted, err := f.svc.Prospects.Get(f.ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProspectStatusActif, converted.Statut)

	assert.ElementsMatch(t, []models.ActivityAction{
		models.ActionCreate, models.ActionConversion, models.ActionInstallation,
	}, actions(t, f, client.ID))

	// A second installation does not convert again
	f.installation(t, client.ID, "2026-04-01", 5000)
	assert.Len(t, actions(t, f, client.ID), 4)
}

func TestInstallationCreateUnknownClientWritesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Installations.Create(f.ctx, services.InstallationInput{
		ClientID:             uuid.New(),
		ApplicationInstallee: "A2S Paie",
		Montant:              decimal.NewFromInt(1000),
		Type:                 models.InstallationTypeAcquisition,
		DateInstallation:     "2026-01-10",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	var n int64
	require.NoError(t, f.db.Model(&models.Installation{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, f.db.Model(&models.Subscription{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestInstallationCreateValidation(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Client")

	_, err := f.svc.Installations.Create(f.ctx, services.InstallationInput{
		ClientID:             client.ID,
		ApplicationInstallee: "A2S Stock",
		Type:                 "location",
		DateInstallation:     "2026-01-10",
	})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_ERROR"))

	_, err = f.svc.Installations.Create(f.ctx, services.InstallationInput{
		ClientID:             client.ID,
		ApplicationInstallee: "A2S Stock",
		Type:                 models.InstallationTypeAcquisition,
		DateInstallation:     "hier",
	})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_ERROR"))
}

func TestInstallationDateChangeMovesLiveTerm(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Client")
	inst := f.installation(t, client.ID, "2026-03-01", 10000)

	date := "2026-04-01"
	updated, err := f.svc.Installations.Update(f.ctx, inst.ID, services.InstallationPatch{DateInstallation: &date})
	require.NoError(t, err)
	assert.True(t, day(2026, time.April, 1).Equal(updated.DateInstallation))

	subs := f.subscriptions(t, inst.ID)
	require.Len(t, subs, 1)
	assert.True(t, day(2026, time.April, 1).Equal(subs[0].DateDebut))
	assert.True(t, day(2027, time.April, 1).Equal(subs[0].DateFin))
}

func TestInstallationDateChangeMovesExpiredFirstTerm(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Client")
	// Mistyped year: the first term has already expired
	inst := f.installation(t, client.ID, "2025-06-05", 10000)
	require.Equal(t, models.SubscriptionStatusExpire, inst.Abonnement.Statut)

	date := "2026-06-05"
	updated, err := f.svc.Installations.Update(f.ctx, inst.ID, services.InstallationPatch{DateInstallation: &date})
	require.NoError(t, err)
	require.NotNil(t, updated.Abonnement)
	assert.Equal(t, models.SubscriptionStatusActif, updated.Abonnement.Statut)

	subs := f.subscriptions(t, inst.ID)
	require.Len(t, subs, 1)
	assert.True(t, day(2026, time.June, 5).Equal(subs[0].DateDebut))
	assert.True(t, day(2027, time.June, 5).Equal(subs[0].DateFin))
	assert.Equal(t, models.SubscriptionStatusActif, subs[0].StatutEnregistre)
}

func TestInstallationDeleteWithPaymentsIsRejected(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Client")
	inst := f.installation(t, client.ID, "2026-03-01", 10000)
	f.pay(t, client.ID, inst.ID, 2000)

	err := f.svc.Installations.Delete(f.ctx, inst.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInstallationHasPayments))

	_, err = f.svc.Installations.Get(f.ctx, inst.ID)
	require.NoError(t, err)
	assert.Len(t, f.subscriptions(t, inst.ID), 1)
}

func TestInstallationDeleteRemovesSubscriptions(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Client")
	inst := f.installation(t, client.ID, "2026-03-01", 10000)

	require.NoError(t, f.svc.Installations.Delete(f.ctx, inst.ID))
	_, err := f.svc.Installations.Get(f.ctx, inst.ID)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, f.subscriptions(t, inst.ID))
}

// =============================================================================
// PAYMENTS / AUTO-RENEWAL
// =============================================================================

func TestPaymentSequenceAutoRenewsExpiredSubscription(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Superette Ouled Fayet")
	// Term 2025-06-05 .. 2026-06-05 has expired by 2026-06-15
	inst := f.installation(t, client.ID, "2025-06-05", 10000)
	require.NotNil(t, inst.Abonnement)
	assert.Equal(t, models.SubscriptionStatusExpire, inst.Abonnement.Statut)

	first := f.pay(t, client.ID, inst.ID, 6000)
	assert.False(t, first.Renouvele)
	require.NotNil(t, first.Paiement.StatutPaiement)
	assert.Equal(t, billing.PaymentStatusPartial, *first.Paiement.StatutPaiement)
	assertDecimal(t, 4000, *first.Paiement.Reste)

	second := f.pay(t, client.ID, inst.ID, 4000)
	assert.True(t, second.Renouvele)
	assert.Equal(t, billing.PaymentStatusPaid, *second.Paiement.StatutPaiement)
	assertDecimal(t, 0, *second.Paiement.Reste)
	require.NotNil(t, second.Abonnement)
	assert.Equal(t, models.SubscriptionStatusActif, second.Abonnement.Statut)

	subs := f.subscriptions(t, inst.ID)
	require.Len(t, subs, 1)
	assert.True(t, day(2026, time.June, 5).Equal(subs[0].DateDebut))
	assert.True(t, day(2027, time.June, 5).Equal(subs[0].DateFin))
	assert.Equal(t, models.SubscriptionStatusActif, subs[0].StatutEnregistre)

	assert.Contains(t, actions(t, f, client.ID), models.ActionAbonnementAutoRenew)

	view, err := f.svc.Installations.Get(f.ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.PaymentStatusPaid, view.StatutPaiement)
}

func TestPaymentOnLiveSubscriptionDoesNotRenew(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Client")
	inst := f.installation(t, client.ID, "2026-03-01", 10000)

	res := f.pay(t, client.ID, inst.ID, 10000)
	assert.False(t, res.Renouvele)
	assert.Nil(t, res.Abonnement)
	assert.Len(t, f.subscriptions(t, inst.ID), 1)
}

func TestPaymentUpdateThatSettlesAutoRenews(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Client")
	inst := f.installation(t, client.ID, "2025-06-05", 10000)
	first := f.pay(t, client.ID, inst.ID, 6000)
	require.False(t, first.Renouvele)

	montant := decimal.NewFromInt(10000)
	view, err := f.svc.Payments.Update(f.ctx, first.Paiement.ID, services.PaymentPatch{Montant: &montant})
	require.NoError(t, err)
	assert.Equal(t, billing.PaymentStatusPaid, *view.StatutPaiement)

	subs := f.subscriptions(t, inst.ID)
	require.Len(t, subs, 1)
	assert.True(t, day(2026, time.June, 5).Equal(subs[0].DateDebut))
	assert.Equal(t, models.SubscriptionStatusActif, subs[0].Statut)
	assert.Contains(t, actions(t, f, client.ID), models.ActionAbonnementAutoRenew)
}

func TestPaymentValidation(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Client")
	other := f.prospect(t, "Autre")
	inst := f.installation(t, client.ID, "2026-03-01", 10000)

	base := services.PaymentInput{
		ClientID:       client.ID,
		InstallationID: &inst.ID,
		Montant:        decimal.NewFromInt(100),
		ModePaiement:   models.PaymentModeCheque,
		Type:           models.PaymentTypeAcquisition,
	}

	zero := base
	zero.Montant = decimal.Zero
	_, err := f.svc.Payments.Create(f.ctx, zero)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_ERROR"))

	badMode := base
	badMode.ModePaiement = "bitcoin"
	_, err = f.svc.Payments.Create(f.ctx, badMode)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_ERROR"))

	wrongClient := base
	wrongClient.ClientID = other.ID
	_, err = f.svc.Payments.Create(f.ctx, wrongClient)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_ERROR"))

	res, err := f.svc.Payments.Create(f.ctx, base)
	require.NoError(t, err)
	assert.True(t, day(2026, time.June, 15).Equal(res.Paiement.DatePaiement))
}

func TestClientSummaries(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Client")
	f.prospect(t, "Toujours prospect")
	a := f.installation(t, client.ID, "2026-03-01", 10000)
	f.installation(t, client.ID, "2026-04-01", 5000)
	f.pay(t, client.ID, a.ID, 6000)

	summary, err := f.svc.Payments.ClientSummary(f.ctx, client.ID)
	require.NoError(t, err)
	assertDecimal(t, 15000, summary.MontantTotal)
	assertDecimal(t, 9000, summary.Reste)
	assert.Equal(t, billing.PaymentStatusPartial, summary.StatutPaiement)

	clients, err := f.svc.Prospects.Clients(f.ctx, services.ProspectQuery{})
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, int64(2), clients[0].NombreInstallations)
	assertDecimal(t, 6000, clients[0].Paiement.MontantPaye)
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

func TestManualRenewConflictsWithLiveSubscription(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Client")
	inst := f.installation(t, client.ID, "2025-06-05", 10000)
	old := inst.Abonnement

	renewed, err := f.svc.Subscriptions.Renew(f.ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActif, renewed.Statut)
	assert.True(t, day(2026, time.June, 5).Equal(renewed.DateDebut))

	_, err = f.svc.Subscriptions.Renew(f.ctx, old.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))

	_, err = f.svc.Subscriptions.Create(f.ctx, inst.ID)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))

	assert.Len(t, f.subscriptions(t, inst.ID), 2)
	assert.Contains(t, actions(t, f, client.ID), models.ActionAbonnementRenew)
}

func TestRenewOnlyAcceptsLatestSubscription(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Client")
	inst := f.installation(t, client.ID, "2024-06-01", 10000)
	first := inst.Abonnement

	// 2025-06-01 .. 2026-06-01 has expired too
	second, err := f.svc.Subscriptions.Renew(f.ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusExpire, f.subscriptions(t, inst.ID)[1].Statut)

	_, err = f.svc.Subscriptions.Renew(f.ctx, first.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_STATE"), "got %v", err)
	assert.Len(t, f.subscriptions(t, inst.ID), 2)

	third, err := f.svc.Subscriptions.Renew(f.ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, day(2026, time.June, 1).Equal(third.DateDebut))
	assert.Equal(t, models.SubscriptionStatusActif, third.Statut)
}

func TestSubscriptionStatusIsDerivedOnRead(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Client")
	inst := f.installation(t, client.ID, "2025-07-01", 10000)

	// Stored actif but ending within the alert window
	subs := f.subscriptions(t, inst.ID)
	require.Len(t, subs, 1)
	require.NoError(t, f.db.Model(&models.Subscription{}).Where("id = ?", subs[0].ID).
		Update("statut", models.SubscriptionStatusActif).Error)

	subs = f.subscriptions(t, inst.ID)
	assert.Equal(t, models.SubscriptionStatusEnAlerte, subs[0].Statut)
	assert.Equal(t, models.SubscriptionStatusActif, subs[0].StatutEnregistre)
	assert.Equal(t, 16, subs[0].JoursRestants)

	expiring, err := f.svc.Subscriptions.Expiring(f.ctx)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, subs[0].ID, expiring[0].ID)

	var stored models.Subscription
	require.NoError(t, f.db.First(&stored, "id = ?", subs[0].ID).Error)
	assert.Equal(t, models.SubscriptionStatusActif, stored.Statut)
}

func TestReconcilePersistsDerivedStatuses(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Client")
	expired := f.installation(t, client.ID, "2025-06-01", 1000)
	alert := f.installation(t, client.ID, "2025-07-01", 1000)
	active := f.installation(t, client.ID, "2026-03-01", 1000)

	// Make every stored status stale
	set := func(installationID uuid.UUID, status models.SubscriptionStatus) {
		require.NoError(t, f.db.Model(&models.Subscription{}).Where("installation_id = ?", installationID).
			Update("statut", status).Error)
	}
	set(expired.ID, models.SubscriptionStatusActif)
	set(alert.ID, models.SubscriptionStatusExpire)
	set(active.ID, models.SubscriptionStatusExpire)

	report, err := f.svc.Subscriptions.Reconcile(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 3, report.Changed)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 1, report.ByStatus[models.SubscriptionStatusExpire])
	assert.Equal(t, 1, report.ByStatus[models.SubscriptionStatusEnAlerte])
	assert.Equal(t, 1, report.ByStatus[models.SubscriptionStatusActif])

	for _, sub := range append(append(f.subscriptions(t, expired.ID), f.subscriptions(t, alert.ID)...), f.subscriptions(t, active.ID)...) {
		assert.Equal(t, sub.Statut, sub.StatutEnregistre)
	}

	again, err := f.svc.Subscriptions.Reconcile(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Changed)
}

func TestSubscriptionDeleteWithPaymentsIsRejected(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Client")
	inst := f.installation(t, client.ID, "2026-03-01", 10000)
	f.pay(t, client.ID, inst.ID, 500)

	err := f.svc.Subscriptions.Delete(f.ctx, inst.Abonnement.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSubscriptionHasPayments))
}

// =============================================================================
// PROSPECTS
// =============================================================================

func TestProspectDelete(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Client")
	f.installation(t, client.ID, "2026-03-01", 1000)

	err := f.svc.Prospects.Delete(f.ctx, client.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProspectReferenced))

	lonely := f.prospect(t, "Sans suite")
	require.NoError(t, f.svc.Prospects.Delete(f.ctx, lonely.ID))
	_, err = f.svc.Prospects.Get(f.ctx, lonely.ID)
	assert.True(t, apperrors.IsNotFound(err))

	var n int64
	require.NoError(t, f.db.Model(&models.ActivityEvent{}).Where("prospect_id = ?", lonely.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestProspectUpdateAndSearch(t *testing.T) {
	f := newFixture(t)
	p := f.prospect(t, "Clinique Ibn Sina")
	f.prospect(t, "Boulangerie")

	wilaya := "Constantine"
	updated, err := f.svc.Prospects.Update(f.ctx, p.ID, services.ProspectPatch{Wilaya: &wilaya})
	require.NoError(t, err)
	assert.Equal(t, "Constantine", updated.Wilaya)
	assert.ElementsMatch(t, []models.ActivityAction{models.ActionCreate, models.ActionUpdate}, actions(t, f, p.ID))

	found, err := f.svc.Prospects.List(f.ctx, services.ProspectQuery{Search: "ibn"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, p.ID, found[0].ID)

	bad := models.Secteur("agriculture")
	_, err = f.svc.Prospects.Update(f.ctx, p.ID, services.ProspectPatch{Secteur: &bad})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_ERROR"))
}

// =============================================================================
// INTERVENTIONS / MISSIONS
// =============================================================================

func TestInterventionCloseIsTerminal(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Client")
	tech, err := f.svc.Users.Create(f.ctx, services.UserInput{Email: "tech@a2s.dz", Role: models.RoleTechnicien})
	require.NoError(t, err)

	iv, err := f.svc.Interventions.Create(f.ctx, services.InterventionInput{
		ClientID: client.ID, TechnicienID: tech.ID, Objet: "Imprimante ticket",
	})
	require.NoError(t, err)
	assert.Equal(t, models.InterventionStatusEnCours, iv.Statut)

	closed, err := f.svc.Interventions.Close(f.ctx, iv.ID, services.CloseIntervention{ActionEntreprise: "Pilote réinstallé"})
	require.NoError(t, err)
	assert.Equal(t, models.InterventionStatusCloturee, closed.Statut)
	require.NotNil(t, closed.DateFin)

	_, err = f.svc.Interventions.Close(f.ctx, iv.ID, services.CloseIntervention{ActionEntreprise: "encore"})
	assert.True(t, apperrors.IsCode(err, "INVALID_STATE"))

	objet := "Autre"
	_, err = f.svc.Interventions.Update(f.ctx, iv.ID, services.InterventionPatch{Objet: &objet})
	assert.True(t, apperrors.IsCode(err, "INVALID_STATE"))
}

func TestMissionLifecycle(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Client")
	lead, err := f.svc.Users.Create(f.ctx, services.UserInput{Email: "chef@a2s.dz", Role: models.RoleTechnicien})
	require.NoError(t, err)
	leadCtx := auth.WithUser(context.Background(), lead)

	m, err := f.svc.Missions.Create(f.ctx, services.MissionInput{ClientID: &client.ID, Titre: "Inventaire annuel"})
	require.NoError(t, err)
	assert.Equal(t, models.MissionStatusCreee, m.Statut)

	_, err = f.svc.Missions.Close(leadCtx, m.ID, "trop tôt")
	assert.True(t, apperrors.IsCode(err, "INVALID_STATE"))

	_, err = f.svc.Missions.Start(leadCtx, m.ID)
	require.NoError(t, err)

	closed, err := f.svc.Missions.Close(leadCtx, m.ID, "Inventaire terminé")
	require.NoError(t, err)
	assert.Equal(t, models.MissionStatusCloturee, closed.Statut)
	require.NotNil(t, closed.ClotureeParID)
	assert.Equal(t, lead.ID, *closed.ClotureeParID)
	assert.Equal(t, "Inventaire terminé", closed.Rapport)

	_, err = f.svc.Missions.Validate(leadCtx, m.ID)
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))

	validated, err := f.svc.Missions.Validate(f.ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MissionStatusValidee, validated.Statut)
	require.NotNil(t, validated.DateValidation)

	_, err = f.svc.Missions.Validate(f.ctx, m.ID)
	assert.True(t, apperrors.IsCode(err, "INVALID_STATE"))

	assert.Contains(t, actions(t, f, client.ID), models.ActionMission)
}

// =============================================================================
// USERS / DASHBOARD
// =============================================================================

func TestUserCreateAndDeactivate(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	u, err := f.svc.Users.Create(f.ctx, services.UserInput{ID: &id, Email: " Compta@A2S.dz ", Role: models.RoleComptable})
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "compta@a2s.dz", u.Email)
	assert.True(t, u.IsActive)

	inactive := false
	_, err = f.svc.Users.Update(f.ctx, id, services.UserPatch{IsActive: &inactive})
	require.NoError(t, err)
	got, err := f.svc.Users.ByEmail(f.ctx, "compta@a2s.dz")
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = f.svc.Users.Create(f.ctx, services.UserInput{Email: "x@a2s.dz", Role: "stagiaire"})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_ERROR"))
}

func TestDashboardStats(t *testing.T) {
	f := newFixture(t)
	client := f.prospect(t, "Client")
	f.prospect(t, "Prospect")
	expired := f.installation(t, client.ID, "2025-06-01", 4000)
	f.installation(t, client.ID, "2026-03-01", 6000)
	f.pay(t, client.ID, expired.ID, 1000)

	stats, err := f.svc.Dashboard.Stats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalProspects)
	assert.Equal(t, int64(1), stats.Clients)
	assert.Equal(t, int64(2), stats.Installations)
	assertDecimal(t, 10000, stats.MontantTotal)
	assertDecimal(t, 1000, stats.MontantPaye)
	assertDecimal(t, 9000, stats.Reste)
	assertDecimal(t, 1000, stats.PaiementsDuMois)
	assert.Equal(t, int64(1), stats.Abonnements[models.SubscriptionStatusExpire])
	assert.Equal(t, int64(1), stats.Abonnements[models.SubscriptionStatusActif])
}
