package services

import (
	"context"

	"github.com/a2s-dz/gestion/internal/billing"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/store"
	"github.com/shopspring/decimal"
)

// DashboardService aggregates the headline figures
type DashboardService struct {
	*env
}

// Stats is the dashboard snapshot; it is also the input of the AI insights
type Stats struct {
	Prospects             map[models.ProspectStatus]int64     `json:"prospects"`
	TotalProspects        int64                               `json:"total_prospects"`
	Clients               int64                               `json:"clients"`
	Installations         int64                               `json:"installations"`
	InstallationsParType  map[models.InstallationType]int64   `json:"installations_par_type"`
	MontantTotal          decimal.Decimal                     `json:"montant_total"`
	MontantPaye           decimal.Decimal                     `json:"montant_paye"`
	Reste                 decimal.Decimal                     `json:"reste"`
	Abonnements           map[models.SubscriptionStatus]int64 `json:"abonnements"`
	InterventionsOuvertes int64                               `json:"interventions_ouvertes"`
	Missions              map[models.MissionStatus]int64      `json:"missions"`
	PaiementsDuMois       decimal.Decimal                     `json:"paiements_du_mois"`
}

// Stats computes the snapshot. Subscription counts use the derived status.
func (s *DashboardService) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		Prospects:            map[models.ProspectStatus]int64{},
		InstallationsParType: map[models.InstallationType]int64{},
		Abonnements:          map[models.SubscriptionStatus]int64{},
		Missions:             map[models.MissionStatus]int64{},
	}

	for _, status := range []models.ProspectStatus{models.ProspectStatusProspect, models.ProspectStatusActif, models.ProspectStatusInactif} {
		n, err := s.prospects.Count(ctx, store.Eq("statut", status))
		if err != nil {
			return nil, err
		}
		st.Prospects[status] = n
		st.TotalProspects += n
		if status != models.ProspectStatusProspect {
			st.Clients += n
		}
	}

	installs, err := s.installations.Find(ctx)
	if err != nil {
		return nil, err
	}
	st.Installations = int64(len(installs))
	for _, inst := range installs {
		st.InstallationsParType[inst.Type]++
	}
	st.MontantTotal = sumInstallations(installs)

	paid, err := s.payments.Sum(ctx, "montant")
	if err != nil {
		return nil, err
	}
	st.MontantPaye = paid
	st.Reste = billing.Remaining(st.MontantTotal, paid)

	today := s.today()
	monthStart := today.AddDate(0, 0, 1-today.Day())
	if st.PaiementsDuMois, err = s.payments.Sum(ctx, "montant", store.Gte("date_paiement", monthStart)); err != nil {
		return nil, err
	}

	subs, err := s.subscriptions.Find(ctx)
	if err != nil {
		return nil, err
	}
	for _, status := range []models.SubscriptionStatus{models.SubscriptionStatusActif, models.SubscriptionStatusEnAlerte, models.SubscriptionStatusExpire} {
		st.Abonnements[status] = 0
	}
	now := s.now()
	for _, sub := range subs {
		st.Abonnements[s.rules.StatusAt(sub.DateFin, now)]++
	}

	if st.InterventionsOuvertes, err = s.interventions.Count(ctx, store.Eq("statut", models.InterventionStatusEnCours)); err != nil {
		return nil, err
	}

	for _, status := range []models.MissionStatus{models.MissionStatusCreee, models.MissionStatusEnCours, models.MissionStatusCloturee, models.MissionStatusValidee} {
		n, err := s.missions.Count(ctx, store.Eq("statut", status))
		if err != nil {
			return nil, err
		}
		st.Missions[status] = n
	}
	return st, nil
}
