// Package billing holds the subscription and payment rules shared by every
// service and handler. Everything here is pure: no database, no clock.
package billing

import (
	"time"

	"github.com/a2s-dz/gestion/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultAlertWindowDays is how long before date_fin a subscription turns en_alerte
const DefaultAlertWindowDays = 30

// PaymentStatus is the 0/1/2 classification of an amount against its payments
type PaymentStatus int

const (
	PaymentStatusUnpaid  PaymentStatus = 0
	PaymentStatusPartial PaymentStatus = 1
	PaymentStatusPaid    PaymentStatus = 2
)

// Label returns the French label shown to users
func (s PaymentStatus) Label() string {
	switch s {
	case PaymentStatusPartial:
		return "partiel"
	case PaymentStatusPaid:
		return "paye"
	default:
		return "non_paye"
	}
}

// Remaining returns max(0, total - paid)
func Remaining(total, paid decimal.Decimal) decimal.Decimal {
	reste := total.Sub(paid)
	if reste.IsNegative() {
		return decimal.Zero
	}
	return reste
}

// PaymentStatusCode classifies montantPaye against montantTotal.
// 0 when nothing is owed or nothing was paid, 2 when fully paid, 1 otherwise.
func PaymentStatusCode(montantTotal, montantPaye decimal.Decimal) PaymentStatus {
	if !montantTotal.IsPositive() || !montantPaye.IsPositive() {
		return PaymentStatusUnpaid
	}
	if Remaining(montantTotal, montantPaye).IsZero() {
		return PaymentStatusPaid
	}
	return PaymentStatusPartial
}

// Summary is the derived payment position of an installation or a client
type Summary struct {
	MontantTotal   decimal.Decimal `json:"montant_total"`
	MontantPaye    decimal.Decimal `json:"montant_paye"`
	Reste          decimal.Decimal `json:"reste"`
	StatutPaiement PaymentStatus   `json:"statut_paiement"`
	Libelle        string          `json:"statut_paiement_libelle"`
}

// Summarize builds the Summary of total against the given payment amounts
func Summarize(total decimal.Decimal, payments ...decimal.Decimal) Summary {
	paid := Sum(payments...)
	code := PaymentStatusCode(total, paid)
	return Summary{
		MontantTotal:   total,
		MontantPaye:    paid,
		Reste:          Remaining(total, paid),
		StatutPaiement: code,
		Libelle:        code.Label(),
	}
}

// Sum adds amounts
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// SumPayments adds the amounts of payments
func SumPayments(payments []models.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Montant)
	}
	return total
}

// =============================================================================
// DATES
// =============================================================================

// Day truncates t to its calendar date, expressed as midnight UTC. Date
// columns are stored this way so comparisons never depend on the server zone.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Term returns the one-year period starting at start
func Term(start time.Time) (debut, fin time.Time) {
	debut = Day(start)
	return debut, debut.AddDate(1, 0, 0)
}

// =============================================================================
// SUBSCRIPTION STATUS
// =============================================================================

// Rules evaluates subscription statuses for a business time zone
type Rules struct {
	AlertWindowDays int
	Location        *time.Location
}

// DefaultRules uses a 30-day alert window and UTC
func DefaultRules() Rules {
	return Rules{AlertWindowDays: DefaultAlertWindowDays, Location: time.UTC}
}

// Today returns the calendar date of now in the business zone
func (r Rules) Today(now time.Time) time.Time {
	if r.Location != nil {
		now = now.In(r.Location)
	}
	return Day(now)
}

// StatusAt derives the status of a subscription ending on dateFin.
// date_fin < today is expire, date_fin <= today+window is en_alerte.
func (r Rules) StatusAt(dateFin, now time.Time) models.SubscriptionStatus {
	today := r.Today(now)
	fin := Day(dateFin)
	alertThreshold := today.AddDate(0, 0, r.window())

	switch {
	case fin.Before(today):
		return models.SubscriptionStatusExpire
	case !fin.After(alertThreshold):
		return models.SubscriptionStatusEnAlerte
	default:
		return models.SubscriptionStatusActif
	}
}

// Reconcile returns the status sub should have at now and whether it differs
// from the stored one. It never mutates sub.
func (r Rules) Reconcile(sub models.Subscription, now time.Time) (models.SubscriptionStatus, bool) {
	status := r.StatusAt(sub.DateFin, now)
	return status, status != sub.Statut
}

func (r Rules) window() int {
	if r.AlertWindowDays <= 0 {
		return DefaultAlertWindowDays
	}
	return r.AlertWindowDays
}
