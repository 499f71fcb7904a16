// Package models contains the A2S Gestion data structures
// Table names follow the hosted backend schema (prospects, installations,
// abonnements, paiements, interventions, missions, users).
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// =============================================================================
// PROSPECTS / CLIENTS
// =============================================================================

// Prospect is a potential client; it becomes a client (statut actif) on its
// first installation
type Prospect struct {
	ID         uuid.UUID      `json:"id" gorm:"type:char(36);primaryKey"`
	Nom        string         `json:"nom" gorm:"not null;size:255"`
	Entreprise string         `json:"entreprise" gorm:"size:255"`
	Email      string         `json:"email" gorm:"size:255"`
	Telephone  string         `json:"telephone" gorm:"size:50"`
	Adresse    string         `json:"adresse"`
	Wilaya     string         `json:"wilaya" gorm:"size:100"`
	Secteur    Secteur        `json:"secteur" gorm:"size:30;index"`
	Statut     ProspectStatus `json:"statut" gorm:"size:20;index;default:prospect"`
	Notes      string         `json:"notes"`
	CreatedBy  *uuid.UUID     `json:"created_by,omitempty" gorm:"type:char(36)"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (p *Prospect) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// IsClient reports whether the prospect has been converted
func (p *Prospect) IsClient() bool {
	return p.Statut != ProspectStatusProspect
}

// ActivityEvent is one entry of a prospect's append-only activity history
type ActivityEvent struct {
	ID         uuid.UUID         `json:"id" gorm:"type:char(36);primaryKey"`
	ProspectID uuid.UUID         `json:"prospect_id" gorm:"type:char(36);index;not null"`
	Action     ActivityAction    `json:"action" gorm:"size:50;not null"`
	Details    datatypes.JSONMap `json:"details"`
	ActorID    *uuid.UUID        `json:"actor_id,omitempty" gorm:"type:char(36)"`
	CreatedAt  time.Time         `json:"created_at" gorm:"index"`
}

// TableName returns the table name for ActivityEvent
func (ActivityEvent) TableName() string {
	return "prospect_activites"
}

func (e *ActivityEvent) BeforeCreate(tx *gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// =============================================================================
// INSTALLATIONS / ABONNEMENTS / PAIEMENTS
// =============================================================================

// Installation is a software deployment or sale recorded for a client
type Installation struct {
	ID                   uuid.UUID          `json:"id" gorm:"type:char(36);primaryKey"`
	ClientID             uuid.UUID          `json:"client_id" gorm:"type:char(36);index;not null"`
	ApplicationInstallee string             `json:"application_installee" gorm:"not null;size:255"`
	Montant              decimal.Decimal    `json:"montant" gorm:"type:decimal(14,2);not null"`
	Type                 InstallationType   `json:"type" gorm:"size:20;not null"`
	Statut               InstallationStatus `json:"statut" gorm:"size:20;default:en_cours"`
	DateInstallation     time.Time          `json:"date_installation" gorm:"type:date;not null"`
	Notes                string             `json:"notes"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`

	// Relations
	Client        *Prospect      `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	Subscriptions []Subscription `json:"abonnements,omitempty" gorm:"foreignKey:InstallationID"`
}

func (i *Installation) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// Subscription (abonnement) is the yearly term attached to an installation.
// Statut is derived from DateFin; the stored value is refreshed by the
// reconcile step.
type Subscription struct {
	ID             uuid.UUID          `json:"id" gorm:"type:char(36);primaryKey"`
	InstallationID uuid.UUID          `json:"installation_id" gorm:"type:char(36);index;not null"`
	DateDebut      time.Time          `json:"date_debut" gorm:"type:date;not null"`
	DateFin        time.Time          `json:"date_fin" gorm:"type:date;not null;index"`
	Statut         SubscriptionStatus `json:"statut" gorm:"size:20;not null;index"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`

	// Relations
	Installation *Installation `json:"installation,omitempty" gorm:"foreignKey:InstallationID"`
}

// TableName returns the table name for Subscription
func (Subscription) TableName() string {
	return "abonnements"
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// IsLive reports whether the stored status is actif or en_alerte
func (s *Subscription) IsLive() bool {
	return s.Statut.IsLive()
}

// Payment (paiement) is a user-entered money transfer
type Payment struct {
	ID             uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	ClientID       uuid.UUID       `json:"client_id" gorm:"type:char(36);index;not null"`
	InstallationID *uuid.UUID      `json:"installation_id,omitempty" gorm:"type:char(36);index"`
	Montant        decimal.Decimal `json:"montant" gorm:"type:decimal(14,2);not null"`
	ModePaiement   PaymentMode     `json:"mode_paiement" gorm:"size:20;not null"`
	Type           PaymentType     `json:"type" gorm:"size:20;not null"`
	DatePaiement   time.Time       `json:"date_paiement" gorm:"type:date;not null"`
	Reference      string          `json:"reference" gorm:"size:100"`
	Notes          string          `json:"notes"`
	CreatedBy      *uuid.UUID      `json:"created_by,omitempty" gorm:"type:char(36)"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	// Relations
	Client       *Prospect     `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	Installation *Installation `json:"installation,omitempty" gorm:"foreignKey:InstallationID"`
}

// TableName returns the table name for Payment
func (Payment) TableName() string {
	return "paiements"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// =============================================================================
// INTERVENTIONS / MISSIONS
// =============================================================================

// Intervention is a support ticket handled by a technician
type Intervention struct {
	ID               uuid.UUID          `json:"id" gorm:"type:char(36);primaryKey"`
	ClientID         uuid.UUID          `json:"client_id" gorm:"type:char(36);index;not null"`
	TechnicienID     uuid.UUID          `json:"technicien_id" gorm:"type:char(36);index;not null"`
	Objet            string             `json:"objet" gorm:"not null;size:255"`
	Description      string             `json:"description"`
	Statut           InterventionStatus `json:"statut" gorm:"size:20;default:en_cours;index"`
	DateDebut        time.Time          `json:"date_debut"`
	DateFin          *time.Time         `json:"date_fin"`
	ActionEntreprise string             `json:"action_entreprise"`
	Commentaires     string             `json:"commentaires"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`

	// Relations
	Client     *Prospect `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	Technicien *User     `json:"technicien,omitempty" gorm:"foreignKey:TechnicienID"`
}

func (i *Intervention) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// Mission is a field assignment with a two-step sign-off
type Mission struct {
	ID             uuid.UUID     `json:"id" gorm:"type:char(36);primaryKey"`
	ClientID       *uuid.UUID    `json:"client_id,omitempty" gorm:"type:char(36);index"`
	Titre          string        `json:"titre" gorm:"not null;size:255"`
	Description    string        `json:"description"`
	Lieu           string        `json:"lieu" gorm:"size:255"`
	ResponsableID  *uuid.UUID    `json:"responsable_id,omitempty" gorm:"type:char(36)"`
	Statut         MissionStatus `json:"statut" gorm:"size:20;default:creee;index"`
	DatePrevue     *time.Time    `json:"date_prevue" gorm:"type:date"`
	Rapport        string        `json:"rapport"`
	ClotureeParID  *uuid.UUID    `json:"cloturee_par,omitempty" gorm:"type:char(36)"`
	DateCloture    *time.Time    `json:"date_cloture"`
	ValideeParID   *uuid.UUID    `json:"validee_par,omitempty" gorm:"type:char(36)"`
	DateValidation *time.Time    `json:"date_validation"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`

	// Relations
	Client *Prospect `json:"client,omitempty" gorm:"foreignKey:ClientID"`
}

func (m *Mission) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// =============================================================================
// USERS / PERMISSIONS
// =============================================================================

// User mirrors an account of the hosted auth provider; ID is the token subject
type User struct {
	ID        uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Email     string    `json:"email" gorm:"not null;size:255;uniqueIndex"`
	Nom       string    `json:"nom" gorm:"size:100"`
	Prenom    string    `json:"prenom" gorm:"size:100"`
	Role      Role      `json:"role" gorm:"size:30;not null;index"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// FullName returns "Prenom Nom"
func (u *User) FullName() string {
	if u.Prenom == "" {
		return u.Nom
	}
	return u.Prenom + " " + u.Nom
}

// Permission grants a role actions on a resource
type Permission struct {
	ID        uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Role      Role      `json:"role" gorm:"size:30;not null;uniqueIndex:idx_permission_role_resource"`
	Resource  string    `json:"resource" gorm:"size:50;not null;uniqueIndex:idx_permission_role_resource"`
	CanView   bool      `json:"can_view"`
	CanCreate bool      `json:"can_create" gorm:"default:false"`
	CanEdit   bool      `json:"can_edit" gorm:"default:false"`
	CanDelete bool      `json:"can_delete" gorm:"default:false"`
	CanClose  bool      `json:"can_close" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Permission) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// All returns every model managed by migrations, parents first
func All() []interface{} {
	return []interface{}{
		&User{},
		&Permission{},
		&Prospect{},
		&ActivityEvent{},
		&Installation{},
		&Subscription{},
		&Payment{},
		&Intervention{},
		&Mission{},
	}
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
