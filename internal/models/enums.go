package models

// Secteur is the business sector of a prospect
type Secteur string

const (
	SecteurCommerce       Secteur = "commerce"
	SecteurIndustrie      Secteur = "industrie"
	SecteurServices       Secteur = "services"
	SecteurSante          Secteur = "sante"
	SecteurAdministration Secteur = "administration"
)

func (s Secteur) Valid() bool {
	switch s {
	case SecteurCommerce, SecteurIndustrie, SecteurServices, SecteurSante, SecteurAdministration:
		return true
	}
	return false
}

// ProspectStatus is the lifecycle of a prospect/client
type ProspectStatus string

const (
	ProspectStatusProspect ProspectStatus = "prospect"
	ProspectStatusActif    ProspectStatus = "actif"
	ProspectStatusInactif  ProspectStatus = "inactif"
)

func (s ProspectStatus) Valid() bool {
	switch s {
	case ProspectStatusProspect, ProspectStatusActif, ProspectStatusInactif:
		return true
	}
	return false
}

// InstallationType distinguishes one-time acquisitions from subscriptions
type InstallationType string

const (
	InstallationTypeAcquisition InstallationType = "acquisition"
	InstallationTypeAbonnement  InstallationType = "abonnement"
)

func (t InstallationType) Valid() bool {
	return t == InstallationTypeAcquisition || t == InstallationTypeAbonnement
}

// InstallationStatus tracks the deployment itself
type InstallationStatus string

const (
	InstallationStatusEnCours  InstallationStatus = "en_cours"
	InstallationStatusTerminee InstallationStatus = "terminee"
)

func (s InstallationStatus) Valid() bool {
	return s == InstallationStatusEnCours || s == InstallationStatusTerminee
}

// SubscriptionStatus is derived from the subscription end date
type SubscriptionStatus string

const (
	SubscriptionStatusActif    SubscriptionStatus = "actif"
	SubscriptionStatusEnAlerte SubscriptionStatus = "en_alerte"
	SubscriptionStatusExpire   SubscriptionStatus = "expire"
)

// IsLive reports whether the status counts toward the one-live-subscription rule
func (s SubscriptionStatus) IsLive() bool {
	return s == SubscriptionStatusActif || s == SubscriptionStatusEnAlerte
}

func (s SubscriptionStatus) Valid() bool {
	return s.IsLive() || s == SubscriptionStatusExpire
}

// LiveSubscriptionStatuses lists the statuses of a current subscription
var LiveSubscriptionStatuses = []SubscriptionStatus{SubscriptionStatusActif, SubscriptionStatusEnAlerte}

// PaymentMode is how a payment was made
type PaymentMode string

const (
	PaymentModeEspeces   PaymentMode = "especes"
	PaymentModeCheque    PaymentMode = "cheque"
	PaymentModeVirement  PaymentMode = "virement"
	PaymentModeVersement PaymentMode = "versement"
	PaymentModeCarte     PaymentMode = "carte"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentModeEspeces, PaymentModeCheque, PaymentModeVirement, PaymentModeVersement, PaymentModeCarte:
		return true
	}
	return false
}

// PaymentType tells whether a payment settles an acquisition or a subscription
type PaymentType string

const (
	PaymentTypeAcquisition PaymentType = "acquisition"
	PaymentTypeAbonnement  PaymentType = "abonnement"
)

func (t PaymentType) Valid() bool {
	return t == PaymentTypeAcquisition || t == PaymentTypeAbonnement
}

// InterventionStatus: en_cours until closed, cloturee is terminal
type InterventionStatus string

const (
	InterventionStatusEnCours  InterventionStatus = "en_cours"
	InterventionStatusCloturee InterventionStatus = "cloturee"
)

// MissionStatus progresses creee -> en_cours -> cloturee -> validee
type MissionStatus string

const (
	MissionStatusCreee    MissionStatus = "creee"
	MissionStatusEnCours  MissionStatus = "en_cours"
	MissionStatusCloturee MissionStatus = "cloturee"
	MissionStatusValidee  MissionStatus = "validee"
)

// Next returns the status that follows s, or "" when s is terminal
func (s MissionStatus) Next() MissionStatus {
	switch s {
	case MissionStatusCreee:
		return MissionStatusEnCours
	case MissionStatusEnCours:
		return MissionStatusCloturee
	case MissionStatusCloturee:
		return MissionStatusValidee
	}
	return ""
}

// Role of a user
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleCommercial Role = "commercial"
	RoleTechnicien Role = "technicien"
	RoleSupport    Role = "support"
	RoleComptable  Role = "comptable"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleCommercial, RoleTechnicien, RoleSupport, RoleComptable:
		return true
	}
	return false
}

// IsAdmin reports whether the role is implicitly granted every permission
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// ActivityAction names an entry of the prospect history
type ActivityAction string

const (
	ActionCreate              ActivityAction = "create"
	ActionUpdate              ActivityAction = "update"
	ActionConversion          ActivityAction = "conversion"
	ActionInstallation        ActivityAction = "installation"
	ActionPaiement            ActivityAction = "paiement"
	ActionAbonnementRenew     ActivityAction = "abonnement_renew"
	ActionAbonnementAutoRenew ActivityAction = "abonnement_auto_renew"
	ActionIntervention        ActivityAction = "intervention"
	ActionMission             ActivityAction = "mission"
)
