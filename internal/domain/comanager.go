package domain

import (
	"strings"
	"time"
)

// AccessLevel is the display tag chosen when a co-manager is created.
// Effective rights always come from Permissions.
type AccessLevel string

const (
	AccessManage AccessLevel = "gerer"
	AccessView   AccessLevel = "consulter"
	AccessAdd    AccessLevel = "Ajouter"
)

// ParseAccessLevel validates an access level tag.
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch l := AccessLevel(s); l {
	case AccessManage, AccessView, AccessAdd:
		return l, nil
	}
	return "", ErrValidation("accessLevel %q must be one of gerer, consulter, Ajouter", s)
}

// CoManagerStatus is the lifecycle status of a delegated collaborator.
type CoManagerStatus string

const (
	CoManagerActive    CoManagerStatus = "actif"
	CoManagerInactive  CoManagerStatus = "inactif"
	CoManagerPending   CoManagerStatus = "pending"
	CoManagerSuspended CoManagerStatus = "suspendu"
)

// ParseCoManagerStatus validates a status value.
func ParseCoManagerStatus(s string) (CoManagerStatus, error) {
	switch st := CoManagerStatus(s); st {
	case CoManagerActive, CoManagerInactive, CoManagerPending, CoManagerSuspended:
		return st, nil
	}
	return "", ErrValidation("status %q must be one of actif, inactif, pending, suspendu", s)
}

// CanAct reports whether a co-manager in this status may use the API.
func (s CoManagerStatus) CanAct() bool {
	return s == CoManagerActive || s == CoManagerPending
}

// CoManager is a delegated collaborator acting on behalf of exactly one
// principal (ProprietaireID).
type CoManager struct {
	ID                 string          `json:"id"`
	Nom                string          `json:"nom"`
	Prenom             string          `json:"prenom,omitempty"`
	Email              string          `json:"email"`
	Telephone          string          `json:"telephone"`
	Pays               string          `json:"pays"`
	Ville              string          `json:"ville"`
	AccessLevel        AccessLevel     `json:"accessLevel"`
	Status             CoManagerStatus `json:"statut"`
	Permissions        Permissions     `json:"permissions"`
	ProprietaireID     string          `json:"proprietaireId"`
	PasswordHash       string          `json:"-"`
	MustChangePassword bool            `json:"mustChangePassword"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// DisplayName is used in audit lines and emails.
func (c *CoManager) DisplayName() string {
	name := strings.TrimSpace(c.Prenom + " " + c.Nom)
	if name == "" {
		return c.Email
	}
	return name
}

// Validate checks the identity fields and the permission set. The password
// is validated separately since it is never stored in clear.
func (c *CoManager) Validate() error {
	if strings.TrimSpace(c.Nom) == "" {
		return ErrValidation("nom is required")
	}
	if err := ValidateEmail(c.Email); err != nil {
		return err
	}
	if strings.TrimSpace(c.Telephone) == "" {
		return ErrValidation("telephone is required")
	}
	if strings.TrimSpace(c.Pays) == "" {
		return ErrValidation("pays is required")
	}
	if strings.TrimSpace(c.Ville) == "" {
		return ErrValidation("ville is required")
	}
	if _, err := ParseAccessLevel(string(c.AccessLevel)); err != nil {
		return err
	}
	if _, err := ParseCoManagerStatus(string(c.Status)); err != nil {
		return err
	}
	if c.Permissions.Empty() {
		return ErrValidation("permissions must grant at least one action")
	}
	if c.ProprietaireID == "" {
		return ErrValidation("proprietaireId is required")
	}
	return nil
}
