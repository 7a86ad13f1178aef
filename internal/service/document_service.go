package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/laala/laala-api/internal/domain"
)

// Field values shared with the dashboard.
const (
	WithdrawalPending = "en_attente"
	CampaignDraft     = "brouillon"
)

// reserved keys are owned by the store and never taken from payloads
var reservedKeys = []string{"id", domain.OwnerField, "createdBy", "createdAt", "updatedAt"}

type validator func(data map[string]interface{}) error

// DocumentService serves the owned collections. Every call is scoped by
// the caller's data filter; documents of other principals behave as missing.
type DocumentService struct {
	docs        domain.DocumentRepository
	collections map[domain.Resource]string
	withdrawals string
	validators  map[domain.Resource]validator
	logger      *slog.Logger
}

// NewDocumentService creates a document service. collections maps each
// resource to its configured collection name.
func NewDocumentService(docs domain.DocumentRepository, collections map[domain.Resource]string, withdrawals string, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{
		docs:        docs,
		collections: collections,
		withdrawals: withdrawals,
		validators: map[domain.Resource]validator{
			domain.ResourceLaalas:         validateLaala,
			domain.ResourceContenus:       validateContenu,
			domain.ResourceCommunications: validateCommunication,
			domain.ResourceCampaigns:      validateCampaign,
		},
		logger: logger,
	}
}

func (s *DocumentService) collection(r domain.Resource) (string, error) {
	name, ok := s.collections[r]
	if !ok || name == "" {
		return "", fmt.Errorf("no collection configured for %s", r)
	}
	return name, nil
}

// List returns the resource's documents visible through filter
func (s *DocumentService) List(ctx context.Context, r domain.Resource, filter domain.DataFilter) ([]*domain.Document, error) {
	coll, err := s.collection(r)
	if err != nil {
		return nil, err
	}
	out, err := s.docs.List(ctx, coll, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r, err)
	}
	return out, nil
}

// Get returns one document visible through filter
func (s *DocumentService) Get(ctx context.Context, r domain.Resource, id string, filter domain.DataFilter) (*domain.Document, error) {
	coll, err := s.collection(r)
	if err != nil {
		return nil, err
	}
	return s.docs.Get(ctx, coll, id, filter)
}

// Create validates data and stores it for the principal in filter.
// actorID is the co-manager or principal performing the call.
func (s *DocumentService) Create(ctx context.Context, r domain.Resource, filter domain.DataFilter, actorID string, data map[string]interface{}) (*domain.Document, error) {
	coll, err := s.collection(r)
	if err != nil {
		return nil, err
	}
	data = clean(data)
	if err := s.validators[r](data); err != nil {
		return nil, err
	}

	doc := &domain.Document{
		ID:         uuid.NewString(),
		Collection: coll,
		IDCreateur: filter.Value,
		Data:       data,
		CreatedBy:  actorID,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", r, err)
	}
	s.logger.Info("document created",
		slog.String("resource", string(r)),
		slog.String("id", doc.ID),
		slog.String("id_createur", doc.IDCreateur),
		slog.String("created_by", actorID),
	)
	return doc, nil
}

// Update merges patch into the stored document and validates the result
func (s *DocumentService) Update(ctx context.Context, r domain.Resource, id string, filter domain.DataFilter, patch map[string]interface{}) (*domain.Document, error) {
	doc, err := s.Get(ctx, r, id, filter)
	if err != nil {
		return nil, err
	}
	for k, v := range clean(patch) {
		if v == nil {
			delete(doc.Data, k)
			continue
		}
		doc.Data[k] = v
	}
	if err := s.validators[r](doc.Data); err != nil {
		return nil, err
	}
	if err := s.docs.Update(ctx, doc, filter); err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", r, err)
	}
	return doc, nil
}

// Delete removes a document visible through filter
func (s *DocumentService) Delete(ctx context.Context, r domain.Resource, id string, filter domain.DataFilter) error {
	coll, err := s.collection(r)
	if err != nil {
		return err
	}
	return s.docs.Delete(ctx, coll, id, filter)
}

// ListWithdrawals returns the principal's withdrawal requests
func (s *DocumentService) ListWithdrawals(ctx context.Context, principalID string) ([]*domain.Document, error) {
	out, err := s.docs.List(ctx, s.withdrawals, domain.OwnerFilter(principalID))
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return out, nil
}

// GetWithdrawal returns one of the principal's withdrawal requests
func (s *DocumentService) GetWithdrawal(ctx context.Context, principalID, id string) (*domain.Document, error) {
	return s.docs.Get(ctx, s.withdrawals, id, domain.OwnerFilter(principalID))
}

// RequestWithdrawal records a withdrawal in en_attente status
func (s *DocumentService) RequestWithdrawal(ctx context.Context, principalID string, data map[string]interface{}) (*domain.Document, error) {
	data = clean(data)
	if err := validateWithdrawal(data); err != nil {
		return nil, err
	}
	data["statut"] = WithdrawalPending

	doc := &domain.Document{
		ID:         uuid.NewString(),
		Collection: s.withdrawals,
		IDCreateur: principalID,
		Data:       data,
		CreatedBy:  principalID,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}
	s.logger.Info("withdrawal requested",
		slog.String("id", doc.ID),
		slog.String("id_createur", principalID),
	)
	return doc, nil
}

func clean(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	for _, k := range reservedKeys {
		delete(out, k)
	}
	return out
}

func requireString(data map[string]interface{}, field string) error {
	v, ok := data[field].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return domain.ErrValidation("%s is required", field)
	}
	return nil
}

func optionalEnum(data map[string]interface{}, field string, allowed ...string) error {
	raw, present := data[field]
	if !present {
		return nil
	}
	v, ok := raw.(string)
	if ok {
		for _, a := range allowed {
			if v == a {
				return nil
			}
		}
	}
	return domain.ErrValidation("%s must be one of %s", field, strings.Join(allowed, ", "))
}

func optionalNumber(data map[string]interface{}, field string) (float64, bool, error) {
	raw, present := data[field]
	if !present {
		return 0, false, nil
	}
	switch n := raw.(type) {
	case float64:
		return n, true, nil
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	}
	return 0, false, domain.ErrValidation("%s must be a number", field)
}

func optionalDate(data map[string]interface{}, field string) (time.Time, bool, error) {
	raw, present := data[field]
	if !present {
		return time.Time{}, false, nil
	}
	s, _ := raw.(string)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, domain.ErrValidation("%s must be a date (YYYY-MM-DD or RFC 3339)", field)
}

func validateLaala(data map[string]interface{}) error {
	if err := requireString(data, "nom"); err != nil {
		return err
	}
	return optionalEnum(data, "type", "public", "prive")
}

func validateContenu(data map[string]interface{}) error {
	if err := requireString(data, "titre"); err != nil {
		return err
	}
	return requireString(data, "laalaId")
}

func validateCommunication(data map[string]interface{}) error {
	if err := requireString(data, "sujet"); err != nil {
		return err
	}
	return requireString(data, "message")
}

func validateCampaign(data map[string]interface{}) error {
	if err := requireString(data, "nom"); err != nil {
		return err
	}
	if _, ok := data["statut"]; !ok {
		data["statut"] = CampaignDraft
	}
	if err := optionalEnum(data, "statut", "brouillon", "active", "pause", "terminee"); err != nil {
		return err
	}
	if budget, ok, err := optionalNumber(data, "budget"); err != nil {
		return err
	} else if ok && budget < 0 {
		return domain.ErrValidation("budget must be positive or zero")
	}
	start, hasStart, err := optionalDate(data, "dateDebut")
	if err != nil {
		return err
	}
	end, hasEnd, err := optionalDate(data, "dateFin")
	if err != nil {
		return err
	}
	if hasStart && hasEnd && end.Before(start) {
		return domain.ErrValidation("dateFin must not be before dateDebut")
	}
	return nil
}

func validateWithdrawal(data map[string]interface{}) error {
	amount, ok, err := optionalNumber(data, "montant")
	if err != nil {
		return err
	}
	if !ok || amount <= 0 {
		return domain.ErrValidation("montant must be greater than zero")
	}
	raw, _ := data["methode"].(string)
	if raw != "mobile_money" && raw != "virement" {
		return domain.ErrValidation("methode must be one of mobile_money, virement")
	}
	return nil
}
