package integration

import (
	"context"
	"log/slog"

	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/internal/entity"
)

// Service provides integration management operations.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new integration service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Create registers a new integration.
func (svc *Service) Create(ctx context.Context, in Input) (*Integration, error) {
	if !in.Kind.Valid() {
		return nil, &ValidationError{Field: "kind", Message: "unknown integration kind"}
	}
	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "required"}
	}

	cfg := Config{}
	if in.Config != nil {
		cfg = *in.Config
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	intg := &Integration{
		Entity:        entity.New(),
		ID:            id.NewIntegrationID(),
		Kind:          in.Kind,
		OwnerID:       in.OwnerID,
		Name:          in.Name,
		Config:        cfg,
		EventMappings: in.EventMappings,
		Active:        active,
	}

	if err := svc.store.CreateIntegration(ctx, intg); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "integration created",
		"integration_id", intg.ID, "kind", intg.Kind, "name", intg.Name)

	return intg, nil
}

// Get returns an integration by ID.
func (svc *Service) Get(ctx context.Context, intgID id.ID) (*Integration, error) {
	return svc.store.GetIntegration(ctx, intgID)
}

// Update merges the non-zero fields of in into an existing integration.
func (svc *Service) Update(ctx context.Context, intgID id.ID, in Input) (*Integration, error) {
	intg, err := svc.store.GetIntegration(ctx, intgID)
	if err != nil {
		return nil, err
	}

	if in.Kind != "" {
		if !in.Kind.Valid() {
			return nil, &ValidationError{Field: "kind", Message: "unknown integration kind"}
		}
		intg.Kind = in.Kind
	}
	if in.Name != "" {
		intg.Name = in.Name
	}
	if in.Config != nil {
		intg.Config = *in.Config
	}
	if in.EventMappings != nil {
		intg.EventMappings = in.EventMappings
	}
	if in.Active != nil {
		intg.Active = *in.Active
	}

	if err := svc.store.UpdateIntegration(ctx, intg); err != nil {
		return nil, err
	}

	return intg, nil
}

// Delete removes an integration. Integration sends keep no audit history,
// so there is nothing to cascade.
func (svc *Service) Delete(ctx context.Context, intgID id.ID) error {
	return svc.store.DeleteIntegration(ctx, intgID)
}

// List returns integrations, scoped to an owner when ownerID is non-empty.
func (svc *Service) List(ctx context.Context, ownerID string, opts ListOpts) ([]*Integration, error) {
	return svc.store.ListIntegrations(ctx, ownerID, opts)
}

// SetActive enables or disables an integration.
func (svc *Service) SetActive(ctx context.Context, intgID id.ID, active bool) error {
	return svc.store.SetIntegrationActive(ctx, intgID, active)
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "integration validation: " + e.Field + ": " + e.Message
}
