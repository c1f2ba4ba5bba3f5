package webhook

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/internal/entity"
	"github.com/fanouthq/fanout/signature"
)

// Service provides webhook management operations.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new webhook service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Create registers a new webhook.
func (svc *Service) Create(ctx context.Context, in Input) (*Webhook, error) {
	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "required"}
	}

	if _, err := url.ParseRequestURI(in.URL); err != nil {
		return nil, &ValidationError{Field: "url", Message: "invalid URL"}
	}

	if len(in.Events) == 0 {
		return nil, &ValidationError{Field: "events", Message: "at least one event pattern required"}
	}

	policy := DefaultRetryPolicy()
	if in.RetryPolicy != nil {
		policy = *in.RetryPolicy
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	secret := in.Secret
	if secret == "" {
		secret = signature.GenerateSecret()
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	rateLimit := 0
	if in.RateLimit != nil {
		rateLimit = *in.RateLimit
	}

	wh := &Webhook{
		Entity:      entity.New(),
		ID:          id.NewWebhookID(),
		OwnerID:     in.OwnerID,
		Name:        in.Name,
		URL:         in.URL,
		Secret:      secret,
		Events:      in.Events,
		Headers:     in.Headers,
		Active:      active,
		RetryPolicy: policy,
		Filters:     in.Filters,
		RateLimit:   rateLimit,
		Metadata:    in.Metadata,
	}

	if err := svc.store.CreateWebhook(ctx, wh); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "webhook created",
		"webhook_id", wh.ID, "name", wh.Name, "url", wh.URL)

	return wh, nil
}

// Get returns a webhook by ID.
func (svc *Service) Get(ctx context.Context, whID id.ID) (*Webhook, error) {
	return svc.store.GetWebhook(ctx, whID)
}

// Update merges the non-zero fields of in into an existing webhook.
func (svc *Service) Update(ctx context.Context, whID id.ID, in Input) (*Webhook, error) {
	wh, err := svc.store.GetWebhook(ctx, whID)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		wh.Name = in.Name
	}
	if in.URL != "" {
		if _, err := url.ParseRequestURI(in.URL); err != nil {
			return nil, &ValidationError{Field: "url", Message: "invalid URL"}
		}
		wh.URL = in.URL
	}
	if in.Secret != "" {
		wh.Secret = in.Secret
	}
	if len(in.Events) > 0 {
		wh.Events = in.Events
	}
	if in.Headers != nil {
		wh.Headers = in.Headers
	}
	if in.Active != nil {
		wh.Active = *in.Active
	}
	if in.RetryPolicy != nil {
		if err := in.RetryPolicy.Validate(); err != nil {
			return nil, err
		}
		wh.RetryPolicy = *in.RetryPolicy
	}
	if in.Filters != nil {
		wh.Filters = in.Filters
	}
	if in.RateLimit != nil {
		wh.RateLimit = *in.RateLimit
	}
	if in.Metadata != nil {
		wh.Metadata = in.Metadata
	}

	if err := svc.store.UpdateWebhook(ctx, wh); err != nil {
		return nil, err
	}

	return wh, nil
}

// Delete removes a webhook. Delivery history for the webhook is retained for
// audit, and already-queued deliveries are not purged; they fail at attempt
// time when the lookup comes back empty.
func (svc *Service) Delete(ctx context.Context, whID id.ID) error {
	if err := svc.store.DeleteWebhook(ctx, whID); err != nil {
		return err
	}

	svc.logger.InfoContext(ctx, "webhook deleted", "webhook_id", whID)
	return nil
}

// List returns webhooks, scoped to an owner when ownerID is non-empty.
func (svc *Service) List(ctx context.Context, ownerID string, opts ListOpts) ([]*Webhook, error) {
	return svc.store.ListWebhooks(ctx, ownerID, opts)
}

// SetActive enables or disables a webhook.
func (svc *Service) SetActive(ctx context.Context, whID id.ID, active bool) error {
	return svc.store.SetActive(ctx, whID, active)
}

// RotateSecret generates a new signing secret for a webhook and returns it.
func (svc *Service) RotateSecret(ctx context.Context, whID id.ID) (string, error) {
	wh, err := svc.store.GetWebhook(ctx, whID)
	if err != nil {
		return "", err
	}

	newSecret := signature.GenerateSecret()

	wh.Secret = newSecret
	if err := svc.store.UpdateWebhook(ctx, wh); err != nil {
		return "", err
	}

	return newSecret, nil
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "webhook validation: " + e.Field + ": " + e.Message
}
