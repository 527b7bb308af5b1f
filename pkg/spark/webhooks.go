package spark

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Futuramistic/Bot/pkg/pagination"
	"github.com/Futuramistic/Bot/pkg/validate"
)

const webhooksPath = "webhooks"

// Webhook is a registered webhook.
type Webhook struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TargetURL string    `json:"targetUrl"`
	Resource  string    `json:"resource"`
	Event     string    `json:"event"`
	Filter    string    `json:"filter"`
	Secret    string    `json:"secret"`
	Status    string    `json:"status"`
	Created   time.Time `json:"created"`
}

func (w Webhook) resourceID() string { return w.ID }

// WebhookEventData is the "data" object of a webhook callback. For message
// events ID is the message id; the message text is not included and must be
// fetched.
type WebhookEventData struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"roomId"`
	RoomType    string    `json:"roomType"`
	PersonID    string    `json:"personId"`
	PersonEmail string    `json:"personEmail"`
	Created     time.Time `json:"created"`
}

// WebhookEvent is the payload the service POSTs to a webhook target.
type WebhookEvent struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	TargetURL string           `json:"targetUrl"`
	Resource  string           `json:"resource"`
	Event     string           `json:"event"`
	Filter    string           `json:"filter"`
	OrgID     string           `json:"orgId"`
	CreatedBy string           `json:"createdBy"`
	AppID     string           `json:"appId"`
	OwnedBy   string           `json:"ownedBy"`
	Status    string           `json:"status"`
	ActorID   string           `json:"actorId"`
	Data      WebhookEventData `json:"data"`
}

func (e WebhookEvent) resourceID() string { return e.ID }

// DecodeWebhookEvent reads an inbound webhook payload.
func DecodeWebhookEvent(r io.Reader) (WebhookEvent, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("read webhook event: %w", err)
	}

	event, err := decode[WebhookEvent]("webhook event", json.RawMessage(raw))
	if err != nil {
		return WebhookEvent{}, err
	}
	if event.Data.ID == "" {
		return WebhookEvent{}, fmt.Errorf("decode webhook event data: %w", ErrMissingID)
	}
	return event, nil
}

// WebhooksAPI wraps the webhooks endpoints.
type WebhooksAPI struct {
	client Client
}

// List returns the registered webhooks.
func (a *WebhooksAPI) List(max int) (pagination.Container[Webhook], error) {
	params, err := listParams(validate.NewParams(), max, nil)
	if err != nil {
		return pagination.Container[Webhook]{}, err
	}

	return pagination.New(a.client, webhooksPath, params, decoder[Webhook]("webhook")), nil
}

// Create registers a webhook. filter is optional.
func (a *WebhooksAPI) Create(ctx context.Context, name, targetURL, resource, event, filter string) (Webhook, error) {
	if err := validate.First(
		validate.Required("name", name),
		validate.Required("targetUrl", targetURL),
		validate.Required("resource", resource),
		validate.Required("event", event),
	); err != nil {
		return Webhook{}, err
	}

	body := validate.NewParams().
		Str("name", name).
		Str("targetUrl", targetURL).
		Str("resource", resource).
		Str("event", event).
		Str("filter", filter)

	raw, err := a.client.Post(ctx, webhooksPath, body)
	if err != nil {
		return Webhook{}, fmt.Errorf("creating webhook: %w", err)
	}
	return decode[Webhook]("webhook", raw)
}

// Get returns one webhook.
func (a *WebhooksAPI) Get(ctx context.Context, webhookID string) (Webhook, error) {
	if err := validate.Required("webhookId", webhookID); err != nil {
		return Webhook{}, err
	}

	raw, err := a.client.Get(ctx, resourcePath(webhooksPath, webhookID), nil)
	if err != nil {
		return Webhook{}, fmt.Errorf("getting webhook: %w", err)
	}
	return decode[Webhook]("webhook", raw)
}

// Delete removes a webhook.
func (a *WebhooksAPI) Delete(ctx context.Context, webhookID string) error {
	if err := validate.Required("webhookId", webhookID); err != nil {
		return err
	}

	if err := a.client.Delete(ctx, resourcePath(webhooksPath, webhookID)); err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}
	return nil
}

// FindByName returns the first webhook named name. found is false when no
// webhook matches.
func (a *WebhooksAPI) FindByName(ctx context.Context, name string) (webhook Webhook, found bool, err error) {
	if err := validate.Required("name", name); err != nil {
		return Webhook{}, false, err
	}

	webhooks, err := a.List(0)
	if err != nil {
		return Webhook{}, false, err
	}

	for w, err := range webhooks.All(ctx) {
		if err != nil {
			return Webhook{}, false, fmt.Errorf("listing webhooks: %w", err)
		}
		if w.Name == name {
			return w, true, nil
		}
	}
	return Webhook{}, false, nil
}
