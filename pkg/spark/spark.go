// Package spark exposes the Spark REST resources as typed Go APIs built on
// a session.Session.
//
// List methods return a pagination.Container, which fetches nothing until it
// is iterated and can be iterated any number of times. Single-object methods
// block until the call (rate-limit waits included) completes.
package spark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/Futuramistic/Bot/pkg/pagination"
	"github.com/Futuramistic/Bot/pkg/session"
	"github.com/Futuramistic/Bot/pkg/validate"
)

// ErrMissingID is returned when a resource object lacks its "id" key.
var ErrMissingID = errors.New("required key 'id' not found")

// Client is the request surface the resource APIs need. It is implemented
// by *session.Session.
type Client interface {
	pagination.PageFetcher
	Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error)
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
	Put(ctx context.Context, path string, body any) (json.RawMessage, error)
	Delete(ctx context.Context, path string) error
}

var _ Client = (*session.Session)(nil)

// API aggregates the resource APIs over one session.
type API struct {
	Session *session.Session

	TeamMemberships *TeamMembershipsAPI
	Memberships     *MembershipsAPI
	People          *PeopleAPI
	Rooms           *RoomsAPI
	Messages        *MessagesAPI
	Webhooks        *WebhooksAPI
}

// New creates a session from cfg and the resource APIs on top of it.
func New(cfg session.Config) (*API, error) {
	s, err := session.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return NewWithSession(s), nil
}

// NewWithSession builds the resource APIs over an existing session.
func NewWithSession(s *session.Session) *API {
	return &API{
		Session:         s,
		TeamMemberships: &TeamMembershipsAPI{client: s},
		Memberships:     &MembershipsAPI{client: s},
		People:          &PeopleAPI{client: s},
		Rooms:           &RoomsAPI{client: s},
		Messages:        &MessagesAPI{client: s},
		Webhooks:        &WebhooksAPI{client: s},
	}
}

// resource is implemented by every typed view.
type resource interface {
	resourceID() string
}

// decoder returns a pagination decoder for T that rejects objects without
// an id.
func decoder[T resource](kind string) pagination.Decoder[T] {
	return func(raw json.RawMessage) (T, error) {
		return decode[T](kind, raw)
	}
}

func decode[T resource](kind string, raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, fmt.Errorf("decode %s: empty body", kind)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", kind, err)
	}
	if v.resourceID() == "" {
		return v, fmt.Errorf("decode %s: %w", kind, ErrMissingID)
	}
	return v, nil
}

// resourcePath joins a collection path and an escaped id.
func resourcePath(collection, id string) string {
	return collection + "/" + url.PathEscape(id)
}

// listParams applies the shared page-size hint and caller extras.
func listParams(params validate.Params, max int, extra map[string]any) (url.Values, error) {
	if err := validate.NonNegative("max", max); err != nil {
		return nil, err
	}
	return params.Int("max", max).Merge(extra).Values(), nil
}
