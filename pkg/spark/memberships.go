package spark

import (
	"context"
	"fmt"
	"time"

	"github.com/Futuramistic/Bot/pkg/pagination"
	"github.com/Futuramistic/Bot/pkg/validate"
)

const membershipsPath = "memberships"

// Membership is a person's membership in a room.
type Membership struct {
	ID                string    `json:"id"`
	RoomID            string    `json:"roomId"`
	PersonID          string    `json:"personId"`
	PersonEmail       string    `json:"personEmail"`
	PersonDisplayName string    `json:"personDisplayName"`
	PersonOrgID       string    `json:"personOrgId"`
	IsModerator       bool      `json:"isModerator"`
	IsMonitor         bool      `json:"isMonitor"`
	Created           time.Time `json:"created"`
}

func (m Membership) resourceID() string { return m.ID }

// ListMembershipsOptions filters a membership listing. With no filters the
// service lists the memberships of the authenticated user.
type ListMembershipsOptions struct {
	RoomID      string
	PersonID    string
	PersonEmail string
	Max         int
	Extra       map[string]any
}

// MembershipsAPI wraps the room memberships endpoints.
type MembershipsAPI struct {
	client Client
}

// List returns room memberships matching opts.
func (a *MembershipsAPI) List(opts ListMembershipsOptions) (pagination.Container[Membership], error) {
	params := validate.NewParams().
		Str("roomId", opts.RoomID).
		Str("personId", opts.PersonID).
		Str("personEmail", opts.PersonEmail)

	values, err := listParams(params, opts.Max, opts.Extra)
	if err != nil {
		return pagination.Container[Membership]{}, err
	}

	return pagination.New(a.client, membershipsPath, values, decoder[Membership]("membership")), nil
}

// Create adds a person to a room by personID or personEmail.
func (a *MembershipsAPI) Create(ctx context.Context, roomID, personID, personEmail string, isModerator bool) (Membership, error) {
	if err := validate.First(
		validate.Required("roomId", roomID),
		validate.AtLeastOne("personId", personID, "personEmail", personEmail),
	); err != nil {
		return Membership{}, err
	}

	body := validate.NewParams().
		Str("roomId", roomID).
		Str("personId", personID).
		Str("personEmail", personEmail).
		Bool("isModerator", isModerator)

	raw, err := a.client.Post(ctx, membershipsPath, body)
	if err != nil {
		return Membership{}, fmt.Errorf("creating membership: %w", err)
	}
	return decode[Membership]("membership", raw)
}

// Get returns one room membership.
func (a *MembershipsAPI) Get(ctx context.Context, membershipID string) (Membership, error) {
	if err := validate.Required("membershipId", membershipID); err != nil {
		return Membership{}, err
	}

	raw, err := a.client.Get(ctx, resourcePath(membershipsPath, membershipID), nil)
	if err != nil {
		return Membership{}, fmt.Errorf("getting membership: %w", err)
	}
	return decode[Membership]("membership", raw)
}

// Update changes the moderator flag of a room membership.
func (a *MembershipsAPI) Update(ctx context.Context, membershipID string, isModerator *bool) (Membership, error) {
	if err := validate.Required("membershipId", membershipID); err != nil {
		return Membership{}, err
	}

	raw, err := a.client.Put(ctx, resourcePath(membershipsPath, membershipID),
		validate.NewParams().OptBool("isModerator", isModerator))
	if err != nil {
		return Membership{}, fmt.Errorf("updating membership: %w", err)
	}
	return decode[Membership]("membership", raw)
}

// Delete removes a room membership.
func (a *MembershipsAPI) Delete(ctx context.Context, membershipID string) error {
	if err := validate.Required("membershipId", membershipID); err != nil {
		return err
	}

	if err := a.client.Delete(ctx, resourcePath(membershipsPath, membershipID)); err != nil {
		return fmt.Errorf("deleting membership: %w", err)
	}
	return nil
}
