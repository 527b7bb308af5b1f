package spark

import (
	"context"
	"fmt"
	"time"

	"github.com/Futuramistic/Bot/pkg/pagination"
	"github.com/Futuramistic/Bot/pkg/validate"
)

const teamMembershipsPath = "team/memberships"

// TeamMembership is a person's membership in a team.
type TeamMembership struct {
	ID                string    `json:"id"`
	TeamID            string    `json:"teamId"`
	PersonID          string    `json:"personId"`
	PersonEmail       string    `json:"personEmail"`
	PersonDisplayName string    `json:"personDisplayName"`
	PersonOrgID       string    `json:"personOrgId"`
	IsModerator       bool      `json:"isModerator"`
	Created           time.Time `json:"created"`
}

func (m TeamMembership) resourceID() string { return m.ID }

// TeamMembershipsAPI wraps the team memberships endpoints.
type TeamMembershipsAPI struct {
	client Client
}

// List returns the memberships of a team. max is a page-size hint (0 uses
// the service default); extra carries additional query parameters.
func (a *TeamMembershipsAPI) List(teamID string, max int, extra map[string]any) (pagination.Container[TeamMembership], error) {
	if err := validate.Required("teamId", teamID); err != nil {
		return pagination.Container[TeamMembership]{}, err
	}

	params, err := listParams(validate.NewParams().Str("teamId", teamID), max, extra)
	if err != nil {
		return pagination.Container[TeamMembership]{}, err
	}

	return pagination.New(a.client, teamMembershipsPath, params, decoder[TeamMembership]("team membership")), nil
}

// Create adds a person to a team by personID or personEmail. isModerator
// is only sent when true; the service default is false.
func (a *TeamMembershipsAPI) Create(ctx context.Context, teamID, personID, personEmail string, isModerator bool) (TeamMembership, error) {
	if err := validate.First(
		validate.Required("teamId", teamID),
		validate.AtLeastOne("personId", personID, "personEmail", personEmail),
	); err != nil {
		return TeamMembership{}, err
	}

	body := validate.NewParams().
		Str("teamId", teamID).
		Str("personId", personID).
		Str("personEmail", personEmail).
		Bool("isModerator", isModerator)

	raw, err := a.client.Post(ctx, teamMembershipsPath, body)
	if err != nil {
		return TeamMembership{}, fmt.Errorf("creating team membership: %w", err)
	}
	return decode[TeamMembership]("team membership", raw)
}

// Get returns one team membership.
func (a *TeamMembershipsAPI) Get(ctx context.Context, membershipID string) (TeamMembership, error) {
	if err := validate.Required("membershipId", membershipID); err != nil {
		return TeamMembership{}, err
	}

	raw, err := a.client.Get(ctx, resourcePath(teamMembershipsPath, membershipID), nil)
	if err != nil {
		return TeamMembership{}, fmt.Errorf("getting team membership: %w", err)
	}
	return decode[TeamMembership]("team membership", raw)
}

// Update changes the moderator flag. A nil isModerator sends no change; an
// explicit false demotes the member.
func (a *TeamMembershipsAPI) Update(ctx context.Context, membershipID string, isModerator *bool) (TeamMembership, error) {
	if err := validate.Required("membershipId", membershipID); err != nil {
		return TeamMembership{}, err
	}

	body := validate.NewParams().OptBool("isModerator", isModerator)

	raw, err := a.client.Put(ctx, resourcePath(teamMembershipsPath, membershipID), body)
	if err != nil {
		return TeamMembership{}, fmt.Errorf("updating team membership: %w", err)
	}
	return decode[TeamMembership]("team membership", raw)
}

// Delete removes a team membership.
func (a *TeamMembershipsAPI) Delete(ctx context.Context, membershipID string) error {
	if err := validate.Required("membershipId", membershipID); err != nil {
		return err
	}

	if err := a.client.Delete(ctx, resourcePath(teamMembershipsPath, membershipID)); err != nil {
		return fmt.Errorf("deleting team membership: %w", err)
	}
	return nil
}
