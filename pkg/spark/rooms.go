package spark

import (
	"context"
	"fmt"
	"time"

	"github.com/Futuramistic/Bot/pkg/pagination"
	"github.com/Futuramistic/Bot/pkg/validate"
)

const roomsPath = "rooms"

// Room is a Spark space.
type Room struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Type         string    `json:"type"`
	IsLocked     bool      `json:"isLocked"`
	TeamID       string    `json:"teamId"`
	CreatorID    string    `json:"creatorId"`
	LastActivity time.Time `json:"lastActivity"`
	Created      time.Time `json:"created"`
}

func (r Room) resourceID() string { return r.ID }

// RoomsAPI wraps the rooms endpoints.
type RoomsAPI struct {
	client Client
}

// List returns the rooms the user belongs to, optionally filtered by team
// and room type ("direct" or "group").
func (a *RoomsAPI) List(teamID, roomType string, max int) (pagination.Container[Room], error) {
	params, err := listParams(validate.NewParams().Str("teamId", teamID).Str("type", roomType), max, nil)
	if err != nil {
		return pagination.Container[Room]{}, err
	}

	return pagination.New(a.client, roomsPath, params, decoder[Room]("room")), nil
}

// Get returns one room.
func (a *RoomsAPI) Get(ctx context.Context, roomID string) (Room, error) {
	if err := validate.Required("roomId", roomID); err != nil {
		return Room{}, err
	}

	raw, err := a.client.Get(ctx, resourcePath(roomsPath, roomID), nil)
	if err != nil {
		return Room{}, fmt.Errorf("getting room: %w", err)
	}
	return decode[Room]("room", raw)
}
