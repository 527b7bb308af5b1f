package spark

import (
	"context"
	"fmt"
	"time"

	"github.com/Futuramistic/Bot/pkg/pagination"
	"github.com/Futuramistic/Bot/pkg/validate"
)

const messagesPath = "messages"

// Message is a message posted to a room.
type Message struct {
	ID              string    `json:"id"`
	RoomID          string    `json:"roomId"`
	RoomType        string    `json:"roomType"`
	ToPersonID      string    `json:"toPersonId"`
	ToPersonEmail   string    `json:"toPersonEmail"`
	Text            string    `json:"text"`
	Markdown        string    `json:"markdown"`
	HTML            string    `json:"html"`
	Files           []string  `json:"files"`
	PersonID        string    `json:"personId"`
	PersonEmail     string    `json:"personEmail"`
	MentionedPeople []string  `json:"mentionedPeople"`
	Created         time.Time `json:"created"`
}

func (m Message) resourceID() string { return m.ID }

// MessagesAPI wraps the messages endpoints.
type MessagesAPI struct {
	client Client
}

// List returns the messages of a room, newest first.
func (a *MessagesAPI) List(roomID string, max int) (pagination.Container[Message], error) {
	if err := validate.Required("roomId", roomID); err != nil {
		return pagination.Container[Message]{}, err
	}

	params, err := listParams(validate.NewParams().Str("roomId", roomID), max, nil)
	if err != nil {
		return pagination.Container[Message]{}, err
	}

	return pagination.New(a.client, messagesPath, params, decoder[Message]("message")), nil
}

// Create posts a message to a room. At least one of text or markdown is
// required.
func (a *MessagesAPI) Create(ctx context.Context, roomID, text, markdown string) (Message, error) {
	if err := validate.First(
		validate.Required("roomId", roomID),
		validate.AtLeastOne("text", text, "markdown", markdown),
	); err != nil {
		return Message{}, err
	}

	body := validate.NewParams().
		Str("roomId", roomID).
		Str("text", text).
		Str("markdown", markdown)

	raw, err := a.client.Post(ctx, messagesPath, body)
	if err != nil {
		return Message{}, fmt.Errorf("creating message: %w", err)
	}
	return decode[Message]("message", raw)
}

// Get returns one message.
func (a *MessagesAPI) Get(ctx context.Context, messageID string) (Message, error) {
	if err := validate.Required("messageId", messageID); err != nil {
		return Message{}, err
	}

	raw, err := a.client.Get(ctx, resourcePath(messagesPath, messageID), nil)
	if err != nil {
		return Message{}, fmt.Errorf("getting message: %w", err)
	}
	return decode[Message]("message", raw)
}

// Delete removes a message.
func (a *MessagesAPI) Delete(ctx context.Context, messageID string) error {
	if err := validate.Required("messageId", messageID); err != nil {
		return err
	}

	if err := a.client.Delete(ctx, resourcePath(messagesPath, messageID)); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	return nil
}
