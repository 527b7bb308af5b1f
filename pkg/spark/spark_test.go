package spark

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/Futuramistic/Bot/internal/testutil"
	"github.com/Futuramistic/Bot/pkg/session"
	"github.com/Futuramistic/Bot/pkg/validate"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T, mock *testutil.MockSpark) *API {
	t.Helper()

	logger := zerolog.Nop()
	cfg := session.DefaultConfig("test-token")
	cfg.BaseURL = mock.URL()
	cfg.HTTPClient = mock.Client()
	cfg.Logger = &logger

	api, err := New(cfg)
	require.NoError(t, err)
	return api
}

func boolPtr(b bool) *bool { return &b }

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(session.Config{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, session.ErrMissingToken))
}

func TestTeamMemberships_List(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()
	mock.Enqueue("team/memberships",
		testutil.NewItemsResponse(mock.PageURL("team/memberships", 2),
			map[string]any{"id": "tm-1", "teamId": "team-1", "personEmail": "a@example.com", "isModerator": true}),
		testutil.NewItemsResponse("",
			map[string]any{"id": "tm-2", "teamId": "team-1", "personEmail": "b@example.com", "created": "2018-01-02T03:04:05.000Z"}),
	)

	api := newTestAPI(t, mock)

	members, err := api.TeamMemberships.List("team-1", 1, map[string]any{"ignored": ""})
	require.NoError(t, err)
	assert.Equal(t, 0, mock.GetRequestCount())

	got, err := members.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "tm-1", got[0].ID)
	assert.True(t, got[0].IsModerator)
	assert.Equal(t, "b@example.com", got[1].PersonEmail)
	assert.False(t, got[1].IsModerator)
	assert.Equal(t, 2018, got[1].Created.Year())

	requests := mock.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, "max=1&teamId=team-1", requests[0].RawQuery)
	assert.Equal(t, "page=2", requests[1].RawQuery)
}

func TestTeamMemberships_ListValidation(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()
	api := newTestAPI(t, mock)

	tests := []struct {
		name   string
		teamID string
		max    int
		field  string
	}{
		{name: "missing team", teamID: "", max: 0, field: "teamId"},
		{name: "blank team", teamID: "   ", max: 0, field: "teamId"},
		{name: "negative max", teamID: "team-1", max: -1, field: "max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := api.TeamMemberships.List(tt.teamID, tt.max, nil)
			var validationErr *validate.Error
			require.True(t, errors.As(err, &validationErr), "error = %v", err)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}

	assert.Equal(t, 0, mock.GetRequestCount())
}

func TestTeamMemberships_Create(t *testing.T) {
	tests := []struct {
		name        string
		personID    string
		personEmail string
		isModerator bool
		wantBody    string
	}{
		{
			name:        "by email, moderator omitted when false",
			personEmail: "a@example.com",
			wantBody:    `{"personEmail":"a@example.com","teamId":"team-1"}`,
		},
		{
			name:        "by id as moderator",
			personID:    "person-1",
			isModerator: true,
			wantBody:    `{"isModerator":true,"personId":"person-1","teamId":"team-1"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockSpark()
			defer mock.Close()
			mock.Enqueue("team/memberships", testutil.NewJSONResponse(map[string]any{"id": "tm-1", "teamId": "team-1"}))

			api := newTestAPI(t, mock)

			membership, err := api.TeamMemberships.Create(context.Background(), "team-1", tt.personID, tt.personEmail, tt.isModerator)
			require.NoError(t, err)
			assert.Equal(t, "tm-1", membership.ID)

			requests := mock.Requests()
			require.Len(t, requests, 1)
			assert.Equal(t, http.MethodPost, requests[0].Method)
			assert.JSONEq(t, tt.wantBody, requests[0].Body)
		})
	}
}

func TestTeamMemberships_CreateRequiresPerson(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()
	api := newTestAPI(t, mock)

	_, err := api.TeamMemberships.Create(context.Background(), "team-1", "", "", true)

	var validationErr *validate.Error
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "personId|personEmail", validationErr.Field)
	assert.Equal(t, 0, mock.GetRequestCount())
}

func TestTeamMemberships_Update(t *testing.T) {
	tests := []struct {
		name        string
		isModerator *bool
		wantBody    string
	}{
		{name: "promote", isModerator: boolPtr(true), wantBody: `{"isModerator":true}`},
		{name: "explicit demote is sent", isModerator: boolPtr(false), wantBody: `{"isModerator":false}`},
		{name: "no change", isModerator: nil, wantBody: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockSpark()
			defer mock.Close()
			mock.Enqueue("team/memberships/tm-1", testutil.NewJSONResponse(map[string]any{"id": "tm-1"}))

			api := newTestAPI(t, mock)

			_, err := api.TeamMemberships.Update(context.Background(), "tm-1", tt.isModerator)
			require.NoError(t, err)

			requests := mock.Requests()
			require.Len(t, requests, 1)
			assert.Equal(t, http.MethodPut, requests[0].Method)
			assert.JSONEq(t, tt.wantBody, requests[0].Body)
		})
	}
}

func TestTeamMemberships_GetAndDelete(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()
	mock.Enqueue("team/memberships/tm-1",
		testutil.NewJSONResponse(map[string]any{"id": "tm-1", "personDisplayName": "Ada"}),
		testutil.NewNoContentResponse(),
	)

	api := newTestAPI(t, mock)
	ctx := context.Background()

	membership, err := api.TeamMemberships.Get(ctx, "tm-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", membership.PersonDisplayName)

	require.NoError(t, api.TeamMemberships.Delete(ctx, "tm-1"))

	requests := mock.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, http.MethodDelete, requests[1].Method)
}

func TestTeamMemberships_GetNotFound(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()
	mock.Enqueue("team/memberships/missing",
		testutil.NewErrorResponse(http.StatusNotFound, "Membership not found", "TRK_1"))

	api := newTestAPI(t, mock)

	_, err := api.TeamMemberships.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, session.IsNotFound(err))

	var apiErr *session.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "TRK_1", apiErr.TrackingID)
}

func TestDecode_RequiresID(t *testing.T) {
	_, err := decode[Room]("room", []byte(`{"title":"no id"}`))
	assert.ErrorIs(t, err, ErrMissingID)

	_, err = decode[Room]("room", nil)
	assert.Error(t, err)

	room, err := decode[Room]("room", []byte(`{"id":"r-1","title":"Ops","type":"group"}`))
	require.NoError(t, err)
	assert.Equal(t, "Ops", room.Title)
	assert.Equal(t, "group", room.Type)
}

func TestMemberships_ListAndCreate(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()
	mock.Enqueue("memberships",
		testutil.NewItemsResponse("", map[string]any{"id": "m-1", "roomId": "room-1"}),
	)

	api := newTestAPI(t, mock)
	ctx := context.Background()

	memberships, err := api.Memberships.List(ListMembershipsOptions{RoomID: "room-1", Max: 50})
	require.NoError(t, err)

	got, err := memberships.Collect(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "room-1", got[0].RoomID)
	assert.Equal(t, "max=50&roomId=room-1", mock.Requests()[0].RawQuery)

	_, err = api.Memberships.Create(ctx, "", "person-1", "", false)
	var validationErr *validate.Error
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "roomId", validationErr.Field)
}

func TestPeople_MeAndGet(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()
	mock.Enqueue("people/me", testutil.NewJSONResponse(map[string]any{
		"id":          "bot-1",
		"emails":      []string{"bot@sparkbot.io"},
		"displayName": "Hello Bot",
		"type":        "bot",
	}))
	mock.Enqueue("people/p-1", testutil.NewJSONResponse(map[string]any{"id": "p-1"}))

	api := newTestAPI(t, mock)
	ctx := context.Background()

	me, err := api.People.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bot-1", me.ID)
	assert.Equal(t, "bot@sparkbot.io", me.PrimaryEmail())

	person, err := api.People.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "", person.PrimaryEmail())

	_, err = api.People.List("", "", 0)
	assert.Error(t, err)
}

func TestRooms_List(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()
	mock.Enqueue("rooms", testutil.NewItemsResponse("", map[string]any{"id": "r-1", "type": "direct"}))

	api := newTestAPI(t, mock)

	rooms, err := api.Rooms.List("", "direct", 0)
	require.NoError(t, err)

	got, err := rooms.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "type=direct", mock.Requests()[0].RawQuery)
}

func TestMessages_Create(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()
	mock.Enqueue("messages", testutil.NewJSONResponse(map[string]any{"id": "msg-1", "roomId": "room-1", "text": "hello"}))

	api := newTestAPI(t, mock)
	ctx := context.Background()

	message, err := api.Messages.Create(ctx, "room-1", "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", message.ID)
	assert.JSONEq(t, `{"roomId":"room-1","text":"hello"}`, mock.Requests()[0].Body)

	_, err = api.Messages.Create(ctx, "room-1", "", "")
	assert.Error(t, err)
	assert.Equal(t, 1, mock.GetRequestCount())
}

func TestWebhooks_FindByName(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()
	mock.SetHandler("webhooks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "" {
			w.Header().Set("Link", `<`+mock.PageURL("webhooks", 2)+`>; rel="next"`)
			_, _ = w.Write([]byte(`{"items":[{"id":"wh-1","name":"other"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"id":"wh-2","name":"hello-bot-wb-hook","targetUrl":"https://x.ngrok.io/sparkwebhook"}]}`))
	})

	api := newTestAPI(t, mock)
	ctx := context.Background()

	webhook, found, err := api.Webhooks.FindByName(ctx, "hello-bot-wb-hook")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "wh-2", webhook.ID)

	_, found, err = api.Webhooks.FindByName(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWebhooks_CreateValidation(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()
	api := newTestAPI(t, mock)

	_, err := api.Webhooks.Create(context.Background(), "hook", "", "messages", "created", "")

	var validationErr *validate.Error
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "targetUrl", validationErr.Field)
	assert.Equal(t, 0, mock.GetRequestCount())
}

func TestDecodeWebhookEvent(t *testing.T) {
	payload := `{
		"id": "wh-1",
		"name": "hello-bot-wb-hook",
		"resource": "messages",
		"event": "created",
		"data": {"id": "msg-1", "roomId": "room-1", "personEmail": "a@example.com"}
	}`

	event, err := DecodeWebhookEvent(strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "messages", event.Resource)
	assert.Equal(t, "msg-1", event.Data.ID)
	assert.Equal(t, "room-1", event.Data.RoomID)

	_, err = DecodeWebhookEvent(strings.NewReader(`{"id":"wh-1","data":{}}`))
	assert.ErrorIs(t, err, ErrMissingID)

	_, err = DecodeWebhookEvent(strings.NewReader(`not json`))
	assert.Error(t, err)
}
