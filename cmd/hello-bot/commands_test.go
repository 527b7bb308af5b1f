package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Futuramistic/Bot/internal/testutil"
	"github.com/Futuramistic/Bot/pkg/spark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command against mock and returns its stdout.
func execute(t *testing.T, mock *testutil.MockSpark, args ...string) (string, error) {
	t.Helper()
	isolate(t)

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--base-url", mock.URL(), "--token", "test-token", "--log-level", "error"}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func webhookItem(id, name, target string) map[string]any {
	return map[string]any{
		"id":        id,
		"name":      name,
		"targetUrl": target,
		"resource":  "messages",
		"event":     "created",
		"status":    "active",
	}
}

func TestWebhooksList_Table(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()

	mock.Enqueue("webhooks", testutil.NewItemsResponse(mock.PageURL("webhooks", 2),
		webhookItem("wh-1", "hello-bot-wb-hook", "https://a.example.com/sparkwebhook")))
	mock.Enqueue("webhooks?page=2", testutil.NewItemsResponse("",
		webhookItem("wh-2", "other", "https://b.example.com/hook")))

	out, err := execute(t, mock, "webhooks", "list")
	require.NoError(t, err)

	assert.Contains(t, out, "wh-1")
	assert.Contains(t, out, "hello-bot-wb-hook")
	assert.Contains(t, out, "wh-2")
	assert.Contains(t, out, "https://b.example.com/hook")
	assert.Equal(t, 2, mock.GetRequestCount())

	req := mock.Requests()[0]
	assert.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))
}

func TestWebhooksList_JSON(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()

	mock.Enqueue("webhooks", testutil.NewItemsResponse("",
		webhookItem("wh-1", "hello-bot-wb-hook", "https://a.example.com/sparkwebhook")))

	out, err := execute(t, mock, "-o", "json", "webhooks", "list", "--max", "10")
	require.NoError(t, err)

	var got []spark.Webhook
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "wh-1", got[0].ID)
	assert.Equal(t, "max=10", mock.Requests()[0].RawQuery)
}

func TestWebhooksList_Empty(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()

	mock.Enqueue("webhooks", testutil.NewItemsResponse(""))

	out, err := execute(t, mock, "wh", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No webhooks found")
}

func TestWebhooksList_NegativeMax(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()

	_, err := execute(t, mock, "webhooks", "list", "--max=-1")
	require.Error(t, err)
	assert.Equal(t, 0, mock.GetRequestCount())
}

func TestWebhooksCreate(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()

	mock.Enqueue("webhooks", testutil.NewJSONResponse(
		webhookItem("wh-9", "my-hook", "https://c.example.com/sparkwebhook")))

	out, err := execute(t, mock, "-o", "yaml", "webhooks", "create", "my-hook", "https://c.example.com/sparkwebhook")
	require.NoError(t, err)
	assert.Contains(t, out, "id: wh-9")

	req := mock.Requests()[0]
	assert.Equal(t, http.MethodPost, req.Method)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(req.Body), &body))
	assert.Equal(t, "my-hook", body["name"])
	assert.Equal(t, "messages", body["resource"])
	assert.Equal(t, "created", body["event"])
	assert.NotContains(t, body, "filter")
}

func TestWebhooksDelete_ByName(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()

	mock.Enqueue("webhooks", testutil.NewItemsResponse("",
		webhookItem("wh-1", "hello-bot-wb-hook", "https://a.example.com/sparkwebhook")))
	mock.Enqueue("webhooks/wh-1", testutil.NewNoContentResponse())

	out, err := execute(t, mock, "webhooks", "delete", "--name", "hello-bot-wb-hook")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted webhook wh-1")

	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodDelete, reqs[1].Method)
	assert.Equal(t, "/v1/webhooks/wh-1", reqs[1].Path)
}

func TestWebhooksDelete_UnknownName(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()

	mock.Enqueue("webhooks", testutil.NewItemsResponse(""))

	_, err := execute(t, mock, "webhooks", "delete", "--name", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no webhook named "nope"`)
}

func TestMembershipsList(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()

	mock.Enqueue("team/memberships", testutil.NewItemsResponse("",
		map[string]any{"id": "tm-1", "teamId": "team-1", "personDisplayName": "Ada", "personEmail": "ada@example.com", "isModerator": true},
		map[string]any{"id": "tm-2", "teamId": "team-1", "personDisplayName": "Bob", "personEmail": "bob@example.com"},
	))

	out, err := execute(t, mock, "memberships", "list", "--team", "team-1")
	require.NoError(t, err)

	assert.Contains(t, out, "ada@example.com")
	assert.Contains(t, out, "bob@example.com")
	assert.Contains(t, out, "true")
	assert.Equal(t, "teamId=team-1", mock.Requests()[0].RawQuery)
}

func TestMembershipsList_RequiresTeam(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()

	_, err := execute(t, mock, "memberships", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "team")
	assert.Equal(t, 0, mock.GetRequestCount())
}

type fakeRegistry struct {
	existing  *spark.Webhook
	findErr   error
	deleted   []string
	created   []string
	createErr error
}

func (f *fakeRegistry) FindByName(ctx context.Context, name string) (spark.Webhook, bool, error) {
	if f.findErr != nil {
		return spark.Webhook{}, false, f.findErr
	}
	if f.existing != nil && f.existing.Name == name {
		return *f.existing, true, nil
	}
	return spark.Webhook{}, false, nil
}

func (f *fakeRegistry) Delete(ctx context.Context, webhookID string) error {
	f.deleted = append(f.deleted, webhookID)
	return nil
}

func (f *fakeRegistry) Create(ctx context.Context, name, targetURL, resource, event, filter string) (spark.Webhook, error) {
	if f.createErr != nil {
		return spark.Webhook{}, f.createErr
	}
	f.created = append(f.created, strings.Join([]string{name, targetURL, resource, event, filter}, "|"))
	return spark.Webhook{ID: "wh-new", Name: name, TargetURL: targetURL}, nil
}

func TestEnsureWebhook(t *testing.T) {
	t.Run("replaces existing", func(t *testing.T) {
		reg := &fakeRegistry{existing: &spark.Webhook{ID: "wh-old", Name: "hook"}}

		got, err := ensureWebhook(context.Background(), reg, "hook", "https://x.example.com/sparkwebhook")
		require.NoError(t, err)

		assert.Equal(t, "wh-new", got.ID)
		assert.Equal(t, []string{"wh-old"}, reg.deleted)
		assert.Equal(t, []string{"hook|https://x.example.com/sparkwebhook|messages|created|"}, reg.created)
	})

	t.Run("creates when absent", func(t *testing.T) {
		reg := &fakeRegistry{existing: &spark.Webhook{ID: "wh-old", Name: "other"}}

		_, err := ensureWebhook(context.Background(), reg, "hook", "https://x.example.com/sparkwebhook")
		require.NoError(t, err)

		assert.Empty(t, reg.deleted)
		assert.Len(t, reg.created, 1)
	})

	t.Run("lookup failure", func(t *testing.T) {
		reg := &fakeRegistry{findErr: errors.New("boom")}

		_, err := ensureWebhook(context.Background(), reg, "hook", "https://x.example.com/sparkwebhook")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `find webhook "hook"`)
		assert.Empty(t, reg.created)
	})

	t.Run("create failure", func(t *testing.T) {
		reg := &fakeRegistry{createErr: errors.New("denied")}

		_, err := ensureWebhook(context.Background(), reg, "hook", "https://x.example.com/sparkwebhook")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "denied")
	})
}

func TestEnsureWebhook_AgainstService(t *testing.T) {
	mock := testutil.NewMockSpark()
	defer mock.Close()

	mock.SetHandler("webhooks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"id":"wh-2","name":"hello-bot-wb-hook","targetUrl":"https://t.example.com/sparkwebhook"}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"id":"wh-1","name":"hello-bot-wb-hook"}]}`))
	})
	mock.Enqueue("webhooks/wh-1", testutil.NewNoContentResponse())

	cfg := Config{AccessToken: "x", BaseURL: mock.URL(), WaitOnRateLimit: true}
	api, err := spark.New(cfg.sessionConfig())
	require.NoError(t, err)

	got, err := ensureWebhook(context.Background(), api.Webhooks, defaultWebhookName, "https://t.example.com"+webhookPath)
	require.NoError(t, err)
	assert.Equal(t, "wh-2", got.ID)

	methods := make([]string, 0, 3)
	for _, r := range mock.Requests() {
		methods = append(methods, r.Method+" "+r.Path)
	}
	assert.Equal(t, []string{
		"GET /v1/webhooks",
		"DELETE /v1/webhooks/wh-1",
		"POST /v1/webhooks",
	}, methods)
}

func TestServeMux(t *testing.T) {
	webhook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	mux := newServeMux(webhook)

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{path: "/health", wantStatus: http.StatusOK, wantBody: "OK"},
		{path: "/metrics", wantStatus: http.StatusOK, wantBody: "spark_pages_fetched_total"},
		{path: webhookPath, wantStatus: http.StatusAccepted},
		{path: "/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}
