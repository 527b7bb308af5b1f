package bot

import (
	"context"
	"net/http"
	"sync"

	"github.com/Futuramistic/Bot/pkg/logging"
	"github.com/Futuramistic/Bot/pkg/spark"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for the bot.
var (
	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_webhook_events_total",
		Help: "Inbound webhook events by outcome",
	}, []string{"outcome"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_conversation_transitions_total",
		Help: "Conversation state transitions",
	}, []string{"from", "to"})
)

// Event outcomes.
const (
	outcomeReplied = "replied"
	outcomeSilent  = "silent"
	outcomeIgnored = "ignored"
	outcomeSelf    = "self"
	outcomeInvalid = "invalid"
	outcomeError   = "error"
)

// MessageService reads and posts messages. It is implemented by
// *spark.MessagesAPI.
type MessageService interface {
	Get(ctx context.Context, messageID string) (spark.Message, error)
	Create(ctx context.Context, roomID, text, markdown string) (spark.Message, error)
}

// PeopleService identifies the bot account. It is implemented by
// *spark.PeopleAPI.
type PeopleService interface {
	Me(ctx context.Context) (spark.Person, error)
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	Interactions *Interactions
	Messages     MessageService
	People       PeopleService

	// Store defaults to a new empty store.
	Store *Store

	// Pick defaults to RandomPicker.
	Pick Picker

	// Logger defaults to the "bot" component logger.
	Logger *zerolog.Logger
}

// Handler receives message webhooks and answers them.
type Handler struct {
	interactions *Interactions
	messages     MessageService
	people       PeopleService
	store        *Store
	pick         Picker
	logger       zerolog.Logger

	mu   sync.Mutex
	meID string
}

// NewHandler creates a webhook handler.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		interactions: cfg.Interactions,
		messages:     cfg.Messages,
		people:       cfg.People,
		store:        cfg.Store,
		pick:         cfg.Pick,
		logger:       logging.NewLogger("bot"),
	}
	if h.store == nil {
		h.store = NewStore()
	}
	if h.pick == nil {
		h.pick = RandomPicker
	}
	if cfg.Logger != nil {
		h.logger = *cfg.Logger
	}
	return h
}

// Store returns the handler's conversation store.
func (h *Handler) Store() *Store {
	return h.store
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	event, err := spark.DecodeWebhookEvent(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		webhookEventsTotal.WithLabelValues(outcomeInvalid).Inc()
		h.logger.Warn().Err(err).Msg("Invalid webhook payload")
		http.Error(w, "invalid webhook payload", http.StatusBadRequest)
		return
	}

	h.logger.Info().
		Str("webhook", event.Name).
		Str("resource", event.Resource).
		Str("event", event.Event).
		Str("room", event.Data.RoomID).
		Msg("Webhook received")

	outcome, err := h.handle(r.Context(), event)
	webhookEventsTotal.WithLabelValues(outcome).Inc()
	if err != nil {
		h.logger.Error().Err(err).Str("room", event.Data.RoomID).Msg("Failed to handle webhook")
		http.Error(w, "failed to handle webhook", http.StatusBadGateway)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) handle(ctx context.Context, event spark.WebhookEvent) (string, error) {
	if event.Resource != "messages" || event.Event != "created" {
		return outcomeIgnored, nil
	}

	meID, err := h.botID(ctx)
	if err != nil {
		return outcomeError, err
	}
	if event.Data.PersonID == meID {
		return outcomeSelf, nil
	}

	message, err := h.messages.Get(ctx, event.Data.ID)
	if err != nil {
		return outcomeError, err
	}
	if message.PersonID == meID {
		return outcomeSelf, nil
	}

	roomID := message.RoomID
	if roomID == "" {
		roomID = event.Data.RoomID
	}

	before, after, reply := h.store.Apply(roomID, func(conv Conversation) (Conversation, Reply) {
		return h.interactions.Step(conv, message.Text, h.pick)
	})
	transitionsTotal.WithLabelValues(before.State.String(), after.State.String()).Inc()

	h.logger.Debug().
		Str("room", roomID).
		Str("from", before.State.String()).
		Str("to", after.State.String()).
		Str("topic", after.Topic).
		Str("reply_kind", string(reply.Kind)).
		Msg("Conversation step")

	if reply.Text == "" {
		return outcomeSilent, nil
	}
	if _, err := h.messages.Create(ctx, roomID, reply.Text, ""); err != nil {
		return outcomeError, err
	}
	return outcomeReplied, nil
}

// botID returns the bot's person id, fetched once on success.
func (h *Handler) botID(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.meID != "" {
		return h.meID, nil
	}

	me, err := h.people.Me(ctx)
	if err != nil {
		return "", err
	}
	h.meID = me.ID
	return h.meID, nil
}
