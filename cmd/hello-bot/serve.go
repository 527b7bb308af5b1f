package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Futuramistic/Bot/internal/bot"
	"github.com/Futuramistic/Bot/pkg/logging"
	"github.com/Futuramistic/Bot/pkg/metrics"
	"github.com/Futuramistic/Bot/pkg/ratelimit"
	"github.com/Futuramistic/Bot/pkg/spark"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Register the webhook and answer messages",
		Long: `serve (re)registers the bot's webhook, pointing it at public_url or
at the local ngrok tunnel, and serves /sparkwebhook, /health and /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.String("listen", ":5000", "listen address")
	flags.String("public-url", "", "public base URL of this server (default: discover via ngrok)")
	flags.String("webhook-name", defaultWebhookName, "webhook name to (re)register")
	flags.String("interactions", "interactions.csv", "interactions table (.csv or .yaml)")
	flags.String("redis-url", "", "Redis URL for a rate-limit cooldown shared between instances")
	flags.String("ngrok-api", defaultNgrokAPI, "ngrok agent API URL")

	for key, flag := range map[string]string{
		keyListen:       "listen",
		keyPublicURL:    "public-url",
		keyWebhookName:  "webhook-name",
		keyInteractions: "interactions",
		keyRedisURL:     "redis-url",
		keyNgrokAPI:     "ngrok-api",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.config

	interactions, err := bot.LoadInteractions(cfg.Interactions)
	if err != nil {
		return err
	}

	sessionCfg := cfg.sessionConfig()
	if cfg.RedisURL != "" {
		store, closeStore, err := newRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer closeStore()
		sessionCfg.RateLimitStore = store
	}

	api, err := spark.New(sessionCfg)
	if err != nil {
		return err
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL, err = discoverNgrokURL(ctx, cfg.NgrokAPI)
		if err != nil {
			return fmt.Errorf("no public_url configured and ngrok discovery failed: %w", err)
		}
	}
	target := strings.TrimRight(publicURL, "/") + webhookPath

	webhook, err := ensureWebhook(ctx, api.Webhooks, cfg.WebhookName, target)
	if err != nil {
		return err
	}
	a.logger.Info().
		Str("webhook_id", webhook.ID).
		Str("name", webhook.Name).
		Str("target_url", webhook.TargetURL).
		Msg("Webhook registered")

	handler := bot.NewHandler(bot.HandlerConfig{
		Interactions: interactions,
		Messages:     api.Messages,
		People:       api.People,
	})

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newServeMux(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", cfg.Listen).Msg("Starting hello-bot server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newServeMux routes the webhook, health and metrics endpoints.
func newServeMux(webhook http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(webhookPath, webhook)
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}

// webhookRegistry is the subset of the webhooks API serve needs.
type webhookRegistry interface {
	FindByName(ctx context.Context, name string) (spark.Webhook, bool, error)
	Delete(ctx context.Context, webhookID string) error
	Create(ctx context.Context, name, targetURL, resource, event, filter string) (spark.Webhook, error)
}

// ensureWebhook replaces any webhook named name with one for new messages
// delivered to target.
func ensureWebhook(ctx context.Context, webhooks webhookRegistry, name, target string) (spark.Webhook, error) {
	existing, found, err := webhooks.FindByName(ctx, name)
	if err != nil {
		return spark.Webhook{}, fmt.Errorf("find webhook %q: %w", name, err)
	}
	if found {
		if err := webhooks.Delete(ctx, existing.ID); err != nil {
			return spark.Webhook{}, fmt.Errorf("delete webhook %q: %w", name, err)
		}
	}

	webhook, err := webhooks.Create(ctx, name, target, "messages", "created", "")
	if err != nil {
		return spark.Webhook{}, fmt.Errorf("create webhook %q: %w", name, err)
	}
	return webhook, nil
}

// newRedisStore connects the shared cooldown store.
func newRedisStore(ctx context.Context, redisURL string) (ratelimit.Store, func(), error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis_url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	store := ratelimit.NewRedisStore(client, "hello-bot", logging.NewLogger("ratelimit"))
	return store, func() { client.Close() }, nil
}
