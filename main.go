package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	orchestratorx "github.com/tanpawarit/claims-responder-agent/agent/agents/orchestrator"
	"github.com/tanpawarit/claims-responder-agent/agent/agents/responder"
	"github.com/tanpawarit/claims-responder-agent/agent/httpapi"
	llmx "github.com/tanpawarit/claims-responder-agent/agent/llm"
	toolx "github.com/tanpawarit/claims-responder-agent/agent/tool"
	configx "github.com/tanpawarit/claims-responder-agent/pkg/config"
	_ "github.com/tanpawarit/claims-responder-agent/pkg/logger/autoload"
	qstashx "github.com/tanpawarit/claims-responder-agent/pkg/qstash"
	retryx "github.com/tanpawarit/claims-responder-agent/pkg/retry"
)

type AppConfig struct {
	HTTP httpapi.Config `envconfig:"HTTP"`

	// CheckpointBackend is one of memory, upstash or postgres.
	CheckpointBackend string `envconfig:"CHECKPOINT_BACKEND" split_words:"true" default:"memory"`
	// LockBackend is one of local or redis.
	LockBackend string `envconfig:"LOCK_BACKEND" split_words:"true" default:"local"`
	// BackendMode is http for the CRM and search services, fixture for the
	// in-memory dataset.
	BackendMode string `envconfig:"BACKEND_MODE" split_words:"true" default:"http"`
	// EmbeddingEnabled turns on hybrid vector queries against the claims index.
	EmbeddingEnabled bool `envconfig:"EMBEDDING_ENABLED" split_words:"true" default:"false"`
	// QueueEnabled exposes the QStash enqueue and delivery routes.
	QueueEnabled bool   `envconfig:"QUEUE_ENABLED" split_words:"true" default:"false"`
	CallbackURL  string `envconfig:"CALLBACK_URL" split_words:"true"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" split_words:"true" default:"15s"`
}

type AgentConfig struct {
	orchestratorx.Config
	ToolTimeout time.Duration `envconfig:"TOOL_TIMEOUT" split_words:"true" default:"20s"`
	ToolRetry   retryx.Config `envconfig:"TOOL_RETRY"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("APP")
	llmCfg := configx.MustNew[llmx.Config]("LLM")
	agentCfg := configx.MustNew[AgentConfig]("AGENT")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm config")
	}

	ckpt, closeStore, err := newCheckpointManager(ctx, appCfg, agentCfg.LeaseTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize checkpoint store")
	}
	defer closeStore()

	backend, err := newToolBackend(appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tool backend")
	}

	dispatcher, err := toolx.NewDispatcher(backend,
		toolx.WithCallTimeout(agentCfg.ToolTimeout),
		toolx.WithRetry(agentCfg.ToolRetry),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tool dispatcher")
	}

	models, err := responder.NewRegistry(ctx, *llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize models")
	}

	orch, err := orchestratorx.New(ckpt, models, dispatcher, agentCfg.Config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize orchestrator")
	}

	var handlerOpts []httpapi.HandlerOption
	if appCfg.QueueEnabled {
		if appCfg.CallbackURL == "" {
			log.Fatal().Msg("APP_CALLBACK_URL is required when the queue is enabled")
		}
		qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
		client := qstashx.MustNew(*qstashCfg)
		handlerOpts = append(handlerOpts, httpapi.WithQueue(&httpapi.Queue{
			Publisher:   client,
			Verifier:    client,
			CallbackURL: appCfg.CallbackURL,
		}))
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              appCfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(httpapi.NewHandler(orch, handlerOpts...), appCfg.HTTP.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", appCfg.HTTP.Addr).
			Str("checkpoint_backend", appCfg.CheckpointBackend).
			Str("backend_mode", appCfg.BackendMode).
			Int("max_steps", agentCfg.MaxSteps).
			Msg("claims responder listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
}
