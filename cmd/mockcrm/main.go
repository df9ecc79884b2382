// Command mockcrm serves the fixture dataset over the CRM REST surface.
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
	"github.com/tanpawarit/claims-responder-agent/agent/backend/fixture"
	configx "github.com/tanpawarit/claims-responder-agent/pkg/config"
	_ "github.com/tanpawarit/claims-responder-agent/pkg/logger/autoload"
)

type Config struct {
	Addr           string `envconfig:"ADDR" split_words:"true" default:":8001"`
	SingleCustomer bool   `envconfig:"SINGLE_CUSTOMER" split_words:"true" default:"true"`
}

func main() {
	cfg := configx.MustNew[Config]("MOCKCRM")
	gin.SetMode(gin.ReleaseMode)

	backend := fixture.New(fixture.Default())
	if cfg.SingleCustomer {
		backend = fixture.NewSingleCustomer(fixture.Default())
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           fixture.NewRouter(backend),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("mock crm listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("mock crm stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("mock crm shutdown")
	}
}
