package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	backendx "github.com/tanpawarit/claims-responder-agent/agent/backend"
	"github.com/tanpawarit/claims-responder-agent/agent/backend/crm"
	"github.com/tanpawarit/claims-responder-agent/agent/backend/fixture"
	"github.com/tanpawarit/claims-responder-agent/agent/backend/search"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
	chatmodelx "github.com/tanpawarit/claims-responder-agent/pkg/chatmodel"
	configx "github.com/tanpawarit/claims-responder-agent/pkg/config"
)

func newCheckpointManager(ctx context.Context, app *AppConfig, leaseTTL time.Duration) (*statex.CheckpointManager, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var store statex.Store
	switch strings.ToLower(app.CheckpointBackend) {
	case "", "memory":
		store = statex.NewMemoryStore()
	case "upstash":
		cfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		s, err := statex.NewUpstashRedisStore(*cfg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		store = s
	case "postgres":
		cfg := configx.MustNew[statex.PostgresConfig]("POSTGRES")
		s, err := statex.NewPostgresStore(ctx, *cfg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := s.Close(); err != nil {
				log.Error().Err(err).Msg("close postgres store")
			}
		})
		store = s
	default:
		return nil, nil, fmt.Errorf("unknown checkpoint backend %q", app.CheckpointBackend)
	}

	var locker statex.Locker
	switch strings.ToLower(app.LockBackend) {
	case "", "local":
		locker = statex.NewLocalLocker()
	case "redis":
		cfg := configx.MustNew[statex.RedisConfig]("REDIS")
		rdb, err := statex.NewRedisClient(ctx, *cfg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		l, err := statex.NewRedisLocker(rdb, cfg.KeyPrefix)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		locker = l
	default:
		closeAll()
		return nil, nil, fmt.Errorf("unknown lock backend %q", app.LockBackend)
	}

	ckpt, err := statex.NewCheckpointManager(store, locker, leaseTTL)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return ckpt, closeAll, nil
}

func newToolBackend(app *AppConfig) (contractx.ToolBackend, error) {
	switch strings.ToLower(app.BackendMode) {
	case "fixture":
		return fixture.NewSingleCustomer(fixture.Default()), nil
	case "", "http":
	default:
		return nil, fmt.Errorf("unknown backend mode %q", app.BackendMode)
	}

	crmCfg := configx.MustNew[crm.Config]("CRM")
	crmClient, err := crm.NewClient(*crmCfg)
	if err != nil {
		return nil, err
	}

	var opts []search.Option
	if app.EmbeddingEnabled {
		embCfg := configx.MustNew[chatmodelx.Config]("EMBEDDING")
		embedder, err := search.NewOpenAIEmbedder(*embCfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, search.WithEmbedder(embedder))
	}

	searchCfg := configx.MustNew[search.Config]("SEARCH")
	searchClient, err := search.NewClient(*searchCfg, opts...)
	if err != nil {
		return nil, err
	}
	return backendx.New(crmClient, searchClient), nil
}
