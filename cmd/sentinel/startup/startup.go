// Package startup wires every component of the wallet reputation pipeline
// into a single Application, the way the teacher's cmd/oracle/startup does
// for its own pipeline: one InitializeApplication call builds the whole
// object graph, Start/Stop bring it up and down in dependency order.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wallet-sentinel/sentinel/internal/api"
	"github.com/wallet-sentinel/sentinel/internal/broadcast"
	"github.com/wallet-sentinel/sentinel/internal/chain"
	"github.com/wallet-sentinel/sentinel/internal/coordinator"
	"github.com/wallet-sentinel/sentinel/internal/feature"
	"github.com/wallet-sentinel/sentinel/internal/flagregistry"
	"github.com/wallet-sentinel/sentinel/internal/ingest"
	"github.com/wallet-sentinel/sentinel/internal/scoring"
	"github.com/wallet-sentinel/sentinel/internal/storage/cache"
	"github.com/wallet-sentinel/sentinel/internal/storage/db"
	"github.com/wallet-sentinel/sentinel/internal/stream"
	"github.com/wallet-sentinel/sentinel/pkg/config"
	"github.com/wallet-sentinel/sentinel/pkg/logging"
)

// Application holds every long-lived collaborator the sentinel needs,
// assembled once at boot and torn down once at shutdown.
type Application struct {
	cfg    *config.Config
	logger *logging.Logger

	chainClient *chain.Client
	redis       *cache.Redis
	store       *db.Database

	scoringEngine *scoring.Engine
	extractor     *feature.Extractor
	ingester      *ingest.Ingester
	hub           *broadcast.Hub
	registry      *flagregistry.Client
	coord         *coordinator.Coordinator
	facade        *api.Facade
	apiServer     *api.Server

	ctx    context.Context
	cancel context.CancelFunc
}

// InitializeApplication builds the full object graph described in spec §4:
// chain client, scoring engine, feature extractor, event ingester,
// broadcast hub, optional flag registry client, monitor coordinator, and
// the HTTP facade in front of all of it.
func InitializeApplication(cfg *config.Config, logger *logging.Logger) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())

	chainClient, err := chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.ChainID, chain.DefaultRetryConfig(), logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dialing chain client: %w", err)
	}

	var model *scoring.Model
	if cfg.Model.ModelPath != "" {
		model, err = scoring.LoadModel(cfg.Model.ModelPath, cfg.Model.ScalerPath, cfg.Model.FeaturesPath)
		if err != nil {
			logger.Warn("loading scoring model failed, falling back to rule-based scoring", map[string]interface{}{
				"error": err.Error(),
			})
			model = nil
		}
	}

	blacklistSet, err := scoring.LoadBlacklist(cfg.Model.BlacklistPath)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("loading blacklist: %w", err)
	}

	var store *db.Database
	if cfg.Database != nil && cfg.Database.Enabled {
		store, err = db.NewDatabaseConnection(cfg.Database, logger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		persisted, err := store.LoadBlacklist(ctx)
		if err != nil {
			logger.Warn("loading persisted blacklist failed", map[string]interface{}{"error": err.Error()})
		} else {
			for addr := range persisted {
				blacklistSet[addr] = struct{}{}
			}
		}
	}

	blacklist := make([]string, 0, len(blacklistSet))
	for addr := range blacklistSet {
		blacklist = append(blacklist, addr)
	}
	scoringEngine := scoring.New(model, blacklist, logger)

	extractor := feature.New()

	var (
		redisClient *cache.Redis
		subscriber  stream.Subscriber
		publisher   stream.Publisher
	)
	if cfg.Redis != nil && cfg.Redis.Enabled {
		redisClient, err = cache.Connect(cfg.Redis, logger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		redisStream, err := stream.NewRedisStream(redisClient, "wallet-events", "sentinel", logger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("opening redis stream: %w", err)
		}
		subscriber = redisStream
		publisher = redisStream
	}

	walletScanInterval := time.Duration(cfg.Chain.WalletScanInterval) * time.Second
	if walletScanInterval <= 0 {
		walletScanInterval = 2 * time.Second
	}
	ingester := ingest.New(chainClient, subscriber, walletScanInterval, logger)

	hub := broadcast.New(logger)

	var registry *flagregistry.Client
	if cfg.Contract != nil && cfg.Contract.Address != "" {
		registry, err = flagregistry.New(chainClient, common.HexToAddress(cfg.Contract.Address), cfg.Chain.ChainID, cfg.Chain.PrivateKey, logger)
		if err != nil {
			logger.Warn("flag registry unavailable, flagging disabled", map[string]interface{}{"error": err.Error()})
			registry = nil
		}
	}

	coord := coordinator.New(chainClient, extractor, scoringEngine, ingester, hub, registry, publisher, logger)
	facade := api.NewFacade(coord, registry).WithStore(store)
	apiServer := api.NewServer(cfg.API, facade, hub, logger)

	return &Application{
		cfg:           cfg,
		logger:        logger,
		chainClient:   chainClient,
		redis:         redisClient,
		store:         store,
		scoringEngine: scoringEngine,
		extractor:     extractor,
		ingester:      ingester,
		hub:           hub,
		registry:      registry,
		coord:         coord,
		facade:        facade,
		apiServer:     apiServer,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start brings up every background goroutine and the HTTP listener. It does
// not block — callers wait on their own signal channel and call Stop.
func (app *Application) Start() error {
	go app.coord.RunBatchProcessor(app.ctx)
	go app.hub.RunHeartbeat(app.ctx)
	go app.hub.RunIdleReaper(app.ctx)

	go func() {
		if err := app.apiServer.Start(); err != nil {
			app.logger.Error("api server stopped", err)
			app.cancel()
		}
	}()

	app.logger.Info("wallet sentinel started", map[string]interface{}{
		"chainId": app.cfg.Chain.ChainID,
		"port":    app.cfg.API.Port,
	})
	return nil
}

// Stop cancels the root context and shuts down the HTTP server and any
// open connections in reverse dependency order.
func (app *Application) Stop() error {
	defer app.cancel()

	if err := app.apiServer.Shutdown(app.ctx); err != nil {
		app.logger.Error("api server shutdown error", err)
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("redis close error", err)
		}
	}

	if app.store != nil {
		app.store.Close()
	}

	app.logger.Info("wallet sentinel stopped", nil)
	return nil
}
