package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/island-mesh/island/internal/auth"
	"github.com/island-mesh/island/internal/config"
	"github.com/island-mesh/island/internal/constants"
	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/agentconfig"
	"github.com/island-mesh/island/internal/island/agentsignals"
	"github.com/island-mesh/island/internal/island/database"
	"github.com/island-mesh/island/internal/island/eventqueue"
	"github.com/island-mesh/island/internal/island/httpapi"
	"github.com/island-mesh/island/internal/island/localhost"
	"github.com/island-mesh/island/internal/island/mode"
	"github.com/island-mesh/island/internal/island/models"
	"github.com/island-mesh/island/internal/island/pba"
	"github.com/island-mesh/island/internal/island/plugins"
	"github.com/island-mesh/island/internal/island/reporting"
)

// Island is a fully wired island server.
type Island struct {
	db        *database.Database
	queue     *eventqueue.Queue
	server    *httpapi.Server
	inspector *localhost.Inspector
	logger    zerolog.Logger
}

// Build opens the database, registers the island machine and wires every
// service behind the HTTP API. ctx scopes event deliveries.
func Build(ctx context.Context, cfg *config.IslandConfig, logger zerolog.Logger) (_ *Island, err error) {
	db, err := database.New(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			errors.DeferClose(logger, db, "failed to close database")
		}
	}()

	isl := &Island{
		db:        db,
		queue:     eventqueue.New(ctx, logger),
		inspector: localhost.NewInspector(cfg.Island.HostnameOverride),
		logger:    logger,
	}

	machine, err := isl.inspector.Register(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to register island machine: %w", err)
	}
	logger.Info().
		Int("machine_id", machine.ID).
		Str("hostname", machine.Hostname).
		Strs("ips", machine.IPAddresses()).
		Msg("Island machine registered")

	modeSvc, err := mode.New(ctx, db, isl.queue, logger)
	if err != nil {
		return nil, err
	}
	if initial := models.IslandMode(cfg.Mode.Initial); modeSvc.Get() == models.ModeUnset && initial != models.ModeUnset && initial != "" {
		if err := modeSvc.Set(ctx, initial); err != nil {
			return nil, fmt.Errorf("failed to apply initial mode: %w", err)
		}
	}

	storage, err := pba.NewFileStorage(cfg.PBADir(), constants.MaxPBAFileSize, logger)
	if err != nil {
		return nil, err
	}
	pbaSvc := pba.NewService(storage, logger)
	signals := agentsignals.NewService(db, db, isl.queue, logger)
	agentCfg := agentconfig.NewService(db, pbaSvc, logger)
	index := plugins.NewIndexClient(cfg.Plugins.RepositoryURL, cfg.Plugins.IndexTTL, logger)

	isl.subscribe(signals, pbaSvc, agentCfg)

	tokens, err := auth.NewTokenStore(cfg.TokensPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}
	secret := []byte(cfg.Auth.JWTSecret)
	if len(secret) == 0 {
		if secret, err = auth.GenerateSecret(); err != nil {
			return nil, err
		}
		logger.Debug().Msg("Generated an ephemeral JWT secret, access tokens end with this process")
	}
	issuer, err := auth.NewIssuer(secret, cfg.Auth.JWTTTL)
	if err != nil {
		return nil, err
	}

	isl.server, err = httpapi.New(httpapi.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		TLS:               cfg.Server.TLS,
		RequireAuth:       cfg.Auth.Require,
		Reports:           reporting.NewService(db, db, db, logger),
		Mode:              modeSvc,
		Signals:           signals,
		PBA:               pbaSvc,
		Plugins:           index,
		AgentPlugins:      plugins.NewService(index, db, logger),
		AgentConfig:       agentCfg,
		Events:            isl.queue,
		Tokens:            tokens,
		Issuer:            issuer,
		Verifier:          issuer,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}
	return isl, nil
}

// subscribe connects the services that react to island events.
func (isl *Island) subscribe(signals *agentsignals.Service, pbaSvc *pba.Service, agentCfg *agentconfig.Service) {
	isl.queue.Subscribe(eventqueue.TopicClearSimulationData, "database", isl.clearSimulationData)
	isl.queue.Subscribe(eventqueue.TopicClearSimulationData, "agentsignals", signals.OnClearSimulationData)
	isl.queue.Subscribe(eventqueue.TopicResetAgentConfiguration, "pba", pbaSvc.OnResetAgentConfiguration)
	isl.queue.Subscribe(eventqueue.TopicResetAgentConfiguration, "agentconfig", agentCfg.OnResetAgentConfiguration)

	logEvent := func(ctx context.Context, event any) error {
		isl.logger.Info().Interface("event", event).Msg("Island event")
		return nil
	}
	isl.queue.Subscribe(eventqueue.TopicSetIslandMode, "log", logEvent)
	isl.queue.Subscribe(eventqueue.TopicTerminateAgents, "log", logEvent)
}

// clearSimulationData forgets every agent, node and non-island machine.
func (isl *Island) clearSimulationData(ctx context.Context, _ any) error {
	if err := isl.db.ClearSimulationData(ctx); err != nil {
		return err
	}
	isl.logger.Info().Msg("Simulation data cleared")
	return nil
}

// Start starts the HTTP API.
func (isl *Island) Start() error {
	return isl.server.Start()
}

// URL returns the API URL once started.
func (isl *Island) URL() string {
	return isl.server.URL()
}

// Shutdown stops the API, drains event deliveries and closes the database.
func (isl *Island) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := isl.server.Stop(ctx)
	isl.queue.Wait()
	if cerr := isl.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
