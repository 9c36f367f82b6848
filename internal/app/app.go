// Package app wires configuration, logging and the carryover store for the
// commands.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Garsondee/Squad-Tactics/internal/carryover"
	"github.com/Garsondee/Squad-Tactics/internal/config"
	"github.com/Garsondee/Squad-Tactics/internal/game"
	"github.com/Garsondee/Squad-Tactics/internal/logging"
)

// NewCampaign is the campaign flag value that starts a fresh campaign.
const NewCampaign = "new"

// App is the shared runtime of a command.
type App struct {
	Config config.Config
	Log    zerolog.Logger

	logCloser io.Closer
	store     *carryover.Store
}

// Bootstrap loads configFile (may be empty) and builds the logger. The
// carryover store is opened lazily.
func Bootstrap(configFile string, console io.Writer) (*App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	log, closer, err := logging.Setup(console, cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, err
	}
	return &App{Config: cfg, Log: log, logCloser: closer}, nil
}

// Close releases the store and the log file.
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Log.Warn().Err(err).Msg("closing carryover store")
		}
	}
	_ = a.logCloser.Close()
}

// Store opens the configured carryover store on first use.
func (a *App) Store() (*carryover.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	if a.Config.App.CarryoverDriver == "none" {
		return nil, fmt.Errorf("carryover is disabled (carryover.driver=none)")
	}
	s, err := carryover.Open(a.Config.App.CarryoverDriver, a.Config.App.CarryoverDSN, a.Log)
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

// Campaign resolves a campaign flag: empty disables carryover, "new"
// creates a campaign named after the mission, anything else is an existing
// campaign id. It returns the id and the records to start with.
func (a *App) Campaign(ctx context.Context, flag, missionID string) (uuid.UUID, []game.CarryoverRecord, error) {
	if flag == "" {
		return uuid.Nil, nil, nil
	}
	store, err := a.Store()
	if err != nil {
		return uuid.Nil, nil, err
	}
	if flag == NewCampaign {
		id, err := store.NewCampaign(ctx, missionID)
		return id, nil, err
	}
	id, err := uuid.Parse(flag)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("campaign id %q: %w", flag, err)
	}
	records, err := store.Latest(ctx, id)
	if err != nil {
		return uuid.Nil, nil, err
	}
	a.Log.Info().Str("campaign", id.String()).Int("squads", len(records)).Msg("carryover loaded")
	return id, records, nil
}

// SaveOutcome stores the engine's carryover into the campaign when the
// mission has ended. A nil campaign or a running mission saves nothing.
func (a *App) SaveOutcome(ctx context.Context, campaign uuid.UUID, e *game.Engine) error {
	if campaign == uuid.Nil || !e.Status().Terminal() {
		return nil
	}
	store, err := a.Store()
	if err != nil {
		return err
	}
	missionID := ""
	if m := e.World().Mission; m != nil {
		missionID = m.ID()
	}
	_, err = store.Save(ctx, campaign, missionID, e.Carryover())
	return err
}

// EngineOptions are the options every command passes to game.NewEngine.
func (a *App) EngineOptions(seed int64, sl *game.SimLog, records []game.CarryoverRecord) []game.Option {
	return []game.Option{
		game.WithTuning(a.Config.Tuning),
		game.WithLogger(a.Log),
		game.WithSeed(seed),
		game.WithSimLog(sl),
		game.WithCarryover(records),
	}
}
