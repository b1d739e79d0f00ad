// Package app wires the deployment driver together: configuration loading,
// pre-flight checks, graph construction, the plan/confirm/apply sequence and
// output reporting.
package app

import (
	"io"
	"log/slog"

	"github.com/stratushq/stratus/internal/config"
	"github.com/stratushq/stratus/internal/provider"
	"github.com/stratushq/stratus/internal/state"
)

// Config holds everything an App instance needs to run one command.
type Config struct {
	ConfigPath  string
	StatePath   string
	PlanPath    string
	Region      string
	Vars        map[string]string
	LogLevel    string
	LogFormat   string
	AutoApprove bool
	DryRun      bool
}

// App encapsulates the deployment driver's dependencies and lifecycle.
type App struct {
	outW     io.Writer
	inR      io.Reader
	logger   *slog.Logger
	cfg      *Config
	loader   config.Loader
	provider provider.Provider
	store    *state.Store
}

// New constructs an App with an isolated logger writing to logW. The
// provider may be nil for commands that never touch the backing service
// (validate, output).
func New(outW, logW io.Writer, inR io.Reader, cfg *Config, loader config.Loader, prov provider.Provider) *App {
	return &App{
		outW:     outW,
		inR:      inR,
		logger:   newLogger(cfg.LogLevel, cfg.LogFormat, logW),
		cfg:      cfg,
		loader:   loader,
		provider: prov,
		store:    state.NewStore(cfg.StatePath),
	}
}
