// app.go wires the config, store, logger and Claude collaborators that every
// session command shares.
package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/berth-dev/compass/internal/config"
	"github.com/berth-dev/compass/internal/controller"
	"github.com/berth-dev/compass/internal/execute"
	"github.com/berth-dev/compass/internal/log"
	"github.com/berth-dev/compass/internal/plan"
	"github.com/berth-dev/compass/internal/session"
	"github.com/berth-dev/compass/internal/understand"
)

// Environment variables that override config.yaml.
const (
	envModel        = "COMPASS_MODEL"
	envAddr         = "COMPASS_ADDR"
	envDBPath       = "COMPASS_DB"
	envMaxQuestions = "COMPASS_MAX_QUESTIONS"
)

// app holds everything a command needs to work on sessions.
type app struct {
	root   string
	cfg    *config.Config
	store  *session.Store
	logger *log.Logger
	runner *execute.Runner
	ctrl   *controller.Controller
}

// openApp loads the project in the working directory. It fails when
// `compass init` has not been run.
func openApp() (*app, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	if _, err := os.Stat(config.Dir(root)); os.IsNotExist(err) {
		return nil, fmt.Errorf(".compass/ not found. Run 'compass init' first")
	}

	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}

	store, err := session.NewStore(cfg.DBPath(root))
	if err != nil {
		return nil, err
	}
	logger, err := log.NewLogger(root)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	runner := execute.NewRunner(cfg, root, logger, nil)
	ctrl := controller.New(controller.Options{
		Store:    store,
		Logger:   logger,
		Analyzer: understand.NewAnalyzer(cfg, root, nil),
		Planner:  plan.NewPlanner(cfg, root, nil),
		Executor: runner,
	})

	return &app{
		root:   root,
		cfg:    cfg,
		store:  store,
		logger: logger,
		runner: runner,
		ctrl:   ctrl,
	}, nil
}

// Close releases the session store.
func (a *app) Close() error {
	return a.store.Close()
}

// loadConfig reads config.yaml, applies environment overrides and validates
// the result.
func loadConfig(root string) (*config.Config, error) {
	cfg, err := config.ReadConfig(root)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides config fields from COMPASS_* variables.
func applyEnv(cfg *config.Config) error {
	if v := os.Getenv(envModel); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv(envAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv(envMaxQuestions); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envMaxQuestions, err)
		}
		cfg.Interview.MaxQuestions = n
	}
	return nil
}

// responder feeds interview replies to the controller.
type responder struct {
	ctrl *controller.Controller
	id   string
}

func (r responder) Answer(index int, value string) error {
	_, err := r.ctrl.Answer(r.id, index, value)
	return err
}

func (r responder) Skip(index int) error {
	_, err := r.ctrl.Skip(r.id, index)
	return err
}
