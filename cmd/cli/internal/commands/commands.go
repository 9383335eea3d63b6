package commands

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/lockerhq/lockerctl/internal/api"
	"github.com/lockerhq/lockerctl/internal/credentials"
	"github.com/lockerhq/lockerctl/internal/gateway"
	"github.com/lockerhq/lockerctl/internal/logger"
	"github.com/lockerhq/lockerctl/internal/reservations"
	"github.com/lockerhq/lockerctl/internal/session"
)

type Globals struct {
	Debug   bool
	Version string
}

// ClientFlags are the connection flags shared by every command.
type ClientFlags struct {
	Server   string        `help:"Service base URL including the /api prefix" default:"http://localhost:8000/api" env:"LOCKERCTL_SERVER"`
	TokenDir string        `help:"Custom token directory" env:"LOCKERCTL_TOKEN_DIR"`
	Config   string        `help:"YAML config file path" env:"LOCKERCTL_CONFIG"`
	Timeout  time.Duration `help:"Request timeout" default:"30s"`
}

// FileConfig mirrors ClientFlags for the optional YAML config file.
// Non-empty file values override flag values.
type FileConfig struct {
	Server   string `yaml:"server"`
	TokenDir string `yaml:"tokenDir"`
	Timeout  string `yaml:"timeout"`
}

// Stack is the wired client: store, gateway, session manager, and
// orchestrator over one API client.
type Stack struct {
	Store        credentials.TokenStore
	Client       *api.Client
	Session      *session.Manager
	Reservations *reservations.Orchestrator
}

// Connect builds the full client stack from the flags.
func (f *ClientFlags) Connect() (*Stack, error) {
	if f.Config != "" {
		if err := f.loadConfigFile(); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	store, err := credentials.NewFileStore(f.TokenDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token store: %w", err)
	}

	baseURL := strings.TrimRight(f.Server, "/")

	var manager *session.Manager

	transport := gateway.New(store, baseURL+"/auth/refresh/",
		gateway.WithBase(logger.NewHTTPRequests(log.Logger, nil)),
		gateway.WithSessionEndHook(func() {
			if manager != nil {
				manager.SessionEnded()
			}
		}),
	)

	httpc := &http.Client{
		Transport: transport,
		Timeout:   f.Timeout,
	}

	client := api.New(baseURL, httpc)
	manager = session.NewManager(client, store)

	return &Stack{
		Store:        store,
		Client:       client,
		Session:      manager,
		Reservations: reservations.NewOrchestrator(client),
	}, nil
}

func (f *ClientFlags) loadConfigFile() error {
	data, err := os.ReadFile(f.Config)
	if err != nil {
		return err
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Server != "" {
		f.Server = cfg.Server
	}
	if cfg.TokenDir != "" {
		f.TokenDir = cfg.TokenDir
	}
	if cfg.Timeout != "" {
		timeout, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout in config file: %w", err)
		}
		f.Timeout = timeout
	}

	return nil
}
