package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// StateFile holds the persisted client state inside the base directory.
const StateFile = "state.yaml"

// ErrNoSession is returned when no session is stored for a server.
var ErrNoSession = errors.New("not logged in")

// Session is a portal session cookie saved after login.
type Session struct {
	Email     string    `yaml:"email"`
	Cookie    string    `yaml:"cookie"`
	Remember  bool      `yaml:"remember"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// Config represents the state file. Sessions are keyed by server URL.
type Config struct {
	Version  int                `yaml:"version"`
	Sessions map[string]Session `yaml:"sessions"`
}

// Store manages client state on the local filesystem.
type Store struct {
	baseDir string
}

// NewStore creates a new state store.
// If baseDir is empty, uses ~/.portalctl/
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".portalctl")
	}

	// Session cookies are bearer secrets
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	s := &Store{baseDir: baseDir}

	if _, err := os.Stat(s.statePath()); errors.Is(err, os.ErrNotExist) {
		if err := s.saveConfig(&Config{Version: 1, Sessions: map[string]Session{}}); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Dir returns the base directory.
func (s *Store) Dir() string {
	return s.baseDir
}

// Get returns the session stored for the server.
func (s *Store) Get(server string) (*Session, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	session, ok := cfg.Sessions[serverKey(server)]
	if !ok || session.Cookie == "" {
		return nil, ErrNoSession
	}

	return &session, nil
}

// Put stores the session for the server, replacing any previous one.
func (s *Store) Put(server string, session Session) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	session.UpdatedAt = time.Now().UTC()
	cfg.Sessions[serverKey(server)] = session

	if err := s.saveConfig(cfg); err != nil {
		return err
	}

	log.Debug().Str("server", server).Str("email", session.Email).Msg("Saved session")

	return nil
}

// Delete removes the session for the server. Deleting a missing session is not an error.
func (s *Store) Delete(server string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	key := serverKey(server)
	if _, ok := cfg.Sessions[key]; !ok {
		return nil
	}
	delete(cfg.Sessions, key)

	return s.saveConfig(cfg)
}

func (s *Store) statePath() string {
	return filepath.Join(s.baseDir, StateFile)
}

func (s *Store) loadConfig() (*Config, error) {
	data, err := os.ReadFile(s.statePath())
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	if cfg.Sessions == nil {
		cfg.Sessions = map[string]Session{}
	}

	return &cfg, nil
}

func (s *Store) saveConfig(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp := s.statePath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := os.Rename(tmp, s.statePath()); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}

func serverKey(server string) string {
	return strings.TrimRight(server, "/")
}
