package commands

import (
	"errors"
	"fmt"

	"github.com/wolfeidau/studentportal/cmd/cli/internal/credentials"
	"github.com/wolfeidau/studentportal/internal/client"
)

type Globals struct {
	Debug    bool
	Version  string
	Server   string
	StateDir string
	CacheDir string
}

// session pairs an API client with the stored cookie for its server.
type session struct {
	client *client.Client
	store  *credentials.Store
	server string
}

func openSession(globals *Globals) (*session, error) {
	store, err := credentials.NewStore(globals.StateDir)
	if err != nil {
		return nil, err
	}

	cfg := client.DefaultConfig()
	cfg.ServerURL = globals.Server
	cfg.CacheDir = globals.CacheDir

	c, err := client.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	saved, err := store.Get(globals.Server)
	switch {
	case err == nil:
		c.SetSession(saved.Cookie)
	case !errors.Is(err, credentials.ErrNoSession):
		return nil, err
	}

	return &session{client: c, store: store, server: globals.Server}, nil
}

func (s *session) save(email string, remember bool) error {
	return s.store.Put(s.server, credentials.Session{
		Email:    email,
		Cookie:   s.client.Session(),
		Remember: remember,
	})
}

func (s *session) forget() error {
	return s.store.Delete(s.server)
}
