package ops

import (
	"context"

	"github.com/damianoneill/interactive/client"
)

// Defines a factory method for instantiating interactive sessions.

// NewSession connects to the service on behalf of the supplied project
// version, and establishes an interactive operations session.
func NewSession(ctx context.Context, projectVersionID int, token string, opts ...SessionOption) (s OpSession, err error) {
	config := defaultSessionConfig
	for _, opt := range opts {
		opt(&config)
	}

	auth := &client.Auth{
		ProjectVersionID: projectVersionID,
		Token:            token,
		ShareCode:        config.shareCode,
	}

	var cs client.Session
	if cs, err = client.NewRPCSessionWithConfig(ctx, auth, config.client); err != nil {
		return
	}

	s = newOpSession(cs, config.stateCache)
	return
}

// SessionOption implements options for configuring session behaviour.
type SessionOption func(*sessionConfig)

// ShareCode defines the share code unlocking a project shared with this host.
func ShareCode(code string) SessionOption {
	return func(c *sessionConfig) {
		c.shareCode = code
	}
}

// ClientConfig defines the configuration of the underlying session.
// Default value is client.DefaultConfig.
func ClientConfig(cfg *client.Config) SessionOption {
	return func(c *sessionConfig) {
		c.client = cfg
	}
}

// StateCache enables the in-memory mirror of the scene graph, maintained
// from the session's event stream.
func StateCache() SessionOption {
	return func(c *sessionConfig) {
		c.stateCache = true
	}
}

// Defines properties controlling session behaviour.
type sessionConfig struct {
	shareCode  string
	client     *client.Config
	stateCache bool
}

var defaultSessionConfig = sessionConfig{
	client: client.DefaultConfig,
}
