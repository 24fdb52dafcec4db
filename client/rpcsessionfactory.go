package client

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/imdario/mergo"
	"github.com/pkg/errors"

	"github.com/damianoneill/interactive/common"
)

// Defines a factory method for instantiating interactive rpc sessions. The
// factory resolves the candidate host list, then walks it in order until one
// endpoint completes the hello exchange; per-candidate failures are recorded
// and surfaced together only if every candidate fails.

// Auth carries the credentials presented during the opening handshake.
type Auth struct {
	// ProjectVersionID identifies the project version the session drives.
	ProjectVersionID int

	// Token is the bearer token identifying the host. A token carrying the
	// alternate identity prefix is passed through verbatim.
	Token string

	// ShareCode unlocks a project shared with this host, if any.
	ShareCode string
}

const (
	protocolVersion = "2.0"
	xblTokenPrefix  = "XBL3.0"
)

// Headers renders the handshake headers for the credentials.
func (a *Auth) Headers() http.Header {
	hdr := http.Header{}
	hdr.Set("X-Protocol-Version", protocolVersion)
	hdr.Set("X-Interactive-Version", strconv.Itoa(a.ProjectVersionID))
	if a.ShareCode != "" {
		hdr.Set("X-Interactive-Sharecode", a.ShareCode)
	}
	if a.Token != "" {
		hdr.Set("Authorization", authorization(a.Token))
	}
	return hdr
}

func authorization(token string) string {
	if strings.HasPrefix(token, xblTokenPrefix) {
		return token
	}
	return "Bearer " + token
}

// NewRPCSession connects to the service with the supplied credentials, and
// establishes an interactive session with default configuration.
func NewRPCSession(ctx context.Context, auth *Auth) (s Session, err error) {
	return NewRPCSessionWithConfig(ctx, auth, DefaultConfig)
}

// NewRPCSessionWithConfig connects to the service with the supplied
// credentials, and establishes an interactive session with the client
// configuration.
func NewRPCSessionWithConfig(ctx context.Context, auth *Auth, cfg *Config) (s Session, err error) {
	// Use supplied config, but apply any defaults to unspecified values.
	resolvedConfig := *cfg
	_ = mergo.Merge(&resolvedConfig, DefaultConfig)

	if auth == nil {
		auth = &Auth{}
	}

	endpoints, err := resolveEndpoints(ctx, &resolvedConfig)
	if err != nil {
		return nil, err
	}

	trace := ContextClientTrace(ctx)
	hdr := auth.Headers()

	attempts := make([]*common.HostError, 0, len(endpoints))
	for _, target := range endpoints {
		if s, err = connectCandidate(ctx, target, hdr, &resolvedConfig); err != nil {
			attempts = append(attempts, &common.HostError{Address: target, Err: err})
			continue
		}
		trace.ConnectionEstablished(target)
		return s, nil
	}
	return nil, &common.ConnectError{Attempts: attempts}
}

func resolveEndpoints(ctx context.Context, cfg *Config) ([]string, error) {
	if len(cfg.Endpoints) > 0 {
		return cfg.Endpoints, nil
	}
	if cfg.DiscoveryURL == "" {
		return nil, errors.New("no discovery url or endpoints configured")
	}
	hosts, err := DiscoverHosts(ctx, cfg.DiscoveryURL, cfg.HTTPClient)
	if err != nil {
		return nil, err
	}
	return hostAddresses(hosts), nil
}

func connectCandidate(ctx context.Context, target string, hdr http.Header, cfg *Config) (s Session, err error) {
	trace := ContextClientTrace(ctx)
	trace.ConnectStart(target)

	defer func(begin time.Time) {
		trace.ConnectDone(target, err, time.Since(begin))
	}(time.Now())

	var t Transport
	if t, err = NewWebsocketTransport(ctx, target, hdr, cfg); err != nil {
		return nil, err
	}

	if s, err = NewSession(ctx, t, cfg); err != nil {
		_ = t.Close()
	}
	return
}
