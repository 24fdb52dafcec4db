package client

import "net/http"

// Defines structs describing interactive session configuration.

// Config defines properties that configure interactive session behaviour.
type Config struct {
	// Defines the time in seconds that the client will wait to receive a hello method from the server.
	SetupTimeoutSecs int

	// Defines the time in seconds that the client will wait for a reply to a method call.
	RequestTimeoutSecs int

	// Defines the time in seconds that the client will wait for a frame write to complete.
	WriteTimeoutSecs int

	// Defines the interval in seconds between keepalive pings. A negative value disables keepalives.
	PingIntervalSecs int

	// Defines the HTTP endpoint that returns the ordered candidate host list.
	// Ignored when Endpoints is set.
	DiscoveryURL string

	// Defines an explicit ordered candidate host list, bypassing discovery.
	Endpoints []string

	// Defines the HTTP client used to query the discovery endpoint.
	HTTPClient *http.Client
}

var DefaultConfig = &Config{
	SetupTimeoutSecs:   5,
	RequestTimeoutSecs: 15,
	WriteTimeoutSecs:   10,
	PingIntervalSecs:   30,
}
