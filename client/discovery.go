package client

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/damianoneill/interactive/common"
)

// The discovery layer resolves the ordered list of candidate session
// endpoints from an HTTP endpoint. Candidates are consumed left to right,
// once, per connect attempt.

// Host is one candidate session endpoint.
type Host struct {
	Address string `json:"address"`
}

// DiscoverHosts queries the discovery endpoint and returns the candidate
// list in the order the service wants them tried.
func DiscoverHosts(ctx context.Context, url string, httpClient *http.Client) (hosts []Host, err error) {
	trace := ContextClientTrace(ctx)
	trace.DiscoverStart(url)

	defer func(begin time.Time) {
		trace.DiscoverDone(url, hostAddresses(hosts), err, time.Since(begin))
	}(time.Now())

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build discovery request")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query discovery endpoint")
	}
	defer resp.Body.Close() // nolint: errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}

	if err = json.NewDecoder(resp.Body).Decode(&hosts); err != nil {
		return nil, errors.Wrap(err, "failed to decode discovery response")
	}

	if len(hosts) == 0 {
		return nil, common.ErrNoHostsFound
	}
	return hosts, nil
}

func hostAddresses(hosts []Host) []string {
	addresses := make([]string, 0, len(hosts))
	for _, h := range hosts {
		addresses = append(addresses, h.Address)
	}
	return addresses
}
