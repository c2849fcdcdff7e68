package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"

	"github.com/Issei-177013/Cloudflare-Utils/internal/clock"
	"github.com/Issei-177013/Cloudflare-Utils/internal/config"
)

const remoteTimeout = 5 * time.Second

// windowParam maps a window to the agent protocol's period parameter.
var windowParam = map[config.Window]string{
	config.Daily:   "d",
	config.Weekly:  "w",
	config.Monthly: "m",
}

// usageEntry is one period entry in the agent's response. The agent
// returns entries oldest-first; the last one is the current period.
type usageEntry struct {
	Rx     uint64 `json:"rx"`
	Tx     uint64 `json:"tx"`
	Period string `json:"period,omitempty"`
}

type usageResponse struct {
	Data []usageEntry `json:"data"`
}

// Remote polls a traffic agent over HTTP, authenticating with the
// agent's API key.
type Remote struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	clk        clock.Clock
	log        zerolog.Logger
}

var _ Client = &Remote{}

// NewRemote creates a client for a remote agent.
func NewRemote(a config.Agent, clk clock.Clock, log zerolog.Logger) *Remote {
	httpClient := cleanhttp.DefaultClient()
	httpClient.Timeout = remoteTimeout

	return &Remote{
		baseURL:    strings.TrimRight(a.BaseURL, "/"),
		apiKey:     a.APIKey,
		httpClient: httpClient,
		clk:        clk,
		log:        log.With().Str("component", "agent").Str("agent", a.Name).Logger(),
	}
}

// Usage fetches the current period's totals for a window. When the
// agent omits a period identifier, the canonical one for the current
// time is used.
func (r *Remote) Usage(ctx context.Context, window config.Window) (Usage, error) {
	param, ok := windowParam[window]
	if !ok {
		return Usage{}, fmt.Errorf("unknown window %q", window)
	}

	reqURL := fmt.Sprintf("%s/usage_by_period?%s", r.baseURL, url.Values{"period": {param}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to build agent request: %w", err)
	}
	req.Header.Set("X-API-Key", r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Usage{}, fmt.Errorf("agent unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Usage{}, fmt.Errorf("agent returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to read agent response: %w", err)
	}

	var parsed usageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Usage{}, fmt.Errorf("failed to parse agent response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return Usage{}, fmt.Errorf("agent returned no usage data")
	}

	latest := parsed.Data[len(parsed.Data)-1]
	period := latest.Period
	if period == "" {
		period = PeriodID(window, r.clk.Now())
	}
	return Usage{RxBytes: latest.Rx, TxBytes: latest.Tx, Period: period}, nil
}
