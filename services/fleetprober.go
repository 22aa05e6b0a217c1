package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/horizon-monitor/types"
	"github.com/ethpandaops/horizon-monitor/utils"
)

const (
	versionPath             = "/version"
	maxVersionResponseBytes = 1024 * 1024

	defaultProbeTimeout   = 10 * time.Second
	defaultProbeBaseDelay = 500 * time.Millisecond
)

var (
	proberAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "horizon_prober_attempts_total",
		Help: "Number of version endpoint requests sent by the fleet prober",
	})
	proberResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "horizon_prober_results_total",
		Help: "Number of probe results by reachability",
	}, []string{"result"})
)

type FleetProberConfig struct {
	Timeout        time.Duration
	RetryCount     uint64
	RetryBaseDelay time.Duration
}

// FleetProber resolves the running software version of every indexer in a fleet
// by querying the /version endpoint of its registered url.
type FleetProber struct {
	config     FleetProberConfig
	httpClient *http.Client
	logger     logrus.FieldLogger
}

func NewFleetProber(config FleetProberConfig, logger logrus.FieldLogger) *FleetProber {
	if config.Timeout <= 0 {
		config.Timeout = defaultProbeTimeout
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = defaultProbeBaseDelay
	}

	return &FleetProber{
		config:     config,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// ProbeAll probes every target with a url concurrently. The result slice has the same
// order as targets. A failing target never affects the results of the others.
func (fp *FleetProber) ProbeAll(ctx context.Context, targets []types.ProbeTarget) []*types.ProbeResult {
	results := make([]*types.ProbeResult, len(targets))
	wg := sync.WaitGroup{}

	for idx, target := range targets {
		if target.Url == "" {
			results[idx] = &types.ProbeResult{
				ID:           target.ID,
				Reachability: types.ReachabilityNoURL,
			}
			continue
		}

		// stays in place if the probe routine panics
		results[idx] = &types.ProbeResult{
			ID:           target.ID,
			Url:          target.Url,
			Reachability: types.ReachabilityUnreachable,
			Error:        "probe aborted",
		}

		wg.Add(1)
		go func(idx int, target types.ProbeTarget) {
			defer wg.Done()
			defer utils.HandleSubroutinePanic("FleetProber.ProbeAll")

			result := fp.ProbeVersion(ctx, target.Url)
			result.ID = target.ID
			results[idx] = result
		}(idx, target)
	}

	wg.Wait()

	stats := map[types.Reachability]int{}
	for _, result := range results {
		stats[result.Reachability]++
		proberResultsTotal.WithLabelValues(result.Reachability.String()).Inc()
	}
	fp.logger.Debugf("probed %v targets (reachable: %v, unreachable: %v, no url: %v)", len(targets), stats[types.ReachabilityReachable], stats[types.ReachabilityUnreachable], stats[types.ReachabilityNoURL])

	return results
}

// ProbeVersion resolves the version served at the /version endpoint of rawURL.
// Transport errors and non-2xx responses are retried with exponential backoff,
// an unparsable body is not.
func (fp *FleetProber) ProbeVersion(ctx context.Context, rawURL string) *types.ProbeResult {
	result := &types.ProbeResult{
		Url:          rawURL,
		Reachability: types.ReachabilityUnreachable,
	}
	if rawURL == "" {
		result.Reachability = types.ReachabilityNoURL
		return result
	}

	endpoint, err := versionURL(rawURL)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	backoff := retry.WithMaxRetries(fp.config.RetryCount, retry.NewExponential(fp.config.RetryBaseDelay))
	body, err := retry.DoValue(ctx, backoff, func(ctx context.Context) ([]byte, error) {
		result.Attempts++
		proberAttemptsTotal.Inc()

		data, err := fp.fetchVersion(ctx, endpoint)
		if err != nil {
			fp.logger.WithField("url", endpoint).Debugf("version probe attempt %v failed: %v", result.Attempts, err)
			return nil, retry.RetryableError(err)
		}
		return data, nil
	})
	if err != nil {
		result.Error = fmt.Sprintf("failed to fetch %v: %v", rawURL, err)
		return result
	}

	version, err := parseVersionResponse(body)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Version = version
	result.Reachability = types.ReachabilityReachable
	return result
}

func (fp *FleetProber) fetchVersion(ctx context.Context, endpoint string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, fp.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := fp.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %v", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxVersionResponseBytes))
}

func versionURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %v: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("invalid url %v: unsupported scheme %q", rawURL, parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid url %v: missing host", rawURL)
	}

	parsed.Path = versionPath
	parsed.RawPath = ""
	return parsed.String(), nil
}

var errNoVersionField = errors.New("no version field in response")

func parseVersionResponse(body []byte) (string, error) {
	response := struct {
		Version any `json:"version"`
	}{}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("error parsing version response: %w", err)
	}

	// any string counts, an empty version is still a live answer
	version, ok := response.Version.(string)
	if !ok {
		return "", errNoVersionField
	}
	return version, nil
}
