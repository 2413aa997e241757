package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/authcache/observe"
	"github.com/jonwraymond/authcache/resilience"
)

// DefaultEdgeTimeout bounds every edge tier call when none is configured.
const DefaultEdgeTimeout = 2 * time.Second

// EdgeConfig configures the remote edge tier.
type EdgeConfig struct {
	// Endpoint is the base URL of the edge store.
	Endpoint string

	// Token is a static bearer token attached to every request. Ignored when
	// SigningSecret is set.
	Token string

	// SigningSecret, when set, mints a short-lived HS256 token per request
	// instead of sending a static credential.
	SigningSecret string

	// Timeout bounds each call. Default: DefaultEdgeTimeout.
	Timeout time.Duration

	// Windows is the fresh/stale policy applied to entries read back.
	Windows Windows
}

// EdgeTier is the remote tier: larger, shared across processes, slower.
//
// Every operation carries a bounded timeout. Transport failures, non-2xx
// responses, and corrupt payloads degrade to a miss or a no-op; they are
// logged but never surface to the caller. A corrupt stored entry is deleted
// in the background so the tier heals itself.
//
// A circuit breaker guards the transport: once the edge store has failed
// repeatedly, reads short-circuit to a miss without touching the network
// until a probe succeeds. Writes retry briefly since the tier converges on
// the freshest observed value.
type EdgeTier struct {
	base    *url.URL
	client  *http.Client
	token   string
	secret  string
	timeout time.Duration
	windows Windows
	logger  observe.Logger
	breaker *resilience.CircuitBreaker
	retry   *resilience.Retry
	now     func() time.Time
}

// edgeEnvelope is the wire format for a stored entry.
type edgeEnvelope struct {
	Value    []byte    `json:"value,omitempty"`
	Absent   bool      `json:"absent,omitempty"`
	StoredAt time.Time `json:"stored_at"`
}

// NewEdgeTier creates an edge tier. The logger may be nil.
func NewEdgeTier(cfg EdgeConfig, logger observe.Logger) (*EdgeTier, error) {
	if err := cfg.Windows.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(cfg.Endpoint)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, cfg.Endpoint)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultEdgeTimeout
	}
	if logger == nil {
		logger = observe.NopLogger()
	}

	t := &EdgeTier{
		base:    base,
		client:  &http.Client{},
		token:   cfg.Token,
		secret:  cfg.SigningSecret,
		timeout: timeout,
		windows: cfg.Windows,
		logger:  logger,
		now:     time.Now,
	}
	t.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  5,
		ResetTimeout: 15 * time.Second,
		OnStateChange: func(from, to resilience.State) {
			logger.Warn(context.Background(), "edge circuit state changed",
				observe.Field{Key: "from", Value: from.String()},
				observe.Field{Key: "to", Value: to.String()},
			)
		},
	})
	t.retry = resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		RetryIf: func(err error) bool {
			return err != nil && !errors.Is(err, resilience.ErrCircuitOpen)
		},
	})
	return t, nil
}

// Name implements Tier.
func (t *EdgeTier) Name() string { return "edge" }

// Get fetches and classifies the entry for (namespace, key). Any failure,
// including an open circuit, degrades to a miss.
func (t *EdgeTier) Get(ctx context.Context, namespace, key string) Result {
	var result Result
	err := t.breaker.Execute(ctx, func(ctx context.Context) error {
		var fetchErr error
		result, fetchErr = t.fetch(ctx, namespace, key)
		return fetchErr
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			t.logFailure(ctx, "get", namespace, err)
		}
		return Result{Status: StatusMiss}
	}
	return result
}

// fetch performs one GET against the edge store. Transport and server
// errors are returned so the breaker can count them; data problems with a
// stored entry degrade to a miss and heal in the background.
func (t *EdgeTier) fetch(ctx context.Context, namespace, key string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := t.newRequest(ctx, http.MethodGet, namespace, key, nil)
	if err != nil {
		return Result{}, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Result{Status: StatusMiss}, nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return Result{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		t.logFailure(ctx, "get", namespace, fmt.Errorf("unexpected status %d", resp.StatusCode))
		return Result{Status: StatusMiss}, nil
	}

	var env edgeEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.logFailure(ctx, "get", namespace, fmt.Errorf("corrupt entry: %w", err))
		t.removeAsync(namespace, key)
		return Result{Status: StatusMiss}, nil
	}
	if env.StoredAt.IsZero() {
		t.logFailure(ctx, "get", namespace, fmt.Errorf("corrupt entry: missing stored_at"))
		t.removeAsync(namespace, key)
		return Result{Status: StatusMiss}, nil
	}

	entry := Entry{Value: env.Value, Absent: env.Absent, StoredAt: env.StoredAt}
	status := t.windows.Classify(entry.Age(t.now()))
	if status == StatusMiss {
		return Result{Status: StatusMiss}, nil
	}
	return Result{Status: status, Entry: entry}, nil
}

// Set stores the entry. The edge store cannot compare ages cheaply, so writes
// are unconditional and the tier converges to the freshest observed value.
// Transient failures are retried.
func (t *EdgeTier) Set(ctx context.Context, namespace, key string, entry Entry) error {
	body, err := json.Marshal(edgeEnvelope{
		Value:    entry.Value,
		Absent:   entry.Absent,
		StoredAt: entry.StoredAt,
	})
	if err != nil {
		return fmt.Errorf("cache: encode edge entry: %w", err)
	}

	err = t.retry.Execute(ctx, func(ctx context.Context) error {
		return t.breaker.Execute(ctx, func(ctx context.Context) error {
			return t.put(ctx, namespace, key, body)
		})
	})
	if err != nil {
		return fmt.Errorf("cache: edge set: %w", err)
	}
	return nil
}

func (t *EdgeTier) put(ctx context.Context, namespace, key string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := t.newRequest(ctx, http.MethodPut, namespace, key, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Remove deletes the entry. A 404 from the edge store is a successful no-op.
func (t *EdgeTier) Remove(ctx context.Context, namespace, key string) error {
	err := t.retry.Execute(ctx, func(ctx context.Context) error {
		return t.breaker.Execute(ctx, func(ctx context.Context) error {
			return t.delete(ctx, namespace, key)
		})
	})
	if err != nil {
		return fmt.Errorf("cache: edge remove: %w", err)
	}
	return nil
}

func (t *EdgeTier) delete(ctx context.Context, namespace, key string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := t.newRequest(ctx, http.MethodDelete, namespace, key, nil)
	if err != nil {
		return err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (t *EdgeTier) newRequest(ctx context.Context, method, namespace, key string, body *bytes.Reader) (*http.Request, error) {
	u := t.base.JoinPath("v1", "kv", namespace, url.PathEscape(key))

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("cache: edge request: %w", err)
	}

	if err := t.authorize(req); err != nil {
		return nil, err
	}
	return req, nil
}

// authorize attaches the transport credential: a per-request short-lived
// HS256 token when a signing secret is configured, otherwise the static
// bearer token.
func (t *EdgeTier) authorize(req *http.Request) error {
	switch {
	case t.secret != "":
		now := t.now()
		claims := jwt.RegisteredClaims{
			Issuer:    "authcache",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.secret))
		if err != nil {
			return fmt.Errorf("cache: sign edge token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+signed)
	case t.token != "":
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	return nil
}

// removeAsync deletes a corrupt entry without holding up the read path.
func (t *EdgeTier) removeAsync(namespace, key string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		if err := t.Remove(ctx, namespace, key); err != nil {
			t.logger.Warn(ctx, "edge self-heal remove failed",
				observe.Field{Key: "namespace", Value: namespace},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
	}()
}

func (t *EdgeTier) logFailure(ctx context.Context, op, namespace string, err error) {
	t.logger.Warn(ctx, "edge tier degraded to miss",
		observe.Field{Key: "op", Value: op},
		observe.Field{Key: "namespace", Value: namespace},
		observe.Field{Key: "error", Value: err.Error()},
	)
}

// Ensure EdgeTier implements Tier
var _ Tier = (*EdgeTier)(nil)
