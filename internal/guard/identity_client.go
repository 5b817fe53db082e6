package guard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"prepai/internal/auth"
	"prepai/internal/metrics"
	"prepai/internal/model"
)

const refreshPath = "/api/auth/refresh"

// maxExchangeBody bounds how much of the provider's reply is read.
const maxExchangeBody = 64 << 10

var (
	// ErrExchangeRejected means the identity provider answered but refused the refresh token.
	ErrExchangeRejected = errors.New("refresh token rejected")
	// ErrAccessTokenMissing means the provider answered OK without setting the access cookie.
	ErrAccessTokenMissing = errors.New("access token cookie missing from exchange response")
)

var tracer = otel.Tracer("prepai/internal/guard")

// Exchange is the result of a successful refresh exchange.
type Exchange struct {
	AccessToken string
	Role        model.Role
}

// Exchanger trades a refresh token for an access token.
type Exchanger interface {
	Exchange(ctx context.Context, refreshToken string) (*Exchange, error)
}

// IdentityClient calls the identity provider's refresh endpoint. Calls are
// bounded by a timeout and pass through a circuit breaker, so an unhealthy
// provider fails fast instead of stacking up requests.
type IdentityClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
}

// NewIdentityClient builds a client for the provider at baseURL.
func NewIdentityClient(baseURL string, timeout time.Duration, m *metrics.Metrics) *IdentityClient {
	return &IdentityClient{
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "identity-provider",
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 5 && failureRatio >= 0.6
			},
			// a rejected token is a healthy provider saying no
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrExchangeRejected)
			},
		}),
		metrics: m,
	}
}

// Exchange posts the refresh token and reads the access token from the
// response cookies and the role from the JSON body.
func (c *IdentityClient) Exchange(ctx context.Context, refreshToken string) (*Exchange, error) {
	ctx, span := tracer.Start(ctx, "guard.exchange")
	defer span.End()

	start := time.Now()
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.exchange(ctx, refreshToken)
	})
	c.metrics.ObserveExchange(start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res.(*Exchange), nil
}

func (c *IdentityClient) exchange(ctx context.Context, refreshToken string) (*Exchange, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build exchange request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: auth.RefreshTokenCookie, Value: refreshToken})

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxExchangeBody))
		return nil, fmt.Errorf("%w: status %d", ErrExchangeRejected, resp.StatusCode)
	}

	var accessToken string
	for _, cookie := range resp.Cookies() {
		if cookie.Name == auth.AccessTokenCookie && cookie.Value != "" {
			accessToken = cookie.Value
		}
	}
	if accessToken == "" {
		return nil, ErrAccessTokenMissing
	}

	var payload struct {
		Role model.Role `json:"role"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxExchangeBody)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode exchange response: %w", err)
	}

	return &Exchange{AccessToken: accessToken, Role: payload.Role}, nil
}
