package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/productcomposite/backend/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	serviceProduct        = "product"
	serviceRecommendation = "recommendation"
	serviceReview         = "review"

	// maxErrorBodySize caps how much of a failed response is kept for messages and logs
	maxErrorBodySize = 64 << 10

	instrumentationName = "github.com/productcomposite/backend/internal/infrastructure/integration"
)

// ClientConfig holds the backend base URLs and the per-call bounds.
// Each base URL has the product id appended verbatim.
type ClientConfig struct {
	ProductURL        string
	RecommendationURL string
	ReviewURL         string

	ConnectTimeout      time.Duration
	ReadTimeout         time.Duration
	MaxIdleConnsPerHost int

	// RateLimit is the outbound requests per second allowed per backend, 0 means unlimited
	RateLimit float64
	RateBurst int
}

// Client talks to the product, recommendation and review services.
// It holds no mutable state and is safe for concurrent use.
type Client struct {
	httpClient        *http.Client
	productURL        string
	recommendationURL string
	reviewURL         string
	limiters          map[string]*rate.Limiter
	logger            *zap.Logger
	tracer            trace.Tracer
	metrics           instruments
}

var (
	_ domain.ProductLookup        = (*Client)(nil)
	_ domain.RecommendationLookup = (*Client)(nil)
	_ domain.ReviewLookup         = (*Client)(nil)
)

// NewClient creates a new integration client
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
	}

	limiters := make(map[string]*rate.Limiter, 3)
	for _, service := range []string{serviceProduct, serviceRecommendation, serviceReview} {
		limiters[service] = newLimiter(cfg.RateLimit, cfg.RateBurst)
	}

	return &Client{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(transport),
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
		},
		productURL:        cfg.ProductURL,
		recommendationURL: cfg.RecommendationURL,
		reviewURL:         cfg.ReviewURL,
		limiters:          limiters,
		logger:            logger.Named("integration"),
		tracer:            otel.Tracer(instrumentationName),
		metrics:           newInstruments(otel.Meter(instrumentationName)),
	}
}

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// GetProduct fetches one product. A 404 becomes a NotFoundError, a 422 an
// InvalidInputError; any other error status is returned as a BackendStatusError.
func (c *Client) GetProduct(ctx context.Context, productID int) (product *domain.Product, err error) {
	reqURL := c.productURL + strconv.Itoa(productID)

	ctx, finish := c.startCall(ctx, serviceProduct, "GetProduct", productID)
	defer func() { finish(err) }()

	c.logger.Debug("Will call product service", zap.String("url", reqURL))

	resp, err := c.doRequest(ctx, serviceProduct, reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		body := c.readErrorBody(resp.Body, reqURL)
		return nil, c.translateProductError(reqURL, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return nil, decodeError(serviceProduct, reqURL, resp.StatusCode, err)
	}
	if product == nil {
		return nil, decodeError(serviceProduct, reqURL, resp.StatusCode, errors.New("empty product body"))
	}

	c.logger.Debug("Found a product", zap.Int("product_id", product.ProductID))
	return product, nil
}

// GetRecommendations fetches the recommendations of a product. Errors are not
// translated: every failure, including error statuses, is a TransportError.
func (c *Client) GetRecommendations(ctx context.Context, productID int) (recommendations []domain.Recommendation, err error) {
	reqURL := c.recommendationURL + strconv.Itoa(productID)

	ctx, finish := c.startCall(ctx, serviceRecommendation, "GetRecommendations", productID)
	defer func() { finish(err) }()

	c.logger.Debug("Will call recommendation service", zap.String("url", reqURL))

	if err := c.getList(ctx, serviceRecommendation, reqURL, &recommendations); err != nil {
		return nil, err
	}
	if recommendations == nil {
		recommendations = []domain.Recommendation{}
	}

	c.logger.Debug("Found recommendations", zap.Int("product_id", productID), zap.Int("count", len(recommendations)))
	return recommendations, nil
}

// GetReviews fetches the reviews of a product with the same policy as GetRecommendations
func (c *Client) GetReviews(ctx context.Context, productID int) (reviews []domain.Review, err error) {
	reqURL := c.reviewURL + strconv.Itoa(productID)

	ctx, finish := c.startCall(ctx, serviceReview, "GetReviews", productID)
	defer func() { finish(err) }()

	c.logger.Debug("Will call review service", zap.String("url", reqURL))

	if err := c.getList(ctx, serviceReview, reqURL, &reviews); err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}

	c.logger.Debug("Found reviews", zap.Int("product_id", productID), zap.Int("count", len(reviews)))
	return reviews, nil
}

// getList issues a GET and decodes a list body into out
func (c *Client) getList(ctx context.Context, service, reqURL string, out any) error {
	resp, err := c.doRequest(ctx, service, reqURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		body := c.readErrorBody(resp.Body, reqURL)
		return &domain.TransportError{
			Service:    service,
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        statusError(resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return decodeError(service, reqURL, resp.StatusCode, err)
	}
	return nil
}

// doRequest executes a GET after waiting for the backend's rate limiter.
// Failures before a response is available become a TransportError.
func (c *Client) doRequest(ctx context.Context, service, reqURL string) (*http.Response, error) {
	if err := c.limiters[service].Wait(ctx); err != nil {
		return nil, &domain.TransportError{Service: service, URL: reqURL, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &domain.TransportError{Service: service, URL: reqURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ProductComposite/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Service: service, URL: reqURL, Err: err}
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func statusError(status int) error {
	if text := http.StatusText(status); text != "" {
		return errors.New(text)
	}
	return errors.New("unexpected status")
}

func decodeError(service, reqURL string, status int, err error) error {
	return &domain.TransportError{
		Service:    service,
		URL:        reqURL,
		StatusCode: status,
		Err:        fmt.Errorf("failed to decode response: %w", err),
	}
}

// readErrorBody reads a failed response's body. A read error is logged and
// whatever was read before it is kept.
func (c *Client) readErrorBody(r io.Reader, reqURL string) []byte {
	body, err := readLimitedBody(r, maxErrorBodySize)
	if err != nil {
		c.logger.Debug("Failed to read error body, using partial body",
			zap.String("url", reqURL),
			zap.Int("bytes_read", len(body)),
			zap.Error(err),
		)
	}
	return body
}

// readLimitedBody reads at most limit bytes from r
func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}
