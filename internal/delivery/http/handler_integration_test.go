package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/productcomposite/backend/config"
	"github.com/productcomposite/backend/internal/domain"
	"github.com/productcomposite/backend/internal/infrastructure/integration"
	"github.com/productcomposite/backend/internal/usecase"
)

const (
	productIDOK           = 1
	productIDNotFound     = 2
	productIDInvalid      = 3
	productIDUnreachable  = 4
	productIDUnclassified = 5
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	// Run tests
	exitCode := m.Run()

	// Exit with the test result code
	os.Exit(exitCode)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "7000",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*", "https://shop.example.com"},
		},
		Telemetry: config.TelemetryConfig{ServiceName: "product-composite"},
	}
}

// --- Mock implementations of the lookup interfaces ---

// mockLookups answers by product ID the way the backends would
type mockLookups struct{}

func (mockLookups) GetProduct(ctx context.Context, productID int) (*domain.Product, error) {
	switch productID {
	case productIDNotFound:
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("No product found for productId: %d", productID)}
	case productIDInvalid:
		return nil, &domain.InvalidInputError{Message: fmt.Sprintf("INVALID: %d", productID)}
	case productIDUnreachable:
		return nil, &domain.TransportError{Service: "product", Err: errors.New("connection refused")}
	case productIDUnclassified:
		return nil, &domain.BackendStatusError{Service: "product", StatusCode: http.StatusServiceUnavailable}
	}
	return &domain.Product{ProductID: productID, Name: "name", Weight: 1, ServiceAddress: "mock-address"}, nil
}

func (mockLookups) GetRecommendations(ctx context.Context, productID int) ([]domain.Recommendation, error) {
	return []domain.Recommendation{
		{ProductID: productID, RecommendationID: 1, Author: "author", Rate: 1, Content: "content", ServiceAddress: "mock-address"},
	}, nil
}

func (mockLookups) GetReviews(ctx context.Context, productID int) ([]domain.Review, error) {
	return []domain.Review{
		{ProductID: productID, ReviewID: 1, Author: "author", Subject: "subject", Content: "content", ServiceAddress: "mock-address"},
	}, nil
}

// failingService returns a fixed error for every request
type failingService struct {
	err error
}

func (f failingService) GetProductAggregate(ctx context.Context, productID int) (*domain.ProductAggregate, error) {
	return nil, f.err
}

// setupTestRouter creates a test router backed by a real CompositeService over mock lookups
func setupTestRouter() *gin.Engine {
	m := mockLookups{}
	service := usecase.NewCompositeService(m, m, m, usecase.CompositeConfig{Address: "composite-test"}, nil)

	handler := NewHandler(service)
	if handler == nil {
		panic("setupTestRouter: NewHandler returned nil")
	}

	router := SetupRouter(testConfig(), handler, nil, false)
	if router == nil {
		panic("setupTestRouter: SetupRouter returned nil *gin.Engine")
	}

	return router
}

func getJSON(t *testing.T, router *gin.Engine, path string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()

	req, _ := http.NewRequest("GET", path, nil)
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("Failed to unmarshal response %q: %v", w.Body.String(), err)
		}
	}
	return w
}

// TestHealthCheckEndpoint tests the health check endpoint
func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router := setupTestRouter()

		var response map[string]interface{}
		w := getJSON(t, router, "/health", &response)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", response["status"])
		}
		if response["service"] != "product-composite" {
			t.Errorf("service = %v, want product-composite", response["service"])
		}
		version, ok := response["version"].(string)
		if !ok || strings.TrimSpace(version) == "" {
			t.Errorf("version = %v, want non-empty string", response["version"])
		}
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router := setupTestRouter()

		methods := []string{"POST", "PUT", "DELETE", "PATCH"}

		for _, method := range methods {
			req, _ := http.NewRequest(method, "/health", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})
}

// TestGetProductComposite tests the composite endpoint against each backend outcome
func TestGetProductComposite(t *testing.T) {
	t.Run("returns the composite product", func(t *testing.T) {
		router := setupTestRouter()

		var aggregate domain.ProductAggregate
		w := getJSON(t, router, fmt.Sprintf("/product-composite/%d", productIDOK), &aggregate)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if aggregate.ProductID != productIDOK {
			t.Errorf("productId = %d, want %d", aggregate.ProductID, productIDOK)
		}
		if len(aggregate.Recommendations) != 1 {
			t.Errorf("recommendations = %d, want 1", len(aggregate.Recommendations))
		}
		if len(aggregate.Reviews) != 1 {
			t.Errorf("reviews = %d, want 1", len(aggregate.Reviews))
		}
		if aggregate.ServiceAddresses.Composite != "composite-test" {
			t.Errorf("serviceAddresses.cmp = %q, want composite-test", aggregate.ServiceAddresses.Composite)
		}
	})

	t.Run("uses camelCase field names", func(t *testing.T) {
		router := setupTestRouter()

		var response map[string]interface{}
		getJSON(t, router, "/product-composite/1", &response)

		for _, key := range []string{"productId", "name", "weight", "recommendations", "reviews", "serviceAddresses"} {
			if _, ok := response[key]; !ok {
				t.Errorf("response missing %q: %v", key, response)
			}
		}
	})

	t.Run("returns 404 for an unknown product", func(t *testing.T) {
		router := setupTestRouter()

		var info map[string]interface{}
		w := getJSON(t, router, fmt.Sprintf("/product-composite/%d", productIDNotFound), &info)

		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
		}
		if info["path"] != "/product-composite/2" {
			t.Errorf("path = %v, want /product-composite/2", info["path"])
		}
		if info["message"] != "No product found for productId: 2" {
			t.Errorf("message = %v, want 'No product found for productId: 2'", info["message"])
		}
		if info["httpStatus"] != float64(http.StatusNotFound) {
			t.Errorf("httpStatus = %v, want 404", info["httpStatus"])
		}
		if ts, _ := info["timestamp"].(string); ts == "" {
			t.Errorf("timestamp = %v, want an ISO string", info["timestamp"])
		} else if _, err := time.Parse(time.RFC3339Nano, ts); err != nil {
			t.Errorf("timestamp %q is not RFC3339: %v", ts, err)
		}
	})

	t.Run("returns 422 for invalid input", func(t *testing.T) {
		router := setupTestRouter()

		var info domain.HttpErrorInfo
		w := getJSON(t, router, fmt.Sprintf("/product-composite/%d", productIDInvalid), &info)

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
		}
		if info.Path != "/product-composite/3" {
			t.Errorf("path = %q, want /product-composite/3", info.Path)
		}
		if info.Message != "INVALID: 3" {
			t.Errorf("message = %q, want 'INVALID: 3'", info.Message)
		}
	})

	t.Run("returns 422 for non-positive ids", func(t *testing.T) {
		router := setupTestRouter()

		for _, id := range []string{"0", "-1"} {
			var info domain.HttpErrorInfo
			w := getJSON(t, router, "/product-composite/"+id, &info)

			if w.Code != http.StatusUnprocessableEntity {
				t.Errorf("id %s: Status = %d, want %d", id, w.Code, http.StatusUnprocessableEntity)
			}
			if info.HTTPStatus != http.StatusUnprocessableEntity {
				t.Errorf("id %s: httpStatus = %d, want 422", id, info.HTTPStatus)
			}
			if info.Message != "Invalid productId: "+id {
				t.Errorf("id %s: message = %q, want 'Invalid productId: %s'", id, info.Message, id)
			}
		}
	})

	t.Run("returns 400 for a non-numeric id", func(t *testing.T) {
		router := setupTestRouter()

		var info domain.HttpErrorInfo
		w := getJSON(t, router, "/product-composite/no-integer", &info)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
		if info.Path != "/product-composite/no-integer" {
			t.Errorf("path = %q, want /product-composite/no-integer", info.Path)
		}
		if !strings.Contains(info.Message, "no-integer") {
			t.Errorf("message = %q, want it to name the bad value", info.Message)
		}
	})

	t.Run("returns 502 when the product backend is unreachable", func(t *testing.T) {
		router := setupTestRouter()

		for _, id := range []int{productIDUnreachable, productIDUnclassified} {
			var info domain.HttpErrorInfo
			w := getJSON(t, router, fmt.Sprintf("/product-composite/%d", id), &info)

			if w.Code != http.StatusBadGateway {
				t.Errorf("id %d: Status = %d, want %d", id, w.Code, http.StatusBadGateway)
			}
			if info.Message != "Backend service temporarily unavailable" {
				t.Errorf("id %d: message = %q, want generic message", id, info.Message)
			}
		}
	})

	t.Run("returns 500 for unexpected errors", func(t *testing.T) {
		router := SetupRouter(testConfig(), NewHandler(failingService{err: errors.New("boom")}), nil, false)

		var info domain.HttpErrorInfo
		w := getJSON(t, router, "/product-composite/1", &info)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		if info.Message != "Internal Server Error" {
			t.Errorf("message = %q, want 'Internal Server Error'", info.Message)
		}
	})

	t.Run("returns 503 when no service is configured", func(t *testing.T) {
		router := SetupRouter(testConfig(), NewHandler(nil), nil, false)

		w := getJSON(t, router, "/product-composite/1", nil)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusServiceUnavailable)
		}
	})
}

// TestGetProductComposite_EndToEnd wires the real integration client to fake backends
func TestGetProductComposite_EndToEnd(t *testing.T) {
	writeJSON := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}

	products := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/product/1":
			writeJSON(w, http.StatusOK, `{"productId":1,"name":"name","weight":1,"serviceAddress":"product:7001"}`)
		case "/product/2":
			writeJSON(w, http.StatusNotFound, `{"timestamp":"2024-05-01T10:00:00Z","path":"/product/2","httpStatus":404,"message":"No product found for productId: 2"}`)
		default:
			writeJSON(w, http.StatusInternalServerError, `{"message":"boom"}`)
		}
	}))
	defer products.Close()

	recommendations := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"productId":1,"recommendationId":1,"author":"a","rate":5,"content":"c","serviceAddress":"rec:7002"}]`)
	}))
	defer recommendations.Close()

	reviews := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, `{"message":"down"}`)
	}))
	defer reviews.Close()

	client := integration.NewClient(integration.ClientConfig{
		ProductURL:        products.URL + "/product/",
		RecommendationURL: recommendations.URL + "/recommendation?productId=",
		ReviewURL:         reviews.URL + "/review?productId=",
		ConnectTimeout:    time.Second,
		ReadTimeout:       time.Second,
	}, nil)
	service := usecase.NewCompositeService(client, client, client, usecase.CompositeConfig{Timeout: 5 * time.Second, Address: "composite:7000"}, nil)
	router := SetupRouter(testConfig(), NewHandler(service), nil, false)

	t.Run("aggregates and degrades the failing review backend", func(t *testing.T) {
		var aggregate domain.ProductAggregate
		w := getJSON(t, router, "/product-composite/1", &aggregate)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
		}
		if len(aggregate.Recommendations) != 1 || aggregate.Recommendations[0].Rate != 5 {
			t.Errorf("recommendations = %+v, want one with rate 5", aggregate.Recommendations)
		}
		if aggregate.Reviews == nil || len(aggregate.Reviews) != 0 {
			t.Errorf("reviews = %+v, want empty list", aggregate.Reviews)
		}
		want := domain.ServiceAddresses{Composite: "composite:7000", Product: "product:7001", Recommendation: "rec:7002"}
		if aggregate.ServiceAddresses != want {
			t.Errorf("serviceAddresses = %+v, want %+v", aggregate.ServiceAddresses, want)
		}
	})

	t.Run("serializes empty lists as arrays", func(t *testing.T) {
		w := getJSON(t, router, "/product-composite/1", nil)

		if !strings.Contains(w.Body.String(), `"reviews":[]`) {
			t.Errorf("body = %s, want reviews as []", w.Body.String())
		}
	})

	t.Run("relays the backend not-found message", func(t *testing.T) {
		var info domain.HttpErrorInfo
		w := getJSON(t, router, "/product-composite/2", &info)

		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
		}
		if info.Message != "No product found for productId: 2" {
			t.Errorf("message = %q, want backend message", info.Message)
		}
		if info.Path != "/product-composite/2" {
			t.Errorf("path = %q, want /product-composite/2", info.Path)
		}
	})

	t.Run("maps an unclassified product status to 502", func(t *testing.T) {
		w := getJSON(t, router, "/product-composite/9", nil)

		if w.Code != http.StatusBadGateway {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadGateway)
		}
	})
}

// TestCORSIntegration tests CORS headers work end-to-end with full router
func TestCORSIntegration(t *testing.T) {
	t.Run("health endpoint has CORS for localhost", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		gotOrigin := w.Header().Get("Access-Control-Allow-Origin")
		if gotOrigin != "http://localhost:3000" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", gotOrigin, "http://localhost:3000")
		}

		gotCreds := w.Header().Get("Access-Control-Allow-Credentials")
		if gotCreds != "true" {
			t.Errorf("Access-Control-Allow-Credentials = %q, want %q", gotCreds, "true")
		}
	})

	t.Run("composite endpoint has CORS for configured origin", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/product-composite/1", nil)
		req.Header.Set("Origin", "https://shop.example.com")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		gotOrigin := w.Header().Get("Access-Control-Allow-Origin")
		if gotOrigin != "https://shop.example.com" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", gotOrigin, "https://shop.example.com")
		}
	})
}

// TestRecoveryMiddleware tests panic recovery
func TestRecoveryMiddleware(t *testing.T) {
	t.Run("recovers from panic without crashing server", func(t *testing.T) {
		router := setupTestRouter()

		// Add a test route that panics
		router.GET("/panic", func(c *gin.Context) {
			panic("test panic")
		})

		req, _ := http.NewRequest("GET", "/panic", nil)
		w := httptest.NewRecorder()

		// This should not crash the test - recovery middleware should handle it
		router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
		}

		var info domain.HttpErrorInfo
		if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
			t.Fatalf("Failed to unmarshal response %q: %v", w.Body.String(), err)
		}
		if info.Path != "/panic" || info.Message != "Internal Server Error" {
			t.Errorf("body = %+v, want HttpErrorInfo for /panic", info)
		}
	})
}

// TestRequestIDPropagation tests that every response carries a request ID
func TestRequestIDPropagation(t *testing.T) {
	router := setupTestRouter()

	for _, path := range []string{"/health", "/product-composite/1", "/product-composite/2"} {
		req, _ := http.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Header().Get(RequestIDHeader) == "" {
			t.Errorf("%s: X-Request-ID not set", path)
		}
	}
}

// TestRateLimitIntegration tests the per-IP limit on the full router
func TestRateLimitIntegration(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.PerIP = 1
	m := mockLookups{}
	router := SetupRouter(cfg, NewHandler(usecase.NewCompositeService(m, m, m, usecase.CompositeConfig{}, nil)), nil, false)

	first := getJSON(t, router, "/product-composite/1", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first request: Status = %d, want %d", first.Code, http.StatusOK)
	}

	var info domain.HttpErrorInfo
	second := getJSON(t, router, "/product-composite/1", &info)
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request: Status = %d, want %d", second.Code, http.StatusTooManyRequests)
	}
	if info.HTTPStatus != http.StatusTooManyRequests {
		t.Errorf("httpStatus = %d, want 429", info.HTTPStatus)
	}
}

// TestJSONResponses tests that all responses are valid JSON
func TestJSONResponses(t *testing.T) {
	paths := []string{
		"/health",
		"/product-composite/1",
		"/product-composite/2",
		"/product-composite/3",
		"/product-composite/abc",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			router := setupTestRouter()

			req, _ := http.NewRequest("GET", path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			gotContentType := w.Header().Get("Content-Type")
			wantContentType := "application/json; charset=utf-8"
			if gotContentType != wantContentType {
				t.Errorf("Content-Type = %q, want %q", gotContentType, wantContentType)
			}

			var response map[string]interface{}
			err := json.Unmarshal(w.Body.Bytes(), &response)
			if err != nil {
				t.Errorf("Response should be valid JSON, got error: %v", err)
			}
		})
	}
}
