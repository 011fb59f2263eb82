package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"dairystock/internal/pkg/cache"
	"dairystock/internal/pkg/logger"
	"dairystock/internal/pkg/middleware"
)

// MockCacheClient é uma implementação mock de cache.Client
type MockCacheClient struct {
	mock.Mock
}

func (m *MockCacheClient) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheClient) GetInt(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

func (m *MockCacheClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheClient) Incr(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCacheClient) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func serve(client cache.Client) *httptest.ResponseRecorder {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := middleware.RateLimiter(client, 3, time.Minute, logger.NewNop())(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/products/p1", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_FirstRequestOpensWindow(t *testing.T) {
	client := new(MockCacheClient)
	client.On("GetInt", mock.Anything, "rate-limit:10.0.0.7").Return(0, cache.ErrCacheMiss)
	client.On("Set", mock.Anything, "rate-limit:10.0.0.7", 1, time.Minute).Return(nil)

	rec := serve(client)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Remaining"))
	client.AssertExpectations(t)
}

func TestRateLimiter_UnderLimitIncrements(t *testing.T) {
	client := new(MockCacheClient)
	client.On("GetInt", mock.Anything, "rate-limit:10.0.0.7").Return(1, nil)
	client.On("Incr", mock.Anything, "rate-limit:10.0.0.7").Return(int64(2), nil)

	rec := serve(client)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	client.AssertExpectations(t)
}

func TestRateLimiter_OverLimitRejects(t *testing.T) {
	client := new(MockCacheClient)
	client.On("GetInt", mock.Anything, "rate-limit:10.0.0.7").Return(3, nil)

	rec := serve(client)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
	client.AssertNotCalled(t, "Incr", mock.Anything, mock.Anything)
}

func TestRateLimiter_CacheFailureFailsOpen(t *testing.T) {
	client := new(MockCacheClient)
	client.On("GetInt", mock.Anything, "rate-limit:10.0.0.7").Return(0, errors.New("connection refused"))

	rec := serve(client)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
