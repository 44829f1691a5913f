package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloo-solutions/newsrag/internal/api/handlers"
	"github.com/cloo-solutions/newsrag/internal/api/middleware"
	"github.com/cloo-solutions/newsrag/internal/domain"
	"github.com/cloo-solutions/newsrag/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) Ask(ctx context.Context, question string, topK int) (*domain.Answer, error) {
	args := m.Called(ctx, question, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Answer), args.Error(1)
}

func (m *MockQueryService) Outlook(ctx context.Context, symbol string) (*domain.Answer, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Answer), args.Error(1)
}

func (m *MockQueryService) Competitor(ctx context.Context, symbol, competitor string) (*domain.Answer, error) {
	args := m.Called(ctx, symbol, competitor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Answer), args.Error(1)
}

func (m *MockQueryService) Status() service.IndexStatus {
	args := m.Called()
	return args.Get(0).(service.IndexStatus)
}

func newTestRouter(svc *MockQueryService, validator middleware.TokenValidator) http.Handler {
	return NewRouter(RouterConfig{
		AuthValidator: validator,
		QueryHandler:  handlers.NewQueryHandler(svc),
	})
}

func post(t *testing.T, router http.Handler, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(new(MockQueryService), middleware.NewStaticTokenValidator("tok"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"status":"ok"}}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_Query(t *testing.T) {
	svc := new(MockQueryService)
	svc.On("Ask", mock.Anything, "What trends affect AAPL?", 0).Return(&domain.Answer{Text: "Services growth."}, nil)
	router := newTestRouter(svc, nil)

	w := post(t, router, "/query", map[string]string{"question": "What trends affect AAPL?"}, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Services growth.")
	svc.AssertExpectations(t)
}

func TestRouter_Reports(t *testing.T) {
	svc := new(MockQueryService)
	svc.On("Outlook", mock.Anything, "NVDA").Return(&domain.Answer{Text: "outlook"}, nil)
	svc.On("Competitor", mock.Anything, "MSFT", "GOOG").Return(&domain.Answer{Text: "competition"}, nil)
	router := newTestRouter(svc, nil)

	w := post(t, router, "/reports/outlook", map[string]string{"symbol": "NVDA"}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = post(t, router, "/reports/competitor", map[string]string{"symbol": "MSFT", "competitor": "GOOG"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "competition")

	svc.AssertExpectations(t)
}

func TestRouter_IndexStatus(t *testing.T) {
	svc := new(MockQueryService)
	svc.On("Status").Return(service.IndexStatus{Loaded: true, Entries: 3, Dimensions: 384})
	router := newTestRouter(svc, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/index", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"entries":3`)
}

func TestRouter_RequiresTokenWhenConfigured(t *testing.T) {
	svc := new(MockQueryService)
	svc.On("Ask", mock.Anything, "q", 0).Return(&domain.Answer{Text: "a"}, nil)
	router := newTestRouter(svc, middleware.NewStaticTokenValidator("tok"))

	w := post(t, router, "/query", map[string]string{"question": "q"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(t, router, "/query", map[string]string{"question": "q"}, "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(t, router, "/query", map[string]string{"question": "q"}, "tok")
	assert.Equal(t, http.StatusOK, w.Code)

	svc.AssertNumberOfCalls(t, "Ask", 1)
}

func TestRouter_BodyTooLarge(t *testing.T) {
	svc := new(MockQueryService)
	router := newTestRouter(svc, nil)

	w := post(t, router, "/query", map[string]string{"question": strings.Repeat("a", 70*1024)}, "")

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	svc.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything, mock.Anything)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := newTestRouter(new(MockQueryService), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/knowledge", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
