package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloo-solutions/newsrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func TestBearerAuth_Success(t *testing.T) {
	mockValidator := new(MockTokenValidator)
	mockValidator.On("ValidateToken", mock.Anything, "s3cr3t-token").Return("client-789", nil)

	var capturedClientID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedClientID = GetClientID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	middleware := BearerAuth(mockValidator)
	wrappedHandler := middleware(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer s3cr3t-token")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "client-789", capturedClientID)
	mockValidator.AssertExpectations(t)
}

func TestBearerAuth_MissingHeader(t *testing.T) {
	mockValidator := new(MockTokenValidator)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	middleware := BearerAuth(mockValidator)
	wrappedHandler := middleware(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing authorization header")
}

func TestBearerAuth_InvalidFormat(t *testing.T) {
	mockValidator := new(MockTokenValidator)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	middleware := BearerAuth(mockValidator)
	wrappedHandler := middleware(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc123")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid authorization format")
}

func TestBearerAuth_ValidationFails(t *testing.T) {
	mockValidator := new(MockTokenValidator)
	mockValidator.On("ValidateToken", mock.Anything, "wrong-token").Return("", errors.New("invalid key"))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	middleware := BearerAuth(mockValidator)
	wrappedHandler := middleware(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid api key")
	mockValidator.AssertExpectations(t)
}

func TestGetClientID_ValidContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), ClientIDKey, "client-123")
	clientID := GetClientID(ctx)
	assert.Equal(t, "client-123", clientID)
}

func TestGetClientID_MissingContext(t *testing.T) {
	ctx := context.Background()
	clientID := GetClientID(ctx)
	assert.Equal(t, "", clientID)
}

func TestStaticTokenValidator(t *testing.T) {
	validator := NewStaticTokenValidator("s3cr3t-token")

	clientID, err := validator.ValidateToken(context.Background(), "s3cr3t-token")
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(clientID, "token-"))

	again, err := validator.ValidateToken(context.Background(), "s3cr3t-token")
	assert.NoError(t, err)
	assert.Equal(t, clientID, again)

	_, err = validator.ValidateToken(context.Background(), "s3cr3t")
	assert.True(t, errors.Is(err, domain.ErrInvalidAPIKey))
}

func TestStaticTokenValidator_EmptyTokenRejectsEverything(t *testing.T) {
	validator := NewStaticTokenValidator("")

	_, err := validator.ValidateToken(context.Background(), "")
	assert.Error(t, err)
}

func TestBearerAuth_WithStaticValidator(t *testing.T) {
	handler := BearerAuth(NewStaticTokenValidator("s3cr3t-token"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/query", nil)
	req.Header.Set("Authorization", "Bearer s3cr3t-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/query", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
