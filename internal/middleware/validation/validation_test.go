package validation

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craiverse/credits-service/internal/middleware/errors"
)

// serve middleware'i çalıştırır, panic olursa ValidationError'ı döner
func serve(t *testing.T, config *Config, req *http.Request) (reached bool, verr *errors.ValidationError) {
	t.Helper()
	handler := Middleware(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if req.Method == http.MethodPost {
			assert.NotEmpty(t, body)
		}
	}))

	defer func() {
		if rec := recover(); rec != nil {
			var ok bool
			verr, ok = rec.(*errors.ValidationError)
			require.True(t, ok, "unexpected panic value %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return reached, nil
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	return req
}

// TestMiddleware_Valid, geçerli isteklerin handler'a ulaştığını test eder.
func TestMiddleware_Valid(t *testing.T) {
	tests := []struct {
		name string
		req  *http.Request
	}{
		{"json post", jsonRequest(http.MethodPost, "/api/credits", `{"action":"check","amount":5}`)},
		{"get with query", httptest.NewRequest(http.MethodGet, "/api/credits/transactions?userId=user-1&limit=5&offset=0", nil)},
		{"preflight", httptest.NewRequest(http.MethodOptions, "/api/credits", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached, verr := serve(t, CreditsConfig(), tt.req)

			assert.Nil(t, verr)
			assert.True(t, reached)
		})
	}
}

// TestMiddleware_Rejects, geçersiz isteklerin ValidationError panic'i ürettiğini test eder.
func TestMiddleware_Rejects(t *testing.T) {
	noContentType := httptest.NewRequest(http.MethodPost, "/api/credits", strings.NewReader(`{"a":1}`))
	formBody := httptest.NewRequest(http.MethodPost, "/api/credits", strings.NewReader("a=1"))
	formBody.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
		wantField  string
	}{
		{"method not allowed", httptest.NewRequest(http.MethodDelete, "/api/credits", nil), http.StatusMethodNotAllowed, "method"},
		{"missing content type", noContentType, http.StatusBadRequest, "content"},
		{"form body", formBody, http.StatusBadRequest, "content"},
		{"empty json", jsonRequest(http.MethodPost, "/api/credits", "   "), http.StatusBadRequest, "content"},
		{"json array", jsonRequest(http.MethodPost, "/api/credits", `[1,2]`), http.StatusBadRequest, "content"},
		{"body too large", jsonRequest(http.MethodPost, "/api/credits", `{"reason":"`+strings.Repeat("x", 70*1024)+`"}`), http.StatusBadRequest, "content"},
		{"bad user id", httptest.NewRequest(http.MethodGet, "/api/credits?userId=a%20b", nil), http.StatusBadRequest, "query"},
		{"zero limit", httptest.NewRequest(http.MethodGet, "/api/credits/transactions?limit=0", nil), http.StatusBadRequest, "query"},
		{"negative offset", httptest.NewRequest(http.MethodGet, "/api/credits/transactions?offset=-1", nil), http.StatusBadRequest, "query"},
		{"empty param", httptest.NewRequest(http.MethodGet, "/api/credits?userId=", nil), http.StatusBadRequest, "query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached, verr := serve(t, CreditsConfig(), tt.req)

			assert.False(t, reached)
			require.NotNil(t, verr)
			assert.Equal(t, tt.wantStatus, verr.Status())
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

// TestValidateQueryParameters_UnknownParamsIgnored, kuralı olmayan parametrelerin atlandığını test eder.
func TestValidateQueryParameters_UnknownParamsIgnored(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/credits?foo=%00&limit=10", nil)

	err := ValidateQueryParameters(req, CreditsConfig().QueryValidation)

	assert.NoError(t, err)
}
