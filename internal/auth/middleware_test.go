package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func protected(t *testing.T) (http.Handler, *Claims) {
	t.Helper()
	var seen Claims
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims := GetUser(r.Context()); claims != nil {
			seen = *claims
		}
		w.WriteHeader(http.StatusOK)
	})
	return Middleware(testSecret)(handler), &seen
}

func TestMiddlewarePassesClaims(t *testing.T) {
	token, err := GenerateToken(testSecret, "65a000000000000000000001", "alice@lab.test", "user", "LAB1", "Scientist")
	require.NoError(t, err)

	h, seen := protected(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@lab.test", seen.Email)
	assert.Equal(t, "LAB1", seen.LabID)
	assert.Equal(t, "Scientist", seen.Designation)
}

func TestMiddlewareRejectsMissingOrBadToken(t *testing.T) {
	h, _ := protected(t)

	for name, header := range map[string]string{
		"no header":    "",
		"wrong scheme": "Basic abc",
		"empty bearer": "Bearer ",
		"garbage":      "Bearer not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestMiddlewareRejectsForeignSignature(t *testing.T) {
	token, err := GenerateToken("other-secret", "65a000000000000000000001", "alice@lab.test", "user", "LAB1", "")
	require.NoError(t, err)

	h, _ := protected(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
