package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken(42, "acc-1", true)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.ProfileID)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.True(t, claims.Anonymous)
}

func TestParseBearer(t *testing.T) {
	token, err := GenerateToken(7, "", false)
	require.NoError(t, err)

	testCases := []struct {
		name    string
		header  string
		wantErr error
	}{
		{name: "missing", header: "", wantErr: ErrMissingAuthHeader},
		{name: "no scheme", header: token, wantErr: ErrInvalidAuthHeader},
		{name: "wrong scheme", header: "Basic " + token, wantErr: ErrInvalidAuthHeader},
		{name: "garbage token", header: "Bearer abc.def.ghi", wantErr: ErrInvalidToken},
		{name: "valid", header: "Bearer " + token},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := ParseBearer(tc.header)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(7), claims.ProfileID)
		})
	}
}

func TestCheckJWTMiddleware(t *testing.T) {
	var seen *Claims
	handler := CheckJWTMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "{\"errors\":\"missing auth header\"}\n", rec.Body.String())

	token, err := GenerateToken(9, "", false)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, int64(9), seen.ProfileID)
}
