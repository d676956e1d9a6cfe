package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderExtractor(t *testing.T) {
	e := NewHeaderExtractor("", "")

	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"bearer token", "Bearer abc.def.ghi", "abc.def.ghi", nil},
		{"lowercase prefix", "bearer abc.def.ghi", "abc.def.ghi", nil},
		{"missing header", "", "", ErrMissingHeader},
		{"wrong prefix", "Basic dXNlcg==", "", ErrInvalidPrefix},
		{"too short", "Bear", "", ErrInvalidPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			token, err := e.Extract(r)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, token)
		})
	}
}

func TestCookieExtractor(t *testing.T) {
	e := NewCookieExtractor("jwt")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "jwt", Value: "tok"})
	token, err := e.Extract(r)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	_, err = e.Extract(r)
	assert.ErrorIs(t, err, ErrMissingCookie)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "jwt", Value: ""})
	_, err = e.Extract(r)
	assert.ErrorIs(t, err, ErrMissingCookie)
}

func TestDefaultExtractor_HeaderWinsOverCookie(t *testing.T) {
	e := DefaultExtractor("jwt")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer from-header")
	r.AddCookie(&http.Cookie{Name: "jwt", Value: "from-cookie"})

	token, err := e.Extract(r)
	require.NoError(t, err)
	assert.Equal(t, "from-header", token)
}

func TestDefaultExtractor_NoCredential(t *testing.T) {
	e := DefaultExtractor("jwt")
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := e.Extract(r)
	assert.ErrorIs(t, err, ErrNoTokenFound)
}
