package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSONDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "u1", r.URL.Query().Get("userId"))
		_, _ = w.Write([]byte(`{"n":3}`))
	}))
	defer srv.Close()

	var out struct{ N int }
	err := New(srv.URL).GetJSON(context.Background(), "/x", url.Values{"userId": {"u1"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, out.N)
}

func TestStatusErrorCarriesErrorField(t *testing.T) {
	tests := []struct {
		name string
		ct   string
		body string
		want string
	}{
		{name: "json error field", ct: "application/json", body: `{"error":"userId is required"}`, want: "userId is required"},
		{name: "plain text", ct: "text/plain", body: "rate limit exceeded\n", want: "rate limit exceeded"},
		{name: "json without error", ct: "application/json", body: `{}`, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.ct)
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := New(srv.URL).PostJSON(context.Background(), "/x", map[string]string{}, nil)
			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, http.StatusBadRequest, se.StatusCode)
			assert.Equal(t, tt.want, se.Message)
		})
	}
}

func TestWebSocketURL(t *testing.T) {
	got, err := New("https://api.gabarita.ai/").WebSocketURL("/ws/achievements", url.Values{"userId": {"u1"}})
	require.NoError(t, err)
	assert.Equal(t, "wss://api.gabarita.ai/ws/achievements?userId=u1", got)
}

func TestMutableSession(t *testing.T) {
	var s MutableSession
	assert.Empty(t, s.UserID())
	s.SetUserID("u1")
	assert.Equal(t, "u1", s.UserID())
	assert.Equal(t, "u2", StaticSession("u2").UserID())
}
