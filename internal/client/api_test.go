package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/diagnobuddy/backend/pkg/apperror"
)

func TestNewAPIClientRequiresBaseURL(t *testing.T) {
	_, err := NewAPIClient("   ")
	require.Error(t, err)

	c, err := NewAPIClient("http://localhost:8080/")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080", c.BaseURL())
}

func TestSendChatClassifiesStatus(t *testing.T) {
	cases := []struct {
		name   string
		status int
		kind   apperror.Kind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, kind: apperror.KindSession},
		{name: "bad gateway", status: http.StatusBadGateway, kind: apperror.KindNetwork},
		{name: "bad request", status: http.StatusBadRequest, kind: apperror.KindNetwork},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(`{"error":"nope"}`))
			}))
			defer srv.Close()

			c, err := NewAPIClient(srv.URL)
			require.NoError(t, err)

			_, err = c.SendChat(context.Background(), "tok", "a@b.com", "hello")
			require.Error(t, err)
			require.True(t, apperror.IsKind(err, tc.kind))
			require.Equal(t, "nope", apperror.MessageOf(err))
		})
	}
}

func TestSendChatRejectsMissingAIOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sessionId":"tok","data":{"answer":"wrong field"}}`))
	}))
	defer srv.Close()

	c, err := NewAPIClient(srv.URL)
	require.NoError(t, err)

	_, err = c.SendChat(context.Background(), "tok", "a@b.com", "hello")
	require.True(t, apperror.IsKind(err, apperror.KindUpstream))
}

func TestIssueTokenReadsExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/session" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sessionId":"tok","expiresAt":1709800000000}`))
	}))
	defer srv.Close()

	c, err := NewAPIClient(srv.URL)
	require.NoError(t, err)

	token, err := c.IssueToken(context.Background(), "a@b.com", "hello")
	require.NoError(t, err)
	require.Equal(t, "tok", token.Token)
	require.Equal(t, int64(1709800000000), token.ExpiresAtMillis())
}
