package http_client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateHTTPClient(t *testing.T) {
	t.Parallel()

	client, err := CreateHTTPClient(context.Background(), &Input{
		Timeout:    "45s",
		RetryCount: 2,
	})

	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, 45*time.Second, client.Timeout())
	assert.Equal(t, 2, client.RetryCount())

	require.NoError(t, DestroyHTTPClient(client))
}

func TestCreateHTTPClient_InvalidTimeout(t *testing.T) {
	t.Parallel()

	_, err := CreateHTTPClient(context.Background(), &Input{Timeout: "soon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timeout")
}

func TestCreateHTTPClient_RequestsWork(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	}))
	defer server.Close()

	client, err := CreateHTTPClient(context.Background(), &Input{
		Timeout: "10s",
		BaseURL: server.URL,
	})
	require.NoError(t, err)
	defer DestroyHTTPClient(client)

	resp, err := client.R().Get("/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "pong", resp.String())
}
