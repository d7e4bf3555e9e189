package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandler(t *testing.T) {
	s := startTestServer(t)
	c := dialRaw(t, s)
	assert.Equal(t, "PONG", c.do("PING"))

	ts := httptest.NewServer(NewMetricsHandler())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `respkv_server_commands_total{command="PING"}`)
	assert.Contains(t, string(body), "respkv_server_connected_clients")
	assert.Contains(t, string(body), "go_goroutines")

	res, err = http.Get(ts.URL + "/other")
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}
