package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/petterhj/yt-dvr/config"
	"github.com/petterhj/yt-dvr/services"
	"github.com/petterhj/yt-dvr/sources"
	"github.com/petterhj/yt-dvr/store"
	"github.com/petterhj/yt-dvr/websocket"
)

// TestHelper wires a full server against an in-memory store and a fake
// source.
type TestHelper struct {
	Server *httptest.Server
	Source *sources.FakeSource
	Runner *services.Runner
}

// NewTestHelper builds the test environment with routes matching the
// production router.
func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := log.New(io.Discard)

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	src := sources.NewFakeSource("demo")
	src.AddItem("1", "First video")
	src.AddItem("2", "Second video")

	registry := sources.NewRegistry(map[string]sources.Source{"demo": src})

	hub := websocket.NewHub(logger)
	go hub.Run()

	jobs := services.NewJobs(st, logger)
	runner := services.NewRunner(jobs, registry, hub, logger, 1)
	runner.Start()

	recorder := services.NewRecorder(st, registry, jobs, runner, hub, logger)
	cfg := &config.Config{DataPath: t.TempDir(), MaxConcurrentJobs: 1}

	itemHandler := NewItemHandler(recorder)
	jobHandler := NewJobHandler(recorder)
	stateHandler := NewStateHandler(recorder, registry, cfg)
	socketHandler := NewSocketHandler(hub, logger)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", stateHandler.HealthCheck)
	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/state", stateHandler.State)

		apiGroup.POST("/items", itemHandler.AddItem)
		apiGroup.GET("/items", itemHandler.ListItems)
		apiGroup.GET("/items/:source", itemHandler.ListItems)
		apiGroup.GET("/items/:source/:item_id", itemHandler.GetItem)
		apiGroup.DELETE("/items/:source/:item_id", itemHandler.DeleteItem)
		apiGroup.GET("/items/:source/:item_id/retry", itemHandler.RetryItem)

		apiGroup.GET("/sources/:source/catalog", itemHandler.Catalog)

		apiGroup.GET("/jobs", jobHandler.ListJobs)
		apiGroup.GET("/jobs/start", jobHandler.StartJobs)

		apiGroup.GET("/ws", socketHandler.Connect)
	}

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestHelper{Server: server, Source: src, Runner: runner}
}

// Drain stops the runner and waits for in-flight downloads to finish.
func (h *TestHelper) Drain() {
	h.Runner.Close()
	h.Runner.Wait()
}

// PostJSON makes a POST request and optionally decodes the response.
func (h *TestHelper) PostJSON(t *testing.T, path string, body any, response any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(http.MethodPost, h.Server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	return h.decode(t, resp, response)
}

// Get makes a GET request and optionally decodes the response.
func (h *TestHelper) Get(t *testing.T, path string, response any) *http.Response {
	t.Helper()

	resp, err := http.Get(h.Server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	return h.decode(t, resp, response)
}

// Delete makes a DELETE request.
func (h *TestHelper) Delete(t *testing.T, path string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, h.Server.URL+path, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

// ConnectWebSocket dials the progress stream.
func (h *TestHelper) ConnectWebSocket(t *testing.T) *gorilla.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(h.Server.URL, "http") + "/api/ws"
	conn, _, err := gorilla.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (h *TestHelper) decode(t *testing.T, resp *http.Response, response any) *http.Response {
	t.Helper()
	if response != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(response))
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return resp
}
