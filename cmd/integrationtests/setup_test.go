package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"bidio/internal/config"
	"bidio/internal/manager"
	"bidio/internal/metrics"
	"bidio/internal/server"
	"bidio/internal/store"
	"bidio/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	utils.SetOutput(io.Discard)
}

// SetupTestRouter initializes the router over an in-memory store with the
// given channels open.
func SetupTestRouter(t *testing.T, channels ...string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Store.Immutable = []string{"saleDate"}
	for _, name := range channels {
		cfg.Channels[name] = name
	}

	factory, err := store.Open(cfg.StoreFactory())
	require.NoError(t, err)
	t.Cleanup(func() { _ = factory.Close() })

	m := manager.New(cfg, factory)
	require.NoError(t, m.Run(context.Background()))
	t.Cleanup(m.Close)

	return server.SetupRouter(m, server.Options{Admin: true, Metrics: metrics.New()})
}

// ExecuteRequest executes an HTTP request and returns the response recorder.
func ExecuteRequest(t *testing.T, router *gin.Engine, method, url string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ExecuteRequestAndParse executes an HTTP request on the given router and
// returns the data of the response envelope.
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url string, body any, headers map[string]string) (any, *httptest.ResponseRecorder) {
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	case string:
		reqBody = []byte(v)
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := ExecuteRequest(t, router, method, url, reqBody, headers)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}
	return resp["data"], w
}
