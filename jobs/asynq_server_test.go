package jobs

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stocklane/stocklane/internal/platform/httpx"
)

func TestHealthWithoutInspector(t *testing.T) {
	h := NewHandler(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	h.health(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, QueueDefault, body.Queue)
	require.Zero(t, body.Pending)
}

func TestQueueHealthEscapesName(t *testing.T) {
	// Queue names pass through the JSON encoder, so reserved characters
	// cannot break the response body.
	rec := httptest.NewRecorder()
	httpx.JSON(rec, http.StatusOK, queueHealth{Queue: `critical-"a"`, Pending: 3})

	var decoded queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	require.Equal(t, `critical-"a"`, decoded.Queue)
	require.Equal(t, 3, decoded.Pending)
}
