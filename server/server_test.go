package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiterhq/arbiter/config"
	"github.com/arbiterhq/arbiter/governor"
	"github.com/arbiterhq/arbiter/perf"
	"github.com/arbiterhq/arbiter/pipeline"
	"github.com/arbiterhq/arbiter/recommend"
	"github.com/arbiterhq/arbiter/tracker"
	"github.com/arbiterhq/arbiter/validation"
)

type staticGenerator struct {
	candidates []recommend.Candidate
}

func (g *staticGenerator) Name() string { return "static" }

func (g *staticGenerator) Generate(ctx context.Context, userID, contextType string, metadata map[string]string) ([]recommend.Candidate, error) {
	out := make([]recommend.Candidate, len(g.candidates))
	copy(out, g.candidates)
	return out, nil
}

func (g *staticGenerator) Filter(ctx context.Context, candidates []recommend.Candidate, userID, contextType string, metadata map[string]string) ([]recommend.Candidate, error) {
	return candidates, nil
}

func newTestServer(t *testing.T, slots int64) (*Server, *tracker.Tracker) {
	t.Helper()

	reg := prometheus.NewRegistry()
	gov := governor.New(governor.Config{
		Limits: map[governor.Resource]int64{governor.ResourceSlots: slots},
	}, governor.NewMetrics(reg), nil)
	track := tracker.New(nil, nil)
	perfTracker := perf.New(perf.NewMetrics(reg), nil)

	generators := []recommend.Generator{&staticGenerator{candidates: []recommend.Candidate{
		{ItemID: "item-1", SourceStrategy: "static", SimilarityScore: 0.9},
	}}}
	ranker := recommend.NewRanker(recommend.DefaultRankerConfig(),
		recommend.ProviderFunc(func(ctx context.Context, features map[string]float64, context map[string]string) (float64, error) {
			return features["similarity"], nil
		}), nil, nil)
	validator := validation.NewValidator(nil, nil, 0.8, nil)

	coordinator := pipeline.New(pipeline.Config{
		Workers:    2,
		QueueDepth: 8,
		RunTimeout: 5 * time.Second,
	}, gov, generators, ranker, validator, track, perfTracker, nil, nil, nil)
	coordinator.Start()
	t.Cleanup(coordinator.Stop)

	srv := New(config.ServerConfig{Host: "127.0.0.1", Port: 0}, gov, coordinator, track, perfTracker, reg, nil)
	return srv, track
}

func awaitHistory(t *testing.T, track *tracker.Tracker, pipelineID string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(track.GetHistory(pipelineID)) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s never completed", pipelineID)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 4)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestSubmitRunAccepted(t *testing.T) {
	srv, track := newTestServer(t, 4)

	body := `{"userId":"u1","contextType":"browse"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(body))
	req.Header.Set(echoContentType, echoJSONType)
	srv.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp SubmitRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.PipelineID)

	awaitHistory(t, track, resp.PipelineID)

	histRec := httptest.NewRecorder()
	histReq := httptest.NewRequest(http.MethodGet, "/v1/runs/"+resp.PipelineID+"/history", nil)
	srv.Echo().ServeHTTP(histRec, histReq)
	assert.Equal(t, http.StatusOK, histRec.Code)
	assert.Contains(t, histRec.Body.String(), "success")
}

func TestSubmitRunRequiresUserID(t *testing.T) {
	srv, _ := newTestServer(t, 4)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(`{}`))
	req.Header.Set(echoContentType, echoJSONType)
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRunDeniedMapsTo429(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	body := `{"userId":"u1"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(body))
	req.Header.Set(echoContentType, echoJSONType)
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "denied")
}

func TestUnknownRunReturns404(t *testing.T) {
	srv, _ := newTestServer(t, 4)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/runs/ghost", nil)
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPerformanceEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 4)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/performance", nil)
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "total_pipelines")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 4)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "governor_resource_limit")
}

func TestEventStreamDeliversRunCompletion(t *testing.T) {
	srv, _ := newTestServer(t, 4)
	srv.events.start(srv.coordinator.Events())
	t.Cleanup(srv.events.stop)

	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// give the handler a moment to register the subscription
	time.Sleep(50 * time.Millisecond)

	pipelineID, err := srv.coordinator.SubmitRun(context.Background(), pipeline.RunContext{
		UserID:      "u1",
		ContextType: "browse",
	})
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event StreamEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "run", event.Kind)
	require.NotNil(t, event.Run)
	assert.Equal(t, pipelineID, event.Run.PipelineID)
	assert.Equal(t, "success", event.Run.Status)
}

func TestEventStreamDeliversPressureSignals(t *testing.T) {
	srv, _ := newTestServer(t, 4)
	srv.events.startPressure(srv.governor.Pressure())
	t.Cleanup(srv.events.stop)

	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// give the handler a moment to register the subscription
	time.Sleep(50 * time.Millisecond)

	alloc, err := srv.governor.TryAcquire(map[governor.Resource]int64{governor.ResourceSlots: 4})
	require.NoError(t, err)
	t.Cleanup(func() { srv.governor.Release(alloc) })

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event StreamEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "pressure", event.Kind)
	require.NotNil(t, event.Pressure)
	assert.Equal(t, governor.ResourceSlots, event.Pressure.Resource)
	assert.InDelta(t, 1.0, event.Pressure.Ratio, 1e-9)
}

const (
	echoContentType = "Content-Type"
	echoJSONType    = "application/json"
)
