package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"swing-systemv1/internal/chart"
	"swing-systemv1/internal/jobs"
	"swing-systemv1/internal/measure"
	"swing-systemv1/internal/model"
	"swing-systemv1/internal/store/sqlite"
	"swing-systemv1/internal/swing"
	"swing-systemv1/internal/timeframe"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*Server, *sqlite.Store) {
	t.Helper()
	st, err := sqlite.New(sqlite.Config{DBPath: filepath.Join(t.TempDir(), "gw.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	canvas := chart.NewCanvas()
	srv := &Server{
		Store:   st,
		Manager: jobs.NewManager(context.Background(), st, nil, nil),
		Hub:     NewHub(nil),
		Measure: measure.NewEngine(measure.Config{
			SeriesID:  "candles",
			Timeframe: timeframe.H1,
		}, canvas, canvas, nil, nil),
		Swing:        swing.NewEngine(canvas),
		Canvas:       canvas,
		Timeframes:   timeframe.All(),
		Symbols:      []string{"XAUUSD"},
		Start:        time.Now(),
		PollInterval: 20 * time.Millisecond,
	}
	return srv, st
}

func seedCandles(t *testing.T, st *sqlite.Store, n int) {
	t.Helper()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, n)
	price := 2000.0
	for i := range candles {
		if i%2 == 0 {
			price += 150
		} else {
			price -= 150
		}
		candles[i] = model.Candle{
			Symbol: "XAUUSD", Timeframe: "H1",
			TS:   base.Add(time.Duration(i) * time.Hour),
			Open: price, High: price, Low: price, Close: price,
			Volume: 1,
		}
	}
	if err := st.WriteCandles(context.Background(), candles); err != nil {
		t.Fatalf("seed candles: %v", err)
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestTimeframesEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/timeframes")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var out []struct {
		Name    string `json:"name"`
		Seconds int64  `json:"seconds"`
	}
	decodeBody(t, resp, &out)
	if len(out) == 0 {
		t.Fatal("no timeframes returned")
	}
	found := false
	for _, tf := range out {
		if tf.Name == "H1" && tf.Seconds == 3600 {
			found = true
		}
	}
	if !found {
		t.Fatalf("H1/3600 missing from %+v", out)
	}
}

func TestCandlesEndpointValidatesTimeframe(t *testing.T) {
	srv, st := newTestServer(t)
	seedCandles(t, st, 10)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/candles/XAUUSD/M7")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/candles/XAUUSD/H1?limit=5")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var candles []model.Candle
	decodeBody(t, resp, &candles)
	if len(candles) != 5 {
		t.Fatalf("got %d candles, want 5", len(candles))
	}
}

func TestMeasureComputeEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/measure/compute", map[string]any{
		"point1":    map[string]any{"time": 1700000000, "price": 2000.0},
		"point2":    map[string]any{"time": 1700003600, "price": 2050.0},
		"timeframe": "H1",
	})
	var res model.MeasurementResult
	decodeBody(t, resp, &res)
	if res.PriceDiff != 50 {
		t.Fatalf("priceDiff = %v, want 50", res.PriceDiff)
	}
	if res.PercentText != "+2.50" {
		t.Fatalf("percentText = %q, want +2.50", res.PercentText)
	}
	if res.TimeDeltaText != "0天1時0分" {
		t.Fatalf("timeDeltaText = %q", res.TimeDeltaText)
	}
}

func TestMeasureClickFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	// Clicks are ignored until measure mode is on.
	resp := postJSON(t, ts.URL+"/api/measure/click", map[string]any{
		"time": 1700000000, "seriesData": map[string]float64{"candles": 2000},
	})
	var click clickResponse
	decodeBody(t, resp, &click)
	if click.Points != 0 {
		t.Fatalf("points = %d before mode on, want 0", click.Points)
	}

	resp = postJSON(t, ts.URL+"/api/measure/mode", nil)
	var mode map[string]bool
	decodeBody(t, resp, &mode)
	if !mode["active"] {
		t.Fatal("mode toggle did not activate")
	}

	resp = postJSON(t, ts.URL+"/api/measure/click", map[string]any{
		"time": 1700000000, "seriesData": map[string]float64{"candles": 2000},
	})
	decodeBody(t, resp, &click)
	if click.Points != 1 || click.Result != nil {
		t.Fatalf("after first click: %+v", click)
	}

	resp = postJSON(t, ts.URL+"/api/measure/click", map[string]any{
		"time": 1700003600, "seriesData": map[string]float64{"candles": 2050},
	})
	decodeBody(t, resp, &click)
	if click.Result == nil {
		t.Fatal("no result after second click")
	}
	if click.Result.PercentText != "+2.50" {
		t.Fatalf("percentText = %q", click.Result.PercentText)
	}

	// The two markers and the connector are on the shared overlay.
	resp, err := http.Get(ts.URL + "/api/overlay")
	if err != nil {
		t.Fatalf("GET overlay: %v", err)
	}
	var snap chart.Snapshot
	decodeBody(t, resp, &snap)
	if len(snap.Markers) != 2 || len(snap.Segments) != 1 {
		t.Fatalf("overlay markers=%d segments=%d", len(snap.Markers), len(snap.Segments))
	}
}

func TestSwingsLoadAndVisible(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/swings/load", []map[string]any{
		{"timestamp": "2024-01-10T00:00:00", "price": 2100.0, "kind": "high"},
		{"timestamp": "2024-01-01T00:00:00", "price": 2000.0, "kind": "low"},
		{"timestamp": nil, "price": 1900.0, "kind": "low"},
	})
	var load loadResponse
	decodeBody(t, resp, &load)
	if load.Loaded != 2 || load.Dropped != 1 || load.Legs != 1 {
		t.Fatalf("load = %+v", load)
	}

	resp = postJSON(t, ts.URL+"/api/swings/visible", map[string]bool{"visible": false})
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/api/overlay")
	if err != nil {
		t.Fatalf("GET overlay: %v", err)
	}
	var snap chart.Snapshot
	decodeBody(t, resp, &snap)
	if len(snap.Markers) != 0 || len(snap.Segments) != 0 {
		t.Fatalf("hidden overlay still has markers=%d segments=%d", len(snap.Markers), len(snap.Segments))
	}
}

func TestJobLifecycleOverRESTAndWS(t *testing.T) {
	srv, st := newTestServer(t)
	seedCandles(t, st, 60)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/pivot-jobs", map[string]any{
		"symbol": "XAUUSD", "timeframe": "H1", "deviation": 5.0, "depth": 2,
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	var started jobStarted
	decodeBody(t, resp, &started)
	if started.TaskID == "" {
		t.Fatal("empty task id")
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/pivot-jobs/" + started.TaskID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	terminal := ""
	for terminal == "" && time.Now().Before(deadline) {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			continue
		}
		// frames may be coalesced with newline separators
		for _, line := range bytes.Split(msg, []byte{'\n'}) {
			var frame wsFrame
			if json.Unmarshal(line, &frame) != nil {
				continue
			}
			if frame.Type == "done" || frame.Type == "failed" {
				terminal = frame.Type
				break
			}
		}
	}
	if terminal != "done" {
		t.Fatalf("terminal frame = %q, want done", terminal)
	}

	// Poll endpoint agrees.
	resp, err = http.Get(ts.URL + "/api/pivot-jobs/" + started.TaskID)
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	var status jobStatus
	decodeBody(t, resp, &status)
	if status.State != "done" {
		t.Fatalf("state = %q, want done", status.State)
	}

	// And the pivots are queryable with formatted rows.
	resp, err = http.Get(ts.URL + "/api/pivots/XAUUSD/H1")
	if err != nil {
		t.Fatalf("GET pivots: %v", err)
	}
	var pivots pivotsResponse
	decodeBody(t, resp, &pivots)
	if len(pivots.Pivots) < 2 {
		t.Fatalf("expected pivots, got %d", len(pivots.Pivots))
	}
	if len(pivots.Rows) != len(pivots.Pivots)-1 {
		t.Fatalf("rows = %d, want %d", len(pivots.Rows), len(pivots.Pivots)-1)
	}
}

func TestJobStatusUnknownTask(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/pivot-jobs/nope")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
