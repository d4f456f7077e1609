package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"swing-systemv1/internal/chart"
	"swing-systemv1/internal/jobs"
	"swing-systemv1/internal/measure"
	"swing-systemv1/internal/metrics"
	"swing-systemv1/internal/model"
	"swing-systemv1/internal/store/sqlite"
	"swing-systemv1/internal/swing"
	"swing-systemv1/internal/task"
	"swing-systemv1/internal/timeframe"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// Server wires the engines, stores and job manager to HTTP.
type Server struct {
	Store   *sqlite.Store
	Manager *jobs.Manager
	Hub     *Hub
	Measure *measure.Engine
	Swing   *swing.Engine
	Canvas  *chart.Canvas

	// Progress is the push source for job progress; nil means WS clients
	// fall back to polling the manager.
	Progress task.ProgressSource

	Timeframes   []timeframe.Timeframe
	Symbols      []string
	Met          *metrics.Metrics
	Start        time.Time
	PollInterval time.Duration
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// preflight answers OPTIONS requests; returns true when handled.
func preflight(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodOptions {
		return false
	}
	SetCORS(w)
	w.WriteHeader(http.StatusOK)
	return true
}

// Routes builds the HTTP mux with every REST and WS endpoint.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/timeframes", s.handleTimeframes)
	mux.HandleFunc("/api/candles/", s.handleCandles)
	mux.HandleFunc("/api/pivots/", s.handlePivots)
	mux.HandleFunc("/api/pivot-jobs", s.handleStartJob)
	mux.HandleFunc("/api/pivot-jobs/", s.handleJobStatus)
	mux.HandleFunc("/api/measure", s.handleMeasureState)
	mux.HandleFunc("/api/measure/mode", s.handleMeasureMode)
	mux.HandleFunc("/api/measure/click", s.handleMeasureClick)
	mux.HandleFunc("/api/measure/compute", s.handleMeasureCompute)
	mux.HandleFunc("/api/measure/timeframe", s.handleMeasureTimeframe)
	mux.HandleFunc("/api/overlay", s.handleOverlay)
	mux.HandleFunc("/api/swings", s.handleSwings)
	mux.HandleFunc("/api/swings/load", s.handleSwingsLoad)
	mux.HandleFunc("/api/swings/load-stored", s.handleSwingsLoadStored)
	mux.HandleFunc("/api/swings/visible", s.handleSwingsVisible)
	mux.HandleFunc("/ws/pivot-jobs/", s.handleJobStream)
	mux.HandleFunc("/healthz", s.handleHealth)

	return mux
}

func (s *Server) handleTimeframes(w http.ResponseWriter, r *http.Request) {
	type tfInfo struct {
		Name    string `json:"name"`
		Seconds int64  `json:"seconds"`
	}
	tfs := s.Timeframes
	if len(tfs) == 0 {
		tfs = timeframe.All()
	}
	out := make([]tfInfo, len(tfs))
	for i, tf := range tfs {
		out[i] = tfInfo{Name: string(tf), Seconds: tf.Seconds()}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCandles serves GET /api/candles/{symbol}/{tf}?limit=N.
func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	symbol, tf, ok := splitSymbolTF(r.URL.Path, "/api/candles/")
	if !ok {
		writeError(w, http.StatusBadRequest, "want /api/candles/{symbol}/{timeframe}")
		return
	}
	if _, err := timeframe.Parse(tf); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 500
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 5000 {
			limit = n
		}
	}

	candles, err := s.Store.Candles(r.Context(), symbol, tf, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.Met != nil {
		s.Met.CandlesServed.Add(float64(len(candles)))
	}
	writeJSON(w, http.StatusOK, candles)
}

// handlePivots serves GET /api/pivots/{symbol}/{tf}?algorithm=zigzag.
func (s *Server) handlePivots(w http.ResponseWriter, r *http.Request) {
	symbol, tf, ok := splitSymbolTF(r.URL.Path, "/api/pivots/")
	if !ok {
		writeError(w, http.StatusBadRequest, "want /api/pivots/{symbol}/{timeframe}")
		return
	}
	algorithm := r.URL.Query().Get("algorithm")
	if algorithm == "" {
		algorithm = "zigzag"
	}

	pivots, err := s.Store.SwingPoints(r.Context(), symbol, tf, algorithm)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	legs := swing.BuildLegs(pivots)
	writeJSON(w, http.StatusOK, pivotsResponse{
		Symbol:    symbol,
		Timeframe: tf,
		Algorithm: algorithm,
		Pivots:    pivots,
		Rows:      swing.ToListRows(legs),
	})
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req jobs.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	taskID, err := s.Manager.Start(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, jobStarted{TaskID: taskID})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimPrefix(r.URL.Path, "/api/pivot-jobs/")
	if taskID == "" || strings.Contains(taskID, "/") {
		writeError(w, http.StatusBadRequest, "want /api/pivot-jobs/{id}")
		return
	}
	ev, ok := s.Manager.Status(taskID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown task "+taskID)
		return
	}
	writeJSON(w, http.StatusOK, statusOf(ev))
}

func (s *Server) handleMeasureState(w http.ResponseWriter, r *http.Request) {
	st := measureState{
		Active: s.Measure.Active(),
		Points: s.Measure.PointCount(),
	}
	if res, ok := s.Measure.ComputeResult(); ok {
		st.Result = &res
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleMeasureMode(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	active := s.Measure.ToggleMode()
	log.Printf("[gateway] measure mode toggled: active=%v", active)
	writeJSON(w, http.StatusOK, map[string]bool{"active": active})
}

func (s *Server) handleMeasureClick(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	// Absent logical index and pixel y are negative, which JSON decoding
	// cannot default to; seed the sentinels before decoding.
	sig := model.ClickSignal{Logical: -1, Y: -1}
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	resp := clickResponse{Resolved: true}
	if err := s.Measure.HandleClick(r.Context(), sig); err != nil {
		// an unresolvable click is ignored, not failed
		resp.Resolved = false
		if s.Met != nil {
			s.Met.ResolutionFailures.Inc()
		}
	}
	resp.Points = s.Measure.PointCount()
	if res, ok := s.Measure.ComputeResult(); ok {
		resp.Result = &res
		if s.Met != nil {
			s.Met.Measurements.Inc()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMeasureCompute(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req computeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	tf, err := timeframe.Parse(req.Timeframe)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := measure.Compute(req.Point1.pricePoint(), req.Point2.pricePoint(), tf)
	if s.Met != nil {
		s.Met.Measurements.Inc()
	}
	writeJSON(w, http.StatusOK, res)
}

// handleMeasureTimeframe switches the interval the engine uses to turn
// logical-index deltas into durations.
func (s *Server) handleMeasureTimeframe(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req struct {
		Timeframe string `json:"timeframe"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	tf, err := timeframe.Parse(req.Timeframe)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.Measure.SetTimeframe(tf)
	writeJSON(w, http.StatusOK, map[string]string{"timeframe": string(tf)})
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Canvas.Snapshot())
}

func (s *Server) handleSwings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"visible": s.Swing.Visible(),
		"pivots":  s.Swing.Pivots(),
		"rows":    swing.ToListRows(s.Swing.Legs()),
	})
}

// handleSwingsLoad accepts a raw pivot payload, cleans it and redraws.
func (s *Server) handleSwingsLoad(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var raw []model.RawPivot
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	dropped := s.Swing.LoadPivots(raw)
	s.Swing.RenderOverlay()
	if s.Met != nil && dropped > 0 {
		s.Met.MalformedPivotsDropped.Add(float64(dropped))
	}
	writeJSON(w, http.StatusOK, loadResponse{
		Loaded:  len(s.Swing.Pivots()),
		Dropped: dropped,
		Legs:    len(s.Swing.Legs()),
	})
}

// handleSwingsLoadStored pulls stored pivots into the overlay engine.
func (s *Server) handleSwingsLoadStored(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	symbol := r.URL.Query().Get("symbol")
	tf := r.URL.Query().Get("timeframe")
	algorithm := r.URL.Query().Get("algorithm")
	if algorithm == "" {
		algorithm = "zigzag"
	}
	if symbol == "" || tf == "" {
		writeError(w, http.StatusBadRequest, "symbol and timeframe are required")
		return
	}

	pivots, err := s.Store.SwingPoints(r.Context(), symbol, tf, algorithm)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	raw := make([]model.RawPivot, len(pivots))
	for i, p := range pivots {
		price := p.Price
		raw[i] = model.RawPivot{
			Timestamp: strconv.FormatInt(p.Time, 10),
			Price:     &price,
			Kind:      p.Kind.String(),
		}
	}
	dropped := s.Swing.LoadPivots(raw)
	s.Swing.RenderOverlay()
	writeJSON(w, http.StatusOK, loadResponse{
		Loaded:  len(s.Swing.Pivots()),
		Dropped: dropped,
		Legs:    len(s.Swing.Legs()),
	})
}

func (s *Server) handleSwingsVisible(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req struct {
		Visible bool `json:"visible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	s.Swing.SetVisible(req.Visible)
	writeJSON(w, http.StatusOK, map[string]bool{"visible": req.Visible})
}

// handleJobStream upgrades GET /ws/pivot-jobs/{id} and forwards progress
// events until the task ends or the client drops.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimPrefix(r.URL.Path, "/ws/pivot-jobs/")
	if taskID == "" || strings.Contains(taskID, "/") {
		writeError(w, http.StatusBadRequest, "want /ws/pivot-jobs/{id}")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}
	client := s.Hub.Attach(conn, taskID)

	watcher := task.NewWatcher(s.Progress, s.pollSource(), task.Callbacks{
		OnProgress: func(percent float64, logs []string) {
			client.Send(wsFrame{Type: "progress", TaskID: taskID, Percent: percent, LogLines: logs})
		},
		OnDone: func() {
			client.Send(wsFrame{Type: "done", TaskID: taskID, Percent: 100})
		},
		OnFailed: func(reason string) {
			client.Send(wsFrame{Type: "failed", TaskID: taskID, Reason: reason})
		},
	})
	if err := watcher.Watch(context.Background(), taskID); err != nil {
		// queue the failure frame, let the write pump flush it, then
		// close the channel so the pump sends the close message
		client.Send(wsFrame{Type: "failed", TaskID: taskID, Reason: err.Error()})
		client.start()
		s.Hub.RemoveClient(client)
		return
	}
	client.stopWatch = watcher.Stop
	client.start()
}

func (s *Server) pollSource() task.ProgressSource {
	return task.NewPollSource(func(ctx context.Context, taskID string) (task.ProgressEvent, error) {
		ev, ok := s.Manager.Status(taskID)
		if !ok {
			return task.ProgressEvent{}, fmt.Errorf("unknown task %s", taskID)
		}
		return ev, nil
	}, s.PollInterval)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"ws_clients": s.Hub.ClientCount(),
		"uptime_sec": int64(time.Since(s.Start).Seconds()),
		"ts":         time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// splitSymbolTF parses "/api/candles/XAUUSD/H1" style paths.
func splitSymbolTF(path, prefix string) (symbol, tf string, ok bool) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
