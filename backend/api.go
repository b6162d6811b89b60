package main

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/mediguard/mediguard/backend/alerting"
	"github.com/mediguard/mediguard/backend/catalog"
	"github.com/mediguard/mediguard/backend/observability"
	"github.com/mediguard/mediguard/backend/scoring"
	"github.com/mediguard/mediguard/backend/simulator"
	"github.com/mediguard/mediguard/backend/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// API is the control surface over the simulation engine.
type API struct {
	catalog    *catalog.Catalog
	scorer     scoring.Scorer
	supervisor *simulator.Supervisor
	evaluator  *alerting.Evaluator
	alerts     store.AlertStore
	hub        *Hub
	refDate    time.Time

	// Storm protection, same shape as per-endpoint limits elsewhere.
	predictLimiter *rate.Limiter
	streamLimiter  *rate.Limiter
}

// NewAPI wires the handlers.
func NewAPI(c *catalog.Catalog, sc scoring.Scorer, sup *simulator.Supervisor, ev *alerting.Evaluator, alerts store.AlertStore, hub *Hub, refDate time.Time) *API {
	return &API{
		catalog:    c,
		scorer:     sc,
		supervisor: sup,
		evaluator:  ev,
		alerts:     alerts,
		hub:        hub,
		refDate:    refDate,
		// Allow 20 predictions/sec, burst 40.
		predictLimiter: rate.NewLimiter(rate.Limit(20), 40),
		// Allow 2 stream starts/sec, burst 5.
		streamLimiter: rate.NewLimiter(rate.Limit(2), 5),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeRateLimited responds 429 with a jittered Retry-After.
func writeRateLimited(w http.ResponseWriter, endpoint string) {
	observability.APIRateLimited.WithLabelValues(endpoint).Inc()
	retryAfter := 1000 + rand.Intn(1000)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter/1000+1))
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, retry later")
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// -- Prediction --

type predictRequest struct {
	Manufacturer string `json:"manufacturer"`
	ExpiryDate   string `json:"expiry_date"`
	Batch        string `json:"batch"`
}

type predictResponse struct {
	Manufacturer      string  `json:"manufacturer"`
	Batch             string  `json:"batch,omitempty"`
	ExpiryDate        string  `json:"expiry_date,omitempty"`
	DaysToExpiry      *int    `json:"days_to_expiry"`
	FakeScore         float64 `json:"fake_score"`
	PredictedFake     bool    `json:"predicted_fake"`
	ManufacturerPhone string  `json:"manufacturer_phone,omitempty"`
}

// handlePredict runs one synchronous prediction and feeds it through the
// evaluator so an alert fires immediately when the rules match.
func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if !a.predictLimiter.Allow() {
		writeRateLimited(w, "predict")
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	manufacturer := req.Manufacturer
	if manufacturer == "" {
		manufacturer = "Unknown"
	}

	var expiry *time.Time
	if req.ExpiryDate != "" {
		if t, err := time.Parse("2006-01-02", req.ExpiryDate); err == nil {
			expiry = &t
		}
		// Unparsable dates are treated as unknown expiry, not an error.
	}

	score := a.scorer.Score(expiry, manufacturer)
	ev := simulator.TestEvent{
		Status:        simulator.StatusOK,
		Manufacturer:  manufacturer,
		Batch:         req.Batch,
		Expiry:        expiry,
		FakeScore:     math.Round(score*10000) / 10000,
		PredictedFake: scoring.PredictedFake(score),
		Timestamp:     time.Now().UTC(),
	}
	if days, known := scoring.DaysTo(a.refDate, expiry); known {
		ev.DaysToExpiry = &days
	}

	a.evaluator.HandleEvent(r.Context(), ev)

	writeJSON(w, http.StatusOK, predictResponse{
		Manufacturer:      manufacturer,
		Batch:             req.Batch,
		ExpiryDate:        req.ExpiryDate,
		DaysToExpiry:      ev.DaysToExpiry,
		FakeScore:         ev.FakeScore,
		PredictedFake:     ev.PredictedFake,
		ManufacturerPhone: a.catalog.PhoneFor(manufacturer),
	})
}

// -- Streams --

type startStreamRequest struct {
	Seconds   float64 `json:"seconds"`
	Interval  float64 `json:"interval"`
	MaxEvents int     `json:"max_events"`
	Indices   []int   `json:"indices"`
}

func (a *API) handleStreams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{"streams": a.supervisor.Active()})
	case http.MethodPost:
		a.handleStartStream(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (a *API) handleStartStream(w http.ResponseWriter, r *http.Request) {
	if !a.streamLimiter.Allow() {
		writeRateLimited(w, "streams")
		return
	}

	req := startStreamRequest{Seconds: 30, Interval: 1.0}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	// Request-level bounds; the caller is told instead of being clamped.
	if req.Seconds < 5 || req.Seconds > 600 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("seconds must be between 5 and 600, got %g", req.Seconds))
		return
	}
	if req.Interval < 0.2 || req.Interval > 10 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("interval must be between 0.2 and 10 seconds, got %g", req.Interval))
		return
	}

	opts := simulator.StreamOptions{
		Duration:  time.Duration(req.Seconds * float64(time.Second)),
		Interval:  time.Duration(req.Interval * float64(time.Second)),
		MaxEvents: req.MaxEvents,
		Indices:   req.Indices,
	}

	id, err := a.supervisor.Start(opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stream_id": id,
		"status":    "started",
		"seconds":   req.Seconds,
		"interval":  req.Interval,
	})
}

func (a *API) handleStreamByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/streams/")
	if id == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodDelete {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if !a.supervisor.Stop(id) {
		writeError(w, http.StatusNotFound, "unknown or already stopped stream: "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"stream_id": id, "status": "stopped"})
}

// -- Alerts --

func limitParam(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func (a *API) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := a.alerts.ListRecent(r.Context(), limitParam(r, 100))
	if err != nil {
		log.Printf("api: failed to list alerts: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load alerts")
		return
	}
	if alerts == nil {
		alerts = []*store.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// highRiskEntry is the simplified display shape the dashboard renders.
type highRiskEntry struct {
	ID                string    `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	Name              string    `json:"name"`
	Batch             string    `json:"batch"`
	Quality           int       `json:"quality"`
	Risk              string    `json:"risk"`
	Supplier          string    `json:"supplier"`
	ManufacturerPhone string    `json:"manufacturer_phone,omitempty"`
	Message           string    `json:"message"`
}

func toHighRisk(a *store.Alert) highRiskEntry {
	quality := int(math.Round((1.0 - a.Event.FakeScore) * 100))
	if quality < 0 {
		quality = 0
	} else if quality > 100 {
		quality = 100
	}

	risk := "medium"
	if a.Level == store.LevelCritical {
		risk = "high"
	}

	name := a.Manufacturer
	if name == "" {
		name = "Unknown"
	}
	batch := a.Event.Batch
	if batch == "" {
		batch = "N/A"
	}

	return highRiskEntry{
		ID:                a.ID,
		Timestamp:         a.Timestamp,
		Name:              name,
		Batch:             batch,
		Quality:           quality,
		Risk:              risk,
		Supplier:          a.Manufacturer,
		ManufacturerPhone: a.ManufacturerPhone,
		Message:           a.Message,
	}
}

func (a *API) handleHighRisk(w http.ResponseWriter, r *http.Request) {
	alerts, err := a.alerts.ListRecent(r.Context(), limitParam(r, 20))
	if err != nil {
		log.Printf("api: failed to list alerts: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load alerts")
		return
	}

	entries := make([]highRiskEntry, 0, len(alerts))
	for _, alert := range alerts {
		entries = append(entries, toHighRisk(alert))
	}
	writeJSON(w, http.StatusOK, entries)
}

// -- Catalog --

func (a *API) handleSchema(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.catalog.Schema())
}

// -- Observers --

func (a *API) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		return
	}

	client := NewClient(a.hub, conn)
	a.hub.Register(client)
	go client.writePump()
	go client.readPump()
}
