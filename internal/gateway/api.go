// ABOUTME: HTTP handlers for the watch link and the configuration page
// ABOUTME: Chat replies and status updates are streamed as Server-Sent Events

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/2389/spark-gateway/internal/auth"
	"github.com/2389/spark-gateway/internal/store"
	"github.com/2389/spark-gateway/internal/watch"
)

// maxChatBodyBytes bounds a chat request body. The watch sends at most ten turns.
const maxChatBodyBytes = 256 << 10

// ChatRequest is the body of POST /api/watch/chat.
type ChatRequest struct {
	RequestChat *string `json:"REQUEST_CHAT"`
}

// ExchangeResponse is one audit row in GET /api/exchanges.
type ExchangeResponse struct {
	ID           string    `json:"id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model,omitempty"`
	MessageCount int       `json:"message_count"`
	Outcome      string    `json:"outcome"`
	StatusCode   int       `json:"status_code,omitempty"`
	ReplyChars   int       `json:"reply_chars"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Total         int64            `json:"total"`
	ByOutcome     map[string]int64 `json:"by_outcome"`
	AvgDurationMS float64          `json:"avg_duration_ms"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Subscribers   int              `json:"subscribers"`
}

func (g *Gateway) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/watch/chat", g.handleWatchChat)
	mux.HandleFunc("/api/watch/status", g.handleWatchStatus)
	mux.HandleFunc("/api/watch/events", g.handleWatchEvents)
	mux.HandleFunc("/api/settings", g.handleSettings)
	mux.HandleFunc("/api/exchanges", g.handleExchanges)
	mux.HandleFunc("/api/stats", g.handleStats)
}

// sseSender writes watch events to an SSE response.
type sseSender struct {
	g       *Gateway
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSender) Send(_ context.Context, ev watch.Event) error {
	if err := s.g.writeSSEEvent(s.w, ev.Kind.String(), ev.Message()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// handleWatchChat answers one chat request with RESPONSE_TEXT then RESPONSE_END.
func (g *Gateway) handleWatchChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.RequestChat == nil {
		g.sendJSONError(w, http.StatusBadRequest, watch.KeyRequestChat+" is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sender := &sseSender{g: g, w: w, flusher: flusher}
	if err := g.orchestrator.Handle(r.Context(), *req.RequestChat, sender); err != nil {
		g.logger.Warn("reply not delivered", "subject", auth.SubjectFromContext(r.Context()), "error", err)
	}
}

// handleWatchStatus returns the current readiness message.
func (g *Gateway) handleWatchStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	g.writeJSON(w, http.StatusOK, g.reporter.Status(r.Context()).Message())
}

// handleWatchEvents streams readiness messages to a connected watch link.
// The current status is sent first, then every published update.
func (g *Gateway) handleWatchEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	updates, subID := g.hub.Subscribe(ctx)

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	status := g.reporter.Status(ctx)
	g.logger.Info("watch link ready", "sub_id", subID, "subject", auth.SubjectFromContext(ctx), "ready", status.Ready, "provider_name", status.ProviderName)
	if err := g.writeSSEEvent(w, "status", status.Message()); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case status, ok := <-updates:
			if !ok {
				return
			}
			if err := g.writeSSEEvent(w, "status", status.Message()); err != nil {
				g.logger.Debug("watch link gone", "sub_id", subID, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// handleSettings reads or replaces the persisted settings.
func (g *Gateway) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		persisted, err := g.store.GetSettings(r.Context())
		if err != nil {
			g.logger.Error("failed to read settings", "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "failed to read settings")
			return
		}
		g.writeJSON(w, http.StatusOK, persisted)

	case http.MethodPost:
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		status, err := g.reporter.ApplySettings(r.Context(), settingsUpdate(raw))
		if err != nil {
			g.logger.Error("failed to apply settings", "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "failed to apply settings")
			return
		}
		g.logger.Info("settings updated", "subject", auth.SubjectFromContext(r.Context()), "ready", status.Ready)
		g.writeJSON(w, http.StatusOK, status.Message())

	default:
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// settingsUpdate flattens a config page payload to strings. Null values
// count as absent.
func settingsUpdate(raw map[string]any) map[string]string {
	update := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
		case string:
			update[key] = v
		case bool:
			update[key] = strconv.FormatBool(v)
		case float64:
			update[key] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			update[key] = fmt.Sprint(v)
		}
	}
	return update
}

// handleExchanges lists recent chat exchanges, newest first.
func (g *Gateway) handleExchanges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			g.sendJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	exchanges, err := g.store.ListExchanges(r.Context(), limit)
	if err != nil {
		g.logger.Error("failed to list exchanges", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to list exchanges")
		return
	}

	resp := make([]ExchangeResponse, 0, len(exchanges))
	for _, ex := range exchanges {
		resp = append(resp, ExchangeResponse{
			ID:           ex.ID,
			Provider:     ex.Provider,
			Model:        ex.Model,
			MessageCount: ex.MessageCount,
			Outcome:      string(ex.Outcome),
			StatusCode:   ex.StatusCode,
			ReplyChars:   ex.ReplyChars,
			DurationMS:   ex.DurationMS,
			CreatedAt:    ex.CreatedAt,
		})
	}
	g.writeJSON(w, http.StatusOK, resp)
}

// handleStats aggregates exchanges by outcome, optionally for one provider
// and a [since, until) time range.
func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	var filter store.ExchangeFilter
	if p := q.Get("provider"); p != "" {
		filter.Provider = &p
	}
	var err error
	if filter.Since, err = timeParam(q, "since"); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Until, err = timeParam(q, "until"); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Since != nil && filter.Until != nil && !filter.Until.After(*filter.Since) {
		g.sendJSONError(w, http.StatusBadRequest, "until must be after since")
		return
	}

	stats, err := g.store.GetExchangeStats(r.Context(), filter)
	if err != nil {
		g.logger.Error("failed to compute stats", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	byOutcome := make(map[string]int64, len(stats.ByOutcome))
	for outcome, n := range stats.ByOutcome {
		byOutcome[string(outcome)] = n
	}
	g.writeJSON(w, http.StatusOK, StatsResponse{
		Total:         stats.Total,
		ByOutcome:     byOutcome,
		AvgDurationMS: stats.AvgDurationMS,
		UptimeSeconds: int64(time.Since(g.startedAt).Seconds()),
		Subscribers:   g.hub.Count(),
	})
}

// timeParam parses an optional RFC 3339 query parameter.
func timeParam(q url.Values, name string) (*time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an RFC 3339 timestamp", name)
	}
	return &t, nil
}

// writeSSEEvent writes a single SSE event to the response writer.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data any) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, dataJSON)
	return err
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Debug("failed to write response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, map[string]string{"error": message})
}
