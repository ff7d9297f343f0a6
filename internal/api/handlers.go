package api

import (
	"context"
	"net/http"
	"sort"
	"strconv"

	"github.com/gsmoverlay/input-server/internal/audit"
	"github.com/gsmoverlay/input-server/internal/worker"
)

// handleHealth reports liveness plus worker, session and device counts.
// Each configured sink is checked; a failing sink makes the status
// "degraded" but the relay itself keeps serving, so the code stays 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := s.runChecks(r.Context())
	for _, result := range checks {
		if result != "ok" {
			status = "degraded"
		}
	}

	body := map[string]any{
		"status":   status,
		"version":  s.version,
		"worker":   s.workerStats().State,
		"sessions": s.sessions.Size(),
		"devices":  s.registry.Len(),
		"checks":   checks,
	}
	if s.mirror != nil {
		body["mirror"] = s.mirror.Stats()
	}
	writeJSON(w, http.StatusOK, body)
}

// runChecks returns "ok" or the error text for each sink.
func (s *Server) runChecks(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	results := make(map[string]string, len(s.checks))
	for name, checker := range s.checks {
		if err := checker.HealthCheck(ctx); err != nil {
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	return results
}

// deviceView is the REST shape of one registry entry.
type deviceView struct {
	ID        string             `json:"id"`
	Label     string             `json:"label"`
	Connected bool               `json:"connected"`
	Buttons   map[int]bool       `json:"buttons"`
	Axes      map[string]float64 `json:"axes"`
}

// handleState returns the registry snapshot in registration order.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.registry.SnapshotContext(r.Context())
	if err != nil {
		writeUnavailable(w, "registry busy")
		return
	}
	devices := make([]deviceView, 0, len(snap))
	for _, d := range snap {
		devices = append(devices, deviceView{
			ID:        string(d.ID),
			Label:     d.Label,
			Connected: d.Connected,
			Buttons:   d.Buttons,
			Axes:      d.Axes,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleSessions lists connected subscribers, oldest first.
func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	infos := make([]SessionInfo, 0, s.sessions.Size())
	s.sessions.Range(func(_ string, session *Session) bool {
		infos = append(infos, session.Info())
		return true
	})
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": infos,
		"count":    len(infos),
	})
}

// handleWorker returns the worker bridge counters.
func (s *Server) handleWorker(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.workerStats())
}

func (s *Server) workerStats() worker.Stats {
	if s.worker == nil {
		return worker.Offline{}.Stats()
	}
	return s.worker.Stats()
}

// handleListAudit returns paginated audit entries.
//
// Query parameters:
//   - action: session_open, session_close, worker_spawn, worker_failure
//   - entity_type: session or worker
//   - entity_id: a session ID
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeNotFound(w, "audit trail not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	for key, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, key+" must be an integer")
			return
		}
		*dst = n
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
