package api

import (
	"encoding/json"
	"net/http"

	"github.com/LeventeLantos/account-provisioner/internal/scheduler"
	"github.com/LeventeLantos/account-provisioner/internal/worker"
)

type RunStatus interface {
	LastStatus() (worker.Status, bool)
}

type Handler struct {
	sched  *scheduler.Scheduler
	status RunStatus
}

func NewHandler(s *scheduler.Scheduler, st RunStatus) *Handler {
	return &Handler{sched: s, status: st}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) RunStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"running":  h.sched.IsRunning(),
		"inFlight": h.sched.InFlight(),
	}
	if st, ok := h.status.LastStatus(); ok {
		resp["last"] = st
	}
	writeJSON(w, http.StatusOK, resp)
}

// TriggerRun starts a manual run. A run already in flight wins; the request
// is dropped with 409.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if !h.sched.Trigger(scheduler.ReasonManual) {
		writeJSON(w, http.StatusConflict, map[string]any{"started": false, "reason": "run in flight"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"started": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
