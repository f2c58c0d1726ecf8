// Package httpapi exposes a proto.FirmamentSchedulerServer over HTTP using
// chi for routing. It is a thin adapter: every handler decodes a request
// body (if any), calls straight through to the scheduler server, and
// encodes the reply as JSON. No scheduling logic lives here.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang/glog"

	"github.com/flowsched/flowsched/pkg/proto"
)

// Handler adapts a FirmamentSchedulerServer to net/http.
type Handler struct {
	server proto.FirmamentSchedulerServer
	router *chi.Mux
}

func NewHandler(server proto.FirmamentSchedulerServer) *Handler {
	h := &Handler{server: server}
	h.router = chi.NewRouter()
	h.router.Use(middleware.Recoverer)
	h.mount()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) mount() {
	h.router.Post("/schedule", h.schedule)

	h.router.Route("/tasks", func(r chi.Router) {
		r.Post("/", h.taskSubmitted)
		r.Route("/{taskID}", func(r chi.Router) {
			r.Put("/", h.taskUpdated)
			r.Delete("/", h.taskRemoved)
			r.Post("/completed", h.taskCompleted)
			r.Post("/failed", h.taskFailed)
			r.Post("/stats", h.addTaskStats)
		})
	})

	h.router.Route("/nodes", func(r chi.Router) {
		r.Post("/", h.nodeAdded)
		r.Route("/{nodeID}", func(r chi.Router) {
			r.Put("/", h.nodeUpdated)
			r.Delete("/", h.nodeRemoved)
			r.Post("/failed", h.nodeFailed)
			r.Post("/stats", h.addNodeStats)
		})
	})
}

// NewServer wraps a Handler in an http.Server configured with the
// conservative timeouts a control-plane API should run with.
func NewServer(addr string, server proto.FirmamentSchedulerServer) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewHandler(server),
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("httpapi: encoding response: %v", err)
	}
}

func writeErr(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func pathTaskUID(r *http.Request) (*proto.TaskUID, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "taskID"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &proto.TaskUID{TaskUid: id}, nil
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	resp, err := h.server.Schedule(r.Context(), &proto.ScheduleRequest{})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) taskSubmitted(w http.ResponseWriter, r *http.Request) {
	var desc proto.TaskDescription
	if err := json.NewDecoder(r.Body).Decode(&desc); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	resp, err := h.server.TaskSubmitted(r.Context(), &desc)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) taskUpdated(w http.ResponseWriter, r *http.Request) {
	var desc proto.TaskDescription
	if err := json.NewDecoder(r.Body).Decode(&desc); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	resp, err := h.server.TaskUpdated(r.Context(), &desc)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) taskRemoved(w http.ResponseWriter, r *http.Request) {
	uid, err := pathTaskUID(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	resp, err := h.server.TaskRemoved(r.Context(), uid)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) taskCompleted(w http.ResponseWriter, r *http.Request) {
	uid, err := pathTaskUID(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	resp, err := h.server.TaskCompleted(r.Context(), uid)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) taskFailed(w http.ResponseWriter, r *http.Request) {
	uid, err := pathTaskUID(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	resp, err := h.server.TaskFailed(r.Context(), uid)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) addTaskStats(w http.ResponseWriter, r *http.Request) {
	var stats proto.TaskStats
	if err := json.NewDecoder(r.Body).Decode(&stats); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "taskID"), 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	stats.TaskId = id
	resp, err := h.server.AddTaskStats(r.Context(), &stats)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) nodeAdded(w http.ResponseWriter, r *http.Request) {
	var rtnd proto.ResourceTopologyNodeDescriptor
	if err := json.NewDecoder(r.Body).Decode(&rtnd); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	resp, err := h.server.NodeAdded(r.Context(), &rtnd)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) nodeUpdated(w http.ResponseWriter, r *http.Request) {
	var rtnd proto.ResourceTopologyNodeDescriptor
	if err := json.NewDecoder(r.Body).Decode(&rtnd); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	resp, err := h.server.NodeUpdated(r.Context(), &rtnd)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) nodeRemoved(w http.ResponseWriter, r *http.Request) {
	uid := &proto.ResourceUID{ResourceUid: chi.URLParam(r, "nodeID")}
	resp, err := h.server.NodeRemoved(r.Context(), uid)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) nodeFailed(w http.ResponseWriter, r *http.Request) {
	uid := &proto.ResourceUID{ResourceUid: chi.URLParam(r, "nodeID")}
	resp, err := h.server.NodeFailed(r.Context(), uid)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) addNodeStats(w http.ResponseWriter, r *http.Request) {
	var stats proto.ResourceStats
	if err := json.NewDecoder(r.Body).Decode(&stats); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	stats.ResourceId = chi.URLParam(r, "nodeID")
	resp, err := h.server.AddNodeStats(r.Context(), &stats)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
