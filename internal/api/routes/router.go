package routes

import (
	"net/http"

	"github.com/medwait/waitline/backend/internal/api/handlers"
	"github.com/medwait/waitline/backend/internal/api/middleware"
	"github.com/medwait/waitline/backend/internal/infrastructure/observability"
)

// Router wires the waiting-line handlers onto an http.ServeMux
type Router struct {
	mux          *http.ServeMux
	queueHandler *handlers.QueueHandler
	metrics      *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(queueHandler *handlers.QueueHandler, metrics *observability.Metrics) *Router {
	r := &Router{
		mux:          http.NewServeMux(),
		queueHandler: queueHandler,
		metrics:      metrics,
	}
	r.registerRoutes()
	return r
}

func (r *Router) registerRoutes() {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.mux.HandleFunc("POST /api/checkin", r.queueHandler.CheckIn)
	r.mux.HandleFunc("GET /api/queue", r.queueHandler.GetQueue)
	r.mux.HandleFunc("POST /api/queue/call-next", r.queueHandler.CallNext)
	r.mux.HandleFunc("GET /api/patients/{id}/position", r.queueHandler.GetPosition)
	r.mux.HandleFunc("POST /api/patients/{id}/complete", r.queueHandler.Complete)
	r.mux.HandleFunc("GET /api/stats", r.queueHandler.Stats)
}

// Handler returns the router's handler chain
func (r *Router) Handler() http.Handler {
	var h http.Handler = r.mux
	if r.metrics != nil {
		h = middleware.ObservabilityMiddleware(r.metrics)(h)
	}
	return middleware.LoggingMiddleware(h)
}
