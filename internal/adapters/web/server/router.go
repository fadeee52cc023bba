package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lcalzada-xor/tagap/internal/adapters/web/middleware"
)

func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/devices", s.DeviceHandler.HandleList).Methods(http.MethodGet)
	r.HandleFunc("/api/captures", s.CaptureHandler.HandleList).Methods(http.MethodGet)
	r.HandleFunc("/api/captures/{id}", s.CaptureHandler.HandleGet).Methods(http.MethodGet)
	r.HandleFunc("/api/stations", s.StationHandler.HandleList).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", s.StatsHandler.HandleGetStats).Methods(http.MethodGet)
	r.HandleFunc("/api/config", s.ConfigHandler.HandleGetConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/config/persistence", s.ConfigHandler.HandleTogglePersistence).Methods(http.MethodPost)
	r.Handle("/api/reports/captures.pdf",
		middleware.RateLimitMiddleware(s.reportLimiter)(http.HandlerFunc(s.ReportHandler.HandleCapturesPDF)),
	).Methods(http.MethodGet)

	r.HandleFunc("/ws", s.WSManager.HandleWebSocket)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	return r
}
