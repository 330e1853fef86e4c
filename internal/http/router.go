package httpserver

import (
	"net/http"

	"github.com/iago/career-agent/internal/http/handlers"
	"github.com/iago/career-agent/internal/http/middleware"
	"github.com/iago/career-agent/internal/logging"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *logging.Logger
	AuthToken      string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", deps.API.Health)
	mux.HandleFunc("/v1/signals", deps.API.Signals)
	mux.HandleFunc("/v1/messages/", deps.API.ProcessMessage)
	mux.HandleFunc("/v1/logs", deps.API.Logs)
	mux.HandleFunc("/v1/updates", deps.API.Updates)

	handler := http.Handler(mux)
	handler = middleware.Auth(deps.AuthToken)(handler)
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: deps.CORSOrigins,
	})(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
