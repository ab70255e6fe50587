package telegram

import (
	"github.com/sam17/fxlifesheet/core/telegram/middleware"
)

// DefaultMiddlewares returns the standard middleware chain:
// panic recovery, update logging and per-update message counters.
func DefaultMiddlewares() []Middleware {
	// Metrics wraps before the logger so the context stored for downstream
	// sends carries the counting proxy.
	return []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}
}
