package server

import (
	"context"
	"log/slog"

	"github.com/mow-search/mow/backend"
)

type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

type OkHealthChecker struct {
}

func NewOkHealthChecker() *OkHealthChecker {
	return &OkHealthChecker{}
}

func (hc *OkHealthChecker) Healthy(ctx context.Context) bool {
	return true
}

// BackendHealthChecker reports healthy while the search engine answers
// document counts.
type BackendHealthChecker struct {
	b backend.Backend
}

func NewBackendHealthChecker(b backend.Backend) *BackendHealthChecker {
	return &BackendHealthChecker{b: b}
}

func (hc *BackendHealthChecker) Healthy(ctx context.Context) bool {
	if _, err := hc.b.DocCount(ctx); err != nil {
		slog.Error("health check failed", "error", err)
		return false
	}
	return true
}
