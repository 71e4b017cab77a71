// Package adminapi exposes the tracker's read-only operator surface
// (component 4.L): liveness/readiness probes, a Prometheus scrape
// endpoint, and a debug endpoint for inspecting a single message id's
// tracking entry. Built the way the teacher's
// internal/queue/worker/health.go and internal/http/handlers/{health,
// respond}.go are built.
package adminapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/geocoder89/errortracker/internal/observability"
	"github.com/geocoder89/errortracker/internal/tracker"
)

// Pinger is satisfied by the dead-letter store's Ping method; readiness
// degrades to "not ready" when it's configured and fails to answer.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Inspector is the read surface of tracker.ErrorTracker the debug
// endpoint needs — narrowed to avoid the admin API depending on the
// whole tracker package surface.
type Inspector interface {
	ShortDescription(id string) (string, bool)
	FullDescription(id string) (string, bool)
	HasFailedTooManyTimes(id string) bool
}

var _ Inspector = (*tracker.ErrorTracker)(nil)

// Router builds the admin gin.Engine. pinger may be nil (no dependency
// to probe on /readyz beyond the process being up).
func Router(reg *prometheus.Registry, prom *observability.Prom, insp Inspector, pinger Pinger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("errortracker-admin-api"))
	if prom != nil {
		r.Use(prom.GinHandleMiddleware())
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.GET("/readyz", func(c *gin.Context) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
			defer cancel()
			if err := pinger.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "err": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	r.GET("/tracker/:id", func(c *gin.Context) {
		id := c.Param("id")

		short, ok := insp.ShortDescription(id)
		if !ok {
			respondNotFound(c, "no tracking entry for message id")
			return
		}
		full, _ := insp.FullDescription(id)

		c.JSON(http.StatusOK, gin.H{
			"messageId":             id,
			"shortDescription":      short,
			"fullDescription":       full,
			"hasFailedTooManyTimes": insp.HasFailedTooManyTimes(id),
		})
	})

	return r
}

func respondNotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, gin.H{
		"error": gin.H{
			"code":    "not_found",
			"message": message,
		},
	})
}
