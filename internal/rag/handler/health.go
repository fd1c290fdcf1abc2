package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-rag/internal/rag/metrics"
	"github.com/kart-io/sentinel-rag/pkg/infra/pool"
	"github.com/kart-io/sentinel-rag/pkg/utils/errors"
	"github.com/kart-io/sentinel-rag/pkg/utils/response"
)

const healthCheckTimeout = 3 * time.Second

// Check verifies one dependency.
type Check func(ctx context.Context) error

// OpsHandler serves liveness and metrics.
type OpsHandler struct {
	checks  map[string]Check
	metrics *metrics.RAGMetrics
	pools   []*pool.Pool
}

// NewOpsHandler creates an OpsHandler. Pools are exported as gauges next to
// the business metrics.
func NewOpsHandler(m *metrics.RAGMetrics, checks map[string]Check, pools ...*pool.Pool) *OpsHandler {
	return &OpsHandler{checks: checks, metrics: m, pools: pools}
}

// Healthz runs every dependency check and reports 503 when any fails.
func (h *OpsHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, response.Response{
			Code:      errors.ErrServiceUnavailable.Code,
			Message:   errors.ErrServiceUnavailable.MessageEN,
			Data:      status,
			RequestID: c.GetString(response.RequestIDKey),
		})
		return
	}
	response.OK(c, status)
}

// Metrics exports counters in the Prometheus text format.
func (h *OpsHandler) Metrics(c *gin.Context) {
	var sb strings.Builder
	if h.metrics != nil {
		sb.WriteString(h.metrics.Export("sentinel", "rag"))
	}
	for _, p := range h.pools {
		s := p.Stats()
		labels := fmt.Sprintf(`{pool=%q}`, p.Name())
		fmt.Fprintf(&sb, "sentinel_pool_running%s %d\n", labels, s.Running)
		fmt.Fprintf(&sb, "sentinel_pool_submitted_total%s %d\n", labels, s.SubmittedTasks)
		fmt.Fprintf(&sb, "sentinel_pool_rejected_total%s %d\n", labels, s.RejectedTasks)
		fmt.Fprintf(&sb, "sentinel_pool_panics_total%s %d\n", labels, s.PanicRecovered)
	}
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(sb.String()))
}
