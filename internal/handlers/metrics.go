package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var startTime = time.Now()

// MetricsHandler renders runtime and governance gauges.
type MetricsHandler struct {
	db    *gorm.DB
	queue services.TaskQueue
	hub   *services.EventHub
}

func NewMetricsHandler(db *gorm.DB, queue services.TaskQueue, hub *services.EventHub) *MetricsHandler {
	return &MetricsHandler{db: db, queue: queue, hub: hub}
}

type statusCount struct {
	Status string
	Count  int64
}

// Metrics returns Prometheus-compatible text format metrics.
// GET /metrics
func (h *MetricsHandler) Metrics(c *gin.Context) {
	var b strings.Builder
	ctx := c.Request.Context()

	// -- Runtime metrics --
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "governance_uptime_seconds", "Time since server start in seconds", time.Since(startTime).Seconds())
	writeGauge(&b, "governance_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "governance_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "governance_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	// -- Database metrics --
	if sqlDB, err := h.db.DB(); err == nil {
		stats := sqlDB.Stats()
		writeGauge(&b, "governance_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
		writeGauge(&b, "governance_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
	}

	writeGauge(&b, "governance_sse_active_clients", "Number of active SSE connections", float64(h.hub.ClientCount()))

	queueAsync := 0.0
	if h.queue != nil && h.queue.IsAsync() {
		queueAsync = 1.0
	}
	writeGauge(&b, "governance_queue_async_enabled", "Whether async queue (Redis) is enabled (1=yes, 0=no)", queueAsync)

	// -- Domain metrics --
	db := h.db.WithContext(ctx)
	var spaces, users int64
	db.Model(&models.Space{}).Count(&spaces)
	db.Model(&models.User{}).Where("is_active = ?", true).Count(&users)
	writeGauge(&b, "governance_spaces_total", "Total number of spaces", float64(spaces))
	writeGauge(&b, "governance_users_active", "Number of active users", float64(users))

	writeStatusGauges(&b, db.Model(&models.Proposal{}), "governance_proposals", "Proposals")
	writeStatusGauges(&b, db.Model(&models.Vote{}), "governance_votes", "Votes")
	writeStatusGauges(&b, db.Model(&models.WebhookDelivery{}), "governance_webhook_deliveries", "Webhook deliveries")

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeStatusGauges(b *strings.Builder, query *gorm.DB, name, what string) {
	var rows []statusCount
	if err := query.Select("status, COUNT(*) AS count").Group("status").Order("status").Scan(&rows).Error; err != nil {
		return
	}
	fmt.Fprintf(b, "# HELP %s %s by status\n", name, what)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	for _, r := range rows {
		fmt.Fprintf(b, "%s{status=%q} %d\n", name, r.Status, r.Count)
	}
	b.WriteString("\n")
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
