package health

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pointstock/internal/httputil"
)

type Handler struct {
	pool        *pgxpool.Pool
	startedAt   time.Time
	httpAddr    string
	internalTok string
}

func NewHandler(pool *pgxpool.Pool, startedAt time.Time, httpAddr, internalToken string) *Handler {
	start := startedAt.UTC()
	if start.IsZero() {
		start = time.Now().UTC()
	}
	return &Handler{
		pool:        pool,
		startedAt:   start,
		httpAddr:    strings.TrimSpace(httpAddr),
		internalTok: strings.TrimSpace(internalToken),
	}
}

type liveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	UptimeSec int64  `json:"uptime_sec"`
	Uptime    string `json:"uptime"`
}

type readinessResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	UptimeSec int64           `json:"uptime_sec"`
	Uptime    string          `json:"uptime"`
	Database  readinessDBStat `json:"database"`
}

type readinessDBStat struct {
	Reachable  bool   `json:"reachable"`
	PingMs     int64  `json:"ping_ms"`
	Error      string `json:"error,omitempty"`
	CheckedAt  string `json:"checked_at"`
	TimeoutSec int    `json:"timeout_sec"`
}

func (h *Handler) uptime(now time.Time) time.Duration {
	uptime := now.Sub(h.startedAt)
	if uptime < 0 {
		return 0
	}
	return uptime
}

func secureTokenEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (h *Handler) requireInternalToken(w http.ResponseWriter, r *http.Request) bool {
	if h.internalTok == "" {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorResponse{Error: "internal token is not configured"})
		return false
	}
	provided := strings.TrimSpace(r.Header.Get("X-Internal-Token"))
	if !secureTokenEqual(provided, h.internalTok) {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid internal token"})
		return false
	}
	return true
}

func (h *Handler) pingDB(ctx context.Context) readinessDBStat {
	const timeoutSec = 1
	stat := readinessDBStat{TimeoutSec: timeoutSec}
	if h.pool == nil {
		stat.Error = "pool is not configured"
		stat.CheckedAt = time.Now().UTC().Format(time.RFC3339)
		return stat
	}
	start := time.Now()
	pingCtx, cancel := context.WithTimeout(ctx, timeoutSec*time.Second)
	err := h.pool.Ping(pingCtx)
	cancel()
	stat.PingMs = time.Since(start).Milliseconds()
	stat.CheckedAt = time.Now().UTC().Format(time.RFC3339)
	if err != nil {
		stat.Error = err.Error()
		return stat
	}
	stat.Reachable = true
	return stat
}

// Live is a lightweight liveness endpoint and does not check database reachability.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	uptime := h.uptime(now)
	httputil.WriteJSON(w, http.StatusOK, liveResponse{
		Status:    "ok",
		Timestamp: now.Format(time.RFC3339),
		UptimeSec: int64(uptime.Seconds()),
		Uptime:    uptime.String(),
	})
}

// Ready checks the primary dependency (database) and returns 503 when it's not reachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	uptime := h.uptime(now)
	db := h.pingDB(r.Context())
	status := "ok"
	httpStatus := http.StatusOK
	if !db.Reachable {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, httpStatus, readinessResponse{
		Status:    status,
		Timestamp: now.Format(time.RFC3339),
		UptimeSec: int64(uptime.Seconds()),
		Uptime:    uptime.String(),
		Database:  db,
	})
}

// Metrics returns basic Prometheus-compatible metrics and is protected by X-Internal-Token.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	if !h.requireInternalToken(w, r) {
		return
	}

	now := time.Now().UTC()
	uptime := h.uptime(now)
	db := h.pingDB(r.Context())
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	dbUp := 0
	if db.Reachable {
		dbUp = 1
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "# HELP pointstock_up Service process is running.\n")
	_, _ = fmt.Fprintf(w, "# TYPE pointstock_up gauge\n")
	_, _ = fmt.Fprintf(w, "pointstock_up 1\n")

	_, _ = fmt.Fprintf(w, "# HELP pointstock_uptime_seconds Service uptime in seconds.\n")
	_, _ = fmt.Fprintf(w, "# TYPE pointstock_uptime_seconds gauge\n")
	_, _ = fmt.Fprintf(w, "pointstock_uptime_seconds %d\n", int64(uptime.Seconds()))

	_, _ = fmt.Fprintf(w, "# HELP pointstock_db_up Database ping status (1=ok,0=down).\n")
	_, _ = fmt.Fprintf(w, "# TYPE pointstock_db_up gauge\n")
	_, _ = fmt.Fprintf(w, "pointstock_db_up %d\n", dbUp)
	_, _ = fmt.Fprintf(w, "pointstock_db_ping_milliseconds %d\n", db.PingMs)

	_, _ = fmt.Fprintf(w, "# HELP pointstock_go_goroutines Number of goroutines.\n")
	_, _ = fmt.Fprintf(w, "# TYPE pointstock_go_goroutines gauge\n")
	_, _ = fmt.Fprintf(w, "pointstock_go_goroutines %d\n", runtime.NumGoroutine())
	_, _ = fmt.Fprintf(w, "pointstock_go_gomaxprocs %d\n", runtime.GOMAXPROCS(0))
	_, _ = fmt.Fprintf(w, "pointstock_go_mem_alloc_bytes %d\n", mem.Alloc)
	_, _ = fmt.Fprintf(w, "pointstock_go_mem_heap_inuse_bytes %d\n", mem.HeapInuse)
	_, _ = fmt.Fprintf(w, "pointstock_go_mem_sys_bytes %d\n", mem.Sys)
	_, _ = fmt.Fprintf(w, "pointstock_go_gc_count %d\n", mem.NumGC)

	if h.pool != nil {
		stat := h.pool.Stat()
		_, _ = fmt.Fprintf(w, "# HELP pointstock_db_pool_total_conns Current total DB pool connections.\n")
		_, _ = fmt.Fprintf(w, "# TYPE pointstock_db_pool_total_conns gauge\n")
		_, _ = fmt.Fprintf(w, "pointstock_db_pool_total_conns %d\n", stat.TotalConns())
		_, _ = fmt.Fprintf(w, "pointstock_db_pool_idle_conns %d\n", stat.IdleConns())
		_, _ = fmt.Fprintf(w, "pointstock_db_pool_acquired_conns %d\n", stat.AcquiredConns())
		_, _ = fmt.Fprintf(w, "pointstock_db_pool_max_conns %d\n", stat.MaxConns())
		_, _ = fmt.Fprintf(w, "pointstock_db_pool_acquire_count %d\n", stat.AcquireCount())
		_, _ = fmt.Fprintf(w, "pointstock_db_pool_empty_acquire_count %d\n", stat.EmptyAcquireCount())
	}
}
