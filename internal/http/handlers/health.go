package handlers

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"gorm.io/gorm"

	"github.com/jmylchreest/mediabridge/internal/session"
	"github.com/jmylchreest/mediabridge/pkg/httpclient"
)

// HealthHandler handles the health endpoint.
type HealthHandler struct {
	version   string
	startTime time.Time
	cbManager *httpclient.CircuitBreakerManager
	db        *gorm.DB
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithCircuitBreakerManager sets the circuit breaker manager reported on.
func (h *HealthHandler) WithCircuitBreakerManager(manager *httpclient.CircuitBreakerManager) *HealthHandler {
	h.cbManager = manager
	return h
}

// WithDB sets the database connection for health checks.
func (h *HealthHandler) WithDB(db *gorm.DB) *HealthHandler {
	h.db = db
	return h
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service including system metrics",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// CPUInfo holds host load averages.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load1Min"`
	Load5Min           float64 `json:"load5Min"`
	Load15Min          float64 `json:"load15Min"`
	LoadPercentage1Min float64 `json:"loadPercentage1Min"`
}

// MemoryInfo holds host and process memory usage.
type MemoryInfo struct {
	TotalMemoryMB     float64 `json:"totalMemoryMb"`
	UsedMemoryMB      float64 `json:"usedMemoryMb"`
	AvailableMemoryMB float64 `json:"availableMemoryMb"`
	SwapTotalMB       float64 `json:"swapTotalMb"`
	SwapUsedMB        float64 `json:"swapUsedMb"`
	ProcessMB         float64 `json:"processMb"`
	ProcessPercent    float64 `json:"processPercent"`
	Goroutines        int     `json:"goroutines"`
}

// DatabaseHealth holds database pool stats and ping latency.
type DatabaseHealth struct {
	Status            string  `json:"status"`
	Driver            string  `json:"driver,omitempty"`
	OpenConnections   int     `json:"openConnections"`
	InUse             int     `json:"inUse"`
	Idle              int     `json:"idle"`
	MaxOpen           int     `json:"maxOpen"`
	ResponseTimeMS    float64 `json:"responseTimeMs"`
	ResponseTimeState string  `json:"responseTimeStatus"`
}

// BackendHealth describes the active media server connection.
type BackendHealth struct {
	Connected     bool   `json:"connected"`
	Authenticated bool   `json:"authenticated"`
	Kind          string `json:"kind,omitempty"`
	Label         string `json:"label,omitempty"`
}

// HealthResponse is the health report.
type HealthResponse struct {
	Status          string                    `json:"status"`
	Timestamp       string                    `json:"timestamp"`
	Version         string                    `json:"version"`
	Uptime          string                    `json:"uptime"`
	UptimeSeconds   float64                   `json:"uptimeSeconds"`
	CPU             CPUInfo                   `json:"cpu"`
	Memory          MemoryInfo                `json:"memory"`
	Database        DatabaseHealth            `json:"database"`
	Backend         BackendHealth             `json:"backend"`
	CircuitBreakers []httpclient.BreakerStats `json:"circuitBreakers"`
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// GetHealth returns the health status of the service. The service reports
// healthy while disconnected from any media server; only a failing
// database degrades it.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	breakers := []httpclient.BreakerStats{}
	if h.cbManager != nil {
		breakers = h.cbManager.AllStats()
	}

	db := h.getDatabaseHealth(ctx)
	status := "healthy"
	if db.Status == "error" {
		status = "degraded"
	}

	state := session.FromContext(ctx)
	be := BackendHealth{Connected: state.Connected(), Authenticated: state.Authenticated()}
	if state.Connected() {
		be.Kind = string(state.Connection.Kind)
		be.Label = state.Connection.Label()
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:          status,
			Timestamp:       now.UTC().Format(time.RFC3339),
			Version:         h.version,
			Uptime:          uptime.Round(time.Second).String(),
			UptimeSeconds:   uptime.Seconds(),
			CPU:             getCPUInfo(),
			Memory:          getMemoryInfo(),
			Database:        db,
			Backend:         be,
			CircuitBreakers: breakers,
		},
	}, nil
}

func getCPUInfo() CPUInfo {
	info := CPUInfo{Cores: runtime.NumCPU()}
	if avg, err := load.Avg(); err == nil && avg != nil {
		info.Load1Min = avg.Load1
		info.Load5Min = avg.Load5
		info.Load15Min = avg.Load15
		if info.Cores > 0 {
			info.LoadPercentage1Min = avg.Load1 / float64(info.Cores) * 100
		}
	}
	return info
}

func getMemoryInfo() MemoryInfo {
	const mb = 1024 * 1024
	info := MemoryInfo{Goroutines: runtime.NumGoroutine()}

	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		info.TotalMemoryMB = float64(vm.Total) / mb
		info.UsedMemoryMB = float64(vm.Used) / mb
		info.AvailableMemoryMB = float64(vm.Available) / mb
	}
	if swap, err := mem.SwapMemory(); err == nil && swap != nil {
		info.SwapTotalMB = float64(swap.Total) / mb
		info.SwapUsedMB = float64(swap.Used) / mb
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return info
	}
	if m, err := proc.MemoryInfo(); err == nil && m != nil {
		info.ProcessMB = float64(m.RSS) / mb
		if info.TotalMemoryMB > 0 {
			info.ProcessPercent = info.ProcessMB / info.TotalMemoryMB * 100
		}
	}
	return info
}

func (h *HealthHandler) getDatabaseHealth(ctx context.Context) DatabaseHealth {
	health := DatabaseHealth{Status: "ok", ResponseTimeState: "healthy"}
	if h.db == nil {
		health.Status = "unknown"
		return health
	}
	health.Driver = h.db.Dialector.Name()

	sqlDB, err := h.db.DB()
	if err != nil {
		health.Status = "error"
		return health
	}

	stats := sqlDB.Stats()
	health.OpenConnections = stats.OpenConnections
	health.InUse = stats.InUse
	health.Idle = stats.Idle
	health.MaxOpen = stats.MaxOpenConnections

	start := time.Now()
	err = sqlDB.PingContext(ctx)
	health.ResponseTimeMS = float64(time.Since(start).Microseconds()) / 1000

	switch {
	case err != nil:
		health.Status = "error"
		health.ResponseTimeState = "error"
	case health.ResponseTimeMS > 100:
		health.ResponseTimeState = "slow"
	}
	return health
}
