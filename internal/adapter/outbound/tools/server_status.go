package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/krug-dev/krug-mcp/internal/domain/auth"
	"github.com/krug-dev/krug-mcp/internal/domain/tool"
)

// HostProbe reads host and process statistics.
type HostProbe interface {
	ProcessRSS(ctx context.Context) (uint64, error)
	SystemMemory(ctx context.Context) (*mem.VirtualMemoryStat, error)
	LoadAverage(ctx context.Context) (*load.AvgStat, error)
}

// Pinger is any dependency whose health decides healthy vs degraded.
type Pinger interface {
	Ping(ctx context.Context) error
}

type gopsutilProbe struct {
	pid int32
}

// NewHostProbe returns a probe for the current process backed by gopsutil.
func NewHostProbe() HostProbe {
	return gopsutilProbe{pid: int32(os.Getpid())}
}

func (p gopsutilProbe) ProcessRSS(ctx context.Context) (uint64, error) {
	proc, err := process.NewProcessWithContext(ctx, p.pid)
	if err != nil {
		return 0, err
	}
	info, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}

func (gopsutilProbe) SystemMemory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemoryWithContext(ctx)
}

func (gopsutilProbe) LoadAverage(ctx context.Context) (*load.AvgStat, error) {
	return load.AvgWithContext(ctx)
}

// StatusConfig configures ServerStatusTool.
type StatusConfig struct {
	// BootTime is when the process started serving. Uptime is measured from it.
	BootTime    time.Time
	Version     string
	Environment string
	Store       Pinger
	Probe       HostProbe
	Now         func() time.Time
	Logger      *slog.Logger
}

// ServerStatusTool reports uptime, memory, load and session store health.
type ServerStatusTool struct {
	cfg StatusConfig
}

// NewServerStatusTool creates the server_status tool.
func NewServerStatusTool(cfg StatusConfig) *ServerStatusTool {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Probe == nil {
		cfg.Probe = NewHostProbe()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BootTime.IsZero() {
		cfg.BootTime = cfg.Now()
	}
	return &ServerStatusTool{cfg: cfg}
}

// Descriptor implements tool.Tool.
func (t *ServerStatusTool) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name: "server_status",
		Description: "Check the health and operational status of the MCP server, including uptime, " +
			"memory usage, session store connectivity and system load. Returns JSON.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{},"required":[],"additionalProperties":false}`),
	}
}

type memoryUsage struct {
	TotalMB           float64  `json:"total_mb"`
	SystemUsedPercent *float64 `json:"system_used_percent,omitempty"`
}

type loadAverage struct {
	OneMinute     float64 `json:"one_minute"`
	FiveMinute    float64 `json:"five_minute"`
	FifteenMinute float64 `json:"fifteen_minute"`
}

type storeStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type serverStatus struct {
	Status       string       `json:"status"`
	ServerTime   string       `json:"server_time"`
	Uptime       string       `json:"uptime"`
	Version      string       `json:"version"`
	Environment  string       `json:"environment"`
	MemoryUsage  memoryUsage  `json:"memory_usage"`
	SessionStore storeStatus  `json:"session_store"`
	LoadAverage  *loadAverage `json:"load_average,omitempty"`
}

// Invoke implements tool.Tool. Probe failures degrade fields, never the call.
func (t *ServerStatusTool) Invoke(ctx context.Context, _ map[string]any, _ *auth.AuthContext) (tool.Result, error) {
	now := t.cfg.Now()
	out := serverStatus{
		Status:       "healthy",
		ServerTime:   now.Format(time.RFC3339),
		Uptime:       FormatUptime(now.Sub(t.cfg.BootTime)),
		Version:      t.cfg.Version,
		Environment:  t.cfg.Environment,
		SessionStore: storeStatus{Status: "connected"},
	}

	if t.cfg.Store != nil {
		if err := t.cfg.Store.Ping(ctx); err != nil {
			out.Status = "degraded"
			out.SessionStore = storeStatus{Status: "error", Error: err.Error()}
		}
	}

	if rss, err := t.cfg.Probe.ProcessRSS(ctx); err == nil {
		out.MemoryUsage.TotalMB = round2(float64(rss) / (1024 * 1024))
	} else {
		t.cfg.Logger.Debug("process memory unavailable", "error", err)
	}
	if vm, err := t.cfg.Probe.SystemMemory(ctx); err == nil {
		used := round2(vm.UsedPercent)
		out.MemoryUsage.SystemUsedPercent = &used
	}
	if avg, err := t.cfg.Probe.LoadAverage(ctx); err == nil {
		out.LoadAverage = &loadAverage{
			OneMinute:     avg.Load1,
			FiveMinute:    avg.Load5,
			FifteenMinute: avg.Load15,
		}
	}

	return tool.JSONResult(out)
}

// FormatUptime renders d as "Nd Nh Nm".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Minute)
	days := total / (24 * 60)
	hours := (total % (24 * 60)) / 60
	minutes := total % 60
	return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
