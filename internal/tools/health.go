package tools

import (
	"context"
	"encoding/json"
	"time"

	"ironmanus/internal/catalog"
	"ironmanus/internal/config"
	"ironmanus/internal/session"
)

// Version identifies this build for the HealthCheck report.
const Version = "0.1.0"

type healthArgs struct {
	Detailed bool `json:"detailed"`
}

type healthChecks struct {
	Configuration string `json:"configuration"`
	ToolRegistry   string `json:"toolRegistry"`
	Memory         string `json:"memory"`
	Process        string `json:"process"`
}

type healthReport struct {
	Status       string        `json:"status"`
	Timestamp    string        `json:"timestamp"`
	UptimeMs     int64         `json:"uptime"`
	ResponseTime int64         `json:"responseTime"`
	Version      string        `json:"version"`
	Checks       *healthChecks `json:"checks,omitempty"`
}

// NewHealthCheck builds the HealthCheck tool. started is the time the
// process came up, used to compute uptime.
func NewHealthCheck(cfg *config.Config, cat *catalog.Catalog, registry Registry, sessions session.Store, started time.Time) Handler {
	return func(ctx context.Context, rawArgs json.RawMessage) Response {
		start := time.Now()
		var args healthArgs
		_ = unmarshalArgs(rawArgs, &args)

		report := healthReport{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			UptimeMs:  time.Since(started).Milliseconds(),
			Version:   Version,
		}

		if args.Detailed {
			checks := healthChecks{
				Configuration: "ok",
				ToolRegistry:  "ok",
				Memory:        "ok",
				Process:       "ok",
			}
			if cfg == nil {
				checks.Configuration = "missing"
				report.Status = "degraded"
			}
			if len(registry) == 0 {
				checks.ToolRegistry = "empty"
				report.Status = "degraded"
			}
			if cat == nil {
				checks.Memory = "catalog_unavailable"
				report.Status = "degraded"
			}
			report.Checks = &checks
		}

		report.ResponseTime = time.Since(start).Milliseconds()

		encoded, err := json.Marshal(report)
		if err != nil {
			return errorResponse("HealthCheck", err)
		}
		return text(string(encoded))
	}
}
