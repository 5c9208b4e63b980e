package monitoring

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Timestamp int64                  `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckResult represents the result of an individual health check
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthCheck is a function that performs a health check
type HealthCheck func() CheckResult

type namedCheck struct {
	check    HealthCheck
	optional bool
}

// HealthChecker manages and executes health checks. Failing optional checks
// degrade the service instead of marking it unhealthy.
type HealthChecker struct {
	service string
	version string
	checks  map[string]namedCheck
}

// NewHealthChecker creates a new health checker instance
func NewHealthChecker(service, version string) *HealthChecker {
	return &HealthChecker{
		service: service,
		version: version,
		checks:  make(map[string]namedCheck),
	}
}

// AddCheck adds a required health check.
func (hc *HealthChecker) AddCheck(name string, check HealthCheck) {
	hc.checks[name] = namedCheck{check: check}
}

// AddOptionalCheck adds a check whose failure only degrades the service.
func (hc *HealthChecker) AddOptionalCheck(name string, check HealthCheck) {
	hc.checks[name] = namedCheck{check: check, optional: true}
}

// CheckHealth runs all health checks and returns the overall status
func (hc *HealthChecker) CheckHealth() HealthStatus {
	status := HealthStatus{
		Service:   hc.service,
		Version:   hc.version,
		Timestamp: time.Now().Unix(),
		Checks:    make(map[string]CheckResult, len(hc.checks)),
	}

	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	anyUnhealthy := false
	anyDegraded := false
	for _, name := range names {
		nc := hc.checks[name]
		result := nc.check()
		status.Checks[name] = result
		switch result.Status {
		case StatusHealthy:
		case StatusDegraded:
			anyDegraded = true
		default:
			if nc.optional {
				anyDegraded = true
			} else {
				anyUnhealthy = true
			}
		}
	}

	switch {
	case anyUnhealthy:
		status.Status = StatusUnhealthy
	case anyDegraded:
		status.Status = StatusDegraded
	default:
		status.Status = StatusHealthy
	}
	return status
}

// Handler returns a gin handler for the health check endpoint
func (hc *HealthChecker) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		health := hc.CheckHealth()
		statusCode := http.StatusOK
		if health.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, health)
	}
}

// Pinger is satisfied by redis clients, kafka clients and anything else with
// a context-aware liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingHealthCheck wraps a Pinger.
func PingHealthCheck(name string, p Pinger) HealthCheck {
	return func() CheckResult {
		start := time.Now()
		if p == nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: fmt.Sprintf("%s client is nil", name),
				Latency: time.Since(start).String(),
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: fmt.Sprintf("%s ping failed: %v", name, err),
				Latency: time.Since(start).String(),
			}
		}
		return CheckResult{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("%s connection healthy", name),
			Latency: time.Since(start).String(),
		}
	}
}

type dbPinger struct{ db *sql.DB }

func (p dbPinger) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// DatabaseHealthCheck creates a health check for database connectivity
func DatabaseHealthCheck(db *sql.DB) HealthCheck {
	if db == nil {
		return PingHealthCheck("Database", nil)
	}
	return PingHealthCheck("Database", dbPinger{db: db})
}

// ConfigurationHealthCheck reports missing required configuration values.
func ConfigurationHealthCheck(configs map[string]string) HealthCheck {
	return func() CheckResult {
		var missing []string
		for key, value := range configs {
			if value == "" {
				missing = append(missing, key)
			}
		}
		sort.Strings(missing)
		if len(missing) > 0 {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: fmt.Sprintf("Missing required configuration: %v", missing),
			}
		}
		return CheckResult{Status: StatusHealthy, Message: "All required configuration present"}
	}
}
