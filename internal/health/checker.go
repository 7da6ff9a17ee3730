package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Config struct {
	CheckInterval time.Duration
	CheckTimeout  time.Duration
	ID            string
}

type Component string

const (
	ComponentStore Component = "store"
	ComponentQueue Component = "queue"
)

// Pinger is anything the checker can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type CheckResult struct {
	Timestamp time.Time `json:"timestamp"`
	Result    bool      `json:"result"`
}

type HealthChecks map[Component]CheckResult

type HealthStatus struct {
	Healthy bool         `json:"healthy"`
	Checks  HealthChecks `json:"checks"`
}

type Checker struct {
	config     *Config
	components map[Component]Pinger
	mu         sync.RWMutex
	checks     HealthChecks
	log        *slog.Logger
}

func NewChecker(config *Config, components map[Component]Pinger) *Checker {
	if config.CheckInterval <= 0 {
		config.CheckInterval = 10 * time.Second
	}
	if config.CheckTimeout <= 0 {
		config.CheckTimeout = time.Second
	}

	checks := make(HealthChecks, len(components))
	for component := range components {
		// if this code gets executed, we assume that there was an initial
		// check
		checks[component] = CheckResult{Timestamp: time.Now(), Result: true}
	}

	return &Checker{
		config:     config,
		components: components,
		checks:     checks,
		log:        slog.With("pod", config.ID, "component", "health"),
	}
}

func (c *Checker) Run(ctx context.Context) error {
	c.log.Debug("Starting the health checker...")

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Debug("Stopping health checker ...")
			return nil
		case <-ticker.C:
			c.CheckAll(ctx)
		}
	}
}

// CheckAll probes every component once.
func (c *Checker) CheckAll(ctx context.Context) {
	for component, pinger := range c.components {
		checkCtx, cancel := context.WithTimeout(ctx, c.config.CheckTimeout)
		err := pinger.Ping(checkCtx)
		cancel()

		if err != nil {
			c.log.Warn("health check failed", "component", component, "error", err)
		}

		c.mu.Lock()
		c.checks[component] = CheckResult{
			Timestamp: time.Now(),
			Result:    err == nil,
		}
		c.mu.Unlock()
	}
}

func (c *Checker) GetHealthStatus() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	healthy := true
	checks := make(HealthChecks, len(c.checks))

	for component, check := range c.checks {
		checks[component] = check
		if !check.Result {
			healthy = false
			c.log.Error("Component health check failed", "component", component)
		}
	}

	return HealthStatus{
		Healthy: healthy,
		Checks:  checks,
	}
}
