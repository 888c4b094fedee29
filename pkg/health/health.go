package health

import (
	"sort"
	"sync"
	"time"
)

// Status is the outcome of a health check.
type Status int

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	default:
		return "unhealthy"
	}
}

// CheckFunc is a function that performs a health check
type CheckFunc func() error

// Check represents a single health check result
type Check struct {
	Name        string
	Status      Status
	Message     string
	LastChecked time.Time
}

// Checker holds registered health checks and evaluates them on demand,
// so every health request reflects the current state of each dependency
// rather than a result frozen at startup.
type Checker struct {
	mu      sync.RWMutex
	funcs   map[string]CheckFunc
	results map[string]*Check
}

// NewChecker creates a new health checker
func NewChecker() *Checker {
	return &Checker{
		funcs:   make(map[string]CheckFunc),
		results: make(map[string]*Check),
	}
}

// Register adds a named check. Registering the same name again replaces
// the previous function.
func (c *Checker) Register(name string, checkFunc CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcs[name] = checkFunc
}

// RunAll executes every registered check, records the outcomes and
// returns them sorted by name.
func (c *Checker) RunAll() []Check {
	c.mu.RLock()
	funcs := make(map[string]CheckFunc, len(c.funcs))
	for name, fn := range c.funcs {
		funcs[name] = fn
	}
	c.mu.RUnlock()

	checks := make([]Check, 0, len(funcs))
	for name, fn := range funcs {
		status := StatusHealthy
		message := "OK"
		if err := fn(); err != nil {
			status = StatusUnhealthy
			message = err.Error()
		}
		checks = append(checks, Check{
			Name:        name,
			Status:      status,
			Message:     message,
			LastChecked: time.Now(),
		})
	}
	sort.Slice(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })

	c.mu.Lock()
	for i := range checks {
		check := checks[i]
		c.results[check.Name] = &check
	}
	c.mu.Unlock()

	return checks
}

// GetOverallStatus returns the overall health status from the most
// recent evaluation.
func (c *Checker) GetOverallStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.results) == 0 {
		return StatusHealthy
	}

	unhealthyCount := 0
	for _, check := range c.results {
		if check.Status == StatusUnhealthy {
			unhealthyCount++
		}
	}

	if unhealthyCount == 0 {
		return StatusHealthy
	} else if unhealthyCount < len(c.results) {
		return StatusDegraded
	}

	return StatusUnhealthy
}
