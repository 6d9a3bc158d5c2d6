// Package governor implements admission control over a bounded resource
// budget shared by concurrently running pipelines. Admission is a single
// atomic check-and-increment over all requested resources; a run that cannot
// be admitted is denied immediately and never queued.
package governor

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Resource names a governed resource type.
type Resource string

const (
	ResourceMemory Resource = "memory"
	ResourceCPU    Resource = "cpu"
	ResourceSlots  Resource = "slots"
)

// DeniedError reports a refused admission. Callers may retry; the governor
// itself never queues or retries.
type DeniedError struct {
	Resource  Resource
	Requested int64
	Available int64
	Limit     int64
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("resource %s denied: requested %d, available %d of %d",
		e.Resource, e.Requested, e.Available, e.Limit)
}

// Allocation is the grant for one in-flight run. It is owned by exactly one
// run and released exactly once; extra releases are no-ops.
type Allocation struct {
	ID        string
	Requested map[Resource]int64
	Granted   map[Resource]int64
	GrantedAt time.Time

	mu       sync.Mutex
	released bool
}

// Config configures a Governor.
type Config struct {
	// Limits maps each governed resource to its budget
	Limits map[Resource]int64

	// ResourceCheckInterval is the usage sampling period (default: 30s)
	ResourceCheckInterval time.Duration

	// HealthCheckInterval is the health sampling period (default: 60s)
	HealthCheckInterval time.Duration

	// PressureThreshold is the usage/limit ratio that raises a pressure
	// signal (default: 0.9)
	PressureThreshold float64
}

// PressureSignal reports a resource running close to its limit. Delivery is
// fire-and-forget: the governor never blocks on signal consumption.
type PressureSignal struct {
	Resource Resource  `json:"resource"`
	Usage    int64     `json:"usage"`
	Limit    int64     `json:"limit"`
	Ratio    float64   `json:"ratio"`
	At       time.Time `json:"at"`
}

// Governor tracks current usage per resource against fixed limits.
type Governor struct {
	mu     sync.Mutex
	limits map[Resource]int64
	usage  map[Resource]int64

	threshold        float64
	resourceInterval time.Duration
	healthInterval   time.Duration

	pressure chan PressureSignal
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	metrics *Metrics
	log     *logrus.Entry
}

// New creates a Governor with the given limits. Metrics may be nil.
func New(cfg Config, metrics *Metrics, log *logrus.Entry) *Governor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.ResourceCheckInterval <= 0 {
		cfg.ResourceCheckInterval = 30 * time.Second
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = 60 * time.Second
	}
	if cfg.PressureThreshold <= 0 {
		cfg.PressureThreshold = 0.9
	}

	limits := make(map[Resource]int64, len(cfg.Limits))
	usage := make(map[Resource]int64, len(cfg.Limits))
	for res, limit := range cfg.Limits {
		limits[res] = limit
		usage[res] = 0
	}

	g := &Governor{
		limits:           limits,
		usage:            usage,
		threshold:        cfg.PressureThreshold,
		resourceInterval: cfg.ResourceCheckInterval,
		healthInterval:   cfg.HealthCheckInterval,
		pressure:         make(chan PressureSignal, 16),
		stop:             make(chan struct{}),
		metrics:          metrics,
		log:              log.WithField("component", "governor"),
	}

	if g.metrics != nil {
		for res, limit := range limits {
			g.metrics.SetLimit(string(res), limit)
			g.metrics.SetUsage(string(res), 0)
		}
	}

	return g
}

// TryAcquire attempts to admit a run requesting the given amounts. The check
// and the increment happen inside one critical section so concurrent callers
// can never over-subscribe the budget. On refusal usage is unchanged and a
// *DeniedError is returned.
func (g *Governor) TryAcquire(requirements map[Resource]int64) (*Allocation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for res, amount := range requirements {
		limit, ok := g.limits[res]
		if !ok {
			return nil, fmt.Errorf("unknown resource %q", res)
		}
		if amount < 0 {
			return nil, fmt.Errorf("negative request for resource %q: %d", res, amount)
		}
		if g.usage[res]+amount > limit {
			if g.metrics != nil {
				g.metrics.IncDenied(string(res))
			}
			return nil, &DeniedError{
				Resource:  res,
				Requested: amount,
				Available: limit - g.usage[res],
				Limit:     limit,
			}
		}
	}

	granted := make(map[Resource]int64, len(requirements))
	requested := make(map[Resource]int64, len(requirements))
	for res, amount := range requirements {
		g.usage[res] += amount
		granted[res] = amount
		requested[res] = amount
		if g.metrics != nil {
			g.metrics.SetUsage(string(res), g.usage[res])
		}
	}

	g.signalPressureLocked()

	return &Allocation{
		ID:        uuid.NewString(),
		Requested: requested,
		Granted:   granted,
		GrantedAt: time.Now(),
	}, nil
}

// Release returns an allocation's resources to the budget. Releasing twice
// is tolerated: the second call is a no-op logged as a misuse warning.
func (g *Governor) Release(a *Allocation) {
	if a == nil {
		return
	}

	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		g.log.WithField("allocation_id", a.ID).Warn("Allocation released more than once")
		return
	}
	a.released = true
	a.mu.Unlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	for res, amount := range a.Granted {
		g.usage[res] -= amount
		if g.usage[res] < 0 {
			// Accounting must never go negative; clamp and warn.
			g.log.WithField("resource", res).Warn("Usage underflow clamped to zero")
			g.usage[res] = 0
		}
		if g.metrics != nil {
			g.metrics.SetUsage(string(res), g.usage[res])
		}
	}
}

// Usage returns a snapshot of current usage per resource.
func (g *Governor) Usage() map[Resource]int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	snapshot := make(map[Resource]int64, len(g.usage))
	for res, used := range g.usage {
		snapshot[res] = used
	}
	return snapshot
}

// Limits returns the configured limits per resource.
func (g *Governor) Limits() map[Resource]int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	snapshot := make(map[Resource]int64, len(g.limits))
	for res, limit := range g.limits {
		snapshot[res] = limit
	}
	return snapshot
}

// Pressure exposes the pressure signal stream. Observers that fall behind
// miss signals; they can always poll Usage instead.
func (g *Governor) Pressure() <-chan PressureSignal {
	return g.pressure
}

// signalPressureLocked emits a non-blocking pressure signal for every
// resource above the threshold. Callers must hold g.mu.
func (g *Governor) signalPressureLocked() {
	now := time.Now()
	for res, limit := range g.limits {
		if limit == 0 {
			continue
		}
		ratio := float64(g.usage[res]) / float64(limit)
		if ratio <= g.threshold {
			continue
		}
		signal := PressureSignal{
			Resource: res,
			Usage:    g.usage[res],
			Limit:    limit,
			Ratio:    ratio,
			At:       now,
		}
		select {
		case g.pressure <- signal:
		default:
			// observer backlog, drop the signal
		}
		g.log.WithFields(logrus.Fields{
			"resource": res,
			"usage":    g.usage[res],
			"limit":    limit,
		}).Warn("Resource pressure detected")
	}
}
