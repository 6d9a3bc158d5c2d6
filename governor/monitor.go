package governor

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Start launches the periodic monitor loop. The loop samples resource usage
// on the resource interval and logs a health line on the health interval.
func (g *Governor) Start() {
	g.wg.Add(1)
	go g.monitor()
	g.log.WithFields(logrus.Fields{
		"resource_check_interval": g.resourceInterval.String(),
		"health_check_interval":   g.healthInterval.String(),
	}).Info("Governor monitor started")
}

// Stop shuts the monitor loop down and waits for it to exit. Stop is
// idempotent.
func (g *Governor) Stop() {
	g.stopOnce.Do(func() {
		close(g.stop)
	})
	g.wg.Wait()
	g.log.Info("Governor monitor stopped")
}

func (g *Governor) monitor() {
	defer g.wg.Done()

	resourceTicker := time.NewTicker(g.resourceInterval)
	defer resourceTicker.Stop()
	healthTicker := time.NewTicker(g.healthInterval)
	defer healthTicker.Stop()

	for {
		select {
		case <-g.stop:
			return
		case <-resourceTicker.C:
			g.sampleUsage()
		case <-healthTicker.C:
			g.sampleHealth()
		}
	}
}

func (g *Governor) sampleUsage() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for res, used := range g.usage {
		if g.metrics != nil {
			g.metrics.SetUsage(string(res), used)
		}
		g.log.WithFields(logrus.Fields{
			"resource": res,
			"usage":    used,
			"limit":    g.limits[res],
		}).Debug("Resource usage sampled")
	}
	g.signalPressureLocked()
}

func (g *Governor) sampleHealth() {
	usage := g.Usage()
	limits := g.Limits()

	healthy := true
	for res, used := range usage {
		if limit := limits[res]; limit > 0 && float64(used)/float64(limit) > g.threshold {
			healthy = false
		}
	}

	g.log.WithFields(logrus.Fields{
		"healthy": healthy,
		"usage":   usage,
	}).Info("Governor health check")
}
