package stats

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultRefreshSpec re-anchors long-lived sessions to server truth every
// five minutes even when no mutations arrive.
const DefaultRefreshSpec = "@every 5m"

// Refresher runs the service's silent refresh on a cron schedule.
type Refresher struct {
	svc  *Service
	spec string
	cron *cron.Cron
	log  *slog.Logger
}

// NewRefresher creates a refresher. An empty spec uses the default.
func NewRefresher(svc *Service, spec string, log *slog.Logger) *Refresher {
	if spec == "" {
		spec = DefaultRefreshSpec
	}
	if log == nil {
		log = slog.Default()
	}
	return &Refresher{
		svc:  svc,
		spec: spec,
		log:  log.With("component", "stats-refresher"),
	}
}

// Start schedules the periodic refresh.
func (r *Refresher) Start() error {
	c := cron.New()
	_, err := c.AddFunc(r.spec, func() {
		r.log.Debug("running scheduled silent refresh")
		r.svc.SilentRefresh(context.Background())
	})
	if err != nil {
		return err
	}
	c.Start()
	r.cron = c
	r.log.Info("periodic stats refresh scheduled", "spec", r.spec)
	return nil
}

// Stop cancels the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
		r.cron = nil
	}
}
