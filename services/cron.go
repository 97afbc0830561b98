package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"pdf-query-system/internal/logger"
)

const staleSweepTag = "stale-pdf-sweep"

// StaleMarker fails PDFs that stopped making progress.
type StaleMarker interface {
	MarkStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CronService runs periodic maintenance on the pdfs collection.
type CronService struct {
	scheduler *gocron.Scheduler
	pdfs      StaleMarker
	cronExpr  string
	olderThan time.Duration
}

func NewCronService(pdfs StaleMarker, cronExpr string, olderThan time.Duration) *CronService {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &CronService{
		scheduler: s,
		pdfs:      pdfs,
		cronExpr:  cronExpr,
		olderThan: olderThan,
	}
}

// Start registers the sweep and runs the scheduler in the background.
func (c *CronService) Start() error {
	if _, err := c.scheduler.Cron(c.cronExpr).Tag(staleSweepTag).Do(c.sweep); err != nil {
		return err
	}
	c.scheduler.StartAsync()
	logger.Info("cron service started", "job", staleSweepTag, "schedule", c.cronExpr)
	return nil
}

func (c *CronService) Stop() {
	c.scheduler.Stop()
}

func (c *CronService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := c.RunSweep(ctx); err != nil {
		logger.Error("stale pdf sweep failed", "error", err)
	}
}

// RunSweep marks stale PDFs failed once and reports how many changed.
func (c *CronService) RunSweep(ctx context.Context) (int64, error) {
	n, err := c.pdfs.MarkStale(ctx, c.olderThan)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Warn("marked stale pdfs as failed", "count", n, "older_than", c.olderThan.String())
	}
	return n, nil
}
