package services

import (
	"context"
	"errors"
	"sync"

	"entity-links/models"

	"go.uber.org/zap"
)

// ReportInbox is a durable queue of report batches.
type ReportInbox interface {
	Pending(ctx context.Context) ([]string, error)
	Read(ctx context.Context, key string) ([]models.LinkUpdateReport, error)
	Ack(ctx context.Context, key string) error
}

// ReportConsumer drains the report inbox. A batch is acknowledged only after
// it was applied, so a failed batch is retried on the next poll.
type ReportConsumer struct {
	inbox   ReportInbox
	reports *ReportService
	logger  *zap.Logger
	mu      sync.Mutex
}

func NewReportConsumer(inbox ReportInbox, reports *ReportService, logger *zap.Logger) *ReportConsumer {
	return &ReportConsumer{inbox: inbox, reports: reports, logger: logger}
}

// Poll applies every pending batch and returns the number of acknowledged ones.
func (c *ReportConsumer) Poll(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.inbox.Pending(ctx)
	if err != nil {
		return 0, err
	}

	var (
		acked int
		errs  []error
	)
	for _, key := range keys {
		log := c.logger.With(zap.String("key", key))
		reports, err := c.inbox.Read(ctx, key)
		if err != nil {
			log.Error("Failed to read report batch", zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if err := c.reports.Apply(ctx, reports); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := c.inbox.Ack(ctx, key); err != nil {
			log.Error("Failed to acknowledge report batch", zap.Error(err))
			errs = append(errs, err)
			continue
		}
		acked++
		log.Debug("Report batch processed", zap.Int("reports", len(reports)))
	}
	return acked, errors.Join(errs...)
}
