package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/balkly/backend/internal/mailer"
	"github.com/balkly/backend/internal/models"
	"github.com/balkly/backend/pkg/queue"
)

// EmailLogStore persists finished delivery entries for the partner back
// office. The processor stamps status, sent_at and error_message before
// handing the entry over.
type EmailLogStore interface {
	RecordSent(ctx context.Context, l *models.EmailLog) error
	RecordFailed(ctx context.Context, l *models.EmailLog, sendErr error) error
}

// EmailProcessor processes transactional email jobs: send via SMTP, log outcome.
type EmailProcessor struct {
	mailer mailer.Mailer
	logs   EmailLogStore
	queue  *queue.Queue
	logger *zap.Logger
}

// NewEmailProcessor creates an email job processor.
func NewEmailProcessor(m mailer.Mailer, logs EmailLogStore, q *queue.Queue, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{mailer: m, logs: logs, queue: q, logger: logger}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	entry := &models.EmailLog{
		PartnerID:      payload.PartnerID,
		VoucherID:      payload.VoucherID,
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
	}

	if err := p.mailer.Send(payload.RecipientEmail, payload.Subject, payload.BodyHTML); err != nil {
		entry.Status = models.EmailLogStatusFailed
		entry.ErrorMessage = err.Error()
		if p.logs != nil {
			if logErr := p.logs.RecordFailed(ctx, entry, err); logErr != nil {
				p.logger.Error("record failed email failed", zap.Error(logErr))
			}
		}
		return fmt.Errorf("send email: %w", err)
	}

	sentAt := time.Now()
	entry.Status = models.EmailLogStatusSent
	entry.SentAt = &sentAt
	if p.logs != nil {
		if err := p.logs.RecordSent(ctx, entry); err != nil {
			p.logger.Error("record sent email failed", zap.Error(err))
		}
	}
	p.logger.Info("email sent",
		zap.String("email_type", payload.EmailType),
		zap.String("recipient", payload.RecipientEmail))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}

// VoucherExpirer bulk-marks lapsed vouchers.
type VoucherExpirer interface {
	ExpireLapsed(ctx context.Context) (int64, error)
}

// ExpirySweeper periodically flips issued vouchers past their expiry to
// expired. Reads are already judged against server time, so the sweep only
// keeps stored rows and reports tidy.
type ExpirySweeper struct {
	vouchers VoucherExpirer
	interval time.Duration
	logger   *zap.Logger
}

// NewExpirySweeper creates a sweeper. interval <= 0 defaults to 10 minutes.
func NewExpirySweeper(vouchers VoucherExpirer, interval time.Duration, logger *zap.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpirySweeper{vouchers: vouchers, interval: interval, logger: logger}
}

// Run sweeps on a ticker until ctx is done.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopping")
			return
		case <-ticker.C:
			n, err := s.vouchers.ExpireLapsed(ctx)
			if err != nil {
				s.logger.Warn("expiry sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("expired lapsed vouchers", zap.Int64("count", n))
			}
		}
	}
}
