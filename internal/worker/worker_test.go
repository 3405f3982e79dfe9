package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/balkly/backend/internal/models"
	"github.com/balkly/backend/pkg/queue"
)

type fakeMailer struct {
	sendErr error
	sent    []string
}

func (f *fakeMailer) Send(to, subject, bodyHTML string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakeEmailLogStore struct {
	sentLogs   []*models.EmailLog
	failedLogs []*models.EmailLog
}

func (f *fakeEmailLogStore) RecordSent(_ context.Context, l *models.EmailLog) error {
	f.sentLogs = append(f.sentLogs, l)
	return nil
}

func (f *fakeEmailLogStore) RecordFailed(_ context.Context, l *models.EmailLog, _ error) error {
	f.failedLogs = append(f.failedLogs, l)
	return nil
}

func emailJob(t *testing.T) *queue.Job {
	t.Helper()
	partnerID := uuid.New()
	payload, err := json.Marshal(queue.EmailPayload{
		EmailType:      models.EmailTypeVoucherClaimed,
		PartnerID:      &partnerID,
		RecipientEmail: "holder@example.com",
		Subject:        "Your Balkly voucher",
		BodyHTML:       "<p>hi</p>",
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &queue.Job{
		ID:        uuid.New().String(),
		Type:      queue.JobTypeEmail,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

func TestEmailProcessorSendsAndLogs(t *testing.T) {
	m := &fakeMailer{}
	logs := &fakeEmailLogStore{}
	p := NewEmailProcessor(m, logs, nil, nil)

	if err := p.Process(context.Background(), emailJob(t)); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(m.sent) != 1 || m.sent[0] != "holder@example.com" {
		t.Fatalf("sent = %v", m.sent)
	}
	if len(logs.sentLogs) != 1 {
		t.Fatalf("sent logs = %d, want 1", len(logs.sentLogs))
	}
	if logs.sentLogs[0].Status != models.EmailLogStatusSent {
		t.Errorf("log status = %s", logs.sentLogs[0].Status)
	}
	if logs.sentLogs[0].SentAt == nil {
		t.Error("sent log missing sent_at")
	}
}

func TestEmailProcessorLogsFailure(t *testing.T) {
	m := &fakeMailer{sendErr: errors.New("smtp down")}
	logs := &fakeEmailLogStore{}
	p := NewEmailProcessor(m, logs, nil, nil)

	if err := p.Process(context.Background(), emailJob(t)); err == nil {
		t.Fatal("Process succeeded with a failing mailer")
	}
	if len(logs.failedLogs) != 1 {
		t.Fatalf("failed logs = %d, want 1", len(logs.failedLogs))
	}
	if logs.failedLogs[0].Status != models.EmailLogStatusFailed {
		t.Errorf("log status = %s", logs.failedLogs[0].Status)
	}
	if logs.failedLogs[0].ErrorMessage != "smtp down" {
		t.Errorf("log error = %q", logs.failedLogs[0].ErrorMessage)
	}
	if len(logs.sentLogs) != 0 {
		t.Fatal("failure also recorded a sent log")
	}
}

func TestEmailProcessorRejectsUnknownJobType(t *testing.T) {
	p := NewEmailProcessor(&fakeMailer{}, &fakeEmailLogStore{}, nil, nil)
	job := &queue.Job{ID: "x", Type: "unknown", Payload: []byte(`{}`)}
	if err := p.Process(context.Background(), job); err == nil {
		t.Fatal("Process accepted unknown job type")
	}
}

type fakeExpirer struct {
	calls int
	n     int64
}

func (f *fakeExpirer) ExpireLapsed(_ context.Context) (int64, error) {
	f.calls++
	return f.n, nil
}

func TestExpirySweeperRunsUntilCancelled(t *testing.T) {
	exp := &fakeExpirer{n: 3}
	s := NewExpirySweeper(exp, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
	if exp.calls == 0 {
		t.Fatal("sweeper never swept")
	}
}
