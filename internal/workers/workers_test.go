package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub-dev/schoolhub/internal/mailer"
	"github.com/schoolhub-dev/schoolhub/internal/models"
	"github.com/schoolhub-dev/schoolhub/internal/tasks"
	"github.com/schoolhub-dev/schoolhub/internal/testutil"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg mailer.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "msg-1", nil
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	types []string
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, task.Type())
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func (f *fakeEnqueuer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.types)
}

type fakePruner struct {
	n   int64
	err error
}

func (f fakePruner) PruneSessions(ctx context.Context) (int64, error) { return f.n, f.err }

func TestHandleInquiryNotification(t *testing.T) {
	db := testutil.NewDB(t)
	subject := "Admissions"
	inquiry := models.ContactInquiry{Name: "Ann", Email: "ann@example.com", Subject: &subject, Message: "hello"}
	require.NoError(t, db.Create(&inquiry).Error)

	task, err := tasks.NewInquiryNotificationTask(inquiry.ID)
	require.NoError(t, err)

	sender := &fakeSender{}
	require.NoError(t, HandleInquiryNotification(context.Background(), task, db, sender, "office@example.com", zerolog.Nop()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"office@example.com"}, sender.sent[0].To)
	assert.Equal(t, "ann@example.com", sender.sent[0].ReplyTo)

	// Missing rows and a missing office address are not retried
	missing, _ := tasks.NewInquiryNotificationTask("gone")
	assert.NoError(t, HandleInquiryNotification(context.Background(), missing, db, sender, "office@example.com", zerolog.Nop()))
	assert.NoError(t, HandleInquiryNotification(context.Background(), task, db, sender, "", zerolog.Nop()))
	assert.Len(t, sender.sent, 1)

	sender.err = errors.New("provider down")
	assert.Error(t, HandleInquiryNotification(context.Background(), task, db, sender, "office@example.com", zerolog.Nop()))
}

func TestHandleNewsletterWelcomeSkipsInactive(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.Create(&models.NewsletterSubscription{Email: "a@example.com", IsActive: true}).Error)
	sub := models.NewsletterSubscription{Email: "b@example.com", IsActive: true}
	require.NoError(t, db.Create(&sub).Error)
	require.NoError(t, db.Model(&sub).Update("is_active", false).Error)

	sender := &fakeSender{}
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		task, err := tasks.NewNewsletterWelcomeTask(email)
		require.NoError(t, err)
		require.NoError(t, HandleNewsletterWelcome(context.Background(), task, db, sender, zerolog.Nop()))
	}

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"a@example.com"}, sender.sent[0].To)
}

func TestHandlePruneSessions(t *testing.T) {
	task, _ := tasks.NewPruneSessionsTask()
	assert.NoError(t, HandlePruneSessions(context.Background(), task, fakePruner{n: 3}, zerolog.Nop()))
	assert.Error(t, HandlePruneSessions(context.Background(), task, fakePruner{err: errors.New("db")}, zerolog.Nop()))
}

func TestNextRun(t *testing.T) {
	from := time.Date(2026, 1, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		expr string
		want *time.Time
	}{
		{"0 * * * *", ptr(time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC))},
		{"@daily", ptr(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))},
		{"", nil},
		{"not a schedule", nil},
	}
	for _, tt := range tests {
		got := NextRun(tt.expr, from)
		if tt.want == nil {
			assert.Nil(t, got, tt.expr)
			continue
		}
		require.NotNil(t, got, tt.expr)
		assert.True(t, tt.want.Equal(*got), "%s: got %v", tt.expr, got)
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestStartPruneScheduler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeEnqueuer{}

	done := make(chan error, 1)
	go func() { done <- StartPruneScheduler(ctx, client, "0 * * * *", zerolog.Nop()) }()

	assert.Eventually(t, func() bool { return client.count() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	assert.Error(t, StartPruneScheduler(context.Background(), client, "bogus", zerolog.Nop()))
}
