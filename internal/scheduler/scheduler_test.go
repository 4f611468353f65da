package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/AppointmentService/internal/domain"
	appointmentRepo "github.com/m04kA/AppointmentService/internal/infra/storage/appointment"
	"github.com/m04kA/AppointmentService/internal/service/appointments"
	"github.com/m04kA/AppointmentService/pkg/joblock"
	"github.com/m04kA/AppointmentService/pkg/logger"
	"github.com/m04kA/AppointmentService/pkg/types"
)

var eet = time.FixedZone("EET", 2*60*60)

// memRepo хранилище в памяти с семантикой фильтра настоящего репозитория
type memRepo struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*domain.Appointment
	findErr      error
}

func newMemRepo(appts ...*domain.Appointment) *memRepo {
	r := &memRepo{appointments: map[uuid.UUID]*domain.Appointment{}}
	for _, a := range appts {
		r.appointments[a.ID] = a
	}
	return r
}

func (r *memRepo) Find(_ context.Context, filter domain.AppointmentFilter) ([]*domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}

	out := make([]*domain.Appointment, 0)
	for _, a := range r.appointments {
		if filter.From != nil && a.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && a.Date.After(*filter.To) {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, a.Status) {
			continue
		}
		if filter.UnsentNotification != "" && a.Notifications.Get(filter.UnsentNotification).Sent {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Time.IsBefore(out[j].Time)
	})
	return out, nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, appointmentRepo.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) ChangeStatus(_ context.Context, id uuid.UUID, change domain.StatusChange, allowedFrom []domain.AppointmentStatus) (*domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, appointmentRepo.ErrAppointmentNotFound
	}
	if len(allowedFrom) > 0 && !hasStatus(allowedFrom, a.Status) {
		return nil, appointmentRepo.ErrStatusConflict
	}
	a.ApplyStatus(change)
	cp := *a
	return &cp, nil
}

func (r *memRepo) MarkNotificationSent(_ context.Context, id uuid.UUID, kind domain.NotificationKind, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return false, appointmentRepo.ErrAppointmentNotFound
	}
	return a.Notifications.MarkSent(kind, at), nil
}

func hasStatus(list []domain.AppointmentStatus, s domain.AppointmentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fakeNotifier struct {
	mu        sync.Mutex
	reminders []uuid.UUID
	followUps []uuid.UUID
	summaries [][]*domain.Appointment
	failFor   map[uuid.UUID]bool
}

func (n *fakeNotifier) SendReminder(_ context.Context, a *domain.Appointment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[a.ID] {
		return errors.New("smtp timeout")
	}
	n.reminders = append(n.reminders, a.ID)
	return nil
}

func (n *fakeNotifier) SendFollowUp(_ context.Context, a *domain.Appointment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.followUps = append(n.followUps, a.ID)
	return nil
}

func (n *fakeNotifier) SendDailySummary(_ context.Context, _ time.Time, appts []*domain.Appointment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, appts)
	return nil
}

func (n *fakeNotifier) SendCancellationAlert(context.Context, *domain.Appointment) error { return nil }

type passthroughTx struct{}

func (passthroughTx) Do(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type syncDispatcher struct{}

func (syncDispatcher) Dispatch(_ string, fn func(ctx context.Context) error) bool {
	_ = fn(context.Background())
	return true
}

type fixedTime time.Time

func (t fixedTime) Now() time.Time { return time.Time(t) }

type recordingMetrics struct {
	mu      sync.Mutex
	runs    map[string]int
	skipped map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{runs: map[string]int{}, skipped: map[string]int{}}
}

func (m *recordingMetrics) ObserveJobRun(job string, _, _ int, _ time.Duration, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[job]++
}

func (m *recordingMetrics) ObserveJobSkipped(job string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped[job]++
}

// Пятница 2025-03-07 10:00 по EET
var now = time.Date(2025, 3, 7, 10, 0, 0, 0, eet)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seed(day time.Time, at string, status domain.AppointmentStatus) *domain.Appointment {
	a := &domain.Appointment{
		ID:       uuid.New(),
		Date:     day,
		Time:     types.MustTimeString(at),
		Snapshot: domain.NewSnapshot(60, 250, "RON"),
		Client: domain.ClientInfo{
			Name:           "Ana",
			Email:          "ana@example.com",
			Phone:          "+40700000000",
			EmailReminders: true,
		},
	}
	a.ApplyStatus(domain.StatusChange{Status: domain.StatusNew, Actor: domain.ClientActor, At: now.Add(-72 * time.Hour)})
	if status != domain.StatusNew {
		a.ApplyStatus(domain.StatusChange{Status: status, Actor: "admin:1", At: now.Add(-48 * time.Hour)})
	}
	return a
}

func TestReminderJob_SendsOnceForTomorrow(t *testing.T) {
	tomorrow := date(2025, 3, 8)
	due := seed(tomorrow, "10:00", domain.StatusConfirmed)
	optedOut := seed(tomorrow, "12:00", domain.StatusNew)
	optedOut.Client.EmailReminders = false
	cancelled := seed(tomorrow, "14:00", domain.StatusCancelled)
	dayAfter := seed(date(2025, 3, 9), "10:00", domain.StatusConfirmed)

	repo := newMemRepo(due, optedOut, cancelled, dayAfter)
	notifier := &fakeNotifier{}
	job := NewReminderJob(repo, notifier, eet, logger.NewNop())

	result, err := job.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 1}, result)
	assert.Equal(t, []uuid.UUID{due.ID}, notifier.reminders)

	flag := repo.appointments[due.ID].Notifications.Reminder24h
	assert.True(t, flag.Sent)
	require.NotNil(t, flag.SentAt)
	assert.Equal(t, now, *flag.SentAt)

	result, err = job.Run(context.Background(), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
	assert.Len(t, notifier.reminders, 1)
}

func TestReminderJob_FailureIsIsolated(t *testing.T) {
	tomorrow := date(2025, 3, 8)
	failing := seed(tomorrow, "09:00", domain.StatusNew)
	ok := seed(tomorrow, "11:00", domain.StatusNew)

	repo := newMemRepo(failing, ok)
	notifier := &fakeNotifier{failFor: map[uuid.UUID]bool{failing.ID: true}}
	job := NewReminderJob(repo, notifier, eet, logger.NewNop())

	result, err := job.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 1, Failed: 1}, result)
	assert.Equal(t, []uuid.UUID{ok.ID}, notifier.reminders)
	assert.False(t, repo.appointments[failing.ID].Notifications.Reminder24h.Sent)
}

func TestReminderJob_LoadFailure(t *testing.T) {
	repo := newMemRepo()
	repo.findErr = errors.New("connection refused")
	job := NewReminderJob(repo, &fakeNotifier{}, eet, logger.NewNop())

	_, err := job.Run(context.Background(), now)
	assert.ErrorIs(t, err, ErrLoadAppointments)
}

func TestFollowUpJob_OnlyCompletedYesterday(t *testing.T) {
	yesterday := date(2025, 3, 6)
	completed := seed(yesterday, "10:00", domain.StatusCompleted)
	noShow := seed(yesterday, "12:00", domain.StatusNoShow)
	completedToday := seed(date(2025, 3, 7), "09:00", domain.StatusCompleted)

	repo := newMemRepo(completed, noShow, completedToday)
	notifier := &fakeNotifier{}
	job := NewFollowUpJob(repo, notifier, eet, logger.NewNop())

	result, err := job.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 1}, result)
	assert.Equal(t, []uuid.UUID{completed.ID}, notifier.followUps)
	assert.True(t, repo.appointments[completed.ID].Notifications.FollowUp.Sent)

	_, err = job.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Len(t, notifier.followUps, 1)
}

func TestDailySummaryJob(t *testing.T) {
	today := date(2025, 3, 7)
	first := seed(today, "09:00", domain.StatusConfirmed)
	cancelled := seed(today, "11:00", domain.StatusCancelled)
	other := seed(date(2025, 3, 8), "09:00", domain.StatusConfirmed)

	notifier := &fakeNotifier{}
	job := NewDailySummaryJob(newMemRepo(first, cancelled, other), notifier, eet, logger.NewNop())

	result, err := job.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 1}, result)
	require.Len(t, notifier.summaries, 1)
	require.Len(t, notifier.summaries[0], 2)
	assert.Equal(t, first.ID, notifier.summaries[0][0].ID)
	assert.Equal(t, cancelled.ID, notifier.summaries[0][1].ID)
}

func TestDailySummaryJob_SkipsEmptyDay(t *testing.T) {
	notifier := &fakeNotifier{}
	job := NewDailySummaryJob(newMemRepo(), notifier, eet, logger.NewNop())

	result, err := job.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
	assert.Empty(t, notifier.summaries)
}

func TestNoShowJob_MarksExpiredAppointments(t *testing.T) {
	today := date(2025, 3, 7)
	// закончилась в 08:00, grace 2 часа истек ровно в 10:00, еще не "больше"
	borderline := seed(today, "07:00", domain.StatusNew)
	expired := seed(today, "06:30", domain.StatusNew)
	yesterday := seed(date(2025, 3, 6), "16:00", domain.StatusConfirmed)
	completed := seed(date(2025, 3, 6), "10:00", domain.StatusCompleted)
	later := seed(today, "15:00", domain.StatusConfirmed)

	repo := newMemRepo(borderline, expired, yesterday, completed, later)
	historyBefore := map[uuid.UUID]int{expired.ID: len(expired.StatusHistory), yesterday.ID: len(yesterday.StatusHistory)}
	svc := appointments.NewService(repo, passthroughTx{}, &fakeNotifier{}, syncDispatcher{}, eet, logger.NewNop()).
		WithTimeProvider(fixedTime(now))
	job := NewNoShowJob(repo, svc, eet, 2*time.Hour, logger.NewNop())

	result, err := job.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 2}, result)

	for _, a := range []*domain.Appointment{expired, yesterday} {
		stored := repo.appointments[a.ID]
		assert.Equal(t, domain.StatusNoShow, stored.Status)
		require.Len(t, stored.StatusHistory, historyBefore[a.ID]+1)
		last := stored.StatusHistory[len(stored.StatusHistory)-1]
		assert.Equal(t, domain.StatusNoShow, last.Status)
		assert.Equal(t, domain.SystemActor, last.Actor)
		assert.Equal(t, domain.Notifications{}, stored.Notifications)
	}
	assert.Equal(t, domain.StatusNew, repo.appointments[borderline.ID].Status)
	assert.Equal(t, domain.StatusCompleted, repo.appointments[completed.ID].Status)
	assert.Equal(t, domain.StatusConfirmed, repo.appointments[later.ID].Status)
}

type conflictingService struct{}

func (conflictingService) MarkNoShow(context.Context, uuid.UUID) error {
	return appointments.ErrStatusConflict
}

type failingService struct{}

func (failingService) MarkNoShow(context.Context, uuid.UUID) error {
	return appointments.ErrInternal
}

func TestNoShowJob_ConcurrentChangeIsNotAFailure(t *testing.T) {
	repo := newMemRepo(seed(date(2025, 3, 6), "10:00", domain.StatusNew))

	result, err := NewNoShowJob(repo, conflictingService{}, eet, 2*time.Hour, logger.NewNop()).Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)

	result, err = NewNoShowJob(repo, failingService{}, eet, 2*time.Hour, logger.NewNop()).Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, result)
}

func TestDailyAt(t *testing.T) {
	trigger := DailyAt(types.MustTimeString("08:00"), eet)

	assert.Equal(t, time.Date(2025, 3, 8, 8, 0, 0, 0, eet), trigger.Next(now))
	assert.Equal(t, time.Date(2025, 3, 7, 8, 0, 0, 0, eet), trigger.Next(time.Date(2025, 3, 7, 7, 59, 0, 0, eet)))
	assert.Equal(t, time.Date(2025, 3, 8, 8, 0, 0, 0, eet), trigger.Next(time.Date(2025, 3, 7, 8, 0, 0, 0, eet)))
}

func TestEvery(t *testing.T) {
	trigger := Every(time.Hour)

	next := trigger.Next(time.Date(2025, 3, 7, 10, 17, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 3, 7, 11, 0, 0, 0, time.UTC), next)
	assert.Equal(t, next, trigger.Next(time.Date(2025, 3, 7, 10, 59, 59, 0, time.UTC)))
}

type countingJob struct {
	runs int32
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(context.Context, time.Time) (Result, error) {
	atomic.AddInt32(&j.runs, 1)
	return Result{Processed: 1}, nil
}

type panickingJob struct{}

func (panickingJob) Name() string { return "panicking" }

func (panickingJob) Run(context.Context, time.Time) (Result, error) { panic("boom") }

func TestScheduler_LockSkipsSecondInstance(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	metrics := newRecordingMetrics()
	job := &countingJob{}
	fireAt := time.Date(2025, 3, 7, 8, 0, 0, 0, eet)

	first := New(joblock.NewRedisLocker(rdb, "test"), time.Minute, metrics, logger.NewNop()).WithTimeProvider(fixedTime(now))
	second := New(joblock.NewRedisLocker(rdb, "test"), time.Minute, metrics, logger.NewNop()).WithTimeProvider(fixedTime(now))

	first.RunNow(context.Background(), job, fireAt)
	second.RunNow(context.Background(), job, fireAt)

	assert.Equal(t, int32(1), atomic.LoadInt32(&job.runs))
	assert.Equal(t, 1, metrics.runs["counting"])
	assert.Equal(t, 1, metrics.skipped["counting"])

	second.RunNow(context.Background(), job, fireAt.AddDate(0, 0, 1))
	assert.Equal(t, int32(2), atomic.LoadInt32(&job.runs))
}

func TestScheduler_LockOutlivesRunAndExpiresByTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	job := &countingJob{}
	fireAt := time.Date(2025, 3, 7, 8, 0, 0, 0, eet)
	key := fmt.Sprintf("test:counting:%d", fireAt.Unix())
	s := New(joblock.NewRedisLocker(rdb, "test"), time.Minute, nil, logger.NewNop()).WithTimeProvider(fixedTime(now))

	s.RunNow(context.Background(), job, fireAt)

	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	mr.FastForward(time.Minute)
	assert.False(t, mr.Exists(key))
}

func TestScheduler_PanicIsRecorded(t *testing.T) {
	metrics := newRecordingMetrics()
	s := New(joblock.NopLocker{}, time.Minute, metrics, logger.NewNop())

	assert.NotPanics(t, func() {
		s.RunNow(context.Background(), panickingJob{}, now)
	})
	assert.Equal(t, 1, metrics.runs["panicking"])
}

func TestScheduler_StartStop(t *testing.T) {
	job := &countingJob{}
	s := New(nil, time.Minute, nil, logger.NewNop())
	s.Register(job, Every(10*time.Millisecond))

	s.Start(context.Background())
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&job.runs) >= 2
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	runs := atomic.LoadInt32(&job.runs)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, runs, atomic.LoadInt32(&job.runs))
}
