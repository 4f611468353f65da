package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const defaultLockTTL = 5 * time.Minute

// Result итог одного запуска задачи
type Result struct {
	Processed int
	Failed    int
}

// Job фоновая задача. Run получает момент запуска, а не читает часы сам
type Job interface {
	Name() string
	Run(ctx context.Context, now time.Time) (Result, error)
}

type entry struct {
	job     Job
	trigger Trigger
}

// Scheduler запускает каждую задачу в своей горутине по её триггеру.
// Медленная задача задерживает только себя.
type Scheduler struct {
	entries []entry
	locker  Locker
	lockTTL time.Duration
	metrics Metrics
	clock   TimeProvider
	logger  Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New создает планировщик. locker и metrics могут быть nil
func New(locker Locker, lockTTL time.Duration, metrics Metrics, logger Logger) *Scheduler {
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &Scheduler{
		locker:  locker,
		lockTTL: lockTTL,
		metrics: metrics,
		clock:   &RealTimeProvider{},
		logger:  logger,
	}
}

// WithTimeProvider устанавливает провайдер времени (для тестирования)
func (s *Scheduler) WithTimeProvider(tp TimeProvider) *Scheduler {
	s.clock = tp
	return s
}

// Register добавляет задачу. Вызывать до Start
func (s *Scheduler) Register(job Job, trigger Trigger) {
	s.entries = append(s.entries, entry{job: job, trigger: trigger})
}

// Start запускает все зарегистрированные задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	for _, e := range s.entries {
		s.logger.Info("Scheduler: job %s scheduled %s", e.job.Name(), e.trigger)
		s.wg.Add(1)
		go s.loop(ctx, e)
	}
}

// Stop останавливает планировщик и ждёт завершения выполняющихся задач
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("Scheduler: stopped")
}

func (s *Scheduler) loop(ctx context.Context, e entry) {
	defer s.wg.Done()

	for {
		fireAt := e.trigger.Next(s.clock.Now())
		timer := time.NewTimer(fireAt.Sub(s.clock.Now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.RunNow(ctx, e.job, fireAt)
	}
}

// RunNow выполняет задачу для запланированного момента fireAt под блокировкой.
// Блокировка не снимается после выполнения: ключ привязан к fireAt и истекает сам,
// поэтому другие экземпляры пропускают этот запуск.
func (s *Scheduler) RunNow(ctx context.Context, job Job, fireAt time.Time) {
	name := job.Name()

	if s.locker != nil {
		key := fmt.Sprintf("%s:%d", name, fireAt.Unix())
		_, ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
		if err != nil {
			s.logger.Error("Scheduler: job %s: failed to acquire lock: %v", name, err)
			return
		}
		if !ok {
			s.logger.Info("Scheduler: job %s skipped, lock is held by another instance", name)
			if s.metrics != nil {
				s.metrics.ObserveJobSkipped(name)
			}
			return
		}
	}

	started := time.Now()
	result, err := s.safeRun(ctx, job)
	duration := time.Since(started)

	if s.metrics != nil {
		s.metrics.ObserveJobRun(name, result.Processed, result.Failed, duration, err)
	}
	if err != nil {
		s.logger.Error("Scheduler: job %s failed after %s: %v", name, duration, err)
		return
	}
	s.logger.Info("Scheduler: job %s done in %s, processed=%d, failed=%d", name, duration, result.Processed, result.Failed)
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx, s.clock.Now())
}
