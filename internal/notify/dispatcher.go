package notify

import (
	"context"
	"sync"
	"time"
)

const (
	defaultWorkers     = 2
	defaultQueueSize   = 100
	defaultSendTimeout = 30 * time.Second
)

type task struct {
	kind string
	fn   func(ctx context.Context) error
}

// Dispatcher выполняет отправку уведомлений на фиксированном пуле воркеров.
// Dispatch никогда не блокирует вызывающего: при переполненной очереди задача отбрасывается с записью в лог.
type Dispatcher struct {
	queue   chan task
	timeout time.Duration
	logger  Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher создает и запускает пул воркеров
func NewDispatcher(workers, queueSize int, timeout time.Duration, logger Logger) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	d := &Dispatcher{
		queue:   make(chan task, queueSize),
		timeout: timeout,
		logger:  logger,
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}

	return d
}

// Dispatch ставит задачу в очередь. Возвращает false, если очередь заполнена или диспетчер закрыт
func (d *Dispatcher) Dispatch(kind string, fn func(ctx context.Context) error) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("Dispatcher: closed, dropping %s", kind)
		return false
	}

	select {
	case d.queue <- task{kind: kind, fn: fn}:
		return true
	default:
		d.logger.Warn("Dispatcher: queue is full, dropping %s", kind)
		return false
	}
}

// Close перестает принимать задачи и дожидается выполнения уже поставленных
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.queue {
		d.run(t)
	}
}

func (d *Dispatcher) run(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Dispatcher: %s panicked: %v", t.kind, r)
		}
	}()

	if err := t.fn(ctx); err != nil {
		d.logger.Error("Dispatcher: %s failed: %v", t.kind, err)
	}
}
