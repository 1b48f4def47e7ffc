package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"trading-backtestv1/internal/logger"
)

// ErrNotFound is returned for unknown job handles.
var ErrNotFound = errors.New("job not found")

// ProgressFunc reports a job's percentage and a short message.
type ProgressFunc func(percent int, message string)

// Func is the work of a job. The returned value becomes the job result.
type Func func(ctx context.Context, progress ProgressFunc) (any, error)

// Event is delivered to listeners on every status transition.
type Event struct {
	Snapshot Snapshot
	Result   any
}

// Listener reacts to status transitions. Listeners run one at a time on the
// manager's dispatch goroutine, in transition order, so a slow listener delays
// other listeners but never a job or its caller.
type Listener func(Event)

// Manager starts jobs, bounds their concurrency and fans out updates.
type Manager struct {
	registry *Registry
	ctx      context.Context
	sem      chan struct{}
	wg       sync.WaitGroup
	now      func() time.Time

	mu        sync.RWMutex
	listeners []Listener
	subs      map[int]chan Snapshot
	nextSub   int

	qmu       sync.Mutex
	queue     []Event
	wake      chan struct{}
	quit      chan struct{}
	drained   chan struct{}
	closeOnce sync.Once
}

// NewManager creates a manager running at most maxConcurrent jobs at once.
// ctx is the parent of every job context.
func NewManager(ctx context.Context, maxConcurrent int) *Manager {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	m := &Manager{
		registry: NewRegistry(),
		ctx:      ctx,
		sem:      make(chan struct{}, maxConcurrent),
		now:      time.Now,
		subs:     make(map[int]chan Snapshot),
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		drained:  make(chan struct{}),
	}
	go m.dispatch()
	return m
}

// Registry exposes the underlying registry.
func (m *Manager) Registry() *Registry { return m.registry }

// OnEvent registers a listener for status transitions.
func (m *Manager) OnEvent(l Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// Subscribe returns a channel of snapshots (transitions and progress) and a
// cancel func. Updates are dropped for subscribers whose buffer is full.
func (m *Manager) Subscribe(buffer int) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, buffer)
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// Submit registers a pending job, starts it in the background and returns
// its handle immediately.
func (m *Manager) Submit(kind string, fn Func) string {
	id := uuid.NewString()
	j := newJob(id, kind, m.now().UTC())
	m.registry.add(j)
	m.publish(Event{Snapshot: j.Snapshot()}, true)

	m.wg.Add(1)
	go m.run(j, fn)
	return id
}

// Get returns the current snapshot for id.
func (m *Manager) Get(id string) (Snapshot, error) {
	j, ok := m.registry.Get(id)
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return j.Snapshot(), nil
}

// Result returns the result of a completed job. ok is false while the job is
// still pending or running, or when it failed.
func (m *Manager) Result(id string) (result any, s Snapshot, err error) {
	j, ok := m.registry.Get(id)
	if !ok {
		return nil, Snapshot{}, ErrNotFound
	}
	res, _ := j.Result()
	return res, j.Snapshot(), nil
}

// Wait blocks until the job is terminal or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (Snapshot, error) {
	j, ok := m.registry.Get(id)
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	select {
	case <-j.Done():
		return j.Snapshot(), nil
	case <-ctx.Done():
		return j.Snapshot(), ctx.Err()
	}
}

// Close waits for every started job to finish, then for the listeners to
// see every queued transition.
func (m *Manager) Close() {
	m.wg.Wait()
	m.closeOnce.Do(func() { close(m.quit) })
	<-m.drained
}

func (m *Manager) run(j *Job, fn Func) {
	defer m.wg.Done()

	select {
	case m.sem <- struct{}{}:
	case <-m.ctx.Done():
		m.finish(j, nil, fmt.Errorf("not started: %w", m.ctx.Err()))
		return
	}
	defer func() { <-m.sem }()

	ctx := logger.WithJobID(m.ctx, j.id)
	m.publish(Event{Snapshot: j.start(m.now().UTC())}, true)
	slog.Info("job started", append(logger.LogWithJob(ctx), slog.String("kind", j.kind))...)

	result, err := m.invoke(ctx, j, fn)
	m.finish(j, result, err)
}

// invoke runs fn, converting a panic into an error.
func (m *Manager) invoke(ctx context.Context, j *Job, fn Func) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	progress := func(percent int, message string) {
		if s, ok := j.setProgress(percent, message, m.now().UTC()); ok {
			m.publish(Event{Snapshot: s}, false)
		}
	}
	return fn(ctx, progress)
}

func (m *Manager) finish(j *Job, result any, err error) {
	now := m.now().UTC()
	var s Snapshot
	if err != nil {
		s = j.fail(err.Error(), now)
		slog.Error("job failed", slog.String("job_id", j.id), slog.String("kind", j.kind), slog.String("error", err.Error()))
		result = nil
	} else {
		s = j.complete(result, now)
		slog.Info("job completed", slog.String("job_id", j.id), slog.String("kind", j.kind),
			slog.Duration("elapsed", s.FinishedAt.Sub(*s.StartedAt)))
	}
	m.publish(Event{Snapshot: s, Result: result}, true)
}

// publish fans a snapshot out to subscribers and, for transitions, queues it
// for the listeners. It never blocks on a listener.
func (m *Manager) publish(ev Event, transition bool) {
	m.mu.RLock()
	for _, ch := range m.subs {
		select {
		case ch <- ev.Snapshot:
		default:
		}
	}
	m.mu.RUnlock()
	if !transition {
		return
	}

	m.qmu.Lock()
	m.queue = append(m.queue, ev)
	m.qmu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// dispatch delivers queued transitions to the listeners until Close.
func (m *Manager) dispatch() {
	defer close(m.drained)
	for {
		if m.drainQueue() > 0 {
			continue
		}
		select {
		case <-m.wake:
		case <-m.quit:
			m.drainQueue()
			return
		}
	}
}

func (m *Manager) drainQueue() int {
	m.qmu.Lock()
	batch := m.queue
	m.queue = nil
	m.qmu.Unlock()

	if len(batch) == 0 {
		return 0
	}
	m.mu.RLock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.RUnlock()

	for _, ev := range batch {
		for _, l := range listeners {
			m.notify(l, ev)
		}
	}
	return len(batch)
}

// notify runs one listener, recovering a panic so later listeners still run.
func (m *Manager) notify(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("job listener panicked",
				slog.String("job_id", ev.Snapshot.ID),
				slog.String("status", string(ev.Snapshot.Status)),
				slog.Any("panic", r))
		}
	}()
	l(ev)
}
