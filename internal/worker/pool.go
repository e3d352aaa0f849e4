package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type schedule struct {
	interval time.Duration
	task     Task
}

// Pool manages one goroutine per registered task.
type Pool struct {
	workerID string
	mu       sync.RWMutex
	tasks    map[string]schedule
	running  map[string]*sync.Mutex
}

// New creates a Pool. A random workerID is generated at construction time to
// tell this process apart in logs.
func New() *Pool {
	return &Pool{
		workerID: uuid.New().String(),
		tasks:    make(map[string]schedule),
		running:  make(map[string]*sync.Mutex),
	}
}

// WorkerID returns the random ID of this pool.
func (p *Pool) WorkerID() string { return p.workerID }

// Register associates t with name, to run every interval. Must be called
// before Start. A non-positive interval panics.
func (p *Pool) Register(name string, interval time.Duration, t Task) {
	if interval <= 0 {
		panic(fmt.Sprintf("worker: task %q registered with interval %v", name, interval))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks[name] = schedule{interval: interval, task: t}
	p.running[name] = &sync.Mutex{}
}

// Start launches one goroutine per registered task, then blocks until ctx is
// cancelled. When ctx is cancelled, any in-flight run completes and Start
// returns after all goroutines have exited.
func (p *Pool) Start(ctx context.Context) {
	p.mu.RLock()
	tasks := make(map[string]schedule, len(p.tasks))
	for name, s := range p.tasks {
		tasks[name] = s
	}
	p.mu.RUnlock()

	var wg sync.WaitGroup
	for name, s := range tasks {
		wg.Add(1)
		go func(name string, s schedule) {
			defer wg.Done()
			p.runSchedule(ctx, name, s)
		}(name, s)
	}

	wg.Wait()
	slog.Info("worker pool stopped", "worker_id", p.workerID)
}

// RunNow runs the named task once, outside its schedule. Runs of the same
// task never overlap: RunNow waits for an in-flight scheduled run.
func (p *Pool) RunNow(ctx context.Context, name string) error {
	p.mu.RLock()
	s, ok := p.tasks[name]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("worker: no task registered as %q", name)
	}
	return p.Exclusive(ctx, name, s.task)
}

// Exclusive runs fn while holding the named task's run lock, so fn never
// overlaps a scheduled or RunNow run of that task.
func (p *Pool) Exclusive(ctx context.Context, name string, fn Task) error {
	p.mu.RLock()
	lock, ok := p.running[name]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("worker: no task registered as %q", name)
	}

	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}

// runSchedule runs the task immediately and then on every tick until ctx is
// cancelled. Uses time.NewTicker (not time.After) to avoid timer leaks.
func (p *Pool) runSchedule(ctx context.Context, name string, s schedule) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("worker task started", "task", name, "interval", s.interval, "worker_id", p.workerID)

	p.runOne(ctx, name)
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker task stopping", "task", name)
			return
		case <-ticker.C:
			p.runOne(ctx, name)
		}
	}
}

// runOne executes the task once. Errors are logged but do not stop the
// schedule.
func (p *Pool) runOne(ctx context.Context, name string) {
	start := time.Now()
	if err := p.RunNow(ctx, name); err != nil {
		slog.Error("worker task failed", "task", name, "error", err)
		return
	}
	slog.Debug("worker task completed", "task", name, "duration", time.Since(start))
}
