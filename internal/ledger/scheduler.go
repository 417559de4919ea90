package ledger

import (
	"sort"
	"sync"
	"time"
)

// Cancel stops a scheduled task. It reports whether the task was stopped before it ran.
type Cancel func() bool

// Scheduler runs tasks after a delay without blocking the caller
type Scheduler interface {
	Schedule(delay time.Duration, task func()) Cancel
}

// TimerScheduler runs each task on its own timer goroutine
type TimerScheduler struct{}

// Schedule implements Scheduler using time.AfterFunc
func (TimerScheduler) Schedule(delay time.Duration, task func()) Cancel {
	t := time.AfterFunc(delay, task)
	return t.Stop
}

// ManualScheduler queues tasks until the test advances its virtual time.
// Tasks run on the goroutine calling Advance or RunAll.
type ManualScheduler struct {
	mu      sync.Mutex
	elapsed time.Duration
	seq     int
	tasks   []*manualTask
}

type manualTask struct {
	due  time.Duration
	seq  int
	task func()
}

// NewManualScheduler returns an empty manual scheduler
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule implements Scheduler
func (m *ManualScheduler) Schedule(delay time.Duration, task func()) Cancel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTask{due: m.elapsed + delay, seq: m.seq, task: task}
	m.tasks = append(m.tasks, t)

	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, queued := range m.tasks {
			if queued == t {
				m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
				return true
			}
		}
		return false
	}
}

// Pending returns the number of queued tasks
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Advance moves virtual time forward and runs every task that became due, in due order.
func (m *ManualScheduler) Advance(d time.Duration) int {
	m.mu.Lock()
	m.elapsed += d
	due := m.takeDue(m.elapsed)
	m.mu.Unlock()

	for _, t := range due {
		t.task()
	}
	return len(due)
}

// RunAll runs every queued task regardless of its delay
func (m *ManualScheduler) RunAll() int {
	m.mu.Lock()
	var latest time.Duration
	for _, t := range m.tasks {
		if t.due > latest {
			latest = t.due
		}
	}
	if latest > m.elapsed {
		m.elapsed = latest
	}
	due := m.takeDue(m.elapsed)
	m.mu.Unlock()

	for _, t := range due {
		t.task()
	}
	return len(due)
}

// takeDue must be called with m.mu held
func (m *ManualScheduler) takeDue(now time.Duration) []*manualTask {
	var due, rest []*manualTask
	for _, t := range m.tasks {
		if t.due <= now {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	m.tasks = rest
	sort.Slice(due, func(i, j int) bool {
		if due[i].due == due[j].due {
			return due[i].seq < due[j].seq
		}
		return due[i].due < due[j].due
	})
	return due
}
