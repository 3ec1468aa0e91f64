package service

import (
	"sync"
	"time"
)

// Timer is a pending callback that can be stopped.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. It must not call f synchronously.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Scheduler keeps at most one pending task per key. Scheduling a key again
// cancels the task it replaces.
type Scheduler struct {
	mu        sync.Mutex
	tasks     map[string]*Task
	afterFunc AfterFunc
}

// Task is a handle on one scheduled callback.
type Task struct {
	key   string
	owner *Scheduler
	timer Timer
}

func NewScheduler(afterFunc AfterFunc) *Scheduler {
	if afterFunc == nil {
		afterFunc = realAfterFunc
	}
	return &Scheduler{tasks: make(map[string]*Task), afterFunc: afterFunc}
}

// Schedule runs fn after delay unless the task is cancelled or replaced
// first. replaced reports whether a pending task for key was cancelled.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func(*Task)) (task *Task, replaced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.tasks[key]; ok {
		prev.timer.Stop()
		replaced = true
	}
	task = &Task{key: key, owner: s}
	s.tasks[key] = task
	task.timer = s.afterFunc(delay, func() { fn(task) })
	return task, replaced
}

// Cancel stops the pending task for key.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[key]
	if !ok {
		return false
	}
	task.timer.Stop()
	delete(s.tasks, key)
	return true
}

// Pending reports whether key has a task waiting.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

// Stop cancels every pending task.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, task := range s.tasks {
		task.timer.Stop()
		delete(s.tasks, key)
	}
}

// Claim marks the task as run. It returns false when the task was cancelled
// or replaced after its timer fired, in which case the callback must do nothing.
func (t *Task) Claim() bool {
	s := t.owner
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[t.key] != t {
		return false
	}
	delete(s.tasks, t.key)
	return true
}
