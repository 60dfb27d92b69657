// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"sync"
)

// taskStatus is the lifecycle state of a research task.
type taskStatus int

const (
	taskRunning taskStatus = iota
	taskCompleted
	taskFailed
	taskInterrupted
)

// task is a research run that outlives the request which started it.
// Every payload is kept so late subscribers replay from the start.
type task struct {
	chatID string
	cancel context.CancelFunc

	mu       sync.Mutex
	payloads []string
	status   taskStatus
	changed  chan struct{}
}

func newTask(chatID string, cancel context.CancelFunc) *task {
	return &task{chatID: chatID, cancel: cancel, changed: make(chan struct{})}
}

// publish appends a payload and wakes subscribers.
func (t *task) publish(payload string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.payloads = append(t.payloads, payload)
	close(t.changed)
	t.changed = make(chan struct{})
	return nil
}

func (t *task) finish(status taskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != taskRunning {
		return
	}
	t.status = status
	close(t.changed)
	t.changed = make(chan struct{})
}

func (t *task) running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status == taskRunning
}

// subscribe calls fn for every payload, replaying those already published,
// until the task ends or ctx is done.
func (t *task) subscribe(ctx context.Context, fn func(payload string) error) error {
	next := 0
	for {
		t.mu.Lock()
		pending := t.payloads[next:]
		next = len(t.payloads)
		status := t.status
		wait := t.changed
		t.mu.Unlock()

		for _, p := range pending {
			if err := fn(p); err != nil {
				return err
			}
		}
		if len(pending) > 0 {
			continue
		}
		if status != taskRunning {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}

// taskManager tracks research tasks by chat id.
type taskManager struct {
	mu    sync.Mutex
	tasks map[string]*task
	wg    sync.WaitGroup
}

func newTaskManager() *taskManager {
	return &taskManager{tasks: make(map[string]*task)}
}

// start runs fn as the task of chatID unless one is already running, and
// returns the running task either way.
func (m *taskManager) start(chatID string, fn func(ctx context.Context, t *task)) *task {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.tasks[chatID]; ok && t.running() {
		return t
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := newTask(chatID, cancel)
	m.tasks[chatID] = t

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		fn(ctx, t)
	}()
	return t
}

func (m *taskManager) get(chatID string) (*task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[chatID]
	return t, ok
}

func (m *taskManager) isRunning(chatID string) bool {
	t, ok := m.get(chatID)
	return ok && t.running()
}

// stop interrupts a running task.
func (m *taskManager) stop(chatID string) {
	t, ok := m.get(chatID)
	if !ok {
		return
	}
	t.finish(taskInterrupted)
	t.cancel()
}

// stopAll interrupts every task and waits for them to exit.
func (m *taskManager) stopAll() {
	m.mu.Lock()
	tasks := make([]*task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.mu.Unlock()

	for _, t := range tasks {
		t.finish(taskInterrupted)
		t.cancel()
	}
	m.wg.Wait()
}
