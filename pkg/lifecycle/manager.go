package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Manager 负责启动后台服务，并在停机时通知它们退出、等待它们完成。
type Manager struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	services map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager 创建一个新的生命周期管理器。
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		services: make(map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Go 以给定的名字注册一个服务，并在新的Goroutine中运行它。
// run 返回即视为该服务已经退出。
func (m *Manager) Go(name string, run func(h *Handle)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.services[name]; exists {
		return fmt.Errorf("生命周期管理器: 服务 '%s' 已被注册", name)
	}
	m.services[name] = struct{}{}
	m.wg.Add(1)

	h := &Handle{name: name, ctx: m.ctx}
	var once sync.Once
	h.done = func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.services, name)
			m.mu.Unlock()
			m.wg.Done()
		})
	}

	fmt.Printf("生命周期管理器: 服务 [%s] 已启动。\n", name)
	go func() {
		defer h.done()
		run(h)
	}()
	return nil
}

// Shutdown 广播停机信号
func (m *Manager) Shutdown() {
	fmt.Println("生命周期管理器: 广播停机信号...")
	m.cancel()
}

// WaitWithTimeout 等待所有服务退出，超时后返回仍在运行的服务名（按字母排序）。
func (m *Manager) WaitWithTimeout(timeout time.Duration) []string {
	doneChan := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(doneChan)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-doneChan:
		return nil
	case <-timer.C:
		m.mu.Lock()
		defer m.mu.Unlock()
		remaining := make([]string, 0, len(m.services))
		for name := range m.services {
			remaining = append(remaining, name)
		}
		sort.Strings(remaining)
		return remaining
	}
}
