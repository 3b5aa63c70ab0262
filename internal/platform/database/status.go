package database

import (
	"fmt"
	"sync"
)

// CacheState 是Redis缓存层的状态
type CacheState int

const (
	// CacheDisabled 表示没有配置Redis，投票列表总是从数据库读取
	CacheDisabled CacheState = iota
	CacheUp
	CacheDown
)

func (s CacheState) String() string {
	switch s {
	case CacheUp:
		return "up"
	case CacheDown:
		return "down"
	default:
		return "disabled"
	}
}

// cacheStatus 记录缓存层的状态和最近一次看到的Redis run_id。
// 健康检查器通过 run_id 的变化发现Redis重启。
type cacheStatus struct {
	mu    sync.RWMutex
	state CacheState
	runID string
}

var globalStatus = &cacheStatus{state: CacheDisabled}

// enableCache 在创建Redis客户端后调用，缓存从可用状态开始
func enableCache() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.state = CacheUp
	globalStatus.runID = ""
}

// disableCache 在没有配置Redis时调用
func disableCache() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.state = CacheDisabled
	globalStatus.runID = ""
}

// CurrentCacheState 返回缓存层当前的状态
func CurrentCacheState() CacheState {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.state
}

// IsRedisHealthy 表示投票列表缓存当前能否读写
func IsRedisHealthy() bool {
	return CurrentCacheState() == CacheUp
}

// SetInitialRunID 在应用启动时记录Redis的run_id
func SetInitialRunID(runID string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.runID = runID
}

// UpdateStatus 更新缓存层的可用状态。未配置Redis时忽略。
func UpdateStatus(isHealthy bool, newRunID string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()

	if globalStatus.state == CacheDisabled {
		return
	}

	next := CacheDown
	if isHealthy {
		next = CacheUp
		globalStatus.runID = newRunID
	}
	if globalStatus.state != next {
		globalStatus.state = next
		fmt.Printf("健康检查: 投票列表缓存状态 -> [%s]\n", next)
	}
}

// GetLastKnownRunID 返回最近一次确认健康时的run_id
func GetLastKnownRunID() string {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.runID
}
