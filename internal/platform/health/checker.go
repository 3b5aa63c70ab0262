package health

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/SlpAus/tinyballot-backend/internal/platform/database"
	"github.com/SlpAus/tinyballot-backend/internal/platform/startup"
	"github.com/SlpAus/tinyballot-backend/pkg/lifecycle"
)

const (
	checkInterval = 5 * time.Second
	pingTimeout   = 2 * time.Second
)

var runIDPattern = regexp.MustCompile(`run_id:([a-f0-9]+)`)

// parseRunID 从 INFO server 的输出中提取run_id
func parseRunID(info string) (string, error) {
	matches := runIDPattern.FindStringSubmatch(info)
	if len(matches) < 2 {
		return "", fmt.Errorf("无法在Redis INFO中找到run_id")
	}
	return matches[1], nil
}

// getRedisRunID 从Redis服务器信息中提取run_id
func getRedisRunID(ctx context.Context) (string, error) {
	if database.RDB == nil {
		return "", fmt.Errorf("未配置Redis")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	info, err := database.RDB.Info(ctx, "server").Result()
	if err != nil {
		return "", err
	}
	return parseRunID(info)
}

// InitializeRunID 在应用启动时执行一次，获取并设置初始的run_id。
// 获取失败时只把缓存标记为不可用，不阻止启动。
func InitializeRunID(ctx context.Context) {
	if database.CurrentCacheState() == database.CacheDisabled {
		return
	}
	fmt.Println("正在获取初始Redis Run ID...")
	runID, err := getRedisRunID(ctx)
	if err != nil {
		fmt.Printf("警告: 无法获取Redis Run ID，缓存暂时标记为不可用: %v\n", err)
		database.UpdateStatus(false, "")
		return
	}
	database.SetInitialRunID(runID)
	fmt.Printf("获取初始Redis Run ID成功: %s\n", runID)
}

// triggerAtomicRebuild 执行一次自校验的缓存重建。
// 只有在重建期间Redis没有再次重启的情况下，才认为重建成功。
func triggerAtomicRebuild(ctx context.Context, idBeforeRebuild string) bool {
	fmt.Println("健康检查: 正在触发缓存热重建...")
	if err := startup.RebuildCache(ctx); err != nil {
		fmt.Printf("健康检查错误: 缓存热重建失败: %v\n", err)
		return false
	}

	idAfterRebuild, err := getRedisRunID(ctx)
	if err != nil {
		fmt.Println("健康检查错误: 缓存重建后无法连接到Redis，重建无效。")
		return false
	}
	if idBeforeRebuild != idAfterRebuild {
		fmt.Printf("健康检查错误: 缓存重建期间检测到Redis再次重启 (run_id: %s -> %s)。重建无效。\n", idBeforeRebuild, idAfterRebuild)
		return false
	}

	fmt.Println("健康检查: 缓存热重建成功并通过原子性校验。")
	return true
}

// PerformCheck 执行一次完整的健康检查和可能的修复操作。
func PerformCheck(ctx context.Context) {
	if database.CurrentCacheState() == database.CacheDisabled {
		return
	}
	currentRunID, err := getRedisRunID(ctx)
	if err != nil {
		database.UpdateStatus(false, "")
		return
	}

	if currentRunID != database.GetLastKnownRunID() {
		// 检测到Redis重启，旧的缓存可能已经丢失或过期
		if triggerAtomicRebuild(ctx, currentRunID) {
			database.UpdateStatus(true, currentRunID)
		} else {
			database.UpdateStatus(false, "")
		}
		return
	}
	database.UpdateStatus(true, currentRunID)
}

// StartRedisHealthCheck 是注册到生命周期管理器的后台服务，定期执行健康检查直到停机。
func StartRedisHealthCheck(h *lifecycle.Handle) {
	fmt.Println("Redis健康检查器已启动。")
	for {
		if err := h.Sleep(checkInterval); err != nil {
			fmt.Println("Redis健康检查器已停止。")
			return
		}
		PerformCheck(h.Ctx())
	}
}
