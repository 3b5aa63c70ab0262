package startup

import (
	"context"
	"fmt"

	"github.com/SlpAus/tinyballot-backend/internal/platform/database"
	"github.com/SlpAus/tinyballot-backend/internal/poll"
	"gorm.io/gorm"
)

// InitializeApplication 是应用启动时执行的总入口：迁移表结构并重置缓存
func InitializeApplication(ctx context.Context, db *gorm.DB) error {
	fmt.Println("开始应用初始化...")

	if err := poll.PrimeDB(db); err != nil {
		return err
	}
	if database.IsRedisHealthy() {
		if err := RebuildCache(ctx); err != nil {
			// 缓存失败不影响启动，健康检查会在之后重试
			fmt.Printf("警告: 启动时重置缓存失败: %v\n", err)
		}
	}

	fmt.Println("应用初始化完成！")
	return nil
}

// RebuildCache 在运行时热重建Redis缓存。
// 投票列表缓存是按需加载的，重建只需要丢弃可能过期的旧值。
func RebuildCache(ctx context.Context) error {
	fmt.Println("开始缓存热重建...")
	if err := poll.WarmupCache(ctx, database.RDB); err != nil {
		return err
	}
	fmt.Println("缓存热重建完成。")
	return nil
}
