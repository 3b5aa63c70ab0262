package poll

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// PrimeDB 负责自动迁移投票相关的表结构
func PrimeDB(db *gorm.DB) error {
	if err := db.AutoMigrate(&Poll{}, &Candidate{}, &Ballot{}, &BallotCandidate{}); err != nil {
		return fmt.Errorf("无法迁移投票表: %w", err)
	}
	fmt.Println("投票数据库表迁移成功。")
	return nil
}

// WarmupCache 清空投票列表缓存并递增代数，下一次 List 会从数据库重新加载
func WarmupCache(ctx context.Context, rdb *redis.Client) error {
	if rdb == nil {
		return nil
	}
	if err := invalidateSummaries(ctx, rdb); err != nil {
		return fmt.Errorf("无法清空投票列表缓存: %w", err)
	}
	fmt.Println("投票列表缓存已重置。")
	return nil
}
