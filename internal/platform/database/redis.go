package database

import (
	"context"
	"fmt"

	"github.com/SlpAus/tinyballot-backend/internal/platform/config"
	"github.com/redis/go-redis/v9"
)

// RDB 是一个全局的Redis客户端实例，未配置Redis时为nil
var RDB *redis.Client

// Ctx 是一个全局的上下文，用于后台的Redis操作
var Ctx = context.Background()

// InitRedis 初始化与Redis的连接。地址为空时不启用缓存。
func InitRedis(cfg config.RedisConfig) error {
	if cfg.Address == "" {
		fmt.Println("未配置Redis，投票列表缓存已禁用。")
		disableCache()
		return nil
	}

	RDB = redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	enableCache()

	// 使用Ping命令来测试连接是否成功
	if _, err := RDB.Ping(Ctx).Result(); err != nil {
		UpdateStatus(false, "")
		return fmt.Errorf("无法连接到Redis: %w", err)
	}

	fmt.Println("Redis 连接成功！")
	return nil
}

// CloseRedis 关闭Redis客户端
func CloseRedis() error {
	if RDB == nil {
		return nil
	}
	return RDB.Close()
}
