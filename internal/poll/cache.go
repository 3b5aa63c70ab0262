package poll

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/SlpAus/tinyballot-backend/internal/platform/database"
	"github.com/redis/go-redis/v9"
)

// SummaryKey 是Redis中缓存投票列表的键，值为 []PollSummary 的JSON
const SummaryKey = "poll:summaries"

// GenerationKey 是投票列表缓存的代数，每次失效都会递增。
// 只有读取时的代数没有变化，才允许写回缓存。
const GenerationKey = "poll:summaries:generation"

// errStaleGeneration 表示写回期间缓存已被失效
var errStaleGeneration = errors.New("summary cache generation changed")

// SummaryCache 缓存 List 的结果。实现不应该让缓存故障影响请求。
// Load 在未命中时返回当前代数，Store 只在代数仍然相同时写入；
// 代数为负表示不可写回。
type SummaryCache interface {
	Load(ctx context.Context) ([]PollSummary, int64, bool)
	Store(ctx context.Context, generation int64, summaries []PollSummary)
	Invalidate(ctx context.Context)
}

// NopSummaryCache 在未配置Redis时使用
type NopSummaryCache struct{}

func (NopSummaryCache) Load(context.Context) ([]PollSummary, int64, bool) { return nil, -1, false }
func (NopSummaryCache) Store(context.Context, int64, []PollSummary)       {}
func (NopSummaryCache) Invalidate(context.Context)                        {}

// RedisSummaryCache 把投票列表存成一个带TTL的字符串键
type RedisSummaryCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	healthy func() bool
	logger  *slog.Logger
}

// NewRedisSummaryCache 创建Redis缓存。健康检查认为Redis不可用时，读写都会被跳过。
func NewRedisSummaryCache(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisSummaryCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSummaryCache{rdb: rdb, ttl: ttl, healthy: database.IsRedisHealthy, logger: logger}
}

func (c *RedisSummaryCache) usable() bool {
	return c != nil && c.rdb != nil && c.healthy()
}

// readGeneration 把不存在的代数键当作0
func readGeneration(ctx context.Context, cmd redis.Cmdable) (int64, error) {
	gen, err := cmd.Get(ctx, GenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Load 在一个事务里同时读取代数和缓存值。出错时代数为-1。
func (c *RedisSummaryCache) Load(ctx context.Context) ([]PollSummary, int64, bool) {
	if !c.usable() {
		return nil, -1, false
	}

	var genCmd, valueCmd *redis.StringCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		genCmd = pipe.Get(ctx, GenerationKey)
		valueCmd = pipe.Get(ctx, SummaryKey)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		c.warn(ctx, "summary_cache_read_failed", err)
		return nil, -1, false
	}

	gen, err := genCmd.Int64()
	if errors.Is(err, redis.Nil) {
		gen, err = 0, nil
	}
	if err != nil {
		c.warn(ctx, "summary_cache_read_failed", err)
		return nil, -1, false
	}

	raw, err := valueCmd.Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn(ctx, "summary_cache_read_failed", err)
		}
		return nil, gen, false
	}
	var summaries []PollSummary
	if err := json.Unmarshal(raw, &summaries); err != nil {
		c.warn(ctx, "summary_cache_decode_failed", err)
		return nil, gen, false
	}
	return summaries, gen, true
}

// Store 在代数未变化时写入缓存。WATCH 保证检查和写入之间的失效也会让写入放弃。
func (c *RedisSummaryCache) Store(ctx context.Context, generation int64, summaries []PollSummary) {
	if generation < 0 || !c.usable() {
		return
	}
	raw, err := json.Marshal(summaries)
	if err != nil {
		c.warn(ctx, "summary_cache_encode_failed", err)
		return
	}

	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx)
		if err != nil {
			return err
		}
		if current != generation {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, SummaryKey, raw, c.ttl)
			return nil
		})
		return err
	}, GenerationKey)

	switch {
	case err == nil, errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		// 期间发生了失效，放弃写入
	default:
		c.warn(ctx, "summary_cache_write_failed", err)
	}
}

// Invalidate 递增代数并删除缓存。Redis不健康时也尝试执行，失败只记录日志。
func (c *RedisSummaryCache) Invalidate(ctx context.Context) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := invalidateSummaries(ctx, c.rdb); err != nil {
		c.warn(ctx, "summary_cache_invalidate_failed", err)
	}
}

func invalidateSummaries(ctx context.Context, rdb *redis.Client) error {
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, GenerationKey)
		pipe.Del(ctx, SummaryKey)
		return nil
	})
	return err
}

func (c *RedisSummaryCache) warn(ctx context.Context, event string, err error) {
	c.logger.WarnContext(ctx, "poll summary cache error",
		"event", event,
		"module", "poll",
		"layer", "cache",
		"error", err.Error(),
	)
}
