package poll

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/SlpAus/tinyballot-backend/internal/platform/config"
	"github.com/SlpAus/tinyballot-backend/internal/platform/database"
	"github.com/SlpAus/tinyballot-backend/internal/platform/events"
	"gorm.io/gorm"
)

// newTestDB 为每个测试打开一个独立的内存SQLite数据库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, t.Name())

	db, err := database.Open(config.DatabaseConfig{
		Driver: config.DriverSqlite,
		Sqlite: config.SqliteConfig{Path: "file:" + name + "?mode=memory&cache=shared"},
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := PrimeDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// memoryCache 模拟 RedisSummaryCache 的代数语义
type memoryCache struct {
	mu          sync.Mutex
	value       []PollSummary
	ok          bool
	generation  int64
	loads       int
	invalidated int
}

func (c *memoryCache) Load(context.Context) ([]PollSummary, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	return c.value, c.generation, c.ok
}

func (c *memoryCache) Store(_ context.Context, generation int64, s []PollSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return
	}
	c.value, c.ok = s, true
}

func (c *memoryCache) Invalidate(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value, c.ok = nil, false
	c.generation++
	c.invalidated++
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func candidateForms(labels ...string) []CandidateForm {
	out := make([]CandidateForm, len(labels))
	for i, l := range labels {
		out[i] = CandidateForm{Label: l}
	}
	return out
}
