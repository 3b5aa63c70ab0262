package health

import (
	"context"
	"net/http"
	"time"

	"github.com/SlpAus/tinyballot-backend/internal/platform/database"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// 组件状态
const (
	StatusUp       = "up"
	StatusDown     = "down"
	StatusDisabled = "disabled"
)

// Report 是 /api/health 的响应
type Report struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
}

// Check 检查数据库连接和缓存状态。缓存不可用不影响整体状态。
func Check(ctx context.Context, db *gorm.DB) Report {
	report := Report{Status: StatusUp, Database: StatusUp, Cache: cacheStatus()}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		report.Status = StatusDown
		report.Database = StatusDown
	}
	return report
}

func cacheStatus() string {
	return database.CurrentCacheState().String()
}

// Handler 返回健康检查接口，数据库不可用时返回503
func Handler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := Check(c.Request.Context(), db)
		code := http.StatusOK
		if report.Status != StatusUp {
			code = http.StatusServiceUnavailable
		}
		c.Header("Cache-Control", "no-store")
		c.JSON(code, gin.H{"status": report.Status, "database": report.Database, "cache": report.Cache, "time": time.Now().UTC()})
	}
}
