package voter

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	CookieName   = "voter-id"
	CookieMaxAge = 365 * 24 * 60 * 60
	VoterIDKey   = "voterID"
)

// NewVoterID 生成一个新的投票者ID (UUID v7)
func NewVoterID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("无法生成UUID v7: %w", err)
	}
	return id.String(), nil
}

// IsValidVoterID 检查ID是否是一个合法的UUID
func IsValidVoterID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// CurrentVoterID 返回当前请求的投票者ID，中间件未运行时返回空字符串
func CurrentVoterID(c *gin.Context) string {
	return c.GetString(VoterIDKey)
}
