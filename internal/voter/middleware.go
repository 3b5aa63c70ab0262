package voter

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// EnsureVoterCookieMiddleware 确保浏览器中有一个格式正确的voter-id cookie，
// 并把ID放入Gin上下文中。没有或格式不正确时会分发一个新的。
func EnsureVoterCookieMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		voterID, err := c.Cookie(CookieName)

		if err != nil || !IsValidVoterID(voterID) {
			if !errors.Is(err, http.ErrNoCookie) {
				fmt.Printf("检测到无效的投票者Cookie: %s, err: %v\n", voterID, err)
			}
			newID, genErr := NewVoterID()
			if genErr != nil {
				fmt.Printf("生成投票者ID时发生错误: %v\n", genErr)
				voterID = ""
			} else {
				voterID = newID
				c.SetCookie(CookieName, voterID, CookieMaxAge, "/", "", false, true)
			}
		}

		c.Set(VoterIDKey, voterID)
		c.Next()
	}
}
