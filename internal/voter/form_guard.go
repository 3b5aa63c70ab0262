package voter

import (
	"fmt"
	"net/http"

	"github.com/SlpAus/tinyballot-backend/pkg/token"
	"github.com/gin-gonic/gin"
)

// FormTokenHeader 是提交表单时携带防伪令牌的请求头
const FormTokenHeader = "X-Form-Token"

// FormGuard 为表单签发防伪令牌，并在提交时校验
type FormGuard struct {
	signer  *token.Signer
	enabled bool
}

// NewFormGuard 创建FormGuard。enabled为false时不签发也不校验令牌。
func NewFormGuard(signer *token.Signer, enabled bool) *FormGuard {
	return &FormGuard{signer: signer, enabled: enabled && signer != nil}
}

// Issue 为当前投票者签发一个令牌，未启用时返回空字符串
func (g *FormGuard) Issue(c *gin.Context) string {
	if g == nil || !g.enabled {
		return ""
	}
	tok, err := g.signer.Issue(CurrentVoterID(c))
	if err != nil {
		fmt.Printf("签发表单令牌失败: %v\n", err)
		return ""
	}
	return tok
}

// RequireFormToken 拒绝没有携带有效令牌的提交
func (g *FormGuard) RequireFormToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g == nil || !g.enabled {
			c.Next()
			return
		}
		tok := c.GetHeader(FormTokenHeader)
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "缺少表单令牌"})
			return
		}
		if err := g.signer.Validate(tok, CurrentVoterID(c)); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}
