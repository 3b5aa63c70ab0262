package poll

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SlpAus/tinyballot-backend/internal/voter"
	"github.com/gin-gonic/gin"
)

// ListPath 是所有写操作成功后重定向的地址
const ListPath = "/api/polls"

// Handler 把投票服务暴露为HTTP接口
type Handler struct {
	svc   *Service
	guard *voter.FormGuard
}

// NewHandler 创建处理器，guard为nil时不校验表单令牌
func NewHandler(svc *Service, guard *voter.FormGuard) *Handler {
	return &Handler{svc: svc, guard: guard}
}

// RegisterRoutes 在 /polls 下注册所有路由
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	polls := rg.Group("/polls")
	{
		polls.GET("", h.List)
		polls.POST("", h.guard.RequireFormToken(), h.Create)
		polls.GET("/new", h.NewForm)
		polls.GET("/candidate-row", h.CandidateRow)
		polls.GET("/:id", h.Details)
		polls.GET("/:id/vote", h.VoteForm)
		polls.POST("/:id/vote", h.guard.RequireFormToken(), h.Vote)
		polls.GET("/:id/edit", h.EditForm)
		polls.POST("/:id/edit", h.guard.RequireFormToken(), h.Edit)
		polls.GET("/:id/delete", h.DeleteForm)
		polls.POST("/:id/delete", h.guard.RequireFormToken(), h.Delete)
	}
}

// List 获取所有投票的摘要
func (h *Handler) List(c *gin.Context) {
	summaries, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// Details 获取投票详情
func (h *Handler) Details(c *gin.Context) {
	id, ok := pollIDParam(c)
	if !ok {
		return
	}
	detail, err := h.svc.GetDetails(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// NewForm 返回创建投票的空表单
func (h *Handler) NewForm(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"form": h.svc.NewPollForm(), "formToken": h.guard.Issue(c)})
}

// CandidateRow 返回一个空的候选项行
func (h *Handler) CandidateRow(c *gin.Context) {
	c.JSON(http.StatusOK, NewCandidateRow())
}

// Create 创建投票
func (h *Handler) Create(c *gin.Context) {
	var form PollForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}

	if _, err := h.svc.Create(c.Request.Context(), form); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusOK, gin.H{"form": form, "errors": verr.Fields, "formToken": h.guard.Issue(c)})
			return
		}
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, ListPath)
}

// VoteForm 返回投票页面
func (h *Handler) VoteForm(c *gin.Context) {
	id, ok := pollIDParam(c)
	if !ok {
		return
	}
	view, err := h.svc.GetVoteForm(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"poll": view.Poll, "ballot": view.Ballot, "formToken": h.guard.Issue(c)})
}

// Vote 提交一张选票
func (h *Handler) Vote(c *gin.Context) {
	id, ok := pollIDParam(c)
	if !ok {
		return
	}
	var form BallotForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.svc.SubmitVote(ctx, id, form, voter.CurrentVoterID(c)); err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			respondError(c, err)
			return
		}
		// 重新加载投票，回显提交的选票
		view, loadErr := h.svc.RedisplayVoteForm(ctx, form)
		if loadErr != nil {
			respondError(c, loadErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"poll":      view.Poll,
			"ballot":    view.Ballot,
			"errors":    verr.Fields,
			"formToken": h.guard.Issue(c),
		})
		return
	}
	c.Redirect(http.StatusFound, ListPath)
}

// EditForm 返回编辑表单
func (h *Handler) EditForm(c *gin.Context) {
	id, ok := pollIDParam(c)
	if !ok {
		return
	}
	form, err := h.svc.GetEditForm(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"form": form, "formToken": h.guard.Issue(c)})
}

// Edit 保存编辑
func (h *Handler) Edit(c *gin.Context) {
	id, ok := pollIDParam(c)
	if !ok {
		return
	}
	var form PollForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}

	if err := h.svc.Update(c.Request.Context(), id, form); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusOK, gin.H{"form": form, "errors": verr.Fields, "formToken": h.guard.Issue(c)})
			return
		}
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, ListPath)
}

// DeleteForm 返回删除确认页
func (h *Handler) DeleteForm(c *gin.Context) {
	id, ok := pollIDParam(c)
	if !ok {
		return
	}
	confirmation, err := h.svc.GetDeleteConfirmation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"poll":           confirmation.Poll,
		"candidateCount": confirmation.CandidateCount,
		"ballotCount":    confirmation.BallotCount,
		"formToken":      h.guard.Issue(c),
	})
}

// Delete 删除投票
func (h *Handler) Delete(c *gin.Context) {
	id, ok := pollIDParam(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteConfirmed(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, ListPath)
}

// pollIDParam 解析路由中的投票ID，无效时直接返回404
func pollIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrPollNotFound.Error()})
		return 0, false
	}
	return uint(id), true
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrPollNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrConcurrencyConflict):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
	}
}
