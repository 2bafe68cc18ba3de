package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/creditchain/internal/service"
	"github.com/d60-Lab/creditchain/pkg/response"
)

type Handler struct {
	insightSvc service.InsightService
	querySvc   *service.QueryService
	resync     *service.ResyncWorker
}

func NewHandler(insightSvc service.InsightService, querySvc *service.QueryService, resync *service.ResyncWorker) *Handler {
	return &Handler{insightSvc: insightSvc, querySvc: querySvc, resync: resync}
}

type submitRequest struct {
	Tip          string `json:"tip" binding:"required,max=200"`
	Body         string `json:"body" binding:"omitempty,max=500"`
	Category     string `json:"category" binding:"required"`
	SubmitterTag string `json:"submitterTag" binding:"required,max=64"`
}

// SubmitInsight 提交一条见解（本地落库后尽力镜像到账本）
// @Summary 提交见解
// @Tags 见解
// @Accept json
// @Produce json
// @Param request body submitRequest true "见解内容"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/insights [post]
func (h *Handler) SubmitInsight(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ins, err := h.insightSvc.Submit(c.Request.Context(), service.SubmitInput{
		Tip:          req.Tip,
		Body:         req.Body,
		Category:     req.Category,
		SubmitterTag: req.SubmitterTag,
	})
	if err != nil {
		if service.IsValidationErr(err) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, ins)
}

// ListInsights 全量列表（创建时间倒序）
// @Summary 查询全部见解
// @Tags 见解
// @Success 200 {object} response.Response
// @Router /api/v1/insights [get]
func (h *Handler) ListInsights(c *gin.Context) {
	items, err := h.querySvc.GetAll(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, items)
}

// ListByCategory 按分类过滤（大小写不敏感）
// @Summary 按分类查询
// @Tags 见解
// @Param category path string true "分类"
// @Success 200 {object} response.Response
// @Router /api/v1/insights/category/{category} [get]
func (h *Handler) ListByCategory(c *gin.Context) {
	items, err := h.querySvc.GetByCategory(c.Request.Context(), c.Param("category"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, items)
}

// Trending 按热度分排序的列表
// @Summary 热度榜
// @Tags 见解
// @Param limit query int false "条数" default(20)
// @Success 200 {object} response.Response
// @Router /api/v1/insights/trending [get]
func (h *Handler) Trending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	items, err := h.querySvc.Trending(c.Request.Context(), limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, items)
}

// Upvote 点赞。账本镜像失败会本地回退，调用方拿到的是最终计数。
// @Summary 点赞
// @Tags 见解
// @Param id path string true "见解ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/insights/{id}/upvote [post]
func (h *Handler) Upvote(c *gin.Context) {
	ins, err := h.insightSvc.Upvote(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrInsightNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"id": ins.ID, "upvotes": ins.Upvotes})
}

// Resync 手动触发一轮 failed 记录重试
// @Summary 触发补同步
// @Tags 见解
// @Success 200 {object} response.Response
// @Router /api/v1/insights/resync [post]
func (h *Handler) Resync(c *gin.Context) {
	n, err := h.resync.ProcessOnce(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"resynced": n})
}

// Health 存活探针
func (h *Handler) Health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
