package controller

import (
	"errors"
	"lingua_progress/internal/model"
	"lingua_progress/internal/service"
	"lingua_progress/internal/util"
	"lingua_progress/pkg/logger"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

type ExerciseRequest struct {
	UserID        string      `json:"userId" binding:"required"`
	Skill         model.Skill `json:"skill" binding:"required"`
	IsCorrect     *bool       `json:"isCorrect" binding:"required"`
	Score         *float64    `json:"score" binding:"required"`
	CardID        string      `json:"cardId"`
	ReviewQuality *int        `json:"reviewQuality"`
	OccurredAt    *time.Time  `json:"occurredAt"`
}

type LessonCompleteRequest struct {
	UserID    string     `json:"userId" binding:"required"`
	LessonID  string     `json:"lessonId" binding:"required"`
	LocalDate model.Date `json:"localDate"`
	Timezone  string     `json:"timezone"`
}

type DailyCheckInRequest struct {
	UserID    string     `json:"userId" binding:"required"`
	LocalDate model.Date `json:"localDate"`
	Timezone  string     `json:"timezone"`
}

type UseFreezeRequest struct {
	UserID     string     `json:"userId" binding:"required"`
	MissedDate model.Date `json:"missedDate"`
}

type ArchiveCardRequest struct {
	UserID string `json:"userId" binding:"required"`
	CardID string `json:"cardId" binding:"required"`
}

type OverrideTierRequest struct {
	Tier model.Tier `json:"tier" binding:"required"`
}

// authorize 本人或管理员才能访问该用户的进度
func authorize(ctx *gin.Context, userID string) bool {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return false
	}
	if !claims.CanActFor(userID) {
		util.ErrorWithReason(ctx, http.StatusForbidden, "PERMISSION_DENIED", "Cannot access another learner's progress")
		return false
	}
	return true
}

// queryUserID 未指定 userId 时默认为当前登录用户
func queryUserID(ctx *gin.Context) string {
	if id := ctx.Query("userId"); id != "" {
		return id
	}
	if claims := util.GetUserFromContext(ctx); claims != nil {
		return claims.UserID
	}
	return ""
}

func handleServiceError(ctx *gin.Context, err error) {
	if !util.IsDomainError(err) {
		util.LogInternalError(ctx, err)
		return
	}
	switch {
	case errors.Is(err, util.ErrInvalidInput):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrNotFound):
		util.ErrorWithReason(ctx, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, util.ErrNoFreezeAvailable):
		util.ErrorWithReason(ctx, http.StatusConflict, "NO_FREEZE_AVAILABLE", "No streak freeze available")
	case errors.Is(err, util.ErrConcurrentModification):
		util.ErrorWithReason(ctx, http.StatusConflict, "CONCURRENT_MODIFICATION", "Progress was modified concurrently, please retry")
	case errors.Is(err, util.ErrPermissionDenied):
		util.ErrorWithReason(ctx, http.StatusForbidden, "PERMISSION_DENIED", err.Error())
	}
}

// retryOnConflict 乐观锁冲突时整体重放一次
func retryOnConflict[T any](userID, op string, fn func() (T, error)) (T, error) {
	res, err := fn()
	if errors.Is(err, util.ErrConcurrentModification) {
		logger.Log.Info("Retrying after concurrent modification",
			zap.String("userID", userID),
			zap.String("op", op),
		)
		res, err = fn()
	}
	return res, err
}

func (c *ProgressController) apply(ctx *gin.Context, userID string, event service.LearningEvent) (*service.ProgressResult, error) {
	return retryOnConflict(userID, string(event.Type), func() (*service.ProgressResult, error) {
		return c.ProgressService.ApplyLearningEvent(ctx.Request.Context(), userID, event)
	})
}

// @Summary 上报练习作答
// @Description 更新技能分数、复习卡片调度与经验值
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ExerciseRequest true "作答结果"
// @Success 200 {object} util.Response{data=service.ProgressResult}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/progress/exercise [post]
func (c *ProgressController) SubmitExercise(ctx *gin.Context) {
	var req ExerciseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if !authorize(ctx, req.UserID) {
		return
	}

	event := service.LearningEvent{
		Type:          service.EventExerciseAnswered,
		Skill:         req.Skill,
		IsCorrect:     *req.IsCorrect,
		Score:         *req.Score,
		CardID:        req.CardID,
		ReviewQuality: req.ReviewQuality,
	}
	if req.OccurredAt != nil {
		event.OccurredAt = *req.OccurredAt
	}

	res, err := c.apply(ctx, req.UserID, event)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 课程完成
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body LessonCompleteRequest true "课程信息"
// @Success 200 {object} util.Response{data=service.ProgressResult}
// @Router /api/progress/lesson-complete [post]
func (c *ProgressController) CompleteLesson(ctx *gin.Context) {
	var req LessonCompleteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if !authorize(ctx, req.UserID) {
		return
	}

	res, err := c.apply(ctx, req.UserID, service.LearningEvent{
		Type:      service.EventLessonCompleted,
		LessonID:  req.LessonID,
		LocalDate: req.LocalDate,
		Timezone:  req.Timezone,
	})
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 每日签到
// @Description 记录一次每日学习，返回连续天数状态与提示
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DailyCheckInRequest true "签到信息"
// @Success 200 {object} util.Response{data=service.ProgressResult}
// @Router /api/progress/daily-checkin [post]
func (c *ProgressController) DailyCheckIn(ctx *gin.Context) {
	var req DailyCheckInRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if !authorize(ctx, req.UserID) {
		return
	}

	res, err := c.apply(ctx, req.UserID, service.LearningEvent{
		Type:      service.EventDailySession,
		LocalDate: req.LocalDate,
		Timezone:  req.Timezone,
	})
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 使用连续学习冻结卡
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UseFreezeRequest true "错过的日期"
// @Success 200 {object} util.Response{data=service.StreakView}
// @Failure 409 {object} util.Response
// @Router /api/progress/use-freeze [post]
func (c *ProgressController) UseFreeze(ctx *gin.Context) {
	var req UseFreezeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if req.MissedDate.IsZero() {
		util.BadRequest(ctx, "missedDate is required")
		return
	}
	if !authorize(ctx, req.UserID) {
		return
	}

	view, err := retryOnConflict(req.UserID, "use_freeze", func() (*service.StreakView, error) {
		return c.ProgressService.UseFreeze(ctx.Request.Context(), req.UserID, req.MissedDate)
	})
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 连续学习状态
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param userId query string false "用户ID，默认当前用户"
// @Success 200 {object} util.Response{data=service.StreakView}
// @Failure 404 {object} util.Response
// @Router /api/progress/streak [get]
func (c *ProgressController) GetStreak(ctx *gin.Context) {
	userID := queryUserID(ctx)
	if !authorize(ctx, userID) {
		return
	}

	view, err := c.ProgressService.StreakStatus(ctx.Request.Context(), userID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 能力档案
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param userId query string false "用户ID，默认当前用户"
// @Success 200 {object} util.Response{data=service.ProficiencyView}
// @Failure 404 {object} util.Response
// @Router /api/progress/proficiency [get]
func (c *ProgressController) GetProficiency(ctx *gin.Context) {
	userID := queryUserID(ctx)
	if !authorize(ctx, userID) {
		return
	}

	view, err := c.ProgressService.Proficiency(ctx.Request.Context(), userID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 到期复习卡片
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param userId query string false "用户ID，默认当前用户"
// @Param limit query int false "返回数量，默认20，最大200"
// @Success 200 {object} util.Response{data=[]model.ReviewCard}
// @Router /api/progress/reviews/due [get]
func (c *ProgressController) GetDueReviews(ctx *gin.Context) {
	userID := queryUserID(ctx)
	if !authorize(ctx, userID) {
		return
	}

	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			util.BadRequest(ctx, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	cards, err := c.ProgressService.DueReviews(ctx.Request.Context(), userID, limit)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, cards)
}

// @Summary 归档复习卡片
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ArchiveCardRequest true "卡片"
// @Success 200 {object} util.Response{data=model.ReviewCard}
// @Router /api/progress/cards/archive [post]
func (c *ProgressController) ArchiveCard(ctx *gin.Context) {
	var req ArchiveCardRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if !authorize(ctx, req.UserID) {
		return
	}

	card, err := retryOnConflict(req.UserID, "archive_card", func() (*model.ReviewCard, error) {
		return c.ProgressService.ArchiveCard(ctx.Request.Context(), req.UserID, req.CardID)
	})
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, card)
}

// @Summary 管理员调整等级
// @Description 唯一可以降级的途径
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "用户ID"
// @Param request body OverrideTierRequest true "目标等级"
// @Success 200 {object} util.Response
// @Router /api/admin/progress/{userId}/tier [put]
func (c *ProgressController) OverrideTier(ctx *gin.Context) {
	var req OverrideTierRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	userID := ctx.Param("userId")
	view, change, err := c.ProgressService.OverrideTier(ctx.Request.Context(), userID, req.Tier)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"profile":     view,
		"levelChange": change,
	})
}
