package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

// GoalHandler handles goal-related requests.
type GoalHandler struct {
	goalService services.GoalServicer
}

// NewGoalHandler creates a new GoalHandler.
func NewGoalHandler(goalService services.GoalServicer) *GoalHandler {
	return &GoalHandler{goalService: goalService}
}

// MilestoneRequest represents one sub-target inside a goal payload.
type MilestoneRequest struct {
	Name         string     `json:"name" binding:"required,min=1,max=100"`
	TargetAmount int64      `json:"target_amount" binding:"required,gt=0"`
	TargetDate   *time.Time `json:"target_date"`
}

// CreateGoalRequest represents the request payload for creating a goal.
type CreateGoalRequest struct {
	Name              string              `json:"name" binding:"required,min=1,max=100"`
	Type              models.GoalType     `json:"type" binding:"required,goal_type"`
	TargetAmount      int64               `json:"target_amount" binding:"required,gt=0"`
	InitialAmount     int64               `json:"initial_amount" binding:"omitempty,gte=0"`
	Deadline          time.Time           `json:"deadline" binding:"required"`
	Priority          models.GoalPriority `json:"priority" binding:"omitempty,goal_priority"`
	CategoryName      string              `json:"category_name" binding:"max=100"`
	AutoTrack         bool                `json:"auto_track"`
	TrackCategories   []string            `json:"track_categories"`
	ExcludeCategories []string            `json:"exclude_categories"`
	TrackSources      []string            `json:"track_sources"`
	Milestones        []MilestoneRequest  `json:"milestones" binding:"omitempty,dive"`
}

// ProgressRequest represents a manual progress adjustment. Delta may be
// negative; cumulative progress floors at zero.
type ProgressRequest struct {
	Delta       int64  `json:"delta" binding:"required"`
	Description string `json:"description" binding:"max=255"`
}

// CreateGoal handles the creation of a new goal.
// @Summary     Create a goal
// @Description Create a financial goal with optional milestones and auto-tracking rules
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateGoalRequest true "Goal details"
// @Success     201 {object} models.Goal "Goal created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /goals [post]
func (h *GoalHandler) CreateGoal(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	milestones := make([]services.MilestoneInput, 0, len(req.Milestones))
	for _, milestone := range req.Milestones {
		milestones = append(milestones, services.MilestoneInput{
			Name:         milestone.Name,
			TargetAmount: milestone.TargetAmount,
			TargetDate:   milestone.TargetDate,
		})
	}

	goal, err := h.goalService.CreateGoal(userID, services.GoalInput{
		Name:              req.Name,
		Type:              req.Type,
		TargetAmount:      req.TargetAmount,
		InitialAmount:     req.InitialAmount,
		Deadline:          req.Deadline,
		Priority:          req.Priority,
		CategoryName:      req.CategoryName,
		AutoTrack:         req.AutoTrack,
		TrackCategories:   req.TrackCategories,
		ExcludeCategories: req.ExcludeCategories,
		TrackSources:      req.TrackSources,
		Milestones:        milestones,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"goal": goal})
}

// GetGoals handles listing goals for the authenticated user.
// @Summary     Get goals
// @Description Get a paginated list of goals with an optional status filter
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       status    query string false "Filter by status (not_started/in_progress/completed/paused/failed)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Goal] "Paginated goals"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /goals [get]
func (h *GoalHandler) GetGoals(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var status *models.GoalStatus
	if v := c.Query("status"); v != "" {
		s := models.GoalStatus(v)
		switch s {
		case models.GoalStatusNotStarted, models.GoalStatusInProgress,
			models.GoalStatusCompleted, models.GoalStatusPaused, models.GoalStatusFailed:
			status = &s
		default:
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid status filter"))
			return
		}
	}

	result, err := h.goalService.GetUserGoals(userID, page, status)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetGoal handles retrieving a specific goal.
// @Summary     Get goal by ID
// @Description Get a specific goal with its milestones
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Goal ID"
// @Success     200 {object} models.Goal "Goal details"
// @Failure     400 {object} ErrorResponse "Invalid goal ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /goals/{id} [get]
func (h *GoalHandler) GetGoal(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	goalID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	goal, err := h.goalService.GetGoalByID(userID, goalID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goal})
}

// DeleteGoal handles deleting a goal.
// @Summary     Delete goal
// @Description Delete a goal by ID (soft delete)
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Goal ID"
// @Success     200 {object} MessageResponse "Goal deleted"
// @Failure     400 {object} ErrorResponse "Invalid goal ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /goals/{id} [delete]
func (h *GoalHandler) DeleteGoal(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	goalID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.goalService.DeleteGoal(userID, goalID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Goal deleted successfully"})
}

// PauseGoal handles pausing a goal.
// @Summary     Pause goal
// @Description Suspend a goal; completed goals stay completed
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Goal ID"
// @Success     200 {object} models.Goal "Paused goal"
// @Failure     400 {object} ErrorResponse "Invalid goal ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /goals/{id}/pause [post]
func (h *GoalHandler) PauseGoal(c *gin.Context) {
	h.setPaused(c, h.goalService.PauseGoal)
}

// ResumeGoal handles resuming a paused goal.
// @Summary     Resume goal
// @Description Resume a paused goal; its status is re-derived from progress
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Goal ID"
// @Success     200 {object} models.Goal "Resumed goal"
// @Failure     400 {object} ErrorResponse "Invalid goal ID or goal not paused"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /goals/{id}/resume [post]
func (h *GoalHandler) ResumeGoal(c *gin.Context) {
	h.setPaused(c, h.goalService.ResumeGoal)
}

func (h *GoalHandler) setPaused(c *gin.Context, op func(userID, goalID string) (*models.Goal, error)) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	goalID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	goal, err := op(userID, goalID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goal})
}

// UpdateProgress handles a manual progress adjustment.
// @Summary     Update goal progress
// @Description Apply a progress delta; crossing the target completes the goal and latches reached milestones
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string          true "Goal ID"
// @Param       request body ProgressRequest true "Progress delta"
// @Success     200 {object} models.Goal "Updated goal"
// @Failure     400 {object} ErrorResponse "Invalid input or goal ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /goals/{id}/progress [post]
func (h *GoalHandler) UpdateProgress(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	goalID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	goal, err := h.goalService.UpdateProgress(userID, goalID, req.Delta, req.Description, time.Now().UTC())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goal})
}

// RecalculateGoal handles recomputing an auto-tracked goal from the ledger.
// @Summary     Recalculate goal progress
// @Description Recompute an auto-tracked goal's progress as an absolute sum from the ledger under its tracking rules
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string true  "Goal ID"
// @Param       as_of query string false "Evaluation instant (RFC 3339, default now)"
// @Success     200 {object} models.Goal "Recalculated goal"
// @Failure     400 {object} ErrorResponse "Invalid goal ID or goal not auto-tracked"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /goals/{id}/recalculate [post]
func (h *GoalHandler) RecalculateGoal(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	goalID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	asOf, err := parseAsOf(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	goal, err := h.goalService.RecalculateAuto(userID, goalID, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goal})
}

// GetGoalsNeedingAttention handles listing goals that need attention.
// @Summary     Get goals needing attention
// @Description List goals that are overdue, lagging their expected progress, or high priority near deadline
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       as_of query string false "Evaluation instant (RFC 3339, default now)"
// @Success     200 {object} []models.Goal "Goals needing attention"
// @Failure     400 {object} ErrorResponse "Invalid timestamp"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /goals/attention [get]
func (h *GoalHandler) GetGoalsNeedingAttention(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	asOf, err := parseAsOf(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	goals, err := h.goalService.GoalsNeedingAttention(userID, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goals": goals})
}

// CheckGoalReminders handles emitting reminders for goals needing attention.
// @Summary     Check goal reminders
// @Description Emit one reminder alert per goal needing attention
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       as_of query string false "Evaluation instant (RFC 3339, default now)"
// @Success     200 {object} []models.Alert "Emitted reminders"
// @Failure     400 {object} ErrorResponse "Invalid timestamp"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /goals/reminders [get]
func (h *GoalHandler) CheckGoalReminders(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	asOf, err := parseAsOf(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	alerts, err := h.goalService.CheckGoalReminders(c.Request.Context(), userID, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reminders": alerts})
}
