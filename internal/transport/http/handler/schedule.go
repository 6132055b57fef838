package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/writestack/noteflow/internal/domain"
	"github.com/writestack/noteflow/internal/timer"
	"github.com/writestack/noteflow/internal/usecase"
)

type ScheduleHandler struct {
	uc     *usecase.ScheduleUsecase
	logger *slog.Logger
}

func NewScheduleHandler(uc *usecase.ScheduleUsecase, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{uc: uc, logger: logger.With("component", "schedule_handler")}
}

type createScheduleRequest struct {
	ScheduleID string  `json:"schedule_id" binding:"required,max=128"`
	Timestamp  int64   `json:"timestamp"   binding:"required,min=1"` // epoch milliseconds
	NoteID     *string `json:"note_id"     binding:"omitempty,max=128"`
}

type scheduleResponse struct {
	ScheduleID     string        `json:"schedule_id"`
	UserID         string        `json:"user_id"`
	Timestamp      int64         `json:"timestamp"`
	NoteID         *string       `json:"note_id,omitempty"`
	SubstackNoteID *string       `json:"substack_note_id,omitempty"`
	IsProcessing   bool          `json:"is_processing"`
	Status         domain.Status `json:"status"`
	Error          *string       `json:"error,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

func toScheduleResponse(s *domain.Schedule) scheduleResponse {
	return scheduleResponse{
		ScheduleID:     s.ScheduleID,
		UserID:         s.UserID,
		Timestamp:      s.Timestamp.UnixMilli(),
		NoteID:         s.NoteID,
		SubstackNoteID: s.SubstackNoteID,
		IsProcessing:   s.IsProcessing,
		Status:         s.Status,
		Error:          s.Error,
		CreatedAt:      s.CreatedAt,
	}
}

func (h *ScheduleHandler) Create(ctx *gin.Context) {
	var req createScheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.uc.CreateSchedule(ctx.Request.Context(), usecase.CreateScheduleInput{
		ScheduleID: req.ScheduleID,
		UserID:     ctx.GetString("userID"),
		Timestamp:  time.UnixMilli(req.Timestamp),
		NoteID:     req.NoteID,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidParameters):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidParameters})
		case errors.Is(err, domain.ErrDuplicateSchedule):
			ctx.JSON(http.StatusConflict, gin.H{"error": errDuplicateSchedule})
		default:
			h.logger.ErrorContext(ctx.Request.Context(), "create schedule", "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	ctx.JSON(http.StatusCreated, toScheduleResponse(s))
}

type alarmResponse struct {
	ScheduleID string `json:"schedule_id"`
	When       int64  `json:"when"`
}

func (h *ScheduleHandler) List(ctx *gin.Context) {
	result, err := h.uc.ListSchedules(ctx.Request.Context())
	if err != nil {
		h.logger.ErrorContext(ctx.Request.Context(), "list schedules", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	schedules := make([]scheduleResponse, len(result.Schedules))
	for i, s := range result.Schedules {
		schedules[i] = toScheduleResponse(s)
	}
	alarms := make([]alarmResponse, len(result.Alarms))
	for i, a := range result.Alarms {
		alarms[i] = toAlarmResponse(a)
	}
	ctx.JSON(http.StatusOK, gin.H{
		"schedules": schedules,
		"alarms":    alarms,
	})
}

func toAlarmResponse(e timer.Entry) alarmResponse {
	return alarmResponse{ScheduleID: e.ScheduleID, When: e.When.UnixMilli()}
}

func (h *ScheduleHandler) ListNotes(ctx *gin.Context) {
	notes, err := h.uc.ListNotes(ctx.Request.Context())
	if err != nil {
		h.logger.ErrorContext(ctx.Request.Context(), "list notes", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"notes": notes})
}

func (h *ScheduleHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	err := h.uc.DeleteSchedule(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrScheduleBusy) {
			ctx.JSON(http.StatusConflict, gin.H{"error": errScheduleBusy})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "delete schedule", "schedule_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *ScheduleHandler) SendNow(ctx *gin.Context) {
	id := ctx.Param("id")

	res, err := h.uc.SendNow(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "send now", "schedule_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	resp := gin.H{"outcome": res.Outcome}
	if res.Code != "" {
		resp["code"] = res.Code
		resp["error"] = res.Err
	}
	ctx.JSON(http.StatusOK, resp)
}
