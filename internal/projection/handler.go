package projection

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/inkwell-labs/storypulse/internal/core/analytics"
	httperr "github.com/inkwell-labs/storypulse/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all query surface routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/stories/:story_id/chapters/:chapter_id/decisions/:decision_point_id/heatmap", s.HandleGetHeatmap)
	r.GET("/v1/completions/:user_id/:story_id", s.HandleGetCompletion)
}

// HandleGetHeatmap handles
// GET /v1/stories/:story_id/chapters/:chapter_id/decisions/:decision_point_id/heatmap
func (s *Service) HandleGetHeatmap(c *gin.Context) {
	var uri struct {
		StoryID         string `uri:"story_id" binding:"required"`
		ChapterID       string `uri:"chapter_id" binding:"required"`
		DecisionPointID string `uri:"decision_point_id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpValidationError,
			Message:   "Invalid path parameters",
			Details:   err.Error(),
		})
		return
	}

	resp, err := s.GetHeatmap(c.Request.Context(), analytics.DecisionKey{
		StoryID:         uri.StoryID,
		ChapterID:       uri.ChapterID,
		DecisionPointID: uri.DecisionPointID,
	})
	if err != nil {
		writeQueryError(c, err, "Failed to query heatmap")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleGetCompletion handles GET /v1/completions/:user_id/:story_id
func (s *Service) HandleGetCompletion(c *gin.Context) {
	var uri struct {
		UserID  string `uri:"user_id" binding:"required"`
		StoryID string `uri:"story_id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpValidationError,
			Message:   "Invalid path parameters",
			Details:   err.Error(),
		})
		return
	}

	status, err := s.GetCompletion(c.Request.Context(), uri.UserID, uri.StoryID)
	if err != nil {
		writeQueryError(c, err, "Failed to query completion status")
		return
	}

	c.JSON(http.StatusOK, status)
}

func writeQueryError(c *gin.Context, err error, message string) {
	if errors.Is(err, httperr.ErrValidation) {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpValidationError,
			Message:   message,
			Details:   err.Error(),
		})
		return
	}

	slog.Error(message, "error", err)
	c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
		ErrorType: httperr.HttpInternalError,
		Message:   message,
		Details:   err.Error(),
	})
}
