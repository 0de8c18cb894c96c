package ingestion

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	v1 "github.com/inkwell-labs/storypulse/internal/api/v1"
	"github.com/inkwell-labs/storypulse/internal/core/analytics"
	httperr "github.com/inkwell-labs/storypulse/internal/core/errors"
	"github.com/inkwell-labs/storypulse/internal/core/storage"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgPersistFailed  = "Failed to record choice"
	msgDuplicateEvent = "Choice event already recorded"
	msgApplyConflict  = "Concurrent update conflict, retry the request"
	msgEndingFailed   = "Failed to record ending"
)

// ingestionError carries the structured HTTP error shape from a helper back
// to the orchestrator. Helpers return this instead of writing to gin.Context
// directly, keeping them decoupled from HTTP.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// TallyResponse is the success body of POST /v1/choices: the updated tally.
type TallyResponse struct {
	StoryID         string          `json:"story_id"`
	ChapterID       string          `json:"chapter_id"`
	DecisionPointID string          `json:"decision_point_id"`
	ChoiceID        string          `json:"choice_id"`
	SelectionCount  int64           `json:"selection_count"`
	Percentage      decimal.Decimal `json:"percentage"`
}

// RecordChoiceHandler handles HTTP POST requests for choice events.
// Flow: parse → validate → append to the event log → publish to subscribers
// → fold into the tally → respond with the updated tally.
func (s *Service) RecordChoiceHandler(c *gin.Context) {
	evt, payloadSize, herr := s.parseChoice(c)
	if herr != nil {
		writeError(c, herr)
		return
	}

	slog.Info("Received choice",
		"event_id", evt.ID,
		"user_id", evt.UserID,
		"story_id", evt.StoryID,
		"decision_point_id", evt.DecisionPointID,
		"choice_id", evt.ChoiceID,
		"payload_size", payloadSize)

	if herr := s.appendEvent(c.Request.Context(), evt); herr != nil {
		writeError(c, herr)
		return
	}

	s.hub.Publish(evt)

	state, herr := s.applyEvent(c.Request.Context(), evt)
	if herr != nil {
		writeError(c, herr)
		return
	}

	pct, err := s.aggregator.PercentageOf(c.Request.Context(), state.Key)
	if err != nil {
		slog.Error("Failed to compute percentage for response", "error", err, "event_id", evt.ID)
		pct = decimal.Zero
	}

	c.JSON(http.StatusOK, TallyResponse{
		StoryID:         state.Key.StoryID,
		ChapterID:       state.Key.ChapterID,
		DecisionPointID: state.Key.DecisionPointID,
		ChoiceID:        state.Key.ChoiceID,
		SelectionCount:  state.SelectionCount,
		Percentage:      pct,
	})
}

// RecordEndingHandler handles HTTP POST requests for reached endings.
func (s *Service) RecordEndingHandler(c *gin.Context) {
	var ending v1.PathEnding
	if err := c.ShouldBindJSON(&ending); err != nil {
		slog.Warn("Invalid JSON body received", "error", err)
		writeError(c, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		})
		return
	}

	if err := ending.Validate(); err != nil {
		slog.Warn("Ending validation failed", "error", err)
		writeError(c, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpValidationError,
			message:    err.Error(),
		})
		return
	}

	result, err := s.evaluator.RecordPathCompletion(
		c.Request.Context(), ending.UserID, ending.StoryID, ending.EndingID)
	if err != nil {
		writeError(c, mapCompletionError(err))
		return
	}

	if result.BadgeJustAwarded {
		slog.Info("All-endings badge transition",
			"user_id", result.UserID,
			"story_id", result.StoryID,
			"total_endings", result.TotalEndings)
	}

	c.JSON(http.StatusOK, result)
}

// parseChoice reads the raw request body and binds it into a ChoiceEvent.
// Returns the parsed event and the raw payload size (used for structured
// logging upstream).
func (s *Service) parseChoice(c *gin.Context) (*v1.ChoiceEvent, int, *ingestionError) {
	// Enforce maximum body size to prevent OOM attacks
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return nil, 0, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	var evt v1.ChoiceEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	if err := evt.Validate(); err != nil {
		slog.Warn("Envelope validation failed", "error", err, "event_id", evt.ID)
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpValidationError,
			message:    err.Error(),
		}
	}

	// set IngestedAt to be the time we receive the request
	evt.IngestedAt = time.Now().UTC()
	return &evt, len(bodyBytes), nil
}

// appendEvent saves the event to the append-only log.
func (s *Service) appendEvent(ctx context.Context, evt *v1.ChoiceEvent) *ingestionError {
	if err := s.events.AppendEvent(ctx, evt); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			slog.Info("Duplicate choice event rejected", "event_id", evt.ID, "user_id", evt.UserID)
			return &ingestionError{
				statusCode: http.StatusConflict,
				errorType:  httperr.HttpDuplicateEventError,
				message:    msgDuplicateEvent,
			}
		}
		if errors.Is(err, httperr.ErrValidation) {
			return &ingestionError{
				statusCode: http.StatusBadRequest,
				errorType:  httperr.HttpValidationError,
				message:    err.Error(),
			}
		}

		slog.Error("Failed to append event", "error", err, "event_id", evt.ID)
		return &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		}
	}

	return nil
}

// applyEvent folds the appended event into its tally.
func (s *Service) applyEvent(ctx context.Context, evt *v1.ChoiceEvent) (analytics.TallyState, *ingestionError) {
	state, err := s.aggregator.Apply(ctx, evt)
	if err != nil {
		if errors.Is(err, httperr.ErrConflict) {
			slog.Warn("Tally apply conflict after retries", "event_id", evt.ID)
			return analytics.TallyState{}, &ingestionError{
				statusCode: http.StatusConflict,
				errorType:  httperr.HttpConflictError,
				message:    msgApplyConflict,
			}
		}

		slog.Error("Failed to apply event to tally", "error", err, "event_id", evt.ID)
		return analytics.TallyState{}, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		}
	}
	return state, nil
}

func mapCompletionError(err error) *ingestionError {
	switch {
	case errors.Is(err, httperr.ErrValidation):
		return &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpValidationError,
			message:    err.Error(),
		}
	case errors.Is(err, httperr.ErrConflict):
		return &ingestionError{
			statusCode: http.StatusConflict,
			errorType:  httperr.HttpConflictError,
			message:    msgApplyConflict,
		}
	default:
		return &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgEndingFailed,
		}
	}
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
