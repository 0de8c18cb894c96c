// Package ingestion is the write side of the engine: record a choice,
// record a reached ending. Each handler validates, persists, folds into the
// derived state, and only then reports success. The engine never reports
// success while silently dropping an event.
package ingestion

import (
	"github.com/gin-gonic/gin"
	"github.com/inkwell-labs/storypulse/internal/aggregation"
	"github.com/inkwell-labs/storypulse/internal/completion"
	"github.com/inkwell-labs/storypulse/internal/core/storage"
	"github.com/inkwell-labs/storypulse/internal/notify"
)

type Service struct {
	events           storage.EventStore
	aggregator       *aggregation.Aggregator
	evaluator        *completion.Evaluator
	hub              *notify.Hub
	maxBodySizeBytes int
}

func NewService(
	events storage.EventStore,
	aggregator *aggregation.Aggregator,
	evaluator *completion.Evaluator,
	hub *notify.Hub,
	maxBodySizeMB int,
) *Service {
	if events == nil {
		panic("ingestion: event store must not be nil")
	}
	if aggregator == nil {
		panic("ingestion: aggregator must not be nil")
	}
	if evaluator == nil {
		panic("ingestion: evaluator must not be nil")
	}
	if hub == nil {
		hub = notify.NewHub()
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		events:           events,
		aggregator:       aggregator,
		evaluator:        evaluator,
		hub:              hub,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/choices", s.RecordChoiceHandler)
	r.POST("/v1/endings", s.RecordEndingHandler)
}
