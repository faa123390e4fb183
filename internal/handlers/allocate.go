package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kosarica/allocation-service/internal/optimizer"
	"github.com/kosarica/allocation-service/internal/pipeline"
	"github.com/kosarica/allocation-service/internal/scenarios"
	"github.com/kosarica/allocation-service/internal/types"
)

// SKUInput is one SKU of an allocation request
type SKUInput struct {
	ID    string `json:"sku_id" binding:"required"`
	Style string `json:"style,omitempty"`
	Color string `json:"color"`
	Size  string `json:"size"`
	Stock int    `json:"stock" binding:"min=0"`
}

// StoreInput is one store of an allocation request
type StoreInput struct {
	ID     string  `json:"store_id" binding:"required"`
	QtySum float64 `json:"qty_sum" binding:"min=0"`
	// Capacity defaults to the configured default when omitted.
	Capacity *int `json:"capacity,omitempty" binding:"omitempty,min=0"`
}

// AllocateRequest represents a synchronous allocation request
type AllocateRequest struct {
	SKUs   []SKUInput   `json:"skus" binding:"required,min=1,dive"`
	Stores []StoreInput `json:"stores" binding:"required,min=1,dive"`
	// Scenario names a catalogue scenario or preset; empty uses the default.
	Scenario string `json:"scenario,omitempty"`
	// Options override scenario fields by option name. Unknown names are rejected.
	Options map[string]any `json:"options,omitempty"`
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// Settings holds handler defaults taken from the application config
type Settings struct {
	DefaultScenario string
	DefaultCapacity int
	// WarmupWait bounds how long a request waits for the catalogue.
	WarmupWait time.Duration
}

// Global allocator state (initialized by the application)
var (
	allocRunner       optimizer.Runner
	scenarioCatalogue *scenarios.Catalogue
	warmupGate        *optimizer.WarmupGate
	settings          Settings
)

// InitAllocator wires the allocation handlers.
// This should be called during application startup
func InitAllocator(runner optimizer.Runner, catalogue *scenarios.Catalogue, gate *optimizer.WarmupGate, s Settings) {
	if s.DefaultScenario == "" {
		s.DefaultScenario = optimizer.DefaultScenario().Name
	}
	if s.WarmupWait <= 0 {
		s.WarmupWait = 5 * time.Second
	}
	allocRunner = runner
	scenarioCatalogue = catalogue
	warmupGate = gate
	settings = s
}

// Allocate godoc
// @Summary Run an allocation
// @Description Runs coverage and quantity optimization for one scenario and returns the assembled result
// @Tags allocation
// @Accept json
// @Produce json
// @Param request body AllocateRequest true "SKUs, stores and scenario"
// @Success 200 {object} optimizer.Result
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /allocate [post]
func Allocate(c *gin.Context) {
	var req AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if allocRunner == nil || scenarioCatalogue == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "allocator not initialized"})
		return
	}
	if warmupGate != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), settings.WarmupWait)
		ready := warmupGate.Wait(ctx)
		cancel()
		if !ready {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "scenario catalogue not loaded"})
			return
		}
	}

	name := req.Scenario
	if name == "" {
		name = settings.DefaultScenario
	}
	sc, err := scenarioCatalogue.Get(name)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(req.Options) > 0 {
		delete(req.Options, "name")
		if sc, err = optimizer.ApplyOptions(sc, req.Options); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}

	reg, err := pipeline.BuildRegistry(toSKURecords(req.SKUs), toStoreRecords(req.Stores), settings.DefaultCapacity)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := allocRunner.Run(c.Request.Context(), reg, &sc)
	if err != nil {
		writeError(c, err)
		return
	}

	log.Info().
		Str("request_id", optimizer.RequestID(c.Request.Context())).
		Str("scenario", sc.Name).
		Str("run_id", result.Metadata.RunID).
		Str("step2_algorithm", result.Metadata.Step2.Algorithm).
		Float64("allocation_rate", result.Totals.AllocationRate).
		Msg("Allocation served")

	c.JSON(http.StatusOK, result)
}

func writeError(c *gin.Context, err error) {
	var (
		invalidInput    optimizer.ErrInvalidInput
		invalidScenario optimizer.ErrInvalidScenario
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &invalidInput), errors.As(err, &invalidScenario):
		status = http.StatusBadRequest
	case errors.Is(err, scenarios.ErrScenarioNotFound):
		status = http.StatusNotFound
	case errors.Is(err, optimizer.ErrAllocationFailed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", optimizer.RequestID(c.Request.Context())).Msg("Allocation request failed")
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func toSKURecords(in []SKUInput) []types.SKURecord {
	out := make([]types.SKURecord, len(in))
	for i, s := range in {
		out[i] = types.SKURecord{ID: s.ID, Style: s.Style, Color: s.Color, Size: s.Size, Stock: s.Stock, RowNumber: i + 1}
	}
	return out
}

func toStoreRecords(in []StoreInput) []types.StoreRecord {
	out := make([]types.StoreRecord, len(in))
	for j, s := range in {
		out[j] = types.StoreRecord{ID: s.ID, QtySum: s.QtySum, Capacity: s.Capacity, RowNumber: j + 1}
	}
	return out
}
