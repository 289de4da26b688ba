package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/adherence-engine/internal/scheduler"
	"go.uber.org/zap"
)

// SweepRunner runs scheduler sweeps on demand
type SweepRunner interface {
	RunUpcoming(ctx context.Context) *scheduler.SweepReport
	RunOverdue(ctx context.Context) *scheduler.SweepReport
	RunAutoMiss(ctx context.Context) *scheduler.SweepReport
	Phase(kind scheduler.SweepKind) scheduler.Phase
}

// SweepResponse is a sweep report with its failures flattened to messages
type SweepResponse struct {
	*scheduler.SweepReport
	Errors []string `json:"errors,omitempty"`
}

// RunResponse lists the reports of a manual run
type RunResponse struct {
	Sweeps []SweepResponse `json:"sweeps"`
}

// StatusResponse is the phase of each sweep job
type StatusResponse struct {
	Phases map[scheduler.SweepKind]string `json:"phases"`
}

// SchedulerHandler triggers and inspects reminder sweeps
type SchedulerHandler struct {
	runner SweepRunner
	logger *zap.Logger
}

// NewSchedulerHandler creates a new SchedulerHandler
func NewSchedulerHandler(runner SweepRunner, logger *zap.Logger) *SchedulerHandler {
	return &SchedulerHandler{
		runner: runner,
		logger: logger,
	}
}

// Run executes the sweep named by the kind query parameter, or every sweep when absent.
// Sweeps run synchronously with the request context.
func (h *SchedulerHandler) Run(c *gin.Context) {
	ctx := c.Request.Context()

	var reports []*scheduler.SweepReport
	switch scheduler.SweepKind(c.Query("kind")) {
	case "":
		reports = append(reports, h.runner.RunUpcoming(ctx), h.runner.RunOverdue(ctx), h.runner.RunAutoMiss(ctx))
	case scheduler.SweepUpcoming:
		reports = append(reports, h.runner.RunUpcoming(ctx))
	case scheduler.SweepOverdue:
		reports = append(reports, h.runner.RunOverdue(ctx))
	case scheduler.SweepAutoMiss:
		reports = append(reports, h.runner.RunAutoMiss(ctx))
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    CodeValidation,
			Message: "Unknown sweep kind",
			Details: stringPtr("kind must be one of upcoming, overdue, automiss"),
		})
		return
	}

	resp := RunResponse{Sweeps: make([]SweepResponse, 0, len(reports))}
	for _, r := range reports {
		if err := r.Err(); err != nil {
			h.logger.Warn("manual sweep finished with failures",
				zap.String("kind", string(r.Kind)),
				zap.Error(err),
			)
		}
		resp.Sweeps = append(resp.Sweeps, SweepResponse{SweepReport: r, Errors: r.Errors()})
	}
	c.JSON(http.StatusOK, resp)
}

// Status returns the current phase of every sweep job
func (h *SchedulerHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{Phases: map[scheduler.SweepKind]string{
		scheduler.SweepUpcoming: h.runner.Phase(scheduler.SweepUpcoming).String(),
		scheduler.SweepOverdue:  h.runner.Phase(scheduler.SweepOverdue).String(),
		scheduler.SweepAutoMiss: h.runner.Phase(scheduler.SweepAutoMiss).String(),
	}})
}
