package api

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"TokenPulse/internal/domain/models"
	xhttp "TokenPulse/pkg/http"
	xlogger "TokenPulse/pkg/logger"
)

// Admitter is the gateway entry point used by the HTTP surface.
type Admitter interface {
	Admit(ctx context.Context, req *models.AnalysisRequest) (*models.AnalysisRequest, error)
}

// StatsProvider reports dispatcher load.
type StatsProvider interface {
	Stats() (inFlight, queued int)
}

type submitResponse struct {
	RequestID  string   `json:"request_id"`
	Tokens     []string `json:"tokens"`
	CoinSource string   `json:"coin_source"`
}

type healthResponse struct {
	Status   string `json:"status"`
	InFlight int    `json:"in_flight"`
	Queued   int    `json:"queued"`
}

// AnalysisEchoHandler exposes request submission and health over HTTP.
type AnalysisEchoHandler struct {
	logger  *xlogger.Logger
	gateway Admitter
	stats   StatsProvider
}

func NewAnalysisEchoHandler(logger *xlogger.Logger, gateway Admitter, stats StatsProvider) *AnalysisEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &AnalysisEchoHandler{logger: logger, gateway: gateway, stats: stats}
}

func (h *AnalysisEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/analysis", h.Submit)
	g.GET("/health", h.Health)
}

// Submit accepts the same payload as the request topic. request_id is generated when absent.
func (h *AnalysisEchoHandler) Submit(c echo.Context) error {
	req := &models.AnalysisRequest{}
	if err := c.Bind(req); err != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{Code: "ERR_MALFORMED", Message: "malformed request body"}})
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	accepted, err := h.gateway.Admit(c.Request().Context(), req)
	if err != nil {
		var rejected *models.RejectedRequest
		switch {
		case errors.As(err, &rejected):
			out := make([]xhttp.ValidationError, 0, len(rejected.Violations))
			for _, v := range rejected.Violations {
				out = append(out, xhttp.ValidationError{Code: v.Code, Field: v.Field, Message: v.Message})
			}
			if len(out) == 0 {
				out = append(out, xhttp.ValidationError{Code: "ERR_REJECTED", Message: rejected.Reason})
			}
			return xhttp.BadRequestResponse(c, out)
		case errors.Is(err, models.ErrDuplicateRequest):
			return xhttp.AppErrorResponse(c, xhttp.ConflictError("request_id already submitted").WithParam("request_id", req.RequestID))
		case errors.Is(err, models.ErrShuttingDown):
			return xhttp.AppErrorResponse(c, xhttp.UnavailableError("service is shutting down"))
		default:
			h.logger.Error("submit analysis failed", xlogger.String("request_id", req.RequestID), xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("could not accept request").WithError(err))
		}
	}

	return xhttp.AcceptedResponse(c, submitResponse{
		RequestID:  accepted.RequestID,
		Tokens:     accepted.Tokens,
		CoinSource: accepted.CoinSource,
	})
}

func (h *AnalysisEchoHandler) Health(c echo.Context) error {
	resp := healthResponse{Status: "ok"}
	if h.stats != nil {
		resp.InFlight, resp.Queued = h.stats.Stats()
	}
	return xhttp.SuccessResponse(c, resp)
}

var _ xhttp.Handler = (*AnalysisEchoHandler)(nil)
