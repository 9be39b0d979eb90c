package middleware

import (
	"time"

	"gatekit/internal/common"
	"gatekit/internal/models"

	"github.com/labstack/echo/v4"
)

const requestContextKey = "gatekit.request_context"

// Stage is one pipeline step. It either advances the request context or
// denies with a typed error; no stage may be skipped silently.
type Stage struct {
	Name string
	Run  func(c echo.Context, rc *models.RequestContext) *common.AppError
}

// Pipeline folds an ordered stage list over a request, short-circuiting on
// the first denial, and emits exactly one audit decision per request
// regardless of outcome.
type Pipeline struct {
	stages      []Stage
	recorder    *DecisionRecorder
	development bool
}

func NewPipeline(recorder *DecisionRecorder, development bool, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, recorder: recorder, development: development}
}

// Then wraps a business handler with the pipeline.
func (p *Pipeline) Then(handler echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc := &models.RequestContext{
			Method:    c.Request().Method,
			Route:     c.Path(),
			ClientIP:  common.ClientIP(c.Request()),
			StartedAt: time.Now(),
		}
		c.Set(requestContextKey, rc)

		for _, stage := range p.stages {
			if appErr := stage.Run(c, rc); appErr != nil {
				rc.Record(stage.Name, false, appErr.Message)
				p.recorder.RecordDenial(c, rc, appErr)
				return common.SendError(c, appErr, p.development)
			}
			rc.Record(stage.Name, true, "")
		}

		err := handler(c)
		p.recorder.RecordOutcome(c, rc, err)
		return err
	}
}

// GetRequestContext returns the pipeline context attached to the request.
func GetRequestContext(c echo.Context) (*models.RequestContext, bool) {
	rc, ok := c.Get(requestContextKey).(*models.RequestContext)
	return rc, ok
}
