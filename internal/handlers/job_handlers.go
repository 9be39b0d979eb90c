package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"gatekit/internal/common"
	"gatekit/internal/jobs/background"

	"github.com/labstack/echo/v4"
)

// JobHandlers serves the super-admin background-job surface.
type JobHandlers struct {
	scheduler *background.JobScheduler
}

func NewJobHandlers(scheduler *background.JobScheduler) *JobHandlers {
	return &JobHandlers{scheduler: scheduler}
}

// ListJobs reports every registered background job with its last and next
// run times.
func (h *JobHandlers) ListJobs(c echo.Context) error {
	return common.SendSuccess(c, http.StatusOK, h.scheduler.Status())
}

// RunJob triggers a registered job outside its schedule. The trigger is
// asynchronous; the response only acknowledges the dispatch.
func (h *JobHandlers) RunJob(c echo.Context) error {
	name := c.Param("name")
	if err := h.scheduler.RunNow(name); err != nil {
		if errors.Is(err, background.ErrUnknownJob) {
			return common.ErrNotFound(fmt.Sprintf("job %q is not registered", name))
		}
		return common.ErrInternal("failed to trigger job", err)
	}
	return common.SendSuccess(c, http.StatusAccepted, map[string]string{"job": name, "status": "triggered"})
}
