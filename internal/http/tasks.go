package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/librarian/internal/apperr"
	"github.com/mrlokans/librarian/internal/scheduler"
)

const taskStatusTimeout = 5 * time.Second

var (
	errUnknownJob     = apperr.New(apperr.NotFound, "unknown maintenance job")
	errTaskIDRequired = apperr.New(apperr.Validation, "task ID is required")
)

// TaskQueue enqueues tasks and reports their status. Implemented by
// tasks.Client.
type TaskQueue interface {
	Enqueue(ctx context.Context, tasks ...backlite.Task) ([]string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// JobCatalog lists maintenance jobs. Implemented by
// scheduler.MaintenanceScheduler.
type JobCatalog interface {
	Jobs() []scheduler.Job
	NextRun(name string) *time.Time
}

// TasksController lets administrators inspect and trigger maintenance tasks.
type TasksController struct {
	queue TaskQueue
	jobs  JobCatalog
}

func NewTasksController(queue TaskQueue, jobs JobCatalog) *TasksController {
	return &TasksController{queue: queue, jobs: jobs}
}

// JobInfo describes a maintenance job.
type JobInfo struct {
	Name     string     `json:"name"`
	Schedule string     `json:"schedule"`
	NextRun  *time.Time `json:"nextRun,omitempty"`
}

// ListJobs handles GET /tasks/jobs.
func (tc *TasksController) ListJobs(c *gin.Context) {
	jobs := tc.jobs.Jobs()
	infos := make([]JobInfo, 0, len(jobs))
	for _, job := range jobs {
		infos = append(infos, JobInfo{
			Name:     job.Name,
			Schedule: job.Schedule,
			NextRun:  tc.jobs.NextRun(job.Name),
		})
	}
	respondOK(c, "", infos)
}

// RunJob handles POST /tasks/jobs/:name/run. The task is enqueued, not run
// inline.
func (tc *TasksController) RunJob(c *gin.Context) {
	name := c.Param("name")

	for _, job := range tc.jobs.Jobs() {
		if job.Name != name {
			continue
		}
		ids, err := tc.queue.Enqueue(c.Request.Context(), job.Task())
		if err != nil {
			respondAppError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, SuccessResponse{
			Status:  statusSuccess,
			Message: "task enqueued",
			Data:    gin.H{"taskId": ids[0], "job": name},
		})
		return
	}

	respondAppError(c, errUnknownJob)
}

// GetTaskStatus handles GET /tasks/:id.
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		respondAppError(c, errTaskIDRequired)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), taskStatusTimeout)
	defer cancel()

	status, err := tc.queue.Status(ctx, taskID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondOK(c, "", gin.H{
		"id":     taskID,
		"status": taskStatusToString(status),
	})
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
