package runtime

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// TaskRequest is the input boundary: a single UTF-8 text string, however the
// caller obtained it (typed, transcribed, or extracted from a document).
type TaskRequest struct {
	Text string `json:"text"`
}

// NewHTTPHandler registers the automation API on the gin engine.
func NewHTTPHandler(app *App, g *gin.Engine) {
	g.POST("/tasks", handleSubmit(app))
	g.GET("/tasks/suggest", handleSuggest(app))
	g.GET("/runs/:id", handleRunStatus(app))
	g.POST("/runs/:id/cancel", handleRunCancel(app))
	g.POST("/catalog/reload", handleReload(app))
}

func handleSubmit(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "wrong request body format"})
			return
		}

		run, err := app.Submit(c.Request.Context(), req.Text)
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, ErrEmptyInput):
				status = http.StatusBadRequest
			case errors.Is(err, ErrNoMatch), errors.Is(err, ErrEmptyTemplate):
				status = http.StatusNotFound
			case errors.Is(err, ErrRunActive):
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"message": err.Error()})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"run_id":  run.Execution.ID,
			"task_id": run.Execution.Plan.Template.TaskID,
			"message": "Task identified: " + run.Execution.Plan.Template.Name + ". Starting automation...",
		})
	}
}

func handleSuggest(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := c.Query("q")
		if len(q) < 2 {
			c.JSON(http.StatusOK, gin.H{"suggestions": []Suggestion{}})
			return
		}
		max, err := strconv.Atoi(c.DefaultQuery("max", "5"))
		if err != nil || max <= 0 {
			max = 5
		}
		c.JSON(http.StatusOK, gin.H{"suggestions": app.Suggest(q, max)})
	}
}

func handleRunStatus(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, ok := app.Runner().Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"message": "run not found"})
			return
		}
		c.JSON(http.StatusOK, run.Status())
	}
}

func handleRunCancel(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, ok := app.Runner().Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"message": "run not found"})
			return
		}
		run.Cancel()
		c.JSON(http.StatusAccepted, gin.H{"message": "cancellation requested"})
	}
}

func handleReload(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := app.Reload(); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrRunActive) {
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}
