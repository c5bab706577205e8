// Package liveapi exposes the state of the training run in progress.
package liveapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/baldhumanity/flappyfeller/trainer"
)

// Controller serves /live from a trainer monitor.
type Controller struct {
	monitor *trainer.Monitor
}

// NewController creates a live controller reading m.
func NewController(m *trainer.Monitor) *Controller {
	return &Controller{monitor: m}
}

// RegisterPublic registers public routes.
func (c *Controller) RegisterPublic(route *gin.RouterGroup) {
	live := route.Group("/live")
	{
		live.GET("", c.snapshot)
		live.GET("/frame", c.frame)
	}
}

// RegisterProtected registers routes that change the run.
func (c *Controller) RegisterProtected(route *gin.RouterGroup) {
	route.POST("/live/speed", c.speed)
}

func (c *Controller) snapshot(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.monitor.Snapshot())
}

func (c *Controller) frame(ctx *gin.Context) {
	frame := c.monitor.Frame()
	if frame == "" {
		ctx.Status(http.StatusNoContent)
		return
	}
	ctx.String(http.StatusOK, frame)
}

func (c *Controller) speed(ctx *gin.Context) {
	var request SpeedRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	speed, err := c.monitor.Speed().Apply(request.Action)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, SpeedResponse{Speed: speed})
}
