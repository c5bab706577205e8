// Package runsapi exposes the history of training runs.
package runsapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/baldhumanity/flappyfeller/store"
	"github.com/baldhumanity/flappyfeller/trainer"
)

// RunStore is the part of the store the controller reads.
type RunStore interface {
	Runs(ctx context.Context) ([]store.Run, error)
	Run(ctx context.Context, id string) (store.Run, error)
	Generations(ctx context.Context, runID string) ([]trainer.Summary, error)
}

// Controller serves /runs.
type Controller struct {
	store RunStore
}

// NewController creates a runs controller reading from s.
func NewController(s RunStore) *Controller {
	return &Controller{store: s}
}

// RegisterPublic registers public routes.
func (c *Controller) RegisterPublic(route *gin.RouterGroup) {
	runs := route.Group("/runs")
	{
		runs.GET("", c.list)
		runs.GET("/:ID", c.get)
		runs.GET("/:ID/generations", c.generations)
	}
}

// RegisterProtected registers protected routes.
func (c *Controller) RegisterProtected(route *gin.RouterGroup) {}

func (c *Controller) list(ctx *gin.Context) {
	runs, err := c.store.Runs(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "error while listing runs"})
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	ctx.JSON(http.StatusOK, runs)
}

func (c *Controller) get(ctx *gin.Context) {
	id, ok := runID(ctx)
	if !ok {
		return
	}
	run, err := c.store.Run(ctx, id)
	if err != nil {
		storeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, run)
}

func (c *Controller) generations(ctx *gin.Context) {
	id, ok := runID(ctx)
	if !ok {
		return
	}
	gens, err := c.store.Generations(ctx, id)
	if err != nil {
		storeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, GenerationsResponse{RunID: id, Generations: gens})
}

// runID parses the ID path parameter, answering 400 when it is not a UUID.
func runID(ctx *gin.Context) (string, bool) {
	id, err := uuid.Parse(ctx.Params.ByName("ID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return "", false
	}
	return id.String(), true
}

func storeError(ctx *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	ctx.JSON(http.StatusInternalServerError, gin.H{"error": "error while reading run"})
}
