package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"scout/scan"
	"scout/types"
)

// RegisterScanRoutes registers the scan task endpoints.
func RegisterScanRoutes(r *gin.Engine, manager *scan.Manager) {
	ctrl := &scanController{manager: manager}
	g := r.Group("/api/scans")
	g.POST("", ctrl.handleSubmit)
	g.GET("", ctrl.handleList)
	g.GET("/:id", ctrl.handleGet)
	g.DELETE("/:id", ctrl.handleCancel)
	g.GET("/:id/results", ctrl.handleResults)
}

type scanController struct {
	manager *scan.Manager
}

// SubmitScanRequest represents the request to start a scan task.
type SubmitScanRequest struct {
	Documents            []types.DocumentRef `json:"documents" binding:"required"`
	KeepPartialResults   bool                `json:"keep_partial_results"`
	ExcludeLowConfidence bool                `json:"exclude_low_confidence"`
}

// SubmitScanResponse returns the handle for the queued task.
type SubmitScanResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// handleSubmit queues a scan over the submitted documents.
func (ctrl *scanController) handleSubmit(c *gin.Context) {
	var req SubmitScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, d := range req.Documents {
		if d.ID == "" || d.Path == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "every document needs an id and a path"})
			return
		}
	}

	id, err := ctrl.manager.Submit(req.Documents, scan.Options{
		KeepPartialResults:   req.KeepPartialResults,
		ExcludeLowConfidence: req.ExcludeLowConfidence,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scan.ErrQueueFull) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, SubmitScanResponse{TaskID: id, Status: string(types.TaskQueued)})
}

// handleList returns snapshots of all tasks, or only active ones with
// ?active=true.
func (ctrl *scanController) handleList(c *gin.Context) {
	var tasks []types.TaskSnapshot
	if c.Query("active") == "true" {
		tasks = ctrl.manager.ActiveTasks()
	} else {
		tasks = ctrl.manager.List()
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// handleGet returns one task snapshot.
func (ctrl *scanController) handleGet(c *gin.Context) {
	snap, ok := ctrl.manager.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// handleCancel requests cancellation of a queued or running task.
func (ctrl *scanController) handleCancel(c *gin.Context) {
	id := c.Param("id")
	if !ctrl.manager.Cancel(id) {
		if _, exists := ctrl.manager.Get(id); !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": "task already finished"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelling"})
}

// ResultsResponse is the filtered exporter view of a finished task.
type ResultsResponse struct {
	TaskID        string                               `json:"task_id"`
	Documents     []*types.DocumentResult              `json:"documents"`
	Abbreviations map[string]*types.AbbreviationResult `json:"merged_abbreviations"`
}

// handleResults returns the extracted output of a terminal task. Optional
// filters: kinds (comma-separated entity kinds), tiers (extraction tiers),
// include_low=false to drop LOW-confidence entities.
func (ctrl *scanController) handleResults(c *gin.Context) {
	id := c.Param("id")
	results, ok := ctrl.manager.Results(id)
	if !ok {
		snap, exists := ctrl.manager.Get(id)
		if !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		if !snap.State.Terminal() {
			c.JSON(http.StatusConflict, gin.H{"error": "task still " + string(snap.State)})
			return
		}
		c.JSON(http.StatusGone, gin.H{"error": "results not retained"})
		return
	}

	kinds := csvSet(c.Query("kinds"))
	tiers := csvSet(c.Query("tiers"))
	includeLow := c.DefaultQuery("include_low", "true") != "false"

	docs := make([]*types.DocumentResult, 0, len(results.Documents))
	for _, doc := range results.Documents {
		filtered := *doc
		filtered.Entities = filterEntities(doc.Entities, kinds, tiers, includeLow)
		docs = append(docs, &filtered)
	}

	c.JSON(http.StatusOK, ResultsResponse{
		TaskID:        results.TaskID,
		Documents:     docs,
		Abbreviations: results.Merged,
	})
}

func filterEntities(ents []types.Entity, kinds, tiers map[string]struct{}, includeLow bool) []types.Entity {
	out := make([]types.Entity, 0, len(ents))
	for _, e := range ents {
		if len(kinds) > 0 {
			if _, ok := kinds[string(e.Kind)]; !ok {
				continue
			}
		}
		if len(tiers) > 0 {
			if _, ok := tiers[string(e.Tier)]; !ok {
				continue
			}
		}
		if !includeLow && e.Confidence == types.ConfidenceLow {
			continue
		}
		out = append(out, e)
	}
	return out
}

func csvSet(raw string) map[string]struct{} {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	set := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			set[part] = struct{}{}
		}
	}
	return set
}
