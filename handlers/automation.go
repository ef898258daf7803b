package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"visitauto/config"
	"visitauto/models"
	"visitauto/services"
	"visitauto/utils"
)

type RunRequest struct {
	// Site is the mapping key, e.g. "visit-portal" or "itsm-member".
	Site string `json:"site" binding:"required"`
	// StartURL overrides where the browser navigates first.
	StartURL string `json:"start_url" binding:"required,url"`
	// RecordsFile is the path of the xlsx workbook holding the records.
	// Alternatively Records carries them inline; exactly one must be set.
	RecordsFile string          `json:"records_file,omitempty"`
	Records     []models.Record `json:"records,omitempty"`
	// Strict makes confirmation timeouts fail the record.
	Strict *bool `json:"strict,omitempty"`
}

type RunResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	RunID   int                 `json:"run_id,omitempty"`
	Result  *models.BatchResult `json:"result,omitempty"`
}

// AutomationHandler runs batches and serves their persisted results. The DB
// is optional; without it runs execute but are not stored.
type AutomationHandler struct {
	Config config.AutomationConfig
	Runs   *models.BatchRunModel
}

func NewAutomationHandler(cfg config.AutomationConfig, db *sql.DB) *AutomationHandler {
	h := &AutomationHandler{Config: cfg}
	if db != nil {
		h.Runs = models.NewBatchRunModel(db)
	}
	return h
}

// Run executes one batch synchronously and returns the aggregate result.
func (h *AutomationHandler) Run(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestError(c, "Invalid run request", err)
		return
	}

	mapping, ok := services.MappingFor(req.Site, req.StartURL)
	if !ok {
		utils.BadRequestError(c, "Unknown site mapping: "+req.Site, nil)
		return
	}
	mapping.Confirm.Timeout = h.Config.ConfirmTimeout
	mapping.Confirm.Strict = h.Config.ConfirmStrict
	if req.Strict != nil {
		mapping.Confirm.Strict = *req.Strict
	}

	var source models.RecordSource
	switch {
	case req.RecordsFile != "" && len(req.Records) > 0:
		utils.BadRequestError(c, "Provide either records_file or inline records, not both", nil)
		return
	case req.RecordsFile != "":
		src, err := services.NewExcelRecordSource(req.RecordsFile)
		if err != nil {
			utils.BadRequestError(c, "Could not read records file", err)
			return
		}
		source = src
	case len(req.Records) > 0:
		source = &models.SliceRecordSource{Records: req.Records}
	default:
		utils.BadRequestError(c, "No records provided", nil)
		return
	}

	session, err := services.NewPlaywrightSession(h.Config.Headless)
	if err != nil {
		utils.InternalServerError(c, "Could not start browser", err)
		return
	}
	defer session.Close()

	browser := session.Browser()
	filler := services.NewFormFillerService(browser, mapping)
	screenshots := services.NewScreenshotService(browser)

	orch := &services.Orchestrator{
		Filler:      filler,
		Source:      source,
		SettleDelay: h.Config.SettleDelay,
		OnRecordFailure: func(index int, rec models.Record, err error) {
			screenshots.CaptureFailure(mapping.Name, index)
		},
	}

	startedAt := time.Now()
	result, runErr := orch.RunBatch(context.Background())
	finishedAt := time.Now()

	resp := RunResponse{Result: &result}
	if runErr != nil {
		resp.Message = runErr.Error()
	} else {
		resp.Success = true
		resp.Message = "Batch completed"
	}

	if h.Runs != nil {
		run, err := h.Runs.Create(mapping.Name, startedAt, finishedAt, result)
		if err != nil {
			utils.LogError("Failed to persist batch run", err)
		} else {
			resp.RunID = run.ID
		}
	}

	status := http.StatusOK
	if runErr != nil {
		status = http.StatusBadGateway
	}
	c.JSON(status, resp)
}

// ListRuns returns recent persisted runs.
func (h *AutomationHandler) ListRuns(c *gin.Context) {
	if h.Runs == nil {
		utils.ErrorResponseWithCode(c, http.StatusServiceUnavailable, "Run persistence is not configured", nil)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.Runs.List(limit)
	if err != nil {
		utils.InternalServerError(c, "Failed to list runs", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Runs retrieved", runs)
}

// GetRun returns one run with its per-record outcomes.
func (h *AutomationHandler) GetRun(c *gin.Context) {
	if h.Runs == nil {
		utils.ErrorResponseWithCode(c, http.StatusServiceUnavailable, "Run persistence is not configured", nil)
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequestError(c, "Invalid run id", err)
		return
	}

	run, records, err := h.Runs.Get(id)
	if err == sql.ErrNoRows {
		utils.NotFoundError(c, "Run not found")
		return
	}
	if err != nil {
		utils.InternalServerError(c, "Failed to load run", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Run retrieved", gin.H{
		"run":     run,
		"records": records,
	})
}
