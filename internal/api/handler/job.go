package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/stickergen/internal/api/middleware"
	"github.com/timmy/stickergen/internal/domain"
	"github.com/timmy/stickergen/internal/logger"
	"github.com/timmy/stickergen/internal/service"
)

// JobService is the job lifecycle as seen by the HTTP layer.
type JobService interface {
	Submit(ctx context.Context, userID, prompt string) (*domain.Job, error)
	Status(ctx context.Context, userID, jobID string) (*domain.Job, error)
	History(ctx context.Context, userID string, page, limit int) (*service.HistoryPage, error)
	Detail(ctx context.Context, userID, jobID string) (*service.JobDetail, error)
}

// JobHandler handles job submission and lookup endpoints.
type JobHandler struct {
	jobs JobService
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - jobs: job service instance.
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(jobs JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// GenerateRequest is the submission body.
// Width, Height and Quantity are accepted for older clients and ignored.
type GenerateRequest struct {
	Prompt   string `json:"prompt"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
}

// GenerateResponse acknowledges a queued job.
type GenerateResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// JobStatusResponse is the status poll payload. Absent values are JSON null.
type JobStatusResponse struct {
	Status    domain.JobStatus `json:"status"`
	ResultURL *string          `json:"result_url"`
	ErrorMsg  *string          `json:"error_msg"`
	Prompt    string           `json:"prompt"`
}

// JobSummary is one history entry.
type JobSummary struct {
	ID        string           `json:"id"`
	Prompt    string           `json:"prompt"`
	Status    domain.JobStatus `json:"status"`
	ResultURL *string          `json:"result_url"`
	ErrorMsg  *string          `json:"error_msg"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// JobHistoryResponse is one page of the caller's jobs.
type JobHistoryResponse struct {
	Jobs    []JobSummary `json:"jobs"`
	Page    int          `json:"page"`
	Limit   int          `json:"limit"`
	HasMore bool         `json:"has_more"`
}

// ArtifactResponse describes one stored image.
type ArtifactResponse struct {
	URL          string    `json:"url"`
	GenerationID string    `json:"generation_id"`
	Format       string    `json:"format"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	FileSize     int64     `json:"file_size"`
	CreatedAt    time.Time `json:"created_at"`
}

// OrderSummary describes one print order.
type OrderSummary struct {
	ID                  string                  `json:"id"`
	Quantity            int                     `json:"quantity"`
	TotalCost           float64                 `json:"total_cost"`
	PrintPartnerOrderID string                  `json:"print_partner_order_id"`
	Status              domain.PrintOrderStatus `json:"status"`
	CreatedAt           time.Time               `json:"created_at"`
}

// JobDetailResponse is a job with its images and orders.
type JobDetailResponse struct {
	Job       JobSummary         `json:"job"`
	Artifacts []ArtifactResponse `json:"artifacts"`
	Orders    []OrderSummary     `json:"orders"`
}

// Generate handles POST /api/generate.
func (h *JobHandler) Generate(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx := c.Request.Context()
	job, err := h.jobs.Submit(ctx, userID, req.Prompt)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrEmptyPrompt):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required"})
		return
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	case errors.Is(err, service.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service is shutting down"})
		return
	default:
		logger.CtxError(ctx, "Failed to create job: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job"})
		return
	}

	c.JSON(http.StatusAccepted, GenerateResponse{JobID: job.ID, Status: "queued"})
}

// JobStatus handles GET /api/job-status?jobId=.
func (h *JobHandler) JobStatus(c *gin.Context) {
	jobID := c.Query("jobId")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Job ID is required"})
		return
	}

	job, err := h.jobs.Status(c.Request.Context(), middleware.UserID(c), jobID)
	if err != nil {
		h.writeLookupError(c, err)
		return
	}

	c.JSON(http.StatusOK, JobStatusResponse{
		Status:    job.Status,
		ResultURL: job.ResultURL,
		ErrorMsg:  job.ErrorMsg,
		Prompt:    job.Prompt,
	})
}

// ListJobs handles GET /api/jobs?page=&limit=.
func (h *JobHandler) ListJobs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(service.DefaultHistoryLimit)))

	result, err := h.jobs.History(c.Request.Context(), middleware.UserID(c), page, limit)
	if err != nil {
		h.writeLookupError(c, err)
		return
	}

	resp := JobHistoryResponse{
		Jobs:    make([]JobSummary, 0, len(result.Jobs)),
		Page:    result.Page,
		Limit:   result.Limit,
		HasMore: result.HasMore,
	}
	for i := range result.Jobs {
		resp.Jobs = append(resp.Jobs, toJobSummary(&result.Jobs[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// GetJob handles GET /api/jobs/:id.
func (h *JobHandler) GetJob(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Job ID is required"})
		return
	}

	detail, err := h.jobs.Detail(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		h.writeLookupError(c, err)
		return
	}

	resp := JobDetailResponse{
		Job:       toJobSummary(detail.Job),
		Artifacts: make([]ArtifactResponse, 0, len(detail.Artifacts)),
		Orders:    make([]OrderSummary, 0, len(detail.Orders)),
	}
	for _, a := range detail.Artifacts {
		resp.Artifacts = append(resp.Artifacts, ArtifactResponse{
			URL:          a.PublicURL,
			GenerationID: a.GenerationID,
			Format:       a.Format,
			Width:        a.Width,
			Height:       a.Height,
			FileSize:     a.FileSize,
			CreatedAt:    a.CreatedAt,
		})
	}
	for _, o := range detail.Orders {
		resp.Orders = append(resp.Orders, OrderSummary{
			ID:                  o.ID,
			Quantity:            o.Quantity,
			TotalCost:           o.TotalCost,
			PrintPartnerOrderID: o.PrintPartnerOrderID,
			Status:              o.Status,
			CreatedAt:           o.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *JobHandler) writeLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
	default:
		logger.CtxError(c.Request.Context(), "Job lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job"})
	}
}

func toJobSummary(job *domain.Job) JobSummary {
	return JobSummary{
		ID:        job.ID,
		Prompt:    job.Prompt,
		Status:    job.Status,
		ResultURL: job.ResultURL,
		ErrorMsg:  job.ErrorMsg,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}
