package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"admin-console-backend/internal/models"
	"admin-console-backend/internal/services"
	"admin-console-backend/pkg/httputil"
)

// IngestionService defines the interface expected from the ingestion service.
type IngestionService interface {
	Accept(ctx context.Context, filename string, size int64) (*models.IngestionJob, error)
	Process(jobID uuid.UUID, filename string, data []byte)
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.IngestionJob, error)
	ListJobs(ctx context.Context) ([]models.IngestionJob, error)
}

type IngestionHandler struct {
	ingestionService IngestionService
}

func NewIngestionHandler(svc IngestionService) *IngestionHandler {
	return &IngestionHandler{
		ingestionService: svc,
	}
}

// HandleUpload handles POST /v1/assistant/upload (multipart, field "file").
// The file is validated and a pending job registered synchronously; parsing
// and indexing happen in a goroutine after the 202 has been written.
func (h *IngestionHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	// Headroom over the file cap covers multipart framing; the exact limit is
	// enforced on the file part below.
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxUploadBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.RespondError(w, http.StatusRequestEntityTooLarge, httputil.CodePayloadTooLarge, "Uploaded file exceeds the 10 MiB limit")
			return
		}
		httputil.RespondError(w, http.StatusBadRequest, httputil.CodeValidation, "Multipart form field 'file' is required")
		return
	}
	defer file.Close()

	// Read one byte past the cap so a file of exactly the cap passes and one
	// byte more is rejected, independent of multipart overhead.
	data, err := io.ReadAll(io.LimitReader(file, services.MaxUploadBytes+1))
	if err != nil {
		log.Printf("Upload handler failed reading file %q: %v", header.Filename, err)
		httputil.RespondError(w, http.StatusInternalServerError, httputil.CodeInternal, "Failed to read uploaded file")
		return
	}
	if len(data) > services.MaxUploadBytes {
		httputil.RespondError(w, http.StatusRequestEntityTooLarge, httputil.CodePayloadTooLarge, "Uploaded file exceeds the 10 MiB limit")
		return
	}

	job, err := h.ingestionService.Accept(r.Context(), header.Filename, int64(len(data)))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnsupportedExt), errors.Is(err, services.ErrFileEmpty):
			httputil.RespondError(w, http.StatusBadRequest, httputil.CodeValidation, err.Error())
		case errors.Is(err, services.ErrFileTooLarge):
			httputil.RespondError(w, http.StatusRequestEntityTooLarge, httputil.CodePayloadTooLarge, err.Error())
		default:
			log.Printf("Upload handler failed to register job for %q: %v", header.Filename, err)
			httputil.RespondError(w, http.StatusInternalServerError, httputil.CodeInternal, "Failed to register ingestion job")
		}
		return
	}

	// The 202 goes out before processing starts; callers poll the job endpoint.
	httputil.RespondJSON(w, http.StatusAccepted, models.UploadAcceptedResponse{JobID: job.ID})

	go h.ingestionService.Process(job.ID, header.Filename, data)
}

// HandleGetJob handles GET /v1/assistant/jobs/{jobID}.
func (h *IngestionHandler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, httputil.CodeValidation, "Invalid job ID format")
		return
	}

	job, err := h.ingestionService.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			httputil.RespondError(w, http.StatusNotFound, httputil.CodeNotFound, "Ingestion job not found")
			return
		}
		httputil.RespondError(w, http.StatusInternalServerError, httputil.CodeInternal, "Failed to fetch ingestion job")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, toJobResponse(job))
}

// HandleListJobs handles GET /v1/assistant/jobs.
func (h *IngestionHandler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.ingestionService.ListJobs(r.Context())
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, httputil.CodeInternal, "Failed to list ingestion jobs")
		return
	}

	resp := models.ListIngestionJobsResponse{Jobs: make([]models.IngestionJobResponse, 0, len(jobs))}
	for i := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(&jobs[i]))
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

func toJobResponse(job *models.IngestionJob) models.IngestionJobResponse {
	return models.IngestionJobResponse{
		ID:           job.ID,
		Filename:     job.Filename,
		Status:       job.Status,
		Inserted:     job.Inserted,
		Updated:      job.Updated,
		Skipped:      job.Skipped,
		ErrorDetails: job.ErrorDetails,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}
