package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/civitest/civitest-backend/internal/response"
	"github.com/civitest/civitest-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// ResultsHandler handles the admin-facing results endpoints.
type ResultsHandler struct {
	results *service.ResultsService
	log     zerolog.Logger
}

// NewResultsHandler creates a new ResultsHandler.
func NewResultsHandler(results *service.ResultsService, log zerolog.Logger) *ResultsHandler {
	return &ResultsHandler{
		results: results,
		log:     log.With().Str("component", "results_handler").Logger(),
	}
}

func parsePagination(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

// GetExamResults godoc
// GET /api/v1/admin/exams/:exam_id/results
// Lists every attempt at one exam, paginated, oldest first.
func (h *ResultsHandler) GetExamResults(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, perPage := parsePagination(c)

	results, total, err := h.results.ExamResults(c.Request.Context(), examID, page, perPage)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("list exam results failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage != 0 {
		totalPages++
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	})
}

// ExportExamResults godoc
// GET /api/v1/admin/exams/:exam_id/results/export
// Streams an XLSX workbook with every attempt at one exam.
func (h *ResultsHandler) ExportExamResults(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	file, filename, err := h.results.ExportExamResults(c.Request.Context(), examID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("export failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	if err := file.Write(c.Writer); err != nil {
		h.log.Error().Err(err).Msg("export write failed")
	}
}
