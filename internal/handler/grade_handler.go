package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-sync-api/internal/models"
	"github.com/noah-isme/classroom-sync-api/internal/service"
	appErrors "github.com/noah-isme/classroom-sync-api/pkg/errors"
	"github.com/noah-isme/classroom-sync-api/pkg/response"
)

// GradeHandler exposes computed grade endpoints.
type GradeHandler struct {
	grading *service.GradingService
	exports *service.ExportService
}

// NewGradeHandler constructs handler. exports may be nil when the export
// endpoints are disabled.
func NewGradeHandler(grading *service.GradingService, exports *service.ExportService) *GradeHandler {
	return &GradeHandler{grading: grading, exports: exports}
}

// Preview godoc
// @Summary Compute a grade summary for an ad-hoc selection
// @Tags Grades
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body models.SubmissionGrade true "Grade selections"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/grades/preview [post]
func (h *GradeHandler) Preview(c *gin.Context) {
	var grade models.SubmissionGrade
	if err := c.ShouldBindJSON(&grade); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	summary, err := h.grading.Preview(c.Request.Context(), c.Param("classId"), grade)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// SubmissionGrade godoc
// @Summary Compute the grade summary of a stored submission
// @Tags Grades
// @Produce json
// @Param classId path string true "Class ID"
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/submissions/{id}/grade [get]
func (h *GradeHandler) SubmissionGrade(c *gin.Context) {
	summary, err := h.grading.SubmissionSummary(c.Request.Context(), c.Param("classId"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// GradeSheet godoc
// @Summary Export the class grade sheet
// @Tags Grades
// @Produce text/csv
// @Produce application/pdf
// @Param classId path string true "Class ID"
// @Param format query string false "Export format" Enums(csv, pdf) default(csv)
// @Success 200 {file} binary
// @Router /classes/{classId}/grade-sheet [get]
func (h *GradeHandler) GradeSheet(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.GradeSheet(c.Request.Context(), c.Param("classId"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
