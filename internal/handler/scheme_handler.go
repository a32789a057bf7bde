package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-sync-api/internal/models"
	"github.com/noah-isme/classroom-sync-api/internal/service"
	appErrors "github.com/noah-isme/classroom-sync-api/pkg/errors"
	"github.com/noah-isme/classroom-sync-api/pkg/response"
)

// SchemeHandler exposes the structured grading document endpoints. Uploads are
// stored byte for byte; normalization happens only on the read endpoints.
type SchemeHandler struct {
	grading *service.GradingService
}

// NewSchemeHandler constructs handler.
func NewSchemeHandler(grading *service.GradingService) *SchemeHandler {
	return &SchemeHandler{grading: grading}
}

func documentKind(param string) (models.SchemeKind, bool) {
	switch param {
	case "mark-scheme":
		return models.SchemeKindMarkScheme, true
	case "boundaries":
		return models.SchemeKindBoundaries, true
	}
	return "", false
}

// Save godoc
// @Summary Store a structured grading document verbatim
// @Tags Grading
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param docKind path string true "Document kind" Enums(mark-scheme, boundaries)
// @Success 201 {object} response.Envelope
// @Router /classes/{classId}/grading/documents/{docKind} [put]
func (h *SchemeHandler) Save(c *gin.Context) {
	kind, ok := documentKind(c.Param("docKind"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown document kind"))
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable body"))
		return
	}
	stored, err := h.grading.SaveDocument(c.Request.Context(), c.Param("classId"), kind, json.RawMessage(body))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, stored)
}

// Versions godoc
// @Summary List stored versions of a grading document
// @Tags Grading
// @Produce json
// @Param classId path string true "Class ID"
// @Param docKind path string true "Document kind" Enums(mark-scheme, boundaries)
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/grading/documents/{docKind}/versions [get]
func (h *SchemeHandler) Versions(c *gin.Context) {
	kind, ok := documentKind(c.Param("docKind"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown document kind"))
		return
	}
	versions, err := h.grading.DocumentVersions(c.Request.Context(), c.Param("classId"), kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// Scheme godoc
// @Summary Fetch the class's rubric in canonical shape
// @Tags Grading
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/grading/scheme [get]
func (h *SchemeHandler) Scheme(c *gin.Context) {
	scheme, err := h.grading.SchemeForClass(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scheme, nil)
}

// Boundaries godoc
// @Summary Fetch the class's grading boundaries in canonical shape
// @Tags Grading
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/grading/boundaries [get]
func (h *SchemeHandler) Boundaries(c *gin.Context) {
	table, err := h.grading.BoundariesForClass(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, table, nil)
}
