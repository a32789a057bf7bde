package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-sync-api/internal/models"
	"github.com/noah-isme/classroom-sync-api/internal/service"
	appErrors "github.com/noah-isme/classroom-sync-api/pkg/errors"
	"github.com/noah-isme/classroom-sync-api/pkg/response"
)

// RecordHandler exposes the authoritative record endpoints.
type RecordHandler struct {
	records *service.RecordService
}

// NewRecordHandler constructs handler.
func NewRecordHandler(records *service.RecordService) *RecordHandler {
	return &RecordHandler{records: records}
}

// List godoc
// @Summary List class records of one kind
// @Tags Records
// @Produce json
// @Param classId path string true "Class ID"
// @Param kind path string true "Record kind"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/records/{kind} [get]
func (h *RecordHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	snapshots, pagination, err := h.records.List(c.Request.Context(),
		models.RecordKind(c.Param("kind")), service.ListRecordsRequest{
			ClassID:  c.Param("classId"),
			Page:     page,
			PageSize: pageSize,
		})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshots, pagination)
}

// Create godoc
// @Summary Create a record
// @Tags Records
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param kind path string true "Record kind"
// @Param payload body service.CreateRecordRequest true "Record payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{classId}/records/{kind} [post]
func (h *RecordHandler) Create(c *gin.Context) {
	var req service.CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.ClassID = c.Param("classId")
	snapshot, err := h.records.Create(c.Request.Context(), models.RecordKind(c.Param("kind")), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, snapshot)
}

// Get godoc
// @Summary Fetch one record snapshot
// @Tags Records
// @Produce json
// @Param kind path string true "Record kind"
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{kind}/{id} [get]
func (h *RecordHandler) Get(c *gin.Context) {
	snapshot, err := h.records.Get(c.Request.Context(),
		models.RecordKind(c.Param("kind")), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// Patch godoc
// @Summary Merge a partial field update into a record
// @Tags Records
// @Accept json
// @Produce json
// @Param kind path string true "Record kind"
// @Param id path string true "Record ID"
// @Param payload body service.PatchRecordRequest true "Field patch"
// @Success 200 {object} response.Envelope
// @Router /records/{kind}/{id} [patch]
func (h *RecordHandler) Patch(c *gin.Context) {
	var req service.PatchRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	snapshot, err := h.records.Patch(c.Request.Context(),
		models.RecordKind(c.Param("kind")), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// Delete godoc
// @Summary Delete a record
// @Tags Records
// @Param kind path string true "Record kind"
// @Param id path string true "Record ID"
// @Success 204 "No Content"
// @Router /records/{kind}/{id} [delete]
func (h *RecordHandler) Delete(c *gin.Context) {
	if err := h.records.Delete(c.Request.Context(),
		models.RecordKind(c.Param("kind")), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
