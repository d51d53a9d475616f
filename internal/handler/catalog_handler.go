package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edutrack-id/timetable-api/internal/service"
	"github.com/edutrack-id/timetable-api/pkg/response"
)

// CatalogHandler exposes the read-only reference catalog.
type CatalogHandler struct {
	service *service.CatalogService
}

// NewCatalogHandler constructs handler.
func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

// Teachers godoc
// @Summary Active teacher roster
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *CatalogHandler) Teachers(c *gin.Context) {
	teachers, err := h.service.ListTeachers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, nil)
}

// Subjects godoc
// @Summary Subject catalog with quotas and joint linkage
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *CatalogHandler) Subjects(c *gin.Context) {
	subjects, err := h.service.ListSubjects(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// Groups godoc
// @Summary Group roster
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /groups [get]
func (h *CatalogHandler) Groups(c *gin.Context) {
	groups, err := h.service.ListGroups(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}

// Blocks godoc
// @Summary Fixed daily block list
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /blocks [get]
func (h *CatalogHandler) Blocks(c *gin.Context) {
	blocks, err := h.service.ListBlocks(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocks, nil)
}
