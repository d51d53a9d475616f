package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edutrack-id/timetable-api/internal/dto"
	"github.com/edutrack-id/timetable-api/internal/service"
	appErrors "github.com/edutrack-id/timetable-api/pkg/errors"
	"github.com/edutrack-id/timetable-api/pkg/response"
)

// PublicationHandler manages the publish request workflow and snapshots.
type PublicationHandler struct {
	service *service.PublicationService
}

// NewPublicationHandler constructs handler.
func NewPublicationHandler(svc *service.PublicationService) *PublicationHandler {
	return &PublicationHandler{service: svc}
}

// Submit godoc
// @Summary Submit a publish request for the current grid
// @Tags Publication
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /publish-requests [post]
func (h *PublicationHandler) Submit(c *gin.Context) {
	actor := actorID(c)
	if actor == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Submit(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// ListPending godoc
// @Summary List pending publish requests
// @Tags Publication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /publish-requests/pending [get]
func (h *PublicationHandler) ListPending(c *gin.Context) {
	requests, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Approve godoc
// @Summary Approve a pending request, freezing a snapshot
// @Tags Publication
// @Accept json
// @Produce json
// @Param id path string true "Publish request ID"
// @Param payload body dto.ApprovePublishRequest false "Approval payload"
// @Success 201 {object} response.Envelope
// @Router /publish-requests/{id}/approve [post]
func (h *PublicationHandler) Approve(c *gin.Context) {
	actor := actorID(c)
	if actor == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ApprovePublishRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	snapshot, err := h.service.Approve(c.Request.Context(), c.Param("id"), actor, req.Description)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, snapshot)
}

// Reject godoc
// @Summary Reject a pending request with an optional reason
// @Tags Publication
// @Accept json
// @Produce json
// @Param id path string true "Publish request ID"
// @Param payload body dto.RejectPublishRequest false "Rejection payload"
// @Success 200 {object} response.Envelope
// @Router /publish-requests/{id}/reject [post]
func (h *PublicationHandler) Reject(c *gin.Context) {
	actor := actorID(c)
	if actor == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RejectPublishRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	request, err := h.service.Reject(c.Request.Context(), c.Param("id"), actor, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// ListSnapshots godoc
// @Summary List snapshots most-recent-first
// @Tags Publication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /snapshots [get]
func (h *PublicationHandler) ListSnapshots(c *gin.Context) {
	snapshots, err := h.service.ListSnapshots(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshots, nil)
}

// GetSnapshot godoc
// @Summary Snapshot with its frozen assignment rows
// @Tags Publication
// @Produce json
// @Param id path string true "Snapshot ID"
// @Success 200 {object} response.Envelope
// @Router /snapshots/{id} [get]
func (h *PublicationHandler) GetSnapshot(c *gin.Context) {
	detail, err := h.service.GetSnapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// DeleteSnapshot godoc
// @Summary Delete a published snapshot
// @Tags Publication
// @Produce json
// @Param id path string true "Snapshot ID"
// @Success 204
// @Router /snapshots/{id} [delete]
func (h *PublicationHandler) DeleteSnapshot(c *gin.Context) {
	if err := h.service.DeleteSnapshot(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UnpublishedGroups godoc
// @Summary Groups whose live grid differs from the latest snapshot
// @Tags Publication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /snapshots/unpublished-groups [get]
func (h *PublicationHandler) UnpublishedGroups(c *gin.Context) {
	groups, err := h.service.ListUnpublishedGroups(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}
