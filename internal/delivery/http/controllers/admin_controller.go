package controllers

import (
	"log/slog"
	"net/http"

	"eventlisting/internal/delivery/http/helpers"
	"eventlisting/internal/domain"
)

// AdminController serves moderation endpoints. Routes are guarded by the admin role.
type AdminController struct {
	Logger  *slog.Logger
	Service domain.EventService
}

func NewAdminController(logger *slog.Logger, svc domain.EventService) *AdminController {
	return &AdminController{
		Logger:  logger,
		Service: svc,
	}
}

// SearchEvents godoc
// @Summary Search all events
// @Description Filters combine with AND; list parameters accept repeated or comma separated values.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param users query []string false "Initiator ids"
// @Param states query []string false "PENDING, PUBLISHED or CANCELED"
// @Param categories query []string false "Category ids"
// @Param range_start query string false "Lower event_date bound (RFC 3339 or 2006-01-02 15:04:05)"
// @Param range_end query string false "Upper event_date bound"
// @Param page query int false "Page (1-based)" default(1)
// @Param page_size query int false "Page size" default(10)
// @Success 200 {object} controllers.EventFullListSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/events [get]
func (c *AdminController) SearchEvents(w http.ResponseWriter, r *http.Request) {
	var (
		filter domain.EventFilter
		err    error
	)
	if filter.InitiatorIDs, err = helpers.QueryIDs(r, "users"); err != nil {
		badQuery(w, err)
		return
	}
	if filter.CategoryIDs, err = helpers.QueryIDs(r, "categories"); err != nil {
		badQuery(w, err)
		return
	}
	for _, s := range helpers.QueryList(r, "states") {
		filter.States = append(filter.States, domain.EventState(s))
	}
	if filter.RangeStart, err = helpers.QueryTime(r, "range_start"); err != nil {
		badQuery(w, err)
		return
	}
	if filter.RangeEnd, err = helpers.QueryTime(r, "range_end"); err != nil {
		badQuery(w, err)
		return
	}

	events, err := c.Service.SearchAdmin(r.Context(), filter, helpers.ParsePagination(r))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, events)
}

// UpdateEvent godoc
// @Summary Moderate an event
// @Description Partial update. state_action accepts PUBLISH_EVENT (PENDING only, event_date at least one hour ahead) or REJECT_EVENT (not PUBLISHED).
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param event body AdminUpdateEventRequest true "Fields to change"
// @Success 200 {object} controllers.EventFullSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/events/{eventID} [patch]
func (c *AdminController) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "eventID")
	if !ok {
		return
	}
	var req AdminUpdateEventRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	event, err := c.Service.UpdateByAdmin(r.Context(), eventID, req.ToDomain())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, event)
}
