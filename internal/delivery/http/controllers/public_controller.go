package controllers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"eventlisting/internal/delivery/http/helpers"
	"eventlisting/internal/domain"
)

// PublicController serves published events to anonymous callers. Every call
// is recorded as a hit with the stats service.
type PublicController struct {
	Logger  *slog.Logger
	Service domain.EventService
}

func NewPublicController(logger *slog.Logger, svc domain.EventService) *PublicController {
	return &PublicController{
		Logger:  logger,
		Service: svc,
	}
}

func hitFrom(r *http.Request) domain.Hit {
	return domain.Hit{URI: r.URL.Path, IP: helpers.ClientIP(r)}
}

// SearchEvents godoc
// @Summary Search published events
// @Description Only PUBLISHED events are returned. Without range bounds only future events are listed. text matches annotation or description, case-insensitive.
// @Tags events
// @Produce json
// @Param text query string false "Substring of annotation or description"
// @Param categories query []string false "Category ids"
// @Param paid query bool false "Paid events only (true) or free only (false)"
// @Param range_start query string false "Lower event_date bound (RFC 3339 or 2006-01-02 15:04:05)"
// @Param range_end query string false "Upper event_date bound"
// @Param only_available query bool false "Skip events whose participant limit is reached" default(false)
// @Param sort query string false "EVENT_DATE or VIEWS"
// @Param page query int false "Page (1-based)" default(1)
// @Param page_size query int false "Page size" default(10)
// @Success 200 {object} controllers.EventShortListSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events [get]
func (c *PublicController) SearchEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parsePublicFilter(r)
	if err != nil {
		badQuery(w, err)
		return
	}
	events, err := c.Service.SearchPublic(r.Context(), filter, helpers.ParsePagination(r), hitFrom(r))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, events)
}

func parsePublicFilter(r *http.Request) (domain.EventFilter, error) {
	var (
		filter domain.EventFilter
		err    error
	)
	filter.Text = strings.TrimSpace(r.URL.Query().Get("text"))
	if filter.CategoryIDs, err = helpers.QueryIDs(r, "categories"); err != nil {
		return filter, err
	}
	if filter.Paid, err = helpers.QueryBool(r, "paid"); err != nil {
		return filter, err
	}
	if filter.RangeStart, err = helpers.QueryTime(r, "range_start"); err != nil {
		return filter, err
	}
	if filter.RangeEnd, err = helpers.QueryTime(r, "range_end"); err != nil {
		return filter, err
	}
	if s := r.URL.Query().Get("only_available"); s != "" {
		if filter.OnlyAvailable, err = strconv.ParseBool(s); err != nil {
			return filter, fmt.Errorf("invalid only_available: %q", s)
		}
	}
	switch sort := domain.EventSort(strings.ToUpper(r.URL.Query().Get("sort"))); sort {
	case "", domain.EventSortEventDate, domain.EventSortViews:
		filter.Sort = sort
	default:
		return filter, fmt.Errorf("invalid sort: %q", sort)
	}
	return filter, nil
}

// GetEvent godoc
// @Summary Get a published event
// @Tags events
// @Produce json
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.EventFullSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID} [get]
func (c *PublicController) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "eventID")
	if !ok {
		return
	}
	event, err := c.Service.GetPublishedEvent(r.Context(), eventID, hitFrom(r))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, event)
}
