package controllers

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"eventlisting/internal/delivery/http/helpers"
	"eventlisting/internal/domain"
)

// Text field bounds, counted in runes after trimming.
const (
	annotationMin  = 20
	annotationMax  = 2000
	descriptionMin = 20
	descriptionMax = 7000
	titleMin       = 3
	titleMax       = 120
)

func checkLength(field, value string, lo, hi int) string {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < lo || n > hi {
		return fmt.Sprintf("%s must be between %d and %d characters", field, lo, hi)
	}
	return ""
}

func checkLocation(l *domain.Coordinates) string {
	if l.Lat < -90 || l.Lat > 90 || l.Lon < -180 || l.Lon > 180 {
		return "location is out of range"
	}
	return ""
}

func appendIf(errs []string, msg string) []string {
	if msg != "" {
		return append(errs, msg)
	}
	return errs
}

// CreateEventRequest is the request body for POST /me/events.
type CreateEventRequest struct {
	Annotation        string              `json:"annotation"`
	Category          string              `json:"category"`
	Description       string              `json:"description"`
	EventDate         *time.Time          `json:"event_date"`
	Location          *domain.Coordinates `json:"location"`
	Paid              bool                `json:"paid"`
	ParticipantLimit  int                 `json:"participant_limit"`
	RequestModeration *bool               `json:"request_moderation"`
	Title             string              `json:"title"`
}

// Validate implements Validator.
func (c CreateEventRequest) Validate() []string {
	var errs []string
	errs = appendIf(errs, checkLength("annotation", c.Annotation, annotationMin, annotationMax))
	errs = appendIf(errs, checkLength("description", c.Description, descriptionMin, descriptionMax))
	errs = appendIf(errs, checkLength("title", c.Title, titleMin, titleMax))
	if !helpers.ValidID(c.Category) {
		errs = append(errs, "category must be a valid id")
	}
	if c.EventDate == nil {
		errs = append(errs, "event_date is required")
	}
	if c.Location == nil {
		errs = append(errs, "location is required")
	} else {
		errs = appendIf(errs, checkLocation(c.Location))
	}
	if c.ParticipantLimit < 0 {
		errs = append(errs, "participant_limit must be non-negative")
	}
	return errs
}

// ToDomain builds the draft; request_moderation defaults to true.
func (c CreateEventRequest) ToDomain() domain.NewEvent {
	moderation := true
	if c.RequestModeration != nil {
		moderation = *c.RequestModeration
	}
	return domain.NewEvent{
		Annotation:        strings.TrimSpace(c.Annotation),
		Description:       strings.TrimSpace(c.Description),
		Title:             strings.TrimSpace(c.Title),
		CategoryID:        c.Category,
		Location:          *c.Location,
		EventDate:         *c.EventDate,
		Paid:              c.Paid,
		ParticipantLimit:  c.ParticipantLimit,
		RequestModeration: moderation,
	}
}

// UpdateEventRequest is the partial update body shared by owners and admins.
// Omitted fields are unchanged.
type UpdateEventRequest struct {
	Annotation        *string             `json:"annotation"`
	Category          *string             `json:"category"`
	Description       *string             `json:"description"`
	EventDate         *time.Time          `json:"event_date"`
	Location          *domain.Coordinates `json:"location"`
	Paid              *bool               `json:"paid"`
	ParticipantLimit  *int                `json:"participant_limit"`
	RequestModeration *bool               `json:"request_moderation"`
	StateAction       *domain.StateAction `json:"state_action"`
	Title             *string             `json:"title"`
}

func (u UpdateEventRequest) validate(actions ...domain.StateAction) []string {
	var errs []string
	if u.Annotation != nil {
		errs = appendIf(errs, checkLength("annotation", *u.Annotation, annotationMin, annotationMax))
	}
	if u.Description != nil {
		errs = appendIf(errs, checkLength("description", *u.Description, descriptionMin, descriptionMax))
	}
	if u.Title != nil {
		errs = appendIf(errs, checkLength("title", *u.Title, titleMin, titleMax))
	}
	if u.Category != nil && !helpers.ValidID(*u.Category) {
		errs = append(errs, "category must be a valid id")
	}
	if u.Location != nil {
		errs = appendIf(errs, checkLocation(u.Location))
	}
	if u.ParticipantLimit != nil && *u.ParticipantLimit < 0 {
		errs = append(errs, "participant_limit must be non-negative")
	}
	if u.StateAction != nil {
		known := false
		for _, a := range actions {
			known = known || a == *u.StateAction
		}
		if !known {
			errs = append(errs, fmt.Sprintf("state_action %q is not allowed here", *u.StateAction))
		}
	}
	return errs
}

// ToDomain converts the body into a patch, trimming text fields.
func (u UpdateEventRequest) ToDomain() domain.EventPatch {
	trim := func(s *string) *string {
		if s == nil {
			return nil
		}
		t := strings.TrimSpace(*s)
		return &t
	}
	return domain.EventPatch{
		Annotation:        trim(u.Annotation),
		Description:       trim(u.Description),
		Title:             trim(u.Title),
		CategoryID:        u.Category,
		Location:          u.Location,
		EventDate:         u.EventDate,
		Paid:              u.Paid,
		ParticipantLimit:  u.ParticipantLimit,
		RequestModeration: u.RequestModeration,
		StateAction:       u.StateAction,
	}
}

// OwnerUpdateEventRequest is the body for PATCH /me/events/{eventID}.
type OwnerUpdateEventRequest struct {
	UpdateEventRequest
}

// Validate implements Validator.
func (o OwnerUpdateEventRequest) Validate() []string {
	return o.validate(domain.StateActionSendToReview, domain.StateActionCancelReview)
}

// AdminUpdateEventRequest is the body for PATCH /admin/events/{eventID}.
type AdminUpdateEventRequest struct {
	UpdateEventRequest
}

// Validate implements Validator.
func (a AdminUpdateEventRequest) Validate() []string {
	return a.validate(domain.StateActionPublishEvent, domain.StateActionRejectEvent)
}

// CreateParticipationRequest is the body for POST /me/requests.
type CreateParticipationRequest struct {
	EventID string `json:"event_id"`
}

// Validate implements Validator.
func (c CreateParticipationRequest) Validate() []string {
	if !helpers.ValidID(c.EventID) {
		return []string{"event_id must be a valid id"}
	}
	return nil
}

// UpdateRequestStatusRequest is the body for PATCH /me/events/{eventID}/requests.
type UpdateRequestStatusRequest struct {
	RequestIDs []string             `json:"request_ids"`
	Status     domain.RequestStatus `json:"status"`
}

// Validate implements Validator.
func (u UpdateRequestStatusRequest) Validate() []string {
	var errs []string
	if u.Status != domain.RequestStatusConfirmed && u.Status != domain.RequestStatusRejected {
		errs = append(errs, "status must be CONFIRMED or REJECTED")
	}
	for _, id := range u.RequestIDs {
		if !helpers.ValidID(id) {
			errs = append(errs, fmt.Sprintf("request_ids contains an invalid id %q", id))
			break
		}
	}
	return errs
}

// EventFullSuccessResponse is the envelope for endpoints returning one event.
type EventFullSuccessResponse struct {
	Data  *domain.EventFull `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// EventFullListSuccessResponse is the envelope for the admin search.
type EventFullListSuccessResponse struct {
	Data  []*domain.EventFull `json:"data"`
	Error *helpers.APIError   `json:"error"`
}

// EventShortListSuccessResponse is the envelope for event listings.
type EventShortListSuccessResponse struct {
	Data  []*domain.EventShort `json:"data"`
	Error *helpers.APIError    `json:"error"`
}

// RequestSuccessResponse is the envelope for one participation request.
type RequestSuccessResponse struct {
	Data  *domain.ParticipationRequest `json:"data"`
	Error *helpers.APIError            `json:"error"`
}

// RequestListSuccessResponse is the envelope for participation request listings.
type RequestListSuccessResponse struct {
	Data  []*domain.ParticipationRequest `json:"data"`
	Error *helpers.APIError              `json:"error"`
}

// RequestStatusUpdateSuccessResponse is the envelope for a batch resolution.
type RequestStatusUpdateSuccessResponse struct {
	Data  *domain.RequestStatusUpdateResult `json:"data"`
	Error *helpers.APIError                 `json:"error"`
}
