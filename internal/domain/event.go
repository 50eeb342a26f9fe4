package domain

import (
	"context"
	"time"
)

// EventState is the lifecycle state of an event.
type EventState string

const (
	EventStatePending   EventState = "PENDING"
	EventStatePublished EventState = "PUBLISHED"
	EventStateCanceled  EventState = "CANCELED"
)

// Valid reports whether s is a known state.
func (s EventState) Valid() bool {
	switch s {
	case EventStatePending, EventStatePublished, EventStateCanceled:
		return true
	}
	return false
}

// StateAction is a requested lifecycle transition. Owners may send
// SEND_TO_REVIEW and CANCEL_REVIEW; admins may send PUBLISH_EVENT and REJECT_EVENT.
type StateAction string

const (
	StateActionSendToReview StateAction = "SEND_TO_REVIEW"
	StateActionCancelReview StateAction = "CANCEL_REVIEW"
	StateActionPublishEvent StateAction = "PUBLISH_EVENT"
	StateActionRejectEvent  StateAction = "REJECT_EVENT"
)

// Lead times enforced on event_date.
const (
	OwnerEventDateLeadTime   = 2 * time.Hour
	PublishEventDateLeadTime = time.Hour
)

// Event is the stored event record.
type Event struct {
	ID                string     `json:"id"`
	Annotation        string     `json:"annotation"`
	Description       string     `json:"description"`
	Title             string     `json:"title"`
	CategoryID        string     `json:"category_id"`
	LocationID        string     `json:"location_id"`
	InitiatorID       string     `json:"initiator_id"`
	CreatedOn         time.Time  `json:"created_on"`
	PublishedOn       *time.Time `json:"published_on"`
	EventDate         time.Time  `json:"event_date"`
	Paid              bool       `json:"paid"`
	ParticipantLimit  int        `json:"participant_limit"`
	RequestModeration bool       `json:"request_moderation"`
	State             EventState `json:"state"`
}

// NewEvent is the owner's draft for CreateEvent.
type NewEvent struct {
	Annotation        string
	Description       string
	Title             string
	CategoryID        string
	Location          Coordinates
	EventDate         time.Time
	Paid              bool
	ParticipantLimit  int
	RequestModeration bool
}

// EventPatch carries a partial update; nil fields are left unchanged.
type EventPatch struct {
	Annotation        *string
	Description       *string
	Title             *string
	CategoryID        *string
	Location          *Coordinates
	EventDate         *time.Time
	Paid              *bool
	ParticipantLimit  *int
	RequestModeration *bool
	StateAction       *StateAction
}

// EventSort orders public search results.
type EventSort string

const (
	EventSortEventDate EventSort = "EVENT_DATE"
	EventSortViews     EventSort = "VIEWS"
)

// EventFilter holds search criteria. Empty slices and nil pointers mean "any".
type EventFilter struct {
	Text          string
	InitiatorIDs  []string
	CategoryIDs   []string
	States        []EventState
	Paid          *bool
	OnlyAvailable bool
	RangeStart    *time.Time
	RangeEnd      *time.Time
	Sort          EventSort
}

// CategoryRef is the embedded category in event views.
type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserShort is the embedded initiator in event views.
type UserShort struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EventFull is the caller-facing event representation.
// swagger:model EventFull
type EventFull struct {
	ID                string      `json:"id"`
	Annotation        string      `json:"annotation"`
	Category          CategoryRef `json:"category"`
	ConfirmedRequests int         `json:"confirmed_requests"`
	CreatedOn         time.Time   `json:"created_on"`
	Description       string      `json:"description"`
	EventDate         time.Time   `json:"event_date"`
	Initiator         UserShort   `json:"initiator"`
	Location          Coordinates `json:"location"`
	Paid              bool        `json:"paid"`
	ParticipantLimit  int         `json:"participant_limit"`
	PublishedOn       *time.Time  `json:"published_on"`
	RequestModeration bool        `json:"request_moderation"`
	State             EventState  `json:"state"`
	Title             string      `json:"title"`
	Views             int64       `json:"views"`
}

// EventShort is the list representation of an event.
// swagger:model EventShort
type EventShort struct {
	ID                string      `json:"id"`
	Annotation        string      `json:"annotation"`
	Category          CategoryRef `json:"category"`
	ConfirmedRequests int         `json:"confirmed_requests"`
	EventDate         time.Time   `json:"event_date"`
	Initiator         UserShort   `json:"initiator"`
	Paid              bool        `json:"paid"`
	Title             string      `json:"title"`
	Views             int64       `json:"views"`
}

// Short projects a full view onto the list representation.
func (e *EventFull) Short() *EventShort {
	return &EventShort{
		ID:                e.ID,
		Annotation:        e.Annotation,
		Category:          e.Category,
		ConfirmedRequests: e.ConfirmedRequests,
		EventDate:         e.EventDate,
		Initiator:         e.Initiator,
		Paid:              e.Paid,
		Title:             e.Title,
		Views:             e.Views,
	}
}

// EventRepository defines the interface for event storage
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	ListByInitiatorID(ctx context.Context, initiatorID string, params PaginationParams) ([]*Event, error)
	Search(ctx context.Context, filter EventFilter, params PaginationParams) ([]*Event, error)
	// Update overwrites every mutable column of the stored event.
	Update(ctx context.Context, event *Event) error
}

// EventService is the event lifecycle manager plus its read side.
type EventService interface {
	CreateEvent(ctx context.Context, ownerID string, draft NewEvent) (*EventFull, error)
	UpdateByOwner(ctx context.Context, ownerID, eventID string, patch EventPatch) (*EventFull, error)
	UpdateByAdmin(ctx context.Context, eventID string, patch EventPatch) (*EventFull, error)
	GetOwnerEvent(ctx context.Context, ownerID, eventID string) (*EventFull, error)
	ListOwnerEvents(ctx context.Context, ownerID string, params PaginationParams) ([]*EventShort, error)
	SearchPublic(ctx context.Context, filter EventFilter, params PaginationParams, hit Hit) ([]*EventShort, error)
	GetPublishedEvent(ctx context.Context, eventID string, hit Hit) (*EventFull, error)
	SearchAdmin(ctx context.Context, filter EventFilter, params PaginationParams) ([]*EventFull, error)
}
