package domain

import (
	"context"
	"time"
)

// RequestStatus is the state of a participation request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "PENDING"
	RequestStatusConfirmed RequestStatus = "CONFIRMED"
	RequestStatusRejected  RequestStatus = "REJECTED"
	RequestStatusCanceled  RequestStatus = "CANCELED"
)

// ParticipationRequest is a user's request to attend an event.
// swagger:model ParticipationRequest
type ParticipationRequest struct {
	ID          string        `json:"id"`
	EventID     string        `json:"event_id"`
	RequesterID string        `json:"requester_id"`
	Created     time.Time     `json:"created"`
	Status      RequestStatus `json:"status"`
}

// NewParticipationRequest returns a request with the given fields. ID is set by the repository on create.
func NewParticipationRequest(eventID, requesterID string, status RequestStatus, created time.Time) *ParticipationRequest {
	return &ParticipationRequest{
		EventID:     eventID,
		RequesterID: requesterID,
		Created:     created,
		Status:      status,
	}
}

// RequestStatusUpdateResult partitions a batch resolution.
// swagger:model RequestStatusUpdateResult
type RequestStatusUpdateResult struct {
	ConfirmedRequests []*ParticipationRequest `json:"confirmed_requests"`
	RejectedRequests  []*ParticipationRequest `json:"rejected_requests"`
}

// RequestRepository defines storage operations for participation requests.
type RequestRepository interface {
	Create(ctx context.Context, req *ParticipationRequest) error
	GetByID(ctx context.Context, id string) (*ParticipationRequest, error)
	// GetActiveByEventAndRequester returns the non-canceled request for the pair, or ErrNotFound.
	GetActiveByEventAndRequester(ctx context.Context, eventID, requesterID string) (*ParticipationRequest, error)
	ListByEventID(ctx context.Context, eventID string) ([]*ParticipationRequest, error)
	ListByRequesterID(ctx context.Context, requesterID string) ([]*ParticipationRequest, error)
	ListByIDsAndStatus(ctx context.Context, ids []string, status RequestStatus) ([]*ParticipationRequest, error)
	CountByEventAndStatus(ctx context.Context, eventID string, status RequestStatus) (int, error)
	// CountConfirmedByEventIDs returns confirmed counts keyed by event id; events with none are absent.
	CountConfirmedByEventIDs(ctx context.Context, eventIDs []string) (map[string]int, error)
	// SaveAll persists the status of every given request in one write.
	SaveAll(ctx context.Context, reqs []*ParticipationRequest) error
	// RejectPending moves every PENDING request of the event to REJECTED and returns them.
	RejectPending(ctx context.Context, eventID string) ([]*ParticipationRequest, error)
}

// RequestService is the admission controller.
type RequestService interface {
	Create(ctx context.Context, userID, eventID string) (*ParticipationRequest, error)
	Cancel(ctx context.Context, userID, requestID string) (*ParticipationRequest, error)
	ListForRequester(ctx context.Context, userID string) ([]*ParticipationRequest, error)
	ListForEventOwner(ctx context.Context, ownerID, eventID string) ([]*ParticipationRequest, error)
	ResolveBatch(ctx context.Context, ownerID, eventID string, requestIDs []string, status RequestStatus) (*RequestStatusUpdateResult, error)
}
