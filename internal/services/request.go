package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"eventlisting/internal/domain"
)

type requestService struct {
	eventRepo      domain.EventRepository
	requestRepo    domain.RequestRepository
	userRepo       domain.UserRepository
	tx             domain.Transactor
	publisher      domain.EventPublisher
	metrics        domain.Metrics
	logger         *slog.Logger
	contextTimeout time.Duration
	now            func() time.Time
}

// NewRequestService returns the admission controller. publisher and metrics may be nil.
func NewRequestService(
	eventRepo domain.EventRepository,
	requestRepo domain.RequestRepository,
	userRepo domain.UserRepository,
	tx domain.Transactor,
	publisher domain.EventPublisher,
	metrics domain.Metrics,
	logger *slog.Logger,
	timeout time.Duration,
) domain.RequestService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &requestService{
		eventRepo:      eventRepo,
		requestRepo:    requestRepo,
		userRepo:       userRepo,
		tx:             tx,
		publisher:      orNopPublisher(publisher),
		metrics:        orNopMetrics(metrics),
		logger:         logger,
		contextTimeout: timeout,
		now:            time.Now,
	}
}

func (s *requestService) Create(ctx context.Context, userID, eventID string) (*domain.ParticipationRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, lookupErr("user", userID, err)
	}

	var created *domain.ParticipationRequest
	err := s.tx.WithEventLock(ctx, eventID, func(ctx context.Context, ev *domain.Event, store domain.LockedStore) error {
		_, err := store.Requests().GetActiveByEventAndRequester(ctx, eventID, userID)
		switch {
		case err == nil:
			return domain.Conflictf("user %s already requested participation in event %s", userID, eventID)
		case !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("get participation request: %w", err)
		}
		if ev.InitiatorID == userID {
			return domain.Conflictf("initiator cannot request participation in own event %s", eventID)
		}
		if ev.State != domain.EventStatePublished {
			return domain.Conflictf("event %s is not published", eventID)
		}
		if ev.ParticipantLimit > 0 {
			confirmed, err := store.Requests().CountByEventAndStatus(ctx, eventID, domain.RequestStatusConfirmed)
			if err != nil {
				return fmt.Errorf("count confirmed requests: %w", err)
			}
			if !domain.FreeSlots(ev.ParticipantLimit, confirmed).Available() {
				return domain.Conflictf("participant limit of event %s reached", eventID)
			}
		}

		status := domain.RequestStatusPending
		if !ev.RequestModeration {
			status = domain.RequestStatusConfirmed
		}
		req := domain.NewParticipationRequest(eventID, userID, status, s.now())
		if err := store.Requests().Create(ctx, req); err != nil {
			return fmt.Errorf("create participation request: %w", err)
		}
		created = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RequestCreated(created.Status)
	s.logger.InfoContext(ctx, "participation request created",
		"request_id", created.ID, "event_id", eventID, "requester_id", userID, "status", created.Status)
	return created, nil
}

// Cancel withdraws the caller's request. It runs under the event lock so it
// cannot interleave with a batch resolution of the same request.
func (s *requestService) Cancel(ctx context.Context, userID, requestID string) (*domain.ParticipationRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, lookupErr("user", userID, err)
	}
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, lookupErr("participation request", requestID, err)
	}
	if req.RequesterID != userID {
		return nil, domain.Conflictf("user %s is not the requester of %s", userID, requestID)
	}

	var out *domain.ParticipationRequest
	err = s.tx.WithEventLock(ctx, req.EventID, func(ctx context.Context, _ *domain.Event, store domain.LockedStore) error {
		current, err := store.Requests().GetByID(ctx, requestID)
		if err != nil {
			return lookupErr("participation request", requestID, err)
		}
		if current.Status == domain.RequestStatusCanceled {
			out = current
			return nil
		}
		current.Status = domain.RequestStatusCanceled
		if err := store.Requests().SaveAll(ctx, []*domain.ParticipationRequest{current}); err != nil {
			return fmt.Errorf("save participation request: %w", err)
		}
		out = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *requestService) ListForRequester(ctx context.Context, userID string) ([]*domain.ParticipationRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, lookupErr("user", userID, err)
	}
	list, err := s.requestRepo.ListByRequesterID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list participation requests: %w", err)
	}
	if list == nil {
		list = []*domain.ParticipationRequest{}
	}
	return list, nil
}

func (s *requestService) ListForEventOwner(ctx context.Context, ownerID, eventID string) ([]*domain.ParticipationRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, lookupErr("event", eventID, err)
	}
	if event.InitiatorID != ownerID {
		return nil, domain.Conflictf("user %s is not the initiator of event %s", ownerID, eventID)
	}
	list, err := s.requestRepo.ListByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list participation requests: %w", err)
	}
	if list == nil {
		list = []*domain.ParticipationRequest{}
	}
	return list, nil
}

type resolvedMessage struct {
	EventID   string   `json:"event_id"`
	Confirmed []string `json:"confirmed"`
	Rejected  []string `json:"rejected"`
}

// ResolveBatch confirms or rejects pending requests of one event. Requests are
// processed in the caller's order; once the limit is reached the rest of the
// batch and every other pending request of the event are rejected.
func (s *requestService) ResolveBatch(ctx context.Context, ownerID, eventID string, requestIDs []string, status domain.RequestStatus) (*domain.RequestStatusUpdateResult, error) {
	result := &domain.RequestStatusUpdateResult{
		ConfirmedRequests: []*domain.ParticipationRequest{},
		RejectedRequests:  []*domain.ParticipationRequest{},
	}
	if len(requestIDs) == 0 {
		return result, nil
	}
	if status != domain.RequestStatusConfirmed && status != domain.RequestStatusRejected {
		return nil, domain.Validationf("status must be CONFIRMED or REJECTED, got %q", status)
	}
	seen := make(map[string]struct{}, len(requestIDs))
	for _, id := range requestIDs {
		if _, dup := seen[id]; dup {
			return nil, domain.Validationf("duplicate request id %s", id)
		}
		seen[id] = struct{}{}
	}

	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var cascaded int
	err := s.tx.WithEventLock(ctx, eventID, func(ctx context.Context, ev *domain.Event, store domain.LockedStore) error {
		if ev.InitiatorID != ownerID {
			return domain.Conflictf("user %s is not the initiator of event %s", ownerID, eventID)
		}
		if status == domain.RequestStatusConfirmed && (!ev.RequestModeration || ev.ParticipantLimit == 0) {
			return domain.Conflictf("event %s does not require confirmation", eventID)
		}

		slots := domain.FreeSlots(ev.ParticipantLimit, 0)
		if slots.Limited() {
			confirmed, err := store.Requests().CountByEventAndStatus(ctx, eventID, domain.RequestStatusConfirmed)
			if err != nil {
				return fmt.Errorf("count confirmed requests: %w", err)
			}
			slots = domain.FreeSlots(ev.ParticipantLimit, confirmed)
			if slots.Exhausted() {
				return domain.Conflictf("participant limit of event %s already reached", eventID)
			}
		}

		pending, err := store.Requests().ListByIDsAndStatus(ctx, requestIDs, domain.RequestStatusPending)
		if err != nil {
			return fmt.Errorf("list pending requests: %w", err)
		}
		byID := make(map[string]*domain.ParticipationRequest, len(pending))
		for _, r := range pending {
			if r.EventID == eventID {
				byID[r.ID] = r
			}
		}
		var missing []string
		for _, id := range requestIDs {
			if _, ok := byID[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return domain.Validationf("requests not pending for event %s: %s", eventID, strings.Join(missing, ", "))
		}

		hadRoom := slots.Available()
		confirmed, rejected := resolveInOrder(requestIDs, byID, status, &slots)
		touched := make([]*domain.ParticipationRequest, 0, len(requestIDs))
		touched = append(append(touched, confirmed...), rejected...)
		if err := store.Requests().SaveAll(ctx, touched); err != nil {
			return fmt.Errorf("save participation requests: %w", err)
		}

		if hadRoom && slots.Exhausted() {
			rest, err := store.Requests().RejectPending(ctx, eventID)
			if err != nil {
				return fmt.Errorf("reject pending requests: %w", err)
			}
			cascaded = len(rest)
			rejected = append(rejected, rest...)
		}
		result.ConfirmedRequests = append(result.ConfirmedRequests, confirmed...)
		result.RejectedRequests = append(result.RejectedRequests, rejected...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RequestsResolved(domain.RequestStatusConfirmed, len(result.ConfirmedRequests), false)
	s.metrics.RequestsResolved(domain.RequestStatusRejected, len(result.RejectedRequests)-cascaded, false)
	if cascaded > 0 {
		s.metrics.RequestsResolved(domain.RequestStatusRejected, cascaded, true)
	}
	s.logger.InfoContext(ctx, "participation requests resolved",
		"event_id", eventID, "confirmed", len(result.ConfirmedRequests),
		"rejected", len(result.RejectedRequests), "cascaded", cascaded)

	msg := resolvedMessage{EventID: eventID, Confirmed: requestIDsOf(result.ConfirmedRequests), Rejected: requestIDsOf(result.RejectedRequests)}
	if err := s.publisher.Publish(ctx, domain.RoutingRequestsResolved, msg); err != nil {
		s.logger.WarnContext(ctx, "publish resolution message failed", "event_id", eventID, "err", err)
	}
	return result, nil
}

// resolveInOrder applies target to each request in ids order, consuming slots
// for confirmations. Once slots run out the remaining requests are rejected.
func resolveInOrder(ids []string, byID map[string]*domain.ParticipationRequest, target domain.RequestStatus, slots *domain.Slots) (confirmed, rejected []*domain.ParticipationRequest) {
	for _, id := range ids {
		r := byID[id]
		if target == domain.RequestStatusConfirmed && slots.Take() {
			r.Status = domain.RequestStatusConfirmed
			confirmed = append(confirmed, r)
			continue
		}
		r.Status = domain.RequestStatusRejected
		rejected = append(rejected, r)
	}
	return confirmed, rejected
}

func requestIDsOf(reqs []*domain.ParticipationRequest) []string {
	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ID
	}
	return ids
}
