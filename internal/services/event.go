package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"eventlisting/internal/domain"
)

type eventService struct {
	eventRepo      domain.EventRepository
	requestRepo    domain.RequestRepository
	userRepo       domain.UserRepository
	categoryRepo   domain.CategoryRepository
	locationRepo   domain.LocationRepository
	tx             domain.Transactor
	stats          *statEnricher
	publisher      domain.EventPublisher
	metrics        domain.Metrics
	logger         *slog.Logger
	contextTimeout time.Duration
	now            func() time.Time
}

// NewEventService returns the event lifecycle manager. stats, publisher and
// metrics may be nil.
func NewEventService(
	eventRepo domain.EventRepository,
	requestRepo domain.RequestRepository,
	userRepo domain.UserRepository,
	categoryRepo domain.CategoryRepository,
	locationRepo domain.LocationRepository,
	tx domain.Transactor,
	stats domain.StatsClient,
	statsApp string,
	publisher domain.EventPublisher,
	metrics domain.Metrics,
	logger *slog.Logger,
	timeout time.Duration,
) domain.EventService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &eventService{
		eventRepo:      eventRepo,
		requestRepo:    requestRepo,
		userRepo:       userRepo,
		categoryRepo:   categoryRepo,
		locationRepo:   locationRepo,
		tx:             tx,
		stats:          &statEnricher{client: stats, app: statsApp, logger: logger},
		publisher:      orNopPublisher(publisher),
		metrics:        orNopMetrics(metrics),
		logger:         logger,
		contextTimeout: timeout,
		now:            time.Now,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, ownerID string, draft domain.NewEvent) (*domain.EventFull, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	now := s.now()
	if draft.EventDate.Before(now.Add(domain.OwnerEventDateLeadTime)) {
		return nil, domain.Validationf("event_date must be at least %s from now", domain.OwnerEventDateLeadTime)
	}
	if draft.ParticipantLimit < 0 {
		return nil, domain.Validationf("participant_limit must be non-negative")
	}

	owner, err := s.userRepo.GetByID(ctx, ownerID)
	if err != nil {
		return nil, lookupErr("user", ownerID, err)
	}
	category, err := s.categoryRepo.GetByID(ctx, draft.CategoryID)
	if err != nil {
		return nil, lookupErr("category", draft.CategoryID, err)
	}
	location, err := s.locationRepo.FindOrCreate(ctx, draft.Location)
	if err != nil {
		return nil, fmt.Errorf("find or create location: %w", err)
	}

	event := &domain.Event{
		Annotation:        draft.Annotation,
		Description:       draft.Description,
		Title:             draft.Title,
		CategoryID:        category.ID,
		LocationID:        location.ID,
		InitiatorID:       owner.ID,
		CreatedOn:         now,
		EventDate:         draft.EventDate,
		Paid:              draft.Paid,
		ParticipantLimit:  draft.ParticipantLimit,
		RequestModeration: draft.RequestModeration,
		State:             domain.EventStatePending,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.logger.InfoContext(ctx, "event created", "event_id", event.ID, "initiator_id", owner.ID)

	return buildFull(event, category, owner, location, 0, 0), nil
}

func (s *eventService) UpdateByOwner(ctx context.Context, ownerID, eventID string, patch domain.EventPatch) (*domain.EventFull, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.userRepo.GetByID(ctx, ownerID); err != nil {
		return nil, lookupErr("user", ownerID, err)
	}

	var before domain.EventState
	var updated *domain.Event
	err := s.tx.WithEventLock(ctx, eventID, func(ctx context.Context, ev *domain.Event, store domain.LockedStore) error {
		if ev.InitiatorID != ownerID {
			return domain.Conflictf("user %s is not the initiator of event %s", ownerID, eventID)
		}
		if ev.State == domain.EventStatePublished {
			return domain.Conflictf("published event %s cannot be changed by its initiator", eventID)
		}

		next := *ev
		if patch.StateAction != nil {
			switch *patch.StateAction {
			case domain.StateActionSendToReview:
				next.State = domain.EventStatePending
			case domain.StateActionCancelReview:
				next.State = domain.EventStateCanceled
			default:
				return domain.Validationf("state action %q is not allowed for the initiator", *patch.StateAction)
			}
		}
		if patch.EventDate != nil {
			if patch.EventDate.Before(s.now().Add(domain.OwnerEventDateLeadTime)) {
				return domain.Validationf("event_date must be at least %s from now", domain.OwnerEventDateLeadTime)
			}
			next.EventDate = *patch.EventDate
		}
		if err := s.applyPatch(ctx, &next, patch); err != nil {
			return err
		}
		if err := store.Events().Update(ctx, &next); err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		before, updated = ev.State, &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, before, updated)
	return s.full(ctx, updated)
}

func (s *eventService) UpdateByAdmin(ctx context.Context, eventID string, patch domain.EventPatch) (*domain.EventFull, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var before domain.EventState
	var updated *domain.Event
	err := s.tx.WithEventLock(ctx, eventID, func(ctx context.Context, ev *domain.Event, store domain.LockedStore) error {
		now := s.now()
		next := *ev

		if patch.StateAction != nil {
			switch *patch.StateAction {
			case domain.StateActionPublishEvent:
				if ev.State != domain.EventStatePending {
					return domain.Conflictf("event %s cannot be published from state %s", eventID, ev.State)
				}
				start := ev.EventDate
				if patch.EventDate != nil {
					start = *patch.EventDate
				}
				if start.Before(now.Add(domain.PublishEventDateLeadTime)) {
					return domain.Conflictf("event_date must be at least %s after publication", domain.PublishEventDateLeadTime)
				}
				next.State = domain.EventStatePublished
				if next.PublishedOn == nil {
					publishedOn := now
					next.PublishedOn = &publishedOn
				}
			case domain.StateActionRejectEvent:
				if ev.State == domain.EventStatePublished {
					return domain.Conflictf("published event %s cannot be rejected", eventID)
				}
				next.State = domain.EventStateCanceled
			default:
				return domain.Validationf("state action %q is not allowed for an admin", *patch.StateAction)
			}
		} else if patch.EventDate != nil && ev.State == domain.EventStatePublished && ev.PublishedOn != nil {
			if patch.EventDate.Before(ev.PublishedOn.Add(domain.PublishEventDateLeadTime)) {
				return domain.Conflictf("event_date must be at least %s after publication", domain.PublishEventDateLeadTime)
			}
		}
		if patch.EventDate != nil {
			next.EventDate = *patch.EventDate
		}
		if err := s.applyPatch(ctx, &next, patch); err != nil {
			return err
		}
		if err := store.Events().Update(ctx, &next); err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		before, updated = ev.State, &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, before, updated)
	return s.full(ctx, updated)
}

// applyPatch copies the non-state, non-date fields. Reference lookups run last
// so that a failing scalar check never inserts a location.
func (s *eventService) applyPatch(ctx context.Context, ev *domain.Event, patch domain.EventPatch) error {
	if patch.ParticipantLimit != nil && *patch.ParticipantLimit < 0 {
		return domain.Validationf("participant_limit must be non-negative")
	}
	if patch.Annotation != nil {
		ev.Annotation = *patch.Annotation
	}
	if patch.Description != nil {
		ev.Description = *patch.Description
	}
	if patch.Title != nil {
		ev.Title = *patch.Title
	}
	if patch.Paid != nil {
		ev.Paid = *patch.Paid
	}
	if patch.ParticipantLimit != nil {
		ev.ParticipantLimit = *patch.ParticipantLimit
	}
	if patch.RequestModeration != nil {
		ev.RequestModeration = *patch.RequestModeration
	}
	if patch.CategoryID != nil {
		category, err := s.categoryRepo.GetByID(ctx, *patch.CategoryID)
		if err != nil {
			return lookupErr("category", *patch.CategoryID, err)
		}
		ev.CategoryID = category.ID
	}
	if patch.Location != nil {
		location, err := s.locationRepo.FindOrCreate(ctx, *patch.Location)
		if err != nil {
			return fmt.Errorf("find or create location: %w", err)
		}
		ev.LocationID = location.ID
	}
	return nil
}

type eventMessage struct {
	EventID     string            `json:"event_id"`
	InitiatorID string            `json:"initiator_id"`
	From        domain.EventState `json:"from"`
	To          domain.EventState `json:"to"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

func (s *eventService) afterTransition(ctx context.Context, from domain.EventState, ev *domain.Event) {
	if from == ev.State {
		return
	}
	s.metrics.EventTransition(from, ev.State)
	s.logger.InfoContext(ctx, "event state changed", "event_id", ev.ID, "from", from, "to", ev.State)

	var key string
	switch ev.State {
	case domain.EventStatePublished:
		key = domain.RoutingEventPublished
	case domain.EventStateCanceled:
		key = domain.RoutingEventCanceled
	default:
		return
	}
	msg := eventMessage{EventID: ev.ID, InitiatorID: ev.InitiatorID, From: from, To: ev.State, OccurredAt: s.now()}
	if err := s.publisher.Publish(ctx, key, msg); err != nil {
		s.logger.WarnContext(ctx, "publish lifecycle message failed", "event_id", ev.ID, "routing_key", key, "err", err)
	}
}

func (s *eventService) GetOwnerEvent(ctx context.Context, ownerID, eventID string) (*domain.EventFull, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.userRepo.GetByID(ctx, ownerID); err != nil {
		return nil, lookupErr("user", ownerID, err)
	}
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, lookupErr("event", eventID, err)
	}
	if event.InitiatorID != ownerID {
		return nil, domain.Conflictf("user %s is not the initiator of event %s", ownerID, eventID)
	}
	return s.full(ctx, event)
}

func (s *eventService) ListOwnerEvents(ctx context.Context, ownerID string, params domain.PaginationParams) ([]*domain.EventShort, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.userRepo.GetByID(ctx, ownerID); err != nil {
		return nil, lookupErr("user", ownerID, err)
	}
	events, err := s.eventRepo.ListByInitiatorID(ctx, ownerID, params)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	full, err := s.present(ctx, events)
	if err != nil {
		return nil, err
	}
	return shorts(full), nil
}

func (s *eventService) SearchPublic(ctx context.Context, filter domain.EventFilter, params domain.PaginationParams, hit domain.Hit) ([]*domain.EventShort, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := validateRange(filter); err != nil {
		return nil, err
	}
	now := s.now()
	filter.States = []domain.EventState{domain.EventStatePublished}
	filter.InitiatorIDs = nil
	if filter.RangeStart == nil {
		filter.RangeStart = &now
	}

	events, err := s.eventRepo.Search(ctx, filter, params)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	full, err := s.present(ctx, events)
	if err != nil {
		return nil, err
	}
	if filter.Sort == domain.EventSortViews {
		slices.SortStableFunc(full, func(a, b *domain.EventFull) int {
			switch {
			case a.Views > b.Views:
				return -1
			case a.Views < b.Views:
				return 1
			}
			return 0
		})
	} else {
		slices.SortStableFunc(full, func(a, b *domain.EventFull) int {
			return b.EventDate.Compare(a.EventDate)
		})
	}

	s.stats.record(ctx, hit, now)
	return shorts(full), nil
}

func (s *eventService) GetPublishedEvent(ctx context.Context, eventID string, hit domain.Hit) (*domain.EventFull, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, lookupErr("event", eventID, err)
	}
	if event.State != domain.EventStatePublished {
		return nil, domain.NotFoundf("event %s is not published", eventID)
	}
	full, err := s.full(ctx, event)
	if err != nil {
		return nil, err
	}
	s.stats.record(ctx, hit, s.now())
	return full, nil
}

func (s *eventService) SearchAdmin(ctx context.Context, filter domain.EventFilter, params domain.PaginationParams) ([]*domain.EventFull, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := validateRange(filter); err != nil {
		return nil, err
	}
	for _, st := range filter.States {
		if !st.Valid() {
			return nil, domain.Validationf("unknown event state %q", st)
		}
	}
	events, err := s.eventRepo.Search(ctx, filter, params)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	return s.present(ctx, events)
}

func validateRange(filter domain.EventFilter) error {
	if filter.RangeStart != nil && filter.RangeEnd != nil && filter.RangeEnd.Before(*filter.RangeStart) {
		return domain.Validationf("range_end must not be before range_start")
	}
	return nil
}

func (s *eventService) full(ctx context.Context, event *domain.Event) (*domain.EventFull, error) {
	out, err := s.present(ctx, []*domain.Event{event})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// present builds caller-facing views. Confirmed counts come from one grouped
// query; reference data is fetched one by one with a per-call memo.
func (s *eventService) present(ctx context.Context, events []*domain.Event) ([]*domain.EventFull, error) {
	out := make([]*domain.EventFull, 0, len(events))
	if len(events) == 0 {
		return out, nil
	}
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	confirmed, err := s.requestRepo.CountConfirmedByEventIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count confirmed requests: %w", err)
	}
	views := s.stats.views(ctx, ids)

	categories := make(map[string]*domain.Category)
	users := make(map[string]*domain.User)
	locations := make(map[string]*domain.Location)
	for _, e := range events {
		c, ok := categories[e.CategoryID]
		if !ok {
			if c, err = s.categoryRepo.GetByID(ctx, e.CategoryID); err != nil {
				return nil, lookupErr("category", e.CategoryID, err)
			}
			categories[e.CategoryID] = c
		}
		u, ok := users[e.InitiatorID]
		if !ok {
			if u, err = s.userRepo.GetByID(ctx, e.InitiatorID); err != nil {
				return nil, lookupErr("user", e.InitiatorID, err)
			}
			users[e.InitiatorID] = u
		}
		l, ok := locations[e.LocationID]
		if !ok {
			if l, err = s.locationRepo.GetByID(ctx, e.LocationID); err != nil {
				return nil, lookupErr("location", e.LocationID, err)
			}
			locations[e.LocationID] = l
		}
		out = append(out, buildFull(e, c, u, l, confirmed[e.ID], views[e.ID]))
	}
	return out, nil
}

func buildFull(e *domain.Event, c *domain.Category, u *domain.User, l *domain.Location, confirmed int, views int64) *domain.EventFull {
	return &domain.EventFull{
		ID:                e.ID,
		Annotation:        e.Annotation,
		Category:          domain.CategoryRef{ID: c.ID, Name: c.Name},
		ConfirmedRequests: confirmed,
		CreatedOn:         e.CreatedOn,
		Description:       e.Description,
		EventDate:         e.EventDate,
		Initiator:         domain.UserShort{ID: u.ID, Name: u.Name},
		Location:          l.Coordinates,
		Paid:              e.Paid,
		ParticipantLimit:  e.ParticipantLimit,
		PublishedOn:       e.PublishedOn,
		RequestModeration: e.RequestModeration,
		State:             e.State,
		Title:             e.Title,
		Views:             views,
	}
}

func shorts(full []*domain.EventFull) []*domain.EventShort {
	out := make([]*domain.EventShort, len(full))
	for i, f := range full {
		out[i] = f.Short()
	}
	return out
}

// lookupErr maps a repository miss to a NotFound naming the entity.
func lookupErr(entity, id string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFoundf("%s %s not found", entity, id)
	}
	return fmt.Errorf("get %s: %w", entity, err)
}
