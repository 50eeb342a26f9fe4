package services

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"eventlisting/internal/domain"
)

// fakeStore is an in-memory backend for every repository the services use.
// Reads return copies so that services only change state through writes.
type fakeStore struct {
	mu         sync.Mutex
	locks      map[string]*sync.Mutex
	events     map[string]*domain.Event
	requests   map[string]*domain.ParticipationRequest
	users      map[string]*domain.User
	categories map[string]*domain.Category
	locations  map[string]*domain.Location
	nextID     int

	createEventErr error
	saveAllErr     error
	locationCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		locks:      make(map[string]*sync.Mutex),
		events:     make(map[string]*domain.Event),
		requests:   make(map[string]*domain.ParticipationRequest),
		users:      make(map[string]*domain.User),
		categories: make(map[string]*domain.Category),
		locations:  make(map[string]*domain.Location),
		nextID:     1,
	}
}

func (s *fakeStore) id(prefix string) string {
	id := fmt.Sprintf("%s-%d", prefix, s.nextID)
	s.nextID++
	return id
}

func (s *fakeStore) addUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &domain.User{ID: id, Name: "name " + id, Email: id + "@example.com"}
}

func (s *fakeStore) addCategory(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[id] = &domain.Category{ID: id, Name: "category " + id}
}

func (s *fakeStore) addEvent(e domain.Event) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = s.id("ev")
	}
	if e.LocationID == "" {
		loc := &domain.Location{ID: s.id("loc"), Coordinates: domain.Coordinates{Lat: 55.75, Lon: 37.62}}
		s.locations[loc.ID] = loc
		e.LocationID = loc.ID
	}
	s.events[e.ID] = &e
	return e.ID
}

func (s *fakeStore) addRequest(eventID, requesterID string, status domain.RequestStatus) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &domain.ParticipationRequest{ID: s.id("req"), EventID: eventID, RequesterID: requesterID, Status: status, Created: time.Now()}
	s.requests[r.ID] = r
	return r.ID
}

func (s *fakeStore) event(id string) domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.events[id]
}

func (s *fakeStore) status(requestID string) domain.RequestStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[requestID].Status
}

func (s *fakeStore) countStatus(eventID string, status domain.RequestStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.EventID == eventID && r.Status == status {
			n++
		}
	}
	return n
}

type fakeEventRepo struct{ s *fakeStore }

func (f fakeEventRepo) Create(ctx context.Context, e *domain.Event) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.createEventErr != nil {
		return f.s.createEventErr
	}
	e.ID = f.s.id("ev")
	cp := *e
	f.s.events[e.ID] = &cp
	return nil
}

func (f fakeEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	e, ok := f.s.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f fakeEventRepo) ListByInitiatorID(ctx context.Context, initiatorID string, params domain.PaginationParams) ([]*domain.Event, error) {
	return f.Search(ctx, domain.EventFilter{InitiatorIDs: []string{initiatorID}}, params)
}

func (f fakeEventRepo) Search(ctx context.Context, filter domain.EventFilter, params domain.PaginationParams) ([]*domain.Event, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*domain.Event
	for _, e := range f.s.events {
		if len(filter.InitiatorIDs) > 0 && !slices.Contains(filter.InitiatorIDs, e.InitiatorID) {
			continue
		}
		if len(filter.CategoryIDs) > 0 && !slices.Contains(filter.CategoryIDs, e.CategoryID) {
			continue
		}
		if len(filter.States) > 0 && !slices.Contains(filter.States, e.State) {
			continue
		}
		if filter.Paid != nil && e.Paid != *filter.Paid {
			continue
		}
		if filter.Text != "" {
			text := strings.ToLower(filter.Text)
			if !strings.Contains(strings.ToLower(e.Annotation), text) && !strings.Contains(strings.ToLower(e.Description), text) {
				continue
			}
		}
		if filter.RangeStart != nil && e.EventDate.Before(*filter.RangeStart) {
			continue
		}
		if filter.RangeEnd != nil && e.EventDate.After(*filter.RangeEnd) {
			continue
		}
		if filter.OnlyAvailable && e.ParticipantLimit > 0 {
			confirmed := 0
			for _, r := range f.s.requests {
				if r.EventID == e.ID && r.Status == domain.RequestStatusConfirmed {
					confirmed++
				}
			}
			if confirmed >= e.ParticipantLimit {
				continue
			}
		}
		cp := *e
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *domain.Event) int { return strings.Compare(a.ID, b.ID) })
	start := min(params.Offset(), len(out))
	end := min(start+params.Limit(), len(out))
	return out[start:end], nil
}

func (f fakeEventRepo) Update(ctx context.Context, e *domain.Event) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.events[e.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *e
	f.s.events[e.ID] = &cp
	return nil
}

type fakeRequestRepo struct{ s *fakeStore }

func (f fakeRequestRepo) Create(ctx context.Context, r *domain.ParticipationRequest) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, existing := range f.s.requests {
		if existing.EventID == r.EventID && existing.RequesterID == r.RequesterID && existing.Status != domain.RequestStatusCanceled {
			return domain.Conflictf("duplicate request")
		}
	}
	r.ID = f.s.id("req")
	cp := *r
	f.s.requests[r.ID] = &cp
	return nil
}

func (f fakeRequestRepo) GetByID(ctx context.Context, id string) (*domain.ParticipationRequest, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.requests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f fakeRequestRepo) GetActiveByEventAndRequester(ctx context.Context, eventID, requesterID string) (*domain.ParticipationRequest, error) {
	list := f.filter(func(r *domain.ParticipationRequest) bool {
		return r.EventID == eventID && r.RequesterID == requesterID && r.Status != domain.RequestStatusCanceled
	})
	if len(list) == 0 {
		return nil, domain.ErrNotFound
	}
	return list[0], nil
}

func (f fakeRequestRepo) ListByEventID(ctx context.Context, eventID string) ([]*domain.ParticipationRequest, error) {
	return f.filter(func(r *domain.ParticipationRequest) bool { return r.EventID == eventID }), nil
}

func (f fakeRequestRepo) ListByRequesterID(ctx context.Context, requesterID string) ([]*domain.ParticipationRequest, error) {
	return f.filter(func(r *domain.ParticipationRequest) bool { return r.RequesterID == requesterID }), nil
}

func (f fakeRequestRepo) ListByIDsAndStatus(ctx context.Context, ids []string, status domain.RequestStatus) ([]*domain.ParticipationRequest, error) {
	return f.filter(func(r *domain.ParticipationRequest) bool {
		return r.Status == status && slices.Contains(ids, r.ID)
	}), nil
}

func (f fakeRequestRepo) CountByEventAndStatus(ctx context.Context, eventID string, status domain.RequestStatus) (int, error) {
	return len(f.filter(func(r *domain.ParticipationRequest) bool {
		return r.EventID == eventID && r.Status == status
	})), nil
}

func (f fakeRequestRepo) CountConfirmedByEventIDs(ctx context.Context, eventIDs []string) (map[string]int, error) {
	out := make(map[string]int)
	for _, r := range f.filter(func(r *domain.ParticipationRequest) bool {
		return r.Status == domain.RequestStatusConfirmed && slices.Contains(eventIDs, r.EventID)
	}) {
		out[r.EventID]++
	}
	return out, nil
}

func (f fakeRequestRepo) SaveAll(ctx context.Context, reqs []*domain.ParticipationRequest) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.saveAllErr != nil {
		return f.s.saveAllErr
	}
	for _, r := range reqs {
		stored, ok := f.s.requests[r.ID]
		if !ok {
			return domain.ErrNotFound
		}
		stored.Status = r.Status
	}
	return nil
}

func (f fakeRequestRepo) RejectPending(ctx context.Context, eventID string) ([]*domain.ParticipationRequest, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*domain.ParticipationRequest
	for _, r := range f.s.requests {
		if r.EventID == eventID && r.Status == domain.RequestStatusPending {
			r.Status = domain.RequestStatusRejected
			cp := *r
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *domain.ParticipationRequest) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (f fakeRequestRepo) filter(keep func(*domain.ParticipationRequest) bool) []*domain.ParticipationRequest {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*domain.ParticipationRequest{}
	for _, r := range f.s.requests {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *domain.ParticipationRequest) int { return strings.Compare(a.ID, b.ID) })
	return out
}

type fakeUserRepo struct{ s *fakeStore }

func (f fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

type fakeCategoryRepo struct{ s *fakeStore }

func (f fakeCategoryRepo) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.categories[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

type fakeLocationRepo struct{ s *fakeStore }

func (f fakeLocationRepo) GetByID(ctx context.Context, id string) (*domain.Location, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	l, ok := f.s.locations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return l, nil
}

func (f fakeLocationRepo) FindOrCreate(ctx context.Context, c domain.Coordinates) (*domain.Location, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.locationCalls++
	for _, l := range f.s.locations {
		if l.Coordinates == c {
			return l, nil
		}
	}
	l := &domain.Location{ID: f.s.id("loc"), Coordinates: c}
	f.s.locations[l.ID] = l
	return l, nil
}

// fakeTransactor serializes fn per event and restores events and requests
// when fn fails.
type fakeTransactor struct{ s *fakeStore }

type fakeLockedStore struct{ s *fakeStore }

func (l fakeLockedStore) Events() domain.EventRepository     { return fakeEventRepo{l.s} }
func (l fakeLockedStore) Requests() domain.RequestRepository { return fakeRequestRepo{l.s} }

func (f fakeTransactor) WithEventLock(ctx context.Context, eventID string, fn func(context.Context, *domain.Event, domain.LockedStore) error) error {
	f.s.mu.Lock()
	lock, ok := f.s.locks[eventID]
	if !ok {
		lock = &sync.Mutex{}
		f.s.locks[eventID] = lock
	}
	f.s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	ev, err := fakeEventRepo{f.s}.GetByID(ctx, eventID)
	if err != nil {
		return domain.NotFoundf("event %s not found", eventID)
	}

	f.s.mu.Lock()
	events := deepCopy(f.s.events)
	requests := deepCopy(f.s.requests)
	f.s.mu.Unlock()

	if err := fn(ctx, ev, fakeLockedStore{f.s}); err != nil {
		f.s.mu.Lock()
		f.s.events, f.s.requests = events, requests
		f.s.mu.Unlock()
		return err
	}
	return nil
}

func deepCopy[V any](in map[string]*V) map[string]*V {
	out := maps.Clone(in)
	for k, v := range out {
		cp := *v
		out[k] = &cp
	}
	return out
}

type fakeStats struct {
	mu     sync.Mutex
	views  map[string]int64
	err    error
	hitErr error
	hits   []domain.EndpointHit
}

func (f *fakeStats) ViewCounts(ctx context.Context, uris []string) (map[string]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]int64)
	for _, u := range uris {
		if v, ok := f.views[u]; ok {
			out[u] = v
		}
	}
	return out, nil
}

func (f *fakeStats) RecordHit(ctx context.Context, hit domain.EndpointHit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits = append(f.hits, hit)
	return f.hitErr
}

type publishedMessage struct {
	key     string
	payload any
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []publishedMessage
	err  error
}

func (f *fakePublisher) Publish(ctx context.Context, key string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, publishedMessage{key: key, payload: payload})
	return f.err
}

func (f *fakePublisher) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.msgs))
	for i, m := range f.msgs {
		out[i] = m.key
	}
	return out
}

type fakeMetrics struct {
	mu          sync.Mutex
	transitions []string
	created     map[domain.RequestStatus]int
	resolved    map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{created: make(map[domain.RequestStatus]int), resolved: make(map[string]int)}
}

func (m *fakeMetrics) EventTransition(from, to domain.EventState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, string(from)+"->"+string(to))
}

func (m *fakeMetrics) RequestCreated(status domain.RequestStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created[status]++
}

func (m *fakeMetrics) RequestsResolved(status domain.RequestStatus, n int, cascade bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved[fmt.Sprintf("%s/%t", status, cascade)] += n
}

// harness wires both services onto one fakeStore with a fixed clock.
type harness struct {
	store     *fakeStore
	stats     *fakeStats
	publisher *fakePublisher
	metrics   *fakeMetrics
	events    *eventService
	requests  *requestService
	now       time.Time
}

func newHarness() *harness {
	h := &harness{
		store:     newFakeStore(),
		stats:     &fakeStats{views: map[string]int64{}},
		publisher: &fakePublisher{},
		metrics:   newFakeMetrics(),
		now:       time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	timeout := 5 * time.Second
	clock := func() time.Time { return h.now }

	es := NewEventService(
		fakeEventRepo{h.store}, fakeRequestRepo{h.store}, fakeUserRepo{h.store},
		fakeCategoryRepo{h.store}, fakeLocationRepo{h.store}, fakeTransactor{h.store},
		h.stats, "main-service", h.publisher, h.metrics, nil, timeout,
	).(*eventService)
	es.now = clock
	h.events = es

	rs := NewRequestService(
		fakeEventRepo{h.store}, fakeRequestRepo{h.store}, fakeUserRepo{h.store},
		fakeTransactor{h.store}, h.publisher, h.metrics, nil, timeout,
	).(*requestService)
	rs.now = clock
	h.requests = rs
	return h
}

// publishedEvent seeds a published event owned by "owner" in category "cat".
func (h *harness) publishedEvent(limit int, moderation bool) string {
	h.store.addUser("owner")
	h.store.addCategory("cat")
	published := h.now.Add(-time.Hour)
	return h.store.addEvent(domain.Event{
		Annotation:        "annotation of the event",
		Description:       "description of the event",
		Title:             "Event",
		CategoryID:        "cat",
		InitiatorID:       "owner",
		CreatedOn:         h.now.Add(-2 * time.Hour),
		PublishedOn:       &published,
		EventDate:         h.now.Add(48 * time.Hour),
		ParticipantLimit:  limit,
		RequestModeration: moderation,
		State:             domain.EventStatePublished,
	})
}

func ptr[T any](v T) *T { return &v }
