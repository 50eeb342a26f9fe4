package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"eventlisting/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestService_Create(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		limit      int
		moderation bool
		setup      func(h *harness, eventID string)
		caller     string
		wantStatus domain.RequestStatus
		wantErr    error
	}{
		{name: "pending under moderation", limit: 2, moderation: true, wantStatus: domain.RequestStatusPending},
		{name: "auto confirmed without moderation", limit: 2, moderation: false, wantStatus: domain.RequestStatusConfirmed},
		{name: "unlimited event", limit: 0, moderation: true, wantStatus: domain.RequestStatusPending},
		{
			name:       "duplicate request",
			limit:      0,
			moderation: true,
			setup: func(h *harness, eventID string) {
				h.store.addRequest(eventID, "user", domain.RequestStatusPending)
			},
			wantErr: domain.ErrConflict,
		},
		{
			name:       "again after cancel",
			limit:      0,
			moderation: true,
			setup: func(h *harness, eventID string) {
				h.store.addRequest(eventID, "user", domain.RequestStatusCanceled)
			},
			wantStatus: domain.RequestStatusPending,
		},
		{name: "initiator", limit: 0, moderation: true, caller: "owner", wantErr: domain.ErrConflict},
		{
			name:       "unpublished event",
			limit:      0,
			moderation: true,
			setup: func(h *harness, eventID string) {
				ev := h.store.event(eventID)
				ev.State = domain.EventStatePending
				h.store.addEvent(ev)
			},
			wantErr: domain.ErrConflict,
		},
		{
			name:       "limit reached",
			limit:      1,
			moderation: true,
			setup: func(h *harness, eventID string) {
				h.store.addUser("other")
				h.store.addRequest(eventID, "other", domain.RequestStatusConfirmed)
			},
			wantErr: domain.ErrConflict,
		},
		{name: "unknown user", limit: 0, moderation: true, caller: "ghost", wantErr: domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			eventID := h.publishedEvent(tt.limit, tt.moderation)
			h.store.addUser("user")
			if tt.setup != nil {
				tt.setup(h, eventID)
			}
			caller := tt.caller
			if caller == "" {
				caller = "user"
			}

			got, err := h.requests.Create(ctx, caller, eventID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, got.ID)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, eventID, got.EventID)
			assert.Equal(t, "user", got.RequesterID)
			assert.Equal(t, h.now, got.Created)
			assert.Equal(t, tt.wantStatus, h.store.status(got.ID))
			assert.Equal(t, 1, h.metrics.created[tt.wantStatus])
		})
	}
}

func TestRequestService_Create_UnknownEvent(t *testing.T) {
	h := newHarness()
	h.store.addUser("user")
	_, err := h.requests.Create(context.Background(), "user", "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestService_Create_ConcurrentNeverExceedsLimit(t *testing.T) {
	const limit, callers = 3, 20
	h := newHarness()
	eventID := h.publishedEvent(limit, false)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, conflicts int
	for i := range callers {
		user := fmt.Sprintf("user-%d", i)
		h.store.addUser(user)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.requests.Create(context.Background(), user, eventID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, ok)
	assert.Equal(t, callers-limit, conflicts)
	assert.Equal(t, limit, h.store.countStatus(eventID, domain.RequestStatusConfirmed))
}

func TestRequestService_Cancel(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	eventID := h.publishedEvent(0, true)
	h.store.addUser("user")
	h.store.addUser("other")
	reqID := h.store.addRequest(eventID, "user", domain.RequestStatusConfirmed)

	_, err := h.requests.Cancel(ctx, "other", reqID)
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, domain.RequestStatusConfirmed, h.store.status(reqID))

	got, err := h.requests.Cancel(ctx, "user", reqID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusCanceled, got.Status)
	assert.Equal(t, domain.RequestStatusCanceled, h.store.status(reqID))

	h.store.saveAllErr = errors.New("no writes expected")
	got, err = h.requests.Cancel(ctx, "user", reqID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusCanceled, got.Status)

	_, err = h.requests.Cancel(ctx, "user", "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestService_Lists(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	eventID := h.publishedEvent(0, true)
	h.store.addUser("user")
	h.store.addUser("lonely")
	h.store.addRequest(eventID, "user", domain.RequestStatusPending)

	mine, err := h.requests.ListForRequester(ctx, "user")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	none, err := h.requests.ListForRequester(ctx, "lonely")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	forEvent, err := h.requests.ListForEventOwner(ctx, "owner", eventID)
	require.NoError(t, err)
	require.Len(t, forEvent, 1)

	_, err = h.requests.ListForEventOwner(ctx, "user", eventID)
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = h.requests.ListForEventOwner(ctx, "owner", "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func ids(reqs []*domain.ParticipationRequest) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.ID
	}
	return out
}

func TestRequestService_ResolveBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("confirms in caller order and cascades", func(t *testing.T) {
		h := newHarness()
		eventID := h.publishedEvent(3, true)
		var pending []string
		for i := range 5 {
			user := fmt.Sprintf("u%d", i)
			h.store.addUser(user)
			pending = append(pending, h.store.addRequest(eventID, user, domain.RequestStatusPending))
		}
		h.store.addUser("c")
		h.store.addRequest(eventID, "c", domain.RequestStatusConfirmed)

		// one slot already taken: two left for a batch of three
		batch := []string{pending[2], pending[0], pending[4]}
		got, err := h.requests.ResolveBatch(ctx, "owner", eventID, batch, domain.RequestStatusConfirmed)
		require.NoError(t, err)

		assert.Equal(t, []string{pending[2], pending[0]}, ids(got.ConfirmedRequests))
		assert.ElementsMatch(t, []string{pending[4], pending[1], pending[3]}, ids(got.RejectedRequests))
		assert.Equal(t, pending[4], got.RejectedRequests[0].ID)
		for _, r := range got.RejectedRequests {
			assert.Equal(t, domain.RequestStatusRejected, r.Status)
		}

		assert.Equal(t, 3, h.store.countStatus(eventID, domain.RequestStatusConfirmed))
		assert.Zero(t, h.store.countStatus(eventID, domain.RequestStatusPending))
		assert.Equal(t, 2, h.metrics.resolved["CONFIRMED/false"])
		assert.Equal(t, 1, h.metrics.resolved["REJECTED/false"])
		assert.Equal(t, 2, h.metrics.resolved["REJECTED/true"])
		assert.Equal(t, []string{domain.RoutingRequestsResolved}, h.publisher.keys())
	})

	t.Run("batch that leaves room does not cascade", func(t *testing.T) {
		h := newHarness()
		eventID := h.publishedEvent(5, true)
		h.store.addUser("a")
		h.store.addUser("b")
		a := h.store.addRequest(eventID, "a", domain.RequestStatusPending)
		b := h.store.addRequest(eventID, "b", domain.RequestStatusPending)

		got, err := h.requests.ResolveBatch(ctx, "owner", eventID, []string{a}, domain.RequestStatusConfirmed)
		require.NoError(t, err)
		assert.Equal(t, []string{a}, ids(got.ConfirmedRequests))
		assert.Empty(t, got.RejectedRequests)
		assert.Equal(t, domain.RequestStatusPending, h.store.status(b))
	})

	t.Run("reject batch", func(t *testing.T) {
		h := newHarness()
		eventID := h.publishedEvent(0, false)
		h.store.addUser("a")
		a := h.store.addRequest(eventID, "a", domain.RequestStatusPending)

		got, err := h.requests.ResolveBatch(ctx, "owner", eventID, []string{a}, domain.RequestStatusRejected)
		require.NoError(t, err)
		assert.Empty(t, got.ConfirmedRequests)
		assert.Equal(t, []string{a}, ids(got.RejectedRequests))
		assert.Equal(t, domain.RequestStatusRejected, h.store.status(a))
	})

	t.Run("reject refused when full", func(t *testing.T) {
		h := newHarness()
		eventID := h.publishedEvent(1, true)
		h.store.addUser("a")
		h.store.addUser("b")
		h.store.addRequest(eventID, "a", domain.RequestStatusConfirmed)
		b := h.store.addRequest(eventID, "b", domain.RequestStatusPending)

		_, err := h.requests.ResolveBatch(ctx, "owner", eventID, []string{b}, domain.RequestStatusRejected)
		require.ErrorIs(t, err, domain.ErrConflict)
		assert.Equal(t, domain.RequestStatusPending, h.store.status(b))
	})

	t.Run("confirmed request is named in the error", func(t *testing.T) {
		h := newHarness()
		eventID := h.publishedEvent(2, true)
		h.store.addUser("a")
		h.store.addUser("b")
		a := h.store.addRequest(eventID, "a", domain.RequestStatusPending)
		c := h.store.addRequest(eventID, "b", domain.RequestStatusConfirmed)

		_, err := h.requests.ResolveBatch(ctx, "owner", eventID, []string{a, c}, domain.RequestStatusConfirmed)
		require.ErrorIs(t, err, domain.ErrValidation)
		assert.ErrorContains(t, err, c)
		assert.Equal(t, domain.RequestStatusPending, h.store.status(a))
		assert.Equal(t, domain.RequestStatusConfirmed, h.store.status(c))
	})

	t.Run("empty batch touches nothing", func(t *testing.T) {
		h := newHarness()
		got, err := h.requests.ResolveBatch(ctx, "anyone", "missing", nil, domain.RequestStatusConfirmed)
		require.NoError(t, err)
		assert.NotNil(t, got.ConfirmedRequests)
		assert.NotNil(t, got.RejectedRequests)
		assert.Empty(t, got.ConfirmedRequests)
		assert.Empty(t, got.RejectedRequests)
	})

	errorCases := []struct {
		name    string
		limit   int
		mod     bool
		caller  string
		status  domain.RequestStatus
		setup   func(h *harness, eventID string) []string
		wantErr error
	}{
		{
			name: "not the initiator", limit: 2, mod: true, caller: "a", status: domain.RequestStatusConfirmed,
			wantErr: domain.ErrConflict,
		},
		{
			name: "moderation disabled", limit: 2, mod: false, status: domain.RequestStatusConfirmed,
			wantErr: domain.ErrConflict,
		},
		{
			name: "unlimited event", limit: 0, mod: true, status: domain.RequestStatusConfirmed,
			wantErr: domain.ErrConflict,
		},
		{
			name: "already full", limit: 1, mod: true, status: domain.RequestStatusConfirmed,
			setup: func(h *harness, eventID string) []string {
				h.store.addUser("c")
				h.store.addRequest(eventID, "c", domain.RequestStatusConfirmed)
				return nil
			},
			wantErr: domain.ErrConflict,
		},
		{
			name: "invalid target status", limit: 2, mod: true, status: domain.RequestStatusCanceled,
			wantErr: domain.ErrValidation,
		},
		{
			name: "request not pending", limit: 2, mod: true, status: domain.RequestStatusConfirmed,
			setup: func(h *harness, eventID string) []string {
				h.store.addUser("c")
				return []string{h.store.addRequest(eventID, "c", domain.RequestStatusRejected)}
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "request of another event", limit: 2, mod: true, status: domain.RequestStatusConfirmed,
			setup: func(h *harness, eventID string) []string {
				other := h.publishedEvent(0, true)
				h.store.addUser("c")
				return []string{h.store.addRequest(other, "c", domain.RequestStatusPending)}
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "unknown request", limit: 2, mod: true, status: domain.RequestStatusConfirmed,
			setup: func(h *harness, eventID string) []string {
				return []string{"missing"}
			},
			wantErr: domain.ErrValidation,
		},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			eventID := h.publishedEvent(tt.limit, tt.mod)
			h.store.addUser("a")
			a := h.store.addRequest(eventID, "a", domain.RequestStatusPending)
			batch := []string{a}
			if tt.setup != nil {
				batch = append(batch, tt.setup(h, eventID)...)
			}
			caller := tt.caller
			if caller == "" {
				caller = "owner"
			}

			_, err := h.requests.ResolveBatch(ctx, caller, eventID, batch, tt.status)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, domain.RequestStatusPending, h.store.status(a), "failed batch must not change any request")
		})
	}

	t.Run("duplicate ids", func(t *testing.T) {
		h := newHarness()
		eventID := h.publishedEvent(2, true)
		h.store.addUser("a")
		a := h.store.addRequest(eventID, "a", domain.RequestStatusPending)
		_, err := h.requests.ResolveBatch(ctx, "owner", eventID, []string{a, a}, domain.RequestStatusConfirmed)
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("write failure rolls back", func(t *testing.T) {
		h := newHarness()
		eventID := h.publishedEvent(2, true)
		h.store.addUser("a")
		a := h.store.addRequest(eventID, "a", domain.RequestStatusPending)
		h.store.saveAllErr = errors.New("disk full")
		_, err := h.requests.ResolveBatch(ctx, "owner", eventID, []string{a}, domain.RequestStatusConfirmed)
		require.ErrorContains(t, err, "disk full")
		assert.Equal(t, domain.RequestStatusPending, h.store.status(a))
		assert.Empty(t, h.publisher.keys())
	})
}

func TestRequestService_ResolveBatch_ConcurrentNeverExceedsLimit(t *testing.T) {
	const limit = 4
	h := newHarness()
	eventID := h.publishedEvent(limit, true)
	var batches [][]string
	for b := range 5 {
		var batch []string
		for i := range 3 {
			user := fmt.Sprintf("u%d-%d", b, i)
			h.store.addUser(user)
			batch = append(batch, h.store.addRequest(eventID, user, domain.RequestStatusPending))
		}
		batches = append(batches, batch)
	}

	var wg sync.WaitGroup
	for _, batch := range batches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// later batches may find their requests already cascaded or the event full
			_, _ = h.requests.ResolveBatch(context.Background(), "owner", eventID, batch, domain.RequestStatusConfirmed)
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, h.store.countStatus(eventID, domain.RequestStatusConfirmed))
	assert.Zero(t, h.store.countStatus(eventID, domain.RequestStatusPending))
}

func TestResolveInOrder(t *testing.T) {
	reqs := map[string]*domain.ParticipationRequest{
		"r1": {ID: "r1", Status: domain.RequestStatusPending},
		"r2": {ID: "r2", Status: domain.RequestStatusPending},
		"r3": {ID: "r3", Status: domain.RequestStatusPending},
	}
	slots := domain.FreeSlots(3, 2)
	confirmed, rejected := resolveInOrder([]string{"r3", "r1", "r2"}, reqs, domain.RequestStatusConfirmed, &slots)

	assert.Equal(t, []string{"r3"}, ids(confirmed))
	assert.Equal(t, []string{"r1", "r2"}, ids(rejected))
	assert.True(t, slots.Exhausted())
}
