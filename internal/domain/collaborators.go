package domain

import (
	"context"
	"time"
)

// Hit describes one public API access recorded with the stats service.
type Hit struct {
	URI string
	IP  string
}

// EndpointHit is the record sent to the stats service.
type EndpointHit struct {
	App       string
	URI       string
	IP        string
	Timestamp time.Time
}

// StatsClient is the view/stat enricher. Results are cosmetic: callers must
// degrade to zero views on error.
type StatsClient interface {
	// ViewCounts returns unique-ip hit counts keyed by uri; missing uris have no hits.
	ViewCounts(ctx context.Context, uris []string) (map[string]int64, error)
	RecordHit(ctx context.Context, hit EndpointHit) error
}

// LockedStore exposes repositories bound to a transaction that holds the event lock.
type LockedStore interface {
	Events() EventRepository
	Requests() RequestRepository
}

// Transactor serializes writers per event.
type Transactor interface {
	// WithEventLock reads the event under an exclusive lock and runs fn in the
	// same transaction. fn's error rolls everything back; nil commits.
	// Returns ErrNotFound if the event does not exist.
	WithEventLock(ctx context.Context, eventID string, fn func(ctx context.Context, event *Event, store LockedStore) error) error
}

// Routing keys for lifecycle messages.
const (
	RoutingEventPublished   = "event.published"
	RoutingEventCanceled    = "event.canceled"
	RoutingRequestsResolved = "request.resolved"
)

// EventPublisher emits lifecycle messages after commit. Delivery is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Metrics records lifecycle and admission outcomes.
type Metrics interface {
	EventTransition(from, to EventState)
	RequestCreated(status RequestStatus)
	RequestsResolved(status RequestStatus, n int, cascade bool)
}
