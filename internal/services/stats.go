package services

import (
	"context"
	"log/slog"
	"time"

	"eventlisting/internal/domain"
)

// EventURI is the stats key for an event's public page.
func EventURI(eventID string) string {
	return "/events/" + eventID
}

// statEnricher wraps the stats client so that a failing stats service only
// costs views, never the request.
type statEnricher struct {
	client domain.StatsClient
	app    string
	logger *slog.Logger
}

func (e *statEnricher) views(ctx context.Context, eventIDs []string) map[string]int64 {
	out := make(map[string]int64, len(eventIDs))
	if e.client == nil || len(eventIDs) == 0 {
		return out
	}
	uris := make([]string, len(eventIDs))
	for i, id := range eventIDs {
		uris[i] = EventURI(id)
	}
	counts, err := e.client.ViewCounts(ctx, uris)
	if err != nil {
		e.logger.WarnContext(ctx, "view counts unavailable", "events", len(eventIDs), "err", err)
		return out
	}
	for _, id := range eventIDs {
		out[id] = counts[EventURI(id)]
	}
	return out
}

func (e *statEnricher) record(ctx context.Context, hit domain.Hit, at time.Time) {
	if e.client == nil || hit.URI == "" {
		return
	}
	err := e.client.RecordHit(ctx, domain.EndpointHit{App: e.app, URI: hit.URI, IP: hit.IP, Timestamp: at})
	if err != nil {
		e.logger.WarnContext(ctx, "record hit failed", "uri", hit.URI, "err", err)
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }

func orNopPublisher(p domain.EventPublisher) domain.EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

type nopMetrics struct{}

func (nopMetrics) EventTransition(domain.EventState, domain.EventState) {}
func (nopMetrics) RequestCreated(domain.RequestStatus)                  {}
func (nopMetrics) RequestsResolved(domain.RequestStatus, int, bool)     {}

func orNopMetrics(m domain.Metrics) domain.Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
