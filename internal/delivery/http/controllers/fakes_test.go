package controllers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"eventlisting/internal/delivery/http/helpers"
	"eventlisting/internal/delivery/http/middleware"
	"eventlisting/internal/domain"

	"github.com/stretchr/testify/require"
)

const (
	userID   = "6f1c2a52-0c55-4a8e-9f53-0d2c7f0d4a11"
	eventID  = "0b8f3b1e-4f4e-4f5f-8c1e-7d5b1c6e2a90"
	catID    = "2c9d9a8e-8b7a-4c2b-9e0f-1a2b3c4d5e6f"
	reqID    = "9a7b5c3d-1e2f-4a6b-8c9d-0e1f2a3b4c5d"
	reqID2   = "1b2c3d4e-5f6a-4b8c-9d0e-1f2a3b4c5d6e"
	longText = "a sufficiently long piece of text"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeEventService implements domain.EventService with per-method hooks.
type fakeEventService struct {
	create       func(ownerID string, draft domain.NewEvent) (*domain.EventFull, error)
	updateOwner  func(ownerID, eventID string, patch domain.EventPatch) (*domain.EventFull, error)
	updateAdmin  func(eventID string, patch domain.EventPatch) (*domain.EventFull, error)
	getOwner     func(ownerID, eventID string) (*domain.EventFull, error)
	listOwner    func(ownerID string, params domain.PaginationParams) ([]*domain.EventShort, error)
	searchPublic func(filter domain.EventFilter, params domain.PaginationParams, hit domain.Hit) ([]*domain.EventShort, error)
	getPublished func(eventID string, hit domain.Hit) (*domain.EventFull, error)
	searchAdmin  func(filter domain.EventFilter, params domain.PaginationParams) ([]*domain.EventFull, error)
}

func (f *fakeEventService) CreateEvent(_ context.Context, ownerID string, draft domain.NewEvent) (*domain.EventFull, error) {
	return f.create(ownerID, draft)
}

func (f *fakeEventService) UpdateByOwner(_ context.Context, ownerID, eventID string, patch domain.EventPatch) (*domain.EventFull, error) {
	return f.updateOwner(ownerID, eventID, patch)
}

func (f *fakeEventService) UpdateByAdmin(_ context.Context, eventID string, patch domain.EventPatch) (*domain.EventFull, error) {
	return f.updateAdmin(eventID, patch)
}

func (f *fakeEventService) GetOwnerEvent(_ context.Context, ownerID, eventID string) (*domain.EventFull, error) {
	return f.getOwner(ownerID, eventID)
}

func (f *fakeEventService) ListOwnerEvents(_ context.Context, ownerID string, params domain.PaginationParams) ([]*domain.EventShort, error) {
	return f.listOwner(ownerID, params)
}

func (f *fakeEventService) SearchPublic(_ context.Context, filter domain.EventFilter, params domain.PaginationParams, hit domain.Hit) ([]*domain.EventShort, error) {
	return f.searchPublic(filter, params, hit)
}

func (f *fakeEventService) GetPublishedEvent(_ context.Context, eventID string, hit domain.Hit) (*domain.EventFull, error) {
	return f.getPublished(eventID, hit)
}

func (f *fakeEventService) SearchAdmin(_ context.Context, filter domain.EventFilter, params domain.PaginationParams) ([]*domain.EventFull, error) {
	return f.searchAdmin(filter, params)
}

// fakeRequestService implements domain.RequestService with per-method hooks.
type fakeRequestService struct {
	create    func(userID, eventID string) (*domain.ParticipationRequest, error)
	cancel    func(userID, requestID string) (*domain.ParticipationRequest, error)
	listMine  func(userID string) ([]*domain.ParticipationRequest, error)
	listEvent func(ownerID, eventID string) ([]*domain.ParticipationRequest, error)
	resolve   func(ownerID, eventID string, ids []string, status domain.RequestStatus) (*domain.RequestStatusUpdateResult, error)
}

func (f *fakeRequestService) Create(_ context.Context, userID, eventID string) (*domain.ParticipationRequest, error) {
	return f.create(userID, eventID)
}

func (f *fakeRequestService) Cancel(_ context.Context, userID, requestID string) (*domain.ParticipationRequest, error) {
	return f.cancel(userID, requestID)
}

func (f *fakeRequestService) ListForRequester(_ context.Context, userID string) ([]*domain.ParticipationRequest, error) {
	return f.listMine(userID)
}

func (f *fakeRequestService) ListForEventOwner(_ context.Context, ownerID, eventID string) ([]*domain.ParticipationRequest, error) {
	return f.listEvent(ownerID, eventID)
}

func (f *fakeRequestService) ResolveBatch(_ context.Context, ownerID, eventID string, ids []string, status domain.RequestStatus) (*domain.RequestStatusUpdateResult, error) {
	return f.resolve(ownerID, eventID, ids, status)
}

// serve routes a single request through a mux so path values are populated.
func serve(t *testing.T, pattern string, handler http.HandlerFunc, method, target, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, handler)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if authed {
		req = req.WithContext(middleware.SetUserID(req.Context(), userID))
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder, data any) *helpers.APIError {
	t.Helper()
	var envelope struct {
		Data  json.RawMessage   `json:"data"`
		Error *helpers.APIError `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope))
	if data != nil && envelope.Error == nil {
		require.NoError(t, json.Unmarshal(envelope.Data, data))
	}
	return envelope.Error
}
