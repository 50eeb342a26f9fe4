package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"eventlisting/internal/domain"
)

const requestColumns = `id, event_id, requester_id, created, status`

type requestRepository struct {
	DB DBTX
}

func NewRequestRepository(db DBTX) domain.RequestRepository {
	return &requestRepository{DB: db}
}

func scanRequest(row scanner) (*domain.ParticipationRequest, error) {
	r := &domain.ParticipationRequest{}
	var status string
	if err := row.Scan(&r.ID, &r.EventID, &r.RequesterID, &r.Created, &status); err != nil {
		return nil, err
	}
	r.Status = domain.RequestStatus(status)
	return r, nil
}

func (r *requestRepository) Create(ctx context.Context, req *domain.ParticipationRequest) error {
	query := `
		INSERT INTO participation_requests (event_id, requester_id, created, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query, req.EventID, req.RequesterID, req.Created, string(req.Status)).Scan(&req.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflictf("user %s already requested participation in event %s", req.RequesterID, req.EventID)
		}
		return err
	}
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*domain.ParticipationRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM participation_requests WHERE id = $1`
	req, err := scanRequest(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

func (r *requestRepository) GetActiveByEventAndRequester(ctx context.Context, eventID, requesterID string) (*domain.ParticipationRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM participation_requests
		WHERE event_id = $1 AND requester_id = $2 AND status <> $3
	`
	req, err := scanRequest(r.DB.QueryRowContext(ctx, query, eventID, requesterID, string(domain.RequestStatusCanceled)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

func (r *requestRepository) ListByEventID(ctx context.Context, eventID string) ([]*domain.ParticipationRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM participation_requests WHERE event_id = $1 ORDER BY created, id`
	return r.list(ctx, query, eventID)
}

func (r *requestRepository) ListByRequesterID(ctx context.Context, requesterID string) ([]*domain.ParticipationRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM participation_requests WHERE requester_id = $1 ORDER BY created, id`
	return r.list(ctx, query, requesterID)
}

func (r *requestRepository) ListByIDsAndStatus(ctx context.Context, ids []string, status domain.RequestStatus) ([]*domain.ParticipationRequest, error) {
	if len(ids) == 0 {
		return []*domain.ParticipationRequest{}, nil
	}
	query := `
		SELECT ` + requestColumns + `
		FROM participation_requests
		WHERE id = ANY($1::uuid[]) AND status = $2
		ORDER BY created, id
	`
	return r.list(ctx, query, pq.Array(ids), string(status))
}

func (r *requestRepository) list(ctx context.Context, query string, args ...any) ([]*domain.ParticipationRequest, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*domain.ParticipationRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r *requestRepository) CountByEventAndStatus(ctx context.Context, eventID string, status domain.RequestStatus) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participation_requests WHERE event_id = $1 AND status = $2`,
		eventID, string(status),
	).Scan(&n)
	return n, err
}

func (r *requestRepository) CountConfirmedByEventIDs(ctx context.Context, eventIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(eventIDs))
	if len(eventIDs) == 0 {
		return counts, nil
	}
	query := `
		SELECT event_id, COUNT(*)
		FROM participation_requests
		WHERE event_id = ANY($1::uuid[]) AND status = $2
		GROUP BY event_id
	`
	rows, err := r.DB.QueryContext(ctx, query, pq.Array(eventIDs), string(domain.RequestStatusConfirmed))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (r *requestRepository) SaveAll(ctx context.Context, reqs []*domain.ParticipationRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	ids := make([]string, len(reqs))
	statuses := make([]string, len(reqs))
	for i, req := range reqs {
		ids[i] = req.ID
		statuses[i] = string(req.Status)
	}
	query := `
		UPDATE participation_requests AS pr SET status = v.status
		FROM (SELECT unnest($1::uuid[]) AS id, unnest($2::text[]) AS status) AS v
		WHERE pr.id = v.id
	`
	result, err := r.DB.ExecContext(ctx, query, pq.Array(ids), pq.Array(statuses))
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save participation requests rows affected: %w", err)
	}
	if int(rows) != len(reqs) {
		return fmt.Errorf("%w: updated %d of %d participation requests", domain.ErrNotFound, rows, len(reqs))
	}
	return nil
}

func (r *requestRepository) RejectPending(ctx context.Context, eventID string) ([]*domain.ParticipationRequest, error) {
	query := `
		UPDATE participation_requests SET status = $2
		WHERE event_id = $1 AND status = $3
		RETURNING ` + requestColumns
	return r.list(ctx, query, eventID, string(domain.RequestStatusRejected), string(domain.RequestStatusPending))
}
