package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"eventlisting/internal/domain"
)

const eventColumns = `e.id, e.annotation, e.description, e.title, e.category_id, e.location_id, e.initiator_id,
		e.created_on, e.published_on, e.event_date, e.paid, e.participant_limit, e.request_moderation, e.state`

type eventRepository struct {
	DB DBTX
}

func NewEventRepository(db DBTX) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

func scanEvent(row scanner) (*domain.Event, error) {
	e := &domain.Event{}
	var publishedOn sql.NullTime
	var state string
	err := row.Scan(
		&e.ID, &e.Annotation, &e.Description, &e.Title, &e.CategoryID, &e.LocationID, &e.InitiatorID,
		&e.CreatedOn, &publishedOn, &e.EventDate, &e.Paid, &e.ParticipantLimit, &e.RequestModeration, &state,
	)
	if err != nil {
		return nil, err
	}
	if publishedOn.Valid {
		e.PublishedOn = &publishedOn.Time
	}
	e.State = domain.EventState(state)
	return e, nil
}

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	query := `
		INSERT INTO events (annotation, description, title, category_id, location_id, initiator_id,
			created_on, published_on, event_date, paid, participant_limit, request_moderation, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		e.Annotation, e.Description, e.Title, e.CategoryID, e.LocationID, e.InitiatorID,
		e.CreatedOn, e.PublishedOn, e.EventDate, e.Paid, e.ParticipantLimit, e.RequestModeration, string(e.State),
	).Scan(&e.ID)
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events e WHERE e.id = $1`
	e, err := scanEvent(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *eventRepository) ListByInitiatorID(ctx context.Context, initiatorID string, params domain.PaginationParams) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events e
		WHERE e.initiator_id = $1
		ORDER BY e.created_on DESC, e.id
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, initiatorID, params.Limit(), params.Offset())
}

func (r *eventRepository) Search(ctx context.Context, filter domain.EventFilter, params domain.PaginationParams) ([]*domain.Event, error) {
	where, args := searchConditions(filter)
	query := `SELECT ` + eventColumns + ` FROM events e`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	args = append(args, params.Limit(), params.Offset())
	query += fmt.Sprintf(` ORDER BY e.event_date DESC, e.id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	return r.list(ctx, query, args...)
}

// likeEscaper quotes LIKE metacharacters with the default backslash escape.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// searchConditions turns the filter into WHERE clauses with positional args.
func searchConditions(filter domain.EventFilter) ([]string, []any) {
	var where []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if text := strings.TrimSpace(filter.Text); text != "" {
		add(`(e.annotation ILIKE $%[1]d OR e.description ILIKE $%[1]d)`, "%"+likeEscaper.Replace(text)+"%")
	}
	if len(filter.InitiatorIDs) > 0 {
		add(`e.initiator_id = ANY($%d::uuid[])`, pq.Array(filter.InitiatorIDs))
	}
	if len(filter.CategoryIDs) > 0 {
		add(`e.category_id = ANY($%d::uuid[])`, pq.Array(filter.CategoryIDs))
	}
	if len(filter.States) > 0 {
		states := make([]string, len(filter.States))
		for i, s := range filter.States {
			states[i] = string(s)
		}
		add(`e.state = ANY($%d)`, pq.Array(states))
	}
	if filter.Paid != nil {
		add(`e.paid = $%d`, *filter.Paid)
	}
	if filter.RangeStart != nil {
		add(`e.event_date >= $%d`, *filter.RangeStart)
	}
	if filter.RangeEnd != nil {
		add(`e.event_date <= $%d`, *filter.RangeEnd)
	}
	if filter.OnlyAvailable {
		add(`(e.participant_limit = 0 OR e.participant_limit > (
			SELECT COUNT(*) FROM participation_requests pr WHERE pr.event_id = e.id AND pr.status = $%d))`,
			string(domain.RequestStatusConfirmed))
	}
	return where, args
}

func (r *eventRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]*domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *eventRepository) Update(ctx context.Context, e *domain.Event) error {
	query := `
		UPDATE events SET
			annotation = $1, description = $2, title = $3, category_id = $4, location_id = $5,
			published_on = $6, event_date = $7, paid = $8, participant_limit = $9,
			request_moderation = $10, state = $11
		WHERE id = $12
	`
	result, err := r.DB.ExecContext(ctx, query,
		e.Annotation, e.Description, e.Title, e.CategoryID, e.LocationID,
		e.PublishedOn, e.EventDate, e.Paid, e.ParticipantLimit,
		e.RequestModeration, string(e.State), e.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update event rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
