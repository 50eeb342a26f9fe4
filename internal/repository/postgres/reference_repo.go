package postgres

import (
	"context"
	"database/sql"
	"errors"

	"eventlisting/internal/domain"
)

type userRepository struct {
	DB DBTX
}

func NewUserRepository(db DBTX) domain.UserRepository {
	return &userRepository{DB: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u := &domain.User{}
	err := r.DB.QueryRowContext(ctx, `SELECT id, name, email FROM users WHERE id = $1`, id).Scan(&u.ID, &u.Name, &u.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

type categoryRepository struct {
	DB DBTX
}

func NewCategoryRepository(db DBTX) domain.CategoryRepository {
	return &categoryRepository{DB: db}
}

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	c := &domain.Category{}
	err := r.DB.QueryRowContext(ctx, `SELECT id, name FROM categories WHERE id = $1`, id).Scan(&c.ID, &c.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

type locationRepository struct {
	DB DBTX
}

func NewLocationRepository(db DBTX) domain.LocationRepository {
	return &locationRepository{DB: db}
}

func (r *locationRepository) GetByID(ctx context.Context, id string) (*domain.Location, error) {
	l := &domain.Location{}
	err := r.DB.QueryRowContext(ctx, `SELECT id, lat, lon FROM locations WHERE id = $1`, id).Scan(&l.ID, &l.Lat, &l.Lon)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

// FindOrCreate relies on the (lat, lon) unique index; the no-op update makes
// RETURNING yield the existing row on conflict.
func (r *locationRepository) FindOrCreate(ctx context.Context, c domain.Coordinates) (*domain.Location, error) {
	query := `
		INSERT INTO locations (lat, lon)
		VALUES ($1, $2)
		ON CONFLICT (lat, lon) DO UPDATE SET lat = EXCLUDED.lat
		RETURNING id
	`
	l := &domain.Location{Coordinates: c}
	if err := r.DB.QueryRowContext(ctx, query, c.Lat, c.Lon).Scan(&l.ID); err != nil {
		return nil, err
	}
	return l, nil
}
