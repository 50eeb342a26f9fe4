package domain

import "context"

// Category groups events.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Location is a stored, deduplicated coordinate pair.
type Location struct {
	ID string `json:"id"`
	Coordinates
}

// CategoryRepository resolves categories by id.
type CategoryRepository interface {
	GetByID(ctx context.Context, id string) (*Category, error)
}

// LocationRepository resolves locations; FindOrCreate returns the existing
// row for the coordinates or inserts one.
type LocationRepository interface {
	GetByID(ctx context.Context, id string) (*Location, error)
	FindOrCreate(ctx context.Context, c Coordinates) (*Location, error)
}
