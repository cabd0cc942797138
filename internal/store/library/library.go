// Package library reads photo metadata out of an existing PhotoPrism-style
// MariaDB photo library. It is strictly read-only; imported photos land in
// the application's own store.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Photo is the metadata the importer needs from the library.
type Photo struct {
	FileRef string
	TakenAt time.Time
	Lat     float64
	Lng     float64
	HasGeo  bool
}

// Pool manages a MariaDB connection pool to the photo library.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// ListPhotos returns photo metadata taken after the given time, oldest
// first. PhotoPrism stores missing coordinates as 0,0 which we treat as
// no geotag.
func (p *Pool) ListPhotos(ctx context.Context, after time.Time, limit int) ([]Photo, error) {
	query := `
		SELECT f.file_name, p.taken_at, p.photo_lat, p.photo_lng
		FROM photos p
		JOIN files f ON f.photo_id = p.id AND f.file_primary = 1
		WHERE p.deleted_at IS NULL AND p.taken_at > ?
		ORDER BY p.taken_at
		LIMIT ?
	`

	rows, err := p.db.QueryContext(ctx, query, after, limit)
	if err != nil {
		return nil, fmt.Errorf("query library photos: %w", err)
	}
	defer rows.Close()

	var photos []Photo
	for rows.Next() {
		var photo Photo
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&photo.FileRef, &photo.TakenAt, &lat, &lng); err != nil {
			return nil, fmt.Errorf("scan library photo: %w", err)
		}
		if lat.Valid && lng.Valid && (lat.Float64 != 0 || lng.Float64 != 0) {
			photo.Lat = lat.Float64
			photo.Lng = lng.Float64
			photo.HasGeo = true
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate library photos: %w", err)
	}
	return photos, nil
}

// CountPhotos returns the number of importable photos in the library.
func (p *Pool) CountPhotos(ctx context.Context) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM photos WHERE deleted_at IS NULL",
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count library photos: %w", err)
	}
	return count, nil
}
