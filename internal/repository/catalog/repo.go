// Package catalog loads titles from PostgreSQL.
package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kailas-cloud/animedex/internal/domain/title"
)

const titleColumns = `id, kind, name, english_name, synopsis, score, genres, popularity, media_type, status, image_url`

// Repo reads and writes the titles table.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a catalog repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Load returns every title of kind, most popular first. NULL optional columns
// map to zero values or nil pointers.
func (r *Repo) Load(ctx context.Context, kind title.Kind) ([]title.Title, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+titleColumns+` FROM titles
		WHERE kind = $1
		ORDER BY popularity ASC NULLS LAST, id ASC`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("load titles %s: %w", kind, err)
	}

	titles, err := pgx.CollectRows(rows, scanTitle)
	if err != nil {
		return nil, fmt.Errorf("scan titles %s: %w", kind, err)
	}
	return titles, nil
}

// Upsert writes titles in one batch round-trip and returns how many rows changed.
func (r *Repo) Upsert(ctx context.Context, titles []title.Title) (int, error) {
	if len(titles) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for i := range titles {
		t := &titles[i]
		batch.Queue(`
			INSERT INTO titles (`+titleColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (kind, id) DO UPDATE SET
				name = EXCLUDED.name,
				english_name = EXCLUDED.english_name,
				synopsis = EXCLUDED.synopsis,
				score = EXCLUDED.score,
				genres = EXCLUDED.genres,
				popularity = EXCLUDED.popularity,
				media_type = EXCLUDED.media_type,
				status = EXCLUDED.status,
				image_url = EXCLUDED.image_url`,
			t.ID, string(t.Kind), t.Name, nullable(t.EnglishName), nullable(t.Synopsis),
			t.Score, genresOrEmpty(t.Genres), t.Popularity,
			nullable(t.MediaType), nullable(t.Status), nullable(t.ImageURL),
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	var affected int
	for i := range titles {
		tag, err := results.Exec()
		if err != nil {
			return affected, fmt.Errorf("upsert title %s %d: %w", titles[i].Kind, titles[i].ID, err)
		}
		affected += int(tag.RowsAffected())
	}
	return affected, nil
}

func scanTitle(row pgx.CollectableRow) (title.Title, error) {
	var t title.Title
	var kind string
	var english, synopsis, mediaType, status, imageURL *string
	err := row.Scan(
		&t.ID, &kind, &t.Name, &english, &synopsis, &t.Score,
		&t.Genres, &t.Popularity, &mediaType, &status, &imageURL,
	)
	if err != nil {
		return title.Title{}, err //nolint:wrapcheck // wrapped by Load
	}
	t.Kind = title.Kind(kind)
	t.EnglishName = deref(english)
	t.Synopsis = deref(synopsis)
	t.MediaType = deref(mediaType)
	t.Status = deref(status)
	t.ImageURL = deref(imageURL)
	return t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func genresOrEmpty(g []string) []string {
	if g == nil {
		return []string{}
	}
	return g
}
