package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// importRecord is one line of a catalog dump. Field names follow the public
// MyAnimeList export; "mean" is accepted as an alias of "score".
type importRecord struct {
	ID           int64    `json:"id"`
	MalID        int64    `json:"mal_id"`
	Title        string   `json:"title"`
	TitleEnglish string   `json:"title_english"`
	Synopsis     string   `json:"synopsis"`
	Score        *float64 `json:"score"`
	Mean         *float64 `json:"mean"`
	Genres       []string `json:"genres"`
	Popularity   *int     `json:"popularity"`
	MediaType    string   `json:"media_type"`
	Status       string   `json:"status"`
	ImageURL     string   `json:"image_url"`
}

// ImportReport counts decoded and rejected lines.
type ImportReport struct {
	Decoded  int
	Rejected int
}

// Decode reads a JSON Lines catalog dump of one kind. Lines without an id or
// a title, or with a score outside [0,10], are counted as rejected and skipped.
func Decode(r io.Reader, kind title.Kind) ([]title.Title, ImportReport, error) {
	if !kind.IsValid() {
		return nil, ImportReport{}, fmt.Errorf("invalid kind %q", kind)
	}

	var (
		out []title.Title
		rep ImportReport
	)
	dec := json.NewDecoder(r)
	for {
		var rec importRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return out, rep, nil
		}
		if err != nil {
			return nil, rep, fmt.Errorf("decode record %d: %w", rep.Decoded+rep.Rejected+1, err)
		}

		t, ok := rec.toTitle(kind)
		if !ok {
			rep.Rejected++
			continue
		}
		rep.Decoded++
		out = append(out, t)
	}
}

func (r *importRecord) toTitle(kind title.Kind) (title.Title, bool) {
	id := r.ID
	if id == 0 {
		id = r.MalID
	}
	name := strings.TrimSpace(r.Title)
	if id <= 0 || name == "" {
		return title.Title{}, false
	}
	score := r.Score
	if score == nil {
		score = r.Mean
	}
	if score != nil && (*score < 0 || *score > 10) {
		return title.Title{}, false
	}

	genres := make([]string, 0, len(r.Genres))
	for _, g := range r.Genres {
		if g = strings.TrimSpace(g); g != "" {
			genres = append(genres, g)
		}
	}

	return title.Title{
		ID:          id,
		Name:        name,
		EnglishName: strings.TrimSpace(r.TitleEnglish),
		Synopsis:    strings.TrimSpace(r.Synopsis),
		Score:       score,
		Genres:      genres,
		Popularity:  r.Popularity,
		Kind:        kind,
		MediaType:   r.MediaType,
		Status:      r.Status,
		ImageURL:    r.ImageURL,
	}, true
}
