// Package lists manages user list entries directly, outside chat.
package lists

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/domain"
	"github.com/kailas-cloud/animedex/internal/domain/list"
	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// AddRequest puts a title on a user's list. Status defaults to list.Planned.
type AddRequest struct {
	Kind       title.Kind
	TitleID    int64
	Status     list.Status
	Rating     *float64
	IsFavorite bool
}

// Patch changes an existing entry. Nil fields are left untouched.
type Patch struct {
	Status      *list.Status
	Rating      *float64
	ClearRating bool
	IsFavorite  *bool
}

func (p Patch) empty() bool {
	return p.Status == nil && p.Rating == nil && !p.ClearRating && p.IsFavorite == nil
}

// Stats summarises one user's list.
type Stats struct {
	Total     int
	ByStatus  map[list.Status]int
	Favorites int
	Rated     int
	// AverageRating is nil when nothing is rated.
	AverageRating *float64
}

// Service reads and writes user lists. Every write reads the current entry
// inside the same transaction.
type Service struct {
	store   list.Store
	catalog Catalog
	logger  *zap.Logger
}

// New creates a list service.
func New(store list.Store, catalog Catalog, logger *zap.Logger) *Service {
	return &Service{store: store, catalog: catalog, logger: logger}
}

// ListByUser returns a user's entries, best rated first. An empty kind returns every kind.
func (s *Service) ListByUser(ctx context.Context, userID string, kind title.Kind) ([]list.Entry, error) {
	entries, err := s.store.ListByUser(ctx, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", userID, err)
	}
	return entries, nil
}

// Add inserts or replaces the entry for a catalog title. domain.ErrNotFound
// when the title is not in the catalog.
func (s *Service) Add(ctx context.Context, userID string, req AddRequest) (list.Entry, error) {
	if err := validateKey(userID, req.Kind, req.TitleID); err != nil {
		return list.Entry{}, err
	}
	if req.Status == "" {
		req.Status = list.Planned
	}
	if !req.Status.IsValid() {
		return list.Entry{}, fmt.Errorf("unknown status %q: %w", req.Status, domain.ErrValidation)
	}
	if err := validateRating(req.Rating); err != nil {
		return list.Entry{}, err
	}

	t, err := s.catalog.ByID(req.Kind, req.TitleID)
	if err != nil {
		return list.Entry{}, fmt.Errorf("add to list: %w", err)
	}

	key := list.Key{UserID: userID, TitleID: req.TitleID, Kind: req.Kind}
	var saved list.Entry
	err = s.store.InTx(ctx, func(tx list.Tx) error {
		e, ok, err := tx.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("read entry: %w", err)
		}
		if !ok {
			e = list.Entry{Key: key}
		}
		e.Status = req.Status
		e.Rating = req.Rating
		e.IsFavorite = req.IsFavorite
		e.TitleName = t.Name
		saved, err = tx.Upsert(ctx, e)
		return err
	})
	if err != nil {
		s.logger.Error("List add not committed",
			zap.String("kind", string(req.Kind)), zap.Int64("title_id", req.TitleID), zap.Error(err))
		return list.Entry{}, fmt.Errorf("add %s %d: %w", req.Kind, req.TitleID, err)
	}
	return saved, nil
}

// Update applies p to an existing entry. domain.ErrNotFound when the entry is absent.
func (s *Service) Update(ctx context.Context, key list.Key, p Patch) (list.Entry, error) {
	if err := validateKey(key.UserID, key.Kind, key.TitleID); err != nil {
		return list.Entry{}, err
	}
	if p.empty() {
		return list.Entry{}, fmt.Errorf("nothing to update: %w", domain.ErrValidation)
	}
	if p.Status != nil && !p.Status.IsValid() {
		return list.Entry{}, fmt.Errorf("unknown status %q: %w", *p.Status, domain.ErrValidation)
	}
	if p.Rating != nil && p.ClearRating {
		return list.Entry{}, fmt.Errorf("rating set and cleared: %w", domain.ErrValidation)
	}
	if err := validateRating(p.Rating); err != nil {
		return list.Entry{}, err
	}

	var (
		saved   list.Entry
		missing bool
	)
	err := s.store.InTx(ctx, func(tx list.Tx) error {
		e, ok, err := tx.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("read entry: %w", err)
		}
		if !ok {
			missing = true
			return nil
		}
		if p.Status != nil {
			e.Status = *p.Status
		}
		if p.Rating != nil {
			e.Rating = p.Rating
		}
		if p.ClearRating {
			e.Rating = nil
		}
		if p.IsFavorite != nil {
			e.IsFavorite = *p.IsFavorite
		}
		saved, err = tx.Upsert(ctx, e)
		return err
	})
	if err != nil {
		return list.Entry{}, fmt.Errorf("update %s %d: %w", key.Kind, key.TitleID, err)
	}
	if missing {
		return list.Entry{}, fmt.Errorf("%s %d on list of %s: %w", key.Kind, key.TitleID, key.UserID, domain.ErrNotFound)
	}
	return saved, nil
}

// Remove deletes an entry. domain.ErrNotFound when nothing was removed.
func (s *Service) Remove(ctx context.Context, key list.Key) error {
	if err := validateKey(key.UserID, key.Kind, key.TitleID); err != nil {
		return err
	}

	var removed bool
	err := s.store.InTx(ctx, func(tx list.Tx) error {
		var err error
		removed, err = tx.Delete(ctx, key)
		return err
	})
	if err != nil {
		return fmt.Errorf("remove %s %d: %w", key.Kind, key.TitleID, err)
	}
	if !removed {
		return fmt.Errorf("%s %d on list of %s: %w", key.Kind, key.TitleID, key.UserID, domain.ErrNotFound)
	}
	return nil
}

// Stats counts a user's entries. An empty kind covers every kind.
func (s *Service) Stats(ctx context.Context, userID string, kind title.Kind) (Stats, error) {
	if strings.TrimSpace(userID) == "" {
		return Stats{}, fmt.Errorf("empty user: %w", domain.ErrValidation)
	}
	if kind != "" && !kind.IsValid() {
		return Stats{}, fmt.Errorf("invalid kind %q: %w", kind, domain.ErrValidation)
	}

	entries, err := s.store.ListByUser(ctx, userID, kind)
	if err != nil {
		return Stats{}, fmt.Errorf("stats of %s: %w", userID, err)
	}
	return summarize(entries), nil
}

func summarize(entries []list.Entry) Stats {
	st := Stats{Total: len(entries), ByStatus: map[list.Status]int{}}
	var sum float64
	for i := range entries {
		e := &entries[i]
		st.ByStatus[e.Status]++
		if e.IsFavorite {
			st.Favorites++
		}
		if e.Rating != nil {
			st.Rated++
			sum += *e.Rating
		}
	}
	if st.Rated > 0 {
		avg := math.Round(sum/float64(st.Rated)*100) / 100
		st.AverageRating = &avg
	}
	return st
}

func validateKey(userID string, kind title.Kind, id int64) error {
	var errs []error
	if strings.TrimSpace(userID) == "" {
		errs = append(errs, errors.New("empty user"))
	}
	if !kind.IsValid() {
		errs = append(errs, fmt.Errorf("invalid kind %q", kind))
	}
	if id <= 0 {
		errs = append(errs, errors.New("title id must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrValidation, errors.Join(errs...))
	}
	return nil
}

// validateRating rejects out-of-range ratings; only chat clamps.
func validateRating(r *float64) error {
	if r == nil {
		return nil
	}
	if math.IsNaN(*r) || *r < list.MinRating || *r > list.MaxRating {
		return fmt.Errorf("rating must be between %g and %g: %w", list.MinRating, list.MaxRating, domain.ErrValidation)
	}
	return nil
}
