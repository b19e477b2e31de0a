// Package action executes detected list intents against the list store.
package action

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/domain"
	domintent "github.com/kailas-cloud/animedex/internal/domain/intent"
	"github.com/kailas-cloud/animedex/internal/domain/list"
	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// Service resolves titles and mutates user lists. Every mutation reads the
// current entry inside a transaction before writing.
type Service struct {
	detector     Detector
	resolver     Resolver
	store        list.Store
	actionsTotal *prometheus.CounterVec
	logger       *zap.Logger
}

// New creates an action service. actionsTotal has labels operation and result and may be nil.
func New(
	detector Detector, resolver Resolver, store list.Store,
	actionsTotal *prometheus.CounterVec, logger *zap.Logger,
) *Service {
	return &Service{
		detector:     detector,
		resolver:     resolver,
		store:        store,
		actionsTotal: actionsTotal,
		logger:       logger,
	}
}

// DetectAndExecute runs every intent found in message, in order. A failed
// intent never stops the others. The error joins store commit failures.
func (s *Service) DetectAndExecute(ctx context.Context, userID, message string) ([]domintent.Result, error) {
	if userID == "" {
		return nil, nil
	}
	intents := s.detector.Detect(message)
	if len(intents) == 0 {
		return nil, nil
	}

	results := make([]domintent.Result, 0, len(intents))
	var errs []error
	for _, in := range intents {
		res, err := s.Execute(ctx, userID, in)
		results = append(results, res)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// Execute runs one intent. Success is set only after the store committed.
// A non-nil error always wraps domain.ErrStoreCommit.
func (s *Service) Execute(ctx context.Context, userID string, in domintent.Intent) (domintent.Result, error) {
	match, err := s.resolver.ResolveTitle(ctx, in.Kind, in.TitleQuery)
	if err != nil {
		s.logger.Warn("Title not resolved",
			zap.String("rule", in.Rule),
			zap.String("kind", string(in.Kind)),
			zap.String("ref", in.TitleQuery),
			zap.Error(err),
		)
		s.count(in, "not_found")
		return domintent.Failed(in, fmt.Sprintf("Couldn't find %s: %s", in.Kind, in.TitleQuery)), nil
	}

	key := list.Key{UserID: userID, TitleID: match.TitleID, Kind: in.Kind}
	name := match.Metadata.Title

	var (
		msg    string
		failed bool
	)
	err = s.store.InTx(ctx, func(tx list.Tx) error {
		var opErr error
		msg, failed, opErr = apply(ctx, tx, in, key, name)
		return opErr
	})
	if err != nil {
		if !errors.Is(err, domain.ErrStoreCommit) {
			err = fmt.Errorf("%w: %w", domain.ErrStoreCommit, err)
		}
		s.logger.Error("List update not committed",
			zap.String("rule", in.Rule),
			zap.Int64("title_id", match.TitleID),
			zap.Error(err),
		)
		s.count(in, "error")
		return domintent.Failed(in, fmt.Sprintf("Couldn't update your list for %s", name)),
			fmt.Errorf("%s %d: %w", in.Rule, match.TitleID, err)
	}

	if failed {
		s.logger.Warn("Action rejected",
			zap.String("rule", in.Rule),
			zap.Int64("title_id", match.TitleID),
			zap.String("message", msg),
		)
		s.count(in, "rejected")
		res := domintent.Failed(in, msg)
		id := match.TitleID
		res.TitleID, res.TitleName = &id, name
		return res, nil
	}

	s.count(in, "ok")
	return domintent.Succeeded(in, match.TitleID, name, msg), nil
}

func (s *Service) count(in domintent.Intent, res string) {
	if s.actionsTotal != nil {
		s.actionsTotal.WithLabelValues(string(in.Operation), res).Inc()
	}
}

// apply performs the read-check-upsert for one intent. failed reports a
// business rejection, which still commits the (empty) transaction.
func apply(
	ctx context.Context, tx list.Tx, in domintent.Intent, key list.Key, name string,
) (msg string, failed bool, err error) {
	existing, ok, err := tx.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("read entry: %w", err)
	}

	switch in.Operation {
	case domintent.AddOrSetStatus:
		e := existing
		if !ok {
			e = list.Entry{Key: key}
		}
		e.Status = in.Status
		e.TitleName = name
		var rating *float64
		if in.NumericArg != nil {
			r := list.ClampRating(*in.NumericArg)
			rating = &r
			e.Rating = rating
		}
		if _, err := tx.Upsert(ctx, e); err != nil {
			return "", false, fmt.Errorf("upsert entry: %w", err)
		}
		return addedMessage(in.Kind, name, in.Status, rating), false, nil

	case domintent.Rate:
		if in.NumericArg == nil {
			return "", false, fmt.Errorf("rate without rating: %w", domain.ErrValidation)
		}
		r := list.ClampRating(*in.NumericArg)
		e := existing
		if !ok {
			e = list.Entry{Key: key, Status: list.Completed}
		}
		e.Rating = &r
		e.TitleName = name
		if _, err := tx.Upsert(ctx, e); err != nil {
			return "", false, fmt.Errorf("upsert entry: %w", err)
		}
		return fmt.Sprintf("Rated %s %s/10", bold(in.Kind, name), formatRating(r)), false, nil

	case domintent.ChangeRating:
		if !ok {
			return fmt.Sprintf("%s is not in your list yet", name), true, nil
		}
		if in.NumericArg == nil {
			return "", false, fmt.Errorf("change rating without rating: %w", domain.ErrValidation)
		}
		r := list.ClampRating(*in.NumericArg)
		existing.Rating = &r
		if _, err := tx.Upsert(ctx, existing); err != nil {
			return "", false, fmt.Errorf("upsert entry: %w", err)
		}
		return fmt.Sprintf("Changed rating of %s to %s/10", bold(in.Kind, name), formatRating(r)), false, nil

	case domintent.Remove:
		removed, err := tx.Delete(ctx, key)
		if err != nil {
			return "", false, fmt.Errorf("delete entry: %w", err)
		}
		if !removed {
			return fmt.Sprintf("%s wasn't in your list", name), true, nil
		}
		return fmt.Sprintf("Removed %s from your list", bold(in.Kind, name)), false, nil
	}

	return "", false, fmt.Errorf("unknown operation %q: %w", in.Operation, domain.ErrValidation)
}

func addedMessage(kind title.Kind, name string, st list.Status, rating *float64) string {
	msg := fmt.Sprintf("Added %s to %s", bold(kind, name), st.Label(kind))
	if rating != nil {
		msg += fmt.Sprintf(" with rating %s/10", formatRating(*rating))
	}
	return msg
}

// bold renders the title in markdown bold, prefixed with "manga" for manga.
func bold(kind title.Kind, name string) string {
	if kind == title.Manga {
		return "manga **" + name + "**"
	}
	return "**" + name + "**"
}

func formatRating(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}
