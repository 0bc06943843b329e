// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package edit applies attribute edits to projected objects and cleans up
// the children an edit orphans.
//
// An edit is observed through every card of the edited object: child
// cards are listed before and after the change, the difference is
// returned as one MirrorDelta per card, and any removed child left with
// no container at all is deleted together with its own orphans.
package edit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/web"
)

// Applier performs the domain mutation of an edit.
type Applier interface {
	Apply(card *web.Object, attrs domain.ParsedAttributes) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(card *web.Object, attrs domain.ParsedAttributes) error

// Apply implements Applier.
func (f ApplierFunc) Apply(card *web.Object, attrs domain.ParsedAttributes) error {
	return f(card, attrs)
}

// DefaultApplier coerces and stores attributes through the domain layer.
var DefaultApplier Applier = ApplierFunc(func(card *web.Object, attrs domain.ParsedAttributes) error {
	return card.ApplyAttributes(attrs)
})

// SummaryRecomputer refreshes derived values after a cascade delete.
type SummaryRecomputer interface {
	RecomputeSummary(ctx context.Context, m *web.Model) error
}

// SummaryFunc adapts a function to SummaryRecomputer.
type SummaryFunc func(ctx context.Context, m *web.Model) error

// RecomputeSummary implements SummaryRecomputer.
func (f SummaryFunc) RecomputeSummary(ctx context.Context, m *web.Model) error {
	return f(ctx, m)
}

// Option configures a Service.
type Option func(*Service)

// WithApplier replaces DefaultApplier.
func WithApplier(a Applier) Option {
	return func(s *Service) { s.applier = a }
}

// WithSummary sets the collaborator notified after cascade deletes.
func WithSummary(r SummaryRecomputer) Option {
	return func(s *Service) { s.summary = r }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service runs edits.
//
// Thread Safety: Stateless apart from its collaborators. The model passed
// to Edit must not be used concurrently.
type Service struct {
	applier Applier
	summary SummaryRecomputer
	logger  *slog.Logger
}

// NewService creates an edit service.
func NewService(opts ...Option) *Service {
	s := &Service{
		applier: DefaultApplier,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is the outcome of an edit.
type Result struct {
	// ObjectID is the edited object.
	ObjectID string `json:"object_id"`

	// Mirrors holds one delta per card of the edited object, in mirror
	// set order.
	Mirrors []MirrorDelta `json:"mirrors"`

	// Deleted lists objects removed by the orphan cleanup.
	Deleted []string `json:"deleted"`
}

// Edit applies attrs to card's object and cascades orphan deletion.
//
// Description:
//
//	Child cards of every mirror are captured, the applier runs, and
//	child cards are captured again. Removed children are checked once,
//	on the first mirror: a child with no remaining container whose class
//	is deletable when orphaned is self-deleted with its own orphans.
//	When anything was deleted the summary collaborator is notified.
//
//	If the applier fails nothing is deleted. Attributes applied before
//	the failing one stay in place.
//
// Inputs:
//
//	ctx   - Context for tracing and the summary collaborator.
//	card  - Any projection of the object to edit.
//	attrs - Parsed attribute values.
//
// Outputs:
//
//	*Result - Per-mirror deltas and deleted IDs.
//	error   - The applier's error, a mirror computation error, or a
//	          delete or summary error.
func (s *Service) Edit(ctx context.Context, card *web.Object, attrs domain.ParsedAttributes) (res *Result, err error) {
	ctx, span := startEditSpan(ctx, card.ID(), card.Class())
	defer func() {
		recordEdit(ctx, card.Class(), err == nil)
		endSpan(span, err)
	}()
	logger := s.logger.With(slog.String("object_id", card.ID()), slog.String("class", card.Class()))

	mirrors, err := card.MirrorSet()
	if err != nil {
		return nil, err
	}
	if len(mirrors) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCards, card.ID())
	}
	before := make([][]web.CardID, len(mirrors))
	for i, mirror := range mirrors {
		if before[i], err = childCardIDs(mirror); err != nil {
			return nil, err
		}
	}

	if err = s.applier.Apply(card, attrs); err != nil {
		logger.Warn("edit rejected", slog.String("error", err.Error()))
		return nil, err
	}
	model := card.Model()
	model.Invalidate()

	res = &Result{ObjectID: card.ID(), Deleted: []string{}}
	for i, mirror := range mirrors {
		after, cerr := childCardIDs(mirror)
		if cerr != nil {
			err = cerr
			return nil, err
		}
		id, cerr := mirror.CardID()
		if cerr != nil {
			err = cerr
			return nil, err
		}
		res.Mirrors = append(res.Mirrors, diffChildren(id, before[i], after))
	}

	for _, removed := range res.Mirrors[0].Removed {
		child, lookupErr := model.Object(removed.NodeID)
		if lookupErr != nil {
			continue
		}
		if child.ContainerCount() > 0 || !model.Schema().Deletable(child.Class()) {
			continue
		}
		deleted, derr := child.SelfDelete()
		res.Deleted = append(res.Deleted, deleted...)
		if derr != nil {
			err = derr
			return nil, err
		}
	}
	recordCascade(ctx, len(res.Deleted), len(mirrors))

	if len(res.Deleted) > 0 {
		logger.Info("orphans deleted after edit", slog.Any("deleted", res.Deleted))
		if s.summary != nil {
			if err = s.summary.RecomputeSummary(ctx, model); err != nil {
				return nil, fmt.Errorf("recompute summary: %w", err)
			}
		}
	}
	return res, nil
}
