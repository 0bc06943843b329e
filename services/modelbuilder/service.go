// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package modelbuilder is the HTTP service of the model builder: session
// lifecycle over the persistence layer, and the edit, link, delete,
// import, validation and daily series operations of one session.
package modelbuilder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/config"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/edit"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/importer"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/storage"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/telemetry"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/timeseries"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/validation"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/web"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.1.0"

const sessionKeyPrefix = "session:"

// DailyExporter receives daily series. *timeseries.InfluxExporter
// implements it.
type DailyExporter interface {
	Export(ctx context.Context, name string, d timeseries.DailySeries) error
}

// Option configures a Service.
type Option func(*Service)

// WithExporter enables ExportDaily.
func WithExporter(e DailyExporter) Option {
	return func(s *Service) { s.exporter = e }
}

// WithMetrics records session instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithSchema replaces domain.StandardSchema.
func WithSchema(schema *domain.Schema) Option {
	return func(s *Service) { s.schema = schema }
}

// Service owns the sessions of the model builder.
//
// Description:
//
//	A session is one serialized graph in the store. Every operation loads
//	the graph, runs against a fresh projection model, and, for mutations,
//	recomputes, checks the payload ceiling and saves. A failed mutation is
//	never saved, so partial attribute application does not leak into the
//	stored session.
//
// Thread Safety: Safe for concurrent use. Requests on one session are
// serialized by a per-session mutex; distinct sessions run in parallel.
type Service struct {
	store    *storage.Store
	schema   *domain.Schema
	editor   *edit.Service
	exporter DailyExporter
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	limitsMu sync.RWMutex
	limits   config.LimitsConfig

	locks    *sessionLocks
	limiters sync.Map // session ID -> *rate.Limiter, existing sessions only
}

// NewService creates a service over store.
func NewService(store *storage.Store, limits config.LimitsConfig, opts ...Option) *Service {
	s := &Service{
		store:  store,
		schema: domain.StandardSchema(),
		limits: limits,
		logger: slog.Default(),
		locks:  newSessionLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.editor = edit.NewService(
		edit.WithSummary(edit.SummaryFunc(recomputeSummary)),
		edit.WithLogger(s.logger),
	)
	return s
}

// recomputeSummary refreshes the calculated attributes of everything the
// system root reaches after an orphan deletion.
func recomputeSummary(_ context.Context, m *web.Model) error {
	root, err := m.Graph().Root()
	if errors.Is(err, domain.ErrNoRoot) {
		return nil
	}
	if err != nil {
		return err
	}
	return m.Graph().FinishInitialization(root)
}

// Limits returns the limits currently in effect.
func (s *Service) Limits() config.LimitsConfig {
	s.limitsMu.RLock()
	defer s.limitsMu.RUnlock()
	return s.limits
}

// ApplyConfig swaps the limits in effect. Existing rate limiters are
// retuned in place.
func (s *Service) ApplyConfig(limits config.LimitsConfig) {
	s.limitsMu.Lock()
	s.limits = limits
	s.limitsMu.Unlock()

	s.limiters.Range(func(_, v any) bool {
		l := v.(*rate.Limiter)
		l.SetLimit(perMinute(limits.ImportsPerMinute))
		l.SetBurst(limits.ImportBurst)
		return true
	})
	s.logger.Info("limits updated",
		slog.Float64("max_payload_mb", limits.MaxPayloadMB),
		slog.Int("rounding_depth", limits.RoundingDepth),
		slog.Float64("imports_per_minute", limits.ImportsPerMinute))
}

func perMinute(n float64) rate.Limit {
	if n <= 0 {
		return rate.Inf
	}
	return rate.Limit(n / 60)
}

// allowImport charges the import limiter of a session. Callers check the
// session exists first so that unknown IDs never get a limiter.
func (s *Service) allowImport(sessionID string) bool {
	limits := s.Limits()
	if limits.ImportsPerMinute <= 0 {
		return true
	}
	v, _ := s.limiters.LoadOrStore(sessionID, rate.NewLimiter(perMinute(limits.ImportsPerMinute), limits.ImportBurst))
	return v.(*rate.Limiter).Allow()
}

func (s *Service) lock(sessionID string) func() {
	return s.locks.acquire(sessionID)
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

// load decodes the stored graph of a session and computes it.
func (s *Service) load(ctx context.Context, sessionID string) (*web.Model, error) {
	data, err := s.store.Get(ctx, sessionKey(sessionID))
	if errors.Is(err, storage.ErrNotFound) {
		s.limiters.Delete(sessionID)
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	g, _, err := domain.Deserialize(s.schema, data)
	if err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return web.NewModel(g), nil
}

// save recomputes g and persists it if it fits under the ceiling.
func (s *Service) save(ctx context.Context, sessionID string, g *domain.Graph) (importer.Measurement, error) {
	if err := g.ComputeAll(); err != nil {
		return importer.Measurement{}, fmt.Errorf("compute session %s: %w", sessionID, err)
	}
	raw, meas, err := importer.CheckSize(g, s.Limits().MaxPayloadMB, nil)
	if err != nil {
		s.recordSave(ctx, "too_large", meas.SizeMB)
		return meas, err
	}
	if err := s.store.Save(ctx, sessionKey(sessionID), raw); err != nil {
		s.recordSave(ctx, "error", meas.SizeMB)
		return meas, fmt.Errorf("save session %s: %w", sessionID, err)
	}
	s.recordSave(ctx, "ok", meas.SizeMB)
	return meas, nil
}

func (s *Service) recordSave(ctx context.Context, status string, sizeMB float64) {
	if s.metrics == nil {
		return
	}
	s.metrics.SavesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if status == "ok" {
		s.metrics.SaveSizeMB.Record(ctx, sizeMB)
	}
}

func (s *Service) recordCreated(ctx context.Context, origin string) {
	if s.metrics == nil {
		return
	}
	s.metrics.SessionsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("origin", origin)))
	s.metrics.SessionsActive.Add(ctx, 1)
}

// read runs fn on a loaded session without saving.
func (s *Service) read(ctx context.Context, sessionID string, fn func(m *web.Model) error) error {
	unlock := s.lock(sessionID)
	defer unlock()
	m, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	return fn(m)
}

// mutate runs fn on a loaded session and saves the result when fn
// succeeds.
func (s *Service) mutate(ctx context.Context, sessionID string, fn func(m *web.Model) error) error {
	unlock := s.lock(sessionID)
	defer unlock()
	m, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := fn(m); err != nil {
		return err
	}
	_, err = s.save(ctx, sessionID, m.Graph())
	return err
}

// CreateSession stores a new session holding only a system root.
func (s *Service) CreateSession(ctx context.Context, name string) (*SessionResponse, error) {
	if name == "" {
		name = "System"
	}
	g := domain.NewGraph(s.schema)
	root, err := g.NewNode(domain.ClassSystem, "")
	if err != nil {
		return nil, err
	}
	if err := domain.ApplyAttributes(g, root, domain.ParsedAttributes{"name": name}); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	unlock := s.lock(id)
	defer unlock()
	meas, err := s.save(ctx, id, g)
	if err != nil {
		return nil, err
	}
	s.recordCreated(ctx, "empty")
	s.logger.Info("session created", slog.String("session_id", id))
	return &SessionResponse{SessionID: id, SizeMB: meas.SizeMB, Objects: g.Len()}, nil
}

// DeleteSession removes a session from every tier.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	unlock := s.lock(sessionID)
	defer unlock()
	if _, err := s.store.Get(ctx, sessionKey(sessionID)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return err
	}
	if err := s.store.Delete(ctx, sessionKey(sessionID)); err != nil {
		return err
	}
	s.limiters.Delete(sessionID)
	if s.metrics != nil {
		s.metrics.SessionsActive.Add(ctx, -1)
	}
	s.logger.Info("session deleted", slog.String("session_id", sessionID))
	return nil
}

// Import replaces the content of a session with a decoded document.
//
// Description:
//
//	Runs the progressive import pipeline with the current ceiling. The
//	serialized output is stored as is; it is recomputed on the next load.
//	The structural validation report is returned alongside; a model that
//	cannot be computed is still imported so it can be fixed.
//
// Inputs:
//
//	ctx       - Cancels the import between nodes.
//	sessionID - An existing session.
//	data      - The document.
//	progress  - Optional progress callback, called on this goroutine.
//
// Outputs:
//
//	*ImportResponse - Size, node count and validation report.
//	error - ErrRateLimited, ErrSessionNotFound, a decode error, or an
//	        importer.SizeLimitError.
func (s *Service) Import(ctx context.Context, sessionID string, data []byte, progress importer.ProgressFunc) (*ImportResponse, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	if _, err := s.store.Get(ctx, sessionKey(sessionID)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.limiters.Delete(sessionID)
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, err
	}
	if !s.allowImport(sessionID) {
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, sessionID)
	}

	logger := s.logger.With(slog.String("session_id", sessionID))
	im := importer.New(s.schema, importer.Config{MaxPayloadMB: s.Limits().MaxPayloadMB},
		importer.WithProgress(progress),
		importer.WithLogger(logger),
	)
	res, err := im.Import(ctx, data)
	if err != nil {
		return nil, err
	}
	raw, err := res.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode import: %w", err)
	}
	if err := s.store.Save(ctx, sessionKey(sessionID), raw); err != nil {
		s.recordSave(ctx, "error", res.TotalMB)
		return nil, fmt.Errorf("save session %s: %w", sessionID, err)
	}
	s.recordSave(ctx, "ok", res.TotalMB)

	return &ImportResponse{
		SessionID:       sessionID,
		SerializedCount: res.SerializedCount,
		TotalMB:         res.TotalMB,
		Validation:      validation.ValidateForComputation(res.Graph),
	}, nil
}

// Snapshot renders every object of a session and its accordion tree.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (*SnapshotResponse, error) {
	resp := &SnapshotResponse{SessionID: sessionID}
	err := s.read(ctx, sessionID, func(m *web.Model) error {
		resp.Objects = m.Snapshot()
		root, err := m.Graph().Root()
		if errors.Is(err, domain.ErrNoRoot) {
			return nil
		}
		if err != nil {
			return err
		}
		obj, err := m.Object(root.ID())
		if err != nil {
			return err
		}
		resp.Tree, err = buildTree(obj, map[string]bool{})
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func buildTree(o *web.Object, path map[string]bool) (*TreeNode, error) {
	if path[o.ID()] {
		return nil, fmt.Errorf("%w: through %s", web.ErrContainmentCycle, o.ID())
	}
	path[o.ID()] = true
	defer delete(path, o.ID())

	id, err := o.CardID()
	if err != nil {
		return nil, err
	}
	node := &TreeNode{CardID: id.String(), ObjectID: o.ID(), Class: o.Class(), Name: o.Name()}
	for _, child := range o.AccordionChildren() {
		sub, err := buildTree(child, path)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, sub)
	}
	return node, nil
}

// Cards returns every card of an object: its mirror set.
func (s *Service) Cards(ctx context.Context, sessionID, objectID string) (*CardsResponse, error) {
	resp := &CardsResponse{ObjectID: objectID, Cards: []CardView{}}
	err := s.read(ctx, sessionID, func(m *web.Model) error {
		obj, err := m.Object(objectID)
		if err != nil {
			return err
		}
		mirrors, err := obj.MirrorSet()
		if err != nil {
			return err
		}
		for _, mirror := range mirrors {
			view, err := cardView(mirror)
			if err != nil {
				return err
			}
			resp.Cards = append(resp.Cards, view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func cardView(o *web.Object) (CardView, error) {
	id, err := o.CardID()
	if err != nil {
		return CardView{}, err
	}
	view := CardView{
		CardID:     id.String(),
		ObjectID:   o.ID(),
		Class:      o.Class(),
		ClassLabel: o.ClassLabel(),
		Name:       o.Name(),
		Children:   []string{},
		Attributes: o.Document(true),
	}
	if parent, ok := id.Parent(); ok {
		view.ParentCard = parent.String()
	}
	for _, child := range o.AccordionChildren() {
		view.Children = append(view.Children, id.Child(child.ID()).String())
	}
	return view, nil
}

// CreateObject adds an object and, when a parent is given, links it into
// the parent's first list attribute that accepts its class.
func (s *Service) CreateObject(ctx context.Context, sessionID string, req CreateObjectRequest) (*CreateObjectResponse, error) {
	resp := &CreateObjectResponse{}
	err := s.mutate(ctx, sessionID, func(m *web.Model) error {
		g := m.Graph()
		n, err := g.NewNode(req.Class, req.ID)
		if err != nil {
			return err
		}
		resp.ObjectID = n.ID()
		obj, err := m.Object(n.ID())
		if err != nil {
			return err
		}
		if len(req.Attributes) > 0 {
			if err := obj.ApplyAttributes(domain.ParsedAttributes(req.Attributes)); err != nil {
				return err
			}
		}
		if err := g.Compute(n); err != nil {
			return err
		}
		if req.ParentID == "" {
			return nil
		}
		resp.Link, err = s.editor.LinkChild(ctx, m, req.ParentID, obj)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("object created",
		slog.String("session_id", sessionID),
		slog.String("object_id", resp.ObjectID),
		slog.String("class", req.Class))
	return resp, nil
}

// EditObject applies attributes to an object through the edit service.
// cardID, when set, must name a card of objectID.
func (s *Service) EditObject(ctx context.Context, sessionID, objectID, cardID string, attrs map[string]any) (*edit.Result, error) {
	var res *edit.Result
	err := s.mutate(ctx, sessionID, func(m *web.Model) error {
		target, err := resolveCard(m, objectID, cardID)
		if err != nil {
			return err
		}
		res, err = s.editor.Edit(ctx, target, domain.ParsedAttributes(attrs))
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func resolveCard(m *web.Model, objectID, cardID string) (*web.Object, error) {
	if cardID == "" {
		return m.Object(objectID)
	}
	id, err := web.ParseCardID(cardID)
	if err != nil {
		return nil, err
	}
	if id.NodeID != objectID {
		return nil, fmt.Errorf("%w: card %s does not render %s", web.ErrInvalidCardID, cardID, objectID)
	}
	return m.Card(id)
}

// DeleteObject removes an object on user request.
//
// Description:
//
//	The object is first unlinked from every list container through the
//	edit service, which deletes it and its orphans when its class is
//	deletable once orphaned. An object that survives (devices, servers)
//	is then deleted explicitly along with its own orphans. Objects held
//	through a reference attribute are refused with ErrObjectReferenced
//	so that the referencing object is not silently broken.
func (s *Service) DeleteObject(ctx context.Context, sessionID, objectID string) (*DeleteObjectResponse, error) {
	resp := &DeleteObjectResponse{ObjectID: objectID, Deleted: []string{}, Mirrors: []edit.MirrorDelta{}}
	err := s.mutate(ctx, sessionID, func(m *web.Model) error {
		obj, err := m.Object(objectID)
		if err != nil {
			return err
		}
		lists, refs := obj.ContainerAttrs()
		if len(refs) > 0 {
			holders := make([]string, 0, len(refs))
			for _, r := range refs {
				holders = append(holders, r.Name+"."+r.Attr)
			}
			return fmt.Errorf("%w: %s is used by %s", ErrObjectReferenced, objectID, strings.Join(holders, ", "))
		}

		seen := make(map[string]bool, len(lists))
		for _, c := range lists {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			res, err := s.editor.UnlinkChild(ctx, m, c.ID, objectID)
			if err != nil {
				return err
			}
			resp.Mirrors = append(resp.Mirrors, res.Mirrors...)
			resp.Deleted = append(resp.Deleted, res.Deleted...)
		}

		if obj.Exists() {
			deleted, err := obj.SelfDelete()
			resp.Deleted = append(resp.Deleted, deleted...)
			if err != nil {
				return err
			}
			return recomputeSummary(ctx, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("object deleted",
		slog.String("session_id", sessionID),
		slog.String("object_id", objectID),
		slog.Any("deleted", resp.Deleted))
	return resp, nil
}

// Validate reports whether the session can be computed.
func (s *Service) Validate(ctx context.Context, sessionID string) (validation.Result, error) {
	var res validation.Result
	err := s.read(ctx, sessionID, func(m *web.Model) error {
		res = validation.ValidateForComputation(m.Graph())
		return nil
	})
	return res, err
}

// Ready checks that the store answers.
func (s *Service) Ready(ctx context.Context) error {
	_, err := s.store.Get(ctx, sessionKey("readiness-probe"))
	if err == nil || errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}
