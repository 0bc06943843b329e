// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package modelbuilder

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/config"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain/domaintest"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/edit"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/importer"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/storage"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/timeseries"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/validation"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/web"
)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	store := storage.NewStore(storage.NewMemoryTier(64), nil, storage.StoreConfig{KeyPrefix: "test:"}, nil)
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store, config.Default().Limits, opts...)
}

// seedStandard stores the standard model under a fresh session ID.
func seedStandard(t *testing.T, s *Service) string {
	t.Helper()
	data, err := domaintest.StandardModel(t).Marshal(true)
	require.NoError(t, err)
	id := uuid.NewString()
	require.NoError(t, s.store.Save(context.Background(), sessionKey(id), data))
	return id
}

func objectIDs(snap *SnapshotResponse, class string) []string {
	var ids []string
	for id := range snap.Objects[class] {
		ids = append(ids, id)
	}
	return ids
}

func snapshot(t *testing.T, s *Service, id string) *SnapshotResponse {
	t.Helper()
	snap, err := s.Snapshot(context.Background(), id)
	require.NoError(t, err)
	return snap
}

func TestService_CreateSession(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	resp, err := s.CreateSession(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Objects)
	assert.Greater(t, resp.SizeMB, 0.0)

	snap := snapshot(t, s, resp.SessionID)
	require.NotNil(t, snap.Tree)
	assert.Equal(t, domain.ClassSystem, snap.Tree.Class)
	assert.Equal(t, "System", snap.Tree.Name)
	assert.Empty(t, snap.Tree.Children)
}

func TestService_UnknownSession(t *testing.T) {
	s := newTestService(t)
	_, err := s.Snapshot(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = s.DeleteSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_SnapshotTree(t *testing.T) {
	s := newTestService(t)
	id := seedStandard(t, s)

	tree := snapshot(t, s, id).Tree
	require.NotNil(t, tree)
	assert.Equal(t, "sys-1", tree.CardID)
	require.Len(t, tree.Children, 1)
	up := tree.Children[0]
	assert.Equal(t, "sys-1__up-1", up.CardID)

	// The usage journey is a reference, not a card child; devices are.
	var childIDs []string
	for _, c := range up.Children {
		childIDs = append(childIDs, c.ObjectID)
	}
	assert.Equal(t, []string{"laptop"}, childIDs)
}

func TestService_Cards(t *testing.T) {
	s := newTestService(t)
	id := seedStandard(t, s)

	resp, err := s.Cards(context.Background(), id, "laptop")
	require.NoError(t, err)
	require.Len(t, resp.Cards, 1)
	card := resp.Cards[0]
	assert.Equal(t, "sys-1__up-1__laptop", card.CardID)
	assert.Equal(t, "sys-1__up-1", card.ParentCard)
	assert.Equal(t, "laptop", card.Attributes["name"])

	_, err = s.Cards(context.Background(), id, "nope")
	assert.ErrorIs(t, err, web.ErrObjectNotFound)
}

func TestService_EditObjectCascades(t *testing.T) {
	s := newTestService(t)
	id := seedStandard(t, s)
	ctx := context.Background()

	res, err := s.EditObject(ctx, id, "step-1", "", map[string]any{"jobs": []any{"job-shared"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1"}, res.Deleted)

	snap := snapshot(t, s, id)
	assert.NotContains(t, objectIDs(snap, domain.ClassJob), "job-1")
	assert.Contains(t, objectIDs(snap, domain.ClassJob), "job-shared")
}

func TestService_FailedEditIsNotSaved(t *testing.T) {
	s := newTestService(t)
	id := seedStandard(t, s)
	ctx := context.Background()

	_, err := s.EditObject(ctx, id, "srv-1", "", map[string]any{"name": "renamed", "power": -1})
	require.ErrorIs(t, err, domain.ErrInvalidValue)

	snap := snapshot(t, s, id)
	srv := snap.Objects[domain.ClassServer]["srv-1"].(map[string]any)
	assert.Equal(t, "srv-1", srv["name"])
}

func TestService_EditObjectWithCardID(t *testing.T) {
	s := newTestService(t)
	id := seedStandard(t, s)
	ctx := context.Background()

	_, err := s.EditObject(ctx, id, "laptop", "sys-1__up-1__laptop", map[string]any{"name": "Laptop"})
	require.NoError(t, err)

	_, err = s.EditObject(ctx, id, "laptop", "sys-1__up-1", map[string]any{"name": "x"})
	assert.ErrorIs(t, err, web.ErrInvalidCardID)
}

func TestService_CreateObject(t *testing.T) {
	s := newTestService(t)
	id := seedStandard(t, s)
	ctx := context.Background()

	resp, err := s.CreateObject(ctx, id, CreateObjectRequest{
		Class:      domain.ClassJob,
		ID:         "job-new",
		ParentID:   "step-2",
		Attributes: map[string]any{"server": "srv-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "job-new", resp.ObjectID)
	require.NotNil(t, resp.Link)
	require.Len(t, resp.Link.Mirrors, 1)
	require.Len(t, resp.Link.Mirrors[0].Added, 1)
	assert.Equal(t, "job-new", resp.Link.Mirrors[0].Added[0].NodeID)

	cards, err := s.Cards(ctx, id, "job-new")
	require.NoError(t, err)
	require.Len(t, cards.Cards, 1)
	assert.Equal(t, "uj-1__step-2__job-new", cards.Cards[0].CardID)
}

func TestService_CreateObjectWithoutMatchingList(t *testing.T) {
	s := newTestService(t)
	id := seedStandard(t, s)

	_, err := s.CreateObject(context.Background(), id, CreateObjectRequest{
		Class:    domain.ClassJob,
		ID:       "job-orphan",
		ParentID: "sys-1",
	})
	require.ErrorIs(t, err, edit.ErrNoMatchingAttribute)
	assert.NotContains(t, objectIDs(snapshot(t, s, id), domain.ClassJob), "job-orphan")
}

func TestService_DeleteObject(t *testing.T) {
	tests := []struct {
		name    string
		object  string
		deleted []string
		err     error
	}{
		{"deletable step keeps shared job", "step-2", []string{"step-2"}, nil},
		{"device is deleted explicitly", "laptop", []string{"laptop"}, nil},
		{"referenced server is refused", "srv-1", nil, ErrObjectReferenced},
		{"unknown object", "ghost", nil, web.ErrObjectNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t)
			id := seedStandard(t, s)

			resp, err := s.DeleteObject(context.Background(), id, tt.object)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.deleted, resp.Deleted)

			_, err = s.Cards(context.Background(), id, tt.object)
			assert.ErrorIs(t, err, web.ErrObjectNotFound)
		})
	}
}

func TestService_Validate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	res, err := s.Validate(ctx, seedStandard(t, s))
	require.NoError(t, err)
	assert.True(t, res.OK())

	empty, err := s.CreateSession(ctx, "")
	require.NoError(t, err)
	res, err = s.Validate(ctx, empty.SessionID)
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, validation.CodeNoUsagePattern, res.Errors[0].Code)
}

func standardDocument(t *testing.T) []byte {
	t.Helper()
	data, err := domaintest.StandardModel(t).Marshal(false)
	require.NoError(t, err)
	return data
}

func TestService_Import(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	created, err := s.CreateSession(ctx, "")
	require.NoError(t, err)

	var phases []importer.Phase
	resp, err := s.Import(ctx, created.SessionID, standardDocument(t), func(p importer.Progress) {
		phases = append(phases, p.Phase)
	})
	require.NoError(t, err)
	assert.Equal(t, 12, resp.SerializedCount)
	assert.True(t, resp.Validation.OK())
	assert.Contains(t, phases, importer.PhaseDone)

	snap := snapshot(t, s, created.SessionID)
	assert.Equal(t, "sys-1", snap.Tree.ObjectID)
}

func TestService_ImportErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown session", func(t *testing.T) {
		s := newTestService(t)
		_, err := s.Import(ctx, "missing", standardDocument(t), nil)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("ceiling", func(t *testing.T) {
		s := newTestService(t)
		created, err := s.CreateSession(ctx, "Keep")
		require.NoError(t, err)

		limits := s.Limits()
		limits.MaxPayloadMB = 0.0001
		s.ApplyConfig(limits)

		_, err = s.Import(ctx, created.SessionID, standardDocument(t), nil)
		var sizeErr *importer.SizeLimitError
		require.ErrorAs(t, err, &sizeErr)
		assert.ErrorIs(t, err, importer.ErrPayloadTooLarge)

		// the previous content survives
		assert.Equal(t, "Keep", snapshot(t, s, created.SessionID).Tree.Name)
	})

	t.Run("rate limit", func(t *testing.T) {
		s := newTestService(t)
		limits := s.Limits()
		limits.ImportsPerMinute = 1
		limits.ImportBurst = 1
		s.ApplyConfig(limits)

		created, err := s.CreateSession(ctx, "")
		require.NoError(t, err)
		_, err = s.Import(ctx, created.SessionID, standardDocument(t), nil)
		require.NoError(t, err)
		_, err = s.Import(ctx, created.SessionID, standardDocument(t), nil)
		assert.ErrorIs(t, err, ErrRateLimited)
	})
}

func countLimiters(s *Service) int {
	n := 0
	s.limiters.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func TestService_SessionBookkeepingIsBounded(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	limits := s.Limits()
	limits.ImportsPerMinute = 60
	limits.ImportBurst = 5
	s.ApplyConfig(limits)

	for i := 0; i < 1000; i++ {
		_, err := s.Snapshot(ctx, uuid.NewString())
		require.ErrorIs(t, err, ErrSessionNotFound)
	}
	_, err := s.Import(ctx, uuid.NewString(), standardDocument(t), nil)
	require.ErrorIs(t, err, ErrSessionNotFound)
	assert.Zero(t, s.locks.len())
	assert.Zero(t, countLimiters(s), "unknown sessions get no limiter")

	created, err := s.CreateSession(ctx, "")
	require.NoError(t, err)
	_, err = s.Import(ctx, created.SessionID, standardDocument(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, countLimiters(s))

	require.NoError(t, s.DeleteSession(ctx, created.SessionID))
	assert.Zero(t, s.locks.len())
	assert.Zero(t, countLimiters(s))
}

func TestSessionLocks_Serializes(t *testing.T) {
	locks := newSessionLocks()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.acquire("s")
			counter++
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Zero(t, locks.len())
}

func TestService_SaveRespectsCeiling(t *testing.T) {
	s := newTestService(t)
	id := seedStandard(t, s)

	limits := s.Limits()
	limits.MaxPayloadMB = 0.0001
	s.ApplyConfig(limits)

	_, err := s.EditObject(context.Background(), id, "laptop", "", map[string]any{"name": "Laptop"})
	assert.ErrorIs(t, err, importer.ErrPayloadTooLarge)
}

func TestService_DailyTimeseries(t *testing.T) {
	s := newTestService(t)
	id := seedStandard(t, s)
	ctx := context.Background()

	resp, err := s.DailyTimeseries(ctx, id)
	require.NoError(t, err)
	require.Len(t, resp.Series, 1)
	assert.Equal(t, "up-1", resp.Series[0].ObjectID)
	assert.Equal(t, []float64{6}, resp.Series[0].Series.Values)

	_, err = s.CreateObject(ctx, id, CreateObjectRequest{
		Class:    domain.ClassUsagePattern,
		ID:       "up-2",
		ParentID: "sys-1",
		Attributes: map[string]any{
			"usage_journey": "uj-1",
			domain.AttrHourlyStarts: map[string]any{
				"start":  "2025-01-01T00:00:00Z",
				"values": []any{10, 20},
			},
		},
	})
	require.NoError(t, err)

	resp, err = s.DailyTimeseries(ctx, id)
	require.NoError(t, err)
	require.Len(t, resp.Series, 3)
	total := resp.Series[2]
	assert.Equal(t, TotalSeriesName, total.Name)
	assert.Equal(t, []float64{36}, total.Series.Values)
}

type recordingExporter struct {
	mu    sync.Mutex
	names []string
	fail  error
}

func (r *recordingExporter) Export(_ context.Context, name string, _ timeseries.DailySeries) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.names = append(r.names, name)
	return nil
}

func TestService_ExportDaily(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		s := newTestService(t)
		_, err := s.ExportDaily(ctx, seedStandard(t, s))
		assert.ErrorIs(t, err, ErrExportDisabled)
	})

	t.Run("exports every series", func(t *testing.T) {
		exp := &recordingExporter{}
		s := newTestService(t, WithExporter(exp))
		id := seedStandard(t, s)

		n, err := s.ExportDaily(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []string{id + "/up-1"}, exp.names)
	})

	t.Run("exporter failure", func(t *testing.T) {
		exp := &recordingExporter{fail: errors.New("influx down")}
		s := newTestService(t, WithExporter(exp))
		_, err := s.ExportDaily(ctx, seedStandard(t, s))
		assert.EqualError(t, err, "influx down")
	})
}

func TestService_DeleteSession(t *testing.T) {
	s := newTestService(t)
	id := seedStandard(t, s)
	ctx := context.Background()

	require.NoError(t, s.DeleteSession(ctx, id))
	_, err := s.Snapshot(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_Ready(t *testing.T) {
	assert.NoError(t, newTestService(t).Ready(context.Background()))
}
