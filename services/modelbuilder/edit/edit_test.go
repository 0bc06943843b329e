// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package edit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain/domaintest"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/web"
)

type countingSummary struct {
	calls int
}

func (c *countingSummary) RecomputeSummary(_ context.Context, _ *web.Model) error {
	c.calls++
	return nil
}

func setup(t *testing.T) (*domain.Graph, *web.Model) {
	t.Helper()
	g := domaintest.StandardModel(t)
	return g, web.NewModel(g)
}

func object(t *testing.T, m *web.Model, id string) *web.Object {
	t.Helper()
	o, err := m.Object(id)
	require.NoError(t, err)
	return o
}

func card(t *testing.T, s string) web.CardID {
	t.Helper()
	id, err := web.ParseCardID(s)
	require.NoError(t, err)
	return id
}

func TestEdit_RemovingSoleContainerDeletesChild(t *testing.T) {
	g, m := setup(t)
	summary := &countingSummary{}
	svc := NewService(WithSummary(summary))

	res, err := svc.Edit(context.Background(), object(t, m, "step-1"),
		domain.ParsedAttributes{domain.AttrJobs: []string{"job-shared"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"job-1"}, res.Deleted)
	_, ok := g.Node("job-1")
	assert.False(t, ok)
	assert.Equal(t, 1, summary.calls)

	require.Len(t, res.Mirrors, 1)
	d := res.Mirrors[0]
	assert.Equal(t, card(t, "uj-1__step-1"), d.Card)
	assert.Equal(t, []web.CardID{card(t, "uj-1__step-1__job-1")}, d.Removed)
	assert.Equal(t, []web.CardID{card(t, "uj-1__step-1__job-shared")}, d.Unchanged)
	assert.Empty(t, d.Added)
	assert.False(t, d.Anchor.Prepend)
	assert.Equal(t, card(t, "uj-1__step-1__job-shared"), d.Anchor.After)
}

func TestEdit_AddingChildDeletesNothing(t *testing.T) {
	g, m := setup(t)
	domaintest.Add(t, g, domain.ClassJob, "job-3", nil)
	summary := &countingSummary{}
	svc := NewService(WithSummary(summary))

	res, err := svc.Edit(context.Background(), object(t, m, "step-1"),
		domain.ParsedAttributes{domain.AttrJobs: []string{"job-1", "job-shared", "job-3"}})
	require.NoError(t, err)

	assert.Empty(t, res.Deleted)
	assert.Zero(t, summary.calls)
	d := res.Mirrors[0]
	assert.Equal(t, []web.CardID{card(t, "uj-1__step-1__job-3")}, d.Added)
	assert.Equal(t, card(t, "uj-1__step-1__job-shared"), d.Anchor.After)
}

func TestEdit_SharedChildSurvives(t *testing.T) {
	g, m := setup(t)
	svc := NewService()

	res, err := svc.Edit(context.Background(), object(t, m, "step-2"),
		domain.ParsedAttributes{domain.AttrJobs: []string{"job-1"}})
	require.NoError(t, err)

	assert.Empty(t, res.Deleted)
	_, ok := g.Node("job-shared")
	assert.True(t, ok, "still held by step-1")

	d := res.Mirrors[0]
	assert.True(t, d.Anchor.Prepend, "nothing unchanged, added cards go first")
	assert.Equal(t, []web.CardID{card(t, "uj-1__step-2__job-1")}, d.Added)
	assert.Equal(t, []web.CardID{card(t, "uj-1__step-2__job-shared")}, d.Removed)
}

func TestEdit_DroppingDuplicateEntry(t *testing.T) {
	g, m := setup(t)
	domaintest.Set(t, g, "step-2", domain.ParsedAttributes{domain.AttrJobs: []string{"job-shared", "job-shared"}})

	res, err := NewService().Edit(context.Background(), object(t, m, "step-2"),
		domain.ParsedAttributes{domain.AttrJobs: []string{"job-shared"}})
	require.NoError(t, err)

	assert.Empty(t, res.Deleted)
	require.Len(t, res.Mirrors, 1)
	d := res.Mirrors[0]
	assert.Empty(t, d.Removed, "one card before and after")
	assert.Empty(t, d.Added)
	assert.Equal(t, []web.CardID{card(t, "uj-1__step-2__job-shared")}, d.Unchanged)
}

func TestEdit_OneDeltaPerMirror(t *testing.T) {
	g, m := setup(t)
	domaintest.Add(t, g, domain.ClassUsageJourney, "uj-2", domain.ParsedAttributes{domain.AttrUJSteps: []string{"step-1"}})
	domaintest.Add(t, g, domain.ClassJob, "job-3", nil)

	res, err := NewService().Edit(context.Background(), object(t, m, "step-1"),
		domain.ParsedAttributes{domain.AttrJobs: []string{"job-3"}})
	require.NoError(t, err)

	require.Len(t, res.Mirrors, 2)
	assert.Equal(t, card(t, "uj-1__step-1"), res.Mirrors[0].Card)
	assert.Equal(t, card(t, "uj-2__step-1"), res.Mirrors[1].Card)
	assert.Equal(t, []web.CardID{card(t, "uj-2__step-1__job-3")}, res.Mirrors[1].Added)
	assert.True(t, res.Mirrors[1].Anchor.Prepend)

	assert.Equal(t, []string{"job-1"}, res.Deleted, "checked once, on the first mirror")
}

func TestEdit_NonDeletableChildIsKept(t *testing.T) {
	g, m := setup(t)

	res, err := NewService().Edit(context.Background(), object(t, m, "up-1"),
		domain.ParsedAttributes{domain.AttrDevices: []string{}})
	require.NoError(t, err)

	assert.Empty(t, res.Deleted)
	_, ok := g.Node("laptop")
	assert.True(t, ok)
}

func TestEdit_ApplierFailureDeletesNothing(t *testing.T) {
	g, m := setup(t)
	capacity := errors.New("capacity exceeded")
	summary := &countingSummary{}
	failing := ApplierFunc(func(c *web.Object, attrs domain.ParsedAttributes) error {
		if err := c.ApplyAttributes(attrs); err != nil {
			return err
		}
		return capacity
	})
	svc := NewService(WithApplier(failing), WithSummary(summary))

	_, err := svc.Edit(context.Background(), object(t, m, "step-1"),
		domain.ParsedAttributes{domain.AttrJobs: []string{"job-shared"}})
	assert.ErrorIs(t, err, capacity)

	job, ok := g.Node("job-1")
	require.True(t, ok, "no deletion after a failed apply")
	assert.Empty(t, job.Containers(), "partial state is not rolled back")
	assert.Zero(t, summary.calls)
}

func TestEdit_InvalidValue(t *testing.T) {
	_, m := setup(t)
	_, err := NewService().Edit(context.Background(), object(t, m, "job-1"),
		domain.ParsedAttributes{"data_stored": "plenty"})
	assert.ErrorIs(t, err, domain.ErrInvalidValue)
}

func TestDiffChildren_KeepsOrder(t *testing.T) {
	root := web.NewCardID("p")
	a, b, c, d := root.Child("a"), root.Child("b"), root.Child("c"), root.Child("d")

	delta := diffChildren(root, []web.CardID{a, b, c}, []web.CardID{c, d, a})
	assert.Equal(t, []web.CardID{b}, delta.Removed)
	assert.Equal(t, []web.CardID{d}, delta.Added)
	assert.Equal(t, []web.CardID{c, a}, delta.Unchanged)
	assert.Equal(t, a, delta.Anchor.After)
}
