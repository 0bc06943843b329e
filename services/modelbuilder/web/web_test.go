// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain/domaintest"
)

func cardStrings(t *testing.T, objs []*Object) []string {
	t.Helper()
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		id, err := o.CardID()
		require.NoError(t, err)
		out = append(out, id.String())
	}
	return out
}

func mustObject(t *testing.T, m *Model, id string) *Object {
	t.Helper()
	o, err := m.Object(id)
	require.NoError(t, err)
	return o
}

func TestCardID(t *testing.T) {
	root := NewCardID("sys-1")
	card := root.Child("up-1").Child("uj-1")

	assert.Equal(t, "sys-1__up-1__uj-1", card.String())
	assert.Equal(t, []string{"sys-1", "up-1"}, card.Ancestors())
	assert.False(t, card.IsZero())
	assert.True(t, CardID{}.IsZero())

	parsed, err := ParseCardID(card.String())
	require.NoError(t, err)
	assert.Equal(t, card, parsed)

	parent, ok := card.Parent()
	require.True(t, ok)
	assert.Equal(t, root.Child("up-1"), parent)

	_, err = ParseCardID("a____b")
	assert.ErrorIs(t, err, ErrInvalidCardID)
}

func TestCardID_Structural(t *testing.T) {
	t.Run("ancestry is part of identity", func(t *testing.T) {
		joined := NewCardID("a__b").Child("x")
		nested := NewCardID("a").Child("b").Child("x")
		assert.NotEqual(t, nested, joined)
		assert.Equal(t, []string{"a__b"}, joined.Ancestors())
		assert.Equal(t, []string{"a", "b"}, nested.Ancestors())
	})

	t.Run("leading underscore round-trips", func(t *testing.T) {
		card := NewCardID("job").Child("_x")
		assert.Equal(t, "job___x", card.String())
		parsed, err := ParseCardID(card.String())
		require.NoError(t, err)
		assert.Equal(t, card, parsed)
	})

	t.Run("segments must be node ids", func(t *testing.T) {
		for _, s := range []string{"uj-1__step-1_", "_", "a___"} {
			_, err := ParseCardID(s)
			assert.ErrorIs(t, err, ErrInvalidCardID, s)
		}
	})

	t.Run("every mirror card round-trips", func(t *testing.T) {
		m := NewModel(domaintest.StandardModel(t))
		for _, n := range m.Graph().Nodes() {
			set, err := mustObject(t, m, n.ID()).MirrorSet()
			require.NoError(t, err)
			for _, o := range set {
				id, err := o.CardID()
				require.NoError(t, err)
				parsed, err := ParseCardID(id.String())
				require.NoError(t, err)
				assert.Equal(t, id, parsed)
				got, err := m.Card(parsed)
				require.NoError(t, err, id.String())
				assert.Equal(t, n.ID(), got.ID())
			}
		}
	})
}

func TestMirrorSet_NoListContainers(t *testing.T) {
	m := NewModel(domaintest.StandardModel(t))

	for _, id := range []string{"sys-1", "uj-1", "srv-1", "storage-1"} {
		o := mustObject(t, m, id)
		set, err := o.MirrorSet()
		require.NoError(t, err)
		require.Len(t, set, 1, id)
		assert.Same(t, o, set[0], "root projection is its own single card")
	}
}

func TestMirrorSet_MultipliesThroughContainers(t *testing.T) {
	g := domaintest.StandardModel(t)
	m := NewModel(g)

	shared := mustObject(t, m, "job-shared")
	set, err := shared.MirrorSet()
	require.NoError(t, err)
	assert.Equal(t, []string{"uj-1__step-1__job-shared", "uj-1__step-2__job-shared"}, cardStrings(t, set))

	// A second journey reusing step-1 gives step-1 two cards, and
	// job-shared one card per card of each of its containers.
	domaintest.Add(t, g, domain.ClassUsageJourney, "uj-2", domain.ParsedAttributes{"uj_steps": []string{"step-1"}})
	m.Invalidate()

	set, err = shared.MirrorSet()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"uj-1__step-1__job-shared",
		"uj-2__step-1__job-shared",
		"uj-1__step-2__job-shared",
	}, cardStrings(t, set))

	step1, err := mustObject(t, m, "step-1").MirrorSet()
	require.NoError(t, err)
	step2, err := mustObject(t, m, "step-2").MirrorSet()
	require.NoError(t, err)
	assert.Len(t, set, len(step1)+len(step2))
}

func TestMirrorSet_ContainmentCycle(t *testing.T) {
	s := domain.NewSchema().MustRegister(domain.Class{Name: "Folder", Attrs: []domain.AttrSpec{
		{Name: "folders", Kind: domain.KindList, ElemClass: "Folder"},
	}})
	g := domain.NewGraph(s)
	a, err := g.NewNode("Folder", "a")
	require.NoError(t, err)
	b, err := g.NewNode("Folder", "b")
	require.NoError(t, err)
	require.NoError(t, g.SetList(a, "folders", []*domain.Node{b}))
	require.NoError(t, g.SetList(b, "folders", []*domain.Node{a}))

	m := NewModel(g)
	_, err = mustObject(t, m, "a").MirrorSet()
	assert.ErrorIs(t, err, ErrContainmentCycle)
}

func TestObject_CardID(t *testing.T) {
	m := NewModel(domaintest.StandardModel(t))

	step := mustObject(t, m, "step-1")
	_, err := step.CardID()
	assert.ErrorIs(t, err, ErrPermission, "list-contained node has no root card")

	uj := mustObject(t, m, "uj-1")
	id, err := uj.CardID()
	require.NoError(t, err)
	assert.Equal(t, "uj-1", id.String())

	children := uj.AccordionChildren()
	assert.Equal(t, []string{"uj-1__step-1", "uj-1__step-2"}, cardStrings(t, children))
	assert.Same(t, uj, children[0].Parent())
}

func TestObject_Equal(t *testing.T) {
	m := NewModel(domaintest.StandardModel(t))
	uj := mustObject(t, m, "uj-1")

	a := uj.AccordionChildren()[0]
	b := uj.AccordionChildren()[0]
	assert.NotSame(t, a, b)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(uj.AccordionChildren()[1]))

	step := mustObject(t, m, "step-1")
	assert.True(t, step.Equal(mustObject(t, m, "step-1")))
	assert.False(t, step.Equal(a), "card-less root never equals a card")
}

func TestObject_GetAndSet(t *testing.T) {
	m := NewModel(domaintest.StandardModel(t))
	uj := mustObject(t, m, "uj-1")

	t.Run("list values are contextual projections", func(t *testing.T) {
		v, err := uj.Get(domain.AttrUJSteps)
		require.NoError(t, err)
		steps, ok := v.([]*Object)
		require.True(t, ok)
		assert.Equal(t, []string{"uj-1__step-1", "uj-1__step-2"}, cardStrings(t, steps))
	})

	t.Run("reference values are root projections", func(t *testing.T) {
		job := mustObject(t, m, "job-1")
		v, err := job.Get("server")
		require.NoError(t, err)
		assert.Same(t, mustObject(t, m, "srv-1"), v)
	})

	t.Run("registered resolvers", func(t *testing.T) {
		v, err := mustObject(t, m, "job-shared").Get("mirror_count")
		require.NoError(t, err)
		assert.Equal(t, 2, v)

		v, err = uj.Get("class_label")
		require.NoError(t, err)
		assert.Equal(t, "Usage journey", v)

		v, err = uj.Get("card_id")
		require.NoError(t, err)
		assert.Equal(t, "uj-1", v)
	})

	t.Run("unknown attribute", func(t *testing.T) {
		_, err := uj.Get("colour")
		assert.ErrorIs(t, err, domain.ErrUnknownAttribute)
	})

	t.Run("projections cannot be stored", func(t *testing.T) {
		steps := uj.AccordionChildren()
		err := uj.Set(domain.AttrUJSteps, steps)
		assert.ErrorIs(t, err, ErrPermission)
		err = uj.Set(domain.AttrUJSteps, []any{steps[0]})
		assert.ErrorIs(t, err, ErrPermission)
	})

	t.Run("ids can be stored", func(t *testing.T) {
		require.NoError(t, uj.Set(domain.AttrUJSteps, []string{"step-2"}))
		assert.Equal(t, []string{"step-2"}, uj.ListIDs(domain.AttrUJSteps))
	})
}

func TestModel_Card(t *testing.T) {
	m := NewModel(domaintest.StandardModel(t))

	id, err := ParseCardID("uj-1__step-2__job-shared")
	require.NoError(t, err)
	o, err := m.Card(id)
	require.NoError(t, err)
	assert.Equal(t, "job-shared", o.ID())
	got, err := o.CardID()
	require.NoError(t, err)
	assert.Equal(t, id, got)

	id, err = ParseCardID("uj-1__step-2__job-1")
	require.NoError(t, err)
	_, err = m.Card(id)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestAccordionChildren_DuplicateEntries(t *testing.T) {
	g := domaintest.StandardModel(t)
	domaintest.Set(t, g, "step-2", domain.ParsedAttributes{
		domain.AttrJobs: []string{"job-shared", "job-1", "job-shared"},
	})
	m := NewModel(g)

	step, err := m.Card(NewCardID("uj-1").Child("step-2"))
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"uj-1__step-2__job-shared", "uj-1__step-2__job-1"},
		cardStrings(t, step.AccordionChildren()))
}

func TestAccordionExclusions(t *testing.T) {
	m := NewModel(domaintest.StandardModel(t), WithAccordionExclusions(domain.ClassUsagePattern, domain.AttrDevices))
	up := mustObject(t, m, "sys-1").AccordionChildren()[0]
	assert.Empty(t, up.AccordionChildren())

	plain := NewModel(domaintest.StandardModel(t))
	up = mustObject(t, plain, "sys-1").AccordionChildren()[0]
	assert.Equal(t, []string{"sys-1__up-1__laptop"}, cardStrings(t, up.AccordionChildren()))
}

func TestSelfDelete_Cascade(t *testing.T) {
	g := domaintest.StandardModel(t)
	m := NewModel(g)

	t.Run("contained node is refused", func(t *testing.T) {
		_, err := mustObject(t, m, "up-1").SelfDelete()
		assert.ErrorIs(t, err, domain.ErrNodeReferenced)
	})

	require.NoError(t, mustObject(t, m, "sys-1").Set(domain.AttrUsagePatterns, []string{}))

	deleted, err := mustObject(t, m, "up-1").SelfDelete()
	require.NoError(t, err)
	assert.Equal(t, []string{"up-1", "uj-1", "step-1", "job-1", "step-2", "job-shared"}, deleted)

	for _, id := range deleted {
		_, ok := g.Node(id)
		assert.False(t, ok, id)
	}
	for _, id := range []string{"sys-1", "srv-1", "storage-1", "laptop", "net-1", "country-fr"} {
		_, ok := g.Node(id)
		assert.True(t, ok, "%s is kept", id)
	}
}

func TestSelfDelete_SharedChildSurvives(t *testing.T) {
	g := domaintest.StandardModel(t)
	m := NewModel(g)
	domaintest.Add(t, g, domain.ClassUsageJourney, "uj-2", domain.ParsedAttributes{"uj_steps": []string{"step-2"}})

	require.NoError(t, mustObject(t, m, "sys-1").Set(domain.AttrUsagePatterns, []string{}))
	deleted, err := mustObject(t, m, "up-1").SelfDelete()
	require.NoError(t, err)

	assert.Equal(t, []string{"up-1", "uj-1", "step-1", "job-1"}, deleted)
	for _, id := range []string{"step-2", "job-shared"} {
		_, ok := g.Node(id)
		assert.True(t, ok, "%s still has a container", id)
	}
}
