// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain/domaintest"
)

// fixedMeasurer reports a fixed size per call, larger on a node's
// second and later measurements.
type fixedMeasurer struct {
	firstMB  float64
	laterMB  float64
	calls    int
	measured map[string]int
}

func (f *fixedMeasurer) Measure(v any) ([]byte, Measurement, error) {
	if f.measured == nil {
		f.measured = make(map[string]int)
	}
	f.calls++
	name := fmt.Sprint(v.(map[string]any)["name"])
	f.measured[name]++
	mb := f.firstMB
	if f.measured[name] > 1 {
		mb = f.laterMB
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, Measurement{}, err
	}
	return b, Measurement{SizeBytes: int(mb * BytesPerMB), SizeMB: mb}, nil
}

func standardDocument(t *testing.T, extra func(g *domain.Graph)) []byte {
	t.Helper()
	g := domaintest.StandardModel(t)
	if extra != nil {
		extra(g)
	}
	data, err := g.Marshal(false)
	require.NoError(t, err)
	return data
}

func TestImport_SerializesEveryNode(t *testing.T) {
	data := standardDocument(t, nil)
	var progress []Progress
	im := New(domain.StandardSchema(), DefaultConfig(), WithProgress(func(p Progress) {
		progress = append(progress, p)
	}))

	res, err := im.Import(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, res.Graph.Len(), res.SerializedCount)
	assert.Greater(t, res.TotalMB, 0.0)
	require.Contains(t, res.Output, domain.ClassUsageJourney)

	var uj map[string]any
	require.NoError(t, json.Unmarshal(res.Output[domain.ClassUsageJourney]["uj-1"], &uj))
	calc, ok := uj[domain.CalculatedKey].(map[string]any)
	require.True(t, ok, "reachable nodes carry calculated attributes")
	assert.Equal(t, 3.0, calc["job_count"])

	require.NotEmpty(t, progress)
	assert.Equal(t, PhaseDone, progress[len(progress)-1].Phase)

	for _, n := range res.Graph.Nodes() {
		assert.False(t, n.HasPendingHook(), "%s hook left installed", n.ID())
	}
}

func TestImport_HookFiresOncePerNode(t *testing.T) {
	data := standardDocument(t, nil)
	early := map[string]int{}
	im := New(domain.StandardSchema(), DefaultConfig(), WithProgress(func(p Progress) {
		if p.Phase == PhaseCompute || p.Phase == PhaseSweep {
			early[p.NodeID]++
		}
	}))

	res, err := im.Import(context.Background(), data)
	require.NoError(t, err)

	require.Len(t, early, res.Graph.Len())
	for id, count := range early {
		assert.Equal(t, 1, count, id)
	}
}

func TestImport_SweepsUnreachableNodes(t *testing.T) {
	data := standardDocument(t, func(g *domain.Graph) {
		domaintest.Add(t, g, domain.ClassJob, "orphan-job", nil)
	})
	phases := map[string]Phase{}
	im := New(domain.StandardSchema(), DefaultConfig(), WithProgress(func(p Progress) {
		if p.Phase == PhaseCompute || p.Phase == PhaseSweep {
			phases[p.NodeID] = p.Phase
		}
	}))

	res, err := im.Import(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, PhaseSweep, phases["orphan-job"])
	assert.Equal(t, PhaseCompute, phases["job-1"])
	require.Contains(t, res.Output[domain.ClassJob], "orphan-job")

	var orphan map[string]any
	require.NoError(t, json.Unmarshal(res.Output[domain.ClassJob]["orphan-job"], &orphan))
	assert.NotContains(t, orphan, domain.CalculatedKey)
}

func TestImport_AbortsAsSoonAsCeilingIsCrossed(t *testing.T) {
	data := standardDocument(t, nil)
	m := &fixedMeasurer{firstMB: 1, laterMB: 1}
	im := New(domain.StandardSchema(), Config{MaxPayloadMB: 3.5}, WithMeasurer(m))

	res, err := im.Import(context.Background(), data)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	var sle *SizeLimitError
	require.ErrorAs(t, err, &sle)
	assert.Equal(t, PhaseCompute, sle.Phase)
	assert.InDelta(t, 4.0, sle.CurrentMB, 1e-9)
	assert.Equal(t, 3.5, sle.LimitMB)
	assert.Equal(t, 4, m.calls, "no node is serialized after the one crossing the ceiling")
}

func TestImport_FinalPassRechecksCeiling(t *testing.T) {
	data := standardDocument(t, nil)
	m := &fixedMeasurer{firstMB: 0.1, laterMB: 1}
	im := New(domain.StandardSchema(), Config{MaxPayloadMB: 2}, WithMeasurer(m))

	_, err := im.Import(context.Background(), data)
	var sle *SizeLimitError
	require.ErrorAs(t, err, &sle)
	assert.Equal(t, PhaseFinal, sle.Phase)
}

func TestImport_FinalPassReplacesSizes(t *testing.T) {
	data := standardDocument(t, nil)
	m := &fixedMeasurer{firstMB: 0.5, laterMB: 0.25}
	im := New(domain.StandardSchema(), Config{MaxPayloadMB: 100}, WithMeasurer(m))

	res, err := im.Import(context.Background(), data)
	require.NoError(t, err)
	assert.InDelta(t, 0.25*float64(res.Graph.Len()), res.TotalMB, 1e-9)
}

func TestImport_WithoutRoot(t *testing.T) {
	g := domaintest.NewGraph(t)
	domaintest.Add(t, g, domain.ClassJob, "job-1", nil)
	data, err := g.Marshal(false)
	require.NoError(t, err)

	res, err := New(domain.StandardSchema(), DefaultConfig()).Import(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SerializedCount)
}

func TestImport_DecodeError(t *testing.T) {
	_, err := New(domain.StandardSchema(), DefaultConfig()).Import(context.Background(), []byte(`{"Job": 3}`))
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)
}

func TestImport_ResultMarshalRoundTrips(t *testing.T) {
	data := standardDocument(t, nil)
	res, err := New(domain.StandardSchema(), DefaultConfig()).Import(context.Background(), data)
	require.NoError(t, err)

	payload, err := res.Marshal()
	require.NoError(t, err)
	g, _, err := domain.Deserialize(domain.StandardSchema(), payload)
	require.NoError(t, err)
	assert.Equal(t, res.Graph.Len(), g.Len())

	doc, err := oj.Parse(payload)
	require.NoError(t, err)
	steps := jp.MustParseString("$.UsageJourney['uj-1'].uj_steps[*]").Get(doc)
	assert.Equal(t, []any{"step-1", "step-2"}, steps)
	jobs := jp.MustParseString("$.UsageJourney['uj-1']." + domain.CalculatedKey + ".job_count").Get(doc)
	require.Len(t, jobs, 1)
	assert.EqualValues(t, 3, jobs[0])
}

func TestCheckSize(t *testing.T) {
	g := domaintest.StandardModel(t)
	require.NoError(t, g.ComputeAll())

	raw, meas, err := CheckSize(g, 30, nil)
	require.NoError(t, err)
	assert.Equal(t, len(raw), meas.SizeBytes)

	_, _, err = CheckSize(g, meas.SizeMB/2, nil)
	var sle *SizeLimitError
	require.ErrorAs(t, err, &sle)
	assert.Equal(t, PhaseSave, sle.Phase)
}
