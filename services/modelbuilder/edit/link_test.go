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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain/domaintest"
)

func TestFindListAttributeForChild(t *testing.T) {
	g, m := setup(t)
	domaintest.Add(t, g, domain.ClassGPUJob, "gpu-job", nil)

	attr, ok := FindListAttributeForChild(object(t, m, "step-1"), object(t, m, "gpu-job"))
	require.True(t, ok, "subclass matches the declared element class")
	assert.Equal(t, domain.AttrJobs, attr)

	_, ok = FindListAttributeForChild(object(t, m, "step-1"), object(t, m, "srv-1"))
	assert.False(t, ok)
}

func TestLink(t *testing.T) {
	g, m := setup(t)
	domaintest.Add(t, g, domain.ClassJob, "job-3", nil)

	t.Run("appends to the existing list", func(t *testing.T) {
		link, err := Link(m, "step-1", object(t, m, "job-3"))
		require.NoError(t, err)
		assert.Equal(t, domain.AttrJobs, link.Attr)
		assert.Equal(t, domain.ParsedAttributes{domain.AttrJobs: []string{"job-1", "job-shared", "job-3"}}, link.EditData)
	})

	t.Run("no matching attribute", func(t *testing.T) {
		_, err := Link(m, "srv-1", object(t, m, "job-3"))
		assert.ErrorIs(t, err, ErrNoMatchingAttribute)
	})

	t.Run("link and edit", func(t *testing.T) {
		res, err := NewService().LinkChild(context.Background(), m, "step-2", object(t, m, "job-3"))
		require.NoError(t, err)
		assert.Equal(t, []string{"job-shared", "job-3"}, object(t, m, "step-2").ListIDs(domain.AttrJobs))
		assert.Len(t, res.Mirrors[0].Added, 1)
	})
}

func TestUnlink(t *testing.T) {
	g, m := setup(t)

	_, err := Unlink(m, "step-2", "job-1")
	assert.ErrorIs(t, err, ErrNotLinked)

	res, err := NewService().UnlinkChild(context.Background(), m, "step-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1"}, res.Deleted)
	_, ok := g.Node("job-1")
	assert.False(t, ok)
}
