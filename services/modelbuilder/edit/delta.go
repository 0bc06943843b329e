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

import "github.com/AleutianAI/modelbuilder/services/modelbuilder/web"

// Anchor tells the client where to insert added child cards.
type Anchor struct {
	// Prepend is true when no child survived the edit: added cards go
	// first in the card body.
	Prepend bool `json:"prepend"`

	// After is the last unchanged child card. Added cards follow it.
	After web.CardID `json:"after"`
}

// MirrorDelta describes how one card's children changed during an edit.
type MirrorDelta struct {
	Card      web.CardID   `json:"card"`
	Removed   []web.CardID `json:"removed"`
	Added     []web.CardID `json:"added"`
	Unchanged []web.CardID `json:"unchanged"`
	Anchor    Anchor       `json:"anchor"`
}

// diffChildren compares child card lists.
//
// Removed keeps the order of before; added and unchanged keep the order
// of after.
func diffChildren(card web.CardID, before, after []web.CardID) MirrorDelta {
	inBefore := make(map[web.CardID]bool, len(before))
	for _, id := range before {
		inBefore[id] = true
	}
	inAfter := make(map[web.CardID]bool, len(after))
	for _, id := range after {
		inAfter[id] = true
	}

	d := MirrorDelta{
		Card:      card,
		Removed:   []web.CardID{},
		Added:     []web.CardID{},
		Unchanged: []web.CardID{},
	}
	for _, id := range before {
		if !inAfter[id] {
			d.Removed = append(d.Removed, id)
		}
	}
	for _, id := range after {
		if inBefore[id] {
			d.Unchanged = append(d.Unchanged, id)
		} else {
			d.Added = append(d.Added, id)
		}
	}
	if len(d.Unchanged) == 0 {
		d.Anchor.Prepend = true
	} else {
		d.Anchor.After = d.Unchanged[len(d.Unchanged)-1]
	}
	return d
}

func childCardIDs(card *web.Object) ([]web.CardID, error) {
	children := card.AccordionChildren()
	ids := make([]web.CardID, 0, len(children))
	for _, c := range children {
		id, err := c.CardID()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
