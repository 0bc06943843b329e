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
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain"
)

// CardSeparator joins node IDs in a rendered card ID.
const CardSeparator = domain.IDSeparator

// CardID identifies one rendered card: a node plus the chain of container
// nodes it is displayed under, outermost first.
//
// The zero value is not a valid card.
type CardID struct {
	// NodeID is the ID of the node the card shows.
	NodeID string

	// chain holds the ancestry as length-prefixed IDs ("5:sys-1" ...),
	// outermost first, so two cards are equal exactly when their nodes
	// and ancestries are.
	chain string
}

// NewCardID returns the card of a top-level object.
func NewCardID(nodeID string) CardID {
	return CardID{NodeID: nodeID}
}

// ParseCardID parses a rendered card ID. Every segment must be a valid
// node ID, which keeps parsing the inverse of String for graph nodes.
func ParseCardID(s string) (CardID, error) {
	if s == "" {
		return CardID{}, fmt.Errorf("%w: empty", ErrInvalidCardID)
	}
	parts := strings.Split(s, CardSeparator)
	for _, p := range parts {
		if err := domain.ValidateID(p); err != nil {
			return CardID{}, fmt.Errorf("%w: %q", ErrInvalidCardID, s)
		}
	}
	var c CardID
	for _, p := range parts {
		if c.IsZero() {
			c = NewCardID(p)
		} else {
			c = c.Child(p)
		}
	}
	return c, nil
}

// Child returns the card of nodeID displayed under c.
func (c CardID) Child(nodeID string) CardID {
	return CardID{NodeID: nodeID, chain: c.chain + encodeSegment(c.NodeID)}
}

func encodeSegment(id string) string {
	return strconv.Itoa(len(id)) + ":" + id
}

// Ancestors returns the container node IDs, outermost first.
func (c CardID) Ancestors() []string {
	var out []string
	rest := c.chain
	for rest != "" {
		colon := strings.IndexByte(rest, ':')
		n, _ := strconv.Atoi(rest[:colon])
		out = append(out, rest[colon+1:colon+1+n])
		rest = rest[colon+1+n:]
	}
	return out
}

// Parent returns the card c is displayed under, if any.
func (c CardID) Parent() (CardID, bool) {
	ancestors := c.Ancestors()
	if len(ancestors) == 0 {
		return CardID{}, false
	}
	p := NewCardID(ancestors[0])
	for _, id := range ancestors[1:] {
		p = p.Child(id)
	}
	return p, true
}

// IsZero reports whether c is the zero value.
func (c CardID) IsZero() bool { return c.NodeID == "" }

// String renders the card ID, e.g. "sys-1__up-1__uj-1".
func (c CardID) String() string {
	ancestors := c.Ancestors()
	if len(ancestors) == 0 {
		return c.NodeID
	}
	return strings.Join(append(ancestors, c.NodeID), CardSeparator)
}

// MarshalText implements encoding.TextMarshaler.
func (c CardID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CardID) UnmarshalText(b []byte) error {
	parsed, err := ParseCardID(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
