// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package domain

import "fmt"

// Compute runs the node's calculation and then fires its OnComputed hook.
//
// Description:
//
//	The hook is cleared before it is invoked so it fires at most once,
//	even if the hook itself triggers another computation of the node.
//
// Outputs:
//
//	error - The hook's error, if any.
func (g *Graph) Compute(n *Node) error {
	if err := g.owns(n); err != nil {
		return err
	}
	var values map[string]any
	if calc := g.schema.computeFor(n.class); calc != nil {
		values = calc(n)
	}
	n.calculated = values
	n.computed = true
	if hook := n.onComputed; hook != nil {
		n.onComputed = nil
		if err := hook(n); err != nil {
			return fmt.Errorf("on computed %s: %w", n.id, err)
		}
	}
	return nil
}

// FinishInitialization computes every node reachable from root in
// post-order, children before containers.
//
// Description:
//
//	Each reachable node is computed exactly once per call. Nodes that
//	are not reachable from root are left untouched. The first hook error
//	aborts the traversal.
//
// Inputs:
//
//	root - Usually the graph's System node.
//
// Outputs:
//
//	error - The first error returned by Compute.
func (g *Graph) FinishInitialization(root *Node) error {
	if err := g.owns(root); err != nil {
		return err
	}
	visited := make(map[string]bool, len(g.order))
	var visit func(n *Node) error
	visit = func(n *Node) error {
		if visited[n.id] {
			return nil
		}
		visited[n.id] = true
		for _, child := range n.Children() {
			if err := visit(child); err != nil {
				return err
			}
		}
		return g.Compute(n)
	}
	return visit(root)
}

// ComputeAll computes everything reachable from the root, then every
// node the root cannot reach.
func (g *Graph) ComputeAll() error {
	if root, err := g.Root(); err == nil {
		if err := g.FinishInitialization(root); err != nil {
			return err
		}
	}
	for _, n := range g.Nodes() {
		if !n.computed {
			if err := g.FinishInitialization(n); err != nil {
				return err
			}
		}
	}
	return nil
}
