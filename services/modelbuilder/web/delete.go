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

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain"
)

// SelfDelete removes the wrapped node and cascades to orphaned children.
//
// Description:
//
//	Before deleting, the children of the node whose class is deletable
//	when orphaned and whose only container is this node are recorded.
//	After the node is gone each recorded child that has no container left
//	is self-deleted in turn, recursively. Shared children and
//	infrastructure classes are left in place.
//
// Outputs:
//
//	[]string - IDs of every deleted node, this one first.
//	error    - domain.ErrNodeReferenced when the node is still contained.
func (o *Object) SelfDelete() ([]string, error) {
	var deleted []string
	err := o.model.selfDelete(o.node, &deleted)
	return deleted, err
}

func (m *Model) selfDelete(n *domain.Node, deleted *[]string) error {
	var orphans []*domain.Node
	for _, child := range n.Children() {
		if !m.Schema().Deletable(child.Class()) {
			continue
		}
		containers := child.ContainerNodes()
		if len(containers) == 1 && containers[0] == n {
			orphans = append(orphans, child)
		}
	}

	if err := m.graph.Delete(n); err != nil {
		return fmt.Errorf("delete %s: %w", n.ID(), err)
	}
	m.forget(n.ID())
	*deleted = append(*deleted, n.ID())

	for _, child := range orphans {
		if current, ok := m.graph.Node(child.ID()); !ok || current != child {
			continue
		}
		if len(child.Containers()) > 0 {
			continue
		}
		if err := m.selfDelete(child, deleted); err != nil {
			return err
		}
	}
	return nil
}
