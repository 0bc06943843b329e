// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/modelbuilder/pkg/logging"
)

var (
	colorTeal  = lipgloss.Color("#2CD7C7")
	colorSlate = lipgloss.Color("#2C4A54")
	colorError = lipgloss.Color("#E74C3C")
)

var (
	okStyle     lipgloss.Style
	errorStyle  lipgloss.Style
	headerStyle lipgloss.Style
	dimStyle    lipgloss.Style
)

func init() {
	setStyles(logging.IsTerminal(os.Stdout))
}

// setStyles colors output only on a terminal so piped output stays plain.
func setStyles(color bool) {
	okStyle = lipgloss.NewStyle()
	errorStyle = lipgloss.NewStyle()
	headerStyle = lipgloss.NewStyle()
	dimStyle = lipgloss.NewStyle()
	if !color {
		return
	}
	okStyle = okStyle.Foreground(colorTeal).Bold(true)
	errorStyle = errorStyle.Foreground(colorError).Bold(true)
	headerStyle = headerStyle.Foreground(colorTeal)
	dimStyle = dimStyle.Foreground(colorSlate)
}
