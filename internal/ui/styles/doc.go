// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the luminous TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection.

# Color System (colors.go)

  - Violet - brand accent, assistant messages, research plans
  - Cyan - user messages, commands, links
  - Emerald - completed research steps, approved plans
  - Amber - warnings and the "correcting" indicator
  - Rose - inline API errors and the stopped indicator

# Theme (theme.go)

Theme groups the styles of each screen region: header, message rows, the
collapsible thought panel, the deep research activity feed, the plan
approval box, the chat list, the input area and the status bar.

	theme := styles.NewTheme()
	theme.SetSize(width, height)
	fmt.Println(theme.ThoughtHeader.Render("Thought Process"))

# Spinners (spinner.go)

SpinnerConfig frames drive the live "Agent is thinking..." indicator.
*/
package styles
