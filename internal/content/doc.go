// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package content splits raw assistant text into its semantic regions.
//
// Model output carries three embedded sub-languages inside an otherwise
// free-text stream:
//
//   - <think>...</think> regions holding reasoning ("thoughts")
//   - a <research_plan>...</research_plan> region holding a plan that the
//     user must approve before deep research proceeds
//   - inline JSON objects tagged with "__deep_research_activity__": true,
//     describing research progress (searches, page visits, phases)
//
// ParseContent and ExtractActivities work on complete strings and are used
// for stored messages. Scanner is the incremental form used while a
// response streams in: each Write only scans the new bytes plus a short
// held-back tail, and Extracted returns the same result ParseContent would
// return for everything written so far.
//
// # Usage
//
//	ex := content.ParseContent(msg)
//	if ex.Plan != nil {
//	    showPlan(*ex.Plan)
//	}
//
//	acts, raw := content.ExtractActivities(ex.Thoughts)
//	text := content.StripActivities(ex.Thoughts, raw)
package content
