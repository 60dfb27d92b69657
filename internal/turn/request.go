// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"github.com/jeranaias/luminous-tui/internal/luminous"
	"github.com/jeranaias/luminous-tui/internal/model"
)

// buildRequest assembles the completion request for the current transcript.
// Sampling parameters are left out in deep research mode, where the server
// picks its own.
func (c *Controller) buildRequest(approvedPlan *string) luminous.CompletionRequest {
	s := c.settings

	history := s.History
	if history <= 0 {
		history = DefaultHistory
	}
	window := c.transcript.Window(history)
	msgs := make([]model.Message, 0, len(window)+1)
	if s.SystemPrompt != "" {
		msgs = append(msgs, model.NewSystemMessage(s.SystemPrompt))
	}
	msgs = append(msgs, window...)

	req := luminous.CompletionRequest{
		Model:            s.Model.ID,
		LastModelName:    s.Model.DisplayName(),
		HasVision:        s.Model.Vision,
		Messages:         msgs,
		MemoryMode:       s.MemoryMode,
		DeepResearchMode: s.DeepResearch,
		ApprovedPlan:     approvedPlan,
	}
	if id := c.persistentID(); id != "" {
		req.ChatID = &id
	}

	if s.DeepResearch {
		depth := s.SearchDepth
		if depth == "" {
			depth = "regular"
		}
		req.SearchDepthMode = &depth
		if s.VisionModel != "" {
			vision := s.VisionModel
			req.VisionModel = &vision
		}
		return req
	}

	sampling := s.Sampling
	sampling.Reasoning = luminous.WireReasoning(sampling.Reasoning)
	req.Sampling = &sampling
	return req
}
