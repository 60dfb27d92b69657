// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"github.com/jeranaias/luminous-tui/internal/config"
	"github.com/jeranaias/luminous-tui/internal/model"
)

// SettingsFromConfig builds the settings of a new chat view. The default
// model is selected when one is configured.
func SettingsFromConfig(cfg *config.Config) Settings {
	s := Settings{
		Configured:   cfg.Configured(),
		SystemPrompt: cfg.Model.SystemPrompt,
		MemoryMode:   cfg.Research.MemoryMode,
		DeepResearch: cfg.Research.DeepResearch,
		SearchDepth:  cfg.Research.SearchDepth,
		VisionModel:  cfg.Research.VisionModel,
		Sampling:     cfg.WireSampling(),
		History:      cfg.Model.History,
	}
	if id := cfg.Model.Default; id != "" {
		s.Model = model.ModelInfo{ID: id, Vision: cfg.IsVisionModel(id)}
	}
	return s
}

// Reconfigure applies a reloaded config to s. The chat's own choices (model,
// modes and the temporary flag) are kept.
func Reconfigure(s Settings, cfg *config.Config) Settings {
	next := SettingsFromConfig(cfg)
	next.Model = s.Model
	if next.Model.ID != "" && cfg.IsVisionModel(next.Model.ID) {
		next.Model.Vision = true
	}
	next.MemoryMode = s.MemoryMode
	next.DeepResearch = s.DeepResearch
	next.SearchDepth = s.SearchDepth
	next.VisionModel = s.VisionModel
	next.Temporary = s.Temporary
	return next
}
