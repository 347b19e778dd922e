// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for pagetutor.
//
// # Sections
//
//   - [llm]: provider (ollama or claude), model, base_url, api_key, timeout
//   - [tutor]: requests_per_minute, history
//   - [server]: addr, api_key, cors_origins, rate_limit, session_ttl
//   - [library]: db_path, import_dir, transcripts_dir
//   - [viewer]: default_scale, color
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (PAGETUTOR_*)
//   - ~/.pagetutor/config.toml
//   - ~/.pagetutor/config.json
//   - Built-in defaults
//
// PAGETUTOR_HOME relocates the configuration directory.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	provider := cfg.LLM.Provider
package config
