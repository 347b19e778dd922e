// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - config command.
//
// Subcommands:
//
//	show (default)      Display the effective configuration, keys redacted
//	path                Show the configuration file path
//	init                Write a default config file
//	get <key>           Print one value, e.g. llm.model
//	set <key> <value>   Change one value and save
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/pagetutor/internal/config"
)

const redacted = "[REDACTED]"

func runConfig(a Args) error {
	path, err := configPath(a)
	if err != nil {
		return err
	}

	switch a.Subcommand {
	case "path":
		if a.JSON {
			return NewJSONResponse("config", map[string]string{"path": path}).Print()
		}
		fmt.Fprintln(stdout, path)
		return nil
	case "init":
		return initConfig(a, path)
	}

	cfg, err := loadConfig(a.ConfigPath)
	if err != nil {
		return err
	}

	switch a.Subcommand {
	case "get":
		v, err := cfg.Get(a.Key)
		if err != nil {
			return &ValidationError{Field: "key", Value: a.Key, Reason: err.Error(), Example: "llm.model"}
		}
		if a.JSON {
			return NewJSONResponse("config", map[string]any{"key": a.Key, "value": v}).Print()
		}
		if list, ok := v.([]string); ok {
			v = strings.Join(list, ",")
		}
		fmt.Fprintln(stdout, v)
		return nil

	case "set":
		if err := cfg.Set(a.Key, a.Value); err != nil {
			return &ValidationError{Field: a.Key, Value: a.Value, Reason: err.Error()}
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if err := config.SaveTOML(cfg, path); err != nil {
			return NewCommandError("config", "set", path, err)
		}
		if a.JSON {
			return NewJSONResponse("config", map[string]string{"key": a.Key, "value": a.Value}).Print()
		}
		fmt.Fprintf(stdout, "%s %s = %s\n", SuccessStyle.Render("[OK]"), a.Key, a.Value)
		return nil

	default:
		return showConfig(a, cfg, path)
	}
}

func configPath(a Args) (string, error) {
	if a.ConfigPath != "" {
		return a.ConfigPath, nil
	}
	return config.ConfigPathTOML()
}

func initConfig(a Args, path string) error {
	if _, err := os.Stat(path); err == nil {
		return &ValidationError{
			Field:   "config",
			Value:   path,
			Reason:  "file already exists",
			Example: "pagetutor config set <key> <value>",
		}
	}
	cfg := config.Default()
	cfg.SetDefaults()
	if err := config.SaveTOML(cfg, path); err != nil {
		return NewCommandError("config", "init", path, err)
	}
	if a.JSON {
		return NewJSONResponse("config", map[string]string{"path": path}).Print()
	}
	fmt.Fprintf(stdout, "%s wrote %s\n", SuccessStyle.Render("[OK]"), path)
	return nil
}

func showConfig(a Args, cfg *config.Config, path string) error {
	safe := cfg.Clone()
	if safe.LLM.APIKey != "" {
		safe.LLM.APIKey = redacted
	}
	if safe.Server.APIKey != "" {
		safe.Server.APIKey = redacted
	}

	if a.JSON {
		return NewJSONResponse("config", json.RawMessage(safe.String())).Print()
	}

	if !a.Quiet {
		fmt.Fprintf(stdout, "%s %s\n\n", TitleStyle.Render("Configuration"), DimStyle.Render(path))
	}
	return toml.NewEncoder(stdout).Encode(safe)
}
