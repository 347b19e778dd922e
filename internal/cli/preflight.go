// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/pagetutor/internal/ollama"
	"github.com/jeranaias/pagetutor/internal/tutor"
)

// =============================================================================
// PROVIDER PREFLIGHT
// =============================================================================

// preflightTimeout bounds the reachability check made before a command
// starts talking to the model.
const preflightTimeout = 5 * time.Second

// checkProvider confirms a local model server is up and has the configured
// model before the first exchange. Remote providers are not checked.
func checkProvider(ctx context.Context, p tutor.Provider) error {
	op, ok := p.(tutor.OllamaProvider)
	if !ok || op.Client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()

	model := op.Model
	if model == "" {
		model = op.Client.Config().DefaultModel
	}
	url := op.Client.Config().BaseURL

	err := op.Client.CheckRunning(ctx)
	if err == nil {
		var models []ollama.ModelInfo
		models, err = op.Client.ListModels(ctx)
		if err == nil && !hasModel(models, model) {
			err = ollama.ErrModelNotFound
		}
	}

	switch {
	case err == nil:
		return nil
	case ollama.IsNotRunning(err):
		return fmt.Errorf("Ollama is not running at %s; start it with `ollama serve`: %w", url, err)
	case ollama.IsTimeout(err):
		return fmt.Errorf("Ollama at %s did not answer within %s: %w", url, preflightTimeout, err)
	case ollama.IsModelNotFound(err):
		return fmt.Errorf("model %q is not installed; run `ollama pull %s`: %w", model, model, err)
	}
	return err
}

// hasModel reports whether an installed model matches name. A name without
// a tag matches the model's "latest" tag.
func hasModel(models []ollama.ModelInfo, name string) bool {
	for _, m := range models {
		if m.Name == name {
			return true
		}
		if !strings.Contains(name, ":") && m.Name == name+":latest" {
			return true
		}
	}
	return false
}
