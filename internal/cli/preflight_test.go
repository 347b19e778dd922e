// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pagetutor/internal/config"
	"github.com/jeranaias/pagetutor/internal/ollama"
	"github.com/jeranaias/pagetutor/internal/tutor"
)

// ollamaStub answers the health check and the model list.
func ollamaStub(t *testing.T, tags string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			io.WriteString(w, "Ollama is running")
		case "/api/tags":
			io.WriteString(w, tags)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func ollamaProvider(url, model string) tutor.OllamaProvider {
	c := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: url, Timeout: time.Second})
	return tutor.OllamaProvider{Client: c, Model: model}
}

func TestCheckProvider_OllamaReady(t *testing.T) {
	url := ollamaStub(t, `{"models":[{"name":"llama3.1:8b"},{"name":"mistral:latest"}]}`)

	assert.NoError(t, checkProvider(context.Background(), ollamaProvider(url, "llama3.1:8b")))
	assert.NoError(t, checkProvider(context.Background(), ollamaProvider(url, "mistral")),
		"an untagged name matches the latest tag")
	assert.NoError(t, checkProvider(context.Background(), ollamaProvider(url, "")),
		"an empty model falls back to the client default")
}

func TestCheckProvider_OllamaNotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := checkProvider(context.Background(), ollamaProvider(url, "llama3.1:8b"))
	require.Error(t, err)
	assert.True(t, ollama.IsNotRunning(err))
	assert.Contains(t, err.Error(), "ollama serve")
}

func TestCheckProvider_ModelMissing(t *testing.T) {
	url := ollamaStub(t, `{"models":[{"name":"mistral:latest"}]}`)

	err := checkProvider(context.Background(), ollamaProvider(url, "llama3.1:8b"))
	require.Error(t, err)
	assert.True(t, ollama.IsModelNotFound(err))
	assert.Contains(t, err.Error(), "ollama pull llama3.1:8b")
}

func TestCheckProvider_SkipsOtherProviders(t *testing.T) {
	assert.NoError(t, checkProvider(context.Background(), tutor.StaticProvider{}))
}

func TestRunAsk_OllamaNotRunning(t *testing.T) {
	h := isolate(t)
	h.importBiology(t)

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	old := providerFactory
	providerFactory = func(*config.Config) (tutor.Provider, string, error) {
		return ollamaProvider(url, "llama3.1:8b"), "llama3.1:8b", nil
	}
	t.Cleanup(func() { providerFactory = old })

	err := h.run(t, "ask", "What is osmosis?", "--doc", "biology")
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "connect", cmdErr.Action)
	assert.True(t, ollama.IsNotRunning(err))
}
