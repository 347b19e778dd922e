// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tutor

import (
	"errors"
	"strings"
)

// ErrMissingQuestion is returned for an empty question.
var ErrMissingQuestion = errors.New("missing user message")

// NoDocumentText stands in for the document when none is loaded.
const NoDocumentText = "No PDF uploaded."

// TutorPrompt is the base instruction given to the model.
const TutorPrompt = "You are a helpful tutor. Use the PDF text provided to answer questions. Always cite the page number if possible."

// ProtocolPrompt teaches the model the viewer command syntax.
const ProtocolPrompt = `You can control the reader's document viewer by embedding commands in your reply. Wrap each command in <cmd></cmd> tags around one JSON object:
<cmd>{"action":"goToPage","page":3}</cmd>
<cmd>{"action":"highlightText","page":3,"text":"exact phrase from the page","color":"yellow"}</cmd>
<cmd>{"action":"highlightText","page":3,"start":120,"end":160}</cmd>
<cmd>{"action":"highlightRect","page":3,"rect":[0.1,0.2,0.5,0.05]}</cmd>
<cmd>{"action":"clearHighlights","page":3}</cmd>
Rect values are fractions of the page width and height measured from the top-left corner. Omit "page" in clearHighlights to clear every page. Commands are removed before the reader sees your reply.`

// Prompt is the system and user content sent to a model.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt assembles the prompt for question against the document text.
func BuildPrompt(question, documentText string) (Prompt, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Prompt{}, ErrMissingQuestion
	}
	if strings.TrimSpace(documentText) == "" {
		documentText = NoDocumentText
	}

	return Prompt{
		System: TutorPrompt + "\n\n" + ProtocolPrompt,
		User:   "PDF Context:\n" + documentText + "\n\nUser Question: " + question,
	}, nil
}
