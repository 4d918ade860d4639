package ai

import "context"

// Classifier labels free text with one intent name. It knows nothing about
// the pipeline or storage; callers validate the label.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// Responder generates an answer from the user text, free-form context and FAQ snippets.
type Responder interface {
	Generate(ctx context.Context, text, note string, faqs []FAQ) (string, error)
}

// FAQ is the slice of a knowledge entry the model gets to see.
type FAQ struct {
	Question string
	Answer   string
}

// Message — universal dialog format for the model.
type Message struct {
	Role string // "user" | "assistant" | "system"
	Text string
}
