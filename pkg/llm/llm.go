// Package llm describes the text-generation capability the report is built on.
package llm

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrEmptyResponse is returned when the service answers without any text.
var ErrEmptyResponse = errors.New("generation returned no content")

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message of a conversation.
type Turn struct {
	Role Role
	Text string
}

// Generator produces text for a conversation under an output token limit.
type Generator interface {
	Generate(ctx context.Context, system string, turns []Turn, maxTokens int) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, system string, turns []Turn, maxTokens int) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, system string, turns []Turn, maxTokens int) (string, error) {
	return f(ctx, system, turns, maxTokens)
}

// Ask runs a single-turn generation.
func Ask(ctx context.Context, g Generator, system, user string, maxTokens int) (string, error) {
	out, err := g.Generate(ctx, system, []Turn{{Role: RoleUser, Text: user}}, maxTokens)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// Limit bounds the number of in-flight calls made through g.
func Limit(g Generator, n int) Generator {
	if n <= 0 {
		return g
	}
	return &limited{next: g, sem: make(chan struct{}, n)}
}

type limited struct {
	next Generator
	sem  chan struct{}
}

func (l *limited) Generate(ctx context.Context, system string, turns []Turn, maxTokens int) (string, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), "waiting for generation slot")
	}
	defer func() { <-l.sem }()
	return l.next.Generate(ctx, system, turns, maxTokens)
}
