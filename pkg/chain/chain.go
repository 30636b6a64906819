// Package chain runs a two-stage generation in a single conversation:
// a free-form analytical draft followed by a restructuring request.
package chain

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/codeGROOVE-dev/ghweekly/pkg/llm"
)

// ErrChainFailed is returned when either stage produced no usable content.
var ErrChainFailed = errors.New("prompt chain failed")

// Chain describes one draft-then-restructure conversation.
type Chain struct {
	System    string
	First     string
	Second    string
	FirstCap  int
	SecondCap int
}

// Run executes both stages and returns the raw stage-two text.
// Stage two is never attempted after a stage-one failure.
func (c Chain) Run(ctx context.Context, g llm.Generator) (string, error) {
	turns := []llm.Turn{{Role: llm.RoleUser, Text: c.First}}

	draft, err := generate(ctx, g, c.System, turns, c.FirstCap)
	if err != nil {
		return "", errors.Wrapf(err, "%s: stage 1", ErrChainFailed)
	}

	turns = append(turns,
		llm.Turn{Role: llm.RoleModel, Text: draft},
		llm.Turn{Role: llm.RoleUser, Text: c.Second},
	)
	out, err := generate(ctx, g, c.System, turns, c.SecondCap)
	if err != nil {
		return "", errors.Wrapf(err, "%s: stage 2", ErrChainFailed)
	}
	return out, nil
}

func generate(ctx context.Context, g llm.Generator, system string, turns []llm.Turn, maxTokens int) (string, error) {
	out, err := g.Generate(ctx, system, turns, maxTokens)
	if err != nil {
		return "", errors.Mark(err, ErrChainFailed)
	}
	if strings.TrimSpace(out) == "" {
		return "", errors.Mark(llm.ErrEmptyResponse, ErrChainFailed)
	}
	return out, nil
}

// Caps returns the output token limits for both stages given the number of
// input entries the correlation is built from.
func Caps(entries int) (first, second int) {
	switch {
	case entries <= 3:
		return 384, 96
	case entries <= 14:
		return 512, 350
	default:
		return 1024, 500
	}
}
