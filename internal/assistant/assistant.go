package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/corpuscrawl/internal/dataset"
	"github.com/nao1215/corpuscrawl/internal/sandbox"
)

// DefaultContextLimit is the number of dataset characters kept as prompt
// context.
const DefaultContextLimit = 4000

// Runner executes code. *sandbox.Runner implements it.
type Runner interface {
	Run(ctx context.Context, code string) (*sandbox.Result, error)
}

// Store keeps accepted examples. *dataset.Dataset implements it.
type Store interface {
	Append(instruction, code string) (bool, error)
	LoadCode() (string, error)
}

// Assistant holds the collaborators of the code assistant.
// Generator is required for Generate and Runner for Submit; Dataset is
// optional.
type Assistant struct {
	// Generator produces code from prompts.
	Generator Generator

	// Runner executes generated or submitted code.
	Runner Runner

	// Dataset receives examples that ran successfully and provides
	// prompt context.
	Dataset Store

	// ContextLimit caps the dataset context in the prompt, keeping the
	// most recent characters. Zero uses DefaultContextLimit; a negative
	// value disables context.
	ContextLimit int
}

// Submission is the outcome of Submit.
type Submission struct {
	// Result is the sandbox result.
	Result *sandbox.Result

	// Saved is true when the example was added to the dataset.
	Saved bool
}

// Compile-time interface checks.
var (
	_ Runner = (*sandbox.Runner)(nil)
	_ Store  = (*dataset.Dataset)(nil)
)

// Prompt builds the model prompt for an instruction.
func (a *Assistant) Prompt(instruction string) (string, error) {
	task := "# Task: " + strings.TrimSpace(instruction) + "\n"

	limit := a.ContextLimit
	if limit == 0 {
		limit = DefaultContextLimit
	}
	if a.Dataset == nil || limit < 0 {
		return task, nil
	}

	examples, err := a.Dataset.LoadCode()
	if err != nil {
		return "", fmt.Errorf("failed to load dataset context: %w", err)
	}
	examples = tail(examples, limit)
	if strings.TrimSpace(examples) == "" {
		return task, nil
	}
	return examples + "\n\n" + task, nil
}

// Generate asks the model for code that fulfils instruction.
// A completion that echoes the prompt has the prompt removed.
func (a *Assistant) Generate(ctx context.Context, instruction string) (string, error) {
	if a.Generator == nil {
		return "", errors.New("assistant has no generator")
	}
	if strings.TrimSpace(instruction) == "" {
		return "", dataset.ErrEmptyField
	}

	prompt, err := a.Prompt(instruction)
	if err != nil {
		return "", err
	}

	text, err := a.Generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.TrimPrefix(text, prompt)), nil
}

// Submit runs code in the sandbox and, when it succeeds, stores the
// instruction/code pair in the dataset.
func (a *Assistant) Submit(ctx context.Context, instruction, code string) (*Submission, error) {
	if a.Runner == nil {
		return nil, errors.New("assistant has no runner")
	}

	res, err := a.Runner.Run(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to run code: %w", err)
	}

	sub := &Submission{Result: res}
	if !res.OK || a.Dataset == nil {
		return sub, nil
	}

	saved, err := a.Dataset.Append(instruction, code)
	if err != nil {
		return sub, fmt.Errorf("failed to save example: %w", err)
	}
	sub.Saved = saved
	return sub, nil
}

// DetectLanguage guesses which language an instruction asks for.
// It returns "python", "javascript", "csharp" or "unknown".
func DetectLanguage(instruction string) string {
	lower := strings.ToLower(instruction)
	switch {
	case strings.Contains(lower, "python"):
		return "python"
	case strings.Contains(lower, "javascript"), containsWord(lower, "js"):
		return "javascript"
	case strings.Contains(lower, "c#"):
		return "csharp"
	default:
		return "unknown"
	}
}

// containsWord reports whether word appears delimited by non-letters.
func containsWord(s, word string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	}) {
		if f == word {
			return true
		}
	}
	return false
}

// tail returns the last n runes of s.
func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
