package media

import (
	"context"
	"errors"
	"strings"

	"github.com/manifoldco/promptui"
)

// PathPicker picks a path given up front, e.g. from a --file flag
type PathPicker struct {
	Path string
}

func (p PathPicker) Pick(ctx context.Context, cfg PickConfig) PickResult {
	if strings.TrimSpace(p.Path) == "" {
		return Cancelled()
	}
	ref, err := Resolve(p.Path, cfg)
	if err != nil {
		return Failed(err)
	}
	return Picked(ref)
}

// PromptFunc asks the user for a path
type PromptFunc func(label string) (string, error)

// PromptPicker asks for a path on the terminal. Ctrl-C, Ctrl-D and an empty
// answer count as a cancellation.
type PromptPicker struct {
	Prompt PromptFunc
}

// NewPromptPicker returns a picker backed by a promptui prompt
func NewPromptPicker() *PromptPicker {
	return &PromptPicker{Prompt: promptuiPath}
}

func promptuiPath(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
	}
	return prompt.Run()
}

type promptAnswer struct {
	text string
	err  error
}

func (p *PromptPicker) Pick(ctx context.Context, cfg PickConfig) PickResult {
	answers := make(chan promptAnswer, 1)
	go func() {
		text, err := p.Prompt("Path to " + cfg.Kind.String())
		answers <- promptAnswer{text: text, err: err}
	}()

	var ans promptAnswer
	select {
	case <-ctx.Done():
		// the prompt goroutine exits on the next keypress
		return Cancelled()
	case ans = <-answers:
	}

	if errors.Is(ans.err, promptui.ErrInterrupt) || errors.Is(ans.err, promptui.ErrEOF) || errors.Is(ans.err, promptui.ErrAbort) {
		return Cancelled()
	}
	if ans.err != nil {
		return Failed(ans.err)
	}
	if strings.TrimSpace(ans.text) == "" {
		return Cancelled()
	}

	ref, err := Resolve(ans.text, cfg)
	if err != nil {
		return Failed(err)
	}
	return Picked(ref)
}
