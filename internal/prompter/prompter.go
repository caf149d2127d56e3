package prompter

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// ErrCancelled is returned when the user aborts a prompt with Ctrl-C or Ctrl-D
var ErrCancelled = errors.New("prompt cancelled")

var (
	stdin       io.Reader = os.Stdin
	interactive           = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
)

// IsInteractive reports whether stdin is a terminal
func IsInteractive() bool {
	return interactive()
}

// PromptString asks for a line of text with def prefilled. On a terminal the
// default can be edited in place; otherwise a blank line keeps it.
func PromptString(label, def string) (string, error) {
	if !interactive() {
		line, err := readLine()
		if err != nil {
			return "", err
		}
		if line == "" {
			return def, nil
		}
		return line, nil
	}

	prompt := promptui.Prompt{
		Label:     label,
		Default:   def,
		AllowEdit: true,
	}
	result, err := prompt.Run()
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return "", ErrCancelled
	}
	return strings.TrimSpace(result), err
}

// PromptConfirm asks a yes/no question. Without a terminal the answer is no.
func PromptConfirm(label string) (bool, error) {
	if !interactive() {
		return false, nil
	}
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, promptui.ErrAbort):
		return false, nil
	case errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF):
		return false, ErrCancelled
	default:
		return false, err
	}
}

func readLine() (string, error) {
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
