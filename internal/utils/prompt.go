package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"certify/internal/cert"
)

// Prompter reads answers from the user. In and Out default to stdin and stderr.
type Prompter struct {
	In  io.Reader
	Out io.Writer
	// ReadSecret reads a line without echo; it defaults to term.ReadPassword on In.
	ReadSecret func() ([]byte, error)

	reader *bufio.Reader
}

func NewPrompter() *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stderr}
}

func (p *Prompter) lineReader() *bufio.Reader {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	return p.reader
}

// PromptString prompts the user for a string input
func (p *Prompter) PromptString(prompt, defaultValue string) (string, error) {
	if defaultValue != "" {
		fmt.Fprintf(p.Out, "%s [%s]: ", prompt, defaultValue)
	} else {
		fmt.Fprintf(p.Out, "%s: ", prompt)
	}

	input, err := p.lineReader().ReadString('\n')
	if err != nil && !(err == io.EOF && input != "") {
		return "", err
	}

	input = strings.TrimSpace(input)
	if input == "" && defaultValue != "" {
		return defaultValue, nil
	}

	return input, nil
}

// PromptConfirm prompts the user for a yes/no confirmation
func (p *Prompter) PromptConfirm(prompt string, defaultValue bool) (bool, error) {
	defaultStr := "y/N"
	if defaultValue {
		defaultStr = "Y/n"
	}

	input, err := p.PromptString(fmt.Sprintf("%s (%s)", prompt, defaultStr), "")
	if err != nil {
		return false, err
	}

	input = strings.ToLower(input)
	if input == "" {
		return defaultValue, nil
	}

	return input == "y" || input == "yes", nil
}

// PromptPassphrase prompts for a passphrase without echoing input. With confirm
// the passphrase is asked twice and must match. An empty answer yields an unset
// Secret.
func (p *Prompter) PromptPassphrase(prompt string, confirm bool) (cert.Secret, error) {
	first, err := p.readSecret(prompt + ": ")
	if err != nil {
		return cert.Secret{}, err
	}
	defer clear(first)

	if confirm && len(first) > 0 {
		second, err := p.readSecret("Confirm " + strings.ToLower(prompt[:1]) + prompt[1:] + ": ")
		if err != nil {
			return cert.Secret{}, err
		}
		defer clear(second)
		if string(first) != string(second) {
			return cert.Secret{}, NewPassphraseMismatchError()
		}
	}

	return cert.NewSecret(string(first)), nil
}

func (p *Prompter) readSecret(prompt string) ([]byte, error) {
	fmt.Fprint(p.Out, prompt)
	defer fmt.Fprintln(p.Out)

	if p.ReadSecret != nil {
		return p.ReadSecret()
	}
	f, ok := p.In.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil, NewNonInteractivePassphraseError("pass-file")
	}
	return term.ReadPassword(int(f.Fd()))
}

// ReadPassphraseFile reads the first line of path as a passphrase. "-" reads stdin.
func ReadPassphraseFile(path string) (cert.Secret, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return cert.Secret{}, NewPassphraseReadError(path, err)
		}
		defer f.Close()
		r = f
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return cert.Secret{}, NewPassphraseReadError(path, err)
	}
	return cert.NewSecret(strings.TrimRight(line, "\r\n")), nil
}

// IsInteractive checks if the current session is interactive (has a TTY)
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// DisplayError formats and displays an error message to stderr
func DisplayError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// DisplayWarning formats and displays a warning message to stderr
func DisplayWarning(message string) {
	fmt.Fprintf(os.Stderr, "Warning: %s\n", message)
}

// DisplayInfo formats and displays an informational message to stderr
func DisplayInfo(message string) {
	fmt.Fprintf(os.Stderr, "Info: %s\n", message)
}
