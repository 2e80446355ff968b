package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"certify/internal/cert"
	"certify/internal/engine"
	"certify/internal/openssl"
	"certify/internal/report"
	"certify/internal/utils"
)

// signalContext is cancelled on the first interrupt so the running step is killed
// and the plan reports as cancelled.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// passphraseSource resolves a passphrase from a file flag or an interactive prompt.
type passphraseSource struct {
	askFlag  string
	fileFlag string
	prompt   string
	confirm  bool
}

func (p passphraseSource) register(cmd *cobra.Command, what string) {
	cmd.Flags().Bool(p.askFlag, false, "prompt for the "+what)
	cmd.Flags().String(p.fileFlag, "", "read the "+what+" from the first line of a file (- for stdin)")
}

func (p passphraseSource) resolve(cmd *cobra.Command, prompter *utils.Prompter) (cert.Secret, error) {
	if path, _ := cmd.Flags().GetString(p.fileFlag); path != "" {
		return utils.ReadPassphraseFile(path)
	}
	if ask, _ := cmd.Flags().GetBool(p.askFlag); ask {
		if prompter.ReadSecret == nil && !utils.IsInteractive() {
			return cert.Secret{}, utils.NewNonInteractivePassphraseError(p.fileFlag)
		}
		return prompter.PromptPassphrase(p.prompt, p.confirm)
	}
	return cert.Secret{}, nil
}

// printPlan writes the plan summary as YAML.
func printPlan(w io.Writer, plan *openssl.Plan) error {
	data, err := plan.YAML()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// reportExecution prints the outcome and log. A failure's error is passed
// through wrap.
func reportExecution(cmd *cobra.Command, x *engine.Execution, includeStdout bool, wrap func(error) error) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	switch x.Outcome.Kind {
	case report.Success:
		for _, path := range x.Plan.Writes() {
			fmt.Fprintf(out, "wrote %s\n", path)
		}
		if verbose {
			fmt.Fprint(errOut, x.Log(report.LogOptions{IncludeStdout: includeStdout}))
		}
		return nil
	case report.Cancelled:
		fmt.Fprintln(errOut, "Operation cancelled")
		fmt.Fprint(errOut, x.Log(report.LogOptions{IncludeStdout: includeStdout}))
		return errCancelled
	default:
		fmt.Fprint(errOut, x.Log(report.LogOptions{IncludeStdout: includeStdout}))
		return wrap(x.Err())
	}
}

var errCancelled = errors.New("cancelled")

// wrapToolkitError adds an installation hint when OpenSSL is missing.
func wrapToolkitError(binary string, err error) error {
	if openssl.IsNotFound(err) {
		return utils.NewToolkitNotFoundError(binary, err)
	}
	return err
}
