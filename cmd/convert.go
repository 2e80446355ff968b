package cmd

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"certify/internal/cert"
	"certify/internal/config"
	"certify/internal/utils"
)

var (
	importPassphrase = passphraseSource{
		askFlag:  "ask-import-pass",
		fileFlag: "import-pass-file",
		prompt:   "Import passphrase",
	}
	exportPassphrase = passphraseSource{
		askFlag:  "ask-export-pass",
		fileFlag: "export-pass-file",
		prompt:   "Export passphrase",
		confirm:  true,
	}
)

// roleFlags maps each role to its input and output flag names.
var roleFlags = map[cert.Role][2]string{
	cert.RoleCertificate: {"cert", "out-cert"},
	cert.RoleKey:         {"key", "out-key"},
	cert.RoleBundle:      {"p12", "out-p12"},
	cert.RolePEM:         {"pem", "out-pem"},
}

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert KIND",
	Short: "Convert certificates and keys between formats",
	Long: `Convert certificates and keys between formats with OpenSSL.

Supported kinds:
` + kindHelp() + `
Outputs default to the first input's name with the new extension, placed in
--out-dir or the work directory. Passphrases are read with --ask-*-pass or
--*-pass-file and handed to OpenSSL on stdin.

Examples:
  certify convert "cer+key->p12" --cert server.cer --key server.key --ask-export-pass
  certify convert "p12->cer+key" --p12 server.p12 --ask-import-pass
  certify convert "cer->pem" --cert server.der`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: lo.Map(cert.Kinds(), func(k cert.ConversionKind, _ int) string { return string(k) }),
	RunE:      runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	registerConvertFlags(convertCmd)
}

func registerConvertFlags(cmd *cobra.Command) {
	cmd.Flags().String("cert", "", "certificate input (PEM or DER)")
	cmd.Flags().String("key", "", "private key input")
	cmd.Flags().String("p12", "", "PKCS#12 bundle input")
	cmd.Flags().String("pem", "", "PEM certificate input")
	cmd.Flags().String("out-cert", "", "certificate output")
	cmd.Flags().String("out-key", "", "private key output")
	cmd.Flags().String("out-p12", "", "PKCS#12 bundle output")
	cmd.Flags().String("out-pem", "", "PEM output")
	cmd.Flags().String("out-dir", "", "directory for default outputs (default: work directory)")
	cmd.Flags().Bool("dry-run", false, "print the command plan and exit")
	importPassphrase.register(cmd, "passphrase protecting the input bundle or key")
	exportPassphrase.register(cmd, "passphrase for the produced bundle or key")
}

func kindHelp() string {
	var b strings.Builder
	for _, k := range cert.Kinds() {
		r, _ := cert.RecipeFor(k)
		fmt.Fprintf(&b, "  %-14s %s\n", k, r.Label)
	}
	return b.String()
}

func runConvert(cmd *cobra.Command, args []string) error {
	kind, err := cert.ParseKind(args[0])
	if err != nil {
		return utils.NewUnknownConversionError(args[0],
			lo.Map(cert.Kinds(), func(k cert.ConversionKind, _ int) string { return string(k) }))
	}

	rt, err := loadRuntime()
	if err != nil {
		return err
	}

	job, err := jobFromFlags(cmd, rt.cfg, kind)
	if err != nil {
		return err
	}

	prompter := utils.NewPrompter()
	if job.ImportPassphrase, err = importPassphrase.resolve(cmd, prompter); err != nil {
		return err
	}
	if job.ExportPassphrase, err = exportPassphrase.resolve(cmd, prompter); err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	plan, err := rt.engine.PlanConversion(ctx, job)
	if err != nil {
		return wrapToolkitError(rt.cfg.OpenSSLPath, err)
	}

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		return printPlan(cmd.OutOrStdout(), plan)
	}

	return reportExecution(cmd, rt.engine.Execute(ctx, plan), rt.cfg.IncludeStdout, func(err error) error {
		return utils.NewConversionError(string(kind), err)
	})
}

// jobFromFlags collects the role paths the recipe needs. Flags for roles the
// recipe does not use are rejected so a typo cannot silently be ignored.
func jobFromFlags(cmd *cobra.Command, cfg *config.Config, kind cert.ConversionKind) (*cert.ConversionJob, error) {
	recipe, err := cert.RecipeFor(kind)
	if err != nil {
		return nil, err
	}

	cj := &config.ConvertJob{Kind: string(kind), Inputs: map[string]string{}, Outputs: map[string]string{}}
	cj.OutDir, _ = cmd.Flags().GetString("out-dir")

	for role, flags := range roleFlags {
		in, _ := cmd.Flags().GetString(flags[0])
		out, _ := cmd.Flags().GetString(flags[1])

		if in != "" {
			if !lo.Contains(recipe.Inputs, role) {
				return nil, utils.NewParameterValidationError(flags[0], fmt.Sprintf("not an input of %s", kind))
			}
			cj.Inputs[string(role)] = in
		}
		if out != "" {
			if !lo.Contains(recipe.Outputs, role) {
				return nil, utils.NewParameterValidationError(flags[1], fmt.Sprintf("not an output of %s", kind))
			}
			cj.Outputs[string(role)] = out
		}
	}

	return cj.ConversionJob(cfg)
}
