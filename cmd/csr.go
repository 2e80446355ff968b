package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"certify/internal/cert"
	"certify/internal/config"
	"certify/internal/utils"
)

var keyPassphrase = passphraseSource{
	askFlag:  "ask-pass",
	fileFlag: "pass-file",
	prompt:   "Key passphrase",
	confirm:  true,
}

// csrCmd represents the csr command
var csrCmd = &cobra.Command{
	Use:   "csr",
	Short: "Generate a private key and certificate signing request",
	Long: `Generate an RSA private key and a certificate signing request with OpenSSL.

The OpenSSL request config is rendered from the subject and SAN flags. Use
--preview to print it without running anything, and --dry-run to print the
command plan. Output files default to <cn>-<year>-<year+validity>.key/.csr in
the work directory, with "*." in the common name written as "wildcard.".

Examples:
  certify csr --cn www.example.com --org "Example Corp" --country US \
      --san dns:www.example.com --san dns:api.example.com --san ip:10.0.0.1
  certify csr --cn "*.example.com" --ask-pass --key-size 4096`,
	Args: cobra.NoArgs,
	RunE: runCSR,
}

func init() {
	rootCmd.AddCommand(csrCmd)
	registerCSRFlags(csrCmd)

	_ = viper.BindPFlag(config.KeySizeOpt, csrCmd.Flags().Lookup("key-size"))
	_ = viper.BindPFlag(config.DigestOpt, csrCmd.Flags().Lookup("digest"))
	_ = viper.BindPFlag(config.CNAsSANOpt, csrCmd.Flags().Lookup("cn-as-san"))
}

func registerCSRFlags(cmd *cobra.Command) {
	cmd.Flags().String("cn", "", "common name (CN)")
	cmd.Flags().String("org", "", "organization (O)")
	cmd.Flags().String("ou", "", "organizational unit (OU)")
	cmd.Flags().String("locality", "", "locality (L)")
	cmd.Flags().String("state", "", "state or province (ST)")
	cmd.Flags().String("country", "", "2-letter country code (C)")
	cmd.Flags().String("email", "", "email address in the subject")
	cmd.Flags().StringArray("san", nil, "subject alternative name as dns:NAME, ip:ADDR or email:ADDR (repeatable; type inferred when omitted)")
	cmd.Flags().Bool("cn-as-san", false, "add the common name as the first DNS SAN")
	cmd.Flags().Int("key-size", 0, "RSA key size in bits (default from key_size, 4096)")
	cmd.Flags().String("digest", "", "signature digest (default from digest, sha256)")
	cmd.Flags().String("out-dir", "", "directory for the key and CSR (default: work directory)")
	cmd.Flags().String("key-out", "", "private key output path")
	cmd.Flags().String("csr-out", "", "CSR output path")
	cmd.Flags().Bool("preview", false, "print the rendered OpenSSL config and exit")
	cmd.Flags().Bool("dry-run", false, "print the command plan and exit")
	keyPassphrase.register(cmd, "private key passphrase (the key is unencrypted without one)")
}

func runCSR(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	prompter := utils.NewPrompter()

	s, err := sessionFromFlags(cmd, rt.cfg, prompter)
	if err != nil {
		return err
	}

	if preview, _ := cmd.Flags().GetBool("preview"); preview {
		fmt.Fprint(cmd.OutOrStdout(), rt.engine.Preview(s))
		return nil
	}

	if err := validateSession(s); err != nil {
		return err
	}

	s.Key.Passphrase, err = keyPassphrase.resolve(cmd, prompter)
	if err != nil {
		return err
	}

	out := csrOutputsFromFlags(cmd, rt.cfg, s.Subject.CommonName(), time.Now())

	ctx, cancel := signalContext(cmd)
	defer cancel()

	plan, err := rt.engine.PlanCSR(ctx, s, out)
	if err != nil {
		return wrapToolkitError(rt.cfg.OpenSSLPath, err)
	}

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		return printPlan(cmd.OutOrStdout(), plan)
	}

	return reportExecution(cmd, rt.engine.Execute(ctx, plan), rt.cfg.IncludeStdout, utils.NewCSRGenerationError)
}

// sessionFromFlags builds the CSR session from flags, config subject defaults
// and, on a terminal, a prompt for a missing common name.
func sessionFromFlags(cmd *cobra.Command, cfg *config.Config, prompter *utils.Prompter) (*cert.Session, error) {
	s := cert.NewSession(cfg.KeySize)
	s.Digest = cfg.Digest

	for flag, field := range map[string]cert.Field{
		"cn":       cert.FieldCommonName,
		"org":      cert.FieldOrganization,
		"ou":       cert.FieldOrganizationalUnit,
		"locality": cert.FieldLocality,
		"state":    cert.FieldState,
		"country":  cert.FieldCountry,
		"email":    cert.FieldEmailAddress,
	} {
		value, _ := cmd.Flags().GetString(flag)
		s.SetField(field, value)
	}
	cfg.Subject.Apply(&s.Subject)

	if s.Subject.CommonName() == "" && utils.IsInteractive() {
		cn, err := prompter.PromptString("Common name", "")
		if err != nil {
			return nil, err
		}
		s.SetField(cert.FieldCommonName, cn)
	}

	if cfg.CNAsSAN && s.Subject.CommonName() != "" {
		if err := s.AddSAN(cert.SANDNS, s.Subject.CommonName()); err != nil {
			return nil, err
		}
	}

	sans, _ := cmd.Flags().GetStringArray("san")
	for _, raw := range sans {
		entry, err := cert.ParseSAN(raw)
		if err != nil {
			return nil, utils.NewSANParseError(raw, err)
		}
		if err := s.AddSAN(entry.Type, entry.Value); err != nil {
			if cfg.CNAsSAN && entry.Type == cert.SANDNS && entry.Value == s.Subject.CommonName() {
				continue
			}
			return nil, utils.NewSANParseError(raw, err)
		}
	}
	return s, nil
}

func csrOutputsFromFlags(cmd *cobra.Command, cfg *config.Config, commonName string, now time.Time) cert.CSROutputs {
	job := config.CSRJob{Subject: config.JobSubject{CommonName: commonName}}
	job.OutDir, _ = cmd.Flags().GetString("out-dir")
	job.Key, _ = cmd.Flags().GetString("key-out")
	job.CSR, _ = cmd.Flags().GetString("csr-out")
	return job.Outputs(cfg, now)
}

// validateSession checks s, pointing the user at --cn when the common name is missing.
func validateSession(s *cert.Session) error {
	err := s.Validate()
	if errors.Is(err, cert.ErrEmptyCommonName) {
		return utils.NewCommonNameRequiredError()
	}
	return err
}
