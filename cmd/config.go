package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/unknwon/com"

	"certify/internal/config"
	"certify/internal/utils"
)

var (
	configYaml   bool
	configJobs   bool
	configOutput string
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration help and optionally generate example files",
	Long: `Show configuration help for certify.

Use flags to generate example files:
  --yaml  Generate the YAML configuration file (~/.certify.yaml)
  --jobs  Generate an example job file for "certify run" (jobs.yaml)

Every option can be overridden with a CERTIFY_ environment variable, e.g.
CERTIFY_OPENSSL_PATH=/usr/local/bin/openssl or CERTIFY_SUBJECT_COUNTRY=US.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().BoolVar(&configYaml, "yaml", false, "generate the YAML configuration file")
	configCmd.Flags().BoolVar(&configJobs, "jobs", false, "generate an example job file")
	configCmd.Flags().StringVar(&configOutput, "output", "", "output filename (default: ~/.certify.yaml or jobs.yaml)")
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if !configYaml && !configJobs {
		_ = cmd.Help()
		fmt.Fprintln(out, "\nConfiguration keys:")
		for _, key := range []string{
			config.OpenSSLPathOpt, config.DialectOpt, config.PKCS12LegacyOpt, config.WorkDirOpt,
			config.KeySizeOpt, config.DigestOpt, config.NameValidityOpt, config.CNAsSANOpt,
			config.CommandTimeoutOpt, config.IncludeStdoutOpt, config.LogFileOpt, config.VerboseOpt,
			config.SubjectCountryOpt, config.SubjectStateOpt, config.SubjectLocalityOpt,
			config.SubjectOrganizationOpt, config.SubjectOrgUnitOpt, config.SubjectEmailOpt,
		} {
			fmt.Fprintf(out, "  %s\n", key)
		}
		return nil
	}

	if configYaml {
		filename := configOutput
		if filename == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get home directory: %w", err)
			}
			filename = filepath.Join(home, config.ConfigFileName+".yaml")
		}
		if err := writeExample(filename, config.SaveExampleConfig); err != nil {
			return err
		}
		fmt.Fprintf(out, "Example YAML configuration created: %s\n", filename)
	}

	if configJobs {
		filename := configOutput
		if filename == "" || configYaml {
			filename = "jobs.yaml"
		}
		if err := writeExample(filename, config.CreateExampleJobFile); err != nil {
			return err
		}
		fmt.Fprintf(out, "Example job file created: %s\n", filename)
		fmt.Fprintf(out, "  certify run --file %s --dry-run\n", filename)
	}
	return nil
}

// writeExample asks before overwriting an existing file.
func writeExample(filename string, write func(string) error) error {
	if com.IsExist(filename) {
		overwrite, err := utils.NewPrompter().PromptConfirm(fmt.Sprintf("File %s already exists. Overwrite?", filename), false)
		if err != nil {
			return err
		}
		if !overwrite {
			return fmt.Errorf("%s exists, not overwritten", filename)
		}
	}
	if err := write(filename); err != nil {
		return utils.NewFileWriteError("example", err)
	}
	return nil
}
