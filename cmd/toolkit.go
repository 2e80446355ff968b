package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// toolkitCmd represents the toolkit command
var toolkitCmd = &cobra.Command{
	Use:   "toolkit",
	Short: "Show the OpenSSL binary, version and dialect in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(cmd)
		defer cancel()

		tk, err := rt.engine.Toolkit(ctx)
		if err != nil {
			return wrapToolkitError(rt.cfg.OpenSSLPath, err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Path:    %s\n", tk.Path)
		fmt.Fprintf(out, "Version: %s\n", tk.Version.Raw)
		fmt.Fprintf(out, "Dialect: %s\n", tk.Dialect.Name())
		if rt.cfg.PKCS12Legacy {
			fmt.Fprintln(out, "PKCS#12: legacy algorithms")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolkitCmd)
}
