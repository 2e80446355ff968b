package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/unknwon/com"

	"certify/internal/config"
	"certify/internal/engine"
	"certify/internal/openssl"
	"certify/internal/report"
	"certify/internal/utils"
)

var (
	runFile   string
	runDryRun bool
	runForce  bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [--file JOBS]",
	Short: "Run a YAML file of CSR and conversion jobs",
	Long: `Run the CSR and conversion jobs of a YAML job file in order.

A failed job stops the run unless the job sets continueOnError. CSR jobs whose
key and CSR both exist already are skipped unless --force is given. Passphrases
are read from the environment variables the jobs name.

Example usage:
  certify run                          # Run jobs.yaml
  certify run --file release.yaml      # Run a specific job file
  certify run --dry-run                # Print each job's command plan`,
	Args: cobra.NoArgs,
	RunE: runJobs,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFile, "file", "f", "jobs.yaml", "job file to run")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "print each job's command plan without running it")
	runCmd.Flags().BoolVar(&runForce, "force", false, "regenerate keys and CSRs that already exist")
}

func runJobs(cmd *cobra.Command, args []string) error {
	if !com.IsFile(runFile) {
		return utils.NewFileReadError("job file", fmt.Errorf("%s does not exist", runFile))
	}

	jf, err := config.LoadJobFile(runFile)
	if err != nil {
		return utils.NewConfigurationError("failed to load job file", err)
	}

	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	if viper.ConfigFileUsed() != "" {
		config.Watch(viper.GetViper(), func(_ *config.Config, err error) {
			if err != nil {
				rt.log.Warning("ignoring config change: %v", err)
				return
			}
			rt.log.Info("config file changed, applying it from the next job")
		})
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Running %s: %d jobs\n\n", jf.Name, len(jf.Jobs))

	failed := 0
	for i, job := range jf.Jobs {
		fmt.Fprintf(out, "Job %d: %s\n", i+1, job.Name)

		// Settings may change between jobs when the config file is watched.
		cfg := config.GetConfig()

		err := runJob(ctx, cmd, rt.engineFor(cfg), cfg, &job)
		if err == nil {
			fmt.Fprintln(out, "  done")
			fmt.Fprintln(out)
			continue
		}

		failed++
		fmt.Fprintf(out, "  failed: %v\n", err)
		if ctx.Err() != nil {
			return errCancelled
		}
		if !job.ContinueOnError {
			return utils.NewJobFailedError(job.Name, err)
		}
		fmt.Fprintln(out, "  continuing")
		fmt.Fprintln(out)
	}

	if failed > 0 {
		return utils.NewBatchError(failed, len(jf.Jobs))
	}
	if !runDryRun {
		fmt.Fprintf(out, "Completed %d jobs\n", len(jf.Jobs))
	}
	return nil
}

func runJob(ctx context.Context, cmd *cobra.Command, eng *engine.Engine, cfg *config.Config, job *config.Job) error {
	var plan *openssl.Plan

	switch {
	case job.CSR != nil:
		s, err := job.CSR.Session(cfg)
		if err != nil {
			return err
		}
		if err := validateSession(s); err != nil {
			return err
		}
		outputs := job.CSR.Outputs(cfg, time.Now())
		if !runForce && lo.EveryBy([]string{outputs.Key, outputs.CSR}, com.IsFile) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s and %s exist, skipping\n", outputs.Key, outputs.CSR)
			return nil
		}
		if plan, err = eng.PlanCSR(ctx, s, outputs); err != nil {
			return wrapToolkitError(cfg.OpenSSLPath, err)
		}
	default:
		cj, err := job.Convert.ConversionJob(cfg)
		if err != nil {
			return err
		}
		if plan, err = eng.PlanConversion(ctx, cj); err != nil {
			return wrapToolkitError(cfg.OpenSSLPath, err)
		}
	}

	if runDryRun {
		return printPlan(cmd.OutOrStdout(), plan)
	}

	x := eng.Execute(ctx, plan)
	switch x.Outcome.Kind {
	case report.Success:
	case report.Cancelled:
		return errCancelled
	default:
		fmt.Fprint(cmd.ErrOrStderr(), x.Log(report.LogOptions{IncludeStdout: cfg.IncludeStdout}))
		if job.CSR != nil {
			return utils.NewCSRGenerationError(x.Err())
		}
		return utils.NewConversionError(job.Convert.Kind, x.Err())
	}
	for _, path := range plan.Writes() {
		fmt.Fprintf(cmd.OutOrStdout(), "  wrote %s\n", path)
	}
	return nil
}
