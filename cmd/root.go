package cmd

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"certify/internal/config"
	"certify/internal/engine"
	"certify/internal/logger"
	"certify/internal/utils"
)

var (
	cfgFile     string
	workDir     string
	opensslPath string
	verbose     bool

	// Version information
	version   string
	gitCommit string
	buildTime string
	goVersion string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "certify",
	Short: "Generate CSRs and convert certificates with OpenSSL",
	Long: `certify drives the OpenSSL command line to generate private keys and
certificate signing requests, and to convert certificates and keys between
PEM, DER and PKCS#12 encodings.

Passphrases are passed to OpenSSL on stdin and never appear on its command line.`,
	SilenceUsage: true,
	Version:      "", // Will be set dynamically
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.certify.yaml or ./.certify.yaml)")
	rootCmd.PersistentFlags().StringVar(&workDir, "workdir", "", "directory relative paths and default outputs are resolved in")
	rootCmd.PersistentFlags().StringVar(&opensslPath, "openssl", "", "OpenSSL binary name or path (default: openssl)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag(config.WorkDirOpt, rootCmd.PersistentFlags().Lookup("workdir"))
	_ = viper.BindPFlag(config.OpenSSLPathOpt, rootCmd.PersistentFlags().Lookup("openssl"))
	_ = viper.BindPFlag(config.VerboseOpt, rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	config.InitDefaults(viper.GetViper())

	if err := config.ReadConfigFile(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if used := viper.ConfigFileUsed(); used != "" && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
	config.ReloadConfig()
}

// runtimeEnv is what every operation command needs.
type runtimeEnv struct {
	cfg    *config.Config
	log    logger.Logger
	engine *engine.Engine
}

// loadRuntime decodes the configuration and builds the logger and engine.
func loadRuntime() (*runtimeEnv, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, utils.NewConfigurationError("invalid configuration", err)
	}

	log, err := logger.NewLogger(logger.Options{Verbose: cfg.Verbose, LogFile: cfg.LogFile})
	if err != nil {
		return nil, err
	}

	return &runtimeEnv{cfg: cfg, log: log, engine: engine.New(engineOptions(cfg, log))}, nil
}

func engineOptions(cfg *config.Config, log logger.Logger) engine.Options {
	return engine.Options{
		Binary:       cfg.OpenSSLPath,
		Dialect:      cfg.Dialect,
		LegacyPKCS12: cfg.PKCS12Legacy,
		Timeout:      cfg.CommandTimeout,
		Logger:       log,
	}
}

// engineFor returns the runtime's engine, rebuilding it first when cfg changes
// any of the toolkit settings the current engine was built with.
func (rt *runtimeEnv) engineFor(cfg *config.Config) *engine.Engine {
	if cfg.OpenSSLPath != rt.cfg.OpenSSLPath || cfg.Dialect != rt.cfg.Dialect ||
		cfg.PKCS12Legacy != rt.cfg.PKCS12Legacy || cfg.CommandTimeout != rt.cfg.CommandTimeout {
		rt.log.Info("toolkit settings changed, rebuilding the engine")
		rt.engine = engine.New(engineOptions(cfg, rt.log))
	}
	rt.cfg = cfg
	return rt.engine
}

// SetVersion sets the version information for the application
func SetVersion(ver, commit, buildTimeArg, goVer string) {
	version = ver
	gitCommit = commit
	buildTime = buildTimeArg
	goVersion = goVer

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(getVersionTemplate())
}

// getVersionTemplate returns a detailed version template
func getVersionTemplate() string {
	return fmt.Sprintf(`certify
  Version: %s
  Commit: %s
  Build Timestamp: %s
  Go: %s (%s)
`, version, gitCommit, convertBuildTimestamp(buildTime), goVersion, getPlatform())
}

// convertBuildTimestamp converts 2025-06-11_04:44:50_UTC to 20250611.044450
func convertBuildTimestamp(buildTime string) string {
	if buildTime == "unknown" {
		return "unknown"
	}

	parts := strings.Split(buildTime, "_")
	if len(parts) >= 2 {
		datePart := strings.ReplaceAll(parts[0], "-", "")
		timePart := strings.ReplaceAll(parts[1], ":", "")
		return fmt.Sprintf("%s.%s", datePart, timePart)
	}

	return buildTime
}

// getPlatform returns the current platform information
func getPlatform() string {
	return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
}
