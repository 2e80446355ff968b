package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/unknwon/com"

	"certify/internal/cert"
	"certify/internal/openssl"
	"certify/internal/validity"
)

const (
	EnvPrefix      = "CERTIFY"
	ConfigFileName = ".certify"
)

// Config represents the application configuration
type Config struct {
	// Toolkit
	OpenSSLPath  string `mapstructure:"openssl_path"`
	Dialect      string `mapstructure:"dialect"`
	PKCS12Legacy bool   `mapstructure:"pkcs12_legacy"`

	// Key and CSR defaults
	WorkDir      string          `mapstructure:"workdir"`
	KeySize      int             `mapstructure:"key_size"`
	Digest       string          `mapstructure:"digest"`
	NameValidity validity.Period `mapstructure:"name_validity"`
	CNAsSAN      bool            `mapstructure:"cn_as_san"`
	Subject      SubjectDefaults `mapstructure:"subject"`

	// Execution and output
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	IncludeStdout  bool          `mapstructure:"include_stdout"`
	LogFile        string        `mapstructure:"log_file"`
	Verbose        bool          `mapstructure:"verbose"`
}

// SubjectDefaults pre-fill subject fields the caller leaves empty.
type SubjectDefaults struct {
	Country      string `mapstructure:"country"`
	State        string `mapstructure:"state"`
	Locality     string `mapstructure:"locality"`
	Organization string `mapstructure:"organization"`
	OrgUnit      string `mapstructure:"org_unit"`
	Email        string `mapstructure:"email"`
}

// Apply sets every default onto s where the field is still empty.
func (d SubjectDefaults) Apply(s *cert.Subject) {
	for f, v := range map[cert.Field]string{
		cert.FieldCountry:            d.Country,
		cert.FieldState:              d.State,
		cert.FieldLocality:           d.Locality,
		cert.FieldOrganization:       d.Organization,
		cert.FieldOrganizationalUnit: d.OrgUnit,
		cert.FieldEmailAddress:       d.Email,
	} {
		if s.Get(f) == "" {
			s.SetField(f, v)
		}
	}
}

var envKeyReplacer = strings.NewReplacer(".", "_")

var (
	mu           sync.RWMutex
	globalConfig *Config
)

// InitDefaults initializes default configuration values on v.
func InitDefaults(v *viper.Viper) {
	v.SetDefault(OpenSSLPathOpt, openssl.DefaultBinary)
	v.SetDefault(DialectOpt, "")
	v.SetDefault(PKCS12LegacyOpt, false)

	v.SetDefault(WorkDirOpt, ".")
	v.SetDefault(KeySizeOpt, cert.DefaultKeySize)
	v.SetDefault(DigestOpt, cert.DefaultDigest)
	v.SetDefault(NameValidityOpt, "10y")
	v.SetDefault(CNAsSANOpt, false)

	v.SetDefault(CommandTimeoutOpt, "0s")
	v.SetDefault(IncludeStdoutOpt, false)
	v.SetDefault(LogFileOpt, "")
	v.SetDefault(VerboseOpt, false)

	for _, key := range []string{SubjectCountryOpt, SubjectStateOpt, SubjectLocalityOpt,
		SubjectOrganizationOpt, SubjectOrgUnitOpt, SubjectEmailOpt} {
		v.SetDefault(key, "")
	}

	// Environment variable overrides, e.g. CERTIFY_OPENSSL_PATH or CERTIFY_SUBJECT_COUNTRY
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
}

// ReadConfigFile loads path, or .certify.yaml from the home and working
// directories when path is empty. A missing default file is not an error.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		if !com.IsFile(path) {
			return fmt.Errorf("config file %s not found", path)
		}
		v.SetConfigFile(path)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(ConfigFileName)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && path == "" {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetConfig returns the configuration decoded from the global viper instance,
// falling back to defaults if decoding fails.
func GetConfig() *Config {
	mu.RLock()
	cfg := globalConfig
	mu.RUnlock()
	if cfg != nil {
		return cfg
	}

	cfg, err := Load(viper.GetViper())
	if err != nil {
		fresh := viper.New()
		InitDefaults(fresh)
		cfg, _ = Load(fresh)
	}

	mu.Lock()
	globalConfig = cfg
	mu.Unlock()
	return cfg
}

// ReloadConfig drops the cached configuration so the next GetConfig re-reads it.
func ReloadConfig() {
	mu.Lock()
	globalConfig = nil
	mu.Unlock()
}

// Watch reloads the configuration whenever the config file changes and calls
// onChange with the new values. Invalid edits are reported and ignored.
func Watch(v *viper.Viper, onChange func(*Config, error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(v)
		if err == nil {
			mu.Lock()
			globalConfig = cfg
			mu.Unlock()
		}
		if onChange != nil {
			onChange(cfg, err)
		}
	})
	v.WatchConfig()
}

// Validate validates the configuration and returns any errors
func (c *Config) Validate() error {
	if c.KeySize < cert.MinKeySize {
		return fmt.Errorf("%s must be at least %d", KeySizeOpt, cert.MinKeySize)
	}
	if c.CommandTimeout < 0 {
		return fmt.Errorf("%s must not be negative", CommandTimeoutOpt)
	}
	if c.Dialect != "" {
		if _, err := openssl.DialectByName(c.Dialect, false); err != nil {
			return fmt.Errorf("%s: %w", DialectOpt, err)
		}
	}
	if c.NameValidity.IsZero() {
		return fmt.Errorf("%s must be a positive period", NameValidityOpt)
	}
	if c.WorkDir != "" && !com.IsDir(c.WorkDir) {
		return fmt.Errorf("%s %s is not a directory", WorkDirOpt, c.WorkDir)
	}
	if c.Subject.Country != "" {
		s := cert.Subject{}
		s.SetField(cert.FieldCountry, c.Subject.Country)
		s.SetField(cert.FieldCommonName, "placeholder")
		if err := s.Validate(); err != nil {
			return fmt.Errorf("subject.country: %w", err)
		}
	}
	return nil
}

// ResolvePath anchors a relative path in the work directory.
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.WorkDir == "" {
		return path
	}
	return filepath.Join(c.WorkDir, path)
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		stringToPeriodHookFunc(),
	)
}

// stringToPeriodHookFunc decodes "10y", "1y6m" or plain day counts into a Period.
func stringToPeriodHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(validity.Period{}) {
			return data, nil
		}
		switch f.Kind() {
		case reflect.String:
			return validity.Parse(data.(string))
		case reflect.Int, reflect.Int64:
			return validity.Parse(fmt.Sprint(data))
		}
		return data, nil
	}
}

// SaveExampleConfig writes an example .certify.yaml with every option at its default.
func SaveExampleConfig(filename string) error {
	content := `# certify configuration
# Every option can also be set as CERTIFY_<OPTION>, e.g. CERTIFY_KEY_SIZE=3072
# or CERTIFY_SUBJECT_COUNTRY=US.

# OpenSSL binary name or path
openssl_path: openssl
# Force a dialect (openssl-1.1 or openssl-3); detected from the version when empty
dialect: ""
# Add -legacy when writing PKCS#12 bundles with OpenSSL 3
pkcs12_legacy: false

# Directory relative paths and default outputs are resolved in
workdir: .
key_size: 4096
digest: sha256
# Validity span used in default file names, e.g. 1y, 18m, 10y
name_validity: 10y
# Add the common name as the first DNS SAN
cn_as_san: false

# Subject fields used when a request leaves them empty
subject:
  country: ""
  state: ""
  locality: ""
  organization: ""
  org_unit: ""
  email: ""

# Per-step timeout, 0s for none
command_timeout: 0s
# Include OpenSSL stdout in the execution log
include_stdout: false
log_file: ""
verbose: false
`
	return os.WriteFile(filename, []byte(content), 0o600)
}
