package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certify/internal/cert"
	"certify/internal/config"
	"certify/internal/engine"
	"certify/internal/logger"
	"certify/internal/toolkittest"
	"certify/internal/utils"
	"certify/internal/validity"
)

func TestMain(m *testing.M) {
	toolkittest.Main()
	os.Exit(m.Run())
}

func testConfig(t *testing.T, set map[string]any) *config.Config {
	t.Helper()
	v := viper.New()
	config.InitDefaults(v)
	for k, val := range set {
		v.Set(k, val)
	}
	cfg, err := config.Load(v)
	require.NoError(t, err)
	return cfg
}

func parsed(t *testing.T, register func(*cobra.Command), args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "test"}
	register(c)
	require.NoError(t, c.ParseFlags(args))
	return c
}

func TestCommandStructure(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{csrCmd, "csr", []string{"cn", "org", "ou", "locality", "state", "country", "email", "san", "cn-as-san", "key-size", "out-dir", "preview", "dry-run", "ask-pass", "pass-file"}},
		{convertCmd, "convert KIND", []string{"cert", "key", "p12", "pem", "out-cert", "out-key", "out-p12", "out-pem", "out-dir", "dry-run", "ask-import-pass", "import-pass-file", "ask-export-pass", "export-pass-file"}},
		{runCmd, "run [--file JOBS]", []string{"file", "dry-run", "force"}},
		{configCmd, "config", []string{"yaml", "jobs", "output"}},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short)
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag --%s", flag)
			}
		})
	}

	assert.Len(t, convertCmd.ValidArgs, len(cert.Kinds()))
}

func TestSessionFromFlags(t *testing.T) {
	cfg := testConfig(t, map[string]any{config.SubjectCountryOpt: "US"})
	c := parsed(t, registerCSRFlags,
		"--cn", "www.example.com",
		"--org", "Example Corp",
		"--san", "dns:api.example.com",
		"--san", "10.0.0.1",
		"--san", "email:ops@example.com",
	)

	s, err := sessionFromFlags(c, cfg, utils.NewPrompter())
	require.NoError(t, err)

	assert.Equal(t, "www.example.com", s.Subject.CommonName())
	assert.Equal(t, "Example Corp", s.Subject.Get(cert.FieldOrganization))
	assert.Equal(t, "US", s.Subject.Get(cert.FieldCountry))
	assert.Equal(t, cfg.KeySize, s.Key.Bits)
	assert.Equal(t, []cert.SANEntry{
		{Type: cert.SANDNS, Value: "api.example.com"},
		{Type: cert.SANIP, Value: "10.0.0.1"},
		{Type: cert.SANEmail, Value: "ops@example.com"},
	}, s.SANs.Entries())
	require.NoError(t, s.Validate())
}

func TestSessionFromFlagsCNAsSAN(t *testing.T) {
	cfg := testConfig(t, map[string]any{config.CNAsSANOpt: true})
	c := parsed(t, registerCSRFlags,
		"--cn", "www.example.com",
		"--san", "dns:www.example.com",
		"--san", "dns:api.example.com",
	)

	s, err := sessionFromFlags(c, cfg, utils.NewPrompter())
	require.NoError(t, err)

	want := []cert.SANEntry{
		{Type: cert.SANDNS, Value: "www.example.com"},
		{Type: cert.SANDNS, Value: "api.example.com"},
	}
	if diff := cmp.Diff(want, s.SANs.Entries()); diff != "" {
		t.Errorf("SANs mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionFromFlagsRejectsDuplicateSAN(t *testing.T) {
	c := parsed(t, registerCSRFlags,
		"--cn", "www.example.com",
		"--san", "dns:a.example.com",
		"--san", "dns:a.example.com",
	)

	_, err := sessionFromFlags(c, testConfig(t, nil), utils.NewPrompter())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dns:a.example.com")
}

func TestCSROutputsFromFlags(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, map[string]any{config.NameValidityOpt: "2y"})
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	c := parsed(t, registerCSRFlags, "--out-dir", dir)
	out := csrOutputsFromFlags(c, cfg, "*.example.com", now)
	assert.Equal(t, filepath.Join(dir, "wildcard.example.com-2026-2028.key"), out.Key)
	assert.Equal(t, filepath.Join(dir, "wildcard.example.com-2026-2028.csr"), out.CSR)

	c = parsed(t, registerCSRFlags, "--out-dir", dir, "--csr-out", filepath.Join(dir, "req.csr"))
	out = csrOutputsFromFlags(c, cfg, "www.example.com", now)
	assert.Equal(t, filepath.Join(dir, "req.csr"), out.CSR)
	assert.Equal(t, validity.Period{Years: 2}, cfg.NameValidity)
}

func TestJobFromFlags(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, nil)

	c := parsed(t, registerConvertFlags,
		"--cert", filepath.Join(dir, "server.cer"),
		"--key", filepath.Join(dir, "server.key"),
		"--out-dir", dir,
	)
	job, err := jobFromFlags(c, cfg, cert.CertKeyToBundle)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "server.cer"), job.Input(cert.RoleCertificate))
	assert.Equal(t, filepath.Join(dir, "server.p12"), job.Output(cert.RoleBundle))
}

func TestJobFromFlagsRejectsUnusedRole(t *testing.T) {
	cfg := testConfig(t, nil)

	c := parsed(t, registerConvertFlags, "--cert", "server.cer", "--p12", "server.p12")
	_, err := jobFromFlags(c, cfg, cert.CertToPEM)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "p12")

	c = parsed(t, registerConvertFlags, "--cert", "server.cer", "--out-key", "server.key")
	_, err = jobFromFlags(c, cfg, cert.CertToPEM)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out-key")
}

func TestPassphraseFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pass.txt")
	require.NoError(t, os.WriteFile(path, []byte("s3cret\nignored\n"), 0o600))

	c := parsed(t, registerConvertFlags, "--export-pass-file", path)
	secret, err := exportPassphrase.resolve(c, utils.NewPrompter())
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(secret.Bytes()))

	secret, err = importPassphrase.resolve(c, utils.NewPrompter())
	require.NoError(t, err)
	assert.False(t, secret.IsSet())
}

func TestConvertBuildTimestamp(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2025-06-11_04:44:50_UTC", "20250611.044450"},
		{"unknown", "unknown"},
		{"20250611", "20250611"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, convertBuildTimestamp(tt.in))
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCSRCommandWritesKeyAndCSR(t *testing.T) {
	bin := toolkittest.Enable(t)
	dir := t.TempDir()

	out, err := execute(t, "csr", "--openssl", bin,
		"--cn", "www.example.com", "--san", "dns:www.example.com",
		"--key-out", filepath.Join(dir, "www.key"), "--csr-out", filepath.Join(dir, "www.csr"))
	require.NoError(t, err, out)

	assert.FileExists(t, filepath.Join(dir, "www.key"))
	csr, err := os.ReadFile(filepath.Join(dir, "www.csr"))
	require.NoError(t, err)
	assert.Contains(t, string(csr), "CN=www.example.com")
	assert.Contains(t, out, "wrote "+filepath.Join(dir, "www.csr"))
}

func TestConvertCommandDryRunWritesNothing(t *testing.T) {
	bin := toolkittest.Enable(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "server.cer")
	require.NoError(t, os.WriteFile(in, []byte("cert"), 0o600))

	out, err := execute(t, "convert", "cer->pem", "--openssl", bin, "--cert", in, "--out-dir", dir, "--dry-run")
	require.NoError(t, err, out)

	assert.Contains(t, out, "x509")
	assert.NoFileExists(t, filepath.Join(dir, "server.pem"))
}

func TestConvertCommandUnknownKind(t *testing.T) {
	_, err := execute(t, "convert", "pfx->jks")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "cer->pem"), err.Error())
}

func TestValidateSessionCommonNameRequired(t *testing.T) {
	s := cert.NewSession(0)
	s.SetField(cert.FieldOrganization, "Example Corp")

	err := validateSession(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use --cn")

	s.SetField(cert.FieldCommonName, "www.example.com")
	assert.NoError(t, validateSession(s))
}

func TestCSRCommandFailureNamesOperation(t *testing.T) {
	bin := toolkittest.Enable(t)
	dir := t.TempDir()

	out, err := execute(t, "csr", "--openssl", bin,
		"--cn", "www.example.com", "--san", "dns:www.example.com",
		"--key-out", filepath.Join(dir, "www.key"), "--csr-out", filepath.Join(dir, "fail.csr"))
	require.Error(t, err, out)
	assert.Contains(t, err.Error(), "failed to generate certificate signing request")
}

func TestConvertCommandFailureNamesKind(t *testing.T) {
	bin := toolkittest.Enable(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "fail.cer")
	require.NoError(t, os.WriteFile(in, []byte("cert"), 0o600))

	out, err := execute(t, "convert", "cer->pem", "--openssl", bin, "--cert", in, "--out-dir", dir, "--dry-run=false")
	require.Error(t, err, out)
	assert.Contains(t, err.Error(), "conversion cer->pem failed")
}

func TestEngineRebuiltOnToolkitSettingChange(t *testing.T) {
	log := &logger.TestLogger{T: t}
	cfg := testConfig(t, nil)
	rt := &runtimeEnv{cfg: cfg, log: log, engine: engine.New(engineOptions(cfg, log))}
	first := rt.engine

	assert.Same(t, first, rt.engineFor(testConfig(t, map[string]any{config.KeySizeOpt: 4096})))

	changed := testConfig(t, map[string]any{config.OpenSSLPathOpt: "/opt/openssl/bin/openssl"})
	second := rt.engineFor(changed)
	assert.NotSame(t, first, second)
	assert.Same(t, changed, rt.cfg)

	assert.NotSame(t, second, rt.engineFor(testConfig(t, map[string]any{config.CommandTimeoutOpt: "30s"})))
}
