package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certify/internal/cert"
	"certify/internal/logger"
	"certify/internal/openssl"
	"certify/internal/report"
	"certify/internal/runner"
	"certify/internal/toolkittest"
)

func TestMain(m *testing.M) {
	toolkittest.Main()
	os.Exit(m.Run())
}

type spyRunner struct {
	mu    sync.Mutex
	calls int
}

func (s *spyRunner) Run(ctx context.Context, inv openssl.Invocation) runner.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return runner.Result{Label: inv.Label, Status: runner.StatusCompleted, Started: true}
}

func fakeEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	opts.Binary = toolkittest.Enable(t)
	opts.ScratchDir = t.TempDir()
	if opts.Logger == nil {
		opts.Logger = &logger.TestLogger{T: t}
	}
	return New(opts)
}

func validSession() *cert.Session {
	s := cert.NewSession(2048)
	s.SetField(cert.FieldCommonName, "www.example.com")
	s.SetField(cert.FieldOrganization, "Example")
	return s
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	return path
}

func TestEmptyCommonNameSpawnsNothing(t *testing.T) {
	spy := &spyRunner{}
	e := New(Options{Runner: spy, Binary: "certify-no-such-toolkit"})
	dir := t.TempDir()

	s := cert.NewSession(2048)
	s.SetField(cert.FieldOrganization, "Example")

	_, err := e.GenerateCSR(context.Background(), s, cert.CSROutputs{
		Key: filepath.Join(dir, "a.key"), CSR: filepath.Join(dir, "a.csr"),
	})
	require.Error(t, err)
	assert.True(t, cert.IsValidation(err))
	assert.ErrorIs(t, err, cert.ErrEmptyCommonName)
	assert.Equal(t, 0, spy.calls)
}

func TestToolkitNotFoundIsCached(t *testing.T) {
	spy := &spyRunner{}
	e := New(Options{Runner: spy, Binary: "certify-no-such-toolkit"})
	dir := t.TempDir()
	out := cert.CSROutputs{Key: filepath.Join(dir, "a.key"), CSR: filepath.Join(dir, "a.csr")}

	_, err := e.GenerateCSR(context.Background(), validSession(), out)
	assert.ErrorIs(t, err, openssl.ErrToolkitNotFound)

	_, err = e.Toolkit(context.Background())
	assert.True(t, openssl.IsNotFound(err))
	assert.Equal(t, 0, spy.calls)
}

func TestToolkitDetectionRetriedAfterCancel(t *testing.T) {
	e := fakeEngine(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Toolkit(ctx)
	require.ErrorIs(t, err, openssl.ErrVersionProbe)
	assert.False(t, openssl.IsNotFound(err))

	tk, err := e.Toolkit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, openssl.DialectOpenSSL3, tk.Dialect.Name())

	again, err := e.Toolkit(context.Background())
	require.NoError(t, err)
	assert.Same(t, tk, again)
}

func TestToolkitDetection(t *testing.T) {
	t.Setenv(toolkittest.EnvVersion, "OpenSSL 1.1.1w  11 Sep 2023")
	e := fakeEngine(t, Options{})

	tk, err := e.Toolkit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, tk.Version.Major)
	assert.Equal(t, openssl.DialectOpenSSL11, tk.Dialect.Name())

	forced := fakeEngine(t, Options{Dialect: openssl.DialectOpenSSL3})
	tk, err = forced.Toolkit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, openssl.DialectOpenSSL3, tk.Dialect.Name())
}

func TestGenerateCSR(t *testing.T) {
	e := fakeEngine(t, Options{})
	dir := t.TempDir()
	out := cert.CSROutputs{Key: filepath.Join(dir, "a.key"), CSR: filepath.Join(dir, "a.csr")}

	s := validSession()
	require.NoError(t, s.AddSAN(cert.SANDNS, "www.example.com"))
	require.NoError(t, s.AddSAN(cert.SANIP, "10.0.0.1"))

	x, err := e.GenerateCSR(context.Background(), s, out)
	require.NoError(t, err)
	assert.Equal(t, report.Success, x.Outcome.Kind, x.Log(report.LogOptions{}))
	assert.NoError(t, x.Err())

	csr, err := os.ReadFile(out.CSR)
	require.NoError(t, err)
	assert.Contains(t, string(csr), "CN=www.example.com")
	assert.Contains(t, string(csr), "DNS.1=www.example.com")
	assert.Contains(t, string(csr), "IP.1=10.0.0.1")
	assert.FileExists(t, out.Key)

	for _, f := range x.Plan.Scratch {
		assert.NoFileExists(t, f.Path)
	}
}

func TestGenerateCSRPassphraseNeverLogged(t *testing.T) {
	rec := &logger.RecordingLogger{}
	e := fakeEngine(t, Options{Logger: rec})
	argv := toolkittest.RecordArgs(t)
	dir := t.TempDir()
	out := cert.CSROutputs{Key: filepath.Join(dir, "a.key"), CSR: filepath.Join(dir, "a.csr")}

	s := validSession()
	s.Key.Passphrase = cert.NewSecret("correct horse")

	x, err := e.GenerateCSR(context.Background(), s, out)
	require.NoError(t, err)
	require.Equal(t, report.Success, x.Outcome.Kind)

	key, err := os.ReadFile(out.Key)
	require.NoError(t, err)
	assert.Contains(t, string(key), "stdin:\ncorrect horse\n")

	for _, line := range toolkittest.ReadArgs(t, argv) {
		assert.NotContains(t, line, "correct horse")
	}
	for _, msg := range rec.All() {
		assert.NotContains(t, msg, "correct horse")
	}
	assert.NotContains(t, x.Log(report.LogOptions{IncludeStdout: true}), "correct horse")
}

func TestConvertFailureSkipsSecondStep(t *testing.T) {
	e := fakeEngine(t, Options{})
	dir := t.TempDir()

	job := cert.NewConversionJob(cert.BundleToCertKey)
	job.Inputs[cert.RoleBundle] = touch(t, dir, "fail.p12")
	job.ImportPassphrase = cert.NewSecret("wrong")
	require.NoError(t, job.WithDefaultOutputs(dir))

	x, err := e.Convert(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, x.Results, 2)
	assert.Equal(t, report.Failure, x.Outcome.Kind)
	assert.Equal(t, 0, x.Outcome.Step)
	assert.Contains(t, x.Outcome.Stderr, "no start line")
	assert.Equal(t, runner.StatusNotRun, x.Results[1].Status)
	assert.NoFileExists(t, job.Output(cert.RoleKey))

	var execErr *report.ExecutionError
	require.ErrorAs(t, x.Err(), &execErr)
	assert.Equal(t, 0, execErr.Step)
}

func TestConvertCancelledDuringBundleToPEM(t *testing.T) {
	e := fakeEngine(t, Options{})
	dir := t.TempDir()

	job := cert.NewConversionJob(cert.BundleToPEM)
	job.Inputs[cert.RoleBundle] = touch(t, dir, "slow.p12")
	require.NoError(t, job.WithDefaultOutputs(dir))

	plan, err := e.PlanConversion(context.Background(), job)
	require.NoError(t, err)

	h := e.Start(context.Background(), plan)
	time.Sleep(300 * time.Millisecond)
	h.Cancel()

	select {
	case <-h.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("conversion did not stop after cancel")
	}

	x := h.Wait()
	assert.Equal(t, report.Cancelled, x.Outcome.Kind)
	assert.NoError(t, x.Err())
}

func TestConvertValidationSpawnsNothing(t *testing.T) {
	spy := &spyRunner{}
	tk, err := openssl.NewToolkit("/usr/bin/openssl", openssl.Version{Family: openssl.FamilyOpenSSL, Major: 3}, openssl.DetectOptions{})
	require.NoError(t, err)
	e := New(Options{Runner: spy, Toolkit: tk})

	job := cert.NewConversionJob(cert.CertKeyToBundle)
	_, err = e.Convert(context.Background(), job)
	assert.ErrorIs(t, err, openssl.ErrMissingInput)
	assert.Equal(t, 0, spy.calls)

	dir := t.TempDir()
	job = cert.NewConversionJob(cert.CertKeyToBundle)
	job.Inputs[cert.RoleCertificate] = filepath.Join(dir, "missing.cer")
	job.Inputs[cert.RoleKey] = touch(t, dir, "server.key")
	job.Outputs[cert.RoleBundle] = filepath.Join(dir, "server.p12")
	_, err = e.Convert(context.Background(), job)
	assert.ErrorIs(t, err, openssl.ErrInvalidPath)
	assert.True(t, cert.IsValidation(err))
	assert.Equal(t, 0, spy.calls)
	assert.NoFileExists(t, filepath.Join(dir, "server.p12"))
}

func TestPreviewTracksEdits(t *testing.T) {
	e := New(Options{})
	s := validSession()
	before := e.Preview(s)

	require.NoError(t, s.AddSAN(cert.SANDNS, "api.example.com"))
	after := e.Preview(s)

	assert.NotContains(t, before, "[alt_names]")
	assert.Contains(t, after, "DNS.1=api.example.com")
	assert.Equal(t, after, e.Preview(s))
}
