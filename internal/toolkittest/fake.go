// Package toolkittest provides a fake toolkit for tests. The test binary re-executes
// itself as the fake, so no real OpenSSL is needed.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//		toolkittest.Main()
//		os.Exit(m.Run())
//	}
//
// and then toolkittest.Enable(t) in tests that spawn the fake.
package toolkittest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	EnvFake    = "CERTIFY_FAKE_TOOLKIT"
	EnvVersion = "CERTIFY_FAKE_TOOLKIT_VERSION"
	EnvArgsLog = "CERTIFY_FAKE_TOOLKIT_ARGS"

	DefaultVersion = "OpenSSL 3.0.13 30 Jan 2024 (Library: OpenSSL 3.0.13 30 Jan 2024)"

	// FailStderr is what the fake prints before exiting 1.
	FailStderr = "unable to load certificate\nerror:0480006C:PEM routines::no start line\n"
)

// Main turns the current process into the fake toolkit when EnvFake is set. It
// must run before m.Run so the re-executed binary never reaches the tests.
func Main() {
	if os.Getenv(EnvFake) != "1" {
		return
	}
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// Enable makes children spawned by the test act as the fake and returns the path
// to use as the toolkit binary.
func Enable(t *testing.T) string {
	t.Helper()
	t.Setenv(EnvFake, "1")
	path, err := os.Executable()
	if err != nil {
		t.Fatalf("failed to locate test binary: %v", err)
	}
	return path
}

// RecordArgs makes the fake append each argv to a file and returns its path.
func RecordArgs(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "argv.log")
	t.Setenv(EnvArgsLog, path)
	return path
}

// Behaviour is driven by file names: any argument whose base name contains "fail"
// makes the command fail, "slow" makes it hang until killed.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if logPath := os.Getenv(EnvArgsLog); logPath != "" {
		if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600); err == nil {
			fmt.Fprintln(f, strings.Join(args, " "))
			f.Close()
		}
	}

	if len(args) == 0 {
		fmt.Fprintln(stderr, "usage: openssl command [ options ... ]")
		return 1
	}

	if args[0] == "version" {
		v := os.Getenv(EnvVersion)
		if v == "" {
			v = DefaultVersion
		}
		fmt.Fprintln(stdout, v)
		return 0
	}

	for _, a := range args {
		base := filepath.Base(a)
		if strings.Contains(base, "slow") {
			time.Sleep(time.Minute)
		}
		if strings.Contains(base, "fail") {
			fmt.Fprint(stderr, FailStderr)
			return 1
		}
	}

	var input []byte
	if wantsStdin(args) {
		input, _ = io.ReadAll(stdin)
	}

	var configText []byte
	if cfg := flagValue(args, "-config"); cfg != "" {
		data, err := os.ReadFile(cfg)
		if err != nil {
			fmt.Fprintf(stderr, "Can't open \"%s\" for reading, No such file or directory\n", cfg)
			return 1
		}
		configText = data
	}

	for _, flag := range []string{"-out", "-keyout"} {
		out := flagValue(args, flag)
		if out == "" {
			continue
		}
		content := fmt.Sprintf("%s written by %s\n", flag, args[0])
		if flag == "-out" && configText != nil {
			content += string(configText)
		}
		if input != nil {
			content += "stdin:\n" + string(input)
		}
		if err := os.WriteFile(out, []byte(content), 0o600); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", out, err)
			return 1
		}
	}

	fmt.Fprintf(stderr, "%s done\n", args[0])
	return 0
}

func wantsStdin(args []string) bool {
	return flagValue(args, "-passin") == "stdin" || flagValue(args, "-passout") == "stdin"
}

func flagValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// ReadArgs returns the argv lines recorded by RecordArgs.
func ReadArgs(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read recorded args: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}
