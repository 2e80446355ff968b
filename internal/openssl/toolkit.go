package openssl

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const DefaultBinary = "openssl"

// Toolkit is a located and version-probed toolkit binary with its dialect.
type Toolkit struct {
	Path    string
	Version Version
	Dialect Dialect
}

// DetectOptions tune toolkit detection.
type DetectOptions struct {
	// Dialect forces a dialect by name instead of deriving it from the version.
	Dialect string
	// LegacyPKCS12 adds -legacy to PKCS#12 commands on OpenSSL 3.
	LegacyPKCS12 bool
}

// Detect locates the toolkit on the search path and probes its version. A missing
// binary yields ErrToolkitNotFound.
func Detect(ctx context.Context, binary string, opts DetectOptions) (*Toolkit, error) {
	if binary == "" {
		binary = DefaultBinary
	}

	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrToolkitNotFound, binary, err)
	}

	output, err := exec.CommandContext(ctx, path, "version").CombinedOutput()
	if err != nil {
		if len(output) == 0 {
			return nil, fmt.Errorf("%w: %v", ErrVersionProbe, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrVersionProbe, strings.TrimSpace(string(output)), err)
	}

	version, err := ParseVersion(string(output))
	if err != nil {
		return nil, err
	}

	return NewToolkit(path, version, opts)
}

// NewToolkit builds a Toolkit for an already known binary and version.
func NewToolkit(path string, version Version, opts DetectOptions) (*Toolkit, error) {
	dialect := SelectDialect(version, opts.LegacyPKCS12)
	if opts.Dialect != "" {
		forced, err := DialectByName(opts.Dialect, opts.LegacyPKCS12)
		if err != nil {
			return nil, err
		}
		dialect = forced
	}
	return &Toolkit{Path: path, Version: version, Dialect: dialect}, nil
}

// IsNotFound reports whether err means the toolkit binary is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrToolkitNotFound)
}
