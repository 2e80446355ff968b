package openssl

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Dialect isolates argument syntax that differs between toolkit versions. It is
// selected once per engine and only produces argument vectors; passphrases are
// always requested from stdin and never appear in them.
type Dialect interface {
	Name() string
	GenerateCSR(a CSRArgs) []string
	PKCS12Export(a ExportArgs) []string
	PKCS12Import(a ImportArgs) []string
	PEMConvert(in, out string) []string
	ProtectKey(a ProtectArgs) []string
}

// CSRArgs describe a combined key + CSR generation.
type CSRArgs struct {
	ConfigPath string
	KeyPath    string
	CSRPath    string
	Bits       int
	Encrypt    bool
}

// ExportArgs describe building a PKCS#12 bundle.
type ExportArgs struct {
	CertPath  string
	KeyPath   string
	OutPath   string
	KeyPassIn bool
	PassOut   bool
}

// ImportMode selects what a PKCS#12 import extracts.
type ImportMode int

const (
	ImportAll ImportMode = iota
	ImportCertsOnly
	ImportKeysOnly
)

// ImportArgs describe reading a PKCS#12 bundle.
type ImportArgs struct {
	InPath     string
	OutPath    string
	Mode       ImportMode
	PassIn     bool
	EncryptKey bool
}

// ProtectArgs describe re-encrypting a private key.
type ProtectArgs struct {
	InPath  string
	OutPath string
	PassIn  bool
}

const (
	DialectOpenSSL11 = "openssl-1.1"
	DialectOpenSSL3  = "openssl-3"
)

// DialectByName returns a dialect by its name; legacyPKCS12 only affects openssl-3.
func DialectByName(name string, legacyPKCS12 bool) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case DialectOpenSSL11:
		return openSSL11{}, nil
	case DialectOpenSSL3:
		return openSSL3{legacyPKCS12: legacyPKCS12}, nil
	default:
		return nil, fmt.Errorf("%w: %s (supported: %s, %s)", ErrUnknownDialect, name, DialectOpenSSL11, DialectOpenSSL3)
	}
}

// SelectDialect maps a probed version to its dialect. OpenSSL 3+ gets openssl-3;
// OpenSSL 1.x and LibreSSL share the older syntax.
func SelectDialect(v Version, legacyPKCS12 bool) Dialect {
	if v.Family == FamilyOpenSSL && v.Major >= 3 {
		return openSSL3{legacyPKCS12: legacyPKCS12}
	}
	return openSSL11{}
}

func passArg(stdin bool) string {
	if stdin {
		return "stdin"
	}
	return "pass:"
}

// openSSL11 covers OpenSSL 1.0/1.1 and LibreSSL.
type openSSL11 struct{}

func (openSSL11) Name() string { return DialectOpenSSL11 }

func (openSSL11) GenerateCSR(a CSRArgs) []string {
	return csrArgs(a, "-nodes")
}

func (openSSL11) PKCS12Export(a ExportArgs) []string {
	return exportArgs(a)
}

func (openSSL11) PKCS12Import(a ImportArgs) []string {
	return importArgs(a, "-nodes")
}

// PEMConvert names DER input explicitly since 1.1 only reads PEM by default.
func (openSSL11) PEMConvert(in, out string) []string {
	args := []string{"x509", "-in", in}
	if strings.EqualFold(filepath.Ext(in), ".der") {
		args = append(args, "-inform", "DER")
	}
	return append(args, "-out", out, "-outform", "PEM")
}

func (openSSL11) ProtectKey(a ProtectArgs) []string {
	return protectArgs(a)
}

type openSSL3 struct {
	legacyPKCS12 bool
}

func (openSSL3) Name() string { return DialectOpenSSL3 }

func (openSSL3) GenerateCSR(a CSRArgs) []string {
	return csrArgs(a, "-noenc")
}

func (d openSSL3) PKCS12Export(a ExportArgs) []string {
	return d.withLegacy(exportArgs(a))
}

func (d openSSL3) PKCS12Import(a ImportArgs) []string {
	return d.withLegacy(importArgs(a, "-noenc"))
}

// PEMConvert relies on 3.x input format detection.
func (openSSL3) PEMConvert(in, out string) []string {
	return []string{"x509", "-in", in, "-out", out, "-outform", "PEM"}
}

func (openSSL3) ProtectKey(a ProtectArgs) []string {
	return protectArgs(a)
}

func (d openSSL3) withLegacy(args []string) []string {
	if d.legacyPKCS12 {
		return append(args, "-legacy")
	}
	return args
}

func csrArgs(a CSRArgs, noEncFlag string) []string {
	args := []string{"req", "-new",
		"-newkey", "rsa:" + strconv.Itoa(a.Bits),
		"-keyout", a.KeyPath,
		"-out", a.CSRPath,
		"-config", a.ConfigPath,
	}
	if a.Encrypt {
		return append(args, "-passout", "stdin")
	}
	return append(args, noEncFlag)
}

func exportArgs(a ExportArgs) []string {
	args := []string{"pkcs12", "-export",
		"-in", a.CertPath,
		"-inkey", a.KeyPath,
		"-out", a.OutPath,
	}
	if a.KeyPassIn {
		args = append(args, "-passin", "stdin")
	}
	return append(args, "-passout", passArg(a.PassOut))
}

func importArgs(a ImportArgs, noEncFlag string) []string {
	args := []string{"pkcs12", "-in", a.InPath, "-out", a.OutPath}
	switch a.Mode {
	case ImportCertsOnly:
		args = append(args, "-clcerts", "-nokeys")
	case ImportKeysOnly:
		args = append(args, "-nocerts")
	}
	args = append(args, "-passin", passArg(a.PassIn))
	if a.Mode == ImportCertsOnly {
		return args
	}
	if a.EncryptKey {
		return append(args, "-passout", "stdin")
	}
	return append(args, noEncFlag)
}

func protectArgs(a ProtectArgs) []string {
	args := []string{"pkey", "-in", a.InPath, "-out", a.OutPath, "-aes256"}
	if a.PassIn {
		args = append(args, "-passin", "stdin")
	}
	return append(args, "-passout", "stdin")
}
