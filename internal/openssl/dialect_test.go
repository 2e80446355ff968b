package openssl

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		output  string
		want    Version
		dialect string
	}{
		{"OpenSSL 3.0.13 30 Jan 2024 (Library: OpenSSL 3.0.13 30 Jan 2024)\n",
			Version{Family: FamilyOpenSSL, Major: 3, Minor: 0, Patch: 13}, DialectOpenSSL3},
		{"OpenSSL 1.1.1w  11 Sep 2023", Version{Family: FamilyOpenSSL, Major: 1, Minor: 1, Patch: 1}, DialectOpenSSL11},
		{"LibreSSL 3.3.6", Version{Family: FamilyLibreSSL, Major: 3, Minor: 3, Patch: 6}, DialectOpenSSL11},
		{"OpenSSL 3.2\nsecond line", Version{Family: FamilyOpenSSL, Major: 3, Minor: 2}, DialectOpenSSL3},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			v, err := ParseVersion(tt.output)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Family, v.Family)
			assert.Equal(t, tt.want.Major, v.Major)
			assert.Equal(t, tt.want.Minor, v.Minor)
			assert.Equal(t, tt.want.Patch, v.Patch)
			assert.Equal(t, tt.dialect, SelectDialect(v, false).Name())
		})
	}
}

func TestParseVersionRejectsGarbage(t *testing.T) {
	for _, out := range []string{"", "command not found", "BoringSSL"} {
		_, err := ParseVersion(out)
		assert.ErrorIs(t, err, ErrVersionProbe, out)
	}
}

func TestDialectByName(t *testing.T) {
	d, err := DialectByName(" OpenSSL-3 ", true)
	require.NoError(t, err)
	assert.Equal(t, DialectOpenSSL3, d.Name())

	d, err = DialectByName(DialectOpenSSL11, false)
	require.NoError(t, err)
	assert.Equal(t, DialectOpenSSL11, d.Name())

	_, err = DialectByName("openssl-0.9", false)
	assert.ErrorIs(t, err, ErrUnknownDialect)
}

func TestNewToolkitForcedDialect(t *testing.T) {
	tk, err := NewToolkit("/usr/bin/openssl", Version{Family: FamilyOpenSSL, Major: 3}, DetectOptions{Dialect: DialectOpenSSL11})
	require.NoError(t, err)
	assert.Equal(t, DialectOpenSSL11, tk.Dialect.Name())

	_, err = NewToolkit("/usr/bin/openssl", Version{}, DetectOptions{Dialect: "nope"})
	assert.ErrorIs(t, err, ErrUnknownDialect)
}

func TestDetectMissingBinary(t *testing.T) {
	_, err := Detect(context.Background(), "certify-no-such-toolkit", DetectOptions{})
	assert.True(t, IsNotFound(err))
}

func TestGenerateCSRArgs(t *testing.T) {
	a := CSRArgs{ConfigPath: "c.cnf", KeyPath: "k.key", CSRPath: "r.csr", Bits: 2048}

	want11 := []string{"req", "-new", "-newkey", "rsa:2048", "-keyout", "k.key", "-out", "r.csr", "-config", "c.cnf", "-nodes"}
	if diff := cmp.Diff(want11, openSSL11{}.GenerateCSR(a)); diff != "" {
		t.Errorf("openssl-1.1 args mismatch (-want +got):\n%s", diff)
	}

	want3 := []string{"req", "-new", "-newkey", "rsa:2048", "-keyout", "k.key", "-out", "r.csr", "-config", "c.cnf", "-noenc"}
	if diff := cmp.Diff(want3, openSSL3{}.GenerateCSR(a)); diff != "" {
		t.Errorf("openssl-3 args mismatch (-want +got):\n%s", diff)
	}

	a.Encrypt = true
	for _, d := range []Dialect{openSSL11{}, openSSL3{}} {
		args := d.GenerateCSR(a)
		assert.Equal(t, []string{"-passout", "stdin"}, args[len(args)-2:], d.Name())
		assert.NotContains(t, args, "-nodes")
		assert.NotContains(t, args, "-noenc")
	}
}

func TestPKCS12Args(t *testing.T) {
	export := ExportArgs{CertPath: "a.cer", KeyPath: "a.key", OutPath: "a.p12", PassOut: true}
	assert.Equal(t,
		[]string{"pkcs12", "-export", "-in", "a.cer", "-inkey", "a.key", "-out", "a.p12", "-passout", "stdin"},
		openSSL11{}.PKCS12Export(export))
	assert.Equal(t,
		[]string{"pkcs12", "-export", "-in", "a.cer", "-inkey", "a.key", "-out", "a.p12", "-passout", "stdin", "-legacy"},
		openSSL3{legacyPKCS12: true}.PKCS12Export(export))

	export.PassOut = false
	export.KeyPassIn = true
	assert.Equal(t,
		[]string{"pkcs12", "-export", "-in", "a.cer", "-inkey", "a.key", "-out", "a.p12", "-passin", "stdin", "-passout", "pass:"},
		openSSL3{}.PKCS12Export(export))

	certs := openSSL3{}.PKCS12Import(ImportArgs{InPath: "a.p12", OutPath: "a.cer", Mode: ImportCertsOnly, PassIn: true})
	assert.Equal(t, []string{"pkcs12", "-in", "a.p12", "-out", "a.cer", "-clcerts", "-nokeys", "-passin", "stdin"}, certs)

	keys := openSSL11{}.PKCS12Import(ImportArgs{InPath: "a.p12", OutPath: "a.key", Mode: ImportKeysOnly})
	assert.Equal(t, []string{"pkcs12", "-in", "a.p12", "-out", "a.key", "-nocerts", "-passin", "pass:", "-nodes"}, keys)

	all := openSSL3{}.PKCS12Import(ImportArgs{InPath: "a.p12", OutPath: "a.pem", PassIn: true, EncryptKey: true})
	assert.Equal(t, []string{"pkcs12", "-in", "a.p12", "-out", "a.pem", "-passin", "stdin", "-passout", "stdin"}, all)
}

func TestPEMConvertArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"x509", "-in", "a.der", "-inform", "DER", "-out", "a.pem", "-outform", "PEM"},
		openSSL11{}.PEMConvert("a.der", "a.pem"))
	assert.Equal(t,
		[]string{"x509", "-in", "a.cer", "-out", "a.pem", "-outform", "PEM"},
		openSSL11{}.PEMConvert("a.cer", "a.pem"))
	assert.Equal(t,
		[]string{"x509", "-in", "a.der", "-out", "a.pem", "-outform", "PEM"},
		openSSL3{}.PEMConvert("a.der", "a.pem"))
}

func TestProtectKeyArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"pkey", "-in", "a.key", "-out", "b.key", "-aes256", "-passin", "stdin", "-passout", "stdin"},
		openSSL3{}.ProtectKey(ProtectArgs{InPath: "a.key", OutPath: "b.key", PassIn: true}))
}

func TestCommandLineMasksInlinePassphrase(t *testing.T) {
	inv := Invocation{Path: "openssl", Args: []string{"pkcs12", "-passin", "pass:hunter2", "-passout", "pass:"}}
	assert.Equal(t, "openssl pkcs12 -passin pass:***** -passout pass:", inv.CommandLine())
	assert.Equal(t, "pass:hunter2", inv.Args[2])
}
