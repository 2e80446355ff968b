package cert

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderConfigFull(t *testing.T) {
	s := NewSession(4096)
	s.SetField(FieldCommonName, "example.com")
	s.SetField(FieldOrganization, "Acme")
	s.SetField(FieldCountry, "US")
	require.NoError(t, s.AddSAN(SANDNS, "example.com"))
	require.NoError(t, s.AddSAN(SANIP, "1.2.3.4"))

	want := `[req]
default_bits = 4096
prompt = no
default_md = sha256
distinguished_name = dn
req_extensions = req_ext

[dn]
C=US
O=Acme
CN=example.com

[req_ext]
subjectAltName = @alt_names

[alt_names]
DNS.1=example.com
IP.1=1.2.3.4
`
	assert.Equal(t, want, s.Render())
}

func TestRenderConfigSANNumbering(t *testing.T) {
	sans := []SANEntry{
		{SANDNS, "a"},
		{SANIP, "1.2.3.4"},
		{SANDNS, "b"},
		{SANEmail, "x@example.com"},
	}
	var subject Subject
	subject.SetField(FieldCommonName, "a")

	out := RenderConfig(subject, sans, KeyParams{Bits: 2048}, "")

	dns1 := strings.Index(out, "DNS.1=a\n")
	ip1 := strings.Index(out, "IP.1=1.2.3.4\n")
	dns2 := strings.Index(out, "DNS.2=b\n")
	email1 := strings.Index(out, "email.1=x@example.com\n")

	require.True(t, dns1 >= 0 && ip1 >= 0 && dns2 >= 0 && email1 >= 0, out)
	assert.Less(t, dns1, ip1)
	assert.Less(t, ip1, dns2)
	assert.Less(t, dns2, email1)
}

func TestRenderConfigWithoutSANs(t *testing.T) {
	var subject Subject
	subject.SetField(FieldCommonName, "host")

	out := RenderConfig(subject, nil, KeyParams{Bits: 3072}, "sha384")

	assert.Contains(t, out, "default_bits = 3072\n")
	assert.Contains(t, out, "default_md = sha384\n")
	assert.NotContains(t, out, "req_extensions")
	assert.NotContains(t, out, "[alt_names]")
	assert.NotContains(t, out, "subjectAltName")
}

func TestRenderConfigOmitsEmptyFields(t *testing.T) {
	var subject Subject
	subject.SetField(FieldCommonName, "host")
	subject.SetField(FieldOrganization, "   ")
	subject.SetField(FieldLocality, "")

	out := RenderConfig(subject, nil, KeyParams{Bits: 2048}, "")

	assert.NotContains(t, out, "O=")
	assert.NotContains(t, out, "L=")
	assert.Contains(t, out, "CN=host\n")
}

func TestRenderConfigFieldOrder(t *testing.T) {
	var subject Subject
	subject.SetField(FieldEmailAddress, "ops@example.com")
	subject.SetField(FieldCommonName, "host")
	subject.SetField(FieldOrganizationalUnit, "IT")
	subject.SetField(FieldOrganization, "Acme")
	subject.SetField(FieldLocality, "Milan")
	subject.SetField(FieldState, "MI")
	subject.SetField(FieldCountry, "IT")

	out := RenderConfig(subject, nil, KeyParams{Bits: 2048}, "")

	want := "[dn]\nC=IT\nST=MI\nL=Milan\nO=Acme\nOU=IT\nCN=host\nemailAddress=ops@example.com\n"
	assert.Contains(t, out, want)
}

func TestRenderConfigFlattensLineBreaks(t *testing.T) {
	var subject Subject
	subject.SetField(FieldCommonName, "host")
	subject.SetField(FieldOrganization, "Acme\n[req]\nprompt = yes")

	out := RenderConfig(subject, nil, KeyParams{Bits: 2048}, "")

	assert.Contains(t, out, "O=Acme [req] prompt = yes\n")
	assert.Equal(t, 1, strings.Count(out, "[req]\n"))
}

func TestRenderConfigDeterministic(t *testing.T) {
	build := func() *Session {
		s := NewSession(2048)
		for _, f := range Fields() {
			s.SetField(f, "v"+string(f))
		}
		s.SetField(FieldCountry, "DE")
		_ = s.AddSAN(SANDNS, "one")
		_ = s.AddSAN(SANEmail, "a@b.c")
		_ = s.AddSAN(SANIP, "::1")
		return s
	}

	first := build().Render()
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, build().Render())
	}
}

func TestRenderDoesNotMutateSession(t *testing.T) {
	s := NewSession(2048)
	s.SetField(FieldCommonName, "host")
	require.NoError(t, s.AddSAN(SANDNS, "host"))

	before := s.SANs.Entries()
	_ = s.Render()
	_ = s.Render()

	assert.Equal(t, before, s.SANs.Entries())
	assert.Equal(t, "host", s.Subject.CommonName())
}
