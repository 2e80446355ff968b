package cert

import (
	"fmt"
	"strings"
)

// Field is a recognized subject attribute key, spelled the way the toolkit expects it.
type Field string

const (
	FieldCountry            Field = "C"
	FieldState              Field = "ST"
	FieldLocality           Field = "L"
	FieldOrganization       Field = "O"
	FieldOrganizationalUnit Field = "OU"
	FieldCommonName         Field = "CN"
	FieldEmailAddress       Field = "emailAddress"
)

// subjectOrder is the order fields appear in the rendered distinguished name.
var subjectOrder = []Field{
	FieldCountry,
	FieldState,
	FieldLocality,
	FieldOrganization,
	FieldOrganizationalUnit,
	FieldCommonName,
	FieldEmailAddress,
}

var fieldAliases = map[string]Field{
	"c":                   FieldCountry,
	"country":             FieldCountry,
	"st":                  FieldState,
	"state":               FieldState,
	"province":            FieldState,
	"l":                   FieldLocality,
	"locality":            FieldLocality,
	"o":                   FieldOrganization,
	"org":                 FieldOrganization,
	"organization":        FieldOrganization,
	"ou":                  FieldOrganizationalUnit,
	"organizational_unit": FieldOrganizationalUnit,
	"cn":                  FieldCommonName,
	"common_name":         FieldCommonName,
	"emailaddress":        FieldEmailAddress,
	"email":               FieldEmailAddress,
}

// ParseField resolves a short (CN) or long (common_name) attribute name.
func ParseField(name string) (Field, error) {
	f, ok := fieldAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unknown subject field: %s", name)
	}
	return f, nil
}

// Fields returns the recognized subject fields in render order.
func Fields() []Field {
	out := make([]Field, len(subjectOrder))
	copy(out, subjectOrder)
	return out
}

func (f Field) known() bool {
	for _, k := range subjectOrder {
		if k == f {
			return true
		}
	}
	return false
}

// Subject represents the subject information for a certificate request.
// The zero value is an empty subject.
type Subject struct {
	values map[Field]string
}

// SetField overwrites a field. A blank value unsets it; unrecognized fields are ignored.
func (s *Subject) SetField(f Field, value string) {
	if !f.known() {
		return
	}
	value = strings.TrimSpace(value)
	if value == "" {
		delete(s.values, f)
		return
	}
	if s.values == nil {
		s.values = make(map[Field]string)
	}
	s.values[f] = value
}

// Get returns the value of f, or "" when unset.
func (s Subject) Get(f Field) string {
	return s.values[f]
}

func (s Subject) CommonName() string {
	return s.Get(FieldCommonName)
}

// String returns the subject in OpenSSL's slash form, e.g. /C=US/O=Acme/CN=example.com.
func (s Subject) String() string {
	var parts []string
	for _, f := range subjectOrder {
		if v := s.Get(f); v != "" {
			parts = append(parts, string(f)+"="+v)
		}
	}
	return "/" + strings.Join(parts, "/")
}

// Validate checks the invariants required before CSR generation.
func (s Subject) Validate() error {
	if s.CommonName() == "" {
		return Invalid("CN", ErrEmptyCommonName)
	}
	if c := s.Get(FieldCountry); c != "" && !isCountryCode(c) {
		return Invalid("C", fmt.Errorf("%w: %q", ErrInvalidCountry, c))
	}
	return nil
}

func isCountryCode(c string) bool {
	if len(c) != 2 {
		return false
	}
	for _, r := range c {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}
