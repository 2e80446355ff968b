package cert

import (
	"fmt"
	"net"
	"strings"

	"github.com/samber/lo"
)

// SANType is the kind of a Subject Alternative Name entry.
type SANType string

const (
	SANDNS   SANType = "DNS"
	SANIP    SANType = "IP"
	SANEmail SANType = "email"
)

// ParseSANType accepts dns, ip and email in any case.
func ParseSANType(s string) (SANType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dns":
		return SANDNS, nil
	case "ip":
		return SANIP, nil
	case "email":
		return SANEmail, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownSANType, s)
	}
}

// SANEntry is a single Subject Alternative Name.
type SANEntry struct {
	Type  SANType `yaml:"type"`
	Value string  `yaml:"value"`
}

func (e SANEntry) String() string {
	return string(e.Type) + ":" + e.Value
}

// ParseSAN parses "type:value". Untyped values are classified by InferSANType.
func ParseSAN(s string) (SANEntry, error) {
	s = strings.TrimSpace(s)
	if typ, value, ok := strings.Cut(s, ":"); ok {
		if t, err := ParseSANType(typ); err == nil {
			return SANEntry{Type: t, Value: strings.TrimSpace(value)}, nil
		}
	}
	return SANEntry{Type: InferSANType(s), Value: s}, nil
}

// InferSANType classifies an untyped SAN value: IP literals are IP, anything with
// an @ is email, the rest is DNS.
func InferSANType(value string) SANType {
	if net.ParseIP(value) != nil {
		return SANIP
	}
	if strings.Contains(value, "@") {
		return SANEmail
	}
	return SANDNS
}

// SANList is an ordered list of SAN entries. Position is significant: it decides
// per-type numbering in the rendered config.
type SANList struct {
	entries []SANEntry
}

// Add appends a SAN. Blank values and exact duplicates are rejected.
func (l *SANList) Add(t SANType, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return Invalid("SAN", ErrEmptyValue)
	}
	entry := SANEntry{Type: t, Value: value}
	if lo.Contains(l.entries, entry) {
		return Invalid("SAN", fmt.Errorf("%w: %s", ErrDuplicateEntry, entry))
	}
	l.entries = append(l.entries, entry)
	return nil
}

// Remove deletes the entry at index; later entries shift down.
func (l *SANList) Remove(index int) error {
	if index < 0 || index >= len(l.entries) {
		return Invalid("SAN", fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(l.entries)))
	}
	l.entries = append(l.entries[:index], l.entries[index+1:]...)
	return nil
}

func (l *SANList) Clear() {
	l.entries = nil
}

func (l SANList) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the entries in insertion order.
func (l SANList) Entries() []SANEntry {
	out := make([]SANEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
