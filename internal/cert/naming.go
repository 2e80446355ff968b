package cert

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"certify/internal/validity"
)

// CSROutputs are the files a CSR plan writes.
type CSROutputs struct {
	Key string `yaml:"key"`
	CSR string `yaml:"csr"`
}

// BaseName derives the file base name for a common name: wildcards become
// "wildcard." and the validity span is appended as years, e.g.
// wildcard.example.com-2026-2036.
func BaseName(commonName string, from time.Time, span validity.Period) string {
	name := strings.ReplaceAll(commonName, "*.", "wildcard.")
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
	return fmt.Sprintf("%s-%d-%d", name, from.Year(), span.AddTo(from).Year())
}

// DefaultCSROutputs places <base>.key and <base>.csr in dir.
func DefaultCSROutputs(dir, commonName string, from time.Time, span validity.Period) CSROutputs {
	base := filepath.Join(dir, BaseName(commonName, from, span))
	return CSROutputs{Key: base + ".key", CSR: base + ".csr"}
}
