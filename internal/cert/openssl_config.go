package cert

import (
	"fmt"
	"strings"
)

const DefaultDigest = "sha256"

var flattenValue = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// RenderConfig renders the OpenSSL req config for a subject, its SANs and key
// parameters. Identical input yields byte-identical output. An empty digest
// renders as sha256.
func RenderConfig(subject Subject, sans []SANEntry, key KeyParams, digest string) string {
	if digest == "" {
		digest = DefaultDigest
	}

	var b strings.Builder

	b.WriteString("[req]\n")
	fmt.Fprintf(&b, "default_bits = %d\n", key.Bits)
	b.WriteString("prompt = no\n")
	fmt.Fprintf(&b, "default_md = %s\n", digest)
	b.WriteString("distinguished_name = dn\n")
	if len(sans) > 0 {
		b.WriteString("req_extensions = req_ext\n")
	}

	b.WriteString("\n[dn]\n")
	for _, f := range subjectOrder {
		if v := subject.Get(f); v != "" {
			fmt.Fprintf(&b, "%s=%s\n", f, flattenValue.Replace(v))
		}
	}

	if len(sans) == 0 {
		return b.String()
	}

	b.WriteString("\n[req_ext]\n")
	b.WriteString("subjectAltName = @alt_names\n")
	b.WriteString("\n[alt_names]\n")

	counters := make(map[SANType]int, 3)
	for _, san := range sans {
		counters[san.Type]++
		fmt.Fprintf(&b, "%s.%d=%s\n", san.Type, counters[san.Type], flattenValue.Replace(san.Value))
	}

	return b.String()
}
