package cert

import "fmt"

const (
	MinKeySize     = 2048
	DefaultKeySize = 4096
)

// Secret holds a passphrase. It prints as a mask so it cannot leak through
// fmt, logs or YAML summaries.
type Secret struct {
	value []byte
}

func NewSecret(s string) Secret {
	if s == "" {
		return Secret{}
	}
	return Secret{value: []byte(s)}
}

func (s Secret) IsSet() bool {
	return len(s.value) > 0
}

// Bytes returns a copy of the secret. Callers own the copy and should clear it.
func (s Secret) Bytes() []byte {
	out := make([]byte, len(s.value))
	copy(out, s.value)
	return out
}

func (s Secret) String() string {
	if !s.IsSet() {
		return ""
	}
	return "*****"
}

func (s Secret) GoString() string {
	return s.String()
}

func (s Secret) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// KeyParams is the single source of truth for key generation: the renderer echoes
// Bits into the config and the builder passes it to the toolkit.
type KeyParams struct {
	Bits       int
	Passphrase Secret
}

// Encrypted reports whether the generated private key will be passphrase protected.
func (k KeyParams) Encrypted() bool {
	return k.Passphrase.IsSet()
}

func (k KeyParams) Validate() error {
	if k.Bits < MinKeySize {
		return Invalid("key size", fmt.Errorf("%w: %d < %d", ErrWeakKey, k.Bits, MinKeySize))
	}
	return nil
}
