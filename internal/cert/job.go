package cert

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ConversionKind is one of the fixed conversion recipes.
type ConversionKind string

const (
	CertKeyToBundle   ConversionKind = "cer+key->p12"
	BundleToCertKey   ConversionKind = "p12->cer+key"
	CertToPEM         ConversionKind = "cer->pem"
	BundleToPEM       ConversionKind = "p12->pem"
	PEMKeyToBundle    ConversionKind = "pem+key->p12"
	KeyToProtectedKey ConversionKind = "key->enc-key"
)

// Role names a file slot of a conversion job.
type Role string

const (
	RoleCertificate Role = "certificate"
	RoleKey         Role = "key"
	RoleBundle      Role = "bundle"
	RolePEM         Role = "pem"
)

// Recipe fixes which roles a kind reads and writes.
type Recipe struct {
	Kind        ConversionKind
	Label       string
	Inputs      []Role
	Outputs     []Role
	NeedsExport bool
	extensions  map[Role]string
}

var recipes = map[ConversionKind]Recipe{
	CertKeyToBundle: {
		Kind:       CertKeyToBundle,
		Label:      "CER + KEY → P12",
		Inputs:     []Role{RoleCertificate, RoleKey},
		Outputs:    []Role{RoleBundle},
		extensions: map[Role]string{RoleBundle: ".p12"},
	},
	BundleToCertKey: {
		Kind:       BundleToCertKey,
		Label:      "P12 → CER + KEY",
		Inputs:     []Role{RoleBundle},
		Outputs:    []Role{RoleCertificate, RoleKey},
		extensions: map[Role]string{RoleCertificate: ".cer", RoleKey: ".key"},
	},
	CertToPEM: {
		Kind:       CertToPEM,
		Label:      "CER → PEM",
		Inputs:     []Role{RoleCertificate},
		Outputs:    []Role{RolePEM},
		extensions: map[Role]string{RolePEM: ".pem"},
	},
	BundleToPEM: {
		Kind:       BundleToPEM,
		Label:      "P12 → PEM",
		Inputs:     []Role{RoleBundle},
		Outputs:    []Role{RolePEM},
		extensions: map[Role]string{RolePEM: ".pem"},
	},
	PEMKeyToBundle: {
		Kind:       PEMKeyToBundle,
		Label:      "PEM + KEY → P12",
		Inputs:     []Role{RolePEM, RoleKey},
		Outputs:    []Role{RoleBundle},
		extensions: map[Role]string{RoleBundle: ".p12"},
	},
	KeyToProtectedKey: {
		Kind:        KeyToProtectedKey,
		Label:       "KEY → protected KEY",
		Inputs:      []Role{RoleKey},
		Outputs:     []Role{RoleKey},
		NeedsExport: true,
		extensions:  map[Role]string{RoleKey: ".enc.key"},
	},
}

// ParseKind resolves a kind by its CLI name, case-insensitively.
func ParseKind(s string) (ConversionKind, error) {
	k := ConversionKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := recipes[k]; !ok {
		return "", fmt.Errorf("%w: %s (supported: %v)", ErrUnknownKind, s, Kinds())
	}
	return k, nil
}

// Kinds lists all conversion kinds in a stable order.
func Kinds() []ConversionKind {
	out := make([]ConversionKind, 0, len(recipes))
	for k := range recipes {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RecipeFor returns the recipe for k.
func RecipeFor(k ConversionKind) (Recipe, error) {
	r, ok := recipes[k]
	if !ok {
		return Recipe{}, fmt.Errorf("%w: %s", ErrUnknownKind, k)
	}
	return r, nil
}

// ConversionJob is a conversion with concrete paths for every role.
type ConversionJob struct {
	Kind             ConversionKind
	Inputs           map[Role]string
	Outputs          map[Role]string
	ImportPassphrase Secret
	ExportPassphrase Secret
}

// NewConversionJob returns an empty job of kind k.
func NewConversionJob(k ConversionKind) *ConversionJob {
	return &ConversionJob{
		Kind:    k,
		Inputs:  make(map[Role]string),
		Outputs: make(map[Role]string),
	}
}

func (j *ConversionJob) Input(r Role) string {
	return j.Inputs[r]
}

func (j *ConversionJob) Output(r Role) string {
	return j.Outputs[r]
}

// WithDefaultOutputs fills unset output paths in dir from the stem of the first
// input, e.g. server.cer -> server.p12. A default never equals an input path.
func (j *ConversionJob) WithDefaultOutputs(dir string) error {
	recipe, err := RecipeFor(j.Kind)
	if err != nil {
		return err
	}
	if j.Outputs == nil {
		j.Outputs = make(map[Role]string)
	}

	first := j.Input(recipe.Inputs[0])
	if first == "" {
		return nil
	}
	stem := strings.TrimSuffix(filepath.Base(first), filepath.Ext(first))

	for _, role := range recipe.Outputs {
		if j.Outputs[role] != "" {
			continue
		}
		ext := recipe.extensions[role]
		path := filepath.Join(dir, stem+ext)
		if j.IsInput(path) {
			path = filepath.Join(dir, stem+"-converted"+ext)
		}
		j.Outputs[role] = path
	}
	return nil
}

// IsInput reports whether path names one of the job's inputs.
func (j *ConversionJob) IsInput(path string) bool {
	clean := filepath.Clean(path)
	for _, in := range j.Inputs {
		if in != "" && filepath.Clean(in) == clean {
			return true
		}
	}
	return false
}
