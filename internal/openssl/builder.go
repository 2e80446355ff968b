package openssl

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/unknwon/com"

	"certify/internal/cert"
)

// Builder turns a rendered config or a conversion job into a Plan. It checks paths
// but never reads file contents and never spawns processes.
type Builder struct {
	path       string
	dialect    Dialect
	scratchDir string
}

// NewBuilder returns a builder for the toolkit. Scratch files go to os.TempDir().
func NewBuilder(tk *Toolkit) *Builder {
	return &Builder{path: tk.Path, dialect: tk.Dialect, scratchDir: os.TempDir()}
}

// WithScratchDir overrides where scratch config files are placed.
func (b *Builder) WithScratchDir(dir string) *Builder {
	b.scratchDir = dir
	return b
}

func (b *Builder) Dialect() Dialect {
	return b.dialect
}

// BuildCSR returns a single-step plan generating a key and CSR from configText. The
// config is carried as a scratch file that the executor writes before the step and
// removes afterwards.
func (b *Builder) BuildCSR(configText string, out cert.CSROutputs, key cert.KeyParams) (*Plan, error) {
	var errs *multierror.Error
	if err := key.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	errs = checkOutput(errs, "key output", out.Key)
	errs = checkOutput(errs, "csr output", out.CSR)
	if out.Key != "" && filepath.Clean(out.Key) == filepath.Clean(out.CSR) {
		errs = multierror.Append(errs, cert.Invalid("csr output", fmt.Errorf("%w: same as key output", ErrInvalidPath)))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	configPath := filepath.Join(b.scratchDir, "certify-"+uuid.NewString()+".cnf")

	step := Invocation{
		Label: "generate key and csr",
		Path:  b.path,
		Args: b.dialect.GenerateCSR(CSRArgs{
			ConfigPath: configPath,
			KeyPath:    out.Key,
			CSRPath:    out.CSR,
			Bits:       key.Bits,
			Encrypt:    key.Encrypted(),
		}),
		Writes: []string{out.Key, out.CSR},
	}
	if key.Encrypted() {
		step.Stdin = []cert.Secret{key.Passphrase}
	}

	plan := newPlan("csr", step)
	plan.Scratch = []ScratchFile{{Path: configPath, Content: []byte(configText)}}
	return plan, nil
}

// BuildConversion validates the job and returns its one- or two-step plan. All
// problems with the job are reported together.
func (b *Builder) BuildConversion(job *cert.ConversionJob) (*Plan, error) {
	recipe, err := cert.RecipeFor(job.Kind)
	if err != nil {
		return nil, cert.Invalid("kind", err)
	}

	var errs *multierror.Error
	for _, role := range recipe.Inputs {
		errs = checkInput(errs, string(role)+" input", job.Input(role))
	}
	for _, role := range recipe.Outputs {
		path := job.Output(role)
		errs = checkOutput(errs, string(role)+" output", path)
		if path != "" && job.IsInput(path) {
			errs = multierror.Append(errs, cert.Invalid(string(role)+" output",
				fmt.Errorf("%w: %s would overwrite an input", ErrInvalidPath, path)))
		}
	}
	if recipe.NeedsExport && !job.ExportPassphrase.IsSet() {
		errs = multierror.Append(errs, cert.Invalid("export passphrase", ErrMissingInput))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	return newPlan(string(job.Kind), b.conversionSteps(job)...), nil
}

func (b *Builder) conversionSteps(job *cert.ConversionJob) []Invocation {
	imp, exp := job.ImportPassphrase, job.ExportPassphrase

	switch job.Kind {
	case cert.CertKeyToBundle, cert.PEMKeyToBundle:
		certPath := job.Input(cert.RoleCertificate)
		if job.Kind == cert.PEMKeyToBundle {
			certPath = job.Input(cert.RolePEM)
		}
		out := job.Output(cert.RoleBundle)
		return []Invocation{{
			Label: "pkcs12 export",
			Path:  b.path,
			Args: b.dialect.PKCS12Export(ExportArgs{
				CertPath:  certPath,
				KeyPath:   job.Input(cert.RoleKey),
				OutPath:   out,
				KeyPassIn: imp.IsSet(),
				PassOut:   exp.IsSet(),
			}),
			Stdin:  secrets(imp, exp),
			Writes: []string{out},
		}}

	case cert.BundleToCertKey:
		in := job.Input(cert.RoleBundle)
		certOut, keyOut := job.Output(cert.RoleCertificate), job.Output(cert.RoleKey)
		return []Invocation{
			{
				Label: "pkcs12 extract certificate",
				Path:  b.path,
				Args: b.dialect.PKCS12Import(ImportArgs{
					InPath: in, OutPath: certOut, Mode: ImportCertsOnly, PassIn: imp.IsSet(),
				}),
				Stdin:  secrets(imp),
				Writes: []string{certOut},
			},
			{
				Label: "pkcs12 extract key",
				Path:  b.path,
				Args: b.dialect.PKCS12Import(ImportArgs{
					InPath: in, OutPath: keyOut, Mode: ImportKeysOnly, PassIn: imp.IsSet(), EncryptKey: exp.IsSet(),
				}),
				Stdin:  secrets(imp, exp),
				Writes: []string{keyOut},
			},
		}

	case cert.CertToPEM:
		out := job.Output(cert.RolePEM)
		return []Invocation{{
			Label:  "x509 to pem",
			Path:   b.path,
			Args:   b.dialect.PEMConvert(job.Input(cert.RoleCertificate), out),
			Writes: []string{out},
		}}

	case cert.BundleToPEM:
		out := job.Output(cert.RolePEM)
		return []Invocation{{
			Label: "pkcs12 to pem",
			Path:  b.path,
			Args: b.dialect.PKCS12Import(ImportArgs{
				InPath: job.Input(cert.RoleBundle), OutPath: out, Mode: ImportAll, PassIn: imp.IsSet(), EncryptKey: exp.IsSet(),
			}),
			Stdin:  secrets(imp, exp),
			Writes: []string{out},
		}}

	case cert.KeyToProtectedKey:
		out := job.Output(cert.RoleKey)
		return []Invocation{{
			Label: "protect key",
			Path:  b.path,
			Args: b.dialect.ProtectKey(ProtectArgs{
				InPath: job.Input(cert.RoleKey), OutPath: out, PassIn: imp.IsSet(),
			}),
			Stdin:  secrets(imp, exp),
			Writes: []string{out},
		}}
	}
	return nil
}

// secrets keeps the set ones in order. The toolkit reads passin before passout
// when both come from stdin.
func secrets(in ...cert.Secret) []cert.Secret {
	var out []cert.Secret
	for _, s := range in {
		if s.IsSet() {
			out = append(out, s)
		}
	}
	return out
}

func checkInput(errs *multierror.Error, field, path string) *multierror.Error {
	switch {
	case path == "":
		return multierror.Append(errs, cert.Invalid(field, ErrMissingInput))
	case !com.IsFile(path):
		return multierror.Append(errs, cert.Invalid(field, fmt.Errorf("%w: %s is not a readable file", ErrInvalidPath, path)))
	}
	return errs
}

func checkOutput(errs *multierror.Error, field, path string) *multierror.Error {
	switch {
	case path == "":
		return multierror.Append(errs, cert.Invalid(field, ErrMissingInput))
	case com.IsDir(path):
		return multierror.Append(errs, cert.Invalid(field, fmt.Errorf("%w: %s is a directory", ErrInvalidPath, path)))
	case !com.IsDir(filepath.Dir(path)):
		return multierror.Append(errs, cert.Invalid(field, fmt.Errorf("%w: directory of %s does not exist", ErrInvalidPath, path)))
	}
	return errs
}
