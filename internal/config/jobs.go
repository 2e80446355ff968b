package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"certify/internal/cert"
)

// JobFile is a batch of CSR and conversion jobs run by "certify run".
type JobFile struct {
	Name string `yaml:"name"`
	Jobs []Job  `yaml:"jobs"`
}

// Job is one entry of a job file; exactly one of CSR and Convert is set.
type Job struct {
	Name            string      `yaml:"name"`
	CSR             *CSRJob     `yaml:"csr,omitempty"`
	Convert         *ConvertJob `yaml:"convert,omitempty"`
	ContinueOnError bool        `yaml:"continueOnError,omitempty"`
}

// CSRJob describes a key and CSR to generate.
type CSRJob struct {
	Subject JobSubject `yaml:"subject"`
	SANs    JobSANs    `yaml:"sans,omitempty"`
	KeySize int        `yaml:"keySize,omitempty"`
	// PassphraseEnv names the environment variable holding the key passphrase.
	PassphraseEnv string `yaml:"passphraseEnv,omitempty"`
	OutDir        string `yaml:"outDir,omitempty"`
	Key           string `yaml:"key,omitempty"`
	CSR           string `yaml:"csr,omitempty"`
}

// JobSubject represents certificate subject information
type JobSubject struct {
	CommonName   string `yaml:"commonName"`
	Country      string `yaml:"country,omitempty"`
	State        string `yaml:"state,omitempty"`
	Locality     string `yaml:"locality,omitempty"`
	Organization string `yaml:"organization,omitempty"`
	OrgUnit      string `yaml:"orgUnit,omitempty"`
	Email        string `yaml:"email,omitempty"`
}

// JobSANs represents subject alternative names
type JobSANs struct {
	DNS   []string `yaml:"dns,omitempty"`
	IP    []string `yaml:"ip,omitempty"`
	Email []string `yaml:"email,omitempty"`
}

// ConvertJob describes a conversion by kind and role paths.
type ConvertJob struct {
	Kind                string            `yaml:"kind"`
	Inputs              map[string]string `yaml:"inputs"`
	Outputs             map[string]string `yaml:"outputs,omitempty"`
	OutDir              string            `yaml:"outDir,omitempty"`
	ImportPassphraseEnv string            `yaml:"importPassphraseEnv,omitempty"`
	ExportPassphraseEnv string            `yaml:"exportPassphraseEnv,omitempty"`
}

// LoadJobFile loads and validates a YAML job file.
func LoadJobFile(filename string) (*JobFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open job file %s: %w", filename, err)
	}

	var jf JobFile
	if err := yaml.Unmarshal(data, &jf); err != nil {
		return nil, fmt.Errorf("failed to parse job file YAML: %w", err)
	}

	if jf.Name == "" {
		jf.Name = filepath.Base(filename)
	}
	if len(jf.Jobs) == 0 {
		return nil, fmt.Errorf("job file must contain at least one job")
	}

	for i, job := range jf.Jobs {
		if job.Name == "" {
			return nil, fmt.Errorf("job %d must have a name", i+1)
		}
		if (job.CSR == nil) == (job.Convert == nil) {
			return nil, fmt.Errorf("job %d (%s) must have exactly one of csr or convert", i+1, job.Name)
		}
		if job.Convert != nil {
			if _, err := cert.ParseKind(job.Convert.Kind); err != nil {
				return nil, fmt.Errorf("job %d (%s): %w", i+1, job.Name, err)
			}
		}
	}

	return &jf, nil
}

// Session builds the CSR session for the job. Subject defaults fill empty fields;
// with cnAsSAN the common name is added as the first DNS SAN.
func (j *CSRJob) Session(cfg *Config) (*cert.Session, error) {
	bits := j.KeySize
	if bits == 0 {
		bits = cfg.KeySize
	}
	s := cert.NewSession(bits)
	s.Digest = cfg.Digest

	s.SetField(cert.FieldCommonName, j.Subject.CommonName)
	s.SetField(cert.FieldCountry, j.Subject.Country)
	s.SetField(cert.FieldState, j.Subject.State)
	s.SetField(cert.FieldLocality, j.Subject.Locality)
	s.SetField(cert.FieldOrganization, j.Subject.Organization)
	s.SetField(cert.FieldOrganizationalUnit, j.Subject.OrgUnit)
	s.SetField(cert.FieldEmailAddress, j.Subject.Email)
	cfg.Subject.Apply(&s.Subject)

	if cfg.CNAsSAN && s.Subject.CommonName() != "" {
		if err := s.AddSAN(cert.SANDNS, s.Subject.CommonName()); err != nil {
			return nil, err
		}
	}
	for _, group := range []struct {
		t      cert.SANType
		values []string
	}{{cert.SANDNS, j.SANs.DNS}, {cert.SANIP, j.SANs.IP}, {cert.SANEmail, j.SANs.Email}} {
		for _, v := range group.values {
			if err := s.AddSAN(group.t, v); err != nil {
				if cfg.CNAsSAN && group.t == cert.SANDNS && v == s.Subject.CommonName() {
					continue
				}
				return nil, err
			}
		}
	}

	if j.PassphraseEnv != "" {
		pass, err := lookupSecret(j.PassphraseEnv)
		if err != nil {
			return nil, err
		}
		s.Key.Passphrase = pass
	}
	return s, nil
}

// Outputs returns the key and CSR paths, deriving unset ones from the common
// name and the naming validity span.
func (j *CSRJob) Outputs(cfg *Config, now time.Time) cert.CSROutputs {
	outDir := j.OutDir
	if outDir == "" {
		outDir = cfg.WorkDir
	}
	out := cert.DefaultCSROutputs(cfg.ResolvePath(outDir), j.Subject.CommonName, now, cfg.NameValidity)
	if j.Key != "" {
		out.Key = cfg.ResolvePath(j.Key)
	}
	if j.CSR != "" {
		out.CSR = cfg.ResolvePath(j.CSR)
	}
	return out
}

// ConversionJob builds the conversion job, filling missing outputs from the
// first input's stem.
func (j *ConvertJob) ConversionJob(cfg *Config) (*cert.ConversionJob, error) {
	kind, err := cert.ParseKind(j.Kind)
	if err != nil {
		return nil, err
	}
	job := cert.NewConversionJob(kind)
	for role, path := range j.Inputs {
		job.Inputs[cert.Role(role)] = cfg.ResolvePath(path)
	}
	for role, path := range j.Outputs {
		job.Outputs[cert.Role(role)] = cfg.ResolvePath(path)
	}

	if j.ImportPassphraseEnv != "" {
		if job.ImportPassphrase, err = lookupSecret(j.ImportPassphraseEnv); err != nil {
			return nil, err
		}
	}
	if j.ExportPassphraseEnv != "" {
		if job.ExportPassphrase, err = lookupSecret(j.ExportPassphraseEnv); err != nil {
			return nil, err
		}
	}

	outDir := j.OutDir
	if outDir == "" {
		outDir = cfg.WorkDir
	}
	if err := job.WithDefaultOutputs(cfg.ResolvePath(outDir)); err != nil {
		return nil, err
	}
	return job, nil
}

func lookupSecret(env string) (cert.Secret, error) {
	v, ok := os.LookupEnv(env)
	if !ok || v == "" {
		return cert.Secret{}, fmt.Errorf("environment variable %s is not set", env)
	}
	return cert.NewSecret(v), nil
}

// CreateExampleJobFile writes an example job file.
func CreateExampleJobFile(filename string) error {
	content := `# certify job file
# Usage: certify run --file jobs.yaml
# Passphrases are never stored here; jobs name the environment variables holding them.

name: example
jobs:
  - name: web-csr
    csr:
      subject:
        commonName: "www.example.com"
        country: US
        state: Utah
        locality: Salt Lake City
        organization: Example Corp
        orgUnit: IT Ops
      sans:
        dns:
          - "www.example.com"
          - "api.example.com"
        ip:
          - "192.168.1.100"
      keySize: 4096
      # passphraseEnv: WEB_KEY_PASSPHRASE
      outDir: ./certs

  - name: web-bundle
    continueOnError: true
    convert:
      kind: cer+key->p12
      inputs:
        certificate: ./certs/www.example.com.cer
        key: ./certs/www.example.com.key
      outputs:
        bundle: ./certs/www.example.com.p12
      exportPassphraseEnv: WEB_P12_PASSPHRASE
`
	return os.WriteFile(filename, []byte(content), 0o600)
}
