package openssl

import (
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"certify/internal/cert"
)

// Invocation is one self-contained toolkit command. Secrets are fed to stdin, one
// per line, in the order the toolkit asks for them.
type Invocation struct {
	Label  string
	Path   string
	Args   []string
	Stdin  []cert.Secret
	Writes []string
}

// CommandLine renders the invocation for display. pass: arguments are masked even
// though the builder never produces them.
func (i Invocation) CommandLine() string {
	return strings.Join(append([]string{i.Path}, maskArgs(i.Args)...), " ")
}

// ScratchFile is an engine-owned temporary file a plan needs while it runs.
type ScratchFile struct {
	Path    string
	Content []byte
}

// Plan is an ordered list of invocations. Steps run strictly in order.
type Plan struct {
	ID        string
	Operation string
	Steps     []Invocation
	Scratch   []ScratchFile
}

func newPlan(operation string, steps ...Invocation) *Plan {
	return &Plan{ID: uuid.NewString(), Operation: operation, Steps: steps}
}

// Writes lists every file the plan is expected to produce, in step order.
func (p *Plan) Writes() []string {
	return lo.Uniq(lo.FlatMap(p.Steps, func(s Invocation, _ int) []string { return s.Writes }))
}

// StepSummary is the display form of an invocation.
type StepSummary struct {
	Label   string   `yaml:"label"`
	Command string   `yaml:"command"`
	Stdin   []string `yaml:"stdin,omitempty"`
	Writes  []string `yaml:"writes,omitempty"`
}

// Summary is the display form of a plan, safe to show before execution.
type Summary struct {
	ID        string        `yaml:"id"`
	Operation string        `yaml:"operation"`
	Steps     []StepSummary `yaml:"steps"`
}

func (p *Plan) Summary() Summary {
	return Summary{
		ID:        p.ID,
		Operation: p.Operation,
		Steps: lo.Map(p.Steps, func(s Invocation, _ int) StepSummary {
			return StepSummary{
				Label:   s.Label,
				Command: s.CommandLine(),
				Stdin:   lo.Map(s.Stdin, func(sec cert.Secret, _ int) string { return sec.String() }),
				Writes:  s.Writes,
			}
		}),
	}
}

// YAML renders the summary as a YAML document.
func (p *Plan) YAML() ([]byte, error) {
	return yaml.Marshal(p.Summary())
}

// maskArgs returns a copy of args with any pass:<secret> value masked.
func maskArgs(args []string) []string {
	masked := make([]string, len(args))
	copy(masked, args)
	for i, arg := range masked {
		if (arg == "-passout" || arg == "-passin" || arg == "-password") && i+1 < len(masked) {
			if strings.HasPrefix(masked[i+1], "pass:") && len(masked[i+1]) > len("pass:") {
				masked[i+1] = "pass:*****"
			}
		}
	}
	return masked
}
