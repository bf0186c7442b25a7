package assistant

import (
	"bytes"
	_ "embed"
	"text/template"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

type promptTemplate struct {
	Temperature float32 `yaml:"temperature"`
	JSON        bool    `yaml:"json"`
	System      string  `yaml:"system"`
	User        string  `yaml:"user"`

	system *template.Template
	user   *template.Template
}

// Catalogue holds the parsed prompt templates by flow name.
type Catalogue map[string]*promptTemplate

// LoadCatalogue parses a YAML prompt catalogue. Without data, the embedded one is used.
func LoadCatalogue(data ...[]byte) (Catalogue, error) {
	src := promptsYAML
	if len(data) > 0 {
		src = data[0]
	}
	var cat Catalogue
	if err := yaml.Unmarshal(src, &cat); err != nil {
		return nil, errors.Wrap(err, "parsing prompt catalogue")
	}
	for name, pt := range cat {
		var err error
		if pt.system, err = template.New(name + ".system").Option("missingkey=error").Parse(pt.System); err != nil {
			return nil, errors.Wrapf(err, "parsing %s system prompt", name)
		}
		if pt.user, err = template.New(name + ".user").Option("missingkey=error").Parse(pt.User); err != nil {
			return nil, errors.Wrapf(err, "parsing %s user prompt", name)
		}
	}
	return cat, nil
}

// Render builds the Prompt of flow with data.
func (c Catalogue) Render(flow string, data interface{}) (Prompt, error) {
	pt, ok := c[flow]
	if !ok {
		return Prompt{}, errors.Errorf("no prompt for flow %q", flow)
	}
	var sys, usr bytes.Buffer
	if err := pt.system.Execute(&sys, data); err != nil {
		return Prompt{}, errors.Wrapf(err, "rendering %s system prompt", flow)
	}
	if err := pt.user.Execute(&usr, data); err != nil {
		return Prompt{}, errors.Wrapf(err, "rendering %s user prompt", flow)
	}
	return Prompt{
		System:      sys.String(),
		User:        usr.String(),
		Temperature: pt.Temperature,
		JSON:        pt.JSON,
	}, nil
}
