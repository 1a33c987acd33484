// Package script holds the outbound message catalog. Defaults are embedded
// and may be overridden field by field from a YAML file.
package script

import (
	_ "embed"
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/siftly/siftly/internal/errors"
)

//go:embed messages.yaml
var defaultMessages []byte

// Questions are the scripted qualification prompts, in order.
type Questions struct {
	ZipCode        string `yaml:"zip_code"`
	ProjectType    string `yaml:"project_type"`
	TimelineBudget string `yaml:"timeline_budget"`
}

// Catalog is the set of texts the bot sends.
type Catalog struct {
	Greeting          string    `yaml:"greeting"`
	OptOutHint        string    `yaml:"opt_out_hint"`
	Questions         Questions `yaml:"questions"`
	Closing           string    `yaml:"closing"`
	HotConfirmation   string    `yaml:"hot_confirmation"`
	Acknowledgment    string    `yaml:"acknowledgment"`
	Apology           string    `yaml:"apology"`
	AgentInstructions string    `yaml:"agent_instructions"`

	contractor string
}

// Default returns the embedded catalog for the given contractor name.
func Default(contractor string) *Catalog {
	c, err := parse(defaultMessages)
	if err != nil {
		// The embedded file is part of the binary; failing here is a build defect.
		panic(fmt.Sprintf("script: embedded messages.yaml: %v", err))
	}
	c.contractor = contractor
	return c
}

// Load returns the embedded catalog with any non-empty fields from path
// layered on top. An empty path returns the defaults.
func Load(path, contractor string) (*Catalog, error) {
	c := Default(contractor)
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, err
	}
	override, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	c.merge(override)
	return c, nil
}

func parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) merge(o *Catalog) {
	pick := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	pick(&c.Greeting, o.Greeting)
	pick(&c.OptOutHint, o.OptOutHint)
	pick(&c.Questions.ZipCode, o.Questions.ZipCode)
	pick(&c.Questions.ProjectType, o.Questions.ProjectType)
	pick(&c.Questions.TimelineBudget, o.Questions.TimelineBudget)
	pick(&c.Closing, o.Closing)
	pick(&c.HotConfirmation, o.HotConfirmation)
	pick(&c.Acknowledgment, o.Acknowledgment)
	pick(&c.Apology, o.Apology)
	pick(&c.AgentInstructions, o.AgentInstructions)
}

func (c *Catalog) render(s string) string {
	return strings.ReplaceAll(s, "{{contractor}}", c.contractor)
}

// Welcome is the first reply to an unseen number: greeting, first question, opt-out hint.
func (c *Catalog) Welcome() string {
	return c.render(c.Greeting + " " + c.Questions.ZipCode + " " + c.OptOutHint)
}

// AskProjectType is the second question.
func (c *Catalog) AskProjectType() string { return c.render(c.Questions.ProjectType) }

// AskTimelineBudget is the third question.
func (c *Catalog) AskTimelineBudget() string { return c.render(c.Questions.TimelineBudget) }

// Close is sent after a WARM or COLD classification.
func (c *Catalog) Close() string { return c.render(c.Closing) }

// HotConfirmed is sent after a HOT classification.
func (c *Catalog) HotConfirmed(score int) string {
	return strings.ReplaceAll(c.render(c.HotConfirmation), "{{score}}", strconv.Itoa(score))
}

// Acknowledge is sent to leads that are already classified.
func (c *Catalog) Acknowledge() string { return c.render(c.Acknowledgment) }

// Sorry is sent when the conversational oracle is unavailable.
func (c *Catalog) Sorry() string { return c.render(c.Apology) }

// Instructions is the system prompt for the conversational path.
func (c *Catalog) Instructions() string { return c.render(strings.TrimSpace(c.AgentInstructions)) }
