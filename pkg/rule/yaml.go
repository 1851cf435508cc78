package rule

// yamlRule is the intermediate struct for parsing a pattern-set entry.
type yamlRule struct {
	ID               *uint    `yaml:"id,omitempty"`
	Name             string   `yaml:"name"`
	Pattern          string   `yaml:"pattern"`
	Flags            []string `yaml:"flags,omitempty"`
	Description      string   `yaml:"description,omitempty"`
	Examples         []string `yaml:"examples,omitempty"`
	NegativeExamples []string `yaml:"negative_examples,omitempty"`
}

// yamlSetFile represents the top-level structure of a pattern-set file.
type yamlSetFile struct {
	Patterns []yamlRule `yaml:"patterns"`
}
