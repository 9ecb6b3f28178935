package config

import (
	"os"

	"codeberg.org/mutker/nvidiawatch/internal/alert"
	"codeberg.org/mutker/nvidiawatch/internal/errors"
	"codeberg.org/mutker/nvidiawatch/internal/watch"
	"gopkg.in/yaml.v3"
)

// RuleConfig is an alert rule as written in the TOML [[rule]] tables or the
// YAML rules file.
type RuleConfig struct {
	Name      string `mapstructure:"name" yaml:"name"`
	Metric    string `mapstructure:"metric" yaml:"metric"`
	Condition string `mapstructure:"condition" yaml:"condition"`
	Severity  string `mapstructure:"severity" yaml:"severity"`
}

type rulesFile struct {
	Rules []RuleConfig `yaml:"rules"`
}

// ParseCondition parses the rule's condition text.
func (r RuleConfig) ParseCondition() (*alert.Condition, error) {
	return alert.Parse(r.Condition)
}

// Rule converts the configured rule into a watch.Rule.
func (r RuleConfig) Rule() (watch.Rule, error) {
	cond, err := r.ParseCondition()
	if err != nil {
		return watch.Rule{}, err
	}
	severity, err := watch.ParseSeverity(r.Severity)
	if err != nil {
		return watch.Rule{}, err
	}

	return watch.Rule{
		Name:      r.Name,
		Metric:    r.Metric,
		Condition: cond,
		Severity:  severity,
	}, nil
}

// WatchRules converts all configured rules.
func (c *Config) WatchRules() ([]watch.Rule, error) {
	rules := make([]watch.Rule, 0, len(c.Rules))
	for _, rc := range c.Rules {
		r, err := rc.Rule()
		if err != nil {
			return nil, errors.New().Wrap(errors.ErrInvalidRule, err).WithMessage("rule " + rc.Name)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// LoadRulesFile reads a YAML document of the form
//
//	rules:
//	  - name: gpu-hot
//	    metric: temperature
//	    condition: value > 80 on average for last 30s
//	    severity: critical
func LoadRulesFile(path string) ([]RuleConfig, error) {
	errFactory := errors.New()

	f, err := os.Open(path)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrReadRules, err).WithData(path)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var doc rulesFile
	if err := dec.Decode(&doc); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadRules, err).WithData(path)
	}

	return doc.Rules, nil
}
