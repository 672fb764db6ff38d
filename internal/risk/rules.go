package risk

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// RulePattern describes one operator-supplied regex rule.
type RulePattern struct {
	ID      string `yaml:"id"`
	Pattern string `yaml:"pattern"`
	Level   string `yaml:"level"`
	Message string `yaml:"message"`
}

// RulesFile is the YAML schema root for the optional risk overrides file.
type RulesFile struct {
	Rules struct {
		DangerPatterns []RulePattern `yaml:"danger_patterns"`
	} `yaml:"rules"`
}

// NewClassifierFromFile returns a classifier extended with patterns from the
// given YAML rules file. A missing file yields the built-in policy.
func NewClassifierFromFile(path string) (*Classifier, error) {
	c := NewClassifier()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read risk rules: %w", err)
	}
	var rules RulesFile
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse risk rules: %w", err)
	}
	if err := c.merge(rules.Rules.DangerPatterns); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Classifier) merge(rules []RulePattern) error {
	for _, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("compile risk rule %q: %w", rule.ID, err)
		}
		p := tierPattern{id: rule.ID, re: re, reason: rule.Message}
		if p.id == "" {
			p.id = "custom." + rule.Pattern
		}
		if p.reason == "" {
			p.reason = "matched operator rule " + p.id
		}
		switch ParseLevel(rule.Level) {
		case LevelCritical:
			c.critical = append(c.critical, p)
		case LevelHigh:
			c.high = append(c.high, p)
		default:
			c.medium = append(c.medium, p)
		}
	}
	return nil
}
