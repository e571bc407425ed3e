package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy tunes the sync pipeline. Zero values mean "use the built-in default".
type Policy struct {
	CompanyMatchThreshold float64 `yaml:"company_match_threshold"`
	KeywordMatchThreshold float64 `yaml:"keyword_match_threshold"`
	LookbackDays          int     `yaml:"lookback_days"`
	MaxMessages           int     `yaml:"max_messages"`
	ClassifyConcurrency   int     `yaml:"classify_concurrency"`

	Prefilter struct {
		StrictPhrases []string `yaml:"strict_phrases"`
		ATSDomains    []string `yaml:"ats_domains"`
		Keywords      []string `yaml:"keywords"`
	} `yaml:"prefilter"`
}

// LoadPolicy reads a policy file. An empty path yields an empty policy.
func LoadPolicy(path string) (*Policy, error) {
	p := &Policy{}
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Policy) Validate() error {
	for name, v := range map[string]float64{
		"company_match_threshold": p.CompanyMatchThreshold,
		"keyword_match_threshold": p.KeywordMatchThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("policy: %s must be within [0,1], got %v", name, v)
		}
	}
	if p.LookbackDays < 0 || p.MaxMessages < 0 || p.ClassifyConcurrency < 0 {
		return fmt.Errorf("policy: lookback_days, max_messages and classify_concurrency must not be negative")
	}
	return nil
}
