package hooks

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk description of the hooks bound to each slot.
//
//	hooks:
//	  uploading:
//	    - webhook: https://example.com/check
//	      timeout: 5s
//	  uploaded:
//	    - journal: true
type Config struct {
	Hooks map[string][]Spec `yaml:"hooks"`
}

// Spec describes one hook. Exactly one of Webhook or Journal must be set.
type Spec struct {
	Webhook string        `yaml:"webhook"`
	Timeout time.Duration `yaml:"timeout"`
	Journal bool          `yaml:"journal"`
}

// LoadConfig reads and validates a YAML hook file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hook file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing hook file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks slot names and that each spec names exactly one hook kind.
func (c *Config) Validate() error {
	var errs []error
	for name, specs := range c.Hooks {
		if _, err := ParseSlot(name); err != nil {
			errs = append(errs, err)
			continue
		}
		for i, spec := range specs {
			if (spec.Webhook == "") == !spec.Journal {
				errs = append(errs, fmt.Errorf("%s hook %d: exactly one of webhook or journal must be set", name, i))
			}
		}
	}
	return errors.Join(errs...)
}

// Build creates a Registry from the config. Journal specs are resolved with
// journal, which may be nil when no journal spec is present.
func (c *Config) Build(timeout time.Duration, journal Hook) (*Registry, error) {
	reg := NewRegistry(timeout)
	for name, specs := range c.Hooks {
		slot, err := ParseSlot(name)
		if err != nil {
			return nil, err
		}

		var chain Chain
		for _, spec := range specs {
			switch {
			case spec.Journal:
				if journal == nil {
					return nil, fmt.Errorf("%s hook: journal requested but no journal is configured", name)
				}
				chain = append(chain, journal)
			case spec.Webhook != "":
				client := &http.Client{Timeout: spec.Timeout}
				chain = append(chain, NewWebhook(spec.Webhook, client))
			}
		}

		switch len(chain) {
		case 0:
		case 1:
			reg.Bind(slot, chain[0])
		default:
			reg.Bind(slot, chain)
		}
	}
	return reg, nil
}

// UsesJournal reports whether any slot binds the journal hook.
func (c *Config) UsesJournal() bool {
	for _, specs := range c.Hooks {
		for _, spec := range specs {
			if spec.Journal {
				return true
			}
		}
	}
	return false
}
