package ai

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"aiconfig/pkg/logx"
)

// DefaultsFile is a set of fallback configurations loaded from YAML, keyed
// by flag key. Hosts ship one alongside their deployment so every resolution
// has a sane default even when the flag source is unreachable.
type DefaultsFile struct {
	completions map[string]CompletionDefaults
	agents      map[string]AgentDefaults
	judges      map[string]JudgeDefaults
}

// defaultsEntry is the on-disk shape of one entry. Kind selects the variant;
// fields irrelevant to the kind are ignored.
type defaultsEntry struct {
	Kind                 string          `yaml:"kind"`
	Enabled              bool            `yaml:"enabled"`
	Model                *ModelConfig    `yaml:"model"`
	Provider             *ProviderConfig `yaml:"provider"`
	Messages             []Message       `yaml:"messages"`
	Instructions         string          `yaml:"instructions"`
	EvaluationMetricKeys []string        `yaml:"evaluationMetricKeys"`
}

type defaultsDoc struct {
	Configs map[string]yaml.Node `yaml:"configs"`
}

// LoadDefaultsFile reads a YAML defaults file. The file itself must parse;
// individual malformed entries are skipped with a warning, in the same
// degrade-gracefully spirit as remote payload parsing.
func LoadDefaultsFile(path string, logger *logx.Logger) (*DefaultsFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read defaults file: %w", err)
	}
	var doc defaultsDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse defaults file %s: %w", path, err)
	}

	out := &DefaultsFile{
		completions: make(map[string]CompletionDefaults),
		agents:      make(map[string]AgentDefaults),
		judges:      make(map[string]JudgeDefaults),
	}
	for key, node := range doc.Configs {
		var entry defaultsEntry
		if err := node.Decode(&entry); err != nil {
			logger.Warn("skipping malformed defaults entry %q: %v", key, err)
			continue
		}
		entry.Messages = validMessages(key, entry.Messages, logger)
		switch entry.Kind {
		case "", "completion":
			out.completions[key] = CompletionDefaults{
				Enabled:  entry.Enabled,
				Model:    entry.Model,
				Provider: entry.Provider,
				Messages: entry.Messages,
			}
		case "agent":
			out.agents[key] = AgentDefaults{
				Enabled:      entry.Enabled,
				Model:        entry.Model,
				Provider:     entry.Provider,
				Instructions: entry.Instructions,
			}
		case "judge":
			out.judges[key] = JudgeDefaults{
				Enabled:              entry.Enabled,
				Model:                entry.Model,
				Provider:             entry.Provider,
				Messages:             entry.Messages,
				EvaluationMetricKeys: entry.EvaluationMetricKeys,
			}
		default:
			logger.Warn("skipping defaults entry %q with unrecognized kind %q", key, entry.Kind)
		}
	}
	return out, nil
}

func validMessages(key string, msgs []Message, logger *logx.Logger) []Message {
	out := msgs[:0:0]
	for _, m := range msgs {
		if !ValidRole(m.Role) {
			logger.Warn("defaults entry %q: dropping message with unrecognized role %q", key, m.Role)
			continue
		}
		out = append(out, m)
	}
	return out
}

// Completion returns the completion defaults stored under key.
func (f *DefaultsFile) Completion(key string) (CompletionDefaults, bool) {
	d, ok := f.completions[key]
	return d, ok
}

// Agent returns the agent defaults stored under key.
func (f *DefaultsFile) Agent(key string) (AgentDefaults, bool) {
	d, ok := f.agents[key]
	return d, ok
}

// Judge returns the judge defaults stored under key.
func (f *DefaultsFile) Judge(key string) (JudgeDefaults, bool) {
	d, ok := f.judges[key]
	return d, ok
}

// Keys returns every flag key present in the file.
func (f *DefaultsFile) Keys() []string {
	out := make([]string, 0, len(f.completions)+len(f.agents)+len(f.judges))
	for k := range f.completions {
		out = append(out, k)
	}
	for k := range f.agents {
		out = append(out, k)
	}
	for k := range f.judges {
		out = append(out, k)
	}
	return out
}
