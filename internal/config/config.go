// Package config loads cnels settings from YAML files, the environment and
// the editor's initialization options.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the per-workspace configuration file.
const FileName = ".cnels.yaml"

// Config holds every setting. YAML and JSON keys are the same, so a file
// and the editor's initializationOptions read alike.
type Config struct {
	HaxePatterns  []string    `yaml:"haxe_patterns" json:"haxe_patterns"`
	StagePatterns []string    `yaml:"stage_patterns" json:"stage_patterns"`
	CatalogDir    string      `yaml:"catalog_dir" json:"catalog_dir"`
	RulesFile     string      `yaml:"rules_file" json:"rules_file"`
	MaxDocuments  int         `yaml:"max_documents" json:"max_documents"`
	Scope         ScopeConfig `yaml:"scope" json:"scope"`
	LogLevel      string      `yaml:"log_level" json:"log_level"`
}

type ScopeConfig struct {
	// CountLiteralBraces counts braces inside strings and comments
	// when finding function bodies.
	CountLiteralBraces bool `yaml:"count_literal_braces" json:"count_literal_braces"`
}

func Default() *Config {
	return &Config{
		HaxePatterns:  []string{"**/*.hx", "**/*.hsc", "**/*.hscript"},
		StagePatterns: []string{"**/stages/*.xml", "**/stages/**/*.xml"},
		MaxDocuments:  256,
		LogLevel:      "info",
	}
}

// Load reads the file at path over the defaults, then applies the
// environment. A missing file is not an error, and an empty path loads
// only the defaults and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := loadYAMLFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	applyEnvironment(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDir loads FileName from the workspace root dir.
func LoadDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

func loadYAMLFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvironment(cfg *Config) {
	if v := os.Getenv("CNELS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CNELS_CATALOG_DIR"); v != "" {
		cfg.CatalogDir = v
	}
}

// Merge returns a copy of cfg with the keys present in the JSON object
// opts overriding it. A null or empty opts returns cfg unchanged.
func (cfg *Config) Merge(opts json.RawMessage) (*Config, error) {
	out := *cfg
	// Unmarshal reuses slice capacity, which would write through to cfg.
	out.HaxePatterns = slices.Clone(cfg.HaxePatterns)
	out.StagePatterns = slices.Clone(cfg.StagePatterns)
	if len(opts) == 0 || string(opts) == "null" {
		return &out, nil
	}
	if err := json.Unmarshal(opts, &out); err != nil {
		return nil, fmt.Errorf("initialization options: %w", err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("initialization options: %w", err)
	}
	return &out, nil
}

var errBadPattern = errors.New("bad pattern")

// Validate reports the first invalid setting.
func (cfg *Config) Validate() error {
	if _, err := cfg.Classifier(); err != nil {
		return err
	}
	if cfg.MaxDocuments <= 0 {
		return fmt.Errorf("max_documents must be positive, got %d", cfg.MaxDocuments)
	}
	if _, err := cfg.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (cfg *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: unknown level %q", cfg.LogLevel)
	}
	return l, nil
}

// Language is the kind of document a path holds.
type Language int

const (
	Unknown Language = iota
	Haxe
	Stage
)

func (l Language) String() string {
	switch l {
	case Haxe:
		return "haxe"
	case Stage:
		return "stage"
	}
	return "unknown"
}

// Classifier maps file paths to languages with the configured patterns.
type Classifier struct {
	haxe  []glob.Glob
	stage []glob.Glob
}

// Classifier compiles the configured patterns.
func (cfg *Config) Classifier() (*Classifier, error) {
	haxe, err := compileGlobs(cfg.HaxePatterns)
	if err != nil {
		return nil, fmt.Errorf("haxe_patterns: %w", err)
	}
	stage, err := compileGlobs(cfg.StagePatterns)
	if err != nil {
		return nil, fmt.Errorf("stage_patterns: %w", err)
	}
	return &Classifier{haxe: haxe, stage: stage}, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", errBadPattern, p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// Classify returns the language of the file at path. Stage patterns win
// over Haxe patterns when both match.
func (c *Classifier) Classify(path string) Language {
	path = strings.ReplaceAll(path, `\`, "/")
	if matchAny(c.stage, path) {
		return Stage
	}
	if matchAny(c.haxe, path) {
		return Haxe
	}
	return Unknown
}

// ClassifyLanguageID maps an editor language identifier to a language,
// falling back to the path for identifiers that do not settle it.
func (c *Classifier) ClassifyLanguageID(languageID, path string) Language {
	switch strings.ToLower(languageID) {
	case "haxe", "hscript":
		return Haxe
	}
	// Editors call every XML file "xml"; only some are stages.
	return c.Classify(path)
}

func matchAny(globs []glob.Glob, path string) bool {
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}
