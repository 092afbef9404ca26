// Package config loads ipfls settings from defaults, an optional .ipfls file
// in the workspace root, IPFLS_* environment variables and editor pushes.
package config

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Setting keys. Viper lower-cases keys; "::" separates levels so that keys
// may contain dots.
const (
	KeyIgorVersion      = "igorversion"
	KeySymbolFile       = "suggest::symbolfile"
	KeySuppressMessages = "suggest::suppressmessages"
	KeyAssociations     = "files::associations"
	KeyLogLevel         = "log::level"
	KeyLogFormat        = "log::format"
	KeyLogFile          = "log::file"
)

// Message suppression switches.
const (
	SuppressCompletionDetail        = "completionItem.label.detail"
	SuppressCompletionDescription   = "completionItem.label.description"
	SuppressCompletionDocumentation = "completionItem.documentation"
	SuppressSignatureDocumentation  = "signatureHelp.signatures.documentation"
	SuppressHoverContents           = "hover.contents"
)

// Language is the association value that selects procedure files.
const Language = "igorpro"

// DefaultAssociations is the glob table every configuration starts from.
var DefaultAssociations = map[string]string{"*.ipf": Language}

// Config holds the effective settings.
type Config struct {
	IgorVersion      string            `json:"igorVersion"`
	SymbolFile       string            `json:"symbolFile,omitempty"`
	SuppressMessages map[string]bool   `json:"suppressMessages,omitempty"`
	Associations     map[string]string `json:"associations"`
	LogLevel         string            `json:"logLevel"`
	LogFormat        string            `json:"logFormat"`
	LogFile          string            `json:"logFile,omitempty"`
	// File is the config file that was read, if any.
	File string `json:"file,omitempty"`
}

// Default returns the built-in settings.
func Default() *Config {
	cfg, _ := decode(newViper())
	return cfg
}

func newViper() *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetDefault(KeyIgorVersion, "9.01")
	v.SetDefault(KeySymbolFile, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyLogFile, "")
	v.SetEnvPrefix("IPFLS")
	v.SetEnvKeyReplacer(strings.NewReplacer("::", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads settings for a workspace root. An explicit path must exist; the
// implicit .ipfls.{yaml,json,toml} in root is optional.
func Load(root, path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".ipfls")
		v.AddConfigPath(root)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading: %w", err)
		}
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if used := v.ConfigFileUsed(); used != "" {
		cfg.File, _ = filepath.Abs(used)
	}
	return cfg, nil
}

// Merge overlays editor settings, shaped like the config file, on a copy of
// c.
func (c *Config) Merge(settings map[string]any) (*Config, error) {
	v := newViper()
	if err := v.MergeConfigMap(c.asMap()); err != nil {
		return nil, fmt.Errorf("config: merging: %w", err)
	}
	if err := v.MergeConfigMap(settings); err != nil {
		return nil, fmt.Errorf("config: merging: %w", err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.File = c.File
	return cfg, nil
}

func (c *Config) asMap() map[string]any {
	suppress := make(map[string]any, len(c.SuppressMessages))
	for k, b := range c.SuppressMessages {
		suppress[k] = b
	}
	assoc := make(map[string]any, len(c.Associations))
	for k, lang := range c.Associations {
		assoc[k] = lang
	}
	return map[string]any{
		"igorversion": c.IgorVersion,
		"suggest": map[string]any{
			"symbolfile":       c.SymbolFile,
			"suppressmessages": suppress,
		},
		"files": map[string]any{"associations": assoc},
		"log": map[string]any{
			"level":  c.LogLevel,
			"format": c.LogFormat,
			"file":   c.LogFile,
		},
	}
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		IgorVersion:      v.GetString(KeyIgorVersion),
		SymbolFile:       v.GetString(KeySymbolFile),
		SuppressMessages: map[string]bool{},
		Associations:     maps.Clone(DefaultAssociations),
		LogLevel:         v.GetString(KeyLogLevel),
		LogFormat:        v.GetString(KeyLogFormat),
		LogFile:          v.GetString(KeyLogFile),
	}
	for k, raw := range v.GetStringMap(KeySuppressMessages) {
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return nil, fmt.Errorf("config: %s.%s: %w", KeySuppressMessages, k, err)
		}
		cfg.SuppressMessages[strings.ToLower(k)] = b
	}
	for glob, lang := range v.GetStringMapString(KeyAssociations) {
		cfg.Associations[strings.ToLower(glob)] = lang
	}
	return cfg, nil
}

// Suppressed reports whether a message switch is on. Keys match without
// regard to case, since viper lower-cases the ones it decodes.
func (c *Config) Suppressed(key string) bool {
	if on, ok := c.SuppressMessages[key]; ok {
		return on
	}
	for k, on := range c.SuppressMessages {
		if strings.EqualFold(k, key) {
			return on
		}
	}
	return false
}

// SymbolFilePath expands ${workspaceFolder}/ and ${userHome}/ prefixes. It
// returns "" when no external book is configured or a prefix cannot be
// expanded.
func (c *Config) SymbolFilePath(workspaceFolder, home string) string {
	p := c.SymbolFile
	switch {
	case p == "":
		return ""
	case strings.HasPrefix(p, "${workspaceFolder}/"):
		if workspaceFolder == "" {
			return ""
		}
		return filepath.Join(workspaceFolder, strings.TrimPrefix(p, "${workspaceFolder}/"))
	case strings.HasPrefix(p, "${userHome}/"):
		if home == "" {
			return ""
		}
		return filepath.Join(home, strings.TrimPrefix(p, "${userHome}/"))
	}
	return p
}

// SameAssociations reports whether both configs select the same files.
func (c *Config) SameAssociations(o *Config) bool {
	return maps.Equal(c.Associations, o.Associations)
}
