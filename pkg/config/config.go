package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cmm-lang/cmmc/pkg/cli"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatShortCircuit Feature = iota
	FeatModOp
	FeatCharLiterals
	FeatCount
)

type Warning int

const (
	WarnUnreachableCode Warning = iota
	WarnShadow
	WarnFallthrough
	WarnExtra
	WarnPedantic
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning
	StdName    string

	BackendName   string
	BackendTarget string
	TargetArch    string

	WriteLogs bool
	WriteAsm  bool
	LogDir    string
	AsmDir    string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:    make(map[Feature]Info),
		Warnings:    make(map[Warning]Info),
		FeatureMap:  make(map[string]Feature),
		WarningMap:  make(map[string]Warning),
		StdName:     "cmm",
		BackendName: "nasm",
		LogDir:      "logs",
		AsmDir:      "output",
	}

	features := map[Feature]Info{
		FeatShortCircuit: {"short-circuit", false, "Evaluate '&&' and '||' lazily instead of combining both operands bitwise."},
		FeatModOp:        {"mod-op", true, "Accept '%' as a multiplicative operator."},
		FeatCharLiterals: {"char-literals", true, "Accept character literals as integer expressions."},
	}

	warnings := map[Warning]Info{
		WarnUnreachableCode: {"unreachable-code", true, "Warn about statements after return, break or continue."},
		WarnShadow:          {"shadow", false, "Warn when a declaration hides a variable of an enclosing scope."},
		WarnFallthrough:     {"fallthrough", false, "Warn when a case body falls through into the next label."},
		WarnExtra:           {"extra", true, "Enable extra miscellaneous warnings."},
		WarnPedantic:        {"pedantic", false, "Issue all warnings demanded by the strict standard."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget selects the backend. For the qbe backend an empty target
// resolves to libqbe's host default.
func (c *Config) SetTarget(goos, goarch, backend, qbeTarget string) error {
	c.TargetArch = goarch
	switch backend {
	case "", "nasm":
		c.BackendName = "nasm"
		c.BackendTarget = "amd64_nasm"
	case "qbe":
		c.BackendName = "qbe"
		if qbeTarget == "" {
			qbeTarget = libqbe.DefaultTarget(goos, goarch)
		}
		c.BackendTarget = qbeTarget
	default:
		return fmt.Errorf("unsupported backend '%s'. Supported: 'nasm', 'qbe'", backend)
	}
	return nil
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyStd switches between the extended dialect ("cmm") and the grammar
// without the dialect extensions ("strict").
func (c *Config) ApplyStd(stdName string) error {
	c.StdName = stdName
	isPedantic := c.IsWarningEnabled(WarnPedantic)

	type stdSettings struct {
		feature     Feature
		cmmValue    bool
		strictValue bool
	}

	settings := []stdSettings{
		{FeatModOp, true, false},
		{FeatCharLiterals, true, false},
		{FeatShortCircuit, false, false},
	}

	switch stdName {
	case "cmm":
		for _, s := range settings {
			c.SetFeature(s.feature, s.cmmValue)
		}
	case "strict":
		for _, s := range settings {
			c.SetFeature(s.feature, s.strictValue)
		}
		c.SetWarning(WarnFallthrough, true)
		c.SetWarning(WarnShadow, isPedantic)
	default:
		return fmt.Errorf("unsupported standard '%s'. Supported: 'cmm', 'strict'", stdName)
	}
	return nil
}

// ApplyEnv reads the CMMC_* environment toggles through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	c.WriteLogs = isTruthy(getenv("CMMC_WRITE_LOGS"))
	c.WriteAsm = isTruthy(getenv("CMMC_WRITE_ASM"))
	if dir := getenv("CMMC_LOG_DIR"); dir != "" {
		c.LogDir = filepath.Clean(dir)
	}
	if dir := getenv("CMMC_ASM_DIR"); dir != "" {
		c.AsmDir = filepath.Clean(dir)
	}
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func (c *Config) applyFlag(flag string) {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
	default:
		name = trimmed
		isWarning = true
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			if i != WarnPedantic {
				c.SetWarning(i, enable)
			}
		}
		return
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
		}
	} else {
		if f, ok := c.FeatureMap[name]; ok {
			c.SetFeature(f, enable)
		}
	}
}

// ProcessFlags applies space separated -W/-F flags, "-Wall" and "-Wno-all"
// first so that individual flags can override them.
func (c *Config) ProcessFlags(flagStr string) {
	flags := strings.Fields(flagStr)
	for _, f := range flags {
		if f == "-Wall" || f == "-Wno-all" {
			c.applyFlag(f)
		}
	}
	for _, f := range flags {
		if f != "-Wall" && f != "-Wno-all" {
			c.applyFlag(f)
		}
	}
}

// SetupFlagGroups registers -W<name>/-Wno-<name> and -F<name>/-Fno-<name>
// for every warning and feature. The returned entries are indexed by
// Warning and Feature respectively.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) (warnings, features []cli.FlagGroupEntry) {
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		enabled, disabled := false, false
		warnings = append(warnings, cli.FlagGroupEntry{
			Name: info.Name, Prefix: "W", Usage: info.Description,
			Enabled: &enabled, Disabled: &disabled,
		})
	}
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		enabled, disabled := false, false
		features = append(features, cli.FlagGroupEntry{
			Name: info.Name, Prefix: "F", Usage: info.Description,
			Enabled: &enabled, Disabled: &disabled,
		})
	}
	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning", "Available Warnings:", warnings)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific features", "feature", "Available Features:", features)
	return warnings, features
}

// ApplyFlagGroups copies the parsed -W/-F group flags into c.
func (c *Config) ApplyFlagGroups(warnings, features []cli.FlagGroupEntry) {
	for i, entry := range warnings {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range features {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}
