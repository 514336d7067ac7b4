package config

import (
	"testing"

	"github.com/cmm-lang/cmmc/pkg/cli"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	if cfg.BackendName != "nasm" || cfg.StdName != "cmm" {
		t.Errorf("backend/std = %s/%s, want nasm/cmm", cfg.BackendName, cfg.StdName)
	}
	for _, tt := range []struct {
		name string
		got  bool
		want bool
	}{
		{"short-circuit", cfg.IsFeatureEnabled(FeatShortCircuit), false},
		{"mod-op", cfg.IsFeatureEnabled(FeatModOp), true},
		{"char-literals", cfg.IsFeatureEnabled(FeatCharLiterals), true},
		{"unreachable-code", cfg.IsWarningEnabled(WarnUnreachableCode), true},
		{"shadow", cfg.IsWarningEnabled(WarnShadow), false},
		{"fallthrough", cfg.IsWarningEnabled(WarnFallthrough), false},
		{"pedantic", cfg.IsWarningEnabled(WarnPedantic), false},
	} {
		if tt.got != tt.want {
			t.Errorf("%s enabled = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if cfg.WarningMap["shadow"] != WarnShadow || cfg.FeatureMap["mod-op"] != FeatModOp {
		t.Error("name maps do not match the info tables")
	}
}

func TestApplyStd(t *testing.T) {
	cfg := NewConfig()
	if err := cfg.ApplyStd("strict"); err != nil {
		t.Fatal(err)
	}
	if cfg.IsFeatureEnabled(FeatModOp) || cfg.IsFeatureEnabled(FeatCharLiterals) {
		t.Error("strict must disable the dialect extensions")
	}
	if !cfg.IsWarningEnabled(WarnFallthrough) || cfg.IsWarningEnabled(WarnShadow) {
		t.Error("strict enables fallthrough and leaves shadow to -pedantic")
	}

	pedantic := NewConfig()
	pedantic.SetWarning(WarnPedantic, true)
	if err := pedantic.ApplyStd("strict"); err != nil {
		t.Fatal(err)
	}
	if !pedantic.IsWarningEnabled(WarnShadow) {
		t.Error("pedantic strict must enable shadow")
	}

	if err := cfg.ApplyStd("cmm"); err != nil {
		t.Fatal(err)
	}
	if !cfg.IsFeatureEnabled(FeatModOp) {
		t.Error("cmm must re-enable mod-op")
	}

	if err := cfg.ApplyStd("c99"); err == nil {
		t.Error("unknown standard accepted")
	}
}

func TestProcessFlags(t *testing.T) {
	cfg := NewConfig()
	cfg.ProcessFlags("-Wno-shadow -Wall -Fshort-circuit -Fno-mod-op -Wbogus")
	if cfg.IsWarningEnabled(WarnShadow) {
		t.Error("-Wno-shadow must override -Wall regardless of order")
	}
	if !cfg.IsWarningEnabled(WarnFallthrough) {
		t.Error("-Wall must enable fallthrough")
	}
	if cfg.IsWarningEnabled(WarnPedantic) {
		t.Error("-Wall must not enable pedantic")
	}
	if !cfg.IsFeatureEnabled(FeatShortCircuit) || cfg.IsFeatureEnabled(FeatModOp) {
		t.Error("feature flags not applied")
	}

	cfg.ProcessFlags("-Wno-all")
	for w := Warning(0); w < WarnCount; w++ {
		if cfg.IsWarningEnabled(w) {
			t.Errorf("%s still enabled after -Wno-all", cfg.Warnings[w].Name)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CMMC_WRITE_LOGS": "yes",
		"CMMC_WRITE_ASM":  "0",
		"CMMC_LOG_DIR":    "build/logs/",
	}
	cfg := NewConfig()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if !cfg.WriteLogs || cfg.WriteAsm {
		t.Errorf("WriteLogs/WriteAsm = %v/%v, want true/false", cfg.WriteLogs, cfg.WriteAsm)
	}
	if cfg.LogDir != "build/logs" {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.AsmDir != "output" {
		t.Errorf("AsmDir = %q, want the default", cfg.AsmDir)
	}
}

func TestSetTarget(t *testing.T) {
	cfg := NewConfig()
	if err := cfg.SetTarget("linux", "amd64", "nasm", ""); err != nil {
		t.Fatal(err)
	}
	if cfg.BackendName != "nasm" || cfg.BackendTarget != "amd64_nasm" {
		t.Errorf("nasm target = %s/%s", cfg.BackendName, cfg.BackendTarget)
	}

	if err := cfg.SetTarget("linux", "amd64", "qbe", "arm64"); err != nil {
		t.Fatal(err)
	}
	if cfg.BackendName != "qbe" || cfg.BackendTarget != "arm64" {
		t.Errorf("explicit qbe target = %s/%s", cfg.BackendName, cfg.BackendTarget)
	}

	if err := cfg.SetTarget("linux", "amd64", "qbe", ""); err != nil {
		t.Fatal(err)
	}
	if cfg.BackendTarget == "" {
		t.Error("qbe without a target must resolve the host default")
	}

	if err := cfg.SetTarget("linux", "amd64", "llvm", ""); err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestFlagGroups(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("test")
	warnings, features := cfg.SetupFlagGroups(fs)

	if err := fs.Parse([]string{"-Wshadow", "-Wno-unreachable-code", "-Fshort-circuit", "main.c"}); err != nil {
		t.Fatal(err)
	}
	cfg.ApplyFlagGroups(warnings, features)

	if !cfg.IsWarningEnabled(WarnShadow) || cfg.IsWarningEnabled(WarnUnreachableCode) {
		t.Error("warning group flags not applied")
	}
	if !cfg.IsFeatureEnabled(FeatShortCircuit) {
		t.Error("feature group flag not applied")
	}
	if args := fs.Args(); len(args) != 1 || args[0] != "main.c" {
		t.Errorf("Args() = %v", args)
	}
}
