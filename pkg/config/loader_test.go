package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("../../config/advisor.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected log_level 'info', got '%s'", cfg.LogLevel)
	}

	wantNames := []string{"dropping_time", "rotation_time_2", "dropping_speed"}
	names := cfg.Parameters.Names()
	if len(names) != len(wantNames) {
		t.Fatalf("Expected %d parameters, got %d", len(wantNames), len(names))
	}
	for i := range wantNames {
		if names[i] != wantNames[i] {
			t.Errorf("Parameter %d: expected %s, got %s", i, wantNames[i], names[i])
		}
	}

	speed, ok := cfg.Parameters.Lookup("dropping_speed")
	if !ok {
		t.Fatal("dropping_speed not found")
	}
	if speed.Min != 25 || speed.Max != 1000 || speed.Step != 1 {
		t.Errorf("Unexpected dropping_speed bound: %+v", speed)
	}

	if len(cfg.Constraints) != 1 {
		t.Errorf("Expected 1 constraint, got %d", len(cfg.Constraints))
	}
	if cfg.Optimizers.Exploration.XiOr(-1) != 0.1 {
		t.Errorf("Expected exploration xi 0.1, got %f", cfg.Optimizers.Exploration.XiOr(-1))
	}
	if cfg.Batch.PerStrategy != 2 {
		t.Errorf("Expected per_strategy 2, got %d", cfg.Batch.PerStrategy)
	}

	if cfg.Data == nil {
		t.Fatal("Data should not be nil")
	}
	if cfg.Data.Target.Scale != 0.005 {
		t.Errorf("Expected target scale 0.005, got %f", cfg.Data.Target.Scale)
	}
	if len(cfg.Data.Derived) != 2 || cfg.Data.Derived[0].Name != "time_after" || cfg.Data.Derived[1].Name != "mean_jsc" {
		t.Errorf("Unexpected derived columns: %+v", cfg.Data.Derived)
	}

	if cfg.Nomad == nil {
		t.Fatal("Nomad should not be nil")
	}
	timeout, err := cfg.Nomad.GetTimeout()
	if err != nil {
		t.Fatalf("GetTimeout failed: %v", err)
	}
	if timeout.Seconds() != 30 {
		t.Errorf("Expected 30s timeout, got %v", timeout)
	}
	if cfg.Nomad.Process.StepPosition != 3 || cfg.Nomad.Process.StepField == "" {
		t.Errorf("Expected the third plan step to be selected, got %+v", cfg.Nomad.Process)
	}
	if cfg.Nomad.Measurement.Mapping["efficiency_forward"] != "data.jv_curve.1.efficiency" {
		t.Errorf("Unexpected measurement mapping: %v", cfg.Nomad.Measurement.Mapping)
	}
}

func TestNomadDefaults(t *testing.T) {
	cfg, err := ParseConfigYAMLString("parameters:\n  x: {min: 0, max: 1}\nnomad:\n  base_url: http://x\n")
	if err != nil {
		t.Fatalf("ParseConfigYAMLString failed: %v", err)
	}
	n := cfg.Nomad
	if n.Process.EntryType != "peroTF_SpinCoating" || n.Measurement.EntryType != "peroTF_JVmeasurement" {
		t.Errorf("Unexpected entry types: %q, %q", n.Process.EntryType, n.Measurement.EntryType)
	}
	if n.Measurement.NamePath != "data.name" || n.SampleColumn != "sample_id" {
		t.Errorf("Unexpected defaults: %+v", n)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestLoadConfigFromTempFile(t *testing.T) {
	content := `
log_level: debug
parameters:
  x: {min: 0, max: 1}
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log_level debug, got %s", cfg.LogLevel)
	}
	if cfg.Batch.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("Expected default max_attempts %d, got %d", DefaultMaxAttempts, cfg.Batch.MaxAttempts)
	}
	if cfg.Batch.MinDistance() != DefaultMinRelativeDistance {
		t.Errorf("Expected default min_relative_distance, got %f", cfg.Batch.MinDistance())
	}
	if cfg.Batch.MaxPerStrategy != DefaultMaxPerStrategy {
		t.Errorf("Expected default max_per_strategy %d, got %d", DefaultMaxPerStrategy, cfg.Batch.MaxPerStrategy)
	}
	if cfg.Optimizers.Exploitation.XiOr(-1) != DefaultExploitationXi {
		t.Errorf("Expected default exploitation xi, got %f", cfg.Optimizers.Exploitation.XiOr(-1))
	}
	if !cfg.Optimizers.DuplicatesAllowed() {
		t.Error("Expected duplicates allowed by default")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "Invalid log level",
			yaml:    "log_level: loud\nparameters:\n  x: {min: 0, max: 1}\n",
			wantErr: "invalid log_level",
		},
		{
			name:    "No parameters",
			yaml:    "log_level: info\n",
			wantErr: "at least one parameter",
		},
		{
			name:    "Min not below max",
			yaml:    "parameters:\n  x: {min: 2, max: 1}\n",
			wantErr: "must be less than max",
		},
		{
			name:    "Duplicate parameter",
			yaml:    "parameters:\n  x: {min: 0, max: 1}\n  x: {min: 0, max: 2}\n",
			wantErr: "",
		},
		{
			name:    "Constraint unknown name",
			yaml:    "parameters:\n  x: {min: 0, max: 1}\nconstraints:\n  - expr: \"y > 0\"\n",
			wantErr: "unknown parameter: y",
		},
		{
			name:    "Constraint not boolean",
			yaml:    "parameters:\n  x: {min: 0, max: 1}\nconstraints:\n  - expr: \"x + 1\"\n",
			wantErr: "must be a comparison",
		},
		{
			name:    "Constraint parse error",
			yaml:    "parameters:\n  x: {min: 0, max: 1}\nconstraints:\n  - expr: \"x >\"\n",
			wantErr: "constraint",
		},
		{
			name:    "Negative xi",
			yaml:    "parameters:\n  x: {min: 0, max: 1}\noptimizers:\n  exploration: {xi: -0.5}\n",
			wantErr: "exploration.xi",
		},
		{
			name:    "Negative noise",
			yaml:    "parameters:\n  x: {min: 0, max: 1}\noptimizers:\n  noise: -1\n",
			wantErr: "noise must be positive",
		},
		{
			name:    "Distance above diagonal",
			yaml:    "parameters:\n  x: {min: 0, max: 1}\nbatch:\n  min_relative_distance: 2\n",
			wantErr: "min_relative_distance",
		},
		{
			name:    "Batch size above cap",
			yaml:    "parameters:\n  x: {min: 0, max: 1}\nbatch:\n  per_strategy: 8\n  max_per_strategy: 4\n",
			wantErr: "exceeds max_per_strategy",
		},
		{
			name:    "Batch size above default cap",
			yaml:    "parameters:\n  x: {min: 0, max: 1}\nbatch:\n  per_strategy: 4611686018427387904\n",
			wantErr: "exceeds max_per_strategy",
		},
		{
			name:    "Negative cap",
			yaml:    "parameters:\n  x: {min: 0, max: 1}\nbatch:\n  max_per_strategy: -1\n",
			wantErr: "max_per_strategy must be at least 1",
		},
		{
			name:    "Derived column in constraint reads data column",
			yaml:    "parameters:\n  a: {min: 0, max: 1}\nconstraints:\n  - expr: \"mean_jsc > 0\"\ndata:\n  target: {columns: [y]}\n  derived:\n    - {name: mean_jsc, expr: \"(jsc_forward + jsc_backward) / 2\"}\n",
			wantErr: "derived column mean_jsc reads jsc_forward",
		},
		{
			name:    "Derived column in constraint reads later column",
			yaml:    "parameters:\n  a: {min: 0, max: 1}\nconstraints:\n  - expr: \"twice > 0\"\ndata:\n  target: {columns: [y]}\n  derived:\n    - {name: twice, expr: \"2 * half\"}\n    - {name: half, expr: \"a / 2\"}\n",
			wantErr: "derived column twice reads half",
		},
		{
			name:    "Step position without field",
			yaml:    "parameters:\n  x: {min: 0, max: 1}\nnomad:\n  base_url: http://x\n  process:\n    step_position: 3\n",
			wantErr: "step_field",
		},
		{
			name:    "Column mapped twice",
			yaml:    "parameters:\n  x: {min: 0, max: 1}\nnomad:\n  base_url: http://x\n  process:\n    mapping: {x: data.a}\n  measurement:\n    mapping: {x: data.b}\n",
			wantErr: "mapped by both",
		},
		{
			name:    "Mapping uses reserved column",
			yaml:    "parameters:\n  x: {min: 0, max: 1}\nnomad:\n  base_url: http://x\n  measurement:\n    mapping: {pixel: data.name}\n",
			wantErr: "collides with pixel",
		},
		{
			name:    "Data without target",
			yaml:    "parameters:\n  x: {min: 0, max: 1}\ndata:\n  path: a.csv\n",
			wantErr: "target.columns",
		},
		{
			name:    "Invalid output format",
			yaml:    "parameters:\n  x: {min: 0, max: 1}\noutput:\n  format: html\n",
			wantErr: "invalid output format",
		},
		{
			name:    "Invalid nomad timeout",
			yaml:    "parameters:\n  x: {min: 0, max: 1}\nnomad:\n  base_url: http://x\n  timeout: soon\n",
			wantErr: "invalid timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfigYAMLString(tt.yaml)
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConstraintMayReadDerivedColumn(t *testing.T) {
	yamlText := `
parameters:
  a: {min: 0, max: 10}
  b: {min: 0, max: 10}
constraints:
  - expr: "gap >= 0"
data:
  path: x.csv
  target: {columns: [y]}
  derived:
    - name: gap
      expr: "b - a"
`
	if _, err := ParseConfigYAMLString(yamlText); err != nil {
		t.Fatalf("Expected derived column to be usable in constraints: %v", err)
	}
}

func TestDerivedColumnsOutsideConstraintsMayReadDataColumns(t *testing.T) {
	yamlText := `
parameters:
  dropping_time: {min: 20, max: 40}
  rotation_time_2: {min: 11, max: 35}
constraints:
  - expr: "time_after >= 0"
data:
  target: {columns: [efficiency_forward]}
  derived:
    - name: time_after
      expr: "10 + rotation_time_2 - dropping_time"
    - name: mean_jsc
      expr: "(jsc_forward + jsc_backward) / 2"
    - name: late
      expr: "time_after * 2"
`
	if _, err := ParseConfigYAMLString(yamlText); err != nil {
		t.Fatalf("Expected config to load: %v", err)
	}
}

func TestZeroMinDistanceIsKept(t *testing.T) {
	cfg, err := ParseConfigYAMLString("parameters:\n  x: {min: 0, max: 1}\nbatch:\n  min_relative_distance: 0\n")
	if err != nil {
		t.Fatalf("ParseConfigYAMLString failed: %v", err)
	}
	if cfg.Batch.MinDistance() != 0 {
		t.Errorf("Expected explicit 0 to disable the check, got %f", cfg.Batch.MinDistance())
	}
}

func TestNomadCredentials(t *testing.T) {
	n := &Nomad{UsernameEnv: "EXPADVISOR_TEST_USER", PasswordEnv: "EXPADVISOR_TEST_PASS"}

	t.Setenv("EXPADVISOR_TEST_USER", "")
	t.Setenv("EXPADVISOR_TEST_PASS", "")
	if _, err := n.Credentials(); err == nil {
		t.Error("Expected error when credentials are unset")
	}

	t.Setenv("EXPADVISOR_TEST_USER", "alice")
	t.Setenv("EXPADVISOR_TEST_PASS", "secret")
	creds, err := n.Credentials()
	if err != nil {
		t.Fatalf("Credentials failed: %v", err)
	}
	if creds.Username != "alice" || creds.Password != "secret" {
		t.Errorf("Unexpected credentials: %+v", creds)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("EXPADVISOR_TEST_ENV=from-file\n"), 0o600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	t.Setenv("EXPADVISOR_TEST_ENV", "")
	os.Unsetenv("EXPADVISOR_TEST_ENV")

	if err := LoadEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}
	if got := os.Getenv("EXPADVISOR_TEST_ENV"); got != "from-file" {
		t.Errorf("Expected from-file, got %q", got)
	}
}
