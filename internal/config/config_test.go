package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// TestConfig represents a test configuration structure.
type TestConfig struct {
	Config string `help:"Config file path"`

	// Basic types
	StringField string   `toml:"test.string_field" env:"STRING_FIELD"`
	BoolField   bool     `toml:"test.bool_field" env:"BOOL_FIELD"`
	IntField    int      `toml:"test.int_field" env:"INT_FIELD"`
	SliceField  []string `toml:"test.slice_field" env:"SLICE_FIELD"`

	// Nested config
	NestedString string `toml:"nested.value" env:"NESTED_VALUE"`

	FloatField    float64       `toml:"test.float_field" env:"FLOAT_FIELD"`
	DurationField time.Duration `toml:"test.duration_field" env:"DURATION_FIELD"`
	UintField     uint32        `toml:"test.uint_field" env:"UINT_FIELD"`
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeTempConfig(t, `
[test]
string_field = "hello world"
bool_field = true
int_field = 42
slice_field = ["item1", "item2", "item3"]
float_field = 2.5
duration_field = 1500
uint_field = 2

[nested]
value = "nested value"
`)

	config := &TestConfig{Config: path}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "hello world" {
		t.Errorf("StringField = %q, want %q", config.StringField, "hello world")
	}
	if !config.BoolField {
		t.Errorf("BoolField = %v, want true", config.BoolField)
	}
	if config.IntField != 42 {
		t.Errorf("IntField = %d, want 42", config.IntField)
	}
	if want := []string{"item1", "item2", "item3"}; !reflect.DeepEqual(config.SliceField, want) {
		t.Errorf("SliceField = %v, want %v", config.SliceField, want)
	}
	if config.NestedString != "nested value" {
		t.Errorf("NestedString = %q, want %q", config.NestedString, "nested value")
	}
	if config.FloatField != 2.5 {
		t.Errorf("FloatField = %v, want 2.5", config.FloatField)
	}
	if config.DurationField != 1500*time.Millisecond {
		t.Errorf("DurationField = %v, want 1.5s", config.DurationField)
	}
	if config.UintField != 2 {
		t.Errorf("UintField = %d, want 2", config.UintField)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("CAMSYNC_STRING_FIELD", "env string")
	t.Setenv("CAMSYNC_BOOL_FIELD", "false")
	t.Setenv("CAMSYNC_INT_FIELD", "123")
	t.Setenv("CAMSYNC_SLICE_FIELD", "a,b,c")
	t.Setenv("CAMSYNC_NESTED_VALUE", "env nested")
	t.Setenv("CAMSYNC_FLOAT_FIELD", "12.5")
	t.Setenv("CAMSYNC_DURATION_FIELD", "250ms")
	t.Setenv("CAMSYNC_UINT_FIELD", "3")

	config := &TestConfig{}

	err := LoadConfig(config, nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "env string" {
		t.Errorf("StringField = %q, want %q", config.StringField, "env string")
	}
	if config.BoolField {
		t.Errorf("BoolField = %v, want false", config.BoolField)
	}
	if config.IntField != 123 {
		t.Errorf("IntField = %d, want 123", config.IntField)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(config.SliceField, want) {
		t.Errorf("SliceField = %v, want %v", config.SliceField, want)
	}
	if config.NestedString != "env nested" {
		t.Errorf("NestedString = %q, want %q", config.NestedString, "env nested")
	}
	if config.FloatField != 12.5 {
		t.Errorf("FloatField = %v, want 12.5", config.FloatField)
	}
	if config.DurationField != 250*time.Millisecond {
		t.Errorf("DurationField = %v, want 250ms", config.DurationField)
	}
	if config.UintField != 3 {
		t.Errorf("UintField = %d, want 3", config.UintField)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeTempConfig(t, `
[test]
string_field = "toml value"
bool_field = true
int_field = 100
slice_field = ["toml1", "toml2"]
`)
	t.Setenv("CAMSYNC_STRING_FIELD", "env override")
	t.Setenv("CAMSYNC_BOOL_FIELD", "false")
	t.Setenv("CAMSYNC_INT_FIELD", "7")

	config := &TestConfig{Config: path}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().IntVar(&config.IntField, "int-field", 0, "")
	if err := cmd.Flags().Set("int-field", "9"); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(config, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"env over toml", config.StringField, "env override"},
		{"env bool over toml", config.BoolField, false},
		{"cli over env", config.IntField, 9},
		{"toml when unset", config.SliceField, []string{"toml1", "toml2"}},
	}
	for _, tt := range tests {
		if !reflect.DeepEqual(tt.got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"level1": map[string]any{
			"level2": map[string]any{
				"value": "nested_value",
			},
			"simple": "simple_value",
		},
		"root": "root_value",
	}

	tests := []struct {
		path     string
		expected any
	}{
		{"root", "root_value"},
		{"level1.simple", "simple_value"},
		{"level1.level2.value", "nested_value"},
		{"nonexistent", nil},
		{"level1.nonexistent", nil},
	}

	for _, test := range tests {
		result := getNestedValue(data, test.path)
		if result != test.expected {
			t.Errorf("getNestedValue(%q) = %v, expected %v", test.path, result, test.expected)
		}
	}
}

func TestSetFieldValue(t *testing.T) {
	type TestStruct struct {
		StringField string
		BoolField   bool
		IntField    int
		SliceField  []string
	}

	s := &TestStruct{}
	v := reflect.ValueOf(s).Elem()

	// Test string field
	setFieldValue(v.FieldByName("StringField"), "test string")
	if s.StringField != "test string" {
		t.Errorf("Expected StringField to be 'test string', got '%s'", s.StringField)
	}

	// Test bool field
	setFieldValue(v.FieldByName("BoolField"), true)
	if !s.BoolField {
		t.Errorf("Expected BoolField to be true, got %v", s.BoolField)
	}

	// Test int field
	setFieldValue(v.FieldByName("IntField"), int64(42))
	if s.IntField != 42 {
		t.Errorf("Expected IntField to be 42, got %d", s.IntField)
	}

	// Test slice field
	sliceValue := []any{"a", "b", "c"}
	setFieldValue(v.FieldByName("SliceField"), sliceValue)
	expectedSlice := []string{"a", "b", "c"}
	if !reflect.DeepEqual(s.SliceField, expectedSlice) {
		t.Errorf("Expected SliceField to be %v, got %v", expectedSlice, s.SliceField)
	}
}

func TestSetFieldValueFromString(t *testing.T) {
	type TestStruct struct {
		StringField string
		BoolField   bool
		IntField    int
		SliceField  []string
	}

	s := &TestStruct{}
	v := reflect.ValueOf(s).Elem()

	// Test string field
	setFieldValueFromString(v.FieldByName("StringField"), "test string")
	if s.StringField != "test string" {
		t.Errorf("Expected StringField to be 'test string', got '%s'", s.StringField)
	}

	// Test bool field
	setFieldValueFromString(v.FieldByName("BoolField"), "true")
	if !s.BoolField {
		t.Errorf("Expected BoolField to be true, got %v", s.BoolField)
	}

	// Test int field
	setFieldValueFromString(v.FieldByName("IntField"), "123")
	if s.IntField != 123 {
		t.Errorf("Expected IntField to be 123, got %d", s.IntField)
	}

	// Test slice field (comma-separated)
	setFieldValueFromString(v.FieldByName("SliceField"), "x,y,z")
	expectedSlice := []string{"x", "y", "z"}
	if !reflect.DeepEqual(s.SliceField, expectedSlice) {
		t.Errorf("Expected SliceField to be %v, got %v", expectedSlice, s.SliceField)
	}

	// Test slice field with spaces
	setFieldValueFromString(v.FieldByName("SliceField"), " a , b , c ")
	expectedSliceWithSpaces := []string{"a", "b", "c"}
	if !reflect.DeepEqual(s.SliceField, expectedSliceWithSpaces) {
		t.Errorf("Expected SliceField to be %v, got %v", expectedSliceWithSpaces, s.SliceField)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	config := &TestConfig{
		Config: "nonexistent_file.toml",
	}

	// Should not fail when file doesn't exist
	err := LoadConfig(config, nil)
	if err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
}

// LoggingConfig matches the logging fields in main.go Options struct.
type LoggingConfig struct {
	Config          string `help:"Config file path"`
	LoggingLevel    string `toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSession  string `toml:"logging.session" env:"LOGGING_SESSION"`
	LoggingTrigger  string `toml:"logging.trigger" env:"LOGGING_TRIGGER"`
	LoggingPipeline string `toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingAPI      string `toml:"logging.api" env:"LOGGING_API"`
}

func TestLoadLoggingModuleLevels(t *testing.T) {
	path := writeTempConfig(t, `
[logging]
level = "info"
format = "text"
session = "debug"
trigger = "debug"
pipeline = "warn"
api = "error"
`)

	config := &LoggingConfig{
		Config:          path,
		LoggingLevel:    "info",
		LoggingFormat:   "text",
		LoggingSession:  "info",
		LoggingTrigger:  "info",
		LoggingPipeline: "info",
		LoggingAPI:      "info",
	}

	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	tests := []struct {
		field string
		got   string
		want  string
	}{
		{"LoggingLevel", config.LoggingLevel, "info"},
		{"LoggingFormat", config.LoggingFormat, "text"},
		{"LoggingSession", config.LoggingSession, "debug"},
		{"LoggingTrigger", config.LoggingTrigger, "debug"},
		{"LoggingPipeline", config.LoggingPipeline, "warn"},
		{"LoggingAPI", config.LoggingAPI, "error"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.field, tt.got, tt.want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeTempConfig(t, `
[logging]
level = "warn"
format = "json"
trigger = "debug"
`)
	cfg, err := LoadLoggingConfig(path)
	if err != nil {
		t.Fatalf("LoadLoggingConfig() error = %v", err)
	}
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("Level/Format = %s/%s, want warn/json", cfg.Level, cfg.Format)
	}
	if want := map[string]string{"trigger": "debug"}; !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("Modules = %v, want %v", cfg.Modules, want)
	}

	if _, err := LoadLoggingConfig(path + ".missing"); err == nil {
		t.Error("LoadLoggingConfig() of a missing file succeeded")
	}
	cfg, err = LoadLoggingConfig("")
	if err != nil || cfg.Level != "info" {
		t.Errorf("LoadLoggingConfig(\"\") = %+v, %v, want defaults", cfg, err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CAMSYNC_DOTENV_ONLY=from-file\nCAMSYNC_DOTENV_SET=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CAMSYNC_DOTENV_SET", "from-env")
	t.Cleanup(func() { os.Unsetenv("CAMSYNC_DOTENV_ONLY") })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("CAMSYNC_DOTENV_ONLY"); got != "from-file" {
		t.Errorf("CAMSYNC_DOTENV_ONLY = %q, want from-file", got)
	}
	if got := os.Getenv("CAMSYNC_DOTENV_SET"); got != "from-env" {
		t.Errorf("CAMSYNC_DOTENV_SET = %q, want the existing value", got)
	}
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("LoadDotEnv() of a missing file error = %v", err)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camsync.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeTempConfig(t, "[test\ninvalid toml syntax\n")
	if err := LoadConfig(&TestConfig{Config: path}, nil); err == nil {
		t.Fatal("LoadConfig should fail for invalid TOML")
	}
}
