package config

import (
	"reflect"
	"testing"

	"github.com/RyanZhang-64/Flightle/internal/modules/filter"
	"github.com/RyanZhang-64/Flightle/internal/modules/input"
	"github.com/RyanZhang-64/Flightle/internal/modules/output"
	"github.com/RyanZhang-64/Flightle/pkg/connector"
)

func TestDefaultRunConfig(t *testing.T) {
	want := RunConfig{
		Name:        "airports",
		InputPath:   "airports.csv",
		OutputPath:  "output.csv",
		LineEnding:  "crlf",
		OnMalformed: "fail",
	}
	if got := DefaultRunConfig(); got != want {
		t.Errorf("DefaultRunConfig() = %+v, want %+v", got, want)
	}
}

func TestFromData(t *testing.T) {
	tests := []struct {
		name string
		data map[string]interface{}
		want RunConfig
	}{
		{
			name: "empty keeps defaults",
			data: map[string]interface{}{},
			want: DefaultRunConfig(),
		},
		{
			name: "full",
			data: map[string]interface{}{
				"name":        "run",
				"input":       map[string]interface{}{"path": "in.csv"},
				"output":      map[string]interface{}{"path": "out.csv", "lineEnding": "lf"},
				"onMalformed": "skip",
			},
			want: RunConfig{Name: "run", InputPath: "in.csv", OutputPath: "out.csv", LineEnding: "lf", OnMalformed: "skip"},
		},
		{
			name: "partial output section",
			data: map[string]interface{}{
				"output": map[string]interface{}{"lineEnding": "lf"},
			},
			want: RunConfig{Name: "airports", InputPath: "airports.csv", OutputPath: "output.csv", LineEnding: "lf", OnMalformed: "fail"},
		},
		{
			name: "null section",
			data: map[string]interface{}{"input": nil},
			want: DefaultRunConfig(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromData(tt.data)
			if err != nil {
				t.Fatalf("FromData() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("FromData() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFromData_Errors(t *testing.T) {
	tests := []struct {
		name string
		data map[string]interface{}
	}{
		{"nil", nil},
		{"input not an object", map[string]interface{}{"input": "airports.csv"}},
		{"name not a string", map[string]interface{}{"name": 7}},
		{"path not a string", map[string]interface{}{"output": map[string]interface{}{"path": []interface{}{"a"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromData(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunConfig_Apply(t *testing.T) {
	base := RunConfig{Name: "run", InputPath: "in.csv", OutputPath: "out.csv", LineEnding: "lf", OnMalformed: "skip"}

	got := base.Apply(Overrides{})
	if got != base {
		t.Errorf("empty overrides changed config: %+v", got)
	}

	got = base.Apply(Overrides{InputPath: "flag.csv", OnMalformed: "fail"})
	want := RunConfig{Name: "run", InputPath: "flag.csv", OutputPath: "out.csv", LineEnding: "lf", OnMalformed: "fail"}
	if got != want {
		t.Errorf("Apply() = %+v, want %+v", got, want)
	}
}

func TestRunConfig_Validate(t *testing.T) {
	if err := DefaultRunConfig().Validate(); err != nil {
		t.Errorf("defaults should be valid: %v", err)
	}

	bad := DefaultRunConfig()
	bad.OnMalformed = "ignore"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown policy")
	}

	bad = DefaultRunConfig()
	bad.LineEnding = "cr"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown line ending")
	}
}

func TestRunConfig_Pipeline(t *testing.T) {
	rc := RunConfig{Name: "run", InputPath: "in.csv", OutputPath: "out.csv", LineEnding: "lf", OnMalformed: "skip"}
	p := rc.Pipeline()

	if p.ID != "run" || p.Name != "run" {
		t.Errorf("ID/Name = %q/%q, want run/run", p.ID, p.Name)
	}
	if p.Input.Type != input.TypeCSV || p.Input.Config["path"] != "in.csv" {
		t.Errorf("Input = %+v", p.Input)
	}
	if len(p.Filters) != 1 || p.Filters[0].Type != filter.TypeCategory {
		t.Errorf("Filters = %+v, want one category filter", p.Filters)
	}
	wantOut := map[string]interface{}{"path": "out.csv", "lineEnding": "lf"}
	if p.Output.Type != output.TypeCSV || !reflect.DeepEqual(p.Output.Config, wantOut) {
		t.Errorf("Output = %+v", p.Output)
	}
	if p.ErrorHandling.Policy() != connector.OnMalformedSkip {
		t.Errorf("Policy() = %q, want skip", p.ErrorHandling.Policy())
	}
}

func TestConvertToPipeline(t *testing.T) {
	result := ParseConfig(testdataFS(), "valid-config.yaml")
	if !result.IsValid() {
		t.Fatalf("fixture invalid: %v", result.AllErrors())
	}

	p, err := ConvertToPipeline(result.Data)
	if err != nil {
		t.Fatalf("ConvertToPipeline() error = %v", err)
	}
	if p.Name != "airports-2024" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.Input.Config["path"] != "data/airports.csv" {
		t.Errorf("input path = %v", p.Input.Config["path"])
	}
	if p.ErrorHandling.Policy() != connector.OnMalformedSkip {
		t.Errorf("Policy() = %q, want skip", p.ErrorHandling.Policy())
	}

	if _, err := ConvertToPipeline(map[string]interface{}{"onMalformed": "retry"}); err == nil {
		t.Error("expected error for invalid policy")
	}
}
