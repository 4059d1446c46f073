package config

import (
	"fmt"

	"github.com/RyanZhang-64/Flightle/internal/modules/filter"
	"github.com/RyanZhang-64/Flightle/internal/modules/input"
	"github.com/RyanZhang-64/Flightle/internal/modules/output"
	"github.com/RyanZhang-64/Flightle/pkg/connector"
)

// Defaults used when neither the configuration file nor a flag sets a value.
const (
	DefaultName        = "airports"
	DefaultInputPath   = "airports.csv"
	DefaultOutputPath  = "output.csv"
	DefaultLineEnding  = output.LineEndingCRLF
	DefaultOnMalformed = connector.OnMalformedFail
)

// RunConfig holds the settings of one filtering run.
type RunConfig struct {
	Name        string
	InputPath   string
	OutputPath  string
	LineEnding  string
	OnMalformed string
}

// Overrides are settings given on the command line. Empty fields leave the
// configured value unchanged.
type Overrides struct {
	InputPath   string
	OutputPath  string
	LineEnding  string
	OnMalformed string
}

// DefaultRunConfig returns the settings of a run with no configuration file and no flags.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Name:        DefaultName,
		InputPath:   DefaultInputPath,
		OutputPath:  DefaultOutputPath,
		LineEnding:  DefaultLineEnding,
		OnMalformed: DefaultOnMalformed,
	}
}

// FromData builds a RunConfig from parsed configuration data. Missing keys keep
// their defaults. The data should have been validated against the schema first;
// values of the wrong type are still rejected here.
//
// The configuration is expected to have this structure:
//
//	name: airports
//	input:
//	  path: airports.csv
//	output:
//	  path: output.csv
//	  lineEnding: crlf
//	onMalformed: fail
func FromData(data map[string]interface{}) (RunConfig, error) {
	rc := DefaultRunConfig()
	if data == nil {
		return rc, fmt.Errorf("configuration data is nil")
	}

	if err := setString(data, "name", &rc.Name); err != nil {
		return rc, err
	}
	if err := setString(data, "onMalformed", &rc.OnMalformed); err != nil {
		return rc, err
	}

	inputData, err := section(data, "input")
	if err != nil {
		return rc, err
	}
	if err := setString(inputData, "path", &rc.InputPath); err != nil {
		return rc, fmt.Errorf("input: %w", err)
	}

	outputData, err := section(data, "output")
	if err != nil {
		return rc, err
	}
	if err := setString(outputData, "path", &rc.OutputPath); err != nil {
		return rc, fmt.Errorf("output: %w", err)
	}
	if err := setString(outputData, "lineEnding", &rc.LineEnding); err != nil {
		return rc, fmt.Errorf("output: %w", err)
	}

	return rc, nil
}

// section returns the nested mapping at key, or nil if the key is absent.
func section(data map[string]interface{}, key string) (map[string]interface{}, error) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid '%s' section: expected object, got %T", key, raw)
	}
	return m, nil
}

// setString assigns data[key] to dst when it is present and non-empty.
func setString(data map[string]interface{}, key string, dst *string) error {
	raw, ok := data[key]
	if !ok || raw == nil {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		return fmt.Errorf("field '%s' must be a string, got %T", key, raw)
	}
	if s != "" {
		*dst = s
	}
	return nil
}

// Apply returns rc with the non-empty overrides applied.
func (rc RunConfig) Apply(o Overrides) RunConfig {
	if o.InputPath != "" {
		rc.InputPath = o.InputPath
	}
	if o.OutputPath != "" {
		rc.OutputPath = o.OutputPath
	}
	if o.LineEnding != "" {
		rc.LineEnding = o.LineEnding
	}
	if o.OnMalformed != "" {
		rc.OnMalformed = o.OnMalformed
	}
	return rc
}

// Validate checks the enumerated settings. Flag values do not pass through
// the schema, so they are checked here.
func (rc RunConfig) Validate() error {
	switch rc.OnMalformed {
	case connector.OnMalformedFail, connector.OnMalformedSkip:
	default:
		return fmt.Errorf("invalid onMalformed %q: want %s or %s",
			rc.OnMalformed, connector.OnMalformedFail, connector.OnMalformedSkip)
	}
	switch rc.LineEnding {
	case output.LineEndingCRLF, output.LineEndingLF:
	default:
		return fmt.Errorf("invalid lineEnding %q: want %s or %s",
			rc.LineEnding, output.LineEndingCRLF, output.LineEndingLF)
	}
	return nil
}

// Pipeline converts the settings to the csv -> category -> csv pipeline.
func (rc RunConfig) Pipeline() *connector.Pipeline {
	return &connector.Pipeline{
		ID:   rc.Name,
		Name: rc.Name,
		Input: &connector.ModuleConfig{
			Type:   input.TypeCSV,
			Config: map[string]interface{}{"path": rc.InputPath},
		},
		Filters: []connector.ModuleConfig{
			{Type: filter.TypeCategory},
		},
		Output: &connector.ModuleConfig{
			Type: output.TypeCSV,
			Config: map[string]interface{}{
				"path":       rc.OutputPath,
				"lineEnding": rc.LineEnding,
			},
		},
		ErrorHandling: &connector.ErrorHandling{OnMalformed: rc.OnMalformed},
	}
}

// ConvertToPipeline converts parsed configuration data to a Pipeline.
func ConvertToPipeline(data map[string]interface{}) (*connector.Pipeline, error) {
	rc, err := FromData(data)
	if err != nil {
		return nil, err
	}
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return rc.Pipeline(), nil
}
