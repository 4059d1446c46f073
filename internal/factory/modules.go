// Package factory provides module creation functions for the pipeline runtime.
// It centralizes the logic for instantiating input, filter, and output modules
// from their configuration using the module registry.
//
// To add a new module type, see the documentation in internal/registry.
// This factory does not need to change; register the constructor instead.
package factory

import (
	"errors"
	"fmt"

	"github.com/go-git/go-billy/v5"

	"github.com/RyanZhang-64/Flightle/internal/modules/filter"
	"github.com/RyanZhang-64/Flightle/internal/modules/input"
	"github.com/RyanZhang-64/Flightle/internal/modules/output"
	"github.com/RyanZhang-64/Flightle/internal/registry"
	"github.com/RyanZhang-64/Flightle/pkg/connector"
)

// ErrUnknownModuleType is returned when no constructor is registered for a module type.
var ErrUnknownModuleType = errors.New("unknown module type")

// Modules groups the modules created for one pipeline.
type Modules struct {
	Input   input.Module
	Filters []filter.Module
	Output  output.Module
}

// CreateInputModule creates an input module reading from fsys.
// Returns nil, nil for a nil config.
func CreateInputModule(fsys billy.Filesystem, cfg *connector.ModuleConfig) (input.Module, error) {
	if cfg == nil {
		return nil, nil
	}

	constructor := registry.GetInputConstructor(cfg.Type)
	if constructor == nil {
		return nil, fmt.Errorf("%w: input %q", ErrUnknownModuleType, cfg.Type)
	}
	return constructor(fsys, cfg)
}

// CreateFilterModules creates filter module instances in configuration order.
func CreateFilterModules(cfgs []connector.ModuleConfig) ([]filter.Module, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}

	modules := make([]filter.Module, 0, len(cfgs))
	for i, cfg := range cfgs {
		constructor := registry.GetFilterConstructor(cfg.Type)
		if constructor == nil {
			return nil, fmt.Errorf("%w: filter %q at index %d", ErrUnknownModuleType, cfg.Type, i)
		}
		module, err := constructor(cfg, i)
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}
	return modules, nil
}

// CreateOutputModule creates an output module writing to fsys.
// Returns nil, nil for a nil config.
func CreateOutputModule(fsys billy.Filesystem, cfg *connector.ModuleConfig) (output.Module, error) {
	if cfg == nil {
		return nil, nil
	}

	constructor := registry.GetOutputConstructor(cfg.Type)
	if constructor == nil {
		return nil, fmt.Errorf("%w: output %q", ErrUnknownModuleType, cfg.Type)
	}
	return constructor(fsys, cfg)
}

// CreateModules creates every module a pipeline names.
// Module construction does not touch the filesystem; files are opened by the executor.
func CreateModules(fsys billy.Filesystem, pipeline *connector.Pipeline) (*Modules, error) {
	if pipeline == nil {
		return nil, errors.New("pipeline configuration is nil")
	}

	in, err := CreateInputModule(fsys, pipeline.Input)
	if err != nil {
		return nil, fmt.Errorf("creating input module: %w", err)
	}

	filters, err := CreateFilterModules(pipeline.Filters)
	if err != nil {
		return nil, fmt.Errorf("creating filter modules: %w", err)
	}

	out, err := CreateOutputModule(fsys, pipeline.Output)
	if err != nil {
		return nil, fmt.Errorf("creating output module: %w", err)
	}

	return &Modules{Input: in, Filters: filters, Output: out}, nil
}
