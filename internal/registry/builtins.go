package registry

import (
	"fmt"

	"github.com/go-git/go-billy/v5"

	"github.com/RyanZhang-64/Flightle/internal/modules/filter"
	"github.com/RyanZhang-64/Flightle/internal/modules/input"
	"github.com/RyanZhang-64/Flightle/internal/modules/output"
	"github.com/RyanZhang-64/Flightle/pkg/connector"
)

func init() {
	RegisterBuiltins()
}

// RegisterBuiltins registers the built-in module types.
func RegisterBuiltins() {
	registerBuiltinInputModules()
	registerBuiltinFilterModules()
	registerBuiltinOutputModules()
}

// registerBuiltinInputModules registers all built-in input module types.
func registerBuiltinInputModules() {
	// csv - comma-separated file input
	RegisterInput(input.TypeCSV, func(fsys billy.Filesystem, cfg *connector.ModuleConfig) (input.Module, error) {
		module, err := input.NewCSVFromConfig(fsys, cfg)
		if err != nil {
			return nil, err
		}
		return module, nil
	})
}

// registerBuiltinFilterModules registers all built-in filter module types.
func registerBuiltinFilterModules() {
	// category - large/medium airport predicate on field 2
	RegisterFilter(filter.TypeCategory, func(cfg connector.ModuleConfig, index int) (filter.Module, error) {
		module, err := filter.NewCategoryFromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("invalid category config at index %d: %w", index, err)
		}
		return module, nil
	})
}

// registerBuiltinOutputModules registers all built-in output module types.
func registerBuiltinOutputModules() {
	// csv - comma-separated file output
	RegisterOutput(output.TypeCSV, func(fsys billy.Filesystem, cfg *connector.ModuleConfig) (output.Module, error) {
		module, err := output.NewCSVFromConfig(fsys, cfg)
		if err != nil {
			return nil, err
		}
		return module, nil
	})
}
