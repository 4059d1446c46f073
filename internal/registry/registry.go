// Package registry provides module registries for input, filter, and output modules.
//
// # Overview
//
// Modules register their constructors by type string instead of being picked
// by a switch in the factory. Input and output constructors receive the
// filesystem the run operates on, so the same pipeline can target the local
// disk or an in-memory filesystem.
//
// # Adding a New Module
//
//  1. Implement the appropriate interface (input.Module, filter.Module, or output.Module)
//  2. Create a constructor function matching the registry signature
//  3. Register the constructor, usually from an init() function
//
// Example for a new output module:
//
//	func init() {
//	    registry.RegisterOutput("tsv", func(fsys billy.Filesystem, cfg *connector.ModuleConfig) (output.Module, error) {
//	        return NewTSVFromConfig(fsys, cfg)
//	    })
//	}
//
// # Built-in Modules
//
// The csv input, category filter, and csv output are registered at startup.
// Unknown types are an error; there is no fallback module.
package registry

import (
	"sort"
	"sync"

	"github.com/go-git/go-billy/v5"

	"github.com/RyanZhang-64/Flightle/internal/modules/filter"
	"github.com/RyanZhang-64/Flightle/internal/modules/input"
	"github.com/RyanZhang-64/Flightle/internal/modules/output"
	"github.com/RyanZhang-64/Flightle/pkg/connector"
)

// InputConstructor creates an input module reading from fsys.
type InputConstructor func(fsys billy.Filesystem, cfg *connector.ModuleConfig) (input.Module, error)

// FilterConstructor creates a filter module from configuration.
// The constructor receives the ModuleConfig and the filter's index in the pipeline.
type FilterConstructor func(cfg connector.ModuleConfig, index int) (filter.Module, error)

// OutputConstructor creates an output module writing to fsys.
type OutputConstructor func(fsys billy.Filesystem, cfg *connector.ModuleConfig) (output.Module, error)

// inputRegistry holds registered input module constructors.
var (
	inputMu       sync.RWMutex
	inputRegistry = make(map[string]InputConstructor)
)

// filterRegistry holds registered filter module constructors.
var (
	filterMu       sync.RWMutex
	filterRegistry = make(map[string]FilterConstructor)
)

// outputRegistry holds registered output module constructors.
var (
	outputMu       sync.RWMutex
	outputRegistry = make(map[string]OutputConstructor)
)

// RegisterInput registers an input module constructor by type string.
// Registering an existing type overwrites the previous constructor.
// It is safe for concurrent use.
func RegisterInput(moduleType string, constructor InputConstructor) {
	inputMu.Lock()
	defer inputMu.Unlock()
	inputRegistry[moduleType] = constructor
}

// RegisterFilter registers a filter module constructor by type string.
// Registering an existing type overwrites the previous constructor.
// It is safe for concurrent use.
func RegisterFilter(moduleType string, constructor FilterConstructor) {
	filterMu.Lock()
	defer filterMu.Unlock()
	filterRegistry[moduleType] = constructor
}

// RegisterOutput registers an output module constructor by type string.
// Registering an existing type overwrites the previous constructor.
// It is safe for concurrent use.
func RegisterOutput(moduleType string, constructor OutputConstructor) {
	outputMu.Lock()
	defer outputMu.Unlock()
	outputRegistry[moduleType] = constructor
}

// GetInputConstructor returns the registered constructor for an input module type.
// Returns nil if no constructor is registered for the given type.
func GetInputConstructor(moduleType string) InputConstructor {
	inputMu.RLock()
	defer inputMu.RUnlock()
	return inputRegistry[moduleType]
}

// GetFilterConstructor returns the registered constructor for a filter module type.
// Returns nil if no constructor is registered for the given type.
func GetFilterConstructor(moduleType string) FilterConstructor {
	filterMu.RLock()
	defer filterMu.RUnlock()
	return filterRegistry[moduleType]
}

// GetOutputConstructor returns the registered constructor for an output module type.
// Returns nil if no constructor is registered for the given type.
func GetOutputConstructor(moduleType string) OutputConstructor {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return outputRegistry[moduleType]
}

// ListInputTypes returns all registered input module type names, sorted.
func ListInputTypes() []string {
	inputMu.RLock()
	defer inputMu.RUnlock()
	return sortedKeys(inputRegistry)
}

// ListFilterTypes returns all registered filter module type names, sorted.
func ListFilterTypes() []string {
	filterMu.RLock()
	defer filterMu.RUnlock()
	return sortedKeys(filterRegistry)
}

// ListOutputTypes returns all registered output module type names, sorted.
func ListOutputTypes() []string {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return sortedKeys(outputRegistry)
}

func sortedKeys[V any](m map[string]V) []string {
	types := make([]string, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ClearRegistries removes all registered constructors.
// This is intended for testing purposes only; call RegisterBuiltins to restore the defaults.
func ClearRegistries() {
	inputMu.Lock()
	inputRegistry = make(map[string]InputConstructor)
	inputMu.Unlock()

	filterMu.Lock()
	filterRegistry = make(map[string]FilterConstructor)
	filterMu.Unlock()

	outputMu.Lock()
	outputRegistry = make(map[string]OutputConstructor)
	outputMu.Unlock()
}
