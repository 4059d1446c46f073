package filter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/RyanZhang-64/Flightle/internal/errhandling"
	"github.com/RyanZhang-64/Flightle/internal/logger"
	"github.com/RyanZhang-64/Flightle/pkg/connector"
)

// TypeCategory is the registry type name of the category filter.
const TypeCategory = "category"

// CategoryFieldIndex is the zero-based position of the airport type column.
const CategoryFieldIndex = 2

// Error codes for the category module
const (
	ErrCodeInvalidExpression = "INVALID_EXPRESSION"
	ErrCodeEvaluationFailed  = "EVALUATION_FAILED"
)

// ErrNilRecord is returned when Keep receives a nil record.
var ErrNilRecord = errors.New("record is nil")

// categoryTokens are the substrings that select a row.
var categoryTokens = []string{"large_airport", "medium_airport"}

// CategoryTokens returns a copy of the substrings the category filter matches.
func CategoryTokens() []string {
	out := make([]string, len(categoryTokens))
	copy(out, categoryTokens)
	return out
}

// categoryEnv is the evaluation environment of the compiled predicate.
type categoryEnv struct {
	Category string `expr:"Category"`
}

// CategoryModule keeps rows whose category field contains one of the large
// or medium airport tokens. Matching is by substring, so "medium_airport_x"
// is kept.
type CategoryModule struct {
	expression string
	program    *vm.Program
}

// categoryExpression builds the predicate source for tokens.
func categoryExpression(tokens []string) string {
	clauses := make([]string, len(tokens))
	for i, tok := range tokens {
		clauses[i] = "Category contains " + strconv.Quote(tok)
	}
	return strings.Join(clauses, " or ")
}

// NewCategory creates the category filter with its predicate compiled.
func NewCategory() (*CategoryModule, error) {
	expression := categoryExpression(categoryTokens)

	program, err := expr.Compile(expression, expr.Env(categoryEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%s: compiling %q: %w", ErrCodeInvalidExpression, expression, err)
	}

	logger.WithModule("filter", TypeCategory).Debug("category module initialized",
		slog.String("expression", expression),
		slog.Int("field_index", CategoryFieldIndex),
	)

	return &CategoryModule{
		expression: expression,
		program:    program,
	}, nil
}

// NewCategoryFromConfig creates the category filter from a module configuration.
// The predicate takes no options; any config keys are ignored.
func NewCategoryFromConfig(cfg connector.ModuleConfig) (*CategoryModule, error) {
	if len(cfg.Config) > 0 {
		logger.WithModule("filter", TypeCategory).Warn("category module takes no options; ignoring config",
			slog.Int("keys", len(cfg.Config)),
		)
	}
	return NewCategory()
}

// Expression returns the compiled predicate source.
func (m *CategoryModule) Expression() string {
	return m.expression
}

// Keep reports whether the record's category field selects it.
// Records with fewer than CategoryFieldIndex+1 fields yield a *errhandling.MalformedRowError.
func (m *CategoryModule) Keep(_ context.Context, record *connector.Record) (bool, error) {
	if record == nil {
		return false, ErrNilRecord
	}

	category, ok := record.Field(CategoryFieldIndex)
	if !ok {
		return false, errhandling.NewMalformedRowError(record.Line, record.Len(), CategoryFieldIndex+1)
	}

	out, err := expr.Run(m.program, categoryEnv{Category: category})
	if err != nil {
		return false, fmt.Errorf("%s at line %d: %w", ErrCodeEvaluationFailed, record.Line, err)
	}

	keep, _ := out.(bool)
	return keep, nil
}

// Verify CategoryModule implements Module
var _ Module = (*CategoryModule)(nil)
