package catalog

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// Variables available to pattern conditions.
const (
	varDocumentType = "document_type"
	varJurisdiction = "jurisdiction"
	varMatched      = "matched"
	varContext      = "context"
	varScope        = "scope"
	varTextLength   = "text_length"
)

func newConditionEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable(varDocumentType, cel.StringType),
		cel.Variable(varJurisdiction, cel.StringType),
		cel.Variable(varMatched, cel.StringType),
		cel.Variable(varContext, cel.StringType),
		cel.Variable(varScope, cel.StringType),
		cel.Variable(varTextLength, cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

func compileCondition(env *cel.Env, id, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: failed to compile condition for %s: %v", ErrInvalidPattern, id, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("%w: pattern %s: condition must return bool, got %s", ErrInvalidPattern, id, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for pattern %s: %w", id, err)
	}
	return program, nil
}

// evalCondition reports false when evaluation fails.
func evalCondition(program cel.Program, activation map[string]any) bool {
	out, _, err := program.Eval(activation)
	if err != nil {
		return false
	}
	b, ok := out.(types.Bool)
	return ok && bool(b)
}
