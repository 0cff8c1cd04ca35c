package query

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/zero-day-ai/sentinel/vuln"
)

// newExprEnv declares the variables a filter expression can reference.
func newExprEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("type", cel.StringType),
		cel.Variable("owasp_id", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("severity", cel.StringType),
		cel.Variable("severity_rank", cel.IntType),
		cel.Variable("status", cel.StringType),
		cel.Variable("method", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("assignee", cel.StringType),
		cel.Variable("discovered_at", cel.TimestampType),
		cel.Variable("history_length", cel.IntType),
	)
}

// compileExpr compiles a CEL expression that must evaluate to a bool.
func compileExpr(expr string) (cel.Program, error) {
	env, err := newExprEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create expression environment: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("filter expression must evaluate to bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build filter program: %w", err)
	}
	return prg, nil
}

// exprActivation exposes a record to a compiled expression.
func exprActivation(v vuln.Vulnerability) map[string]any {
	return map[string]any{
		"id":             v.ID,
		"type":           v.Type,
		"owasp_id":       v.OWASPID,
		"description":    v.Description,
		"severity":       string(v.Severity),
		"severity_rank":  int64(v.Severity.Rank()),
		"status":         string(v.Status),
		"method":         string(v.Endpoint.Method),
		"path":           v.Endpoint.Path,
		"assignee":       v.Assignee,
		"discovered_at":  v.DiscoveredAt,
		"history_length": int64(len(v.StatusHistory)),
	}
}

// evalExpr reports whether the record satisfies the program.
// Evaluation errors count as no match.
func evalExpr(prg cel.Program, v vuln.Vulnerability) bool {
	out, _, err := prg.Eval(exprActivation(v))
	if err != nil {
		return false
	}
	matched, ok := out.Value().(bool)
	return ok && matched
}
