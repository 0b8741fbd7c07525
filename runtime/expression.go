package runtime

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
)

// expressionPattern matches a parameter value written as ${ expression }.
var expressionPattern = regexp.MustCompile(`^\s*\$\{\s*(.+?)\s*\}\s*$`)

// Custom expression functions available to every parameter expression
var exprFunctions = []expr.Option{
	expr.Function("base64_encode", func(params ...any) (any, error) {
		s, _ := params[0].(string)
		return base64.StdEncoding.EncodeToString([]byte(s)), nil
	}),
	expr.Function("base64_decode", func(params ...any) (any, error) {
		s, _ := params[0].(string)
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}),
}

// IsExpression reports whether a raw parameter value must be evaluated per item.
func IsExpression(value any) (string, bool) {
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	m := expressionPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Eval evaluates an expr-lang expression against env.
// Unknown identifiers evaluate to nil instead of failing compilation.
func Eval(expression string, env map[string]any) (any, error) {
	if env == nil {
		env = map[string]any{}
	}
	// null is an alias for nil (JSON/YAML compatibility)
	env["null"] = nil

	// defined("json.field") distinguishes a missing key from a null value
	definedFn := expr.Function(
		"defined",
		func(params ...any) (any, error) {
			path, ok := params[0].(string)
			if !ok {
				return false, fmt.Errorf("defined() expects string path argument, got %T", params[0])
			}
			_, exists := lookupPath(env, path)
			return exists, nil
		},
		new(func(string) bool),
	)

	// NOTE: expr.Env MUST come before AllowUndefinedVariables for it to work
	opts := []expr.Option{
		expr.Env(env),
		expr.AllowUndefinedVariables(),
		definedFn,
	}
	opts = append(opts, exprFunctions...)

	program, err := expr.Compile(expression, opts...)
	if err != nil {
		return nil, err
	}
	return expr.Run(program, env)
}

// lookupPath walks dot-separated keys through nested maps.
func lookupPath(m map[string]any, path string) (any, bool) {
	var current any = m
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
