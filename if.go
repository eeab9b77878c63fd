// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package rehearse

import (
	"context"
	"errors"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// If controls whether a step or job is run
type If string

// String implements fmt.Stringer
func (i If) String() string {
	return string(i)
}

// ShouldRun executes If logic using expr as the engine
func (i If) ShouldRun(ctx context.Context, hasFailed bool, tc TemplateContext) (bool, error) {
	if i == "" {
		return !hasFailed, nil
	}

	failure := expr.Function(
		"failure",
		func(_ ...any) (any, error) {
			return hasFailed, nil
		},
		new(func() bool),
	)

	success := expr.Function(
		"success",
		func(_ ...any) (any, error) {
			return !hasFailed, nil
		},
		new(func() bool),
	)

	cancelled := expr.Function(
		"cancelled",
		func(_ ...any) (any, error) {
			return errors.Is(ctx.Err(), context.Canceled), nil
		},
		new(func() bool),
	)

	always := expr.Function(
		"always",
		func(_ ...any) (any, error) {
			return true, nil
		},
		new(func() bool),
	)

	program, err := expr.Compile(i.String(), expr.AsBool(), failure, success, cancelled, always)
	if err != nil {
		return false, err
	}

	env := map[string]any{
		"inputs": tc.Inputs,
		"matrix": tc.Matrix,
		"from":   tc.From,
		"needs":  tc.Needs,
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}

	// the compiler's constant folding can elide the call itself, so look
	// for always() in the parsed tree instead of waiting for it to fire
	if callsAlways(i.String()) { // always short circuits any other logic
		return true, nil
	}

	return out.(bool), nil // this is safe due to expr.AsBool()
}

// callsAlways reports whether the expression contains a call to always()
func callsAlways(src string) bool {
	tree, err := parser.Parse(src)
	if err != nil {
		return false
	}
	v := &alwaysVisitor{}
	ast.Walk(&tree.Node, v)
	return v.found
}

type alwaysVisitor struct{ found bool }

func (v *alwaysVisitor) Visit(node *ast.Node) {
	call, ok := (*node).(*ast.CallNode)
	if !ok {
		return
	}
	if ident, ok := call.Callee.(*ast.IdentifierNode); ok && ident.Value == "always" {
		v.found = true
	}
}
