// Package expr evaluates small arithmetic and comparison expressions over
// named parameter values, e.g. "rotation_time_2 + 10 >= dropping_time".
//
// Expressions use Go syntax and are parsed with go/parser. Supported forms are
// numeric literals, identifiers, parentheses, unary minus and not, the binary
// operators + - * / < <= > >= == != && ||, and the functions abs, min and max.
package expr

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"sort"
	"strconv"

	"github.com/perotf-lab/expadvisor/pkg/models"
)

var (
	// ErrUnknownIdentifier is returned when an expression references a value the row lacks
	ErrUnknownIdentifier = errors.New("unknown identifier")
	// ErrType is returned when a boolean is used as a number or the other way around
	ErrType = errors.New("type mismatch")
)

// Expr is a parsed expression
type Expr struct {
	src    string
	root   ast.Expr
	ids    []string
	isBool bool
}

// Parse parses and type checks src
func Parse(src string) (*Expr, error) {
	root, err := parser.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	ids := make(map[string]struct{})
	isBool, err := check(root, ids)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	names := make([]string, 0, len(ids))
	for id := range ids {
		names = append(names, id)
	}
	sort.Strings(names)
	return &Expr{src: src, root: root, ids: names, isBool: isBool}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(src string) *Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the source text
func (e *Expr) String() string {
	return e.src
}

// Identifiers returns the sorted set of names the expression reads
func (e *Expr) Identifiers() []string {
	out := make([]string, len(e.ids))
	copy(out, e.ids)
	return out
}

// IsBoolean reports whether the expression yields a truth value
func (e *Expr) IsBoolean() bool {
	return e.isBool
}

// Eval evaluates a numeric expression against vars
func (e *Expr) Eval(vars models.Row) (float64, error) {
	if e.isBool {
		return 0, fmt.Errorf("%q: %w: expression is boolean", e.src, ErrType)
	}
	v, err := eval(e.root, vars)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", e.src, err)
	}
	return v.num, nil
}

// EvalBool evaluates a boolean expression against vars
func (e *Expr) EvalBool(vars models.Row) (bool, error) {
	if !e.isBool {
		return false, fmt.Errorf("%q: %w: expression is numeric", e.src, ErrType)
	}
	v, err := eval(e.root, vars)
	if err != nil {
		return false, fmt.Errorf("%q: %w", e.src, err)
	}
	return v.truth, nil
}

type value struct {
	num   float64
	truth bool
}

var functions = map[string]int{"abs": 1, "min": 2, "max": 2}

// check walks the tree once, rejects unsupported syntax and reports whether
// the node is boolean.
func check(node ast.Expr, ids map[string]struct{}) (bool, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return false, fmt.Errorf("unsupported literal %s", n.Value)
		}
		return false, nil
	case *ast.Ident:
		if n.Name == "true" || n.Name == "false" {
			return true, nil
		}
		ids[n.Name] = struct{}{}
		return false, nil
	case *ast.ParenExpr:
		return check(n.X, ids)
	case *ast.UnaryExpr:
		isBool, err := check(n.X, ids)
		if err != nil {
			return false, err
		}
		switch n.Op {
		case token.SUB, token.ADD:
			if isBool {
				return false, fmt.Errorf("%w: %s applied to boolean", ErrType, n.Op)
			}
			return false, nil
		case token.NOT:
			if !isBool {
				return false, fmt.Errorf("%w: ! applied to number", ErrType)
			}
			return true, nil
		}
		return false, fmt.Errorf("unsupported unary operator %s", n.Op)
	case *ast.BinaryExpr:
		lb, err := check(n.X, ids)
		if err != nil {
			return false, err
		}
		rb, err := check(n.Y, ids)
		if err != nil {
			return false, err
		}
		switch n.Op {
		case token.ADD, token.SUB, token.MUL, token.QUO:
			if lb || rb {
				return false, fmt.Errorf("%w: arithmetic on boolean", ErrType)
			}
			return false, nil
		case token.LSS, token.LEQ, token.GTR, token.GEQ, token.EQL, token.NEQ:
			if lb || rb {
				return false, fmt.Errorf("%w: comparison of boolean", ErrType)
			}
			return true, nil
		case token.LAND, token.LOR:
			if !lb || !rb {
				return false, fmt.Errorf("%w: %s needs boolean operands", ErrType, n.Op)
			}
			return true, nil
		}
		return false, fmt.Errorf("unsupported operator %s", n.Op)
	case *ast.CallExpr:
		fn, ok := n.Fun.(*ast.Ident)
		if !ok {
			return false, fmt.Errorf("unsupported call")
		}
		arity, ok := functions[fn.Name]
		if !ok {
			return false, fmt.Errorf("unknown function %s", fn.Name)
		}
		if len(n.Args) != arity {
			return false, fmt.Errorf("%s takes %d argument(s), got %d", fn.Name, arity, len(n.Args))
		}
		for _, arg := range n.Args {
			isBool, err := check(arg, ids)
			if err != nil {
				return false, err
			}
			if isBool {
				return false, fmt.Errorf("%w: %s of boolean", ErrType, fn.Name)
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("unsupported expression %T", node)
}

func eval(node ast.Expr, vars models.Row) (value, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return value{}, err
		}
		return value{num: f}, nil
	case *ast.Ident:
		switch n.Name {
		case "true":
			return value{truth: true}, nil
		case "false":
			return value{}, nil
		}
		v, ok := vars[n.Name]
		if !ok {
			return value{}, fmt.Errorf("%w: %s", ErrUnknownIdentifier, n.Name)
		}
		return value{num: v}, nil
	case *ast.ParenExpr:
		return eval(n.X, vars)
	case *ast.UnaryExpr:
		x, err := eval(n.X, vars)
		if err != nil {
			return value{}, err
		}
		switch n.Op {
		case token.SUB:
			return value{num: -x.num}, nil
		case token.NOT:
			return value{truth: !x.truth}, nil
		}
		return x, nil
	case *ast.BinaryExpr:
		x, err := eval(n.X, vars)
		if err != nil {
			return value{}, err
		}
		// short-circuit
		if n.Op == token.LAND && !x.truth {
			return value{}, nil
		}
		if n.Op == token.LOR && x.truth {
			return value{truth: true}, nil
		}
		y, err := eval(n.Y, vars)
		if err != nil {
			return value{}, err
		}
		return binary(n.Op, x, y), nil
	case *ast.CallExpr:
		args := make([]float64, len(n.Args))
		for i, arg := range n.Args {
			v, err := eval(arg, vars)
			if err != nil {
				return value{}, err
			}
			args[i] = v.num
		}
		switch n.Fun.(*ast.Ident).Name {
		case "abs":
			return value{num: math.Abs(args[0])}, nil
		case "min":
			return value{num: math.Min(args[0], args[1])}, nil
		case "max":
			return value{num: math.Max(args[0], args[1])}, nil
		}
	}
	return value{}, fmt.Errorf("unsupported expression %T", node)
}

func binary(op token.Token, x, y value) value {
	switch op {
	case token.ADD:
		return value{num: x.num + y.num}
	case token.SUB:
		return value{num: x.num - y.num}
	case token.MUL:
		return value{num: x.num * y.num}
	case token.QUO:
		return value{num: x.num / y.num}
	case token.LSS:
		return value{truth: x.num < y.num}
	case token.LEQ:
		return value{truth: x.num <= y.num}
	case token.GTR:
		return value{truth: x.num > y.num}
	case token.GEQ:
		return value{truth: x.num >= y.num}
	case token.EQL:
		return value{truth: x.num == y.num}
	case token.NEQ:
		return value{truth: x.num != y.num}
	case token.LAND:
		return value{truth: x.truth && y.truth}
	case token.LOR:
		return value{truth: x.truth || y.truth}
	}
	return value{}
}
