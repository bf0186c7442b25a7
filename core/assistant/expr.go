package assistant

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/file"
)

// Expr is a compiled real function of x.
type Expr func(x float64) float64

// exprEnv is what an expression sees: the variable x and the constants pi and e.
type exprEnv struct {
	X  float64 `expr:"x"`
	Pi float64 `expr:"pi"`
	E  float64 `expr:"e"`
}

var exprFuncs = map[string]func(float64) float64{
	"sin":  math.Sin,
	"cos":  math.Cos,
	"tan":  math.Tan,
	"exp":  math.Exp,
	"log":  math.Log,
	"sqrt": math.Sqrt,
	"abs":  math.Abs,
}

var exprOptions = func() []expr.Option {
	opts := []expr.Option{
		expr.Env(exprEnv{}),
		expr.AsFloat64(),
		expr.DisableAllBuiltins(),
	}
	for name, fn := range exprFuncs {
		opts = append(opts, expr.Function(name, unaryFunc(name, fn),
			new(func(float64) float64),
			new(func(int) float64),
		))
	}
	return opts
}()

func unaryFunc(name string, fn func(float64) float64) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("%s takes one argument", name)
		}
		switch v := params[0].(type) {
		case float64:
			return fn(v), nil
		case int:
			return fn(float64(v)), nil
		default:
			return nil, fmt.Errorf("%s: not a number: %T", name, v)
		}
	}
}

// ExprError is a syntax error at a character offset of the expression.
type ExprError struct {
	Pos int
	Msg string
}

func (e *ExprError) Error() string {
	return fmt.Sprintf("%s at position %d", e.Msg, e.Pos+1)
}

// ParseExpr compiles an expression in x with + - * / and ^ (or **), unary minus, parentheses,
// the constants pi and e and the functions sin cos tan exp log sqrt abs.
// Names are case insensitive. Evaluation errors yield NaN.
func ParseExpr(src string) (Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &ExprError{Pos: 0, Msg: "empty expression"}
	}

	program, err := expr.Compile(asciiLower(src), exprOptions...)
	if err != nil {
		return nil, exprError(src, err)
	}

	return func(x float64) float64 {
		out, err := expr.Run(program, exprEnv{X: x, Pi: math.Pi, E: math.E})
		if err != nil {
			return math.NaN()
		}
		f, ok := out.(float64)
		if !ok {
			return math.NaN()
		}
		return f
	}, nil
}

// asciiLower keeps character offsets stable for error positions.
func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if 'A' <= r && r <= 'Z' {
			return r + 'a' - 'A'
		}
		return r
	}, s)
}

func exprError(src string, err error) error {
	var fileErr *file.Error
	if !errors.As(err, &fileErr) {
		return &ExprError{Pos: 0, Msg: err.Error()}
	}
	pos := fileErr.From
	// expr reports a premature end of input at the last character
	if strings.Contains(fileErr.Message, "EOF") || strings.Contains(fileErr.Message, "end of expression") {
		pos = utf8.RuneCountInString(strings.TrimRightFunc(src, isSpace))
	}
	return &ExprError{Pos: pos, Msg: fileErr.Message}
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
