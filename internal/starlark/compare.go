package starlark

import (
	"fmt"

	"github.com/leapstack-labs/leapstep/pkg/value"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// compareName is the hidden builtin that ordered comparisons compile to.
// Starlark refuses to order values of different types, so the missing
// sentinel could never meet a number in x < y without help.
const compareName = "__leapstep_compare__"

var compareBuiltin = starlark.NewBuiltin(compareName, builtinCompare)

// builtinCompare(op, x, y) evaluates x op y. When either side is missing
// the cell ordering applies, where missing sorts below every number and
// every string.
func builtinCompare(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) != 3 || len(kwargs) != 0 {
		return nil, fmt.Errorf("%s: want 3 positional arguments", b.Name())
	}
	name, _ := starlark.AsString(args[0])
	op, ok := comparisonOps[name]
	if !ok {
		return nil, fmt.Errorf("%s: unknown operator %s", b.Name(), args[0])
	}
	x, y := args[1], args[2]
	if !isMissing(x) && !isMissing(y) {
		ok, err := starlark.Compare(op, x, y)
		return starlark.Bool(ok), err
	}

	xv, err := FromStarlark(x)
	if err != nil {
		return nil, fmt.Errorf("%s %s %s not implemented", x.Type(), op, y.Type())
	}
	yv, err := FromStarlark(y)
	if err != nil {
		return nil, fmt.Errorf("%s %s %s not implemented", x.Type(), op, y.Type())
	}
	c := value.Compare(xv, yv)
	switch op {
	case syntax.LT:
		return starlark.Bool(c < 0), nil
	case syntax.LE:
		return starlark.Bool(c <= 0), nil
	case syntax.GT:
		return starlark.Bool(c > 0), nil
	default:
		return starlark.Bool(c >= 0), nil
	}
}

var comparisonOps = map[string]syntax.Token{
	syntax.LT.String(): syntax.LT,
	syntax.LE.String(): syntax.LE,
	syntax.GT.String(): syntax.GT,
	syntax.GE.String(): syntax.GE,
}

// rewriteComparisons replaces every x < y (and <=, >, >=) in f with a
// call to the compare builtin. It must run before the file is resolved.
func rewriteComparisons(f *syntax.File) {
	rewriteStmts(f.Stmts)
}

func rewriteStmts(stmts []syntax.Stmt) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *syntax.AssignStmt:
			s.LHS = rewriteExpr(s.LHS)
			s.RHS = rewriteExpr(s.RHS)
		case *syntax.DefStmt:
			rewriteExprs(s.Params)
			rewriteStmts(s.Body)
		case *syntax.ExprStmt:
			s.X = rewriteExpr(s.X)
		case *syntax.IfStmt:
			s.Cond = rewriteExpr(s.Cond)
			rewriteStmts(s.True)
			rewriteStmts(s.False)
		case *syntax.ForStmt:
			s.X = rewriteExpr(s.X)
			rewriteStmts(s.Body)
		case *syntax.WhileStmt:
			s.Cond = rewriteExpr(s.Cond)
			rewriteStmts(s.Body)
		case *syntax.ReturnStmt:
			s.Result = rewriteExpr(s.Result)
		}
	}
}

func rewriteExprs(list []syntax.Expr) {
	for i, e := range list {
		list[i] = rewriteExpr(e)
	}
}

func rewriteExpr(e syntax.Expr) syntax.Expr {
	switch x := e.(type) {
	case nil:
		return nil
	case *syntax.BinaryExpr:
		x.X = rewriteExpr(x.X)
		x.Y = rewriteExpr(x.Y)
		if _, ok := comparisonOps[x.Op.String()]; ok {
			return &syntax.CallExpr{
				Fn:     &syntax.Ident{NamePos: x.OpPos, Name: compareName},
				Lparen: x.OpPos,
				Args: []syntax.Expr{
					&syntax.Literal{Token: syntax.STRING, TokenPos: x.OpPos, Raw: fmt.Sprintf("%q", x.Op.String()), Value: x.Op.String()},
					x.X,
					x.Y,
				},
				Rparen: x.OpPos,
			}
		}
	case *syntax.UnaryExpr:
		x.X = rewriteExpr(x.X)
	case *syntax.ParenExpr:
		x.X = rewriteExpr(x.X)
	case *syntax.CallExpr:
		x.Fn = rewriteExpr(x.Fn)
		rewriteExprs(x.Args)
	case *syntax.DotExpr:
		x.X = rewriteExpr(x.X)
	case *syntax.IndexExpr:
		x.X = rewriteExpr(x.X)
		x.Y = rewriteExpr(x.Y)
	case *syntax.SliceExpr:
		x.X = rewriteExpr(x.X)
		x.Lo = rewriteExpr(x.Lo)
		x.Hi = rewriteExpr(x.Hi)
		x.Step = rewriteExpr(x.Step)
	case *syntax.CondExpr:
		x.Cond = rewriteExpr(x.Cond)
		x.True = rewriteExpr(x.True)
		x.False = rewriteExpr(x.False)
	case *syntax.ListExpr:
		rewriteExprs(x.List)
	case *syntax.TupleExpr:
		rewriteExprs(x.List)
	case *syntax.DictExpr:
		rewriteExprs(x.List)
	case *syntax.DictEntry:
		x.Key = rewriteExpr(x.Key)
		x.Value = rewriteExpr(x.Value)
	case *syntax.LambdaExpr:
		rewriteExprs(x.Params)
		x.Body = rewriteExpr(x.Body)
	case *syntax.Comprehension:
		x.Body = rewriteExpr(x.Body)
		for _, clause := range x.Clauses {
			switch c := clause.(type) {
			case *syntax.ForClause:
				c.X = rewriteExpr(c.X)
			case *syntax.IfClause:
				c.Cond = rewriteExpr(c.Cond)
			}
		}
	}
	return e
}
