package adapter

import (
	"fmt"
	"strconv"
	"strings"

	m "veil.dev/pkg/veil/internal/model"
)

// Unparser renders a syntax tree to source text. Rendering is deterministic:
// equal trees produce byte-identical output.
type Unparser interface {
	Unparse(module *m.Module) (string, error)
}

// SourceUnparser is the concrete Unparser.
type SourceUnparser struct{}

// NewSourceUnparser constructs a SourceUnparser.
func NewSourceUnparser() *SourceUnparser {
	return &SourceUnparser{}
}

// Operator precedence, loosest binding first. Children rendered at a level
// below their parent's operator get parenthesized.
const (
	precLowest = iota
	precLambda
	precIfExp
	precOr
	precAnd
	precNot
	precCompare
	precBitOr
	precBitXor
	precBitAnd
	precAddSub
	precMulDiv
	precUnary
	precPower
	precCallAttr
)

var binOpText = map[m.BinOpKind]string{
	m.OpAdd:      "+",
	m.OpSub:      "-",
	m.OpMult:     "*",
	m.OpDiv:      "/",
	m.OpFloorDiv: "//",
	m.OpMod:      "%",
	m.OpPow:      "**",
	m.OpBitXor:   "^",
	m.OpBitAnd:   "&",
	m.OpBitOr:    "|",
}

var binOpPrec = map[m.BinOpKind]int{
	m.OpAdd:      precAddSub,
	m.OpSub:      precAddSub,
	m.OpMult:     precMulDiv,
	m.OpDiv:      precMulDiv,
	m.OpFloorDiv: precMulDiv,
	m.OpMod:      precMulDiv,
	m.OpPow:      precPower,
	m.OpBitXor:   precBitXor,
	m.OpBitAnd:   precBitAnd,
	m.OpBitOr:    precBitOr,
}

var cmpOpText = map[m.CmpOpKind]string{
	m.OpEq:    "==",
	m.OpNotEq: "!=",
	m.OpLt:    "<",
	m.OpLtE:   "<=",
	m.OpGt:    ">",
	m.OpGtE:   ">=",
	m.OpIs:    "is",
	m.OpIsNot: "is not",
	m.OpIn:    "in",
	m.OpNotIn: "not in",
}

// Unparse renders the module.
func (u *SourceUnparser) Unparse(module *m.Module) (string, error) {
	var sb strings.Builder

	for _, stmt := range module.Body {
		if err := writeStmt(&sb, stmt, 0); err != nil {
			return "", err
		}
	}

	return sb.String(), nil
}

func indentOf(level int) string {
	return strings.Repeat("    ", level)
}

func writeBlock(sb *strings.Builder, body []m.Stmt, level int) error {
	if len(body) == 0 {
		sb.WriteString(indentOf(level))
		sb.WriteString("pass\n")

		return nil
	}

	for _, stmt := range body {
		if err := writeStmt(sb, stmt, level); err != nil {
			return err
		}
	}

	return nil
}

func writeStmt(sb *strings.Builder, stmt m.Stmt, level int) error {
	indent := indentOf(level)

	switch node := stmt.(type) {
	case *m.FunctionDef:
		for _, dec := range node.Decorators {
			text, err := exprText(dec, precLowest)
			if err != nil {
				return err
			}

			fmt.Fprintf(sb, "%s@%s\n", indent, text)
		}

		params := make([]string, 0, len(node.Params))

		for _, param := range node.Params {
			if param.Default == nil {
				params = append(params, param.Name)
				continue
			}

			def, err := exprText(param.Default, precLowest)
			if err != nil {
				return err
			}

			params = append(params, param.Name+"="+def)
		}

		fmt.Fprintf(sb, "%sdef %s(%s):\n", indent, node.Name, strings.Join(params, ", "))

		return writeBlock(sb, node.Body, level+1)
	case *m.ClassDef:
		for _, dec := range node.Decorators {
			text, err := exprText(dec, precLowest)
			if err != nil {
				return err
			}

			fmt.Fprintf(sb, "%s@%s\n", indent, text)
		}

		heads := make([]string, 0, len(node.Bases)+len(node.Keywords))

		for _, base := range node.Bases {
			text, err := exprText(base, precLowest)
			if err != nil {
				return err
			}

			heads = append(heads, text)
		}

		for _, kw := range node.Keywords {
			text, err := exprText(kw.Value, precLowest)
			if err != nil {
				return err
			}

			heads = append(heads, kw.Name+"="+text)
		}

		if len(heads) > 0 {
			fmt.Fprintf(sb, "%sclass %s(%s):\n", indent, node.Name, strings.Join(heads, ", "))
		} else {
			fmt.Fprintf(sb, "%sclass %s:\n", indent, node.Name)
		}

		return writeBlock(sb, node.Body, level+1)
	case *m.Assign:
		targets := make([]string, 0, len(node.Targets))

		for _, target := range node.Targets {
			text, err := exprText(target, precLowest)
			if err != nil {
				return err
			}

			targets = append(targets, text)
		}

		value, err := exprText(node.Value, precLowest)
		if err != nil {
			return err
		}

		fmt.Fprintf(sb, "%s%s = %s\n", indent, strings.Join(targets, " = "), value)
	case *m.ExprStmt:
		text, err := exprText(node.Value, precLowest)
		if err != nil {
			return err
		}

		fmt.Fprintf(sb, "%s%s\n", indent, text)
	case *m.Return:
		if node.Value == nil {
			fmt.Fprintf(sb, "%sreturn\n", indent)
			return nil
		}

		text, err := exprText(node.Value, precLowest)
		if err != nil {
			return err
		}

		fmt.Fprintf(sb, "%sreturn %s\n", indent, text)
	case *m.If:
		return writeIf(sb, node, level)
	case *m.While:
		test, err := exprText(node.Test, precLowest)
		if err != nil {
			return err
		}

		fmt.Fprintf(sb, "%swhile %s:\n", indent, test)

		return writeBlock(sb, node.Body, level+1)
	case *m.For:
		target, err := exprText(node.Target, precLowest)
		if err != nil {
			return err
		}

		iter, err := exprText(node.Iter, precLowest)
		if err != nil {
			return err
		}

		fmt.Fprintf(sb, "%sfor %s in %s:\n", indent, target, iter)

		return writeBlock(sb, node.Body, level+1)
	case *m.Try:
		fmt.Fprintf(sb, "%stry:\n", indent)

		if err := writeBlock(sb, node.Body, level+1); err != nil {
			return err
		}

		for _, handler := range node.Handlers {
			switch {
			case handler.Type == nil:
				fmt.Fprintf(sb, "%sexcept:\n", indent)
			case handler.Name == "":
				typ, err := exprText(handler.Type, precLowest)
				if err != nil {
					return err
				}

				fmt.Fprintf(sb, "%sexcept %s:\n", indent, typ)
			default:
				typ, err := exprText(handler.Type, precLowest)
				if err != nil {
					return err
				}

				fmt.Fprintf(sb, "%sexcept %s as %s:\n", indent, typ, handler.Name)
			}

			if err := writeBlock(sb, handler.Body, level+1); err != nil {
				return err
			}
		}

		if len(node.Else) > 0 {
			fmt.Fprintf(sb, "%selse:\n", indent)

			if err := writeBlock(sb, node.Else, level+1); err != nil {
				return err
			}
		}

		if len(node.Final) > 0 {
			fmt.Fprintf(sb, "%sfinally:\n", indent)

			if err := writeBlock(sb, node.Final, level+1); err != nil {
				return err
			}
		}
	case *m.Import:
		fmt.Fprintf(sb, "%simport %s\n", indent, aliasText(node.Names))
	case *m.ImportFrom:
		fmt.Fprintf(sb, "%sfrom %s import %s\n", indent, node.Module, aliasText(node.Names))
	case *m.Delete:
		targets := make([]string, 0, len(node.Targets))

		for _, target := range node.Targets {
			text, err := exprText(target, precLowest)
			if err != nil {
				return err
			}

			targets = append(targets, text)
		}

		fmt.Fprintf(sb, "%sdel %s\n", indent, strings.Join(targets, ", "))
	case *m.Global:
		fmt.Fprintf(sb, "%sglobal %s\n", indent, strings.Join(node.Names, ", "))
	case *m.Raise:
		if node.Exc == nil {
			fmt.Fprintf(sb, "%sraise\n", indent)
			return nil
		}

		text, err := exprText(node.Exc, precLowest)
		if err != nil {
			return err
		}

		fmt.Fprintf(sb, "%sraise %s\n", indent, text)
	case *m.Pass:
		fmt.Fprintf(sb, "%spass\n", indent)
	case *m.Break:
		fmt.Fprintf(sb, "%sbreak\n", indent)
	case *m.Continue:
		fmt.Fprintf(sb, "%scontinue\n", indent)
	case *m.StmtSeq:
		return fmt.Errorf("unparse: statement splice escaped a rewrite")
	default:
		return fmt.Errorf("unparse: unknown statement %T", stmt)
	}

	return nil
}

func writeIf(sb *strings.Builder, node *m.If, level int) error {
	indent := indentOf(level)

	test, err := exprText(node.Test, precLowest)
	if err != nil {
		return err
	}

	fmt.Fprintf(sb, "%sif %s:\n", indent, test)

	if err := writeBlock(sb, node.Body, level+1); err != nil {
		return err
	}

	if len(node.Else) == 0 {
		return nil
	}

	// elif chain
	if len(node.Else) == 1 {
		if nested, ok := node.Else[0].(*m.If); ok {
			nestedTest, err := exprText(nested.Test, precLowest)
			if err != nil {
				return err
			}

			fmt.Fprintf(sb, "%selif %s:\n", indent, nestedTest)

			if err := writeBlock(sb, nested.Body, level+1); err != nil {
				return err
			}

			if len(nested.Else) > 0 {
				return writeElse(sb, nested.Else, level)
			}

			return nil
		}
	}

	return writeElse(sb, node.Else, level)
}

func writeElse(sb *strings.Builder, body []m.Stmt, level int) error {
	if len(body) == 1 {
		if nested, ok := body[0].(*m.If); ok {
			return writeIf(sb, &m.If{Test: nested.Test, Body: nested.Body, Else: nested.Else}, level)
		}
	}

	fmt.Fprintf(sb, "%selse:\n", indentOf(level))

	return writeBlock(sb, body, level+1)
}

func aliasText(aliases []m.Alias) string {
	parts := make([]string, 0, len(aliases))

	for _, alias := range aliases {
		if alias.AsName != "" {
			parts = append(parts, alias.Name+" as "+alias.AsName)
		} else {
			parts = append(parts, alias.Name)
		}
	}

	return strings.Join(parts, ", ")
}

func exprText(expr m.Expr, parent int) (string, error) {
	switch node := expr.(type) {
	case *m.Str:
		return quoteString(node.Value), nil
	case *m.Int:
		return strconv.FormatInt(node.Value, 10), nil
	case *m.Float:
		return floatText(node.Value), nil
	case *m.Bool:
		if node.Value {
			return "True", nil
		}

		return "False", nil
	case *m.Bytes:
		return quoteBytes(node.Value), nil
	case *m.None:
		return "None", nil
	case *m.Name:
		return node.ID, nil
	case *m.Attribute:
		value, err := exprText(node.Value, precCallAttr)
		if err != nil {
			return "", err
		}

		// "5.attr" reads the dot as a decimal point.
		switch node.Value.(type) {
		case *m.Int, *m.Float:
			value = "(" + value + ")"
		}

		return value + "." + node.Attr, nil
	case *m.Subscript:
		value, err := exprText(node.Value, precCallAttr)
		if err != nil {
			return "", err
		}

		index, err := exprText(node.Index, precLowest)
		if err != nil {
			return "", err
		}

		return value + "[" + index + "]", nil
	case *m.Starred:
		value, err := exprText(node.Value, precUnary)
		if err != nil {
			return "", err
		}

		return "*" + value, nil
	case *m.Call:
		return callText(node)
	case *m.BinOp:
		return binOpTextFor(node, parent)
	case *m.UnaryOp:
		return unaryText(node, parent)
	case *m.BoolOp:
		return boolOpText(node, parent)
	case *m.Compare:
		return compareText(node, parent)
	case *m.IfExp:
		body, err := exprText(node.Body, precIfExp+1)
		if err != nil {
			return "", err
		}

		test, err := exprText(node.Test, precIfExp+1)
		if err != nil {
			return "", err
		}

		orElse, err := exprText(node.OrElse, precIfExp)
		if err != nil {
			return "", err
		}

		return parenthesize(body+" if "+test+" else "+orElse, precIfExp, parent), nil
	case *m.Lambda:
		body, err := exprText(node.Body, precLambda)
		if err != nil {
			return "", err
		}

		if len(node.Params) == 0 {
			return parenthesize("lambda: "+body, precLambda, parent), nil
		}

		return parenthesize("lambda "+strings.Join(node.Params, ", ")+": "+body, precLambda, parent), nil
	case *m.Tuple:
		return tupleText(node)
	case *m.List:
		parts, err := exprTexts(node.Elts, precLowest)
		if err != nil {
			return "", err
		}

		return "[" + strings.Join(parts, ", ") + "]", nil
	case *m.Dict:
		parts := make([]string, 0, len(node.Keys))

		for i, key := range node.Keys {
			keyText, err := exprText(key, precLowest)
			if err != nil {
				return "", err
			}

			valueText, err := exprText(node.Values[i], precLowest)
			if err != nil {
				return "", err
			}

			parts = append(parts, keyText+": "+valueText)
		}

		return "{" + strings.Join(parts, ", ") + "}", nil
	}

	return "", fmt.Errorf("unparse: unknown expression %T", expr)
}

func exprTexts(exprs []m.Expr, prec int) ([]string, error) {
	parts := make([]string, 0, len(exprs))

	for _, expr := range exprs {
		text, err := exprText(expr, prec)
		if err != nil {
			return nil, err
		}

		parts = append(parts, text)
	}

	return parts, nil
}

func parenthesize(text string, prec, parent int) string {
	if prec < parent {
		return "(" + text + ")"
	}

	return text
}

func callText(node *m.Call) (string, error) {
	fn, err := exprText(node.Func, precCallAttr)
	if err != nil {
		return "", err
	}

	// A lambda in call position always needs parentheses.
	if _, ok := node.Func.(*m.Lambda); ok {
		fn = "(" + fn + ")"
	}

	parts := make([]string, 0, len(node.Args)+len(node.Keywords))

	for _, arg := range node.Args {
		text, err := exprText(arg, precLowest)
		if err != nil {
			return "", err
		}

		parts = append(parts, text)
	}

	for _, kw := range node.Keywords {
		text, err := exprText(kw.Value, precLowest)
		if err != nil {
			return "", err
		}

		if kw.Name == "" {
			parts = append(parts, "**"+text)
		} else {
			parts = append(parts, kw.Name+"="+text)
		}
	}

	return fn + "(" + strings.Join(parts, ", ") + ")", nil
}

func binOpTextFor(node *m.BinOp, parent int) (string, error) {
	prec := binOpPrec[node.Op]

	op, ok := binOpText[node.Op]
	if !ok {
		return "", fmt.Errorf("unparse: unknown binary operator %q", node.Op)
	}

	// Left-associative: the right child needs one level tighter. Power is
	// right-associative; mirror that.
	leftPrec, rightPrec := prec, prec+1
	if node.Op == m.OpPow {
		leftPrec, rightPrec = prec+1, prec
	}

	left, err := exprText(node.Left, leftPrec)
	if err != nil {
		return "", err
	}

	right, err := exprText(node.Right, rightPrec)
	if err != nil {
		return "", err
	}

	return parenthesize(left+" "+op+" "+right, prec, parent), nil
}

func unaryText(node *m.UnaryOp, parent int) (string, error) {
	switch node.Op {
	case m.OpNot:
		operand, err := exprText(node.Operand, precNot)
		if err != nil {
			return "", err
		}

		return parenthesize("not "+operand, precNot, parent), nil
	case m.OpUSub:
		operand, err := exprText(node.Operand, precUnary)
		if err != nil {
			return "", err
		}

		return parenthesize("-"+operand, precUnary, parent), nil
	case m.OpInvert:
		operand, err := exprText(node.Operand, precUnary)
		if err != nil {
			return "", err
		}

		return parenthesize("~"+operand, precUnary, parent), nil
	}

	return "", fmt.Errorf("unparse: unknown unary operator %q", node.Op)
}

func boolOpText(node *m.BoolOp, parent int) (string, error) {
	prec := precOr

	op := " or "
	if node.Op == m.OpAnd {
		prec = precAnd
		op = " and "
	}

	parts, err := exprTexts(node.Values, prec+1)
	if err != nil {
		return "", err
	}

	return parenthesize(strings.Join(parts, op), prec, parent), nil
}

func compareText(node *m.Compare, parent int) (string, error) {
	left, err := exprText(node.Left, precCompare+1)
	if err != nil {
		return "", err
	}

	var sb strings.Builder

	sb.WriteString(left)

	for i, op := range node.Ops {
		text, ok := cmpOpText[op]
		if !ok {
			return "", fmt.Errorf("unparse: unknown comparison operator %q", op)
		}

		right, err := exprText(node.Comparators[i], precCompare+1)
		if err != nil {
			return "", err
		}

		sb.WriteString(" " + text + " " + right)
	}

	return parenthesize(sb.String(), precCompare, parent), nil
}

func tupleText(node *m.Tuple) (string, error) {
	parts, err := exprTexts(node.Elts, precLowest)
	if err != nil {
		return "", err
	}

	if len(parts) == 1 {
		return "(" + parts[0] + ",)", nil
	}

	return "(" + strings.Join(parts, ", ") + ")", nil
}

func floatText(v float64) string {
	text := strconv.FormatFloat(v, 'g', -1, 64)
	if strings.ContainsAny(text, ".eE") || strings.Contains(text, "inf") || strings.Contains(text, "NaN") {
		return text
	}

	return text + ".0"
}

func quoteString(s string) string {
	var sb strings.Builder

	sb.WriteByte('"')

	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			switch {
			case r < 0x20 || r == 0x7f:
				fmt.Fprintf(&sb, `\x%02x`, r)
			default:
				sb.WriteRune(r)
			}
		}
	}

	sb.WriteByte('"')

	return sb.String()
}

func quoteBytes(data []byte) string {
	var sb strings.Builder

	sb.WriteString(`b"`)

	for _, b := range data {
		switch b {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if b < 0x20 || b > 0x7e {
				fmt.Fprintf(&sb, `\x%02x`, b)
			} else {
				sb.WriteByte(b)
			}
		}
	}

	sb.WriteByte('"')

	return sb.String()
}
