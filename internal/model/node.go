// Package model defines the syntax tree node set, the resolved configuration
// and the artifact types shared by the obfuscation pipeline.
package model

// NameCtx describes how a name, attribute or subscript is used.
type NameCtx string

// Available NameCtx values.
const (
	CtxLoad  NameCtx = "load"
	CtxStore NameCtx = "store"
	CtxDel   NameCtx = "del"
)

// BinOpKind enumerates binary operators.
type BinOpKind string

// Available BinOpKind values.
const (
	OpAdd      BinOpKind = "add"
	OpSub      BinOpKind = "sub"
	OpMult     BinOpKind = "mult"
	OpDiv      BinOpKind = "div"
	OpFloorDiv BinOpKind = "floordiv"
	OpMod      BinOpKind = "mod"
	OpPow      BinOpKind = "pow"
	OpBitXor   BinOpKind = "bitxor"
	OpBitAnd   BinOpKind = "bitand"
	OpBitOr    BinOpKind = "bitor"
)

// UnaryOpKind enumerates unary operators.
type UnaryOpKind string

// Available UnaryOpKind values.
const (
	OpNot    UnaryOpKind = "not"
	OpUSub   UnaryOpKind = "usub"
	OpInvert UnaryOpKind = "invert"
)

// BoolOpKind enumerates short-circuit boolean operators.
type BoolOpKind string

// Available BoolOpKind values.
const (
	OpAnd BoolOpKind = "and"
	OpOr  BoolOpKind = "or"
)

// CmpOpKind enumerates comparison operators.
type CmpOpKind string

// Available CmpOpKind values.
const (
	OpEq    CmpOpKind = "eq"
	OpNotEq CmpOpKind = "noteq"
	OpLt    CmpOpKind = "lt"
	OpLtE   CmpOpKind = "lte"
	OpGt    CmpOpKind = "gt"
	OpGtE   CmpOpKind = "gte"
	OpIs    CmpOpKind = "is"
	OpIsNot CmpOpKind = "isnot"
	OpIn    CmpOpKind = "in"
	OpNotIn CmpOpKind = "notin"
)

// Node is the sealed root of the syntax tree node set. The set is closed:
// the unparser, the tree codec and every pass switch exhaustively over it.
type Node interface{ isNode() }

// Expr is a node usable in expression position.
type Expr interface {
	Node
	isExpr()
}

// Stmt is a node usable in statement position.
type Stmt interface {
	Node
	isStmt()
}

type exprNode struct{}

func (exprNode) isNode() {}
func (exprNode) isExpr() {}

type stmtNode struct{}

func (stmtNode) isNode() {}
func (stmtNode) isStmt() {}

// Module is the tree root produced by the external parser.
type Module struct {
	Body []Stmt
}

func (*Module) isNode() {}

// Literal expressions.
type (
	// Str is a string literal.
	Str struct {
		exprNode
		Value string
	}

	// Int is an integer literal.
	Int struct {
		exprNode
		Value int64
	}

	// Float is a floating point literal.
	Float struct {
		exprNode
		Value float64
	}

	// Bytes is a bytes literal.
	Bytes struct {
		exprNode
		Value []byte
	}

	// Bool is a boolean literal.
	Bool struct {
		exprNode
		Value bool
	}

	// None is the null literal.
	None struct {
		exprNode
	}
)

// Name is an identifier reference.
type Name struct {
	exprNode
	ID  string
	Ctx NameCtx
}

// Attribute is an attribute access such as obj.attr.
type Attribute struct {
	exprNode
	Value Expr
	Attr  string
	Ctx   NameCtx
}

// Subscript is an index access such as obj[idx].
type Subscript struct {
	exprNode
	Value Expr
	Index Expr
	Ctx   NameCtx
}

// Keyword is a keyword argument at a call site. An empty Name means a
// **kwargs splat.
type Keyword struct {
	Name  string
	Value Expr
}

// Starred is a *args splat in a call argument list.
type Starred struct {
	exprNode
	Value Expr
}

// Call is a function or method invocation.
type Call struct {
	exprNode
	Func     Expr
	Args     []Expr
	Keywords []Keyword
}

// BinOp is a binary arithmetic or bitwise expression.
type BinOp struct {
	exprNode
	Left  Expr
	Op    BinOpKind
	Right Expr
}

// UnaryOp is a unary expression.
type UnaryOp struct {
	exprNode
	Op      UnaryOpKind
	Operand Expr
}

// BoolOp is a short-circuit and/or chain.
type BoolOp struct {
	exprNode
	Op     BoolOpKind
	Values []Expr
}

// Compare is a comparison chain: Left Ops[0] Comparators[0] Ops[1] ...
type Compare struct {
	exprNode
	Left        Expr
	Ops         []CmpOpKind
	Comparators []Expr
}

// IfExp is a conditional expression: Body if Test else OrElse.
type IfExp struct {
	exprNode
	Test   Expr
	Body   Expr
	OrElse Expr
}

// Lambda is an anonymous single-expression function.
type Lambda struct {
	exprNode
	Params []string
	Body   Expr
}

// Tuple is a tuple display.
type Tuple struct {
	exprNode
	Elts []Expr
	Ctx  NameCtx
}

// List is a list display.
type List struct {
	exprNode
	Elts []Expr
}

// Dict is a dict display. Keys and Values run in parallel.
type Dict struct {
	exprNode
	Keys   []Expr
	Values []Expr
}

// Param is a formal parameter of a function definition.
type Param struct {
	Name    string
	Default Expr
}

// FunctionDef is a named function definition.
type FunctionDef struct {
	stmtNode
	Name       string
	Params     []Param
	Body       []Stmt
	Decorators []Expr
}

// ClassDef is a class definition.
type ClassDef struct {
	stmtNode
	Name       string
	Bases      []Expr
	Keywords   []Keyword
	Body       []Stmt
	Decorators []Expr
}

// Assign is an assignment statement with one or more targets.
type Assign struct {
	stmtNode
	Targets []Expr
	Value   Expr
}

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	stmtNode
	Value Expr
}

// Return is a return statement; Value may be nil for a bare return.
type Return struct {
	stmtNode
	Value Expr
}

// If is a conditional statement.
type If struct {
	stmtNode
	Test Expr
	Body []Stmt
	Else []Stmt
}

// While is a condition-driven loop.
type While struct {
	stmtNode
	Test Expr
	Body []Stmt
}

// For iterates Target over Iter.
type For struct {
	stmtNode
	Target Expr
	Iter   Expr
	Body   []Stmt
}

// ExceptHandler is one except clause of a Try statement. It is a Node so
// rewriters and walkers visit it, but neither an Expr nor a Stmt.
type ExceptHandler struct {
	Type Expr
	Name string
	Body []Stmt
}

func (*ExceptHandler) isNode() {}

// Try is a try/except/else/finally statement.
type Try struct {
	stmtNode
	Body     []Stmt
	Handlers []*ExceptHandler
	Else     []Stmt
	Final    []Stmt
}

// Alias is one imported name, optionally rebound.
type Alias struct {
	Name   string
	AsName string
}

// Import is a plain import statement.
type Import struct {
	stmtNode
	Names []Alias
}

// ImportFrom is a from-import statement.
type ImportFrom struct {
	stmtNode
	Module string
	Names  []Alias
}

// Delete removes bindings or attributes.
type Delete struct {
	stmtNode
	Targets []Expr
}

// Global declares module-level bindings inside a function.
type Global struct {
	stmtNode
	Names []string
}

// Raise raises an exception; Exc may be nil for a bare re-raise.
type Raise struct {
	stmtNode
	Exc Expr
}

// Pass is a no-op statement.
type Pass struct{ stmtNode }

// Break exits the innermost loop.
type Break struct{ stmtNode }

// Continue resumes the innermost loop.
type Continue struct{ stmtNode }

// StmtSeq splices several statements into the position of one during a
// rewrite. It only ever exists between a Rewriter callback returning it and
// the surrounding body splice; the codec and the unparser reject it.
type StmtSeq struct {
	stmtNode
	Items []Stmt
}
