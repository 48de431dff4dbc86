package model

// Visitor is called by Walk for every node in pre-order. Returning false
// stops the walk from descending into the node's children.
type Visitor func(Node) bool

// Walk traverses the tree rooted at n in pre-order.
func Walk(n Node, visit Visitor) {
	if n == nil || !visit(n) {
		return
	}

	switch node := n.(type) {
	case *Module:
		walkBody(node.Body, visit)
	case *FunctionDef:
		for _, dec := range node.Decorators {
			Walk(dec, visit)
		}

		for _, param := range node.Params {
			if param.Default != nil {
				Walk(param.Default, visit)
			}
		}

		walkBody(node.Body, visit)
	case *ClassDef:
		for _, dec := range node.Decorators {
			Walk(dec, visit)
		}

		for _, base := range node.Bases {
			Walk(base, visit)
		}

		for _, kw := range node.Keywords {
			Walk(kw.Value, visit)
		}

		walkBody(node.Body, visit)
	case *Assign:
		for _, target := range node.Targets {
			Walk(target, visit)
		}

		Walk(node.Value, visit)
	case *ExprStmt:
		Walk(node.Value, visit)
	case *Return:
		if node.Value != nil {
			Walk(node.Value, visit)
		}
	case *If:
		Walk(node.Test, visit)
		walkBody(node.Body, visit)
		walkBody(node.Else, visit)
	case *While:
		Walk(node.Test, visit)
		walkBody(node.Body, visit)
	case *For:
		Walk(node.Target, visit)
		Walk(node.Iter, visit)
		walkBody(node.Body, visit)
	case *Try:
		walkBody(node.Body, visit)

		for _, handler := range node.Handlers {
			Walk(handler, visit)
		}

		walkBody(node.Else, visit)
		walkBody(node.Final, visit)
	case *ExceptHandler:
		if node.Type != nil {
			Walk(node.Type, visit)
		}

		walkBody(node.Body, visit)
	case *Delete:
		for _, target := range node.Targets {
			Walk(target, visit)
		}
	case *Raise:
		if node.Exc != nil {
			Walk(node.Exc, visit)
		}
	case *Attribute:
		Walk(node.Value, visit)
	case *Subscript:
		Walk(node.Value, visit)
		Walk(node.Index, visit)
	case *Call:
		Walk(node.Func, visit)

		for _, arg := range node.Args {
			Walk(arg, visit)
		}

		for _, kw := range node.Keywords {
			Walk(kw.Value, visit)
		}
	case *Starred:
		Walk(node.Value, visit)
	case *BinOp:
		Walk(node.Left, visit)
		Walk(node.Right, visit)
	case *UnaryOp:
		Walk(node.Operand, visit)
	case *BoolOp:
		for _, value := range node.Values {
			Walk(value, visit)
		}
	case *Compare:
		Walk(node.Left, visit)

		for _, cmp := range node.Comparators {
			Walk(cmp, visit)
		}
	case *IfExp:
		Walk(node.Test, visit)
		Walk(node.Body, visit)
		Walk(node.OrElse, visit)
	case *Lambda:
		Walk(node.Body, visit)
	case *Tuple:
		for _, elt := range node.Elts {
			Walk(elt, visit)
		}
	case *List:
		for _, elt := range node.Elts {
			Walk(elt, visit)
		}
	case *Dict:
		for _, key := range node.Keys {
			Walk(key, visit)
		}

		for _, value := range node.Values {
			Walk(value, visit)
		}
	case *StmtSeq:
		walkBody(node.Items, visit)
	}
}

func walkBody(body []Stmt, visit Visitor) {
	for _, stmt := range body {
		Walk(stmt, visit)
	}
}

// Rewriter transforms one node. It is applied bottom-up: children have
// already been rewritten when the callback runs. Returning the input node
// unchanged leaves the site alone; a statement callback may return a StmtSeq
// to splice several statements (or none) into the surrounding body.
type Rewriter func(Node) Node

// Rewrite applies fn to every node of the tree bottom-up and returns the
// rewritten root. The input tree is mutated in place where possible.
func Rewrite(n Node, fn Rewriter) Node {
	if n == nil {
		return nil
	}

	switch node := n.(type) {
	case *Module:
		node.Body = rewriteBody(node.Body, fn)
	case *FunctionDef:
		rewriteExprs(node.Decorators, fn)

		for i := range node.Params {
			if node.Params[i].Default != nil {
				node.Params[i].Default = rewriteExpr(node.Params[i].Default, fn)
			}
		}

		node.Body = rewriteBody(node.Body, fn)
	case *ClassDef:
		rewriteExprs(node.Decorators, fn)
		rewriteExprs(node.Bases, fn)
		rewriteKeywords(node.Keywords, fn)
		node.Body = rewriteBody(node.Body, fn)
	case *Assign:
		rewriteExprs(node.Targets, fn)
		node.Value = rewriteExpr(node.Value, fn)
	case *ExprStmt:
		node.Value = rewriteExpr(node.Value, fn)
	case *Return:
		if node.Value != nil {
			node.Value = rewriteExpr(node.Value, fn)
		}
	case *If:
		node.Test = rewriteExpr(node.Test, fn)
		node.Body = rewriteBody(node.Body, fn)
		node.Else = rewriteBody(node.Else, fn)
	case *While:
		node.Test = rewriteExpr(node.Test, fn)
		node.Body = rewriteBody(node.Body, fn)
	case *For:
		node.Target = rewriteExpr(node.Target, fn)
		node.Iter = rewriteExpr(node.Iter, fn)
		node.Body = rewriteBody(node.Body, fn)
	case *Try:
		node.Body = rewriteBody(node.Body, fn)

		for _, handler := range node.Handlers {
			Rewrite(handler, fn)
		}

		node.Else = rewriteBody(node.Else, fn)
		node.Final = rewriteBody(node.Final, fn)
	case *ExceptHandler:
		if node.Type != nil {
			node.Type = rewriteExpr(node.Type, fn)
		}

		node.Body = rewriteBody(node.Body, fn)
	case *Delete:
		rewriteExprs(node.Targets, fn)
	case *Raise:
		if node.Exc != nil {
			node.Exc = rewriteExpr(node.Exc, fn)
		}
	case *Attribute:
		node.Value = rewriteExpr(node.Value, fn)
	case *Subscript:
		node.Value = rewriteExpr(node.Value, fn)
		node.Index = rewriteExpr(node.Index, fn)
	case *Call:
		node.Func = rewriteExpr(node.Func, fn)
		rewriteExprs(node.Args, fn)
		rewriteKeywords(node.Keywords, fn)
	case *Starred:
		node.Value = rewriteExpr(node.Value, fn)
	case *BinOp:
		node.Left = rewriteExpr(node.Left, fn)
		node.Right = rewriteExpr(node.Right, fn)
	case *UnaryOp:
		node.Operand = rewriteExpr(node.Operand, fn)
	case *BoolOp:
		rewriteExprs(node.Values, fn)
	case *Compare:
		node.Left = rewriteExpr(node.Left, fn)
		rewriteExprs(node.Comparators, fn)
	case *IfExp:
		node.Test = rewriteExpr(node.Test, fn)
		node.Body = rewriteExpr(node.Body, fn)
		node.OrElse = rewriteExpr(node.OrElse, fn)
	case *Lambda:
		node.Body = rewriteExpr(node.Body, fn)
	case *Tuple:
		rewriteExprs(node.Elts, fn)
	case *List:
		rewriteExprs(node.Elts, fn)
	case *Dict:
		rewriteExprs(node.Keys, fn)
		rewriteExprs(node.Values, fn)
	}

	return fn(n)
}

func rewriteExpr(e Expr, fn Rewriter) Expr {
	if e == nil {
		return nil
	}

	out, ok := Rewrite(e, fn).(Expr)
	if !ok {
		return e
	}

	return out
}

func rewriteExprs(exprs []Expr, fn Rewriter) {
	for i, e := range exprs {
		exprs[i] = rewriteExpr(e, fn)
	}
}

func rewriteKeywords(keywords []Keyword, fn Rewriter) {
	for i := range keywords {
		keywords[i].Value = rewriteExpr(keywords[i].Value, fn)
	}
}

func rewriteBody(body []Stmt, fn Rewriter) []Stmt {
	out := make([]Stmt, 0, len(body))

	for _, stmt := range body {
		rewritten, ok := Rewrite(stmt, fn).(Stmt)
		if !ok {
			out = append(out, stmt)
			continue
		}

		if seq, ok := rewritten.(*StmtSeq); ok {
			out = append(out, seq.Items...)
			continue
		}

		out = append(out, rewritten)
	}

	return out
}
