// Package adapter hosts the infrastructure boundary of the pipeline: the
// syntax tree wire codec, the source-text unparser and the artifact store.
// The domain layer only ever sees model.Node trees and artifact structs.
package adapter

import (
	"encoding/json"
	"fmt"

	m "veil.dev/pkg/veil/internal/model"
)

// TreeCodec converts between the JSON tree interchange format produced by
// the external parser and the in-memory node set. Round-tripping is
// lossless for every node kind in the set.
type TreeCodec interface {
	Decode(data []byte) (*m.Module, error)
	Encode(module *m.Module) ([]byte, error)
}

// JSONTreeCodec is the concrete TreeCodec for the *.ast.json format.
type JSONTreeCodec struct{}

// NewJSONTreeCodec constructs a JSONTreeCodec.
func NewJSONTreeCodec() *JSONTreeCodec {
	return &JSONTreeCodec{}
}

type jsonKeyword struct {
	Name  string    `json:"name,omitempty"`
	Value *jsonNode `json:"value"`
}

type jsonParam struct {
	Name    string    `json:"name"`
	Default *jsonNode `json:"default,omitempty"`
}

type jsonAlias struct {
	Name   string `json:"name"`
	AsName string `json:"asname,omitempty"`
}

type jsonHandler struct {
	Type *jsonNode   `json:"type,omitempty"`
	Name string      `json:"name,omitempty"`
	Body []*jsonNode `json:"body"`
}

// jsonNode is the wire form of every node kind. Only the fields relevant to
// a kind are populated; the rest stay empty and are omitted on encode.
type jsonNode struct {
	Kind string `json:"kind"`

	Str   *string  `json:"s,omitempty"`
	Int   *int64   `json:"i,omitempty"`
	Float *float64 `json:"f,omitempty"`
	Bool  *bool    `json:"b,omitempty"`
	Data  []byte   `json:"data,omitempty"`

	ID   string `json:"id,omitempty"`
	Ctx  string `json:"ctx,omitempty"`
	Attr string `json:"attr,omitempty"`

	Value   *jsonNode `json:"value,omitempty"`
	Index   *jsonNode `json:"index,omitempty"`
	Func    *jsonNode `json:"func,omitempty"`
	Left    *jsonNode `json:"left,omitempty"`
	Right   *jsonNode `json:"right,omitempty"`
	Operand *jsonNode `json:"operand,omitempty"`
	Test    *jsonNode `json:"test,omitempty"`
	Expr    *jsonNode `json:"expr,omitempty"`
	OrElse  *jsonNode `json:"orelse,omitempty"`
	Target  *jsonNode `json:"target,omitempty"`
	Iter    *jsonNode `json:"iter,omitempty"`

	Op  string   `json:"op,omitempty"`
	Ops []string `json:"ops,omitempty"`

	Args        []*jsonNode   `json:"args,omitempty"`
	Keywords    []jsonKeyword `json:"keywords,omitempty"`
	Values      []*jsonNode   `json:"values,omitempty"`
	Comparators []*jsonNode   `json:"comparators,omitempty"`
	Elts        []*jsonNode   `json:"elts,omitempty"`
	Keys        []*jsonNode   `json:"keys,omitempty"`
	Targets     []*jsonNode   `json:"targets,omitempty"`
	Bases       []*jsonNode   `json:"bases,omitempty"`
	Decorators  []*jsonNode   `json:"decorators,omitempty"`
	Body        []*jsonNode   `json:"body,omitempty"`
	Else        []*jsonNode   `json:"else,omitempty"`
	Final       []*jsonNode   `json:"final,omitempty"`
	Handlers    []jsonHandler `json:"handlers,omitempty"`

	Name       string      `json:"name,omitempty"`
	Names      []string    `json:"names,omitempty"`
	Module     string      `json:"module,omitempty"`
	Aliases    []jsonAlias `json:"aliases,omitempty"`
	Params     []jsonParam `json:"params,omitempty"`
	ParamNames []string    `json:"param_names,omitempty"`
}

// Decode parses the JSON tree format into a Module.
func (c *JSONTreeCodec) Decode(data []byte) (*m.Module, error) {
	var root jsonNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}

	if root.Kind != "module" {
		return nil, fmt.Errorf("decode tree: root kind must be \"module\", got %q", root.Kind)
	}

	body, err := decodeBody(root.Body)
	if err != nil {
		return nil, err
	}

	return &m.Module{Body: body}, nil
}

// Encode serializes a Module into the JSON tree format.
func (c *JSONTreeCodec) Encode(module *m.Module) ([]byte, error) {
	root := &jsonNode{Kind: "module", Body: encodeBody(module.Body)}

	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tree: %w", err)
	}

	return data, nil
}

func decodeBody(nodes []*jsonNode) ([]m.Stmt, error) {
	body := make([]m.Stmt, 0, len(nodes))

	for _, node := range nodes {
		stmt, err := decodeStmt(node)
		if err != nil {
			return nil, err
		}

		body = append(body, stmt)
	}

	return body, nil
}

func decodeExprs(nodes []*jsonNode) ([]m.Expr, error) {
	exprs := make([]m.Expr, 0, len(nodes))

	for _, node := range nodes {
		expr, err := decodeExpr(node)
		if err != nil {
			return nil, err
		}

		exprs = append(exprs, expr)
	}

	return exprs, nil
}

func decodeOptExpr(node *jsonNode) (m.Expr, error) {
	if node == nil {
		return nil, nil
	}

	return decodeExpr(node)
}

func decodeCtx(raw string) m.NameCtx {
	switch m.NameCtx(raw) {
	case m.CtxStore:
		return m.CtxStore
	case m.CtxDel:
		return m.CtxDel
	default:
		return m.CtxLoad
	}
}

func decodeKeywords(raw []jsonKeyword) ([]m.Keyword, error) {
	keywords := make([]m.Keyword, 0, len(raw))

	for _, kw := range raw {
		value, err := decodeExpr(kw.Value)
		if err != nil {
			return nil, err
		}

		keywords = append(keywords, m.Keyword{Name: kw.Name, Value: value})
	}

	return keywords, nil
}

func decodeAliases(raw []jsonAlias) []m.Alias {
	aliases := make([]m.Alias, 0, len(raw))
	for _, alias := range raw {
		aliases = append(aliases, m.Alias{Name: alias.Name, AsName: alias.AsName})
	}

	return aliases
}

func decodeExpr(node *jsonNode) (m.Expr, error) {
	if node == nil {
		return nil, fmt.Errorf("decode tree: missing expression node")
	}

	switch node.Kind {
	case "str":
		if node.Str == nil {
			return nil, fmt.Errorf("decode tree: str literal without \"s\"")
		}

		return &m.Str{Value: *node.Str}, nil
	case "int":
		if node.Int == nil {
			return nil, fmt.Errorf("decode tree: int literal without \"i\"")
		}

		return &m.Int{Value: *node.Int}, nil
	case "float":
		if node.Float == nil {
			return nil, fmt.Errorf("decode tree: float literal without \"f\"")
		}

		return &m.Float{Value: *node.Float}, nil
	case "bool":
		if node.Bool == nil {
			return nil, fmt.Errorf("decode tree: bool literal without \"b\"")
		}

		return &m.Bool{Value: *node.Bool}, nil
	case "bytes":
		return &m.Bytes{Value: node.Data}, nil
	case "none":
		return &m.None{}, nil
	case "name":
		if node.ID == "" {
			return nil, fmt.Errorf("decode tree: name without id")
		}

		return &m.Name{ID: node.ID, Ctx: decodeCtx(node.Ctx)}, nil
	case "attribute":
		value, err := decodeExpr(node.Value)
		if err != nil {
			return nil, err
		}

		return &m.Attribute{Value: value, Attr: node.Attr, Ctx: decodeCtx(node.Ctx)}, nil
	case "subscript":
		value, err := decodeExpr(node.Value)
		if err != nil {
			return nil, err
		}

		index, err := decodeExpr(node.Index)
		if err != nil {
			return nil, err
		}

		return &m.Subscript{Value: value, Index: index, Ctx: decodeCtx(node.Ctx)}, nil
	case "starred":
		value, err := decodeExpr(node.Value)
		if err != nil {
			return nil, err
		}

		return &m.Starred{Value: value}, nil
	case "call":
		fn, err := decodeExpr(node.Func)
		if err != nil {
			return nil, err
		}

		args, err := decodeExprs(node.Args)
		if err != nil {
			return nil, err
		}

		keywords, err := decodeKeywords(node.Keywords)
		if err != nil {
			return nil, err
		}

		return &m.Call{Func: fn, Args: args, Keywords: keywords}, nil
	case "binop":
		left, err := decodeExpr(node.Left)
		if err != nil {
			return nil, err
		}

		right, err := decodeExpr(node.Right)
		if err != nil {
			return nil, err
		}

		return &m.BinOp{Left: left, Op: m.BinOpKind(node.Op), Right: right}, nil
	case "unaryop":
		operand, err := decodeExpr(node.Operand)
		if err != nil {
			return nil, err
		}

		return &m.UnaryOp{Op: m.UnaryOpKind(node.Op), Operand: operand}, nil
	case "boolop":
		values, err := decodeExprs(node.Values)
		if err != nil {
			return nil, err
		}

		return &m.BoolOp{Op: m.BoolOpKind(node.Op), Values: values}, nil
	case "compare":
		left, err := decodeExpr(node.Left)
		if err != nil {
			return nil, err
		}

		comparators, err := decodeExprs(node.Comparators)
		if err != nil {
			return nil, err
		}

		if len(node.Ops) != len(comparators) {
			return nil, fmt.Errorf("decode tree: compare has %d ops for %d comparators", len(node.Ops), len(comparators))
		}

		ops := make([]m.CmpOpKind, 0, len(node.Ops))
		for _, op := range node.Ops {
			ops = append(ops, m.CmpOpKind(op))
		}

		return &m.Compare{Left: left, Ops: ops, Comparators: comparators}, nil
	case "ifexp":
		test, err := decodeExpr(node.Test)
		if err != nil {
			return nil, err
		}

		body, err := decodeExpr(node.Expr)
		if err != nil {
			return nil, err
		}

		orElse, err := decodeExpr(node.OrElse)
		if err != nil {
			return nil, err
		}

		return &m.IfExp{Test: test, Body: body, OrElse: orElse}, nil
	case "lambda":
		body, err := decodeExpr(node.Expr)
		if err != nil {
			return nil, err
		}

		return &m.Lambda{Params: node.ParamNames, Body: body}, nil
	case "tuple":
		elts, err := decodeExprs(node.Elts)
		if err != nil {
			return nil, err
		}

		return &m.Tuple{Elts: elts, Ctx: decodeCtx(node.Ctx)}, nil
	case "list":
		elts, err := decodeExprs(node.Elts)
		if err != nil {
			return nil, err
		}

		return &m.List{Elts: elts}, nil
	case "dict":
		keys, err := decodeExprs(node.Keys)
		if err != nil {
			return nil, err
		}

		values, err := decodeExprs(node.Values)
		if err != nil {
			return nil, err
		}

		if len(keys) != len(values) {
			return nil, fmt.Errorf("decode tree: dict has %d keys for %d values", len(keys), len(values))
		}

		return &m.Dict{Keys: keys, Values: values}, nil
	}

	return nil, fmt.Errorf("decode tree: unknown expression kind %q", node.Kind)
}

func decodeStmt(node *jsonNode) (m.Stmt, error) {
	if node == nil {
		return nil, fmt.Errorf("decode tree: missing statement node")
	}

	switch node.Kind {
	case "functiondef":
		params := make([]m.Param, 0, len(node.Params))

		for _, param := range node.Params {
			def, err := decodeOptExpr(param.Default)
			if err != nil {
				return nil, err
			}

			params = append(params, m.Param{Name: param.Name, Default: def})
		}

		body, err := decodeBody(node.Body)
		if err != nil {
			return nil, err
		}

		decorators, err := decodeExprs(node.Decorators)
		if err != nil {
			return nil, err
		}

		return &m.FunctionDef{Name: node.Name, Params: params, Body: body, Decorators: decorators}, nil
	case "classdef":
		bases, err := decodeExprs(node.Bases)
		if err != nil {
			return nil, err
		}

		keywords, err := decodeKeywords(node.Keywords)
		if err != nil {
			return nil, err
		}

		body, err := decodeBody(node.Body)
		if err != nil {
			return nil, err
		}

		decorators, err := decodeExprs(node.Decorators)
		if err != nil {
			return nil, err
		}

		return &m.ClassDef{Name: node.Name, Bases: bases, Keywords: keywords, Body: body, Decorators: decorators}, nil
	case "assign":
		targets, err := decodeExprs(node.Targets)
		if err != nil {
			return nil, err
		}

		value, err := decodeExpr(node.Value)
		if err != nil {
			return nil, err
		}

		return &m.Assign{Targets: targets, Value: value}, nil
	case "exprstmt":
		value, err := decodeExpr(node.Value)
		if err != nil {
			return nil, err
		}

		return &m.ExprStmt{Value: value}, nil
	case "return":
		value, err := decodeOptExpr(node.Value)
		if err != nil {
			return nil, err
		}

		return &m.Return{Value: value}, nil
	case "if":
		test, err := decodeExpr(node.Test)
		if err != nil {
			return nil, err
		}

		body, err := decodeBody(node.Body)
		if err != nil {
			return nil, err
		}

		elseBody, err := decodeBody(node.Else)
		if err != nil {
			return nil, err
		}

		return &m.If{Test: test, Body: body, Else: elseBody}, nil
	case "while":
		test, err := decodeExpr(node.Test)
		if err != nil {
			return nil, err
		}

		body, err := decodeBody(node.Body)
		if err != nil {
			return nil, err
		}

		return &m.While{Test: test, Body: body}, nil
	case "for":
		target, err := decodeExpr(node.Target)
		if err != nil {
			return nil, err
		}

		iter, err := decodeExpr(node.Iter)
		if err != nil {
			return nil, err
		}

		body, err := decodeBody(node.Body)
		if err != nil {
			return nil, err
		}

		return &m.For{Target: target, Iter: iter, Body: body}, nil
	case "try":
		body, err := decodeBody(node.Body)
		if err != nil {
			return nil, err
		}

		handlers := make([]*m.ExceptHandler, 0, len(node.Handlers))

		for _, handler := range node.Handlers {
			typ, err := decodeOptExpr(handler.Type)
			if err != nil {
				return nil, err
			}

			handlerBody, err := decodeBody(handler.Body)
			if err != nil {
				return nil, err
			}

			handlers = append(handlers, &m.ExceptHandler{Type: typ, Name: handler.Name, Body: handlerBody})
		}

		elseBody, err := decodeBody(node.Else)
		if err != nil {
			return nil, err
		}

		finalBody, err := decodeBody(node.Final)
		if err != nil {
			return nil, err
		}

		return &m.Try{Body: body, Handlers: handlers, Else: elseBody, Final: finalBody}, nil
	case "import":
		return &m.Import{Names: decodeAliases(node.Aliases)}, nil
	case "importfrom":
		return &m.ImportFrom{Module: node.Module, Names: decodeAliases(node.Aliases)}, nil
	case "delete":
		targets, err := decodeExprs(node.Targets)
		if err != nil {
			return nil, err
		}

		return &m.Delete{Targets: targets}, nil
	case "global":
		return &m.Global{Names: node.Names}, nil
	case "raise":
		exc, err := decodeOptExpr(node.Value)
		if err != nil {
			return nil, err
		}

		return &m.Raise{Exc: exc}, nil
	case "pass":
		return &m.Pass{}, nil
	case "break":
		return &m.Break{}, nil
	case "continue":
		return &m.Continue{}, nil
	}

	return nil, fmt.Errorf("decode tree: unknown statement kind %q", node.Kind)
}

func encodeBody(body []m.Stmt) []*jsonNode {
	nodes := make([]*jsonNode, 0, len(body))
	for _, stmt := range body {
		nodes = append(nodes, encodeStmt(stmt))
	}

	return nodes
}

func encodeExprs(exprs []m.Expr) []*jsonNode {
	nodes := make([]*jsonNode, 0, len(exprs))
	for _, expr := range exprs {
		nodes = append(nodes, encodeExpr(expr))
	}

	return nodes
}

func encodeOptExpr(expr m.Expr) *jsonNode {
	if expr == nil {
		return nil
	}

	return encodeExpr(expr)
}

func encodeKeywords(keywords []m.Keyword) []jsonKeyword {
	out := make([]jsonKeyword, 0, len(keywords))
	for _, kw := range keywords {
		out = append(out, jsonKeyword{Name: kw.Name, Value: encodeExpr(kw.Value)})
	}

	return out
}

func encodeAliases(aliases []m.Alias) []jsonAlias {
	out := make([]jsonAlias, 0, len(aliases))
	for _, alias := range aliases {
		out = append(out, jsonAlias{Name: alias.Name, AsName: alias.AsName})
	}

	return out
}

func encodeExpr(expr m.Expr) *jsonNode {
	switch node := expr.(type) {
	case *m.Str:
		value := node.Value
		return &jsonNode{Kind: "str", Str: &value}
	case *m.Int:
		value := node.Value
		return &jsonNode{Kind: "int", Int: &value}
	case *m.Float:
		value := node.Value
		return &jsonNode{Kind: "float", Float: &value}
	case *m.Bool:
		value := node.Value
		return &jsonNode{Kind: "bool", Bool: &value}
	case *m.Bytes:
		return &jsonNode{Kind: "bytes", Data: node.Value}
	case *m.None:
		return &jsonNode{Kind: "none"}
	case *m.Name:
		return &jsonNode{Kind: "name", ID: node.ID, Ctx: string(node.Ctx)}
	case *m.Attribute:
		return &jsonNode{Kind: "attribute", Value: encodeExpr(node.Value), Attr: node.Attr, Ctx: string(node.Ctx)}
	case *m.Subscript:
		return &jsonNode{Kind: "subscript", Value: encodeExpr(node.Value), Index: encodeExpr(node.Index), Ctx: string(node.Ctx)}
	case *m.Starred:
		return &jsonNode{Kind: "starred", Value: encodeExpr(node.Value)}
	case *m.Call:
		return &jsonNode{Kind: "call", Func: encodeExpr(node.Func), Args: encodeExprs(node.Args), Keywords: encodeKeywords(node.Keywords)}
	case *m.BinOp:
		return &jsonNode{Kind: "binop", Op: string(node.Op), Left: encodeExpr(node.Left), Right: encodeExpr(node.Right)}
	case *m.UnaryOp:
		return &jsonNode{Kind: "unaryop", Op: string(node.Op), Operand: encodeExpr(node.Operand)}
	case *m.BoolOp:
		return &jsonNode{Kind: "boolop", Op: string(node.Op), Values: encodeExprs(node.Values)}
	case *m.Compare:
		ops := make([]string, 0, len(node.Ops))
		for _, op := range node.Ops {
			ops = append(ops, string(op))
		}

		return &jsonNode{Kind: "compare", Left: encodeExpr(node.Left), Ops: ops, Comparators: encodeExprs(node.Comparators)}
	case *m.IfExp:
		return &jsonNode{Kind: "ifexp", Test: encodeExpr(node.Test), Expr: encodeExpr(node.Body), OrElse: encodeExpr(node.OrElse)}
	case *m.Lambda:
		return &jsonNode{Kind: "lambda", ParamNames: node.Params, Expr: encodeExpr(node.Body)}
	case *m.Tuple:
		return &jsonNode{Kind: "tuple", Elts: encodeExprs(node.Elts), Ctx: string(node.Ctx)}
	case *m.List:
		return &jsonNode{Kind: "list", Elts: encodeExprs(node.Elts)}
	case *m.Dict:
		return &jsonNode{Kind: "dict", Keys: encodeExprs(node.Keys), Values: encodeExprs(node.Values)}
	}

	return &jsonNode{Kind: "none"}
}

func encodeStmt(stmt m.Stmt) *jsonNode {
	switch node := stmt.(type) {
	case *m.FunctionDef:
		params := make([]jsonParam, 0, len(node.Params))
		for _, param := range node.Params {
			params = append(params, jsonParam{Name: param.Name, Default: encodeOptExpr(param.Default)})
		}

		return &jsonNode{Kind: "functiondef", Name: node.Name, Params: params, Body: encodeBody(node.Body), Decorators: encodeExprs(node.Decorators)}
	case *m.ClassDef:
		return &jsonNode{
			Kind:       "classdef",
			Name:       node.Name,
			Bases:      encodeExprs(node.Bases),
			Keywords:   encodeKeywords(node.Keywords),
			Body:       encodeBody(node.Body),
			Decorators: encodeExprs(node.Decorators),
		}
	case *m.Assign:
		return &jsonNode{Kind: "assign", Targets: encodeExprs(node.Targets), Value: encodeExpr(node.Value)}
	case *m.ExprStmt:
		return &jsonNode{Kind: "exprstmt", Value: encodeExpr(node.Value)}
	case *m.Return:
		return &jsonNode{Kind: "return", Value: encodeOptExpr(node.Value)}
	case *m.If:
		return &jsonNode{Kind: "if", Test: encodeExpr(node.Test), Body: encodeBody(node.Body), Else: encodeBody(node.Else)}
	case *m.While:
		return &jsonNode{Kind: "while", Test: encodeExpr(node.Test), Body: encodeBody(node.Body)}
	case *m.For:
		return &jsonNode{Kind: "for", Target: encodeExpr(node.Target), Iter: encodeExpr(node.Iter), Body: encodeBody(node.Body)}
	case *m.Try:
		handlers := make([]jsonHandler, 0, len(node.Handlers))
		for _, handler := range node.Handlers {
			handlers = append(handlers, jsonHandler{Type: encodeOptExpr(handler.Type), Name: handler.Name, Body: encodeBody(handler.Body)})
		}

		return &jsonNode{Kind: "try", Body: encodeBody(node.Body), Handlers: handlers, Else: encodeBody(node.Else), Final: encodeBody(node.Final)}
	case *m.Import:
		return &jsonNode{Kind: "import", Aliases: encodeAliases(node.Names)}
	case *m.ImportFrom:
		return &jsonNode{Kind: "importfrom", Module: node.Module, Aliases: encodeAliases(node.Names)}
	case *m.Delete:
		return &jsonNode{Kind: "delete", Targets: encodeExprs(node.Targets)}
	case *m.Global:
		return &jsonNode{Kind: "global", Names: node.Names}
	case *m.Raise:
		return &jsonNode{Kind: "raise", Value: encodeOptExpr(node.Exc)}
	case *m.Pass:
		return &jsonNode{Kind: "pass"}
	case *m.Break:
		return &jsonNode{Kind: "break"}
	case *m.Continue:
		return &jsonNode{Kind: "continue"}
	}

	return &jsonNode{Kind: "pass"}
}
