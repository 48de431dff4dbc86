package domain

import (
	m "veil.dev/pkg/veil/internal/model"
)

// scope is one lexical binding frame. Bindings map original identifiers to
// their obfuscated replacements; lookup falls through to the parent frame.
type scope struct {
	name     string
	parent   *scope
	bindings map[string]string
	// renamable is false inside a class body outside any method. Class-level
	// names become attributes of the class object and must keep their
	// external spelling.
	renamable bool
}

func (s *scope) child(name string, renamable bool) *scope {
	qualified := name
	if s.name != "" {
		qualified = s.name + "." + name
	}

	return &scope{
		name:      qualified,
		parent:    s,
		bindings:  make(map[string]string),
		renamable: renamable,
	}
}

// resolve walks the scope chain for the nearest binding of name.
func (s *scope) resolve(name string) (string, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if obf, ok := cur.bindings[name]; ok {
			return obf, true
		}
	}

	return "", false
}

// renamer derives and applies obfuscated identifiers. The three phases are
// strictly ordered: protect keyword-argument names, collect bindings per
// scope, then rewrite every reference through the scope chain.
type renamer struct {
	cfg       *m.EffectiveConfig
	gen       *nameGen
	protected map[string]bool
	renames   m.RenameMap
	renamed   int
}

func newRenamer(cfg *m.EffectiveConfig, gen *nameGen) *renamer {
	return &renamer{
		cfg:       cfg,
		gen:       gen,
		protected: make(map[string]bool),
		renames:   make(m.RenameMap),
	}
}

// run renames every eligible binding in the module and returns the count of
// renamed identifiers.
func (r *renamer) run(module *m.Module) (int, error) {
	r.protectKeywordArgs(module)
	r.reserveExisting(module)

	root := &scope{name: "", bindings: make(map[string]string), renamable: true}

	if err := r.collectBody(module.Body, root); err != nil {
		return 0, err
	}

	r.applyBody(module.Body, root)

	return r.renamed, nil
}

// protectKeywordArgs scans call sites before any renaming so that
// fn(seed=...) keeps its keyword spelling.
func (r *renamer) protectKeywordArgs(module *m.Module) {
	m.Walk(module, func(node m.Node) bool {
		if call, ok := node.(*m.Call); ok {
			for _, kw := range call.Keywords {
				if kw.Name != "" {
					r.protected[kw.Name] = true
				}
			}
		}

		return true
	})
}

// reserveExisting marks every identifier already present so generated names
// can never shadow one.
func (r *renamer) reserveExisting(module *m.Module) {
	m.Walk(module, func(node m.Node) bool {
		switch n := node.(type) {
		case *m.Name:
			r.gen.reserve("", n.ID)
		case *m.FunctionDef:
			r.gen.reserve("", n.Name)
		case *m.ClassDef:
			r.gen.reserve("", n.Name)
		}

		return true
	})
}

func (r *renamer) eligible(name string) bool {
	switch {
	case name == "":
		return false
	case r.protected[name]:
		return false
	case r.cfg.PreserveNames[name]:
		return false
	case m.PythonBuiltins[name]:
		return false
	case m.PythonKeywords[name]:
		return false
	case m.IsDunder(name):
		return false
	}

	return true
}

// bind assigns an obfuscated name for original within sc, unless one exists.
func (r *renamer) bind(sc *scope, original string) error {
	if !sc.renamable || !r.eligible(original) {
		return nil
	}

	if _, ok := sc.bindings[original]; ok {
		return nil
	}

	obf, err := r.gen.next(sc.name)
	if err != nil {
		return err
	}

	sc.bindings[original] = obf
	r.renames[m.QualifyName(sc.name, original)] = obf

	return nil
}

func (r *renamer) collectBody(body []m.Stmt, sc *scope) error {
	for _, stmt := range body {
		if err := r.collectStmt(stmt, sc); err != nil {
			return err
		}
	}

	return nil
}

func (r *renamer) collectStmt(stmt m.Stmt, sc *scope) error {
	switch node := stmt.(type) {
	case *m.FunctionDef:
		if err := r.bind(sc, node.Name); err != nil {
			return err
		}

		inner := sc.child(node.Name, true)

		for _, param := range node.Params {
			if err := r.bind(inner, param.Name); err != nil {
				return err
			}
		}

		return r.collectBody(node.Body, inner)
	case *m.ClassDef:
		if err := r.bind(sc, node.Name); err != nil {
			return err
		}

		return r.collectBody(node.Body, sc.child(node.Name, false))
	case *m.Assign:
		for _, target := range node.Targets {
			if err := r.collectTarget(target, sc); err != nil {
				return err
			}
		}
	case *m.If:
		if err := r.collectBody(node.Body, sc); err != nil {
			return err
		}

		return r.collectBody(node.Else, sc)
	case *m.While:
		return r.collectBody(node.Body, sc)
	case *m.For:
		if err := r.collectTarget(node.Target, sc); err != nil {
			return err
		}

		return r.collectBody(node.Body, sc)
	case *m.Try:
		if err := r.collectBody(node.Body, sc); err != nil {
			return err
		}

		for _, handler := range node.Handlers {
			if handler.Name != "" {
				if err := r.bind(sc, handler.Name); err != nil {
					return err
				}
			}

			if err := r.collectBody(handler.Body, sc); err != nil {
				return err
			}
		}

		if err := r.collectBody(node.Else, sc); err != nil {
			return err
		}

		return r.collectBody(node.Final, sc)
	case *m.Import:
		for _, alias := range node.Names {
			if err := r.bind(sc, importBinding(alias)); err != nil {
				return err
			}
		}
	case *m.ImportFrom:
		for _, alias := range node.Names {
			if alias.Name == "*" {
				continue
			}

			bound := alias.Name
			if alias.AsName != "" {
				bound = alias.AsName
			}

			if err := r.bind(sc, bound); err != nil {
				return err
			}
		}
	case *m.Global:
		// Declared-global names resolve through the module frame; no local
		// binding is created so the lookup falls through.
	}

	return nil
}

func (r *renamer) collectTarget(target m.Expr, sc *scope) error {
	switch node := target.(type) {
	case *m.Name:
		return r.bind(sc, node.ID)
	case *m.Tuple:
		for _, elt := range node.Elts {
			if err := r.collectTarget(elt, sc); err != nil {
				return err
			}
		}
	case *m.List:
		for _, elt := range node.Elts {
			if err := r.collectTarget(elt, sc); err != nil {
				return err
			}
		}
	case *m.Starred:
		return r.collectTarget(node.Value, sc)
	}

	// Attribute and subscript targets mutate objects, not bindings.
	return nil
}

// importBinding returns the name an import statement binds: the asname when
// present, otherwise the first dotted segment.
func importBinding(alias m.Alias) string {
	if alias.AsName != "" {
		return alias.AsName
	}

	name := alias.Name
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[:i]
		}
	}

	return name
}

func (r *renamer) rename(sc *scope, name string) string {
	if obf, ok := sc.resolve(name); ok {
		r.renamed++

		return obf
	}

	return name
}

func (r *renamer) applyBody(body []m.Stmt, sc *scope) {
	for _, stmt := range body {
		r.applyStmt(stmt, sc)
	}
}

func (r *renamer) applyStmt(stmt m.Stmt, sc *scope) {
	switch node := stmt.(type) {
	case *m.FunctionDef:
		inner := sc.child(node.Name, true)
		// Pick up the bindings the collector made for this frame.
		inner.bindings = r.frameBindings(inner.name)

		for _, dec := range node.Decorators {
			r.applyExpr(dec, sc)
		}

		node.Name = r.rename(sc, node.Name)

		for i := range node.Params {
			if node.Params[i].Default != nil {
				r.applyExpr(node.Params[i].Default, sc)
			}

			node.Params[i].Name = r.renameParam(inner, node.Params[i].Name)
		}

		r.applyBody(node.Body, inner)
	case *m.ClassDef:
		inner := sc.child(node.Name, false)
		inner.bindings = r.frameBindings(inner.name)

		for _, dec := range node.Decorators {
			r.applyExpr(dec, sc)
		}

		for _, base := range node.Bases {
			r.applyExpr(base, sc)
		}

		for _, kw := range node.Keywords {
			r.applyExpr(kw.Value, sc)
		}

		node.Name = r.rename(sc, node.Name)

		r.applyBody(node.Body, inner)
	case *m.Assign:
		r.applyExpr(node.Value, sc)

		for _, target := range node.Targets {
			r.applyExpr(target, sc)
		}
	case *m.ExprStmt:
		r.applyExpr(node.Value, sc)
	case *m.Return:
		if node.Value != nil {
			r.applyExpr(node.Value, sc)
		}
	case *m.If:
		r.applyExpr(node.Test, sc)
		r.applyBody(node.Body, sc)
		r.applyBody(node.Else, sc)
	case *m.While:
		r.applyExpr(node.Test, sc)
		r.applyBody(node.Body, sc)
	case *m.For:
		r.applyExpr(node.Target, sc)
		r.applyExpr(node.Iter, sc)
		r.applyBody(node.Body, sc)
	case *m.Try:
		r.applyBody(node.Body, sc)

		for _, handler := range node.Handlers {
			if handler.Type != nil {
				r.applyExpr(handler.Type, sc)
			}

			if handler.Name != "" {
				handler.Name = r.rename(sc, handler.Name)
			}

			r.applyBody(handler.Body, sc)
		}

		r.applyBody(node.Else, sc)
		r.applyBody(node.Final, sc)
	case *m.Import:
		for i := range node.Names {
			r.applyAlias(&node.Names[i], sc)
		}
	case *m.ImportFrom:
		for i := range node.Names {
			r.applyAlias(&node.Names[i], sc)
		}
	case *m.Delete:
		for _, target := range node.Targets {
			r.applyExpr(target, sc)
		}
	case *m.Global:
		for i, name := range node.Names {
			node.Names[i] = r.rename(sc, name)
		}
	case *m.Raise:
		if node.Exc != nil {
			r.applyExpr(node.Exc, sc)
		}
	}
}

// applyAlias renames the binding side of an import alias. The module path
// itself is external and stays verbatim, so a rename forces an asname.
func (r *renamer) applyAlias(alias *m.Alias, sc *scope) {
	bound := importBinding(*alias)

	obf, ok := sc.resolve(bound)
	if !ok {
		return
	}

	r.renamed++
	alias.AsName = obf
}

// renameParam renames a parameter through its own frame only; falling back
// through outer frames would capture unrelated bindings.
func (r *renamer) renameParam(sc *scope, name string) string {
	if obf, ok := sc.bindings[name]; ok {
		r.renamed++

		return obf
	}

	return name
}

// frameBindings recovers the collector's bindings for a qualified frame.
func (r *renamer) frameBindings(qualified string) map[string]string {
	prefix := qualified + "."
	out := make(map[string]string)

	for key, obf := range r.renames {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix && !hasDot(key[len(prefix):]) {
			out[key[len(prefix):]] = obf
		}
	}

	return out
}

func hasDot(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return true
		}
	}

	return false
}

func (r *renamer) applyExpr(expr m.Expr, sc *scope) {
	switch node := expr.(type) {
	case *m.Name:
		node.ID = r.rename(sc, node.ID)
	case *m.Attribute:
		r.applyExpr(node.Value, sc)
	case *m.Subscript:
		r.applyExpr(node.Value, sc)
		r.applyExpr(node.Index, sc)
	case *m.Starred:
		r.applyExpr(node.Value, sc)
	case *m.Call:
		r.applyExpr(node.Func, sc)

		for _, arg := range node.Args {
			r.applyExpr(arg, sc)
		}

		for _, kw := range node.Keywords {
			r.applyExpr(kw.Value, sc)
		}
	case *m.BinOp:
		r.applyExpr(node.Left, sc)
		r.applyExpr(node.Right, sc)
	case *m.UnaryOp:
		r.applyExpr(node.Operand, sc)
	case *m.BoolOp:
		for _, value := range node.Values {
			r.applyExpr(value, sc)
		}
	case *m.Compare:
		r.applyExpr(node.Left, sc)

		for _, comparator := range node.Comparators {
			r.applyExpr(comparator, sc)
		}
	case *m.IfExp:
		r.applyExpr(node.Test, sc)
		r.applyExpr(node.Body, sc)
		r.applyExpr(node.OrElse, sc)
	case *m.Lambda:
		// Lambda parameters are not collected; resolving through them would
		// rename unrelated outer bindings, so shadowed names are masked.
		masked := sc

		for _, param := range node.Params {
			if _, ok := sc.resolve(param); ok {
				if masked == sc {
					masked = &scope{name: sc.name, parent: sc, bindings: make(map[string]string), renamable: false}
				}

				masked.bindings[param] = param
			}
		}

		r.applyExpr(node.Body, masked)
	case *m.Tuple:
		for _, elt := range node.Elts {
			r.applyExpr(elt, sc)
		}
	case *m.List:
		for _, elt := range node.Elts {
			r.applyExpr(elt, sc)
		}
	case *m.Dict:
		for i := range node.Keys {
			r.applyExpr(node.Keys[i], sc)
			r.applyExpr(node.Values[i], sc)
		}
	}
}
