package model

// MethodFamily groups dynamic indirection strategies by the site kind they
// rewrite.
type MethodFamily string

// Available MethodFamily values.
const (
	FamilyAttr    MethodFamily = "attr"
	FamilySetAttr MethodFamily = "setattr"
	FamilyCall    MethodFamily = "call"
	FamilyBuiltin MethodFamily = "builtin"
	FamilyImport  MethodFamily = "import"
)

// MethodFamilies lists every family in canonical order.
var MethodFamilies = []MethodFamily{FamilyAttr, FamilySetAttr, FamilyCall, FamilyBuiltin, FamilyImport}

// DynamicMethod identifies one indirection strategy inside a family.
type DynamicMethod string

// Dynamic indirection strategies across all families.
const (
	MethodGetattr           DynamicMethod = "getattr"
	MethodBuiltinsGetattr   DynamicMethod = "builtins_getattr"
	MethodOperatorAttrGet   DynamicMethod = "operator_attrgetter"
	MethodLambdaGetattr     DynamicMethod = "lambda_getattr"
	MethodGlobalsGetattr    DynamicMethod = "globals_getattr"
	MethodLocalsGetattr     DynamicMethod = "locals_getattr"
	MethodSetattr           DynamicMethod = "setattr"
	MethodDelattr           DynamicMethod = "delattr"
	MethodBuiltinsSetattr   DynamicMethod = "builtins_setattr"
	MethodBuiltinsDelattr   DynamicMethod = "builtins_delattr"
	MethodLambdaSetattr     DynamicMethod = "lambda_setattr"
	MethodLambdaDelattr     DynamicMethod = "lambda_delattr"
	MethodHelperWrap        DynamicMethod = "helper_wrap"
	MethodLambdaWrap        DynamicMethod = "lambda_wrap"
	MethodEvalCall          DynamicMethod = "builtins_eval_call"
	MethodBuiltinAlias      DynamicMethod = "alias"
	MethodGetattrAlias      DynamicMethod = "builtins_getattr_alias"
	MethodGlobalsLookup     DynamicMethod = "globals_lookup"
	MethodDunderImport      DynamicMethod = "dunder_import"
	MethodImportlibImport   DynamicMethod = "importlib_import"
	MethodNamespaceImport   DynamicMethod = "namespace_import"
)

// AvailableMethods enumerates every strategy per family. The pools are
// closed; config resolution rejects tokens outside them.
var AvailableMethods = map[MethodFamily][]DynamicMethod{
	FamilyAttr: {
		MethodGetattr,
		MethodBuiltinsGetattr,
		MethodOperatorAttrGet,
		MethodLambdaGetattr,
		MethodGlobalsGetattr,
		MethodLocalsGetattr,
	},
	FamilySetAttr: {
		MethodSetattr,
		MethodDelattr,
		MethodBuiltinsSetattr,
		MethodBuiltinsDelattr,
		MethodLambdaSetattr,
		MethodLambdaDelattr,
	},
	FamilyCall: {
		MethodHelperWrap,
		MethodLambdaWrap,
		MethodEvalCall,
	},
	FamilyBuiltin: {
		MethodBuiltinAlias,
		MethodGetattrAlias,
		MethodGlobalsLookup,
	},
	FamilyImport: {
		MethodDunderImport,
		MethodImportlibImport,
		MethodNamespaceImport,
	},
}

// RiskyMethods lists strategies that are never eligible without an explicit
// allow token, regardless of tier. The flag is structural: gating checks
// membership here, never naming conventions.
var RiskyMethods = map[MethodFamily]map[DynamicMethod]bool{
	FamilyCall: {MethodEvalCall: true},
}

// DynamicTier names a dynamic method pool preset.
type DynamicTier string

// Available DynamicTier values.
const (
	TierSafe   DynamicTier = "safe"
	TierMedium DynamicTier = "medium"
	TierHeavy  DynamicTier = "heavy"
)

// TierDefaults holds the default per-family pools for each tier. Risky
// strategies appear in the heavy tier's pool but are still stripped at
// resolution time unless explicitly allowed.
var TierDefaults = map[DynamicTier]map[MethodFamily][]DynamicMethod{
	TierSafe: {
		FamilyAttr:    {MethodGetattr, MethodBuiltinsGetattr, MethodOperatorAttrGet, MethodLambdaGetattr},
		FamilySetAttr: {MethodSetattr, MethodDelattr, MethodBuiltinsSetattr, MethodBuiltinsDelattr, MethodLambdaSetattr},
		FamilyCall:    {MethodHelperWrap, MethodLambdaWrap},
		FamilyBuiltin: {MethodBuiltinAlias, MethodGetattrAlias},
		FamilyImport:  {MethodDunderImport},
	},
	TierMedium: {
		FamilyAttr:    {MethodGetattr, MethodBuiltinsGetattr, MethodOperatorAttrGet, MethodLambdaGetattr, MethodGlobalsGetattr},
		FamilySetAttr: {MethodSetattr, MethodDelattr, MethodBuiltinsSetattr, MethodBuiltinsDelattr, MethodLambdaSetattr, MethodLambdaDelattr},
		FamilyCall:    {MethodHelperWrap, MethodLambdaWrap},
		FamilyBuiltin: {MethodBuiltinAlias, MethodGetattrAlias, MethodGlobalsLookup},
		FamilyImport:  {MethodDunderImport, MethodImportlibImport},
	},
	TierHeavy: {
		FamilyAttr:    AvailableMethods[FamilyAttr],
		FamilySetAttr: AvailableMethods[FamilySetAttr],
		FamilyCall:    AvailableMethods[FamilyCall],
		FamilyBuiltin: AvailableMethods[FamilyBuiltin],
		FamilyImport:  AvailableMethods[FamilyImport],
	},
}

// MethodInFamily reports whether method belongs to the family's pool.
func MethodInFamily(family MethodFamily, method DynamicMethod) bool {
	for _, candidate := range AvailableMethods[family] {
		if candidate == method {
			return true
		}
	}

	return false
}

// FamiliesOf returns the families whose pool contains method, in canonical
// order. Used to resolve unqualified allow/deny tokens.
func FamiliesOf(method DynamicMethod) []MethodFamily {
	var out []MethodFamily

	for _, family := range MethodFamilies {
		if MethodInFamily(family, method) {
			out = append(out, family)
		}
	}

	return out
}
