package frontend

import "github.com/jward/tuindex/internal/ast"

// langSpec describes how one grammar's concrete syntax maps onto symbols.
type langSpec struct {
	// defs maps declaration node types to the kind of symbol they define.
	defs map[string]ast.Kind
	// needsBody lists declaration types that only define something when a
	// body field is present (C "struct foo;" is a use, not a definition).
	needsBody map[string]bool
	// calls maps call node types to the field holding the callee.
	calls map[string]string
	// methodCalls are call node types whose callee field always names a
	// member, like PHP's $obj->name().
	methodCalls map[string]string
	// members maps member-access node types to the field holding the member.
	members map[string]string

	callKind       ast.Kind // bare callee
	memberCallKind ast.Kind // callee reached through a member access
	typeRefKind    ast.Kind // type_identifier and friends
}

// identTypes are the leaf node types that may name a symbol.
var identTypes = map[string]bool{
	"identifier":          true,
	"type_identifier":     true,
	"field_identifier":    true,
	"property_identifier": true,
	"constant":            true,
	"name":                true,
}

// typeLeaves are identifier types that always refer to types.
var typeLeaves = map[string]bool{
	"type_identifier": true,
}

var defaultCalls = map[string]string{
	"call_expression": "function",
	"call":            "function",
}

var defaultMembers = map[string]string{
	"selector_expression": "field",
	"member_expression":   "property",
	"attribute":           "attribute",
	"field_expression":    "field",
	"scoped_identifier":   "name",
}

var jsDefs = map[string]ast.Kind{
	"function_declaration":           ast.KindFunction,
	"generator_function_declaration": ast.KindFunction,
	"class_declaration":              ast.KindClass,
	"method_definition":              ast.KindMethod,
}

var cDefs = map[string]ast.Kind{
	"function_definition": ast.KindFunction,
	"struct_specifier":    ast.KindType,
	"enum_specifier":      ast.KindEnum,
	"type_definition":     ast.KindType,
}

var specs = map[string]*langSpec{
	"go": {
		defs: map[string]ast.Kind{
			"function_declaration": ast.KindFunction,
			"method_declaration":   ast.KindMethod,
			"type_spec":            ast.KindType,
			"var_spec":             ast.KindVariable,
			"const_spec":           ast.KindConstant,
		},
		callKind:       ast.KindFunction,
		memberCallKind: ast.KindMethod,
		typeRefKind:    ast.KindType,
	},
	"python": {
		defs: map[string]ast.Kind{
			"function_definition": ast.KindFunction,
			"class_definition":    ast.KindClass,
		},
		callKind:       ast.KindFunction,
		memberCallKind: ast.KindFunction,
		typeRefKind:    ast.KindClass,
	},
	"javascript": {
		defs:           jsDefs,
		callKind:       ast.KindFunction,
		memberCallKind: ast.KindMethod,
		typeRefKind:    ast.KindClass,
	},
	"typescript": {
		defs: merge(jsDefs, map[string]ast.Kind{
			"interface_declaration":      ast.KindInterface,
			"type_alias_declaration":     ast.KindType,
			"enum_declaration":           ast.KindEnum,
			"abstract_class_declaration": ast.KindClass,
		}),
		callKind:       ast.KindFunction,
		memberCallKind: ast.KindMethod,
		typeRefKind:    ast.KindType,
	},
	"c": {
		defs:           cDefs,
		needsBody:      map[string]bool{"struct_specifier": true, "enum_specifier": true},
		callKind:       ast.KindFunction,
		memberCallKind: ast.KindFunction,
		typeRefKind:    ast.KindType,
	},
	"cpp": {
		defs: merge(cDefs, map[string]ast.Kind{
			"class_specifier":      ast.KindClass,
			"namespace_definition": ast.KindModule,
		}),
		needsBody: map[string]bool{
			"struct_specifier": true,
			"enum_specifier":   true,
			"class_specifier":  true,
		},
		callKind:       ast.KindFunction,
		memberCallKind: ast.KindFunction,
		typeRefKind:    ast.KindType,
	},
	"java": {
		defs: map[string]ast.Kind{
			"class_declaration":       ast.KindClass,
			"interface_declaration":   ast.KindInterface,
			"enum_declaration":        ast.KindEnum,
			"method_declaration":      ast.KindMethod,
			"constructor_declaration": ast.KindMethod,
		},
		calls:          map[string]string{"method_invocation": "name"},
		callKind:       ast.KindMethod,
		memberCallKind: ast.KindMethod,
		typeRefKind:    ast.KindClass,
	},
	"rust": {
		defs: map[string]ast.Kind{
			"function_item": ast.KindFunction,
			"struct_item":   ast.KindType,
			"enum_item":     ast.KindEnum,
			"trait_item":    ast.KindInterface,
			"mod_item":      ast.KindModule,
			"const_item":    ast.KindConstant,
			"static_item":   ast.KindVariable,
			"type_item":     ast.KindType,
		},
		callKind:       ast.KindFunction,
		memberCallKind: ast.KindFunction,
		typeRefKind:    ast.KindType,
	},
	"ruby": {
		defs: map[string]ast.Kind{
			"method":           ast.KindMethod,
			"singleton_method": ast.KindMethod,
			"class":            ast.KindClass,
			"module":           ast.KindModule,
		},
		calls:          map[string]string{"call": "method"},
		callKind:       ast.KindMethod,
		memberCallKind: ast.KindMethod,
		typeRefKind:    ast.KindClass,
	},
	"php": {
		defs: map[string]ast.Kind{
			"function_definition":   ast.KindFunction,
			"class_declaration":     ast.KindClass,
			"method_declaration":    ast.KindMethod,
			"interface_declaration": ast.KindInterface,
			"trait_declaration":     ast.KindType,
		},
		calls:          map[string]string{"function_call_expression": "function"},
		methodCalls:    map[string]string{"member_call_expression": "name"},
		callKind:       ast.KindFunction,
		memberCallKind: ast.KindMethod,
		typeRefKind:    ast.KindClass,
	},
}

func merge(a, b map[string]ast.Kind) map[string]ast.Kind {
	out := make(map[string]ast.Kind, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func specFor(lang string) (*langSpec, bool) {
	s, ok := specs[lang]
	return s, ok
}

func (s *langSpec) calleeField(nodeType string) (string, bool) {
	if f, ok := s.calls[nodeType]; ok {
		return f, true
	}
	f, ok := defaultCalls[nodeType]
	return f, ok
}

func (s *langSpec) memberField(nodeType string) (string, bool) {
	if f, ok := s.members[nodeType]; ok {
		return f, true
	}
	f, ok := defaultMembers[nodeType]
	return f, ok
}
