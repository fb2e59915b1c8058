package schema

// Shared instances every NewSchema starts with. Render leaves them out.
var (
	stringType  = NewType("String", TypeKindScalar, "The `String` scalar type represents textual data, represented as UTF-8 character sequences.")
	intType     = NewType("Int", TypeKindScalar, "The `Int` scalar type represents non-fractional signed whole numeric values.")
	floatType   = NewType("Float", TypeKindScalar, "The `Float` scalar type represents signed double-precision fractional values.")
	booleanType = NewType("Boolean", TypeKindScalar, "The `Boolean` scalar type represents `true` or `false`.")
	idType      = NewType("ID", TypeKindScalar, "The `ID` scalar type represents a unique identifier, often used to refetch an object or as a key for caching.")

	builtinTypes = []*Type{stringType, intType, floatType, booleanType, idType}

	includeDirective = executableDirective("include", "Directs the executor to include this field or fragment only when the `if` argument is true.", "Included when true.")
	skipDirective    = executableDirective("skip", "Directs the executor to skip this field or fragment when the `if` argument is true.", "Skipped when true.")

	deprecatedDef = NewDirective("deprecated", "Marks an element of a GraphQL schema as no longer supported.").
			AddLocation("FIELD_DEFINITION").
			AddLocation("ARGUMENT_DEFINITION").
			AddLocation("INPUT_FIELD_DEFINITION").
			AddLocation("ENUM_VALUE").
			AddArgument(NewInputValue("reason", "The reason the element is deprecated.", NamedType("String")).SetDefault("No longer supported"))

	builtinDirectives = []*Directive{includeDirective, skipDirective, deprecatedDef}
)

func executableDirective(name, description, ifDescription string) *Directive {
	return NewDirective(name, description).
		AddLocation("FIELD").
		AddLocation("FRAGMENT_SPREAD").
		AddLocation("INLINE_FRAGMENT").
		AddArgument(NewInputValue("if", ifDescription, NonNullType(NamedType("Boolean"))))
}

func builtinScalar(name string) *Type {
	for _, t := range builtinTypes {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// isBuiltin reports whether t is one of the shared builtin scalar instances.
func isBuiltin(t *Type) bool {
	for _, b := range builtinTypes {
		if t == b {
			return true
		}
	}
	return false
}

func isBuiltinDirective(d *Directive) bool {
	for _, b := range builtinDirectives {
		if d == b {
			return true
		}
	}
	return false
}
