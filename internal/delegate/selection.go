package delegate

import (
	language "github.com/hanpama/gqlwrap/internal/language"
	schema "github.com/hanpama/gqlwrap/internal/schema"
)

// withAbstractTypenames copies sel and adds __typename to every selection
// set whose type is an interface or union, so that results can be resolved
// to a concrete type later.
func withAbstractTypenames(s *schema.Schema, typeName string, sel language.SelectionSet) language.SelectionSet {
	if sel == nil || s == nil {
		return sel
	}
	t := s.Types[typeName]
	out := make(language.SelectionSet, 0, len(sel)+1)
	hasTypename := false
	for _, selection := range sel {
		switch node := selection.(type) {
		case *language.Field:
			if node.Name == "__typename" && language.ResponseKey(node) == "__typename" {
				hasTypename = true
			}
			if len(node.SelectionSet) == 0 {
				out = append(out, node)
				continue
			}
			c := *node
			if def := t.FieldByName(node.Name); def != nil {
				c.SelectionSet = withAbstractTypenames(s, schema.GetNamedType(def.Type), node.SelectionSet)
			}
			out = append(out, &c)
		case *language.InlineFragment:
			c := *node
			cond := typeName
			if node.TypeCondition != "" {
				cond = node.TypeCondition
			}
			c.SelectionSet = withAbstractTypenames(s, cond, node.SelectionSet)
			out = append(out, &c)
		default:
			out = append(out, selection)
		}
	}
	if t.IsAbstract() && !hasTypename {
		out = append(language.SelectionSet{&language.Field{Name: "__typename"}}, out...)
	}
	return out
}

// usedFragments returns the fragment definitions reachable from sel, in
// document order.
func usedFragments(sel language.SelectionSet, all language.FragmentDefinitionList) language.FragmentDefinitionList {
	seen := map[string]bool{}
	var visit func(language.SelectionSet)
	visit = func(sel language.SelectionSet) {
		for _, selection := range sel {
			switch node := selection.(type) {
			case *language.Field:
				visit(node.SelectionSet)
			case *language.InlineFragment:
				visit(node.SelectionSet)
			case *language.FragmentSpread:
				if seen[node.Name] {
					continue
				}
				seen[node.Name] = true
				if fd := all.ForName(node.Name); fd != nil {
					visit(fd.SelectionSet)
				}
			}
		}
	}
	visit(sel)

	var out language.FragmentDefinitionList
	for _, fd := range all {
		if seen[fd.Name] {
			out = append(out, fd)
		}
	}
	return out
}

// collectVariables records the names of all variables referenced in sel,
// excluding the bodies of spread fragments.
func collectVariables(sel language.SelectionSet, into map[string]bool) {
	for _, selection := range sel {
		switch node := selection.(type) {
		case *language.Field:
			for _, arg := range node.Arguments {
				valueVariables(arg.Value, into)
			}
			directiveVariables(node.Directives, into)
			collectVariables(node.SelectionSet, into)
		case *language.InlineFragment:
			directiveVariables(node.Directives, into)
			collectVariables(node.SelectionSet, into)
		case *language.FragmentSpread:
			directiveVariables(node.Directives, into)
		}
	}
}

func directiveVariables(dirs language.DirectiveList, into map[string]bool) {
	for _, d := range dirs {
		for _, arg := range d.Arguments {
			valueVariables(arg.Value, into)
		}
	}
}

func valueVariables(v *language.Value, into map[string]bool) {
	if v == nil {
		return
	}
	if v.Kind == language.Variable {
		into[v.Raw] = true
		return
	}
	for _, child := range v.Children {
		valueVariables(child.Value, into)
	}
}
