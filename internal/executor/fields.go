package executor

import (
	"slices"

	language "github.com/hanpama/gqlwrap/internal/language"
	schema "github.com/hanpama/gqlwrap/internal/schema"
)

// fieldGroup is every field node of a selection set sharing one response key.
type fieldGroup struct {
	ResponseName string
	Fields       []*language.Field
}

// collectFields flattens fragments and drops @skip/@include'd nodes, grouping
// the remaining fields by response key in first-seen order.
func (ex *execution) collectFields(objectType *schema.Type, set language.SelectionSet) []fieldGroup {
	var (
		groups  []fieldGroup
		index   = map[string]int{}
		visited = map[string]bool{}
	)
	var walk func(language.SelectionSet)
	walk = func(set language.SelectionSet) {
		for _, selection := range set {
			switch sel := selection.(type) {
			case *language.Field:
				if !ex.included(sel.Directives) {
					continue
				}
				key := language.ResponseKey(sel)
				if i, ok := index[key]; ok {
					groups[i].Fields = append(groups[i].Fields, sel)
					continue
				}
				index[key] = len(groups)
				groups = append(groups, fieldGroup{ResponseName: key, Fields: []*language.Field{sel}})

			case *language.InlineFragment:
				if ex.included(sel.Directives) && fragmentApplies(ex.schema, objectType, sel.TypeCondition) {
					walk(sel.SelectionSet)
				}

			case *language.FragmentSpread:
				if visited[sel.Name] || !ex.included(sel.Directives) {
					continue
				}
				visited[sel.Name] = true
				def := ex.document.Fragments.ForName(sel.Name)
				if def != nil && fragmentApplies(ex.schema, objectType, def.TypeCondition) && ex.included(def.Directives) {
					walk(def.SelectionSet)
				}
			}
		}
	}
	walk(set)
	return groups
}

// fragmentApplies reports whether a fragment with the given type condition
// applies to objectType. Interface and union conditions match their
// implementations and members.
func fragmentApplies(s *schema.Schema, objectType *schema.Type, condition string) bool {
	if condition == "" || condition == objectType.Name {
		return true
	}
	cond := s.Types[condition]
	if cond == nil {
		return false
	}
	switch cond.Kind {
	case schema.TypeKindInterface:
		return slices.Contains(objectType.Interfaces, condition) || slices.Contains(cond.PossibleTypes, objectType.Name)
	case schema.TypeKindUnion:
		return slices.Contains(cond.PossibleTypes, objectType.Name)
	}
	return false
}

// included evaluates @skip and @include.
func (ex *execution) included(directives language.DirectiveList) bool {
	if skip, ok := ex.directiveIf(directives, "skip"); ok && skip {
		return false
	}
	if include, ok := ex.directiveIf(directives, "include"); ok && !include {
		return false
	}
	return true
}

func (ex *execution) directiveIf(directives language.DirectiveList, name string) (bool, bool) {
	d := directives.ForName(name)
	if d == nil {
		return false, false
	}
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false, false
	}
	v, ok := valueFromASTWithVars(arg.Value, ex.variables).(bool)
	return v, ok
}
