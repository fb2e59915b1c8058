package executor

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	language "github.com/hanpama/gqlwrap/internal/language"
	schema "github.com/hanpama/gqlwrap/internal/schema"
)

// coercer turns raw input (variables, literals) into values of schema input
// types. Input objects get their defaults, enums are checked by name and the
// builtin scalars are converted. Custom scalars pass through.
type coercer struct {
	schema *schema.Schema
}

func coerceVariableValues(s *schema.Schema, operation *language.OperationDefinition, raw map[string]any) (map[string]any, error) {
	c := coercer{schema: s}
	coerced := make(map[string]any, len(operation.VariableDefinitions))
	for _, def := range operation.VariableDefinitions {
		name := def.Variable
		val, ok := lookupVariable(raw, name)
		if !ok {
			switch {
			case def.DefaultValue != nil:
				val = astValueToGo(def.DefaultValue)
			case def.Type.NonNull:
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", name, def.Type.String())
			default:
				continue
			}
		}
		if val == nil && def.Type.NonNull {
			return nil, fmt.Errorf("variable $%s of type %s cannot be null", name, def.Type.String())
		}
		cv, err := c.coerce(val, schema.TypeRefFromAST(def.Type))
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s cannot be coerced: %w", name, def.Type.String(), err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

func coerceArgumentValues(fieldDef *schema.Field, arguments language.ArgumentList, variables map[string]any, ex *execution, path Path) map[string]any {
	c := coercer{schema: ex.schema}
	coerced := make(map[string]any, len(fieldDef.Arguments))
	for _, def := range fieldDef.Arguments {
		arg := arguments.ForName(def.Name)
		var (
			val     any
			present bool
		)
		if arg != nil {
			if arg.Value.Kind == language.Variable {
				val, present = lookupVariable(variables, arg.Value.Raw)
			} else {
				val, present = valueFromASTWithVars(arg.Value, variables), true
			}
		}
		if !present {
			switch {
			case def.DefaultValue != nil:
				coerced[def.Name] = def.DefaultValue
			case schema.IsNonNull(def.Type):
				ex.addError(fmt.Sprintf("argument '%s' of required type was not provided", def.Name), path)
			}
			continue
		}
		cv, err := c.coerce(val, def.Type)
		if err != nil {
			ex.addError(fmt.Sprintf("argument '%s' cannot be coerced: %v", def.Name, err), path)
			continue
		}
		coerced[def.Name] = cv
	}
	return coerced
}

func lookupVariable(vars map[string]any, name string) (any, bool) {
	if v, ok := vars[name]; ok {
		return v, true
	}
	v, ok := vars[strings.TrimPrefix(name, "$")]
	return v, ok
}

// valueFromASTWithVars converts a literal, substituting variables at any depth.
func valueFromASTWithVars(value *language.Value, vars map[string]any) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.Variable:
		v, _ := lookupVariable(vars, value.Raw)
		return v
	case language.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = valueFromASTWithVars(c.Value, vars)
		}
		return out
	case language.ObjectValue:
		m := make(map[string]any, len(value.Children))
		for _, f := range value.Children {
			m[f.Name] = valueFromASTWithVars(f.Value, vars)
		}
		return m
	default:
		return astValueToGo(value)
	}
}

func astValueToGo(value *language.Value) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.IntValue:
		if iv, err := strconv.Atoi(value.Raw); err == nil {
			return iv
		}
		fv, _ := strconv.ParseFloat(value.Raw, 64)
		return fv
	case language.FloatValue:
		fv, _ := strconv.ParseFloat(value.Raw, 64)
		return fv
	case language.StringValue, language.BlockValue, language.EnumValue:
		return value.Raw
	case language.BooleanValue:
		return value.Raw == "true"
	case language.ListValue, language.ObjectValue:
		return valueFromASTWithVars(value, nil)
	default:
		return nil
	}
}

func (c coercer) coerce(value any, t *schema.TypeRef) (any, error) {
	if schema.IsNonNull(t) {
		if value == nil {
			return nil, fmt.Errorf("cannot provide null for non-null type %s", t)
		}
		return c.coerce(value, t.OfType)
	}
	if value == nil {
		return nil, nil
	}
	if t.Kind == schema.TypeRefKindList {
		items, ok := value.([]any)
		if !ok {
			// A single value stands for a list of one.
			items = []any{value}
		}
		out := make([]any, len(items))
		for i, item := range items {
			cv, err := c.coerce(item, t.OfType)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = cv
		}
		return out, nil
	}

	switch t.Named {
	case "Int":
		return coerceInt(value)
	case "Float":
		return coerceFloat(value)
	case "String":
		if v, ok := value.(string); ok {
			return v, nil
		}
		return nil, fmt.Errorf("cannot coerce %v (%T) to String", value, value)
	case "Boolean":
		if v, ok := value.(bool); ok {
			return v, nil
		}
		return nil, fmt.Errorf("cannot coerce %v (%T) to Boolean", value, value)
	case "ID":
		return coerceID(value)
	}

	var def *schema.Type
	if c.schema != nil {
		def = c.schema.Types[t.Named]
	}
	switch {
	case def == nil:
		return value, nil
	case def.Kind == schema.TypeKindEnum:
		name, ok := value.(string)
		if !ok || !slices.ContainsFunc(def.EnumValues, func(v *schema.EnumValue) bool { return v.Name == name }) {
			return nil, fmt.Errorf("%v is not a value of enum %s", value, def.Name)
		}
		return name, nil
	case def.Kind == schema.TypeKindInputObject:
		return c.coerceInputObject(value, def)
	default:
		return value, nil
	}
}

func (c coercer) coerceInputObject(value any, def *schema.Type) (any, error) {
	in, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("cannot coerce %T to input object %s", value, def.Name)
	}
	for name := range in {
		if !slices.ContainsFunc(def.InputFields, func(f *schema.InputValue) bool { return f.Name == name }) {
			return nil, fmt.Errorf("field %s is not defined by input object %s", name, def.Name)
		}
	}
	out := make(map[string]any, len(def.InputFields))
	for _, f := range def.InputFields {
		v, ok := in[f.Name]
		if !ok {
			switch {
			case f.DefaultValue != nil:
				out[f.Name] = f.DefaultValue
			case schema.IsNonNull(f.Type):
				return nil, fmt.Errorf("field %s.%s of required type %s was not provided", def.Name, f.Name, f.Type)
			}
			continue
		}
		cv, err := c.coerce(v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
		}
		out[f.Name] = cv
	}
	if def.OneOf && len(out) != 1 {
		return nil, fmt.Errorf("exactly one field of %s must be set", def.Name)
	}
	return out, nil
}

func coerceInt(value any) (any, error) {
	var f float64
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		f = float64(v)
	case float32:
		f = float64(v)
	case float64:
		f = v
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %s to Int", v)
		}
		f = float64(i)
	default:
		return nil, fmt.Errorf("cannot coerce %v (%T) to Int", value, value)
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return nil, fmt.Errorf("cannot coerce %v to Int", value)
	}
	return int(f), nil
}

func coerceFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Float", value, value)
}

func coerceID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10), nil
		}
	case json.Number:
		return v.String(), nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to ID", value, value)
}
