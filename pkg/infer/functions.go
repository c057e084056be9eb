package infer

import (
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// functionType types a call from the common function table, falling back
// to the dialect's table.
func (e *Engine) functionType(f *core.FuncCall) (core.IntermediateType, error) {
	name := strings.ToLower(f.Name)
	args, err := e.types2(f.Args...)
	if err != nil {
		return core.IntermediateType{}, err
	}
	if t, ok := commonFunction(name, args); ok {
		return t, nil
	}
	if need, ok := minArgs[name]; ok && len(args) < need {
		return core.IntermediateType{}, newError(f.Pos(), ErrArgumentCount, f.Name, need)
	}
	if e.dialect != nil {
		if t, ok := e.dialect.FunctionType(name, args); ok {
			return t, nil
		}
	}
	return core.IntermediateType{}, newError(f.Pos(), ErrUnknownFunction, f.Name)
}

// minArgs lists the functions whose type depends on their first argument.
var minArgs = map[string]int{
	"round": 1, "sum": 1, "abs": 1, "likelihood": 1, "likely": 1, "unlikely": 1, "nullif": 1,
	"lower": 1, "ltrim": 1, "printf": 1, "replace": 1, "rtrim": 1, "substr": 1, "trim": 1,
	"upper": 1, "group_concat": 1, "json": 1, "json_remove": 1, "json_extract": 1,
	"json_insert": 1, "json_replace": 1, "json_set": 1, "json_array_length": 1, "json_quote": 1,
}

func anyNullable(args []core.IntermediateType) bool {
	for _, a := range args {
		if a.Nullable {
			return true
		}
	}
	return false
}

func commonFunction(name string, args []core.IntermediateType) (core.IntermediateType, bool) {
	if need, ok := minArgs[name]; ok && len(args) < need {
		return core.IntermediateType{}, false
	}
	text, integer, double, blob := core.NewType(core.TypeText), core.NewType(core.TypeInteger), core.NewType(core.TypeReal), core.NewType(core.TypeBlob)

	switch name {
	case "round":
		// round(x) rounds to an integer; round(x, digits) keeps a real.
		if len(args) == 1 {
			return integer.NullableIf(args[0].Nullable), true
		}
		return double.NullableIf(anyNullable(args)), true

	case "sum":
		if args[0].Storage() == core.TypeInteger && !args[0].Nullable {
			return integer, true
		}
		return double.AsNullable(), true

	case "lower", "ltrim", "printf", "replace", "rtrim", "substr", "trim", "upper", "group_concat":
		return text.NullableIf(args[0].Nullable), true

	case "date", "time", "datetime", "julianday", "strftime", "char", "hex", "quote", "soundex",
		"sqlite_compileoption_get", "sqlite_source_id", "sqlite_version", "typeof":
		return text, true

	case "changes", "last_insert_rowid", "random", "sqlite_compileoption_used", "total_changes", "count":
		return integer, true

	case "instr", "length", "unicode":
		return integer.NullableIf(anyNullable(args)), true

	case "randomblob", "zeroblob":
		return blob, true

	case "avg", "total", "bm25":
		return double, true

	case "abs", "likelihood", "likely", "unlikely":
		return args[0], true

	case "coalesce", "ifnull":
		return core.EncapsulatingType(args, core.TypeInteger, core.TypeReal, core.TypeText, core.TypeBlob), true

	case "nullif":
		return args[0].AsNullable(), true

	case "max":
		return core.EncapsulatingType(args, core.TypeInteger, core.TypeReal, core.TypeText, core.TypeBlob).AsNullable(), true

	case "min":
		return core.EncapsulatingType(args, core.TypeBlob, core.TypeText, core.TypeInteger, core.TypeReal).AsNullable(), true

	// json1
	case "json", "json_remove", "json_extract", "json_insert", "json_replace", "json_set":
		return text.NullableIf(args[0].Nullable), true
	case "json_array", "json_object", "json_group_array", "json_group_object":
		return text, true
	case "json_array_length":
		return integer.NullableIf(args[0].Nullable), true
	case "json_patch":
		return text.NullableIf(anyNullable(args)), true
	case "json_type":
		return text.AsNullable(), true
	case "json_valid":
		return core.NewType(core.TypeBoolean), true
	case "json_quote":
		return args[0].AsNonNullable(), true

	// fts5
	case "highlight", "snippet":
		return text.AsNullable(), true
	}
	return core.IntermediateType{}, false
}
