package pct

import (
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"text/template/parse"
	"unicode"
	"unicode/utf8"
)

// runtimeQualifier is the name generated code imports the runtime package as
const runtimeQualifier = "pctrt"

// sentinelPrefix marks placeholders for values that could not be captured
const sentinelPrefix = "UNKNOWN_"

var nodeInterface = reflect.TypeOf((*parse.Node)(nil)).Elem()

// ValueEncoder turns attribute values into reconstruction expressions.
// Nested nodes go back through the Visitor; plain values go through the
// Codec; everything else degrades to a pctrt.Unknown placeholder.
type ValueEncoder struct {
	visitor *Visitor
	codec   Codec
	logger  *slog.Logger
}

// Encode returns the expression rebuilding v. ok is false when the value
// produces nothing to write, such as an opaque node or a value whose type
// generated code cannot name.
func (e *ValueEncoder) Encode(v reflect.Value, depth int, unit *CompiledOutput) (expr string, ok bool) {
	if !v.IsValid() {
		return "nil", true
	}

	switch {
	case v.Kind() == reflect.Interface:
		if v.IsNil() {
			return "nil", true
		}
		return e.Encode(v.Elem(), depth, unit)

	case v.Type().Implements(nodeInterface):
		if v.Kind() == reflect.Ptr && v.IsNil() {
			return "nil", true
		}
		if expr, ok := e.visitor.Expr(v.Interface().(parse.Node), depth+1, unit); ok {
			return expr, true
		}
		return "nil", true

	case v.Kind() == reflect.Struct && reflect.PtrTo(v.Type()).Implements(nodeInterface):
		// Embedded node values such as the BranchNode inside an IfNode
		var p reflect.Value
		if v.CanAddr() {
			p = v.Addr()
		} else {
			p = reflect.New(v.Type())
			p.Elem().Set(v)
		}
		if expr, ok := e.visitor.Expr(p.Interface().(parse.Node), depth+1, unit); ok {
			return "*" + expr, true
		}
		return "", false

	case (v.Kind() == reflect.Slice || v.Kind() == reflect.Array) && isNodeType(v.Type().Elem()):
		return e.encodeNodes(v, depth, unit)
	}

	typeExpr, nameable := e.typeExpr(v.Type(), unit)
	if !nameable {
		unit.stats.Sentinels++
		e.logger.Warn("attribute type cannot be named in generated code",
			"template", unit.TemplateName(), "type", v.Type().String())
		return "", false
	}

	if encodable(v) {
		literal, err := e.codec.Encode(v.Interface())
		if err == nil {
			return fmt.Sprintf("%s.Decode[%s](%s)", runtimeQualifier, typeExpr, strconv.Quote(literal)), true
		}
		e.logger.Debug("codec rejected value", "type", typeExpr, "error", err)
	}

	unit.stats.Sentinels++
	return fmt.Sprintf("%s.Unknown[%s](%s)", runtimeQualifier, typeExpr, strconv.Quote(sentinelPrefix+repr(v))), true
}

// encodeNodes writes a typed slice literal of node expressions
func (e *ValueEncoder) encodeNodes(v reflect.Value, depth int, unit *CompiledOutput) (string, bool) {
	typeExpr, nameable := e.typeExpr(v.Type(), unit)
	if !nameable {
		return "", false
	}
	if v.Kind() == reflect.Slice && v.IsNil() {
		return "nil", true
	}

	items := make([]string, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		item := v.Index(i)
		if item.Kind() == reflect.Interface {
			item = item.Elem()
		}
		if !item.IsValid() || (item.Kind() == reflect.Ptr && item.IsNil()) {
			items = append(items, "nil")
			continue
		}
		if expr, ok := e.visitor.Expr(item.Interface().(parse.Node), depth+1, unit); ok {
			items = append(items, expr)
		}
	}
	return typeExpr + "{" + strings.Join(items, ", ") + "}", true
}

// typeExpr returns how generated code spells t, registering the imports the
// spelling needs. It reports false for types generated code cannot name.
func (e *ValueEncoder) typeExpr(t reflect.Type, unit *CompiledOutput) (string, bool) {
	if !nameable(t) {
		return "", false
	}
	registerTypeImports(t, unit.registry)
	return t.String(), true
}

// nameable reports whether code outside t's package can spell t
func nameable(t reflect.Type) bool {
	if t.Name() != "" && t.PkgPath() != "" {
		r, _ := utf8.DecodeRuneInString(t.Name())
		return unicode.IsUpper(r) && t.PkgPath() != "main"
	}

	switch t.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Array, reflect.Chan:
		return nameable(t.Elem())
	case reflect.Map:
		return nameable(t.Key()) && nameable(t.Elem())
	case reflect.Func:
		for i := 0; i < t.NumIn(); i++ {
			if !nameable(t.In(i)) {
				return false
			}
		}
		for i := 0; i < t.NumOut(); i++ {
			if !nameable(t.Out(i)) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if f := t.Field(i); !f.IsExported() || !nameable(f.Type) {
				return false
			}
		}
		return true
	case reflect.Interface:
		return t.NumMethod() == 0
	}
	return true
}

// registerTypeImports adds the package of every named type inside t
func registerTypeImports(t reflect.Type, r *Registry) {
	if t.Name() != "" {
		r.AddImport(t.PkgPath())
		return
	}

	switch t.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Array, reflect.Chan:
		registerTypeImports(t.Elem(), r)
	case reflect.Map:
		registerTypeImports(t.Key(), r)
		registerTypeImports(t.Elem(), r)
	case reflect.Func:
		for i := 0; i < t.NumIn(); i++ {
			registerTypeImports(t.In(i), r)
		}
		for i := 0; i < t.NumOut(); i++ {
			registerTypeImports(t.Out(i), r)
		}
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			registerTypeImports(t.Field(i).Type, r)
		}
	}
}

// encodable reports whether v belongs to the closed set of values a Codec
// is asked to encode: booleans, integers, floats, strings, and slices,
// arrays and string-keyed maps of those. Nil pointers and interfaces count
// as null.
func encodable(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if !encodable(v.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return false
		}
		iter := v.MapRange()
		for iter.Next() {
			if !encodable(iter.Value()) {
				return false
			}
		}
		return true
	}
	return false
}

// isNodeType reports whether values of t are parse nodes
func isNodeType(t reflect.Type) bool {
	return t == nodeInterface || t.Implements(nodeInterface)
}

// repr prints v for a sentinel placeholder
func repr(v reflect.Value) string {
	if !v.CanInterface() {
		return v.Type().String()
	}
	return fmt.Sprintf("%v", v.Interface())
}
