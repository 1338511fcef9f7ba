package pct

import (
	"reflect"
	"text/template/parse"
)

// nodeFields lists, per node type, the fields a reconstruction captures, in
// the order they are written. Unexported parser state (the owning *Tree) is
// never captured. IfNode, RangeNode and WithNode carry everything in their
// embedded BranchNode.
var nodeFields = map[reflect.Type][]string{
	reflect.TypeOf(parse.ActionNode{}):     {"NodeType", "Pos", "Line", "Pipe"},
	reflect.TypeOf(parse.BoolNode{}):       {"NodeType", "Pos", "True"},
	reflect.TypeOf(parse.BranchNode{}):     {"NodeType", "Pos", "Line", "Pipe", "List", "ElseList"},
	reflect.TypeOf(parse.BreakNode{}):      {"NodeType", "Pos", "Line"},
	reflect.TypeOf(parse.ChainNode{}):      {"NodeType", "Pos", "Node", "Field"},
	reflect.TypeOf(parse.CommandNode{}):    {"NodeType", "Pos", "Args"},
	reflect.TypeOf(parse.CommentNode{}):    {"NodeType", "Pos", "Text"},
	reflect.TypeOf(parse.ContinueNode{}):   {"NodeType", "Pos", "Line"},
	reflect.TypeOf(parse.DotNode{}):        {"NodeType", "Pos"},
	reflect.TypeOf(parse.FieldNode{}):      {"NodeType", "Pos", "Ident"},
	reflect.TypeOf(parse.IdentifierNode{}): {"NodeType", "Pos", "Ident"},
	reflect.TypeOf(parse.IfNode{}):         {"BranchNode"},
	reflect.TypeOf(parse.ListNode{}):       {"NodeType", "Pos", "Nodes"},
	reflect.TypeOf(parse.NilNode{}):        {"NodeType", "Pos"},
	reflect.TypeOf(parse.NumberNode{}): {
		"NodeType", "Pos", "IsInt", "IsUint", "IsFloat", "IsComplex",
		"Int64", "Uint64", "Float64", "Complex128", "Text",
	},
	reflect.TypeOf(parse.PipeNode{}):     {"NodeType", "Pos", "Line", "IsAssign", "Decl", "Cmds"},
	reflect.TypeOf(parse.RangeNode{}):    {"BranchNode"},
	reflect.TypeOf(parse.StringNode{}):   {"NodeType", "Pos", "Quoted", "Text"},
	reflect.TypeOf(parse.TemplateNode{}): {"NodeType", "Pos", "Line", "Name", "Pipe"},
	reflect.TypeOf(parse.TextNode{}):     {"NodeType", "Pos", "Text"},
	reflect.TypeOf(parse.VariableNode{}): {"NodeType", "Pos", "Ident"},
	reflect.TypeOf(parse.WithNode{}):     {"BranchNode"},
}

// FieldsOf returns the captured fields of the struct type t. Types missing
// from the table (nodes from a newer parser, or custom nodes) fall back to
// their exported fields in declaration order.
func FieldsOf(t reflect.Type) []string {
	if fields, ok := nodeFields[t]; ok {
		return fields
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var fields []string
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); f.IsExported() {
			fields = append(fields, f.Name)
		}
	}
	return fields
}
