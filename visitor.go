package pct

import (
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"text/template/parse"
)

// NodeKind tags the node variants the visitor distinguishes
type NodeKind int

const (
	// KindPlain is any node not special-cased below
	KindPlain NodeKind = iota

	// KindList is a *parse.ListNode; serialising it fans out to its children
	KindList

	// KindText is a *parse.TextNode; it serialises to a string literal
	KindText

	// KindConditional is a *parse.IfNode
	KindConditional

	// KindOpaque is a node with nothing to render, such as a comment
	KindOpaque
)

func (k NodeKind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindList:
		return "list"
	case KindText:
		return "text"
	case KindConditional:
		return "conditional"
	case KindOpaque:
		return "opaque"
	}
	return "NodeKind(" + strconv.Itoa(int(k)) + ")"
}

// Classify returns the variant tag of node
func Classify(node parse.Node) NodeKind {
	switch node.(type) {
	case *parse.ListNode:
		return KindList
	case *parse.TextNode:
		return KindText
	case *parse.IfNode:
		return KindConditional
	case *parse.CommentNode:
		return KindOpaque
	}
	return KindPlain
}

// Handler serialises one node, appending what it emits to renderList
type Handler func(v *Visitor, node parse.Node, depth int, unit *CompiledOutput, renderList *[]string)

// DispatchTable maps each node kind to its handler
type DispatchTable map[NodeKind]Handler

// DefaultDispatchTable returns the handlers pct uses for each node kind
func DefaultDispatchTable() DispatchTable {
	return DispatchTable{
		KindPlain:       serialisePlain,
		KindList:        serialiseList,
		KindText:        serialiseText,
		KindConditional: serialiseConditional,
		KindOpaque:      serialiseOpaque,
	}
}

// Visitor walks a node tree and produces reconstruction expressions. It
// holds no per-unit state, so one Visitor may serve many units at once.
type Visitor struct {
	table   DispatchTable
	encoder *ValueEncoder
	logger  *slog.Logger
}

// NewVisitor creates a visitor dispatching through table. Kinds missing from
// table use the default handlers.
func NewVisitor(table DispatchTable, codec Codec, logger *slog.Logger) *Visitor {
	if codec == nil {
		codec = YAMLCodec{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	merged := DefaultDispatchTable()
	for kind, h := range table {
		if h != nil {
			merged[kind] = h
		}
	}

	v := &Visitor{
		table:  merged,
		logger: logger,
	}
	v.encoder = &ValueEncoder{visitor: v, codec: codec, logger: logger}
	return v
}

// Encoder returns the value encoder the visitor's handlers use
func (v *Visitor) Encoder() *ValueEncoder {
	return v.encoder
}

// Serialise dispatches node to the handler for its kind
func (v *Visitor) Serialise(node parse.Node, depth int, unit *CompiledOutput, renderList *[]string) {
	if isNilNode(node) {
		return
	}

	kind := Classify(node)
	v.logger.Debug(strings.Repeat("  ", depth)+"node",
		"template", unit.TemplateName(), "depth", depth, "kind", kind, "type", fmt.Sprintf("%T", node))
	unit.stats.Nodes++

	v.table[kind](v, node, depth, unit, renderList)
}

// Expr returns a single expression that rebuilds node as a parse.Node, for
// nodes nested inside another node's fields. Lists and text keep their node
// shape there, since a typed field cannot hold a bare string or a fan-out.
// ok is false when the node emits nothing.
func (v *Visitor) Expr(node parse.Node, depth int, unit *CompiledOutput) (expr string, ok bool) {
	if isNilNode(node) {
		return "", false
	}

	var items []string
	switch kind := Classify(node); kind {
	case KindList, KindText:
		unit.stats.Nodes++
		v.table[KindPlain](v, node, depth, unit, &items)
	default:
		v.Serialise(node, depth, unit, &items)
	}

	if len(items) == 0 {
		return "", false
	}
	return items[0], true
}

// serialiseList recurses into every child without emitting anything itself
func serialiseList(v *Visitor, node parse.Node, depth int, unit *CompiledOutput, renderList *[]string) {
	list := node.(*parse.ListNode)
	for _, child := range list.Nodes {
		v.Serialise(child, depth+1, unit, renderList)
	}
}

// serialisePlain registers the node type and emits a constructor call with
// every captured field
func serialisePlain(v *Visitor, node parse.Node, depth int, unit *CompiledOutput, renderList *[]string) {
	template := unit.registry.Register(node)

	rv := reflect.ValueOf(node)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}

	var args []string
	if rv.Kind() == reflect.Struct {
		for _, name := range FieldsOf(rv.Type()) {
			field := rv.FieldByName(name)
			if !field.IsValid() || field.IsZero() {
				continue
			}
			expr, ok := v.encoder.Encode(field, depth, unit)
			if !ok {
				continue
			}
			args = append(args, name+": "+expr)
		}
	}

	*renderList = append(*renderList, Fill(template, args))
}

// serialiseText registers the node type and emits the text verbatim as a
// Go string literal
func serialiseText(v *Visitor, node parse.Node, depth int, unit *CompiledOutput, renderList *[]string) {
	unit.registry.Register(node)
	text := node.(*parse.TextNode)
	*renderList = append(*renderList, strconv.Quote(string(text.Text)))
}

// serialiseConditional records only the types of each branch. The branches
// themselves are not reconstructed.
func serialiseConditional(v *Visitor, node parse.Node, depth int, unit *CompiledOutput, renderList *[]string) {
	template := unit.registry.RegisterConditional(node)

	var args []string
	for _, b := range branchesOf(node) {
		args = append(args, strconv.Quote(fmt.Sprintf("condition: %T, %T", b.condition, b.list)))
	}
	*renderList = append(*renderList, Fill(template, args))
}

// serialiseOpaque registers the node type and emits nothing
func serialiseOpaque(v *Visitor, node parse.Node, depth int, unit *CompiledOutput, renderList *[]string) {
	unit.registry.Register(node)
}

type branch struct {
	condition any
	list      *parse.ListNode
}

// branchesOf returns the (condition, list) pairs of a branching node. An
// else branch has a nil condition; "else if" chains stay nested inside it.
func branchesOf(node parse.Node) []branch {
	var b *parse.BranchNode
	switch n := node.(type) {
	case *parse.IfNode:
		b = &n.BranchNode
	case *parse.RangeNode:
		b = &n.BranchNode
	case *parse.WithNode:
		b = &n.BranchNode
	case *parse.BranchNode:
		b = n
	default:
		return nil
	}

	branches := []branch{{condition: b.Pipe, list: b.List}}
	if b.ElseList != nil {
		branches = append(branches, branch{condition: nil, list: b.ElseList})
	}
	return branches
}

// isNilNode reports whether node is nil or a typed nil pointer
func isNilNode(node parse.Node) bool {
	if node == nil {
		return true
	}
	rv := reflect.ValueOf(node)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}
