package pctrt

import (
	"strings"
	"text/template/parse"
)

// Conditional returns the stand-in for an {{if}} whose branches were not
// precompiled. The node is a well-formed IfNode with an empty pipeline; its
// body holds one comment per condition so the diagnostics survive:
//
//	{{if }}{{/* condition: *parse.PipeNode, *parse.ListNode */}}{{end}}
func Conditional(conditions ...string) *parse.IfNode {
	body := &parse.ListNode{NodeType: parse.NodeList}
	for _, c := range conditions {
		c = strings.ReplaceAll(c, "*/", "* /")
		body.Nodes = append(body.Nodes, &parse.CommentNode{
			NodeType: parse.NodeComment,
			Text:     "/* " + c + " */",
		})
	}

	return &parse.IfNode{
		BranchNode: parse.BranchNode{
			NodeType: parse.NodeIf,
			Pipe:     &parse.PipeNode{NodeType: parse.NodePipe},
			List:     body,
		},
	}
}

// Conditions returns the diagnostics a Conditional stand-in was built with
func Conditions(n *parse.IfNode) []string {
	if n == nil || n.List == nil {
		return nil
	}

	var out []string
	for _, node := range n.List.Nodes {
		c, ok := node.(*parse.CommentNode)
		if !ok {
			continue
		}
		text := strings.TrimSuffix(strings.TrimPrefix(c.Text, "/* "), " */")
		out = append(out, text)
	}
	return out
}
