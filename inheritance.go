package pct

import (
	"sort"
	"text/template/parse"
)

// ExtendsFunc is the identifier of the inheritance marker, {{extends "base.html"}}
const ExtendsFunc = "extends"

// findExtends returns the first {{extends}} action in the tree, walking
// lists and control structures depth first
func findExtends(node parse.Node) *parse.ActionNode {
	if isNilNode(node) {
		return nil
	}

	switch n := node.(type) {
	case *parse.ListNode:
		for _, child := range n.Nodes {
			if found := findExtends(child); found != nil {
				return found
			}
		}
	case *parse.ActionNode:
		if isExtends(n) {
			return n
		}
	case *parse.IfNode:
		return findExtendsBranch(&n.BranchNode)
	case *parse.RangeNode:
		return findExtendsBranch(&n.BranchNode)
	case *parse.WithNode:
		return findExtendsBranch(&n.BranchNode)
	}
	return nil
}

func findExtendsBranch(b *parse.BranchNode) *parse.ActionNode {
	if found := findExtends(b.List); found != nil {
		return found
	}
	return findExtends(b.ElseList)
}

// isExtends reports whether any command of the action's pipeline calls the
// extends marker
func isExtends(action *parse.ActionNode) bool {
	if action.Pipe == nil {
		return false
	}
	for _, cmd := range action.Pipe.Cmds {
		if isExtendsCmd(cmd) {
			return true
		}
	}
	return false
}

func isExtendsCmd(cmd *parse.CommandNode) bool {
	if len(cmd.Args) == 0 {
		return false
	}
	ident, ok := cmd.Args[0].(*parse.IdentifierNode)
	return ok && ident.Ident == ExtendsFunc
}

// parentName returns the static parent named by an extends action. Anything
// other than a single string constant is ErrVariableParent, including a
// parent piped into the marker.
func parentName(action *parse.ActionNode) (string, error) {
	pipe := action.Pipe
	if len(pipe.Decl) > 0 || len(pipe.Cmds) != 1 || !isExtendsCmd(pipe.Cmds[0]) {
		return "", ErrVariableParent
	}

	args := pipe.Cmds[0].Args
	switch {
	case len(args) < 2:
		return "", ErrMissingParent
	case len(args) > 2:
		return "", ErrVariableParent
	}

	s, ok := args[1].(*parse.StringNode)
	if !ok {
		return "", ErrVariableParent
	}
	return s.Text, nil
}

// collectBlocks returns the trees declared in the template file with
// {{define}} or {{block}}, in source order. The main tree is not a block.
func collectBlocks(t *Template) []Block {
	var trees []*parse.Tree
	for name, tree := range t.Trees {
		if name == t.Name || tree == nil || tree.Root == nil {
			continue
		}
		trees = append(trees, tree)
	}

	sort.Slice(trees, func(i, j int) bool {
		if trees[i].Root.Pos != trees[j].Root.Pos {
			return trees[i].Root.Pos < trees[j].Root.Pos
		}
		return trees[i].Name < trees[j].Name
	})

	blocks := make([]Block, 0, len(trees))
	for _, tree := range trees {
		blocks = append(blocks, Block{Name: tree.Name, List: tree.Root})
	}
	return blocks
}
