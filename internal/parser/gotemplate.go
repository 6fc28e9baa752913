package parser

import (
	"sort"
	"strconv"
	"strings"
	"text/template/parse"
)

// builtinFuncs are the functions text/template and html/template define
// without a FuncMap.
var builtinFuncs = []string{
	"and", "call", "html", "index", "slice", "js", "len", "not", "or",
	"print", "printf", "println", "urlquery",
	"eq", "ge", "gt", "le", "lt", "ne",
}

// GoTemplateParser parses text/template and html/template sources.
type GoTemplateParser struct {
	left  string
	right string
	funcs map[string]any
}

// NewGoTemplateParser creates a parser using the given delimiters (empty
// means "{{" and "}}"). functions lists the template functions the
// application registers; any other function call is an unknown reference.
func NewGoTemplateParser(left, right string, functions ...string) *GoTemplateParser {
	funcs := make(map[string]any, len(builtinFuncs)+len(functions))
	for _, name := range builtinFuncs {
		funcs[name] = struct{}{}
	}
	for _, name := range functions {
		funcs[name] = struct{}{}
	}

	return &GoTemplateParser{left: left, right: right, funcs: funcs}
}

// Parse implements Parser.
func (p *GoTemplateParser) Parse(source []byte, name string) (*Node, error) {
	text := string(source)

	tree := parse.New(name)
	tree.Mode = parse.ParseComments
	treeSet := make(map[string]*parse.Tree)
	if _, err := tree.Parse(text, p.left, p.right, treeSet, p.funcs); err != nil {
		return nil, goTemplateSyntaxError(err, name)
	}

	c := &goTemplateConverter{text: text}
	root := &Node{Kind: KindGeneric, Line: 1}
	root.Children = append(root.Children, c.convert(tree.Root))

	names := make([]string, 0, len(treeSet))
	for n := range treeSet {
		if n != name {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	for _, n := range names {
		root.Children = append(root.Children, c.convert(treeSet[n].Root))
	}

	return root, nil
}

func goTemplateSyntaxError(err error, name string) *SyntaxError {
	msg := err.Error()
	se := &SyntaxError{Message: msg, Source: name}

	rest, ok := strings.CutPrefix(msg, "template: "+name+":")
	if ok {
		lineStr, tail, found := strings.Cut(rest, ":")
		if line, convErr := strconv.Atoi(lineStr); found && convErr == nil {
			se.Line = line
			se.Message = strings.TrimSpace(tail)
		}
	}
	se.Unknown = strings.HasPrefix(se.Message, "function ") && strings.HasSuffix(se.Message, " not defined")

	return se
}

type goTemplateConverter struct {
	text string
}

func (c *goTemplateConverter) line(pos parse.Pos) int {
	p := int(pos)
	if p > len(c.text) {
		p = len(c.text)
	}

	return strings.Count(c.text[:p], "\n") + 1
}

func (c *goTemplateConverter) generic(pos parse.Pos, children ...*Node) *Node {
	return &Node{Kind: KindGeneric, Line: c.line(pos), Children: children}
}

func (c *goTemplateConverter) list(l *parse.ListNode) *Node {
	if l == nil {
		return nil
	}
	n := c.generic(l.Pos)
	for _, child := range l.Nodes {
		n.Children = append(n.Children, c.convert(child))
	}

	return n
}

func (c *goTemplateConverter) pipe(p *parse.PipeNode) *Node {
	if p == nil {
		return nil
	}
	n := c.generic(p.Pos)
	for i, cmd := range p.Cmds {
		node := c.command(cmd)
		// A pipeline passes the previous stage's result as the final argument.
		if i > 0 && node.Kind == KindFunctionCall {
			node.Args = append(node.Args, c.piped(p.Cmds[i-1]))
		}
		n.Children = append(n.Children, node)
	}

	return n
}

// piped converts the stage feeding a pipeline command. Only a lone literal
// keeps its value; anything else is only known at execution time.
func (c *goTemplateConverter) piped(cmd *parse.CommandNode) *Node {
	if len(cmd.Args) == 1 {
		switch cmd.Args[0].(type) {
		case *parse.StringNode, *parse.NumberNode, *parse.BoolNode:
			return c.convert(cmd.Args[0])
		}
	}

	return c.generic(cmd.Pos)
}

func (c *goTemplateConverter) command(cmd *parse.CommandNode) *Node {
	if len(cmd.Args) > 0 {
		if ident, ok := cmd.Args[0].(*parse.IdentifierNode); ok {
			call := &Node{Kind: KindFunctionCall, Name: ident.Ident, Line: c.line(cmd.Pos)}
			for _, arg := range cmd.Args[1:] {
				call.Args = append(call.Args, c.convert(arg))
			}

			return call
		}
	}

	n := c.generic(cmd.Pos)
	for _, arg := range cmd.Args {
		n.Children = append(n.Children, c.convert(arg))
	}

	return n
}

func (c *goTemplateConverter) branch(b *parse.BranchNode) *Node {
	return compact(c.generic(b.Pos, c.pipe(b.Pipe), c.list(b.List), c.list(b.ElseList)))
}

func (c *goTemplateConverter) convert(node parse.Node) *Node {
	switch n := node.(type) {
	case *parse.ListNode:
		return c.list(n)
	case *parse.ActionNode:
		return compact(c.generic(n.Pos, c.pipe(n.Pipe)))
	case *parse.PipeNode:
		return c.pipe(n)
	case *parse.CommandNode:
		return c.command(n)
	case *parse.IfNode:
		return c.branch(&n.BranchNode)
	case *parse.RangeNode:
		return c.branch(&n.BranchNode)
	case *parse.WithNode:
		return c.branch(&n.BranchNode)
	case *parse.TemplateNode:
		return compact(c.generic(n.Pos, c.pipe(n.Pipe)))
	case *parse.ChainNode:
		return c.generic(n.Pos, c.convert(n.Node))
	case *parse.StringNode:
		return &Node{Kind: KindLiteral, Value: n.Text, Line: c.line(n.Pos)}
	case *parse.NumberNode:
		return &Node{Kind: KindLiteral, Value: n.Text, Line: c.line(n.Pos)}
	case *parse.BoolNode:
		return &Node{Kind: KindLiteral, Value: strconv.FormatBool(n.True), Line: c.line(n.Pos)}
	default:
		return c.generic(node.Position())
	}
}

// compact drops nil children left by optional parts such as a missing else.
func compact(n *Node) *Node {
	kept := n.Children[:0]
	for _, child := range n.Children {
		if child != nil {
			kept = append(kept, child)
		}
	}
	n.Children = kept

	return n
}
