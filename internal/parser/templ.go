package parser

import (
	"errors"
	"go/ast"
	goparser "go/parser"
	"go/scanner"
	"go/token"
	"strconv"

	"github.com/a-h/parse"
	templparser "github.com/a-h/templ/parser/v2"
	"github.com/a-h/templ/parser/v2/visitor"
)

// TemplParser parses .templ files. Every Go expression embedded in the
// template is parsed with go/parser and converted to the shared node tree.
type TemplParser struct{}

// NewTemplParser creates a templ parser.
func NewTemplParser() *TemplParser {
	return &TemplParser{}
}

// Parse implements Parser.
func (p *TemplParser) Parse(source []byte, name string) (*Node, error) {
	tf, err := templparser.ParseString(string(source))
	if err != nil {
		return nil, templSyntaxError(err, name)
	}

	root := &Node{Kind: KindGeneric, Line: 1}
	add := func(e templparser.Expression, statements bool) error {
		n, err := convertGoSource(e, statements, name)
		if err != nil {
			return err
		}
		root.Children = append(root.Children, n)

		return nil
	}

	v := visitor.New()
	v.StringExpression = func(n *templparser.StringExpression) error {
		return add(n.Expression, false)
	}
	v.ExpressionAttribute = func(n *templparser.ExpressionAttribute) error {
		return add(n.Expression, false)
	}
	v.BoolExpressionAttribute = func(n *templparser.BoolExpressionAttribute) error {
		return add(n.Expression, false)
	}
	v.SpreadAttributes = func(n *templparser.SpreadAttributes) error {
		return add(n.Expression, false)
	}
	v.GoCode = func(n *templparser.GoCode) error {
		return add(n.Expression, true)
	}
	v.CallTemplateExpression = func(n *templparser.CallTemplateExpression) error {
		return add(n.Expression, false)
	}
	v.TemplElementExpression = func(n *templparser.TemplElementExpression) error {
		if err := add(n.Expression, false); err != nil {
			return err
		}
		for _, child := range n.Children {
			if err := child.Visit(v); err != nil {
				return err
			}
		}

		return nil
	}
	v.ScriptElement = func(n *templparser.ScriptElement) error {
		for _, attr := range n.Attributes {
			if err := attr.Visit(v); err != nil {
				return err
			}
		}
		for _, c := range n.Contents {
			if c.GoCode == nil {
				continue
			}
			if err := add(c.GoCode.Expression, false); err != nil {
				return err
			}
		}

		return nil
	}

	if err := tf.Visit(v); err != nil {
		return nil, err
	}

	return root, nil
}

func templSyntaxError(err error, name string) *SyntaxError {
	var pe parse.ParseError
	if errors.As(err, &pe) {
		return &SyntaxError{Message: pe.Msg, Line: pe.Pos.Line + 1, Source: name}
	}

	return &SyntaxError{Message: err.Error(), Source: name}
}

// wrapperLines is the number of lines prepended when Go statements are
// wrapped in a function body for parsing.
const wrapperLines = 2

func convertGoSource(e templparser.Expression, statements bool, name string) (*Node, error) {
	offset := int(e.Range.From.Line)
	fset := token.NewFileSet()

	if !statements {
		expr, err := goparser.ParseExprFrom(fset, name, e.Value, 0)
		if err == nil {
			c := goConverter{fset: fset, offset: offset}

			return c.convert(expr), nil
		}
	}

	src := "package p\nfunc _() {\n" + e.Value + "\n}\n"
	file, err := goparser.ParseFile(fset, name, src, goparser.SkipObjectResolution)
	if err != nil {
		se := &SyntaxError{Message: err.Error(), Line: offset + 1, Source: name}
		var list scanner.ErrorList
		if errors.As(err, &list) && len(list) > 0 {
			se.Message = list[0].Msg
			se.Line = list[0].Pos.Line - wrapperLines + offset
		}

		return nil, se
	}

	c := goConverter{fset: fset, offset: offset - wrapperLines}
	fn, ok := file.Decls[0].(*ast.FuncDecl)
	if !ok || fn.Body == nil {
		return &Node{Kind: KindGeneric, Line: offset + 1}, nil
	}

	return c.convert(fn.Body), nil
}

type goConverter struct {
	fset   *token.FileSet
	offset int
}

func (c goConverter) line(pos token.Pos) int {
	if !pos.IsValid() {
		return 0
	}

	return c.fset.Position(pos).Line + c.offset
}

func (c goConverter) convert(n ast.Node) *Node {
	switch x := n.(type) {
	case *ast.CallExpr:
		if ident, ok := x.Fun.(*ast.Ident); ok {
			call := &Node{Kind: KindFunctionCall, Name: ident.Name, Line: c.line(x.Pos())}
			for _, arg := range x.Args {
				call.Args = append(call.Args, c.convert(arg))
			}

			return call
		}
	case *ast.BasicLit:
		lit := &Node{Kind: KindLiteral, Value: x.Value, Line: c.line(x.Pos())}
		if x.Kind == token.STRING {
			if s, err := strconv.Unquote(x.Value); err == nil {
				lit.Value = s
			}
		}

		return lit
	}

	g := &Node{Kind: KindGeneric, Line: c.line(n.Pos())}
	ast.Inspect(n, func(child ast.Node) bool {
		if child == nil {
			return false
		}
		if child == n {
			return true
		}
		g.Children = append(g.Children, c.convert(child))

		return false
	})

	return g
}
