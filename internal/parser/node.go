// Package parser turns template sources into a small tagged node tree that
// the asset extractor can walk without knowing the template language.
package parser

// Kind tags the variant held by a Node.
type Kind int

const (
	// KindGeneric is any node that is neither a call nor a literal.
	KindGeneric Kind = iota
	// KindFunctionCall is a call of a named function.
	KindFunctionCall
	// KindLiteral is a constant value written in the template source.
	KindLiteral
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindFunctionCall:
		return "call"
	case KindLiteral:
		return "literal"
	default:
		return "unknown"
	}
}

// Node is one element of a parsed template.
//
// Name is set for KindFunctionCall, Value for KindLiteral. Args holds the
// positional arguments of a call; Children holds the nested nodes of a
// generic node. Line is 1-based, 0 when unknown.
type Node struct {
	Kind     Kind
	Name     string
	Value    string
	Line     int
	Args     []*Node
	Children []*Node
}

// Nodes returns the uniform child list: the arguments of a call, the
// children of anything else.
func (n *Node) Nodes() []*Node {
	if n.Kind == KindFunctionCall {
		return n.Args
	}

	return n.Children
}

// IsCall reports whether n calls the function called name.
func (n *Node) IsCall(name string) bool {
	return n != nil && n.Kind == KindFunctionCall && n.Name == name
}

// IsLiteral reports whether n is a literal constant.
func (n *Node) IsLiteral() bool {
	return n != nil && n.Kind == KindLiteral
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the children of the current node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, child := range n.Nodes() {
		Walk(child, fn)
	}
}
