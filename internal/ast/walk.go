package ast

import "fmt"

// A Visitor's Visit method is invoked for each node encountered by Walk.
// If the result visitor w is not nil, Walk visits each of the children of
// node with w, followed by a call of w.Visit(nil).
type Visitor interface {
	Visit(node Node) (w Visitor)
}

// Walk traverses a syntax tree in depth-first order.
func Walk(v Visitor, node Node) {
	if v = v.Visit(node); v == nil {
		return
	}

	switch n := node.(type) {
	case *Program:
		walkList(v, n.Body)
	case *Identifier, *Flag, *RawExpression, *DirectiveStatement, *MenuItemStatement,
		*PictureDeclaration, *BreakStatement, *ContinueStatement, *ReturnStatement,
		*EmptyStatement, *UnclassifiedStatement:
		// leaves
	case *AssignmentExpression:
		walkNode(v, n.Left)
		walkNode(v, n.Right)
	case *CallExpression:
		if n.Callee != nil {
			Walk(v, n.Callee)
		}
		walkList(v, n.Arguments)
	case *ConstantDeclaration:
		if n.ID != nil {
			Walk(v, n.ID)
		}
	case *MenuDeclaration:
		if n.ID != nil {
			Walk(v, n.ID)
		}
		walkList(v, n.Body)
	case *SubmenuDeclaration:
		if n.ID != nil {
			Walk(v, n.ID)
		}
		walkList(v, n.Body)
	case *StructureDeclaration:
		if n.ID != nil {
			Walk(v, n.ID)
		}
		walkList(v, n.Body)
	case *StructureMemberDeclaration:
		for _, f := range n.Flags {
			Walk(v, f)
		}
		for _, d := range n.Declarations {
			Walk(v, d)
		}
	case *StructureMemberDeclarator:
		if n.ID != nil {
			Walk(v, n.ID)
		}
	case *MacroDeclaration:
		if n.ID != nil {
			Walk(v, n.ID)
		}
		walkList(v, n.Params)
		walkList(v, n.Body)
	case *FunctionDeclaration:
		if n.ID != nil {
			Walk(v, n.ID)
		}
		for _, f := range n.Flags {
			Walk(v, f)
		}
		walkList(v, n.Params)
		walkList(v, n.OptParams)
		walkList(v, n.Body)
	case *IfStatement:
		for _, c := range n.Cases {
			Walk(v, c)
		}
	case *IfCase:
		walkList(v, n.Consequent)
	case *SwitchStatement:
		for _, c := range n.Cases {
			Walk(v, c)
		}
	case *SwitchCase:
		walkList(v, n.Consequent)
	case *TryStatement:
		walkList(v, n.Block)
		walkList(v, n.Handler)
	case *DoWhileStatement:
		walkList(v, n.Body)
	case *ForStatement:
		walkList(v, n.Body)
	case *ForInStatement:
		walkNode(v, n.Left)
		walkList(v, n.Body)
	case *VariableDeclaration:
		for _, f := range n.Flags {
			Walk(v, f)
		}
		for _, d := range n.Declarations {
			Walk(v, d)
		}
	case *VariableDeclarator:
		if n.ID != nil {
			Walk(v, n.ID)
		}
	case *OperationStatement:
		for _, f := range n.Flags {
			Walk(v, f)
		}
		walkList(v, n.Args)
	case *ExpressionStatement:
		walkNode(v, n.Expression)
	case *BundledStatement:
		walkList(v, n.Body)
	default:
		panic(fmt.Sprintf("ast.Walk: unexpected node type %T", n))
	}

	v.Visit(nil)
}

func walkNode(v Visitor, n Node) {
	if n != nil {
		Walk(v, n)
	}
}

func walkList(v Visitor, list []Node) {
	for _, n := range list {
		Walk(v, n)
	}
}

type inspector func(Node) bool

func (f inspector) Visit(node Node) Visitor {
	if f(node) {
		return f
	}
	return nil
}

// Inspect traverses a syntax tree in depth-first order, calling f for each
// node. If f returns true, Inspect descends into the node's children.
// After the children, f is called with nil.
func Inspect(node Node, f func(Node) bool) {
	Walk(inspector(f), node)
}
