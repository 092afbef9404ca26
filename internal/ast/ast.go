// Package ast declares the syntax tree produced for Igor Pro procedure files.
//
// The node set is closed: every concrete node type lives in this file and
// Walk visits each of their child fields explicitly.
package ast

// Point is one source position. Line and Column are 1-based; Column counts
// runes. Offset is the 0-based byte offset into the source text.
type Point struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

// Location is the half-open span [Start, End) of a node.
type Location struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Contains reports whether p falls inside the location, end excluded.
func (l *Location) Contains(p Point) bool {
	if l == nil {
		return false
	}
	return !before(p, l.Start) && before(p, l.End)
}

// Before reports whether p sorts strictly before q by line and column.
func (p Point) Before(q Point) bool { return before(p, q) }

func before(a, b Point) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Column < b.Column
}

// Comment is one `//` line comment with the marker removed.
type Comment struct {
	Value string    `json:"value"`
	Loc   *Location `json:"loc,omitempty"`
}

// Problem is a recoverable issue the parser noticed without giving up.
type Problem struct {
	Message string    `json:"message"`
	Loc     *Location `json:"loc,omitempty"`
}

// Node is implemented by every syntax tree node.
type Node interface {
	// Pos returns the node's span, or nil when the parser synthesized it.
	Pos() *Location
	// Comments returns the comment lines directly above the node.
	Comments() []Comment
	node()
}

type base struct {
	Loc             *Location `json:"loc,omitempty"`
	LeadingComments []Comment `json:"leadingComments,omitempty"`
}

func (b *base) Pos() *Location      { return b.Loc }
func (b *base) Comments() []Comment { return b.LeadingComments }
func (b *base) node()               {}

// Program is the root of a parsed file.
type Program struct {
	base
	Body     []Node    `json:"body"`
	Problems []Problem `json:"problems"`
}

// Identifier is a bare name.
type Identifier struct {
	base
	Name string `json:"name"`
}

// Flag is an operation or declaration flag such as /N=10.
type Flag struct {
	base
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// RawExpression holds expression text the parser does not break down.
type RawExpression struct {
	base
	Text string `json:"text"`
}

// AssignmentExpression is `left op right`.
type AssignmentExpression struct {
	base
	Operator string `json:"operator"`
	Left     Node   `json:"left"`
	Right    Node   `json:"right"`
}

// CallExpression is `callee(arguments...)`.
type CallExpression struct {
	base
	Callee    *Identifier `json:"callee"`
	Arguments []Node      `json:"arguments"`
}

// DirectiveStatement is a compiler directive such as #pragma or #include.
type DirectiveStatement struct {
	base
	Directive string `json:"directive"`
	Value     string `json:"value,omitempty"`
}

// ConstantDeclaration is Constant or StrConstant.
type ConstantDeclaration struct {
	base
	ID       *Identifier `json:"id"`
	Kind     string      `json:"kind"`
	Override bool        `json:"override"`
	Static   bool        `json:"static"`
	Value    string      `json:"value"`
}

// MenuDeclaration is a Menu ... End block.
type MenuDeclaration struct {
	base
	ID   *Identifier `json:"id"`
	Body []Node      `json:"body"`
}

// SubmenuDeclaration is a Submenu ... End block nested in a menu.
type SubmenuDeclaration struct {
	base
	ID   *Identifier `json:"id"`
	Body []Node      `json:"body"`
}

// MenuItemStatement is one line of a menu body.
type MenuItemStatement struct {
	base
	Text string `json:"text"`
}

// PictureDeclaration is a Picture ... End block. The ASCII85 payload is dropped.
type PictureDeclaration struct {
	base
	ID     *Identifier `json:"id"`
	Static bool        `json:"static"`
}

// StructureDeclaration is a Structure ... EndStructure block.
type StructureDeclaration struct {
	base
	ID     *Identifier `json:"id"`
	Static bool        `json:"static"`
	Body   []Node      `json:"body"`
}

// StructureMemberDeclaration is one member line of a structure.
type StructureMemberDeclaration struct {
	base
	Kind         string                       `json:"kind"`
	Proto        string                       `json:"proto,omitempty"`
	Flags        []*Flag                      `json:"flags,omitempty"`
	Declarations []*StructureMemberDeclarator `json:"declarations"`
}

// StructureMemberDeclarator is one name within a member line.
type StructureMemberDeclarator struct {
	base
	ID   *Identifier `json:"id"`
	Size string      `json:"size,omitempty"`
}

// MacroDeclaration is a Macro, Proc or Window procedure.
type MacroDeclaration struct {
	base
	ID      *Identifier `json:"id"`
	Kind    string      `json:"kind"`
	Params  []Node      `json:"params"`
	Subtype string      `json:"subtype,omitempty"`
	Body    []Node      `json:"body"`
}

// FunctionDeclaration is a user function. Params and OptParams hold
// *Identifier or *VariableDeclaration nodes.
type FunctionDeclaration struct {
	base
	ID         *Identifier `json:"id"`
	Params     []Node      `json:"params"`
	OptParams  []Node      `json:"optParams,omitempty"`
	Flags      []*Flag     `json:"flags,omitempty"`
	Threadsafe bool        `json:"threadsafe"`
	Override   bool        `json:"override"`
	Static     bool        `json:"static"`
	Subtype    string      `json:"subtype,omitempty"`
	Body       []Node      `json:"body"`
}

// IfStatement is an if/elseif/else chain.
type IfStatement struct {
	base
	Cases []*IfCase `json:"cases"`
}

// IfCase is one branch. Test is empty for the else branch.
type IfCase struct {
	base
	Test       string `json:"test,omitempty"`
	Consequent []Node `json:"consequent"`
}

// SwitchStatement is switch or strswitch.
type SwitchStatement struct {
	base
	Kind         string        `json:"kind"`
	Discriminant string        `json:"discriminant"`
	Cases        []*SwitchCase `json:"cases"`
}

// SwitchCase is one case label. Test is empty for default.
type SwitchCase struct {
	base
	Test       string `json:"test,omitempty"`
	Consequent []Node `json:"consequent"`
}

// TryStatement is try/catch/endtry.
type TryStatement struct {
	base
	Block   []Node `json:"block"`
	Handler []Node `json:"handler,omitempty"`
}

// DoWhileStatement is do ... while(test).
type DoWhileStatement struct {
	base
	Body []Node `json:"body"`
	Test string `json:"test"`
}

// ForStatement is for(init; test; update).
type ForStatement struct {
	base
	Init   string `json:"init,omitempty"`
	Test   string `json:"test,omitempty"`
	Update string `json:"update,omitempty"`
	Body   []Node `json:"body"`
}

// ForInStatement is for(var : collection). Left is an *Identifier or a
// *VariableDeclaration.
type ForInStatement struct {
	base
	Left  Node   `json:"left"`
	Right string `json:"right"`
	Body  []Node `json:"body"`
}

// BreakStatement is break.
type BreakStatement struct{ base }

// ContinueStatement is continue.
type ContinueStatement struct{ base }

// ReturnStatement is return [argument].
type ReturnStatement struct {
	base
	Argument string `json:"argument,omitempty"`
}

// VariableDeclaration declares one or more local variables or references.
type VariableDeclaration struct {
	base
	Kind         string                `json:"kind"`
	Proto        string                `json:"proto,omitempty"`
	Flags        []*Flag               `json:"flags,omitempty"`
	Declarations []*VariableDeclarator `json:"declarations"`
}

// VariableDeclarator is one name in a declaration. PBR marks pass-by-reference
// parameters.
type VariableDeclarator struct {
	base
	ID   *Identifier `json:"id"`
	Init string      `json:"init,omitempty"`
	PBR  bool        `json:"pbr,omitempty"`
}

// OperationStatement invokes a built-in or external operation.
type OperationStatement struct {
	base
	Name  string  `json:"name"`
	Flags []*Flag `json:"flags,omitempty"`
	Args  []Node  `json:"args"`
}

// ExpressionStatement wraps an expression used as a statement.
type ExpressionStatement struct {
	base
	Expression Node `json:"expression"`
}

// BundledStatement groups statements written on one line with `;`.
type BundledStatement struct {
	base
	Body []Node `json:"body"`
}

// EmptyStatement is a lone `;`.
type EmptyStatement struct{ base }

// UnclassifiedStatement is a line the parser kept but did not understand.
type UnclassifiedStatement struct {
	base
	Text string `json:"text"`
}

// NewLocation builds a location from start and end points.
func NewLocation(start, end Point) *Location {
	return &Location{Start: start, End: end}
}

// SetPos sets a node's location. It is used by the parser.
func SetPos(n Node, loc *Location) {
	if b, ok := n.(interface{ setPos(*Location) }); ok {
		b.setPos(loc)
	}
}

// SetComments attaches leading comments. It is used by the parser.
func SetComments(n Node, comments []Comment) {
	if b, ok := n.(interface{ setComments([]Comment) }); ok {
		b.setComments(comments)
	}
}

func (b *base) setPos(loc *Location)           { b.Loc = loc }
func (b *base) setComments(comments []Comment) { b.LeadingComments = comments }
