package reference

import (
	_ "embed"
	"sync"
)

//go:embed builtins.yaml
var builtinsYAML []byte

// Pseudo resource ids for the built-in and external books.
const (
	BuiltinID   = "builtin"
	OperationID = "operation"
	ExtraID     = "extra"
	ExternalID  = "external"
	LocalID     = "local"
)

// BuiltinSet is the embedded reference data split into the three built-in
// books.
type BuiltinSet struct {
	Builtin   Book
	Operation Book
	Extra     Book
}

var builtinCategories = map[string][]Category{
	BuiltinID:   {Constant, Variable, Structure, Function, Keyword},
	OperationID: {Operation},
	ExtraID:     {Subtype, Pragma, Hook},
}

// BuiltinCategories returns the categories a built-in book id draws from.
func BuiltinCategories(id string) []Category {
	return builtinCategories[id]
}

var loadBuiltins = sync.OnceValues(func() (BuiltinSet, error) {
	bl, err := Decode(builtinsYAML)
	if err != nil {
		return BuiltinSet{}, err
	}
	return SplitBuiltins(bl), nil
})

// Builtins returns the embedded built-in books. The result is shared and must
// not be modified.
func Builtins() (BuiltinSet, error) {
	return loadBuiltins()
}

// SplitBuiltins flattens bl into the three built-in books.
func SplitBuiltins(bl BookLike) BuiltinSet {
	return BuiltinSet{
		Builtin:   bl.Flatten(builtinCategories[BuiltinID]...),
		Operation: bl.Flatten(builtinCategories[OperationID]...),
		Extra:     bl.Flatten(builtinCategories[ExtraID]...),
	}
}
