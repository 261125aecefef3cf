package constrain

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/ajitpratap0/crosscat/pkg/primitive"
)

// Operator is the symbol of an operation node.
type Operator string

// Supported operators.
const (
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpAnd          Operator = "and"
	OpOr           Operator = "or"
	OpNot          Operator = "not"
)

// Operators lists every supported operator.
var Operators = []Operator{OpLess, OpLessEqual, OpEqual, OpGreater, OpGreaterEqual, OpAnd, OpOr, OpNot}

// Valid reports whether op is supported.
func (op Operator) Valid() bool { return slices.Contains(Operators, op) }

func (op Operator) comparison() bool {
	switch op {
	case OpLess, OpLessEqual, OpEqual, OpGreater, OpGreaterEqual:
		return true
	}
	return false
}

// Node is an immutable event expression: an Op, a Var or a Lit.
type Node interface {
	// String renders the node as an s-expression accepted by Parse.
	String() string
	node()
}

// Op applies an operator to its operands in order.
type Op struct {
	Operator Operator
	Operands []Node
}

// Var references a variable by name.
type Var struct {
	Name string
}

// Lit is a constant: a float64, bool or string.
type Lit struct {
	Value any
}

func (Op) node()  {}
func (Var) node() {}
func (Lit) node() {}

func (o Op) String() string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(string(o.Operator))
	for _, operand := range o.Operands {
		b.WriteByte(' ')
		b.WriteString(operand.String())
	}
	b.WriteByte(')')
	return b.String()
}

func (v Var) String() string { return v.Name }

func (l Lit) String() string {
	switch x := l.Value.(type) {
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		if f, ok := primitive.ToFloat(x); ok {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
		return strconv.Quote(fmt.Sprint(x))
	}
}

// Apply builds an operation node.
func Apply(op Operator, operands ...Node) Op {
	return Op{Operator: op, Operands: slices.Clone(operands)}
}

// And is Apply(OpAnd, operands...).
func And(operands ...Node) Op { return Apply(OpAnd, operands...) }

// Or is Apply(OpOr, operands...).
func Or(operands ...Node) Op { return Apply(OpOr, operands...) }

// Not is Apply(OpNot, operand).
func Not(operand Node) Op { return Apply(OpNot, operand) }

// Variables returns the sorted, de-duplicated names of every variable the
// event references.
func Variables(event Node) []string {
	seen := map[string]struct{}{}
	collect(event, seen)
	return slices.Sorted(maps.Keys(seen))
}

func collect(n Node, seen map[string]struct{}) {
	switch x := n.(type) {
	case Var:
		seen[x.Name] = struct{}{}
	case Op:
		for _, operand := range x.Operands {
			collect(operand, seen)
		}
	}
}
