package constrain

import (
	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
	"github.com/ajitpratap0/crosscat/pkg/primitive"
)

// Predicate evaluates a compiled event against an environment of variable
// values.
type Predicate func(env map[string]any) (bool, error)

// Compile checks the structure of event and returns its predicate.
//
// Evaluation is eager: every operand of every node is evaluated before the
// node combines them, so and/or never short-circuit. A variable missing
// from the environment fails with an ErrorTypeUnresolvedVariable error.
func Compile(event Node) (Predicate, error) {
	if err := check(event); err != nil {
		return nil, err
	}
	return func(env map[string]any) (bool, error) {
		v, err := eval(event, env)
		if err != nil {
			return false, err
		}
		b, ok := v.(bool)
		if !ok {
			return false, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation,
				"event evaluated to %v (%T), not a boolean", v, v)
		}
		return b, nil
	}, nil
}

// check validates operators and arities.
func check(n Node) error {
	switch x := n.(type) {
	case nil:
		return crosscaterrors.New(crosscaterrors.ErrorTypeValidation, "empty event")
	case Var:
		if x.Name == "" {
			return crosscaterrors.New(crosscaterrors.ErrorTypeValidation, "empty variable name")
		}
	case Lit:
	case Op:
		switch {
		case !x.Operator.Valid():
			return crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation, "unknown operator %q", x.Operator).
				WithDetail("event", x.String())
		case x.Operator == OpNot && len(x.Operands) != 1:
			return crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation,
				"not takes exactly one operand, got %d", len(x.Operands)).
				WithDetail("event", x.String())
		case x.Operator.comparison() && len(x.Operands) == 0:
			return crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation,
				"%s takes at least one operand", x.Operator).
				WithDetail("event", x.String())
		}
		for _, operand := range x.Operands {
			if err := check(operand); err != nil {
				return err
			}
		}
	default:
		return crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation, "unsupported node %T", n)
	}
	return nil
}

func eval(n Node, env map[string]any) (any, error) {
	switch x := n.(type) {
	case Lit:
		return x.Value, nil
	case Var:
		v, ok := env[x.Name]
		if !ok || v == nil {
			return nil, crosscaterrors.NewUnresolvedVariable(x.Name, env)
		}
		return v, nil
	}

	op := n.(Op)
	values := make([]any, len(op.Operands))
	var first error
	for i, operand := range op.Operands {
		v, err := eval(operand, env)
		if err != nil && first == nil {
			first = err
		}
		values[i] = v
	}
	if first != nil {
		return nil, first
	}

	switch op.Operator {
	case OpAnd, OpOr:
		result := op.Operator == OpAnd
		for _, v := range values {
			b, err := asBool(op.Operator, v)
			if err != nil {
				return nil, err
			}
			if op.Operator == OpAnd {
				result = result && b
			} else {
				result = result || b
			}
		}
		return result, nil
	case OpNot:
		b, err := asBool(op.Operator, values[0])
		if err != nil {
			return nil, err
		}
		return !b, nil
	default:
		result := true
		for i := 0; i+1 < len(values); i++ {
			ok, err := compare(op.Operator, values[i], values[i+1])
			if err != nil {
				return nil, err
			}
			result = result && ok
		}
		return result, nil
	}
}

func asBool(op Operator, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation,
			"operand of %s is %v (%T), not a boolean", op, v, v)
	}
	return b, nil
}

// compare applies a comparison to one pair of values. Numbers compare
// numerically, strings lexically; = falls back to plain equality between
// scalars.
func compare(op Operator, a, b any) (bool, error) {
	fa, aNum := primitive.ToFloat(a)
	fb, bNum := primitive.ToFloat(b)
	if aNum && bNum {
		switch op {
		case OpLess:
			return fa < fb, nil
		case OpLessEqual:
			return fa <= fb, nil
		case OpEqual:
			return fa == fb, nil
		case OpGreater:
			return fa > fb, nil
		default:
			return fa >= fb, nil
		}
	}

	if op == OpEqual {
		if !scalar(a) || !scalar(b) {
			return false, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation,
				"cannot compare %v (%T) and %v (%T)", a, a, b, b)
		}
		return a == b, nil
	}
	sa, aStr := a.(string)
	sb, bStr := b.(string)
	if !aStr || !bStr {
		return false, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation,
			"cannot order %v (%T) and %v (%T)", a, a, b, b)
	}
	switch op {
	case OpLess:
		return sa < sb, nil
	case OpLessEqual:
		return sa <= sb, nil
	case OpGreater:
		return sa > sb, nil
	default:
		return sa >= sb, nil
	}
}

// scalar reports whether v is a boolean, a string or a number.
func scalar(v any) bool {
	switch v.(type) {
	case bool, string:
		return true
	}
	_, ok := primitive.ToFloat(v)
	return ok
}
