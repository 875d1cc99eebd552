package runtime

import (
	"math"

	"github.com/npillmayer/srceval"
)

// Operands of binary operators are checked before evaluation. '+' and the
// relational operators accept two numbers or two strings, arithmetic
// operators accept numbers only. Equality accepts any values.

func checkBinary(op string, l, r Value) error {
	switch op {
	case "===", "!==":
		return nil
	case "+", "<", ">", "<=", ">=":
		lt := TypeName(l)
		if lt != "number" && lt != "string" {
			return operandError("left", "string or number", l)
		}
		if TypeName(r) != lt {
			return operandError("right", lt, r)
		}
	default:
		if _, ok := l.(float64); !ok {
			return operandError("left", "number", l)
		}
		if _, ok := r.(float64); !ok {
			return operandError("right", "number", r)
		}
	}
	return nil
}

func operandError(side, expected string, v Value) error {
	return srceval.RuntimeTypeError.New("Expected %s on %s hand side of operation, got %s.",
		expected, side, TypeName(v))
}

// BinaryOp applies a binary operator of the language to two values.
func BinaryOp(op string, l, r Value) (Value, error) {
	if err := checkBinary(op, l, r); err != nil {
		return nil, err
	}
	switch op {
	case "===":
		return Equal(l, r), nil
	case "!==":
		return !Equal(l, r), nil
	}
	if ls, ok := l.(string); ok {
		rs := r.(string)
		switch op {
		case "+":
			return ls + rs, nil
		case "<":
			return ls < rs, nil
		case ">":
			return ls > rs, nil
		case "<=":
			return ls <= rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}
	x, y := l.(float64), r.(float64)
	switch op {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "/":
		return x / y, nil
	case "%":
		return math.Mod(x, y), nil
	case "<":
		return x < y, nil
	case ">":
		return x > y, nil
	case "<=":
		return x <= y, nil
	case ">=":
		return x >= y, nil
	}
	return nil, srceval.RuntimeTypeError.New("unknown operator %s", op)
}

// UnaryOp applies '!' or unary '-' to a value.
func UnaryOp(op string, v Value) (Value, error) {
	switch op {
	case "!":
		b, ok := v.(bool)
		if !ok {
			return nil, srceval.RuntimeTypeError.New("Expected boolean, got %s.", TypeName(v))
		}
		return !b, nil
	case "-":
		f, ok := v.(float64)
		if !ok {
			return nil, srceval.RuntimeTypeError.New("Expected number, got %s.", TypeName(v))
		}
		return -f, nil
	}
	return nil, srceval.RuntimeTypeError.New("unknown operator %s", op)
}
