package runtime

import (
	"strings"
	"testing"

	"github.com/npillmayer/srceval"
)

func TestBinaryOp(t *testing.T) {
	arr := NewArray(1.0)
	cases := []struct {
		op     string
		l, r   Value
		result Value
	}{
		{"+", 1.0, 2.0, 3.0},
		{"+", "ab", "cd", "abcd"},
		{"-", 1.0, 3.0, -2.0},
		{"*", 4.0, 2.5, 10.0},
		{"/", 1.0, 4.0, 0.25},
		{"%", 7.0, 3.0, 1.0},
		{"%", -7.0, 3.0, -1.0},
		{"<", 1.0, 2.0, true},
		{">=", "b", "a", true},
		{"<=", "b", "a", false},
		{"===", arr, arr, true},
		{"===", arr, NewArray(1.0), false},
		{"===", "x", "x", true},
		{"!==", 1.0, "1", true},
		{"===", Null, Null, true},
	}
	for _, c := range cases {
		v, err := BinaryOp(c.op, c.l, c.r)
		if err != nil {
			t.Errorf("%v %s %v: unexpected error %v", c.l, c.op, c.r, err)
			continue
		}
		if v != c.result {
			t.Errorf("%v %s %v: expected %v, got %v", c.l, c.op, c.r, c.result, v)
		}
	}
}

func TestBinaryOpTypeErrors(t *testing.T) {
	cases := []struct {
		op   string
		l, r Value
		msg  string
	}{
		{"+", 1.0, "a", "Expected number on right hand side of operation, got string."},
		{"+", true, 1.0, "Expected string or number on left hand side of operation, got boolean."},
		{"*", "a", 2.0, "Expected number on left hand side of operation, got string."},
		{"<", Undefined, 1.0, "Expected string or number on left hand side of operation, got undefined."},
	}
	for _, c := range cases {
		_, err := BinaryOp(c.op, c.l, c.r)
		if !srceval.IsOfType(err, srceval.RuntimeTypeError) {
			t.Errorf("%v %s %v: expected type error, got %v", c.l, c.op, c.r, err)
			continue
		}
		if !strings.Contains(err.Error(), c.msg) {
			t.Errorf("%v %s %v: expected message %q, got %q", c.l, c.op, c.r, c.msg, err.Error())
		}
	}
}

func TestUnaryOp(t *testing.T) {
	if v, err := UnaryOp("!", false); err != nil || v != true {
		t.Errorf("!false: expected true, got %v (%v)", v, err)
	}
	if v, err := UnaryOp("-", 2.0); err != nil || v != -2.0 {
		t.Errorf("-2: expected -2, got %v (%v)", v, err)
	}
	if _, err := UnaryOp("!", 1.0); !srceval.IsOfType(err, srceval.RuntimeTypeError) {
		t.Errorf("!1: expected type error, got %v", err)
	}
	if _, err := UnaryOp("-", "a"); !srceval.IsOfType(err, srceval.RuntimeTypeError) {
		t.Errorf("-'a': expected type error, got %v", err)
	}
}
