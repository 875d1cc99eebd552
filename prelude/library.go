package prelude

import "strings"

// The list library of chapter 2, written in Source. All recursive
// functions are tail recursive where the result allows it.
const listLibrary = `
function is_list(xs) {
    return is_null(xs) || (is_pair(xs) && is_list(tail(xs)));
}
function equal(xs, ys) {
    return is_pair(xs)
        ? (is_pair(ys) && equal(head(xs), head(ys)) && equal(tail(xs), tail(ys)))
        : is_null(xs)
        ? is_null(ys)
        : is_number(xs) || is_string(xs) || is_boolean(xs) || is_undefined(xs)
        ? xs === ys
        : false;
}
function length(xs) {
    function len(ys, n) {
        return is_null(ys) ? n : len(tail(ys), n + 1);
    }
    return len(xs, 0);
}
function map(f, xs) {
    return is_null(xs) ? null : pair(f(head(xs)), map(f, tail(xs)));
}
function filter(pred, xs) {
    return is_null(xs)
        ? null
        : pred(head(xs))
        ? pair(head(xs), filter(pred, tail(xs)))
        : filter(pred, tail(xs));
}
function accumulate(f, initial, xs) {
    return is_null(xs) ? initial : f(head(xs), accumulate(f, initial, tail(xs)));
}
function append(xs, ys) {
    return is_null(xs) ? ys : pair(head(xs), append(tail(xs), ys));
}
function reverse(xs) {
    function rev(original, reversed) {
        return is_null(original) ? reversed : rev(tail(original), pair(head(original), reversed));
    }
    return rev(xs, null);
}
function member(v, xs) {
    return is_null(xs) ? null : v === head(xs) ? xs : member(v, tail(xs));
}
function list_ref(xs, n) {
    return n === 0 ? head(xs) : list_ref(tail(xs), n - 1);
}
function build_list(fun, n) {
    function build(i, built) {
        return i < 0 ? built : build(i - 1, pair(fun(i), built));
    }
    return build(n - 1, null);
}
function enum_list(start, end) {
    return start > end ? null : pair(start, enum_list(start + 1, end));
}
function for_each(fun, xs) {
    if (is_null(xs)) {
        return true;
    } else {
        fun(head(xs));
        return for_each(fun, tail(xs));
    }
}
`

// LibraryNames lists the functions defined by the Source library of a chapter.
func LibraryNames(chapter int) []string {
	if chapter < 2 {
		return nil
	}
	return []string{"accumulate", "append", "build_list", "enum_list", "equal", "filter",
		"for_each", "is_list", "length", "list_ref", "map", "member", "reverse"}
}

// Library returns the Source text of the library for a chapter. The text is
// a sequence of function declarations, to be evaluated (or compiled) in the
// global environment before user programs.
func Library(chapter int) string {
	if chapter < 2 {
		return ""
	}
	return strings.TrimSpace(listLibrary)
}
