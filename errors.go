package srceval

import (
	"fmt"

	"github.com/joomcode/errorx"
)

// --- Error taxonomy --------------------------------------------------------

// Errors is the root namespace for all errors of this module. Errors raised
// while evaluating a user program terminate that program, but never the host.
var Errors = errorx.NewNamespace("srceval").ApplyModifiers(errorx.TypeModifierOmitStackTrace)

// Fatal marks errors which indicate a broken invariant of the VM heap rather
// than a mistake in the user program.
var Fatal = errorx.RegisterTrait("fatal")

var (
	bindingErrors = Errors.NewSubNamespace("binding")
	callErrors    = Errors.NewSubNamespace("call")
	runtimeErrors = Errors.NewSubNamespace("runtime")
	memoryErrors  = Errors.NewSubNamespace("memory", Fatal)
	syntaxErrors  = Errors.NewSubNamespace("syntax")
)

// Binding errors
var (
	UnboundName         = bindingErrors.NewType("unbound_name")
	UseBeforeAssignment = bindingErrors.NewType("use_before_assignment")
	Redeclaration       = bindingErrors.NewType("redeclaration")
	AssignToConstant    = bindingErrors.NewType("assign_to_constant")
)

// Call errors
var (
	InvalidNumberOfArguments = callErrors.NewType("invalid_number_of_arguments")
	CallingNonFunctionValue  = callErrors.NewType("calling_non_function")
)

// Runtime errors
var (
	RuntimeTypeError          = runtimeErrors.NewType("type")
	GetInheritedPropertyError = runtimeErrors.NewType("inherited_property")
	UserError                 = runtimeErrors.NewType("user")
	ExceptionError            = runtimeErrors.NewType("exception")
	Timeout                   = runtimeErrors.NewType("timeout", errorx.Timeout())
	Stopped                   = runtimeErrors.NewType("stopped")
	Deadlock                  = runtimeErrors.NewType("deadlock")
)

// Memory errors (VM heap only)
var (
	InvalidMemRequested = memoryErrors.NewType("invalid_request")
	MemOutOfBounds      = memoryErrors.NewType("out_of_bounds")
	MemExhausted        = memoryErrors.NewType("exhausted")
	InvalidChildIndex   = memoryErrors.NewType("invalid_child_index")
	CannotAddChild      = memoryErrors.NewType("cannot_add_child")
)

// Syntax errors
var (
	SyntaxError  = syntaxErrors.NewType("syntax")
	ChapterError = syntaxErrors.NewType("chapter")
)

// PropLocation is the errorx property carrying the source location of an error.
var PropLocation = errorx.RegisterPrintableProperty("loc")

// WithLocation attaches a source location to an error, unless the error
// already carries one. Errors from outside this module are wrapped as
// ExceptionError first.
func WithLocation(err error, loc Location) error {
	if err == nil || loc.IsNull() {
		return err
	}
	if !IsSourceError(err) {
		return ExceptionError.Wrap(err, "%s", err.Error()).WithProperty(PropLocation, loc)
	}
	e := errorx.Cast(err)
	if _, ok := e.Property(PropLocation); ok {
		return e
	}
	return e.WithProperty(PropLocation, loc)
}

// LocationOf extracts the source location from an error, if present.
func LocationOf(err error) (Location, bool) {
	if v, ok := errorx.ExtractProperty(err, PropLocation); ok {
		if loc, ok := v.(Location); ok {
			return loc, true
		}
	}
	return Location{}, false
}

// Describe renders an error the way it is shown to a user of the language:
// a line number, if known, and the message without namespace decoration.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if e := errorx.Cast(err); e != nil {
		msg = e.Message()
	}
	if loc, ok := LocationOf(err); ok && loc.Line() > 0 {
		return fmt.Sprintf("Line %d: %s", loc.Line(), msg)
	}
	return msg
}

// IsFatal is a predicate: does err indicate a VM invariant violation?
func IsFatal(err error) bool {
	return errorx.HasTrait(err, Fatal)
}

// IsOfType is a predicate: is err an error of type typ?
func IsOfType(err error, typ *errorx.Type) bool {
	return err != nil && errorx.IsOfType(err, typ)
}

// IsSourceError is a predicate: does err belong to the taxonomy of this module?
func IsSourceError(err error) bool {
	e := errorx.Cast(err)
	return e != nil && Errors.IsNamespaceOf(e.Type())
}
