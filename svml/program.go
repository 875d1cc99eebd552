package svml

import (
	"fmt"
	"io"
	"strconv"

	"github.com/cnf/structhash"
	"github.com/joomcode/errorx"
	"github.com/npillmayer/srceval"
)

// Unpatched is the target of a jump whose destination is not yet known.
const Unpatched = -1

// Instruction is a single operation of the virtual machine.
type Instruction struct {
	Op     Opcode
	A, B   int
	Num    float64
	Str    string
	Target int
	Loc    srceval.Location `hash:"-"`
}

// Make creates an instruction with integer operands.
func Make(op Opcode, operands ...int) Instruction {
	in := Instruction{Op: op, Target: Unpatched}
	if len(operands) > 0 {
		in.A = operands[0]
	}
	if len(operands) > 1 {
		in.B = operands[1]
	}
	return in
}

func (in Instruction) String() string {
	switch in.Op {
	case LoadNumber:
		return fmt.Sprintf("%-13s %s", in.Op, strconv.FormatFloat(in.Num, 'g', -1, 64))
	case LoadString:
		return fmt.Sprintf("%-13s %q", in.Op, in.Str)
	case LoadBool:
		return fmt.Sprintf("%-13s %t", in.Op, in.A != 0)
	case Load, Store:
		if in.Str != "" {
			return fmt.Sprintf("%-13s %d %d (%s)", in.Op, in.A, in.B, in.Str)
		}
		return fmt.Sprintf("%-13s %d %d", in.Op, in.A, in.B)
	case JumpOnFalse, Goto:
		return fmt.Sprintf("%-13s → %d", in.Op, in.Target)
	case Call, TailCall, EnterScope, LoadFunction, NewArray, Reset:
		return fmt.Sprintf("%-13s %d", in.Op, in.A)
	}
	return in.Op.String()
}

// Function is a unit of compiled code.
type Function struct {
	Name         string
	MaxStackSize int
	ParamCount   int
	EnvSize      int // slots of the frame holding parameters and top-level declarations
	Code         []Instruction
}

// Program is a compiled Source program. Functions[Entry] is executed
// first. It runs within a frame for Globals, which the machine populates
// with its primitives. Spawn, if not negative, is the index of the
// function goroutines start with.
type Program struct {
	Entry     int
	Spawn     int
	Globals   []string
	Functions []*Function
}

// EntryFunction returns the function a program starts with.
func (p *Program) EntryFunction() *Function {
	return p.Functions[p.Entry]
}

// Disassemble writes a human readable listing of a program.
func (p *Program) Disassemble(w io.Writer) error {
	for i, fn := range p.Functions {
		marker := ""
		if i == p.Entry {
			marker = " (entry)"
		} else if i == p.Spawn {
			marker = " (spawn)"
		}
		_, err := fmt.Fprintf(w, "#%d %s%s: params=%d env=%d stack=%d\n",
			i, fn.Name, marker, fn.ParamCount, fn.EnvSize, fn.MaxStackSize)
		if err != nil {
			return err
		}
		for pc, in := range fn.Code {
			line := ""
			if l := in.Loc.Line(); l > 0 {
				line = "; line " + strconv.Itoa(l)
			}
			if _, err = fmt.Fprintf(w, "%6d  %-32s%s\n", pc, in, line); err != nil {
				return err
			}
		}
	}
	return nil
}

// Fingerprint returns a content hash of a program. Source locations do not
// contribute, so programs differing only in layout share a fingerprint.
func (p *Program) Fingerprint() string {
	h, err := structhash.Hash(p, 1)
	if err != nil {
		tracer().Errorf("cannot hash program: %v", err)
		return ""
	}
	return h
}

// Validate checks the structural invariants of a program: every jump is
// patched and lands within its function, every function ends in an
// instruction leaving it, and every function reference is valid.
func (p *Program) Validate() error {
	if p.Entry < 0 || p.Entry >= len(p.Functions) {
		return errorx.IllegalState.New("entry function %d out of range", p.Entry)
	}
	if p.Spawn >= len(p.Functions) {
		return errorx.IllegalState.New("spawn function %d out of range", p.Spawn)
	}
	for i, fn := range p.Functions {
		if len(fn.Code) == 0 {
			return errorx.IllegalState.New("function #%d (%s) has no code", i, fn.Name)
		}
		switch last := fn.Code[len(fn.Code)-1].Op; last {
		case Return, TailCall, Done, GoDestroy:
		default:
			return errorx.IllegalState.New("function #%d (%s) ends with %s", i, fn.Name, last)
		}
		for pc, in := range fn.Code {
			switch {
			case in.Op.IsJump() && in.Target == Unpatched:
				return errorx.IllegalState.New("%s at #%d:%d not patched", in.Op, i, pc)
			case in.Op.IsJump() && (in.Target < 0 || in.Target >= len(fn.Code)):
				return errorx.IllegalState.New("%s at #%d:%d jumps out of function to %d",
					in.Op, i, pc, in.Target)
			case in.Op == LoadFunction && (in.A < 0 || in.A >= len(p.Functions)):
				return errorx.IllegalState.New("%s at #%d:%d references function %d",
					in.Op, i, pc, in.A)
			case in.Op >= opcodeCount:
				return errorx.IllegalState.New("illegal opcode %d at #%d:%d", in.Op, i, pc)
			}
		}
	}
	return nil
}
