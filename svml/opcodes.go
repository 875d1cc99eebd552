package svml

import "fmt"

// Opcode is the operation of an instruction.
type Opcode uint8

// Opcodes of the virtual machine. Operands are given as A, B (integers),
// Num (number), Str (string) and Target (jump destination). Stack effects
// are given as [before] → [after], top of stack to the right.
const (
	Nop           Opcode = iota //
	LoadNumber                  // [] → [Num]
	LoadString                  // [] → [Str]
	LoadBool                    // [] → [A != 0]
	LoadNull                    // [] → [null]
	LoadUndefined               // [] → [undefined]
	Load                        // [] → [frame A, slot B]
	Store                       // [v] → [], frame A, slot B := v
	Pop                         // [v] → []
	Dup                         // [v] → [v v]
	Add                         // [a b] → [a+b]
	Sub                         // [a b] → [a-b]
	Mul                         // [a b] → [a*b]
	Div                         // [a b] → [a/b]
	Mod                         // [a b] → [a%b]
	Eq                          // [a b] → [a===b]
	Neq                         // [a b] → [a!==b]
	Lt                          // [a b] → [a<b]
	Gt                          // [a b] → [a>b]
	Le                          // [a b] → [a<=b]
	Ge                          // [a b] → [a>=b]
	Not                         // [a] → [!a]
	Neg                         // [a] → [-a]
	JumpOnFalse                 // [b] → [], jump to Target if b is false
	Goto                        // jump to Target
	Call                        // [f a1…aA] → [r]
	TailCall                    // [f a1…aA] → (frame of caller is replaced)
	Return                      // [r] → (to caller)
	EnterScope                  // push a frame of A slots
	ExitScope                   // pop a frame
	LoadFunction                // [] → [closure of function A]
	NewArray                    // [e1…eA] → [array]
	LoadElement                 // [arr i] → [arr[i]]
	StoreElement                // [arr i v] → [v], arr[i] := v
	Go                          // [f] → [], spawn a goroutine calling f
	GoDestroy                   // terminate the current goroutine
	Send                        // [ch v] → [undefined]
	Receive                     // [ch] → [v]
	Reset                       // pop A frames
	Done                        // [r] → (halt with result r)
	opcodeCount
)

var opcodeNames = [...]string{
	"Nop", "LoadNumber", "LoadString", "LoadBool", "LoadNull", "LoadUndefined",
	"Load", "Store", "Pop", "Dup",
	"Add", "Sub", "Mul", "Div", "Mod", "Eq", "Neq", "Lt", "Gt", "Le", "Ge", "Not", "Neg",
	"JumpOnFalse", "Goto", "Call", "TailCall", "Return",
	"EnterScope", "ExitScope", "LoadFunction", "NewArray", "LoadElement", "StoreElement",
	"Go", "GoDestroy", "Send", "Receive", "Reset", "Done",
}

func (op Opcode) String() string {
	if op < opcodeCount {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", op)
}

// IsJump is a predicate: does op carry a jump target?
func (op Opcode) IsJump() bool {
	return op == JumpOnFalse || op == Goto
}

// IsBinary is a predicate: is op a binary operator?
func (op Opcode) IsBinary() bool {
	return op >= Add && op <= Ge
}

// BinaryOp maps an operator of the source language to its opcode.
func BinaryOp(operator string) (Opcode, bool) {
	switch operator {
	case "+":
		return Add, true
	case "-":
		return Sub, true
	case "*":
		return Mul, true
	case "/":
		return Div, true
	case "%":
		return Mod, true
	case "===":
		return Eq, true
	case "!==":
		return Neq, true
	case "<":
		return Lt, true
	case ">":
		return Gt, true
	case "<=":
		return Le, true
	case ">=":
		return Ge, true
	}
	return Nop, false
}

// Operator returns the source language operator of a binary or unary
// opcode, or an empty string.
func (op Opcode) Operator() string {
	switch op {
	case Add:
		return "+"
	case Sub, Neg:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Mod:
		return "%"
	case Eq:
		return "==="
	case Neq:
		return "!=="
	case Lt:
		return "<"
	case Gt:
		return ">"
	case Le:
		return "<="
	case Ge:
		return ">="
	case Not:
		return "!"
	}
	return ""
}

// StackEffect is the net change of the operand stack height caused by an
// instruction. Instructions which leave the function (Return, TailCall,
// Done, GoDestroy) count what they pop.
func (in Instruction) StackEffect() int {
	switch in.Op {
	case LoadNumber, LoadString, LoadBool, LoadNull, LoadUndefined, Load, Dup, LoadFunction:
		return 1
	case Store, Pop, JumpOnFalse, Return, LoadElement, Go, Send, Done:
		return -1
	case Add, Sub, Mul, Div, Mod, Eq, Neq, Lt, Gt, Le, Ge:
		return -1
	case StoreElement:
		return -2
	case Call:
		return -in.A
	case TailCall:
		return -(in.A + 1)
	case NewArray:
		return 1 - in.A
	}
	return 0
}

// StackSize computes the maximum height of the operand stack a sequence
// of instructions may reach, following both branches of every jump.
// The height at entry is given by base.
func StackSize(code []Instruction, base int) int {
	heights := make([]int, len(code))
	for i := range heights {
		heights[i] = -1
	}
	top := base
	work := []int{0}
	if len(code) > 0 {
		heights[0] = base
	}
	for len(work) > 0 {
		pc := work[len(work)-1]
		work = work[:len(work)-1]
		for pc < len(code) {
			in := code[pc]
			h := heights[pc] + in.StackEffect()
			if h > top {
				top = h
			}
			if in.Op == Return || in.Op == TailCall || in.Op == Done || in.Op == GoDestroy {
				break
			}
			if in.Op.IsJump() && in.Target >= 0 && in.Target < len(code) && heights[in.Target] < 0 {
				heights[in.Target] = h
				work = append(work, in.Target)
			}
			if in.Op == Goto || pc+1 >= len(code) || heights[pc+1] >= 0 {
				break
			}
			heights[pc+1] = h
			pc++
		}
	}
	return top
}
