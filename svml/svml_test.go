package svml

import (
	"strings"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/srceval"
)

// abs(x) as a hand-assembled program
func absProgram() *Program {
	body := []Instruction{
		Make(Load, 0, 0),
		{Op: LoadNumber, Num: 0, Target: Unpatched},
		Make(Lt),
		Make(JumpOnFalse),
		Make(Load, 0, 0),
		Make(Neg),
		Make(Return),
		Make(Load, 0, 0),
		Make(Return),
	}
	body[3].Target = 7
	entry := []Instruction{
		Make(LoadFunction, 1),
		{Op: LoadNumber, Num: -3, Target: Unpatched},
		Make(Call, 1),
		Make(Done),
	}
	return &Program{
		Entry: 0,
		Spawn: -1,
		Functions: []*Function{
			{Name: "main", MaxStackSize: 2, Code: entry},
			{Name: "abs", MaxStackSize: 2, ParamCount: 1, EnvSize: 1, Code: body},
		},
	}
}

func TestValidate(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.svml")
	defer teardown()
	//
	p := absProgram()
	if err := p.Validate(); err != nil {
		t.Fatalf("expected program to be valid, got %v", err)
	}
	p.Functions[1].Code[3].Target = Unpatched
	if err := p.Validate(); err == nil {
		t.Errorf("expected unpatched jump to be detected")
	}
	p = absProgram()
	p.Functions[1].Code[3].Target = 9
	if err := p.Validate(); err == nil {
		t.Errorf("expected out-of-range jump to be detected")
	}
	p = absProgram()
	p.Functions[0].Code = p.Functions[0].Code[:3]
	if err := p.Validate(); err == nil {
		t.Errorf("expected missing Done to be detected")
	}
	p = absProgram()
	p.Functions[0].Code[0].A = 2
	if err := p.Validate(); err == nil {
		t.Errorf("expected dangling function reference to be detected")
	}
}

func TestFingerprintIgnoresLocations(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.svml")
	defer teardown()
	//
	p, q := absProgram(), absProgram()
	q.Functions[1].Code[0].Loc = srceval.At(12, 4)
	if p.Fingerprint() == "" || p.Fingerprint() != q.Fingerprint() {
		t.Errorf("expected equal fingerprints, got %q and %q", p.Fingerprint(), q.Fingerprint())
	}
	q.Functions[1].Code[1].Num = 1
	if p.Fingerprint() == q.Fingerprint() {
		t.Errorf("expected fingerprints of different programs to differ")
	}
}

func TestDisassemble(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.svml")
	defer teardown()
	//
	p := absProgram()
	p.Functions[1].Code[0].Loc = srceval.At(2, 1)
	var sb strings.Builder
	if err := p.Disassemble(&sb); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	t.Logf("\n%s", out)
	for _, s := range []string{"#0 main (entry)", "#1 abs: params=1 env=1 stack=2",
		"JumpOnFalse   → 7", "LoadNumber    -3", "; line 2"} {
		if !strings.Contains(out, s) {
			t.Errorf("expected listing to contain %q", s)
		}
	}
}

func TestStackEffects(t *testing.T) {
	code := absProgram().Functions[0].Code
	height := 0
	for _, in := range code[:3] {
		height += in.StackEffect()
	}
	if height != 1 {
		t.Errorf("expected a call to leave one value, height is %d", height)
	}
	if Make(NewArray, 3).StackEffect() != -2 || Make(TailCall, 2).StackEffect() != -3 {
		t.Errorf("unexpected stack effects for NewArray/TailCall")
	}
	if op, ok := BinaryOp("<="); !ok || op != Le || op.Operator() != "<=" {
		t.Errorf("expected <= to map to Le, got %s", op)
	}
}
