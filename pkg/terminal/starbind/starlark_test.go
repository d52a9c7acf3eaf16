package starbind

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"go.starlark.net/starlark"

	"github.com/jdsd/practice-tool/pkg/config"
	"github.com/jdsd/practice-tool/pkg/pointers"
	"github.com/jdsd/practice-tool/pkg/proc/memtest"
	"github.com/jdsd/practice-tool/service/session"
)

type testContext struct {
	s      *session.Session
	cmds   map[string]func(string) error
	called []string
}

func (ctx *testContext) Session() *session.Session { return ctx.s }

func (ctx *testContext) RegisterCommand(name, helpMsg string, cmdfn func(args string) error) {
	ctx.cmds[name] = cmdfn
}

func (ctx *testContext) CallCommand(cmdstr string) error {
	ctx.called = append(ctx.called, cmdstr)
	return nil
}

func newEnv(t *testing.T) (*Env, *testContext, *memtest.Memory, *bytes.Buffer) {
	t.Helper()
	mem := memtest.New()
	mem.Map(0x100, 4)
	mem.PutByte(0x100, 1)
	mem.Map(0x200, 0x10)
	mem.Map(0x2f0, 0x40)
	mem.PutWord(0x1000, 0x2000)
	mem.PutWord(0x2048, 0x3000)
	mem.PutWord(0x3028, 0x4000)
	mem.PutVec3(0x4080, [3]float32{10, 20, 30})
	mem.PutWord(0x500, 0x5000)
	mem.Map(0x523c, 1)
	mem.PutWord(0x600, 0x6000)
	mem.PutUint32(0x609c, 61500)

	s, err := session.New(&session.Config{
		Memory:  mem,
		Version: pointers.Latest,
		Overrides: pointers.BaseAddresses{
			Quitout:        0x500,
			RenderWorld:    0x100,
			DebugRender:    0x200,
			Igt:            0x600,
			PlayerPosition: 0x1000,
			DebugFlags:     0x300,
		},
		Features: config.DefaultFlags,
		Nudge:    1,
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := &testContext{s: s, cmds: map[string]func(string) error{}}
	out := new(bytes.Buffer)
	return New(ctx, out), ctx, mem, out
}

func dictGet(t *testing.T, v starlark.Value, key string) starlark.Value {
	t.Helper()
	d, ok := v.(*starlark.Dict)
	if !ok {
		t.Fatalf("expected a dict, got %s", v.Type())
	}
	r, found, err := d.Get(starlark.String(key))
	if err != nil || !found {
		t.Fatalf("key %q missing (%v)", key, err)
	}
	return r
}

func TestBuiltins(t *testing.T) {
	env, _, mem, _ := newEnv(t)
	const script = `
def main():
    r = {}
    r["stealth"] = toggle("stealth")
    r["state"] = state("stealth")
    r["saved_before"] = position()["saved"]
    save_pos()
    nudge(2.5)
    r["y"] = position()["live"][1]
    r["igt"] = igt()
    r["raw"] = read("u32", 0x600, 0x9c)
    r["missing"] = read("f32", 0x9000, 0x10)
    r["written"] = write("vec3", [1, 2, 3], 0x1000, "0x48", "0x28", "0x80")
    return r
`
	v, err := env.Execute("test.star", script, "main", nil)
	if err != nil {
		t.Fatal(err)
	}
	if dictGet(t, v, "stealth") != starlark.True || dictGet(t, v, "state") != starlark.True {
		t.Fatalf("stealth not turned on: %s", v)
	}
	if mem.Byte(0x306) != 1 {
		t.Fatalf("hide flag not written: %#x", mem.Byte(0x306))
	}
	if dictGet(t, v, "saved_before") != starlark.None {
		t.Fatalf("saved position before save_pos: %s", dictGet(t, v, "saved_before"))
	}
	if y := dictGet(t, v, "y"); y != starlark.Float(22.5) {
		t.Fatalf("nudge: expected 22.5, got %s", y)
	}
	if s := dictGet(t, v, "igt").String(); s != "61500" {
		t.Fatalf("igt: %s", s)
	}
	if s := dictGet(t, v, "raw").String(); s != "61500" {
		t.Fatalf("read: %s", s)
	}
	if dictGet(t, v, "missing") != starlark.None {
		t.Fatal("unresolved read did not return None")
	}
	if dictGet(t, v, "written") != starlark.True || mem.Vec3(0x4080) != [3]float32{1, 2, 3} {
		t.Fatalf("write: %v", mem.Vec3(0x4080))
	}
}

func TestBuiltinErrors(t *testing.T) {
	env, _, _, _ := newEnv(t)
	for _, src := range []string{
		`toggle("nope")`,
		`toggle()`,
		`read("u128", 0x600)`,
		`write("u8", 300, 0x306)`,
		`state(1)`,
	} {
		if _, err := env.Execute("err.star", src, "", nil); err == nil {
			t.Fatalf("%s: expected an error", src)
		}
	}
}

func TestCommandPrefix(t *testing.T) {
	env, ctx, _, _ := newEnv(t)
	const script = `
def command_echo(args):
    "Echoes its arguments."
    command("echo", args)

def command_pair(a, b):
    command("pair", str(a + b))
`
	if _, err := env.Execute("cmds.star", script, "", nil); err != nil {
		t.Fatal(err)
	}
	if ctx.cmds["echo"] == nil || ctx.cmds["pair"] == nil {
		t.Fatalf("commands not registered: %v", ctx.cmds)
	}
	if err := ctx.cmds["echo"]("a b c"); err != nil {
		t.Fatal(err)
	}
	if err := ctx.cmds["pair"]("1, 2"); err != nil {
		t.Fatal(err)
	}
	want := []string{"echo a b c", "pair 3"}
	if strings.Join(ctx.called, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %q, got %q", want, ctx.called)
	}
}

func TestExportGlobals(t *testing.T) {
	env, _, _, _ := newEnv(t)
	if _, err := env.Execute("a.star", "Step = 4\nlower = 1\n", "", nil); err != nil {
		t.Fatal(err)
	}
	v, err := env.Execute("b.star", "def main():\n    return Step * 2\n", "main", nil)
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "8" {
		t.Fatalf("expected 8, got %s", v)
	}
	if _, ok := env.env["lower"]; ok {
		t.Fatal("lowercase global exported")
	}
}

type lines []string

func (l *lines) Prompt(string) (string, error) {
	if len(*l) == 0 {
		return "", io.EOF
	}
	s := (*l)[0]
	*l = (*l)[1:]
	return s, nil
}

func (l *lines) AppendHistory(string) {}

func TestLoop(t *testing.T) {
	env, _, mem, out := newEnv(t)
	in := &lines{`Ai = toggle("ai")`, `igt()`, `undefined_name`, `exit`}
	if err := env.Loop(in); err != nil {
		t.Fatal(err)
	}
	if mem.Byte(0x30d) != 1 {
		t.Fatalf("ai flag not written: %#x", mem.Byte(0x30d))
	}
	if env.env["Ai"] != starlark.True {
		t.Fatalf("global not exported: %v", env.env["Ai"])
	}
	if !strings.Contains(out.String(), "61500") {
		t.Fatalf("expression not printed: %q", out.String())
	}
	if !strings.Contains(out.String(), "undefined") {
		t.Fatalf("error not printed: %q", out.String())
	}
}
