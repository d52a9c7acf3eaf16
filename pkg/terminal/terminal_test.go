package terminal

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/jdsd/practice-tool/pkg/config"
	"github.com/jdsd/practice-tool/pkg/overlay"
	"github.com/jdsd/practice-tool/pkg/pointers"
	"github.com/jdsd/practice-tool/pkg/proc/memtest"
	"github.com/jdsd/practice-tool/service/session"
)

type fixture struct {
	term *Term
	mem  *memtest.Memory
	out  *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
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

	conf := config.Default()
	surface := overlay.NewTextSurface(40)
	host := overlay.NewHost(surface, 0)
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
		Features: conf.Flags,
		Nudge:    conf.Nudge,
		Bindings: conf,
		Surface:  surface,
		Input:    host,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := <-s.Install(host); err != nil {
		t.Fatal(err)
	}
	out := new(bytes.Buffer)
	return &fixture{term: newTerm(s, host, conf, out, true), mem: mem, out: out}
}

// call runs cmdstr and returns what it printed.
func (f *fixture) call(t *testing.T, cmdstr string) string {
	t.Helper()
	f.out.Reset()
	if err := f.term.cmds.Call(cmdstr, f.term); err != nil {
		t.Fatalf("%s: %v", cmdstr, err)
	}
	return f.out.String()
}

func (f *fixture) fail(t *testing.T, cmdstr string) error {
	t.Helper()
	err := f.term.cmds.Call(cmdstr, f.term)
	if err == nil {
		t.Fatalf("%s: expected an error", cmdstr)
	}
	return err
}

func TestToggleAndState(t *testing.T) {
	f := newFixture(t)
	out := f.call(t, "toggle stealth ai")
	if !strings.Contains(out, "stealth: on") || !strings.Contains(out, "ai: on") {
		t.Fatalf("unexpected output %q", out)
	}
	if f.mem.Byte(0x306) != 1 || f.mem.Byte(0x30d) != 1 {
		t.Fatalf("flags not written: %#x %#x", f.mem.Byte(0x306), f.mem.Byte(0x30d))
	}
	out = f.call(t, "state")
	for _, want := range []string{"stealth", "(f2)", "Hide", "collision", "igt 00:01:01.500"} {
		if !strings.Contains(out, want) {
			t.Fatalf("state output lacks %q:\n%s", want, out)
		}
	}
	f.fail(t, "toggle nope")
	f.fail(t, "toggle")
}

func TestSet(t *testing.T) {
	f := newFixture(t)
	f.call(t, "set no_damage on")
	if f.mem.Byte(0x309) != 1 {
		t.Fatalf("all_no_damage not set: %#x", f.mem.Byte(0x309))
	}
	f.call(t, "set no_damage off")
	if f.mem.Byte(0x309) != 0 {
		t.Fatalf("all_no_damage not cleared: %#x", f.mem.Byte(0x309))
	}
	f.fail(t, "set no_damage maybe")
	f.fail(t, "set no_damage")
}

func TestPositionCommands(t *testing.T) {
	f := newFixture(t)
	f.fail(t, "load")
	out := f.call(t, "pos")
	if !strings.Contains(out, "saved none") {
		t.Fatalf("unexpected output %q", out)
	}
	f.call(t, "save")
	f.call(t, "nudge 2")
	if got := f.mem.Vec3(0x4080); got != [3]float32{10, 22, 30} {
		t.Fatalf("nudge: %v", got)
	}
	f.call(t, "nudge")
	if got := f.mem.Vec3(0x4080); got != [3]float32{10, 23, 30} {
		t.Fatalf("default nudge: %v", got)
	}
	f.call(t, "load")
	if got := f.mem.Vec3(0x4080); got != [3]float32{10, 20, 30} {
		t.Fatalf("load: %v", got)
	}
	f.call(t, "quitout")
	if f.mem.Byte(0x523c) != 1 {
		t.Fatal("quitout not requested")
	}
}

func TestReadWrite(t *testing.T) {
	f := newFixture(t)
	out := f.call(t, "read u32 0x600 0x9c")
	if !strings.Contains(out, "= 61500") {
		t.Fatalf("unexpected output %q", out)
	}
	f.call(t, `write vec3 "1, 2, 3" 0x1000 0x48 0x28 0x80`)
	if got := f.mem.Vec3(0x4080); got != [3]float32{1, 2, 3} {
		t.Fatalf("write: %v", got)
	}
	err := f.fail(t, "read f32 0x9000 0x10")
	if !strings.Contains(err.Error(), "[0x9000, 0x10] float32 does not resolve") {
		t.Fatalf("unexpected error %v", err)
	}
	f.fail(t, "read u128 0x600")
	f.fail(t, "write u8 300 0x306")
	f.fail(t, "read u8")
}

func TestBindAndPress(t *testing.T) {
	f := newFixture(t)
	out := f.call(t, "bind stealth f8")
	if !strings.Contains(out, "stealth bound to (f8)") {
		t.Fatalf("unexpected output %q", out)
	}
	f.call(t, "press f2")
	if f.mem.Byte(0x306) != 0 {
		t.Fatal("old trigger still bound")
	}
	f.call(t, "press f8")
	if f.mem.Byte(0x306) != 1 {
		t.Fatal("new trigger did not fire")
	}
	if f.term.conf.Describe("stealth") != "f8" {
		t.Fatalf("configuration not updated: %q", f.term.conf.Describe("stealth"))
	}
	f.call(t, "bind stealth none")
	if d := f.term.sess.Describe("stealth"); d != "" {
		t.Fatalf("expected unbound, got %q", d)
	}
	out = f.call(t, "bindings")
	if !strings.Contains(out, "save_pos") || !strings.Contains(out, "(shift+f7)") {
		t.Fatalf("unexpected bindings %q", out)
	}
	f.call(t, "press shift+f7")
	f.call(t, "press pgup")
	if got := f.mem.Vec3(0x4080); got != [3]float32{10, 21, 30} {
		t.Fatalf("nudge_up: %v", got)
	}
	f.call(t, "press f7")
	if got := f.mem.Vec3(0x4080); got != [3]float32{10, 20, 30} {
		t.Fatalf("load_pos: %v", got)
	}
	f.fail(t, "bind nope f1")
	f.fail(t, "bind stealth f99")
}

func TestBindWrite(t *testing.T) {
	f := newFixture(t)
	f.term.ConfigPath = filepath.Join(t.TempDir(), "config.yml")
	f.call(t, "bind -w ai f11")
	c, err := config.LoadFile(f.term.ConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if c.Describe("ai") != "f11" {
		t.Fatalf("binding not saved: %q", c.Describe("ai"))
	}
}

func TestFrame(t *testing.T) {
	f := newFixture(t)
	f.call(t, "press 0")
	out := f.call(t, "frame")
	for _, want := range []string{"Collision Meshes (f1)", "Position [saved]:", "Quitout (f9)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("overlay lacks %q:\n%s", want, out)
		}
	}
	if n := f.term.host.Frames(); n != 3 {
		t.Fatalf("expected 3 frames, got %d", n)
	}
	f.fail(t, "frame -1")
}

func TestSourceFile(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	script := filepath.Join(dir, "init")
	if err := os.WriteFile(script, []byte("# comment\ntoggle consume\nnope\nset ai on\nexit\ntoggle consume\n"), 0600); err != nil {
		t.Fatal(err)
	}
	err := f.term.cmds.Call("source "+script, f.term)
	if _, ok := err.(ExitRequestError); !ok {
		t.Fatalf("expected exit request, got %v", err)
	}
	if f.mem.Byte(0x300) != 1 || f.mem.Byte(0x30d) != 1 {
		t.Fatalf("commands not executed: %#x %#x", f.mem.Byte(0x300), f.mem.Byte(0x30d))
	}
	if !strings.Contains(f.out.String(), ":3: command not available") {
		t.Fatalf("error not reported: %q", f.out.String())
	}
}

func TestSourceStarlark(t *testing.T) {
	f := newFixture(t)
	script := filepath.Join(t.TempDir(), "cmds.star")
	src := `
def command_hide_all(args):
    "Turns on stealth and freezes the AI."
    set_feature("stealth", True)
    set_feature("ai", True)

def main():
    command("toggle", "no_damage")
`
	if err := os.WriteFile(script, []byte(src), 0600); err != nil {
		t.Fatal(err)
	}
	f.call(t, "source "+script)
	if f.mem.Byte(0x309) != 1 {
		t.Fatal("main did not run")
	}
	f.call(t, "hide_all")
	if f.mem.Byte(0x306) != 1 || f.mem.Byte(0x30d) != 1 {
		t.Fatal("script command did not run")
	}
	out := f.call(t, "help hide_all")
	if !strings.Contains(out, "Turns on stealth") {
		t.Fatalf("unexpected help %q", out)
	}
	if c := f.term.complete("hide_"); !reflect.DeepEqual(c, []string{"hide_all"}) {
		t.Fatalf("script command not completed: %v", c)
	}
}

func TestHelp(t *testing.T) {
	f := newFixture(t)
	out := f.call(t, "help")
	for _, want := range []string{"Features:", "toggle (alias: t)", "Reading and writing memory:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("help lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Commands defined by scripts") {
		t.Fatal("empty group listed")
	}
	f.fail(t, "help nope")
	f.fail(t, "nope")
	f.call(t, "")
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	for _, tc := range []struct {
		line string
		want []string
	}{
		{"tog", []string{"toggle"}},
		{"toggle ste", []string{"toggle stealth"}},
		{"set player_no_d", []string{"set player_no_dead"}},
		{"bind stealth f1", []string{"bind stealth f1", "bind stealth f10", "bind stealth f11", "bind stealth f12", "bind stealth f13", "bind stealth f14", "bind stealth f15", "bind stealth f16", "bind stealth f17", "bind stealth f18", "bind stealth f19"}},
		{"bind save_pos shift+pgu", []string{"bind save_pos shift+pgup"}},
		{"", nil},
	} {
		got := f.term.complete(tc.line)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%q: expected %q, got %q", tc.line, tc.want, got)
		}
	}
}

func TestSplitArgs(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a b", []string{"a", "b"}},
		{`vec3 "1, 2, 3" 0x10`, []string{"vec3", "1, 2, 3", "0x10"}},
	} {
		got, err := splitArgs(tc.in)
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%q: expected %q, got %q", tc.in, tc.want, got)
		}
	}
	if _, err := splitArgs("a | b"); err == nil {
		t.Fatal("expected an error for a pipeline")
	}
}
