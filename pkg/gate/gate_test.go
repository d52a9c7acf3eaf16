package gate

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jdsd/practice-tool/pkg/command"
	"github.com/jdsd/practice-tool/pkg/keys"
)

type scriptedInput struct {
	frames [][]keys.Key
	n      int
	trace  *[]string
}

func (in *scriptedInput) Poll(cur *command.InputState) {
	if in.trace != nil {
		*in.trace = append(*in.trace, "poll")
	}
	if in.n < len(in.frames) {
		for _, k := range in.frames[in.n] {
			cur.Press(k)
		}
	}
	in.n++
}

type renderFunc func()

func (f renderFunc) Render() { f() }

func newGate(setup func() error, in InputSource, r Renderer) (*Gate, *command.Registry, *command.Tracker) {
	tr := &command.Tracker{}
	reg := command.NewRegistry(tr)
	g := New(Config{Setup: setup, Input: in, Registry: reg, Tracker: tr, Overlay: r})
	return g, reg, tr
}

func TestSetupTransition(t *testing.T) {
	calls := 0
	g, _, _ := newGate(func() error { calls++; return nil }, &scriptedInput{}, nil)
	if g.State() != Uninitialized {
		t.Fatalf("expected uninitialized, got %s", g.State())
	}
	g.Frame()
	g.Frame()
	if g.State() != Active || calls != 1 {
		t.Fatalf("expected one setup and active state, got %d calls and %s", calls, g.State())
	}
	if g.Frames() != 2 {
		t.Fatalf("expected 2 frames, got %d", g.Frames())
	}
}

func TestSetupFailureStillPresents(t *testing.T) {
	errNoDevice := errors.New("no device")
	in := &scriptedInput{}
	g, _, _ := newGate(func() error { return errNoDevice }, in, nil)

	presented := 0
	present := g.Hook(func(syncInterval, flags uint32) int32 {
		presented++
		if syncInterval != 1 || flags != 2 {
			t.Fatalf("arguments changed: %d %d", syncInterval, flags)
		}
		return 42
	})
	for i := 0; i < 3; i++ {
		if r := present(1, 2); r != 42 {
			t.Fatalf("return value changed: %d", r)
		}
	}
	if presented != 3 {
		t.Fatalf("host present ran %d times", presented)
	}
	if g.State() != Uninitialized {
		t.Fatalf("expected uninitialized, got %s", g.State())
	}
	if in.n != 0 {
		t.Fatal("input polled before setup succeeded")
	}
}

func TestSetupPanicContained(t *testing.T) {
	g, _, _ := newGate(func() error { panic("device lost") }, &scriptedInput{}, nil)
	g.Frame()
	if g.State() != Uninitialized {
		t.Fatalf("expected uninitialized, got %s", g.State())
	}
}

func TestFrameOrder(t *testing.T) {
	var trace []string
	in := &scriptedInput{frames: [][]keys.Key{{keys.F1}, nil}, trace: &trace}
	var (
		g   *Gate
		reg *command.Registry
		tr  *command.Tracker
	)
	g, reg, tr = newGate(nil, in, renderFunc(func() {
		trace = append(trace, "render")
		if g.Frames() == 1 && tr.WasPressed(keys.F1) {
			t.Fatal("tracker updated before render")
		}
	}))
	reg.Register(func() error { trace = append(trace, "dispatch"); return nil }, "collision", command.Trigger{Key: keys.F1})

	g.Frame()
	if !tr.WasPressed(keys.F1) {
		t.Fatal("tracker not updated after the frame")
	}
	g.Frame()
	want := []string{"poll", "render", "poll", "dispatch", "render"}
	if !reflect.DeepEqual(trace, want) {
		t.Fatalf("expected %v, got %v", want, trace)
	}
}

func TestPanickingCommandFiresOnce(t *testing.T) {
	in := &scriptedInput{frames: [][]keys.Key{{keys.F9}, nil, nil, nil}}
	g, reg, tr := newGate(nil, in, nil)
	fired := 0
	reg.Register(func() error { fired++; panic("bad pointer") }, "quitout", command.Trigger{Key: keys.F9})

	for i := 0; i < 4; i++ {
		g.Frame()
	}
	if fired != 1 {
		t.Fatalf("expected one firing, got %d", fired)
	}
	if tr.WasPressed(keys.F9) {
		t.Fatal("tracker not updated after the panicking frame")
	}
	if g.State() != Active {
		t.Fatalf("panic changed the gate state to %s", g.State())
	}
}

func TestPanicError(t *testing.T) {
	errBoom := errors.New("boom")
	g, _, _ := newGate(nil, nil, nil)
	err := g.protect(func() error { panic(errBoom) })
	var perr *PanicError
	if !errors.As(err, &perr) || !errors.Is(err, errBoom) {
		t.Fatalf("unexpected error %v", err)
	}
	if len(perr.Stack) == 0 || !strings.HasPrefix(err.Error(), "panic: boom") {
		t.Fatalf("unexpected panic error %q", err.Error())
	}
}

type fakeHost struct {
	present Present
}

func (h *fakeHost) Install(hook func(Present) Present) error {
	h.present = hook(h.present)
	return nil
}

type failingInstaller struct{}

func (failingInstaller) Install(func(Present) Present) error {
	return errors.New("present routine not found")
}

func TestInstall(t *testing.T) {
	host := &fakeHost{present: func(uint32, uint32) int32 { return 7 }}
	g, _, _ := newGate(nil, &scriptedInput{}, nil)
	select {
	case err := <-Install(host, g):
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("install did not finish")
	}
	if r := host.present(0, 0); r != 7 || g.State() != Active {
		t.Fatalf("hook not installed: %d %s", r, g.State())
	}

	if err := <-Install(failingInstaller{}, g); err == nil {
		t.Fatal("expected install error")
	}
}
