package state

import (
	"errors"
	"testing"
	"time"

	"github.com/jdsd/practice-tool/pkg/pointers"
	"github.com/jdsd/practice-tool/pkg/proc/memtest"
)

// fakeTarget lays out a small target: flags at 0x300, render flags at
// 0x100 and 0x200, the position behind three hops from 0x1000.
func fakeTarget(t *testing.T) (*memtest.Memory, *pointers.Pointers) {
	t.Helper()
	mem := memtest.New()
	b := pointers.BaseAddresses{
		Quitout:        0x500,
		RenderWorld:    0x100,
		DebugRender:    0x200,
		Igt:            0x600,
		PlayerPosition: 0x1000,
		DebugFlags:     0x300,
	}
	mem.Map(0x100, 4)
	mem.Map(0x200, 0x10)
	mem.Map(0x2f0, 0x40)
	mem.PutByte(0x100, 1)

	mem.PutWord(0x1000, 0x2000)
	mem.PutWord(0x2048, 0x3000)
	mem.PutWord(0x3028, 0x4000)
	mem.PutVec3(0x4080, [3]float32{10, 20, 30})

	mem.PutWord(0x500, 0x5000)
	mem.Map(0x5000+0x23c, 1)
	mem.PutWord(0x600, 0x6000)
	mem.PutUint32(0x6000+0x9c, 61500)
	return mem, pointers.New(pointers.Latest, b)
}

func TestStoreToggle(t *testing.T) {
	mem, ptrs := fakeTarget(t)
	s, err := New(mem, ptrs, []string{"collision", "stealth", "ai"})
	if err != nil {
		t.Fatal(err)
	}
	on, err := s.Toggle("stealth")
	if err != nil || !on {
		t.Fatalf("expected stealth on, got %v (%v)", on, err)
	}
	if mem.Byte(0x306) != 1 {
		t.Fatalf("hide flag not written: %#x", mem.Byte(0x306))
	}
	on, _ = s.Toggle("stealth")
	if on || mem.Byte(0x306) != 0 {
		t.Fatalf("second toggle did not restore: %v %#x", on, mem.Byte(0x306))
	}
	if _, err := s.Toggle("nope"); !errors.Is(err, ErrUnknownFeature) {
		t.Fatalf("expected ErrUnknownFeature, got %v", err)
	}
}

func TestCompositeReportsWrittenValue(t *testing.T) {
	mem, ptrs := fakeTarget(t)
	s, err := New(mem, ptrs, []string{"collision"})
	if err != nil {
		t.Fatal(err)
	}
	f, _ := s.Feature("collision")
	if on, ok := f.State(); !ok || on {
		t.Fatalf("expected off before first toggle, got %v (ok=%v)", on, ok)
	}
	if !f.Toggle() {
		t.Fatal("expected collision on")
	}
	// the target re-enables world rendering on its own
	mem.PutByte(0x100, 1)
	if on, _ := f.State(); !on {
		t.Fatal("state re-derived from memory instead of the written value")
	}
	if mem.Byte(0x200) != 1 || mem.Byte(0x20c) != 1 {
		t.Fatal("debug render members not written")
	}
}

func TestNewRejects(t *testing.T) {
	mem, ptrs := fakeTarget(t)
	if _, err := New(mem, ptrs, []string{"bogus"}); !errors.Is(err, ErrUnknownFeature) {
		t.Fatalf("expected ErrUnknownFeature, got %v", err)
	}
	if _, err := New(mem, ptrs, []string{"ai", "ai"}); err == nil {
		t.Fatal("duplicate feature accepted")
	}
}

func TestUnresolvedFeature(t *testing.T) {
	mem, _ := fakeTarget(t)
	ptrs := pointers.New(pointers.Latest, pointers.BaseAddresses{DebugFlags: 0x9000})
	s, err := New(mem, ptrs, []string{"no_damage"})
	if err != nil {
		t.Fatal(err)
	}
	mem.ResetCounters()
	if on, _ := s.Toggle("no_damage"); on {
		t.Fatal("unresolved feature reported on")
	}
	if mem.Writes != 0 {
		t.Fatalf("expected no writes, got %d", mem.Writes)
	}
	f, _ := s.Feature("no_damage")
	if _, ok := f.State(); ok {
		t.Fatal("unresolved feature reported valid")
	}
}

func TestToggleUnresolvedReturnsState(t *testing.T) {
	mem, ptrs := fakeTarget(t)
	s, err := New(mem, ptrs, []string{"collision", "stealth"})
	if err != nil {
		t.Fatal(err)
	}
	collision, _ := s.Feature("collision")
	stealth, _ := s.Feature("stealth")
	if !collision.Toggle() || !stealth.Toggle() {
		t.Fatal("expected both features on")
	}

	mem.Unmap(0x200, 0x10)
	mem.Unmap(0x2f0, 0x40)
	mem.ResetCounters()
	if !collision.Toggle() {
		t.Fatal("unresolved composite did not report its written state")
	}
	if stealth.Toggle() {
		t.Fatal("unresolved flag reported on")
	}
	if mem.Writes != 0 {
		t.Fatalf("expected no writes, got %d", mem.Writes)
	}
	if on, ok := collision.State(); !on || !ok {
		t.Fatalf("composite state changed: %v %v", on, ok)
	}
}

func TestSaveThenLoad(t *testing.T) {
	mem, ptrs := fakeTarget(t)
	s, _ := New(mem, ptrs, nil)
	p := s.Position()
	if !p.Save() {
		t.Fatal("save failed")
	}
	before := p.Snapshot()
	if !p.Load() {
		t.Fatal("load failed")
	}
	after := p.Snapshot()
	if after.Live != before.Live || after.Saved != before.Saved {
		t.Fatalf("round trip changed state: %+v -> %+v", before, after)
	}
	if after.Live != [3]float32{10, 20, 30} {
		t.Fatalf("unexpected live position %v", after.Live)
	}
}

func TestLoadRestoresSaved(t *testing.T) {
	mem, ptrs := fakeTarget(t)
	s, _ := New(mem, ptrs, nil)
	p := s.Position()
	if p.Load() {
		t.Fatal("load before save wrote something")
	}
	p.Save()
	mem.PutVec3(0x4080, [3]float32{1, 1, 1})
	p.Load()
	if got := mem.Vec3(0x4080); got != [3]float32{10, 20, 30} {
		t.Fatalf("expected saved position restored, got %v", got)
	}
}

func TestPositionUnresolved(t *testing.T) {
	mem, ptrs := fakeTarget(t)
	s, _ := New(mem, ptrs, nil)
	p := s.Position()
	p.Save()
	mem.PutWord(0x2048, 0)
	snap := p.Snapshot()
	if snap.LiveValid || snap.Live != [3]float32{} {
		t.Fatalf("expected zero live position, got %+v", snap)
	}
	if snap.Saved != [3]float32{10, 20, 30} {
		t.Fatalf("saved position lost: %v", snap.Saved)
	}
	if p.Save() {
		t.Fatal("save through null chain succeeded")
	}
	if p.Snapshot().Saved != [3]float32{10, 20, 30} {
		t.Fatal("failed save clobbered the snapshot")
	}
}

func TestNudge(t *testing.T) {
	mem, ptrs := fakeTarget(t)
	s, _ := New(mem, ptrs, nil)
	if !s.Position().Nudge(2.5) {
		t.Fatal("nudge failed")
	}
	if got := mem.Vec3(0x4080); got != [3]float32{10, 22.5, 30} {
		t.Fatalf("unexpected position %v", got)
	}
}

func TestQuitoutAndIGT(t *testing.T) {
	mem, ptrs := fakeTarget(t)
	s, _ := New(mem, ptrs, nil)
	if !s.Quitout() {
		t.Fatal("quitout not written")
	}
	if mem.Byte(0x523c) != 1 {
		t.Fatalf("unexpected quitout byte %#x", mem.Byte(0x523c))
	}
	if got := s.IGT(); got != 61500*time.Millisecond {
		t.Fatalf("unexpected igt %v", got)
	}
}
