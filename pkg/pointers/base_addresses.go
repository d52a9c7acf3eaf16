package pointers

import (
	"fmt"
	"sort"
)

// DefaultImageBase is the preferred load address of the host executable.
const DefaultImageBase uintptr = 0x140000000

// BaseAddresses are the static roots of every pointer. The built in
// tables are relative to the image base; WithModuleBase makes them
// absolute.
type BaseAddresses struct {
	Quitout        uintptr
	RenderWorld    uintptr
	DebugRender    uintptr
	Igt            uintptr
	PlayerPosition uintptr
	DebugFlags     uintptr
	ShowCursor     uintptr
}

var baseAddresses = map[Version]BaseAddresses{
	{1, 2, 0}: {
		Quitout:        0x3b55048,
		RenderWorld:    0x39007c8,
		DebugRender:    0x3b65bc0,
		Igt:            0x3b47cf0,
		PlayerPosition: 0x3b67df0,
		DebugFlags:     0x3b67f59,
		ShowCursor:     0x3b77048,
	},
	{1, 3, 0}: {
		Quitout:        0x3b56088,
		RenderWorld:    0x39017c8,
		DebugRender:    0x3b66c00,
		Igt:            0x3b48d30,
		PlayerPosition: 0x3b68e30,
		DebugFlags:     0x3b68f99,
		ShowCursor:     0x3b78088,
	},
	{1, 4, 0}: {
		Quitout:        0x3b56088,
		RenderWorld:    0x39017c8,
		DebugRender:    0x3b66c00,
		Igt:            0x3b48d30,
		PlayerPosition: 0x3b68e30,
		DebugFlags:     0x3b68f99,
		ShowCursor:     0x3b78088,
	},
	{1, 5, 0}: {
		Quitout:        0x3d67368,
		RenderWorld:    0x3b01838,
		DebugRender:    0x3d77f04,
		Igt:            0x3d5aa20,
		PlayerPosition: 0x3d7a140,
		DebugFlags:     0x3d7a2c9,
		ShowCursor:     0x3d8986c,
	},
	{1, 6, 0}: {
		Quitout:        0x3d67408,
		RenderWorld:    0x3b01838,
		DebugRender:    0x3d77fa4,
		Igt:            0x3d5aac0,
		PlayerPosition: 0x3d7a1e0,
		DebugFlags:     0x3d7a369,
		ShowCursor:     0x3d8990c,
	},
}

// UnsupportedVersionError is returned for versions without an address
// table.
type UnsupportedVersionError struct {
	Version Version
}

func (err *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported version %s (supported: %v)", err.Version, Supported())
}

// Lookup returns the address table of v.
func Lookup(v Version) (BaseAddresses, error) {
	b, ok := baseAddresses[v]
	if !ok {
		return BaseAddresses{}, &UnsupportedVersionError{v}
	}
	return b, nil
}

// Supported lists the versions with an address table, oldest first.
func Supported() []Version {
	r := make([]Version, 0, len(baseAddresses))
	for v := range baseAddresses {
		r = append(r, v)
	}
	sort.Slice(r, func(i, j int) bool {
		a, b := r[i], r[j]
		if a.Major != b.Major {
			return a.Major < b.Major
		}
		if a.Minor != b.Minor {
			return a.Minor < b.Minor
		}
		return a.Patch < b.Patch
	})
	return r
}

// WithModuleBase returns the addresses relocated to an image loaded at base.
func (b BaseAddresses) WithModuleBase(base uintptr) BaseAddresses {
	return BaseAddresses{
		Quitout:        b.Quitout + base,
		RenderWorld:    b.RenderWorld + base,
		DebugRender:    b.DebugRender + base,
		Igt:            b.Igt + base,
		PlayerPosition: b.PlayerPosition + base,
		DebugFlags:     b.DebugFlags + base,
		ShowCursor:     b.ShowCursor + base,
	}
}

// Override replaces every non-zero field of o in b.
func (b BaseAddresses) Override(o BaseAddresses) BaseAddresses {
	pick := func(dst *uintptr, v uintptr) {
		if v != 0 {
			*dst = v
		}
	}
	pick(&b.Quitout, o.Quitout)
	pick(&b.RenderWorld, o.RenderWorld)
	pick(&b.DebugRender, o.DebugRender)
	pick(&b.Igt, o.Igt)
	pick(&b.PlayerPosition, o.PlayerPosition)
	pick(&b.DebugFlags, o.DebugFlags)
	pick(&b.ShowCursor, o.ShowCursor)
	return b
}
