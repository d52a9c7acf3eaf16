package native

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"unsafe"

	sys "golang.org/x/sys/unix"

	"github.com/jdsd/practice-tool/pkg/logflags"
)

// Attach opens the process with the given pid. The caller needs the same
// permissions ptrace(2) would require.
func Attach(pid int) (*Process, error) {
	exe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return nil, fmt.Errorf("could not attach to pid %d: %w", pid, err)
	}
	p := &Process{pid: pid, exe: exe}
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, fmt.Errorf("could not attach to pid %d: %w", pid, err)
	}
	defer f.Close()
	// the image base may be unknown here, access is checked on the first
	// readable mapping instead
	addr, err := firstReadable(bufio.NewScanner(f))
	if err != nil {
		return nil, fmt.Errorf("could not attach to pid %d: %w", pid, err)
	}
	var probe [1]byte
	if _, err := p.ReadMemory(probe[:], addr); err != nil {
		return nil, fmt.Errorf("could not attach to pid %d: %w", pid, err)
	}
	logflags.NativeLogger().Infof("attached to %s", p)
	return p, nil
}

// ReadMemory reads the target's memory with process_vm_readv.
func (p *Process) ReadMemory(buf []byte, addr uintptr) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	return processVmRead(p.pid, addr, buf)
}

// WriteMemory writes the target's memory with process_vm_writev.
func (p *Process) WriteMemory(addr uintptr, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	return processVmWrite(p.pid, addr, data)
}

// ModuleBase returns the lowest address at which the named module is
// mapped. An empty name selects the main executable: the mapped Windows
// image when there is one, since under Wine the process executable is the
// loader, otherwise the file /proc/<pid>/exe points to.
func (p *Process) ModuleBase(name string) (uintptr, error) {
	maps, err := os.ReadFile(fmt.Sprintf("/proc/%d/maps", p.pid))
	if err != nil {
		return 0, err
	}
	scan := func(name string) (uintptr, error) {
		return findModuleBase(bufio.NewScanner(bytes.NewReader(maps)), name)
	}
	var base uintptr
	if name != "" {
		base, err = scan(name)
	} else if base, err = scan(""); err != nil {
		base, err = scan(filepath.Base(p.exe))
	}
	if err != nil {
		return 0, fmt.Errorf("pid %d: %w", p.pid, err)
	}
	return base, nil
}

// findModuleBase scans lines in /proc/<pid>/maps format:
//
//	140000000-140001000 r--p 00000000 08:01 1234   /games/sekiro.exe
//
// An empty name matches any mapped file with the .exe extension.
func findModuleBase(sc *bufio.Scanner, name string) (uintptr, error) {
	var best uintptr
	found := false
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 6 {
			continue
		}
		path := strings.Join(fields[5:], " ")
		if name == "" {
			if !strings.EqualFold(filepath.Ext(path), ".exe") {
				continue
			}
		} else if !strings.EqualFold(filepath.Base(path), name) {
			continue
		}
		start, _, ok := strings.Cut(fields[0], "-")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(start, 16, 64)
		if err != nil {
			continue
		}
		if !found || uintptr(v) < best {
			best = uintptr(v)
			found = true
		}
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	if !found {
		if name == "" {
			return 0, errors.New("no executable image is mapped")
		}
		return 0, fmt.Errorf("module %q is not mapped", name)
	}
	return best, nil
}

// firstReadable returns the start of the first readable mapping.
func firstReadable(sc *bufio.Scanner) (uintptr, error) {
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || !strings.HasPrefix(fields[1], "r") {
			continue
		}
		start, _, ok := strings.Cut(fields[0], "-")
		if !ok {
			continue
		}
		if v, err := strconv.ParseUint(start, 16, 64); err == nil {
			return uintptr(v), nil
		}
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, errors.New("no readable mapping")
}

// remoteIovec is like golang.org/x/sys/unix.Iovec but uses uintptr for the
// base field instead of *byte so that we can use it with addresses that
// belong to the target process.
type remoteIovec struct {
	base uintptr
	len  uintptr
}

// processVmRead calls process_vm_readv
func processVmRead(pid int, addr uintptr, data []byte) (int, error) {
	local_iov := sys.Iovec{Base: &data[0]}
	local_iov.SetLen(len(data))
	remote_iov := remoteIovec{base: addr, len: uintptr(len(data))}
	n, _, err := syscall.Syscall6(sys.SYS_PROCESS_VM_READV, uintptr(pid), uintptr(unsafe.Pointer(&local_iov)), 1, uintptr(unsafe.Pointer(&remote_iov)), 1, 0)
	if err != syscall.Errno(0) {
		return 0, err
	}
	return int(n), nil
}

// processVmWrite calls process_vm_writev
func processVmWrite(pid int, addr uintptr, data []byte) (int, error) {
	local_iov := sys.Iovec{Base: &data[0]}
	local_iov.SetLen(len(data))
	remote_iov := remoteIovec{base: addr, len: uintptr(len(data))}
	n, _, err := syscall.Syscall6(sys.SYS_PROCESS_VM_WRITEV, uintptr(pid), uintptr(unsafe.Pointer(&local_iov)), 1, uintptr(unsafe.Pointer(&remote_iov)), 1, 0)
	if err != syscall.Errno(0) {
		return 0, err
	}
	return int(n), nil
}
