//go:build windows

package registry

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
	winreg "golang.org/x/sys/windows/registry"
)

var (
	modntdll       = windows.NewLazySystemDLL("ntdll.dll")
	procNtQueryKey = modntdll.NewProc("NtQueryKey")
)

const (
	keyNameInformation    = 3
	statusBufferTooSmall  = 0xC0000023
	statusBufferOverflow  = 0x80000005
	maxKeyNameBufferBytes = 64 * 1024
)

// WindowsBackend reads the live registry of the local machine
type WindowsBackend struct {
	is64 bool
}

// NewWindowsBackend returns a backend over the local registry
func NewWindowsBackend() *WindowsBackend {
	return &WindowsBackend{is64: hostIs64Bit()}
}

// Default returns the live registry on Windows
func Default() Backend {
	return NewWindowsBackend()
}

func hostIs64Bit() bool {
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		return true
	}
	var wow64 bool
	if err := windows.IsWow64Process(windows.CurrentProcess(), &wow64); err != nil {
		return false
	}
	return wow64
}

func rootKey(h Hive) (winreg.Key, bool) {
	switch h {
	case ClassesRoot:
		return winreg.CLASSES_ROOT, true
	case CurrentUser:
		return winreg.CURRENT_USER, true
	case LocalMachine:
		return winreg.LOCAL_MACHINE, true
	case Users:
		return winreg.USERS, true
	case CurrentConfig:
		return winreg.CURRENT_CONFIG, true
	}
	return 0, false
}

func (b *WindowsBackend) Is64Bit() bool { return b.is64 }

func (b *WindowsBackend) OpenKey(hive Hive, path string, view View) (Key, error) {
	root, ok := rootKey(hive)
	if !ok {
		return nil, fmt.Errorf("open %s\\%s: invalid hive", hive, path)
	}
	access := uint32(winreg.READ)
	if view == View32 {
		access |= winreg.WOW64_32KEY
	}

	ref := KeyRef{Hive: hive, Path: cleanPath(path), View: view}
	k, err := winreg.OpenKey(root, ref.Path, access)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref, mapError(err))
	}
	return &winKey{k: k, ref: ref}, nil
}

func (b *WindowsBackend) UserHives() ([]string, error) {
	k, err := winreg.OpenKey(winreg.USERS, "", winreg.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, fmt.Errorf("open HKU: %w", mapError(err))
	}
	defer k.Close()

	names, err := k.ReadSubKeyNames(-1)
	if err != nil {
		return nil, fmt.Errorf("enumerate HKU: %w", mapError(err))
	}
	out := names[:0]
	for _, n := range names {
		if strings.HasSuffix(strings.ToLower(n), "_classes") {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, windows.ERROR_FILE_NOT_FOUND), errors.Is(err, windows.ERROR_PATH_NOT_FOUND):
		return fmt.Errorf("%w (%v)", ErrNotExist, err)
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return fmt.Errorf("%w (%v)", ErrAccessDenied, err)
	default:
		return err
	}
}

type winKey struct {
	k   winreg.Key
	ref KeyRef
}

// Name returns the kernel object name so that WOW64-redirected handles can be
// told apart from shared ones. When the kernel name is unavailable the
// view-qualified path is used, so a 32-bit handle never aliases a native one.
func (w *winKey) Name() string {
	size := uint32(512)
	for size <= maxKeyNameBufferBytes {
		buf := make([]byte, size)
		var needed uint32
		status, _, _ := procNtQueryKey.Call(
			uintptr(w.k),
			keyNameInformation,
			uintptr(unsafe.Pointer(&buf[0])),
			uintptr(len(buf)),
			uintptr(unsafe.Pointer(&needed)),
		)
		switch uint32(status) {
		case 0:
			// KEY_NAME_INFORMATION { ULONG NameLength; WCHAR Name[1]; }
			nameLen := *(*uint32)(unsafe.Pointer(&buf[0]))
			chars := unsafe.Slice((*uint16)(unsafe.Pointer(&buf[4])), nameLen/2)
			return windows.UTF16ToString(chars)
		case statusBufferTooSmall, statusBufferOverflow:
			if needed <= size {
				needed = size * 2
			}
			size = needed
		default:
			return w.ref.Label()
		}
	}
	return w.ref.Label()
}

func (w *winKey) GetValue(name string) (Value, error) {
	n, typ, err := w.k.GetValue(name, nil)
	if err != nil {
		return Value{}, fmt.Errorf("%s\\%s: %w", w.ref, name, mapError(err))
	}

	v := Value{Type: ValueType(typ)}
	switch typ {
	case winreg.SZ, winreg.EXPAND_SZ:
		v.String, _, err = w.k.GetStringValue(name)
	case winreg.MULTI_SZ:
		v.Strings, _, err = w.k.GetStringsValue(name)
	case winreg.DWORD, winreg.QWORD:
		v.Integer, _, err = w.k.GetIntegerValue(name)
	default:
		v.Binary = make([]byte, n)
		_, _, err = w.k.GetValue(name, v.Binary)
	}
	if err != nil {
		return Value{}, fmt.Errorf("%s\\%s: %w", w.ref, name, mapError(err))
	}
	return v, nil
}

func (w *winKey) ValueNames() ([]string, error) {
	names, err := w.k.ReadValueNames(-1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", w.ref, mapError(err))
	}
	return names, nil
}

func (w *winKey) SubKeyNames() ([]string, error) {
	names, err := w.k.ReadSubKeyNames(-1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", w.ref, mapError(err))
	}
	return names, nil
}

func (w *winKey) Close() error {
	return w.k.Close()
}
