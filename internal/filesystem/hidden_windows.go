//go:build windows

package filesystem

import (
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

func isHidden(_ string, info os.FileInfo) bool {
	if sys := info.Sys(); sys != nil {
		if winData, ok := sys.(*syscall.Win32FileAttributeData); ok {
			return winData.FileAttributes&windows.FILE_ATTRIBUTE_HIDDEN != 0
		}
	}
	return false
}
