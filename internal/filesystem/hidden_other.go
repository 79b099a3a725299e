//go:build !windows

package filesystem

import (
	"os"
	"strings"
)

func isHidden(_ string, info os.FileInfo) bool {
	return strings.HasPrefix(info.Name(), ".")
}
