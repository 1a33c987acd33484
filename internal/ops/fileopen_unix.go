//go:build !windows

package ops

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/siftly/siftly/internal/errors"
)

// openFileNoFollow opens path with O_NOFOLLOW so a symlinked final component
// is refused, and O_CLOEXEC so the descriptor is not inherited.
// Directory components are covered by ValidatePath.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	fd, err := syscall.Open(path, flag|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, uint32(perm))
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, errors.NewInvalidRequest("cannot write to symlink")
		}
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}
