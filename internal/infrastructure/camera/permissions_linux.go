//go:build linux

package camera

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// HasCaptureAuthorization проверяет доступ процесса к узлам /dev/video*.
// Без узлов доступ считается разрешенным, отсутствие камер обнаружит перечисление.
func (e *Engine) HasCaptureAuthorization() bool {
	paths, err := filepath.Glob(e.videoGlob)
	if err != nil || len(paths) == 0 {
		return true
	}

	for _, path := range paths {
		if unix.Access(path, unix.R_OK|unix.W_OK) == nil {
			return true
		}
	}

	e.logger.Warn("Нет доступа к %s, проверьте членство в группе video", e.videoGlob)
	return false
}
