//go:build !linux

package camera

// HasCaptureAuthorization на этих платформах разрешение запрашивает сам драйвер
func (e *Engine) HasCaptureAuthorization() bool {
	return true
}
