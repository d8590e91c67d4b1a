//go:build !windows && !linux && !freebsd && !openbsd && !netbsd

package native

// New reports that this platform has no native backend
func New() (Ops, error) {
	return nil, ErrUnsupported
}
