package errors

import (
	"errors"
	"fmt"
	"syscall"
)

// Error kinds. Every failure the engine reports wraps exactly one of these.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrUnsupported      = errors.New("unsupported")
	ErrIO               = errors.New("i/o error")
)

// Error describes a failed operation on an optional path or object.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Path)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause so that
// errors.Is matches the kind and errors.As finds a wrapped errno.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// New creates an error of the given kind without an OS cause
func New(kind error, op string, path string) error {
	return &Error{Kind: kind, Op: op, Path: path}
}

// Invalid is shorthand for argument validation failures
func Invalid(format string, args ...interface{}) error {
	return &Error{Kind: ErrInvalidArgument, Op: fmt.Sprintf(format, args...)}
}

// Wrap classifies err by its errno (if any) and attaches op and path.
// A nil err returns nil.
func Wrap(op string, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindOf(err), Op: op, Path: path, Err: err}
}

// KindOf maps err onto the taxonomy. Errors that already carry a kind keep it.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind != nil {
		return e.Kind
	}

	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return ErrIO
	}

	switch errno {
	case syscall.ENOENT, syscall.ESRCH:
		return ErrNotFound
	case syscall.EACCES, syscall.EPERM:
		return ErrPermissionDenied
	case syscall.EINVAL, syscall.ERANGE, syscall.EBADF, syscall.ENOTSOCK:
		return ErrInvalidArgument
	case syscall.ENOSYS, syscall.EOPNOTSUPP, syscall.ENOTTY:
		return ErrUnsupported
	default:
		return ErrIO
	}
}

// ExitStatus carries the exit code of a supervised child up to main
type ExitStatus struct {
	Code int
}

func (e *ExitStatus) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the process exit code for err: the supervised child's
// code, else the wrapped errno when it fits an exit status, else 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var status *ExitStatus
	if errors.As(err, &status) {
		return status.Code
	}

	var errno syscall.Errno
	if errors.As(err, &errno) && errno > 0 && errno < 256 {
		return int(errno)
	}

	return 1
}
