package iptcpstack

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errno is a socket error code. The negative values follow the status codes
// returned by the C-style socket calls; OK is the absence of an error.
type Errno int

const (
	OK           Errno = 0
	ERROR        Errno = -1
	EAGAIN       Errno = -2
	EINVAL       Errno = -3
	EADDRINUSE   Errno = -4
	ECONNREFUSED Errno = -5
	ETIMEDOUT    Errno = -6
	ENOTSOCK     Errno = -7
)

var (
	ErrGeneral           error = ERROR
	ErrWouldBlock        error = EAGAIN
	ErrInvalidArgument   error = EINVAL
	ErrAddressInUse      error = EADDRINUSE
	ErrConnectionRefused error = ECONNREFUSED
	ErrTimedOut          error = ETIMEDOUT
	ErrNotFound          error = ENOTSOCK
)

func (e Errno) Error() string {
	return Strerror(e)
}

// Strerror returns the human readable text for an error code.
func Strerror(e Errno) string {
	switch e {
	case OK:
		return "Success"
	case ERROR:
		return "General error"
	case EAGAIN:
		return "Resource temporarily unavailable"
	case EINVAL:
		return "Invalid argument"
	case EADDRINUSE:
		return "Address already in use"
	case ECONNREFUSED:
		return "Connection refused"
	case ETIMEDOUT:
		return "Connection timed out"
	case ENOTSOCK:
		return "No such socket"
	}
	return fmt.Sprintf("Unknown error %d", int(e))
}

// ErrnoOf extracts the code carried by err. Errors that do not wrap an Errno
// map to ERROR.
func ErrnoOf(err error) Errno {
	if err == nil {
		return OK
	}
	var e Errno
	if errors.As(err, &e) {
		return e
	}
	return ERROR
}
