// Package kernel models the syscall layer of a small embedded kernel. It
// keeps a process table, routes numeric commands to registered drivers, and
// delivers driver upcalls back to processes through per-process queues that
// are drained by scheduler events.
package kernel

import "errors"

// ErrorCode is a kernel error value returned to userspace. The numeric values
// are part of the syscall ABI and must not be reordered.
type ErrorCode uint32

// The full kernel error taxonomy.
const (
	// ErrFail is a generic failure condition.
	ErrFail ErrorCode = iota + 1

	// ErrBusy indicates the underlying system is busy and the retry policy,
	// if any, belongs to the caller.
	ErrBusy

	// ErrAlready indicates the state requested is already set.
	ErrAlready

	// ErrOff indicates the component is powered down.
	ErrOff

	// ErrReserve indicates a reservation is required before use.
	ErrReserve

	// ErrInvalid indicates an argument is invalid, such as a channel index
	// out of range.
	ErrInvalid

	// ErrSize indicates the size is wrong.
	ErrSize

	// ErrCancel indicates the operation was cancelled.
	ErrCancel

	// ErrNoMem indicates the required memory, such as a process's grant
	// region, is not available.
	ErrNoMem

	// ErrNoSupport indicates the operation, command number, or subscription
	// slot is not supported.
	ErrNoSupport

	// ErrNoDevice indicates the device is not available.
	ErrNoDevice

	// ErrUninstalled indicates the device is not physically installed.
	ErrUninstalled

	// ErrNoAck indicates the packet transmission was not acknowledged.
	ErrNoAck
)

var errorCodeNames = map[ErrorCode]string{
	ErrFail:        "FAIL",
	ErrBusy:        "BUSY",
	ErrAlready:     "ALREADY",
	ErrOff:         "OFF",
	ErrReserve:     "RESERVE",
	ErrInvalid:     "INVALID",
	ErrSize:        "SIZE",
	ErrCancel:      "CANCEL",
	ErrNoMem:       "NOMEM",
	ErrNoSupport:   "NOSUPPORT",
	ErrNoDevice:    "NODEVICE",
	ErrUninstalled: "UNINSTALLED",
	ErrNoAck:       "NOACK",
}

// Error makes an ErrorCode usable wherever the collaborator contracts ask for
// a plain error.
func (c ErrorCode) Error() string {
	name, ok := errorCodeNames[c]
	if !ok {
		return "UNKNOWN"
	}

	return name
}

// ErrorCodeFromError extracts the ErrorCode carried by err. Errors that do
// not carry a kernel code collapse to ErrFail. A nil error must not be
// converted and panics.
func ErrorCodeFromError(err error) ErrorCode {
	if err == nil {
		panic("cannot convert a nil error to an error code")
	}

	var code ErrorCode
	if errors.As(err, &code) {
		return code
	}

	return ErrFail
}
