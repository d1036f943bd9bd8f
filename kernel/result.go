package kernel

// A CommandResult is the value a driver command returns to the calling
// process. It is either a success, optionally carrying a 32-bit payload, or a
// failure carrying an ErrorCode.
type CommandResult struct {
	failure ErrorCode
	value   uint32
}

// CommandSuccess returns a plain success result.
func CommandSuccess() CommandResult {
	return CommandResult{}
}

// CommandSuccessU32 returns a success result carrying one 32-bit value.
func CommandSuccessU32(v uint32) CommandResult {
	return CommandResult{value: v}
}

// CommandFailure returns a failure result carrying the given error code.
func CommandFailure(code ErrorCode) CommandResult {
	if code == 0 {
		panic("a command failure must carry an error code")
	}

	return CommandResult{failure: code}
}

// IsSuccess tells if the command succeeded.
func (r CommandResult) IsSuccess() bool {
	return r.failure == 0
}

// ReturnValue returns the payload of a successful result. It is zero for
// plain successes and for failures.
func (r CommandResult) ReturnValue() uint32 {
	return r.value
}

// Code returns the error code of a failed result, or zero on success.
func (r CommandResult) Code() ErrorCode {
	return r.failure
}
