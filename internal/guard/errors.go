package guard

// AlreadySwitchedError is returned when SwitchTo is called while an
// impersonation window is already open. The caller must Reset first.
type AlreadySwitchedError struct{}

func (e *AlreadySwitchedError) Error() string {
	return "must reset previous user prior to setting again"
}

// NotSwitchedError is returned when Reset is called with no open window.
type NotSwitchedError struct{}

func (e *NotSwitchedError) Error() string {
	return "must set user prior to resetting"
}

// InvalidInvocationError is returned for an invocation shape outside the
// two supported forms. It signals a caller protocol violation; the guard
// fails loudly rather than guess intent.
type InvalidInvocationError struct {
	Arity int
}

func (e *InvalidInvocationError) Error() string {
	return "unexpected argument combination"
}
