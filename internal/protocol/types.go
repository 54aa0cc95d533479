package protocol

var (
	ErrUnknownCode  = errorString("unknown_command")
	ErrFieldCount   = errorString("field_count")
	ErrNumber       = errorString("bad_number")
	ErrSeatCount    = errorString("seat_count")
	ErrFrame        = errorString("bad_frame")
	ErrRegistration = errorString("bad_registration")
)

type errorString string

func (e errorString) Error() string { return string(e) }
