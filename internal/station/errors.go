package station

import "errors"

var (
	ErrCommandRejected     = errors.New("command not valid in current state")
	ErrStatusNotConfirmed  = errors.New("status upload not confirmed by hub")
	ErrRegistrationRefused = errors.New("registration refused by hub")
	ErrAccessCodeDelivery  = errors.New("access code delivery failed")
	ErrNotOnline           = errors.New("station is not online")
	ErrStopped             = errors.New("station controller has been cleaned up")
	ErrUnknownState        = errors.New("unknown lifecycle state")
	ErrInvalidConfig       = errors.New("invalid station configuration")
)
