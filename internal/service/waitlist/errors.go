package waitlist

import "errors"

var (
	ErrAlreadyOnWaitlist = errors.New("already on waitlist for this seat")
	ErrEntryNotFound     = errors.New("waitlist entry not found")
	ErrForbidden         = errors.New("waitlist entry belongs to another passenger")
)
