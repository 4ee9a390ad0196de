package loan

import "errors"

var (
	ErrNotFound              = errors.New("loan not found")
	ErrInvalidLtv            = errors.New("requested ltv exceeds duration tier maximum")
	ErrInsufficientRepayment = errors.New("repayment below total outstanding debt")
	ErrAlreadyTerminal       = errors.New("loan is already repaid or liquidated")
	ErrInvalidTransition     = errors.New("invalid loan state transition")
	ErrStaleVersion          = errors.New("loan modified concurrently, retry")
)
