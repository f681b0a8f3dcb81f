package tdoa

import "errors"

var (
	ErrInvalidCoordinate  = errors.New("invalid coordinate")
	ErrTimeSpreadExceeded = errors.New("time spread exceeded")
	ErrInsufficientQuorum = errors.New("insufficient quorum")
	ErrConvergence        = errors.New("localization did not converge")
)
