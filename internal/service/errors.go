package service

import "errors"

var (
	// ErrDealExists is returned when a deal with the same code is already stored
	ErrDealExists = errors.New("deal already exists")

	// ErrDealNotFound is returned when a deal cannot be found
	ErrDealNotFound = errors.New("deal not found")

	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")
)
