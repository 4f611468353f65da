package domain

import "errors"

// ErrInvalidStatus is returned when a status value is not recognised
var ErrInvalidStatus = errors.New("domain: invalid appointment status")
