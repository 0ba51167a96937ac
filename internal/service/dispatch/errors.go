package dispatch

import "errors"

var ErrInvalidRecipient = errors.New("invalid test recipient")
