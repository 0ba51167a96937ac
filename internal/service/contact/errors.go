package contact

import "errors"

var (
	ErrNotFound      = errors.New("contact not found")
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrMissingEmail  = errors.New("import file has no email column")
	ErrInvalidInput  = errors.New("invalid contact")
	ErrNoObjectStore = errors.New("no object store configured")
)
