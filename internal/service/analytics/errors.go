package analytics

import "errors"

// ErrArchiveDisabled is returned by Archive when no object store is configured.
var ErrArchiveDisabled = errors.New("report archiving is not configured")
