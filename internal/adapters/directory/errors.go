package directory

import "errors"

// ErrLoadDirectory reports an unreadable or malformed seed file.
var ErrLoadDirectory = errors.New("load directory failed")
