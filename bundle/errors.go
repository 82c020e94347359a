package bundle

import "errors"

// ErrVersion is returned for bundles written by an incompatible version.
var ErrVersion = errors.New("bundle: unsupported format version")
