package chels

import "errors"

// ErrNoRoot reports that a file-structure request names a URI that does not
// resolve to an indexed source file. Surfaced before any traversal begins.
var ErrNoRoot = errors.New("uri does not resolve to an indexed file")
