package autobuild

import "errors"

// ErrAnotherAutobuildActive is returned by StartAutobuild when a loop is
// already in progress.
var ErrAnotherAutobuildActive = errors.New("another autobuild loop is already active")
