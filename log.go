package uthsync

import (
	"io"

	"github.com/sirupsen/logrus"
)

// discardLogger is used by every primitive unless a caller supplies its
// own via WithLogger. Kept silent by default: the hot uncontended path
// never logs.
var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()
