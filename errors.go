package driftq

import "errors"

const Namespace = "driftq"

var (
	ErrInvalidConfig = errors.New(Namespace + ": invalid configuration")
	ErrNilWorker     = errors.New(Namespace + ": worker function must not be nil")
	ErrTaskPanicked  = errors.New(Namespace + ": worker panicked")
)
