package utils

import (
	"context"
	"time"
)

// Per-request deadlines for handlers.
const (
	// DefaultTimeout covers single-document reads and writes.
	DefaultTimeout = 10 * time.Second

	// LongTimeout covers calls to the answering model.
	LongTimeout = 60 * time.Second

	// UploadTimeout covers storage upload plus inline text extraction.
	UploadTimeout = 2 * time.Minute
)

func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

func WithLongTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, LongTimeout)
}

func WithUploadTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, UploadTimeout)
}
