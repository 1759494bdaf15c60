package repository

import (
	"context"
	"time"
)

// Per-call deadlines applied on top of the caller's context
const (
	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
	bulkTimeout  = 30 * time.Second
)

func readContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, readTimeout)
}

func writeContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, writeTimeout)
}

// bulkContext covers event listing and batch inserts, which scale with dataset size
func bulkContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, bulkTimeout)
}
