package services

import (
	"context"
	"fmt"
	"io"
)

// FetchSlots bounds concurrent page fetches and response body size
type FetchSlots struct {
	semaphore   chan struct{}
	maxBodySize int64
}

// NewFetchSlots creates a limiter admitting maxConcurrent fetches at once
func NewFetchSlots(maxConcurrent int, maxBodySize int64) *FetchSlots {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &FetchSlots{
		semaphore:   make(chan struct{}, maxConcurrent),
		maxBodySize: maxBodySize,
	}
}

// Acquire waits for a free slot
func (fs *FetchSlots) Acquire(ctx context.Context) error {
	select {
	case fs.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for fetch slot: %w", ctx.Err())
	}
}

// Release frees a slot taken by Acquire
func (fs *FetchSlots) Release() {
	<-fs.semaphore
}

// ReadBody reads at most maxBodySize bytes and fails on larger bodies
func (fs *FetchSlots) ReadBody(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, fs.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(data)) > fs.maxBodySize {
		return nil, fmt.Errorf("response body too large (max %d bytes)", fs.maxBodySize)
	}
	return data, nil
}
