package domain

import "errors"

var (
	// ErrDispatchFailed signals that a remote search job could not be started.
	ErrDispatchFailed = errors.New("search job dispatch failed")
	// ErrJobTimeout signals that a remote job did not finish within the poll budget.
	ErrJobTimeout = errors.New("search job did not complete in time")
	// ErrCollectorDisabled signals that no event collector is configured.
	ErrCollectorDisabled = errors.New("event collector not configured")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCorpusEmpty signals a sensitive-term corpus with no usable terms.
	ErrCorpusEmpty = errors.New("sensitive term corpus is empty")
)
