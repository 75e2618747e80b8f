package db

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

const DefaultMaxRetries = 3

// Try executes an operation, retrying duplicate key errors with default
// settings. Intended for writes where a duplicate key means another process
// got there first and the operation is idempotent, such as the startup
// category seed racing a second instance. Business-rule duplicates (a second
// pending purchase request) must NOT go through here; those map to Conflict.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsDuplicateKeyError)
}

// WithRetries executes an operation up to maxRetries+1 times, retrying with
// incremental backoff while shouldRetry reports true. Any other error returns
// immediately.
func WithRetries(op Operation, maxRetries int, shouldRetry func(error) bool) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}
		if !shouldRetry(err) {
			return err
		}
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
	}
	return err
}

// IsDuplicateKeyError checks if an error from MongoDB is a duplicate key error
// (code 11000). The unique pending-request index reports a duplicate purchase
// request this way; callers translate it into a business-rule Conflict rather
// than retrying.
func IsDuplicateKeyError(err error) bool {
	var e mongo.WriteException
	if errors.As(err, &e) {
		for _, we := range e.WriteErrors {
			if we.Code == 11000 {
				return true
			}
		}
	}
	// Also check for BulkWriteException, which can contain duplicate key errors
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, writeError := range bwe.WriteErrors {
			if writeError.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return false
}
