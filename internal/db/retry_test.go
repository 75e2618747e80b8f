package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func duplicateKeyErr() error {
	return mongo.WriteException{
		WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}},
	}
}

func TestWithRetries_SucceedsAfterRetry(t *testing.T) {
	attempts := 0
	err := WithRetries(func() error {
		attempts++
		if attempts < 3 {
			return duplicateKeyErr()
		}
		return nil
	}, DefaultMaxRetries, IsDuplicateKeyError)

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetries_GivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := WithRetries(func() error {
		attempts++
		return duplicateKeyErr()
	}, 2, IsDuplicateKeyError)

	assert.Error(t, err)
	assert.True(t, IsDuplicateKeyError(err))
	// Initial attempt plus two retries.
	assert.Equal(t, 3, attempts)
}

func TestWithRetries_NonRetryableReturnsImmediately(t *testing.T) {
	attempts := 0
	boom := errors.New("connection reset")
	err := WithRetries(func() error {
		attempts++
		return boom
	}, DefaultMaxRetries, IsDuplicateKeyError)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestTry_RetriesDuplicateKey(t *testing.T) {
	attempts := 0
	err := Try(func() error {
		attempts++
		if attempts == 1 {
			return duplicateKeyErr()
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestIsDuplicateKeyError(t *testing.T) {
	assert.True(t, IsDuplicateKeyError(duplicateKeyErr()))
	assert.True(t, IsDuplicateKeyError(mongo.CommandError{Code: 11000}))
	assert.False(t, IsDuplicateKeyError(errors.New("not found")))
	assert.False(t, IsDuplicateKeyError(nil))
}
