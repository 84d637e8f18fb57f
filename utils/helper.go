package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/pos_engine/config"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateInput runs struct tag validation on an operation input.
func ValidateInput(input interface{}) error {
	return validate.Struct(input)
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]bool)
	unique := []T{}
	for _, elem := range slice {
		if !seen[elem] {
			seen[elem] = true
			unique = append(unique, elem)
		}
	}
	return unique
}

// BusinessLock obtains a short cross-instance lock for the business via redis.
// The returned release func must be called when the guarded section ends.
// Callers that cannot tolerate a missing redis should treat a nil release as
// "not locked" and fall back to the MySQL advisory posting lock.
func BusinessLock(ctx context.Context, businessId string, lockType string, ttl time.Duration, moduleName string, functionName string) (release func(), err error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, nil
	}
	lockKey := fmt.Sprintf("%s:%s", lockType, businessId)
	lock, err := locker.Obtain(ctx, lockKey, ttl, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for businessID", businessId, err)
		return nil, errors.New("could not obtain lock for businessID")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for businessID", businessId, err)
		return nil, err
	}
	return func() { _ = lock.Release(ctx) }, nil
}
