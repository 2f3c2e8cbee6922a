package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/dcconcretos/remisiones_backend/config"
)

// OrderLock serializes mutation per order across instances.
// Dedup-then-insert in the reconciler is a check-then-act sequence, so
// at most one apply may be in flight for a given order id.
// The returned release func must be deferred by the caller.
func OrderLock(ctx context.Context, orderId string, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when the Redis lock isn't initialized yet.
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", orderId, errors.New("redis lock is nil"))
		return nil, errors.New("service not ready (redis lock not initialized)")
	}

	lockKey := fmt.Sprintf("orderApply:%s", orderId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for order", orderId, err)
		return nil, errors.New("could not obtain lock for order")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for order", orderId, err)
		return nil, err
	}

	return func() {
		_ = lock.Release(ctx)
	}, nil
}
