// Package redis connects hostkit services to Redis through go-redis and
// provides Locker, a lease-based mutex used to serialize payment
// confirmations for one user across service instances.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	locker := redis.NewLocker(client, redis.WithRetryInterval(25*time.Millisecond))
//	svc := billing.NewService(catalog, store, billing.WithLocker(locker))
//
// A lock is a key set with SET NX PX holding a random token. Release deletes
// the key only if it still holds that token, so an instance whose lease
// expired cannot free a lock taken over by someone else.
package redis
