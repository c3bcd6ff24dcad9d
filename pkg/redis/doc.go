// Package redis connects to Redis for the shared session store and tenant
// cache.
//
// Connect retries the connection according to Config and returns a
// go-redis client; Healthcheck adapts the client to a readiness probe.
//
//	client, err := redis.Connect(ctx, cfg.Redis, log)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	store := session.NewRedisStore(client, "")
//	cache := tenant.NewRedisCache(client, "", log)
//
// Configuration is read from the environment via github.com/caarlos0/env.
// Leaving REDIS_URL empty disables Redis.
package redis
