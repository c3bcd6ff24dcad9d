// Package session loads server-side sessions for incoming requests.
//
// A session is addressed by an opaque token sent in a header or cookie and
// persisted in a Store (MemoryStore or RedisStore). Middleware attaches the
// loaded session to the request context; the tenant middleware reads the
// "tenant_id" key from it as a fallback identifier source.
//
//	store := session.NewRedisStore(rdb, cfg.RedisPrefix)
//	r.Use(session.Middleware(store, session.WithConfig(cfg)))
package session
