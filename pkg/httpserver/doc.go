// Package httpserver runs the HTTP API with graceful shutdown, configurable
// timeouts and health probes.
//
// Run listens immediately, so a bad address is reported before serving
// starts, then blocks until the context is cancelled, SIGINT or SIGTERM
// arrives, or Shutdown is called. Shutdown waits up to the configured
// deadline for in-flight requests, which lets the tenant middleware clear and
// release every leased connection before the pool is closed.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	r.Get("/livez", httpserver.LivenessHandler())
//	r.Get("/healthz", httpserver.ReadinessHandler(log, cfg.HTTP.HealthTimeout,
//		httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)},
//	))
//	if err := srv.Run(ctx, r); err != nil {
//		return err
//	}
//
// Errors are wrapped with ErrStart and ErrShutdown for errors.Is.
package httpserver
