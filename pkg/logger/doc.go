// Package logger builds *slog.Logger instances with a consistent layout for
// every tenantguard component.
//
// New takes functional options that pick the output format, the minimum
// level, static attributes and ContextExtractor callbacks. Extractors run on
// every record, so values such as the bound tenant id or the request id show
// up without being passed explicitly:
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "tenantguard"),
//	    logger.WithContextExtractors(tenant.LoggerExtractor(), requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "policy applied", logger.Table("public.orders"))
//
// Security events are logged at LevelCritical, which renders as "CRITICAL"
// and sits above slog.LevelError:
//
//	logger.Critical(ctx, log, "tenant context required but not found",
//	    logger.SecurityEvent("missing_tenant"),
//	    logger.Path(r.URL.Path),
//	)
//
// Attribute helpers in attr.go keep key names stable across packages. Error
// and Errors return an empty attribute for nil errors, so callers can pass
// them unconditionally.
package logger
