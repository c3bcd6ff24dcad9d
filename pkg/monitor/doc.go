// Package monitor watches tenant-scoped responses for rows that belong to a
// different tenant.
//
// Row-level security should make such responses impossible, so any hit
// means a policy is missing or a handler queried outside its bound
// connection. The monitor only reports: each mismatching object is logged at
// CRITICAL level and counted, and the response is delivered unchanged.
//
// Install it inside the tenant middleware:
//
//	r.Use(tenant.Middleware(acq, ...))
//	r.Use(monitor.Middleware(monitor.WithLogger(log), monitor.WithMetrics(rec)))
//
// JSON objects with a tenant_id field are checked, as are the elements of a
// top-level array and of the results, data or items member of an envelope.
package monitor
