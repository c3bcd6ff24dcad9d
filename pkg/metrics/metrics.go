// Package metrics exposes Prometheus counters for tenant isolation events.
//
// All Recorder methods are safe to call on a nil *Recorder, so packages can
// accept an optional recorder without guarding every call site.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tenantguard"

// Recorder groups the counters. Create one per registry.
type Recorder struct {
	TenantBinds           *prometheus.CounterVec
	ContextErrors         *prometheus.CounterVec
	CrossTenantViolations *prometheus.CounterVec
	PolicyApplications    *prometheus.CounterVec
}

// New creates a Recorder and registers its collectors on reg.
// A nil reg registers on prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		TenantBinds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tenant_binds_total",
				Help:      "Requests processed by the tenant middleware, by result",
			},
			[]string{"result"},
		),
		ContextErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tenant_context_errors_total",
				Help:      "Failures of the tenant context database functions, by operation",
			},
			[]string{"op"},
		),
		CrossTenantViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cross_tenant_violations_total",
				Help:      "Response objects whose tenant_id did not match the bound tenant",
			},
			[]string{"method"},
		),
		PolicyApplications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rls_policy_apply_total",
				Help:      "Row-level security policy applications, by outcome",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(r.TenantBinds, r.ContextErrors, r.CrossTenantViolations, r.PolicyApplications)
	return r
}

// Bind counts a tenant middleware outcome (bound, public, rejected, error).
func (r *Recorder) Bind(result string) {
	if r == nil {
		return
	}
	r.TenantBinds.WithLabelValues(result).Inc()
}

// ContextError counts a failed context operation (set, get, clear, reset, admin).
func (r *Recorder) ContextError(op string) {
	if r == nil {
		return
	}
	r.ContextErrors.WithLabelValues(op).Inc()
}

// CrossTenantViolation counts one mismatching response object.
func (r *Recorder) CrossTenantViolation(method string) {
	if r == nil {
		return
	}
	r.CrossTenantViolations.WithLabelValues(method).Inc()
}

// PolicyApplied counts a policy application outcome.
func (r *Recorder) PolicyApplied(result string) {
	if r == nil {
		return
	}
	r.PolicyApplications.WithLabelValues(result).Inc()
}
