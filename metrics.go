package binarystore

import (
	internalmetrics "github.com/E8A281E6ACA2/BinaryStore/internal/metrics"
)

// MetricID identifies a counter or histogram in the in-process metrics
// system.
type MetricID = internalmetrics.MetricID

// Metrics is the engine's counter set.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot = internalmetrics.Snapshot

const (
	MetricLoginSuccess                = internalmetrics.MetricLoginSuccess
	MetricLoginFailure                = internalmetrics.MetricLoginFailure
	MetricLoginRateLimited            = internalmetrics.MetricLoginRateLimited
	MetricRateLimiterError            = internalmetrics.MetricRateLimiterError
	MetricSessionCreated              = internalmetrics.MetricSessionCreated
	MetricSessionValidated            = internalmetrics.MetricSessionValidated
	MetricSessionRejected             = internalmetrics.MetricSessionRejected
	MetricSessionStoreError           = internalmetrics.MetricSessionStoreError
	MetricSessionTouchFailure         = internalmetrics.MetricSessionTouchFailure
	MetricLogout                      = internalmetrics.MetricLogout
	MetricSessionRevoked              = internalmetrics.MetricSessionRevoked
	MetricLogoutAll                   = internalmetrics.MetricLogoutAll
	MetricAccountCreationSuccess      = internalmetrics.MetricAccountCreationSuccess
	MetricAccountCreationDuplicate    = internalmetrics.MetricAccountCreationDuplicate
	MetricPasswordResetRequest        = internalmetrics.MetricPasswordResetRequest
	MetricPasswordResetConfirmSuccess = internalmetrics.MetricPasswordResetConfirmSuccess
	MetricPasswordResetConfirmFailure = internalmetrics.MetricPasswordResetConfirmFailure
	MetricNotifyFailure               = internalmetrics.MetricNotifyFailure
	MetricAdminInitialized            = internalmetrics.MetricAdminInitialized
	MetricUserDeleted                 = internalmetrics.MetricUserDeleted
	MetricValidateLatency             = internalmetrics.MetricValidateLatency
)

// NewMetrics returns a counter set configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Enabled,
		EnableLatencyHistograms: cfg.EnableLatencyHistograms,
	})
}
