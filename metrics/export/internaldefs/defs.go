package internaldefs

import (
	binarystore "github.com/E8A281E6ACA2/BinaryStore"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   binarystore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   binarystore.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "binarystore_audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: binarystore.MetricLoginSuccess, Name: "binarystore_login_success_total", Help: "Successful login attempts."},
	{ID: binarystore.MetricLoginFailure, Name: "binarystore_login_failure_total", Help: "Failed login attempts."},
	{ID: binarystore.MetricLoginRateLimited, Name: "binarystore_login_rate_limited_total", Help: "Login attempts rejected by the rate limiter."},
	{ID: binarystore.MetricRateLimiterError, Name: "binarystore_rate_limiter_error_total", Help: "Rate limiter backend errors that were allowed through."},
	{ID: binarystore.MetricSessionCreated, Name: "binarystore_session_created_total", Help: "Created sessions."},
	{ID: binarystore.MetricSessionValidated, Name: "binarystore_session_validated_total", Help: "Session validations that succeeded."},
	{ID: binarystore.MetricSessionRejected, Name: "binarystore_session_rejected_total", Help: "Unknown, revoked or expired sessions presented."},
	{ID: binarystore.MetricSessionStoreError, Name: "binarystore_session_store_error_total", Help: "Session lookups that failed at the store."},
	{ID: binarystore.MetricSessionTouchFailure, Name: "binarystore_session_touch_failure_total", Help: "Background lastAccessAt updates that failed."},
	{ID: binarystore.MetricLogout, Name: "binarystore_logout_total", Help: "Single-session logout operations."},
	{ID: binarystore.MetricSessionRevoked, Name: "binarystore_session_revoked_total", Help: "Sessions revoked by an administrator."},
	{ID: binarystore.MetricLogoutAll, Name: "binarystore_logout_all_total", Help: "Revoke-all-sessions operations."},
	{ID: binarystore.MetricAccountCreationSuccess, Name: "binarystore_account_creation_success_total", Help: "Successful account creations."},
	{ID: binarystore.MetricAccountCreationDuplicate, Name: "binarystore_account_creation_duplicate_total", Help: "Account creation attempts rejected as duplicate."},
	{ID: binarystore.MetricPasswordResetRequest, Name: "binarystore_password_reset_request_total", Help: "Password reset requests."},
	{ID: binarystore.MetricPasswordResetConfirmSuccess, Name: "binarystore_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: binarystore.MetricPasswordResetConfirmFailure, Name: "binarystore_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: binarystore.MetricNotifyFailure, Name: "binarystore_notify_failure_total", Help: "Password reset notifications that could not be sent."},
	{ID: binarystore.MetricAdminInitialized, Name: "binarystore_admin_initialized_total", Help: "First-run admin initializations."},
	{ID: binarystore.MetricUserDeleted, Name: "binarystore_user_deleted_total", Help: "Accounts deleted by an administrator."},
}

// LabeledSeries is one counter rendered as a labeled series of a family.
type LabeledSeries struct {
	ID    binarystore.MetricID
	Value string
}

// LabeledDef folds related counters into one family keyed by Label, so a
// dashboard can sum or split them without knowing every counter name.
type LabeledDef struct {
	Name   string
	Help   string
	Label  string
	Series []LabeledSeries
}

// LabeledDefs lists the labeled families in render order. Their members
// are also exported individually in [CounterDefs].
var LabeledDefs = []LabeledDef{
	{
		Name:  "binarystore_login_attempts_total",
		Help:  "Login attempts by outcome.",
		Label: "outcome",
		Series: []LabeledSeries{
			{ID: binarystore.MetricLoginSuccess, Value: "success"},
			{ID: binarystore.MetricLoginFailure, Value: "failure"},
			{ID: binarystore.MetricLoginRateLimited, Value: "rate_limited"},
		},
	},
	{
		Name:  "binarystore_admin_actions_total",
		Help:  "Completed admin actions by action.",
		Label: "action",
		Series: []LabeledSeries{
			{ID: binarystore.MetricSessionRevoked, Value: binarystore.AdminActionRevokeSession},
			{ID: binarystore.MetricLogoutAll, Value: binarystore.AdminActionRevokeAllSessions},
			{ID: binarystore.MetricUserDeleted, Value: binarystore.AdminActionDeleteUser},
		},
	},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: binarystore.MetricValidateLatency, Name: "binarystore_validate_latency_seconds", Help: "Session validation latency."},
}

// HistogramBounds are the upper bounds of the latency buckets in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in a form usable in metric names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling
// missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
