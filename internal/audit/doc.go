// Package audit records session and worker lifecycle events in the
// audit_logs table. Input events are never stored.
package audit
