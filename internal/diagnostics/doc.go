// Package diagnostics reports host resources for the /system endpoint and
// guards media commands with pre-flight resource checks.
package diagnostics
