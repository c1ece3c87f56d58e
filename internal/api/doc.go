// Package api exposes the reminder engine over HTTP with a chi router.
//
// Lead intake systems call POST /v1/reminders to start a chain and
// POST /v1/conversions once a recipient books; schedulers outside the daemon
// may call POST /v1/reminders/run instead of relying on the built-in trigger.
// Responses use a {"data": ...} or {"error": {...}} envelope, and reminder
// validation failures map to 422 with per-field details.
package api
