// Package api implements the HTTP REST API and WebSocket server of the field
// I/O core.
//
// Routes live under /api/v1:
//
//	GET    /health                                    component health, no auth
//	GET    /metrics                                   runtime and queue counters, no auth
//	POST   /auth/ws-ticket                            single-use WebSocket ticket
//	GET    /fields/topology                           discovery (binary, or JSON on Accept)
//	POST   /fields/poll                               binary poll packet, 409 resync_required when stale
//	GET    /drivers                                   driver list and registry stats
//	GET    /drivers/{moniker}                         driver with live fields
//	DELETE /drivers/{moniker}                         unregister a driver
//	GET    /drivers/{moniker}/values                  persisted last values
//	GET    /drivers/{moniker}/fields/{name}           one live field
//	PUT    /drivers/{moniker}/fields/{name}           write from text, 422 on a limit violation
//	POST   /drivers/{moniker}/fields/{name}/step      next or previous limit value
//	GET    /drivers/{moniker}/fields/{name}/history   change history, newest first
//	GET    /events                                    trigger event log page
//	GET    /ws?ticket=...                             trigger events as they fire
//
// Everything except health, metrics and the WebSocket needs an HS256 bearer
// token signed with the configured secret (see IssueToken).
//
// WebSocket clients subscribe to "field.trigger" for every event or to
// "field.trigger:<moniker>" for one driver.
package api
