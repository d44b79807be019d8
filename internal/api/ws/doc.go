// Package ws streams simulation runs over WebSocket.
//
// Clients send {"type":"simulate", ...} with the same fields as
// POST /v1/simulate and receive one "event" frame per lifecycle message in
// posting order, then a "complete" frame carrying the run. {"type":"ping"}
// is answered with "pong".
package ws
