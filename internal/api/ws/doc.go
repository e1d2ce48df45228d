// Package ws streams module lifecycle events to the admin UI.
//
// Every committed transition, import, purge and rescan is pushed to the
// connected clients as one JSON text frame.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: Connection greeting with the current registry revision
//   - transition, imported, scanned, purged: lifecycle events
//   - pong: Reply to ping
//   - error: Malformed client message
//
// A ?module=<id> query parameter limits the stream to one module.
//
// Example Usage:
//
//	handler := ws.NewHandler(bus, store, metrics, logger)
//	router.GET("/events", handler.HandleConnection)
package ws
