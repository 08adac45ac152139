// Package ws streams a mounted widget over a WebSocket.
//
// Message types (server to client):
//   - snapshot: current html and state, sent once on connect
//   - patch: tree mutations applied to the surface
//   - state: the state that was just rendered
//   - log: a guest log line
//   - persist: a snapshot that differed from the last persisted one
//   - pong: reply to ping
//   - error: a client message could not be handled
//
// Message types (client to server):
//   - event: publish an event onto the bus
//   - resize: resize the widget's container
//   - transition: report exit transition progress (run, end, cancel)
//   - ping: keep-alive
//
// The stream ends when the widget is unmounted or the client goes away.
//
//	handler := ws.NewHandler(manager, metrics, logger)
//	router.GET("/widgets/:id/stream", handler.HandleStream)
package ws
