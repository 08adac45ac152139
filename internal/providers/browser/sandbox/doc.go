/*
Package sandbox runs untrusted widget scripts inside isolated goja runtimes.

# Overview

Each mounted widget gets a Worker: one goroutine, one mailbox of host
messages and, after init, one Runtime. The runtime exposes a deliberately
small surface:

  - base ECMAScript objects, JSON and Math
  - EKG.registerWidget and EKG.utils.chatToText
  - a console shim whose output becomes log messages
  - Math.random seeded from the widget source

require, process, module, exports, Date, Promise and friends are removed.
Timers exist but never fire.

# Protocol

Host messages are types.Incoming values handled strictly in order:

	idle --init--> running --Terminate--> terminated
	  ^              |
	  +--eval fails--+

A second init while running is a ProtocolError and terminates the worker.
resize updates ctx.size and synthesizes a RESIZE event. Every event runs
handleEvent with a fresh context whose random() is seeded by the event id,
"TICK" for ticks, or the widget name. A result that is undefined, null or
the same reference as the current state is ignored; anything else is
serialized and emitted as a state message.

# Serialization

Values cross the boundary as JSON text: the guest's own JSON.stringify on
the way out and sonic on the host side. A value that cannot be serialized
is logged at error level and the previous state stays authoritative.

# Limits

Every guest call runs under Config.HandlerTimeout; on expiry the runtime
is interrupted, an error is logged and the worker keeps going.
Config.MaxCallStackSize bounds recursion.

# Usage Example

	w := sandbox.NewWorker(sandbox.DefaultConfig(), func(msg types.Outgoing) {
		msg.Accept(handler)
	}, sandbox.WithSpawner(pool))

	w.Post(&types.InitMessage{Init: payload})
	w.Post(&types.EventMessage{Event: ev})

	state, err := w.Snapshot(ctx)
	w.Terminate()
*/
package sandbox
