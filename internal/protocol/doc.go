// Package protocol runs the shared read loop for every side of the bridge.
//
// The Controller reads decoded envelopes from a transport, parses each one
// into a typed message and hands it to the side's Handler in arrival order.
// Envelopes with an unknown action or a malformed body are logged and
// skipped; a fatal transport error or the end of the stream stops the loop.
//
// The Controller also owns the lifetime of the goroutines a side spawns to
// serve individual messages, so Stop cancels and waits for all of them.
//
// Example usage:
//
//	controller := protocol.NewController(log, transport, func(ctx context.Context, msg message.Message) {
//		// route msg
//	})
//	controller.Start(ctx)
//	defer controller.Stop()
//
//	controller.Send(ctx, &message.Ready{Server: true})
package protocol
