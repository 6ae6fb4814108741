// ABOUTME: Level relay wire protocol package
// ABOUTME: Defines protocol messages and the WebSocket display client
// Package protocol implements the JSON protocol used to stream channel
// levels from a metering relay to remote displays.
//
// After the hello exchange the relay sends one stream/format message and
// then a stream/levels message per metered buffer, in capture order.
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{ServerAddr: "localhost:8928", Queue: queue})
//	err := client.Connect(ctx)
//	err = client.SendVolume(0.8)
package protocol
