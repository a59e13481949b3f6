// Package dispatch runs notifications produced on the radio callback
// goroutine on the consumer's own goroutine, in FIFO order.
//
// The queue is bounded. Schedule never blocks; when the queue is full the
// notification is dropped and counted. The consumer drains the queue either
// by calling Iterate from its own loop or by handing a goroutine to Run.
// Only one goroutine may drain a Dispatcher at a time.
package dispatch
