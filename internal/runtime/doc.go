/*
Package runtime wires the SQS reporter together.

# Architecture Overview

A Reporter receives engine events through its hook methods, either called
directly by the host or delivered by an in-process Watermill bus (see
Attach). Each event flows through the same pipeline:

	hook -> envelope.Translator -> envelope.Encode -> dispatch.Dispatcher.Submit

Submit increments an outstanding-send counter and hands the message to the
queue client on its own goroutine. The counter is decremented exactly once
when the send settles, whether it succeeded or failed.

# Package Structure

  - config: layered configuration (environment, then plugin section, then defaults)
  - tags: message attributes and the testId grouping key
  - envelope: event to JSON body translation
  - dispatch: asynchronous SendMessage calls, tracing and metrics
  - drain: the shutdown wait on the outstanding counter
  - bus: the engine event bus (Watermill gochannel)
  - metrics: Prometheus collectors for the dispatcher
  - logging, errors, ids, jsoncodec: shared plumbing

# Shutdown

Cleanup returns immediately and calls its callback from a background
goroutine once the outstanding counter reads zero. The counter is checked at
once and then every PollInterval. A failed send still settles, so a failure
never stalls shutdown.
*/
package runtime
