/*
Package domain contains the core domain model of the frame runtime.

It defines the fundamental vocabulary shared by every layer: execution
realms, frame phases, the error-marking protocol, frame results, and the
lifecycle event callbacks used for observability. This package is kept
pure and free of external dependencies like I/O or persistence.

# Key Entities

  - Realm: Where a frame's routine runs (goroutine or subprocess).
  - Phase: The monotonic load/active/terminated progression of a frame.
  - FrameResult: The published outcome of one frame, carrying the mark
    applied by the error-handling protocol.
  - LifecycleEvents: Callbacks fired as frames move through their phases.
*/
package domain
