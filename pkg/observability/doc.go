/*
Package observability provides tools for monitoring the frame runtime.

It translates lifecycle events into Prometheus metrics: frame starts and
completions by realm and status, circuit stage counters, and frame
duration histograms. Wire it in through the session or frame lifecycle
event callbacks.
*/
package observability
