// Package audit delivers authentication events to pluggable sinks.
//
// [Dispatcher] is a buffered asynchronous relay in front of a [Sink]. With
// DropIfFull set, a saturated buffer drops events and counts them instead of
// stalling the request path.
//
// Which events to emit is decided by the engine, never here.
package audit
