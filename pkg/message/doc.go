/*
Package message implements the typed key/value channels used for state
sharing between sessions and frames.

A Board holds keys that are defined exactly once with a declared type and
an initial value. Values can be consumed (removed while the key and its
type binding survive) and re-set later. Every public operation acquires
the Board's lock for its own duration; Batch extends the lock across a
whole callback so several reads and writes observe a single snapshot.

Capability views (Reader, Updater, Definer, Manager) expose a Board to a
party with exactly the rights its role allows. Typed access goes through
the package-level generic functions (Get, Set, Swap, ...) so the declared
key type is enforced at the call site.

Boards that may cross a process boundary are created with a
serialization check: every written value must survive a JSON round trip,
and a failure surfaces as ErrNotSerializable rather than a type error.
*/
package message
