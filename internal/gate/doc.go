// Package gate provides a single-shot synchronization primitive.
//
// A Gate starts armed and can be triggered at most once. Waiters block until
// the gate is triggered, a timeout elapses, or their context ends. Because the
// triggered state is monotonic and checked before blocking, a trigger that
// happens before anyone waits is never lost.
package gate
