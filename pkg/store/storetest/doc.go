// Package storetest provides a conformance test suite for store backends.
//
// All store backends (memory, fs, s3) should pass these tests. The suite
// verifies the store.Store contract the engine relies on: parent checks,
// type mismatches, atomic writes and the optional native operations.
//
// Usage:
//
//	func TestConformance(t *testing.T) {
//	    storetest.RunConformanceSuite(t, func(t *testing.T) store.Store {
//	        return memory.New()
//	    })
//	}
//
// The factory receives *testing.T so it can call t.TempDir() for backends
// that need a directory and t.Cleanup for teardown.
package storetest
