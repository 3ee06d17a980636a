package firestoretest

import "testing"

// StartEmulator is called from integration tests only; this keeps its signature checked by the
// default build.
func TestStartEmulatorTakesTestingT(t *testing.T) {
	var start func(*testing.T) string = StartEmulator
	if start == nil {
		t.Fatal("expected StartEmulator to be defined")
	}
}
