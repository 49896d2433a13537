package nsenter

import (
	"fmt"
	"io"
	"testing"

	"yawl/pkg/logger"
	"yawl/pkg/platform"
)

const testTarget = 123

func testLogger() *logger.Logger {
	return logger.NewWithConfig(logger.Config{Level: logger.ERROR, Output: io.Discard})
}

// newTestPlatform returns a mock where target and caller live in
// different namespaces of every kind
func newTestPlatform() *platform.MockPlatform {
	mp := platform.NewMockPlatform()
	for i, k := range Kinds() {
		mp.AddNamespace(targetPath(k.Entry()), uint64(100+i))
		mp.AddNamespace("/proc/self/"+k.Entry(), uint64(200+i))
	}
	return mp
}

func targetPath(entry string) string {
	return fmt.Sprintf("/proc/%d/%s", testTarget, entry)
}

func newTestEngine(mp *platform.MockPlatform) *Engine {
	e := New(mp, nil, testLogger())
	e.handoffEnabled = false
	return e
}

func testOptions(kinds ...Kind) Options {
	opts := NewOptions()
	opts.Target = testTarget
	opts.Args = []string{"sh"}
	for _, k := range kinds {
		opts.Namespaces = append(opts.Namespaces, NamespaceRequest{Kind: k})
	}
	return opts
}

func callIndex(t *testing.T, mp *platform.MockPlatform, call string) int {
	t.Helper()
	for i, c := range mp.Calls {
		if c == call {
			return i
		}
	}
	t.Fatalf("call %q not made; calls: %v", call, mp.Calls)
	return -1
}

func countCalls(mp *platform.MockPlatform, call string) int {
	n := 0
	for _, c := range mp.Calls {
		if c == call {
			n++
		}
	}
	return n
}
