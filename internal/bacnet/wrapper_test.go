package bacnet

import (
	"context"
	"errors"
	"testing"
)

func TestWrapperLazyConnect(t *testing.T) {
	fc := newFakeClient()
	w := NewWrapper(ReaderConfig{ID: "r1"}, fc)

	if w.IsConnected() {
		t.Fatal("wrapper should not be connected before first use")
	}

	fc.presentValues["analogInput:1"] = 42.0
	if _, err := w.ReadPresentValue(context.Background(), "10.0.0.1", ObjectRef{Type: ObjectAnalogInput, Instance: 1}); err != nil {
		t.Fatalf("ReadPresentValue: %v", err)
	}
	if !w.IsConnected() {
		t.Fatal("wrapper should be connected after first operation")
	}
}

func TestWrapperActiveOperationsIsZeroOrOne(t *testing.T) {
	fc := newFakeClient()
	w := NewWrapper(ReaderConfig{ID: "r1"}, fc)

	if w.ActiveOperations() != 0 {
		t.Fatalf("expected 0 active operations before use, got %d", w.ActiveOperations())
	}
	fc.presentValues["analogInput:1"] = 1.0
	_, _ = w.ReadPresentValue(context.Background(), "10.0.0.1", ObjectRef{Type: ObjectAnalogInput, Instance: 1})
	if w.ActiveOperations() != 0 {
		t.Fatalf("expected active operations to settle back to 0, got %d", w.ActiveOperations())
	}
}

func TestWrapperReadMultiplePointsFillsMissingEntries(t *testing.T) {
	fc := newFakeClient()
	fc.multiResult = map[string]PropertyValues{
		"analogInput:1": {PropPresentValue: 72.5},
	}
	w := NewWrapper(ReaderConfig{ID: "r1"}, fc)

	reqs := []PointRequest{
		{Object: ObjectRef{Type: ObjectAnalogInput, Instance: 1}, Properties: []PropertyName{PropPresentValue}},
		{Object: ObjectRef{Type: ObjectAnalogOutput, Instance: 2}, Properties: []PropertyName{PropPresentValue}},
	}
	out, err := w.ReadMultiplePoints(context.Background(), "10.0.0.1", reqs)
	if err != nil {
		t.Fatalf("ReadMultiplePoints: %v", err)
	}
	if len(out["analogOutput:2"]) != 0 {
		t.Fatalf("expected empty property map for missing entry, got %v", out["analogOutput:2"])
	}
	if out["analogInput:1"][PropPresentValue] != 72.5 {
		t.Fatalf("unexpected present value: %v", out["analogInput:1"])
	}
}

func TestWrapperWriteWithPriorityVerifiesReadback(t *testing.T) {
	fc := newFakeClient()
	obj := ObjectRef{Type: ObjectAnalogOutput, Instance: 2}
	fc.presentValues[ObjectKey(obj.Type, obj.Instance)] = 25.0
	// Clearing writtenValue does not stub the write: the fake's
	// WriteWithPriority still stores the written value in presentValues,
	// so the read-back below returns 30.0.
	fc.writtenValue = nil

	w := NewWrapper(ReaderConfig{ID: "r1"}, fc)

	// Force a verification failure: the fake client will record 30.0 as
	// written (since WriteWithPriority on the fake sets presentValues),
	// so instead test the success path here and the failure path below
	// with a client whose write silently no-ops.
	if err := w.WriteWithPriority(context.Background(), "10.0.0.1", obj, 30.0, 8); err != nil {
		t.Fatalf("expected write verification to succeed, got %v", err)
	}
}

type noopWriteClient struct{ *fakeClient }

func (c *noopWriteClient) WriteWithPriority(ctx context.Context, ip string, obj ObjectRef, value any, priority int) error {
	return nil // pretend the write succeeded but the device ignored it
}

func TestWrapperWriteWithPriorityFailsOnMismatch(t *testing.T) {
	fc := &noopWriteClient{fakeClient: newFakeClient()}
	obj := ObjectRef{Type: ObjectAnalogOutput, Instance: 2}
	fc.presentValues[ObjectKey(obj.Type, obj.Instance)] = 25.0

	w := NewWrapper(ReaderConfig{ID: "r1"}, fc)
	err := w.WriteWithPriority(context.Background(), "10.0.0.1", obj, 30.0, 8)
	if !errors.Is(err, ErrWriteVerificationFailed) {
		t.Fatalf("expected ErrWriteVerificationFailed, got %v", err)
	}
}
