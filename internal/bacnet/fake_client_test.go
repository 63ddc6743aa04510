package bacnet

import (
	"context"
	"fmt"
	"sync"
)

// fakeClient is a hand-written test double for Client rather than a
// generated mock.
type fakeClient struct {
	mu sync.Mutex

	connected bool
	connectErr error

	whoIsResult []uint32
	whoIsErr    error
	whoIsCalls  int

	objectList []ObjectRef

	presentValues map[string]any
	presentValueErr error

	properties map[string]PropertyValues

	multiResult map[string]PropertyValues
	multiErr    error
	multiCalls  int

	writeErr error

	writtenValue any
	writtenPriority int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		presentValues: make(map[string]any),
		properties:    make(map[string]PropertyValues),
	}
}

func (f *fakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) WhoIs(ctx context.Context, address string) ([]uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.whoIsCalls++
	return f.whoIsResult, f.whoIsErr
}

func (f *fakeClient) ReadObjectList(ctx context.Context, ip string, deviceInstance uint32) ([]ObjectRef, error) {
	return f.objectList, nil
}

func (f *fakeClient) ReadPresentValue(ctx context.Context, ip string, obj ObjectRef) (any, error) {
	if f.presentValueErr != nil {
		return nil, f.presentValueErr
	}
	key := ObjectKey(obj.Type, obj.Instance)
	v, ok := f.presentValues[key]
	if !ok {
		return nil, fmt.Errorf("fakeClient: no present value stubbed for %s", key)
	}
	return v, nil
}

func (f *fakeClient) ReadProperties(ctx context.Context, ip string, obj ObjectRef, props []PropertyName) (PropertyValues, error) {
	key := ObjectKey(obj.Type, obj.Instance)
	return f.properties[key], nil
}

func (f *fakeClient) ReadMultiplePoints(ctx context.Context, ip string, requests []PointRequest) (map[string]PropertyValues, error) {
	f.mu.Lock()
	f.multiCalls++
	f.mu.Unlock()
	if f.multiErr != nil {
		return nil, f.multiErr
	}
	return f.multiResult, nil
}

func (f *fakeClient) Write(ctx context.Context, command string) error {
	return f.writeErr
}

func (f *fakeClient) WriteWithPriority(ctx context.Context, ip string, obj ObjectRef, value any, priority int) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writtenValue = value
	f.writtenPriority = priority
	key := ObjectKey(obj.Type, obj.Instance)
	f.presentValues[key] = value
	return nil
}
