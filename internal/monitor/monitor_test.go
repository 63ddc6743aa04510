package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/openbms-io/supervisor/internal/bacnet"
	"github.com/openbms-io/supervisor/internal/model"
)

type fakeClient struct {
	mu                    sync.Mutex
	connected             bool
	readMultipleFn        func(requests []bacnet.PointRequest) (map[string]bacnet.PropertyValues, error)
	readPropertiesFn      func(obj bacnet.ObjectRef) (bacnet.PropertyValues, error)
	readPresentValueFn    func(obj bacnet.ObjectRef) (any, error)
	readPropertiesCalls   int
	readPresentValueCalls int
}

func (f *fakeClient) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeClient) Close() error                      { f.connected = false; return nil }
func (f *fakeClient) IsConnected() bool                 { return f.connected }
func (f *fakeClient) WhoIs(ctx context.Context, address string) ([]uint32, error) {
	return nil, nil
}
func (f *fakeClient) ReadObjectList(ctx context.Context, ip string, deviceInstance uint32) ([]bacnet.ObjectRef, error) {
	return nil, nil
}
func (f *fakeClient) ReadPresentValue(ctx context.Context, ip string, obj bacnet.ObjectRef) (any, error) {
	f.mu.Lock()
	f.readPresentValueCalls++
	f.mu.Unlock()
	if f.readPresentValueFn != nil {
		return f.readPresentValueFn(obj)
	}
	return nil, errors.New("fakeClient: ReadPresentValue not configured")
}
func (f *fakeClient) ReadProperties(ctx context.Context, ip string, obj bacnet.ObjectRef, props []bacnet.PropertyName) (bacnet.PropertyValues, error) {
	f.mu.Lock()
	f.readPropertiesCalls++
	f.mu.Unlock()
	if f.readPropertiesFn != nil {
		return f.readPropertiesFn(obj)
	}
	return nil, errors.New("fakeClient: ReadProperties not configured")
}
func (f *fakeClient) ReadMultiplePoints(ctx context.Context, ip string, requests []bacnet.PointRequest) (map[string]bacnet.PropertyValues, error) {
	if f.readMultipleFn != nil {
		return f.readMultipleFn(requests)
	}
	return map[string]bacnet.PropertyValues{}, nil
}
func (f *fakeClient) Write(ctx context.Context, command string) error { return nil }
func (f *fakeClient) WriteWithPriority(ctx context.Context, ip string, obj bacnet.ObjectRef, value any, priority int) error {
	return nil
}

type fakeStore struct {
	mu              sync.Mutex
	configJSON      []byte
	configErr       error
	bulkInsertCalls [][]model.ControllerPoint
	bulkInsertErr   error
	insertCalls     []model.ControllerPoint
	statusUpserts   []model.DeviceStatus
}

func (s *fakeStore) GetBACnetConfig(ctx context.Context) ([]byte, error) {
	return s.configJSON, s.configErr
}
func (s *fakeStore) Insert(ctx context.Context, p model.ControllerPoint) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertCalls = append(s.insertCalls, p)
	return 1, nil
}
func (s *fakeStore) BulkInsert(ctx context.Context, points []model.ControllerPoint) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bulkInsertErr != nil {
		return nil, s.bulkInsertErr
	}
	s.bulkInsertCalls = append(s.bulkInsertCalls, points)
	return make([]uint64, len(points)), nil
}
func (s *fakeStore) UpsertDeviceStatus(ctx context.Context, st model.DeviceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusUpserts = append(s.statusUpserts, st)
	return nil
}

type fakeResponder struct {
	mu        sync.Mutex
	responses []model.CommandPayload
}

func (r *fakeResponder) PublishResponse(msgType model.MessageType, payload model.CommandPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, payload)
	return nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []model.ActorMessage
}

func (s *fakeSender) SendFrom(sender, receiver model.ActorName, msgType model.MessageType, payload model.CommandPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, model.ActorMessage{Sender: sender, Receiver: receiver, MessageType: msgType, Payload: payload})
	return nil
}

func newTestPool(t *testing.T, client bacnet.Client) *bacnet.Pool {
	t.Helper()
	pool := bacnet.NewPool(bacnet.StrategyFirstAvailable)
	readers := []bacnet.ReaderConfig{{ID: "r1", BindIP: "10.0.0.1", Port: 47808, IsActive: true}}
	if err := pool.Initialize(context.Background(), readers, func(bacnet.ReaderConfig) bacnet.Client { return client }); err != nil {
		t.Fatalf("pool.Initialize: %v", err)
	}
	return pool
}

const twoPointConfig = `{
	"devices": [
		{
			"controller_id": "ctrl-1",
			"controller_ip_address": "10.0.0.5",
			"controller_device_id": 1,
			"object_list": [
				{"type": "analogInput", "point_id": 1, "iot_device_point_id": "p1"},
				{"type": "analogOutput", "point_id": 2, "iot_device_point_id": "p2"}
			]
		}
	]
}`

func TestHandleStartMonitoringTransitionsAndNotifies(t *testing.T) {
	store := &fakeStore{configJSON: []byte("{}")}
	responder := &fakeResponder{}
	sender := &fakeSender{}
	m := New(newTestPool(t, &fakeClient{}), store, responder, sender, nil, 0)

	m.Handle(context.Background(), model.ActorMessage{
		MessageType: model.MessageStartMonitoringRequest,
		Payload:     model.StartMonitoringRequestPayload{CommandID: "c1"},
	})
	// give the loop goroutine a tick to get going; it must not fire before
	// the interval elapses, so no cycle side effects are expected yet.
	defer m.stopLoop()

	if m.State() != model.MonitoringActive {
		t.Errorf("state = %v, want ACTIVE", m.State())
	}
	if len(responder.responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responder.responses))
	}
	resp, ok := responder.responses[0].(model.StartMonitoringResponsePayload)
	if !ok || !resp.Success || resp.CommandID != "c1" {
		t.Errorf("unexpected response: %+v", responder.responses[0])
	}
	if len(sender.sent) != 1 || sender.sent[0].Receiver != model.ActorHeartbeat || sender.sent[0].MessageType != model.MessageForceHeartbeatRequest {
		t.Errorf("expected a FORCE_HEARTBEAT_REQUEST to HEARTBEAT, got %+v", sender.sent)
	}
	if len(store.statusUpserts) != 1 || store.statusUpserts[0].MonitoringStatus != model.MonitoringActive {
		t.Errorf("expected device status upserted as ACTIVE, got %+v", store.statusUpserts)
	}
}

func TestHandleStopMonitoringTransitionsAndNotifies(t *testing.T) {
	store := &fakeStore{configJSON: []byte("{}")}
	responder := &fakeResponder{}
	sender := &fakeSender{}
	m := New(newTestPool(t, &fakeClient{}), store, responder, sender, nil, 0)

	m.Handle(context.Background(), model.ActorMessage{
		MessageType: model.MessageStartMonitoringRequest,
		Payload:     model.StartMonitoringRequestPayload{CommandID: "c1"},
	})
	m.Handle(context.Background(), model.ActorMessage{
		MessageType: model.MessageStopMonitoringRequest,
		Payload:     model.StopMonitoringRequestPayload{CommandID: "c2"},
	})

	if m.State() != model.MonitoringStopped {
		t.Errorf("state = %v, want STOPPED", m.State())
	}
	if len(responder.responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responder.responses))
	}
	resp, ok := responder.responses[1].(model.StopMonitoringResponsePayload)
	if !ok || !resp.Success || resp.CommandID != "c2" {
		t.Errorf("unexpected stop response: %+v", responder.responses[1])
	}
}

func TestRunCycleNoControllersIsNoop(t *testing.T) {
	store := &fakeStore{configJSON: []byte("{}")}
	m := New(newTestPool(t, &fakeClient{}), store, &fakeResponder{}, &fakeSender{}, nil, 0)

	m.runCycle(context.Background())

	if len(store.bulkInsertCalls) != 0 || len(store.insertCalls) != 0 {
		t.Error("expected no store writes for an empty controller list")
	}
}

func TestRunCycleBulkReadSuccessInsertsAllPointsAtOnce(t *testing.T) {
	client := &fakeClient{
		readMultipleFn: func(requests []bacnet.PointRequest) (map[string]bacnet.PropertyValues, error) {
			return map[string]bacnet.PropertyValues{
				"analogInput:1":  {bacnet.PropPresentValue: 72.5, bacnet.PropStatusFlags: "normal"},
				"analogOutput:2": {bacnet.PropPresentValue: 55.0},
			}, nil
		},
	}
	store := &fakeStore{configJSON: []byte(twoPointConfig)}
	m := New(newTestPool(t, client), store, &fakeResponder{}, &fakeSender{}, nil, 0)

	m.runCycle(context.Background())

	if len(store.bulkInsertCalls) != 1 || len(store.bulkInsertCalls[0]) != 2 {
		t.Fatalf("expected 1 bulk insert of 2 points, got %v", store.bulkInsertCalls)
	}
	if client.readPropertiesCalls != 0 || client.readPresentValueCalls != 0 {
		t.Error("expected no per-point fallback reads on full bulk success")
	}
}

func TestRunCyclePartialFailureFallsBackPerPoint(t *testing.T) {
	client := &fakeClient{
		readMultipleFn: func(requests []bacnet.PointRequest) (map[string]bacnet.PropertyValues, error) {
			return map[string]bacnet.PropertyValues{
				"analogInput:1":  {bacnet.PropPresentValue: 72.5},
				"analogOutput:2": {}, // empty -> fallback
			}, nil
		},
		readPropertiesFn: func(obj bacnet.ObjectRef) (bacnet.PropertyValues, error) {
			return bacnet.PropertyValues{bacnet.PropPresentValue: 55.0}, nil
		},
	}
	store := &fakeStore{configJSON: []byte(twoPointConfig)}
	m := New(newTestPool(t, client), store, &fakeResponder{}, &fakeSender{}, nil, 0)

	m.runCycle(context.Background())

	if len(store.bulkInsertCalls) != 1 || len(store.bulkInsertCalls[0]) != 1 {
		t.Fatalf("expected 1 bulk insert of 1 point, got %v", store.bulkInsertCalls)
	}
	if client.readPropertiesCalls != 1 {
		t.Errorf("expected 1 fallback read_properties call, got %d", client.readPropertiesCalls)
	}
	if len(store.insertCalls) != 1 {
		t.Fatalf("expected 1 individual insert from the fallback, got %d", len(store.insertCalls))
	}
	if store.insertCalls[0].ErrorInfo != "" {
		t.Error("expected no error_info on a successful read_properties fallback")
	}
}

func TestRunCycleBulkReadErrorFallsBackForEveryPoint(t *testing.T) {
	client := &fakeClient{
		readMultipleFn: func(requests []bacnet.PointRequest) (map[string]bacnet.PropertyValues, error) {
			return nil, errors.New("malformed response")
		},
		readPropertiesFn: func(obj bacnet.ObjectRef) (bacnet.PropertyValues, error) {
			return bacnet.PropertyValues{bacnet.PropPresentValue: 1.0}, nil
		},
	}
	store := &fakeStore{configJSON: []byte(twoPointConfig)}
	m := New(newTestPool(t, client), store, &fakeResponder{}, &fakeSender{}, nil, 0)

	m.runCycle(context.Background())

	if len(store.bulkInsertCalls) != 0 {
		t.Errorf("expected no bulk insert on a bulk-read error, got %v", store.bulkInsertCalls)
	}
	if client.readPropertiesCalls != 2 {
		t.Errorf("expected fallback read_properties for both points, got %d calls", client.readPropertiesCalls)
	}
	if len(store.insertCalls) != 2 {
		t.Errorf("expected 2 individual inserts from fallback, got %d", len(store.insertCalls))
	}
}

func TestRunCycleFallbackBothReadsFailRecordsErrorInfoAndDropsPoint(t *testing.T) {
	client := &fakeClient{
		readMultipleFn: func(requests []bacnet.PointRequest) (map[string]bacnet.PropertyValues, error) {
			return map[string]bacnet.PropertyValues{"analogInput:1": {}, "analogOutput:2": {}}, nil
		},
		readPropertiesFn: func(obj bacnet.ObjectRef) (bacnet.PropertyValues, error) {
			return nil, errors.New("read_properties failed")
		},
		readPresentValueFn: func(obj bacnet.ObjectRef) (any, error) {
			if obj.Instance == 1 {
				return 10.0, nil
			}
			return nil, errors.New("present value also failed")
		},
	}
	store := &fakeStore{configJSON: []byte(twoPointConfig)}
	m := New(newTestPool(t, client), store, &fakeResponder{}, &fakeSender{}, nil, 0)

	m.runCycle(context.Background())

	if len(store.insertCalls) != 1 {
		t.Fatalf("expected exactly 1 insert (the point whose present-value fallback succeeded), got %d", len(store.insertCalls))
	}
	if store.insertCalls[0].ErrorInfo == "" {
		t.Error("expected error_info to be set on the present-value-only fallback row")
	}
}
