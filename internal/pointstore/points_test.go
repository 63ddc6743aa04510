package pointstore

import (
	"context"
	"testing"
	"time"

	"github.com/openbms-io/supervisor/internal/model"
)

func samplePoint(controllerID, pointID string) model.ControllerPoint {
	minVal := 10.0
	return model.ControllerPoint{
		IoTDevicePointID:   model.DerivePointID(controllerID, pointID),
		ControllerID:       controllerID,
		ObjectType:         "analogValue",
		ObjectInstance:     1,
		ControllerIP:       "10.0.0.5",
		ControllerPort:     47808,
		ControllerDeviceID: 100,
		PresentValue:       "21.5",
		Units:              "degreesCelsius",
		CreatedAt:          time.Now().UTC(),
		CreatedAtUnixMilli: time.Now().UTC().UnixMilli(),
		StatusFlags:        "false;false;false;false",
		MinPresValue:       &minVal,
	}
}

func TestBulkInsertAndGetByController(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	points := []model.ControllerPoint{
		samplePoint("ctrl-1", "point-1"),
		samplePoint("ctrl-1", "point-2"),
		samplePoint("ctrl-2", "point-1"),
	}

	ids, err := db.BulkInsert(ctx, points)
	if err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}
	for _, id := range ids {
		if id == 0 {
			t.Error("expected nonzero assigned id")
		}
	}

	rows, err := db.GetByController(ctx, "ctrl-1")
	if err != nil {
		t.Fatalf("GetByController: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows for ctrl-1, got %d", len(rows))
	}
	if rows[0].MinPresValue == nil || *rows[0].MinPresValue != 10.0 {
		t.Errorf("expected MinPresValue round-tripped, got %v", rows[0].MinPresValue)
	}
}

func TestBulkInsertEmptyIsNoop(t *testing.T) {
	db := openTestDB(t)
	ids, err := db.BulkInsert(context.Background(), nil)
	if err != nil {
		t.Fatalf("BulkInsert(nil): %v", err)
	}
	if ids != nil {
		t.Errorf("expected nil ids for empty input, got %v", ids)
	}
}

func TestGetPendingOrdersOldestFirstAndRespectsLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p1 := samplePoint("ctrl-1", "a")
	p1.CreatedAt = time.Now().UTC().Add(-2 * time.Minute)
	p2 := samplePoint("ctrl-1", "b")
	p2.CreatedAt = time.Now().UTC().Add(-1 * time.Minute)

	if _, err := db.BulkInsert(ctx, []model.ControllerPoint{p2, p1}); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}

	pending, err := db.GetPending(ctx, 1)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending row (limit), got %d", len(pending))
	}
	if pending[0].IoTDevicePointID != p1.IoTDevicePointID {
		t.Errorf("expected oldest point first, got %s", pending[0].IoTDevicePointID)
	}
}

func TestMarkUploadedSkipsZeroIDs(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ids, err := db.BulkInsert(ctx, []model.ControllerPoint{samplePoint("ctrl-1", "a")})
	if err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}

	skipped, err := db.MarkUploaded(ctx, []uint64{0, ids[0]})
	if err != nil {
		t.Fatalf("MarkUploaded: %v", err)
	}
	if skipped != 1 {
		t.Errorf("expected 1 skipped (zero id), got %d", skipped)
	}

	pending, err := db.GetPending(ctx, 10)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending rows after mark-uploaded, got %d", len(pending))
	}
}

func TestDeleteUploadedRemovesRowsMarkedUploaded(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ids, err := db.BulkInsert(ctx, []model.ControllerPoint{samplePoint("ctrl-1", "a")})
	if err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	if _, err := db.MarkUploaded(ctx, ids); err != nil {
		t.Fatalf("MarkUploaded: %v", err)
	}

	n, err := db.DeleteUploaded(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteUploaded: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row deleted, got %d", n)
	}

	rows, err := db.GetByController(ctx, "ctrl-1")
	if err != nil {
		t.Fatalf("GetByController: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected deleted row gone, got %d rows", len(rows))
	}
}

func TestDeleteUploadedOnlyRemovesUploadedOlderThanCutoff(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ids, err := db.BulkInsert(ctx, []model.ControllerPoint{samplePoint("ctrl-1", "a")})
	if err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}

	// Not yet uploaded: DeleteUploaded must not touch it.
	n, err := db.DeleteUploaded(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteUploaded: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 rows deleted before mark-uploaded, got %d", n)
	}

	if _, err := db.MarkUploaded(ctx, ids); err != nil {
		t.Fatalf("MarkUploaded: %v", err)
	}

	// Cutoff in the past: the just-uploaded row is not older than it.
	n, err = db.DeleteUploaded(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteUploaded: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 rows deleted with past cutoff, got %d", n)
	}
}
