package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"labcheckin/internal/infra/persistence/postgres/testutil"
	"labcheckin/internal/rules"
	"labcheckin/pkg/domain"

	"github.com/shopspring/decimal"
)

var types = domain.ContainerTypes{"tube": {ID: "tube", MaxVolume: decimal.NewFromInt(100), MaxMass: decimal.NewFromInt(100)}}

func request(orderID, barcode string) domain.CheckInRequest {
	return domain.CheckInRequest{OrderID: orderID, Containers: []domain.ContainerCheckIn{{
		RowID: orderID, Barcode: barcode, LabID: "lab1", ContainerTypeID: "tube", VolumePerContainer: decimal.NewFromInt(1),
	}}}
}

func openStub(t *testing.T) (*sql.DB, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	return db, conn
}

func TestNewStoreCreatesTableAndLoadsSnapshot(t *testing.T) {
	_, conn := openStub(t)
	seed, _ := json.Marshal(map[string]domain.Container{"c1": {ID: "c1", Barcode: "OLD", LabID: "lab1"}})
	conn.Tables["state"] = []map[string]any{{"bucket": "containers", "payload": seed}}

	store, err := NewStore(context.Background(), "", rules.NewDefaultRulesEngine(types, nil))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected state table DDL, got %v", conn.Execs)
	}
	if got := store.Containers(); len(got) != 1 || got[0].Barcode != "OLD" {
		t.Fatalf("snapshot not loaded: %+v", got)
	}

	rejected, err := store.SubmitCheckIns(context.Background(), []domain.CheckInRequest{request("o1", "OLD")})
	if err != nil || len(rejected) != 1 {
		t.Fatalf("expected loaded barcode to block: %v %+v", err, rejected)
	}
}

func TestSubmitPersistsSnapshot(t *testing.T) {
	_, conn := openStub(t)
	store, err := NewStore(context.Background(), "ignored", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.SubmitCheckIns(context.Background(), []domain.CheckInRequest{request("o1", "NEW")}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	rows := conn.Tables["state"]
	if len(rows) != 1 || rows[0]["bucket"] != "containers" {
		t.Fatalf("expected one snapshot row, got %v", rows)
	}
	var persisted map[string]domain.Container
	if err := json.Unmarshal(rows[0]["payload"].([]byte), &persisted); err != nil || len(persisted) != 1 {
		t.Fatalf("decode snapshot: %v %v", err, persisted)
	}
}

func TestStoreErrors(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("dial") })
		defer restore()
		if _, err := NewStore(context.Background(), "", nil); err == nil {
			t.Fatalf("expected open error")
		}
	})
	t.Run("ping", func(t *testing.T) {
		_, conn := openStub(t)
		conn.FailPing = true
		if _, err := NewStore(context.Background(), "", nil); err == nil {
			t.Fatalf("expected ping error")
		}
	})
	t.Run("decode", func(t *testing.T) {
		_, conn := openStub(t)
		conn.Tables["state"] = []map[string]any{{"bucket": "containers", "payload": []byte("{")}}
		if _, err := NewStore(context.Background(), "", nil); err == nil {
			t.Fatalf("expected decode error")
		}
	})
	t.Run("commit", func(t *testing.T) {
		_, conn := openStub(t)
		store, err := NewStore(context.Background(), "", nil)
		if err != nil {
			t.Fatalf("NewStore: %v", err)
		}
		conn.FailCommit = true
		if _, err := store.SubmitCheckIns(context.Background(), []domain.CheckInRequest{request("o1", "X")}); err == nil {
			t.Fatalf("expected commit error")
		}
	})
}
