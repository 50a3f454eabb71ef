package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/metashare/internal/record"
)

// createTestStore creates a new on-disk store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestNetwork registers a network with a fixed creation time.
func createTestNetwork(t *testing.T, s *Store, origin string) NetworkID {
	t.Helper()
	id, err := s.OpenNetwork(context.Background(), origin, record.NewObject(
		record.P("time", record.T(testEpoch)),
		record.P("name", record.String(origin)),
	), nil)
	if err != nil {
		t.Fatalf("OpenNetwork(%q) failed: %v", origin, err)
	}
	return id
}

var testEpoch = time.Date(2018, 4, 1, 0, 0, 0, 0, time.UTC)

// at returns testEpoch shifted by n minutes.
func at(n int) record.Time {
	return record.T(testEpoch.Add(time.Duration(n) * time.Minute))
}

func userObj(addr string, minute int) record.Object {
	return record.NewObject(
		record.P("id", record.String(addr)),
		record.P("time", at(minute)),
	)
}

func postObj(id, user, msg string, minute int) record.Object {
	return record.NewObject(
		record.P("id", record.String(id)),
		record.P("time", at(minute)),
		record.P("user", record.String(user)),
		record.P("msg", record.String(msg)),
	)
}
