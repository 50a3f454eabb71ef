package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metashare/internal/record"
	"github.com/roach88/metashare/internal/schema"
)

// TestGet_RandomCrossReferences puts N posts that reply to random earlier
// posts and checks every one reads back, in creation order, by content
// id, by local id and unfiltered.
func TestGet_RandomCrossReferences(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	net := createTestNetwork(t, s, "memo")
	rng := rand.New(rand.NewSource(7))

	users := []string{"alice", "bob", "carol"}
	for i, u := range users {
		_, err := s.Put(ctx, schema.User, net, userObj(u, i))
		require.NoError(t, err)
	}

	const n = 25
	var (
		objs     []record.Object
		contents []ContentID
	)
	for i := 0; i < n; i++ {
		obj := postObj(fmt.Sprintf("p%02d", i), users[rng.Intn(len(users))], fmt.Sprintf("msg %d", i), 10+i)
		if i > 0 && rng.Intn(2) == 0 {
			obj["reply"] = record.String(fmt.Sprintf("p%02d", rng.Intn(i)))
		}
		if rng.Intn(3) == 0 {
			obj["cust"] = record.Object{"n": record.Int(i)}
		}
		content, err := s.Put(ctx, schema.Post, net, obj)
		require.NoError(t, err)
		objs = append(objs, obj)
		contents = append(contents, content)
	}

	all, err := s.Get(ctx, schema.Post, net, Filter{})
	require.NoError(t, err)
	require.Len(t, all, n)
	for i, rec := range all {
		assert.True(t, record.Equal(objs[i], rec.Fields), "post %d: want %v, got %v", i, objs[i], rec.Fields)
	}

	for i := range objs {
		byContent, err := s.Get(ctx, schema.Post, net, Filter{Content: contents[i]})
		require.NoError(t, err)
		require.Len(t, byContent, 1)
		assert.True(t, record.Equal(objs[i], byContent[0].Fields))

		byID, err := s.Get(ctx, schema.Post, net, Filter{ID: fmt.Sprintf("p%02d", i)})
		require.NoError(t, err)
		require.Len(t, byID, 1)
		assert.Equal(t, byContent[0], byID[0])
	}
}

func TestGet_Filters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	net := createTestNetwork(t, s, "memo")

	_, err := s.Put(ctx, schema.User, net, userObj("alice", 0))
	require.NoError(t, err)
	_, err = s.Put(ctx, schema.User, net, userObj("bob", 0))
	require.NoError(t, err)
	for i, author := range []string{"alice", "bob", "alice", "bob"} {
		_, err := s.Put(ctx, schema.Post, net, postObj(fmt.Sprintf("p%d", i), author, fmt.Sprintf("m%d", i), i))
		require.NoError(t, err)
	}

	ids := func(recs []Record) []string {
		out := make([]string, len(recs))
		for i, r := range recs {
			out[i], _ = r.Fields.Str("id")
		}
		return out
	}

	t.Run("limit", func(t *testing.T) {
		recs, err := s.Get(ctx, schema.Post, net, Filter{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"p0", "p1"}, ids(recs))
	})

	t.Run("desc", func(t *testing.T) {
		recs, err := s.Get(ctx, schema.Post, net, Filter{Limit: 3, Desc: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"p3", "p2", "p1"}, ids(recs))
	})

	t.Run("scalar field", func(t *testing.T) {
		recs, err := s.Get(ctx, schema.Post, net, Filter{Where: record.Object{"msg": record.String("m2")}})
		require.NoError(t, err)
		assert.Equal(t, []string{"p2"}, ids(recs))
	})

	t.Run("reference field", func(t *testing.T) {
		recs, err := s.Get(ctx, schema.Post, net, Filter{Where: record.Object{"user": record.String("bob")}})
		require.NoError(t, err)
		assert.Equal(t, []string{"p1", "p3"}, ids(recs))
	})

	t.Run("null field", func(t *testing.T) {
		recs, err := s.Get(ctx, schema.Post, net, Filter{Where: record.Object{"reply": record.Null{}}})
		require.NoError(t, err)
		assert.Len(t, recs, 4)
	})

	t.Run("time field", func(t *testing.T) {
		recs, err := s.Get(ctx, schema.Post, net, Filter{Where: record.Object{"time": at(3)}})
		require.NoError(t, err)
		assert.Equal(t, []string{"p3"}, ids(recs))
	})

	t.Run("undeclared field", func(t *testing.T) {
		_, err := s.Get(ctx, schema.Post, net, Filter{Where: record.Object{"likes": record.Int(1)}})
		assert.True(t, IsIntegrityError(err))
	})

	t.Run("no match is empty not nil", func(t *testing.T) {
		recs, err := s.Get(ctx, schema.Post, net, Filter{ID: "missing"})
		require.NoError(t, err)
		assert.NotNil(t, recs)
		assert.Empty(t, recs)
	})
}

func TestGet_AnyReferenceProjection(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	net := createTestNetwork(t, s, "memo")

	_, err := s.Put(ctx, schema.User, net, userObj("alice", 0))
	require.NoError(t, err)
	_, err = s.Put(ctx, schema.Topic, net, record.NewObject(
		record.P("id", record.String("golang")),
		record.P("name", record.String("golang")),
	))
	require.NoError(t, err)

	in := record.NewObject(
		record.P("id", record.String("o1")),
		record.P("time", at(1)),
		record.P("user", record.String("alice")),
		record.P("what", record.Ref{Type: "topic", ID: "golang"}),
		record.P("how", record.String(schema.HowFollow)),
		record.P("value", record.Float(1)),
	)
	_, err = s.Put(ctx, schema.Opinion, net, in)
	require.NoError(t, err)

	got, err := s.GetOne(ctx, schema.Opinion, net, "o1")
	require.NoError(t, err)
	assert.True(t, record.Equal(in, got.Fields), "got %v", got.Fields)

	recs, err := s.Get(ctx, schema.Opinion, net, Filter{Where: record.Object{"what": record.Ref{Type: "topic", ID: "golang"}}})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestGetLastFrom(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	net := createTestNetwork(t, s, "memo")

	_, err := s.GetLastFrom(ctx, net)
	assert.True(t, errors.Is(err, ErrNotFound), "the network's own item does not count")

	_, err = s.Put(ctx, schema.User, net, userObj("alice", 0))
	require.NoError(t, err)
	_, err = s.Put(ctx, schema.Post, net, postObj("p1", "alice", "hi", 1))
	require.NoError(t, err)
	_, err = s.ResolveOrCreate(ctx, schema.Post, net, "unseen")
	require.NoError(t, err)

	last, err := s.GetLastFrom(ctx, net)
	require.NoError(t, err)
	assert.Equal(t, schema.Post, last.Type)
	assert.Equal(t, "p1", last.LocalID, "placeholders are skipped")
}

func TestFind(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	net := createTestNetwork(t, s, "memo")

	_, err := s.Find(ctx, schema.User, net, "alice")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Put(ctx, schema.User, net, userObj("alice", 0))
	require.NoError(t, err)

	res, err := s.Find(ctx, schema.User, net, "x", "alice")
	require.NoError(t, err)
	assert.True(t, res.Resolved())
	assert.Equal(t, "alice", res.LocalID)
}
