package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metashare/internal/record"
	"github.com/roach88/metashare/internal/schema"
	"github.com/roach88/metashare/internal/testutil"
)

// syncedDB returns a database where memo has synced the sample chain and
// archive is registered but empty.
func syncedDB(t *testing.T) (string, sampleChain) {
	t.Helper()
	db := createTestDB(t, "memo", "archive")
	c := newSampleChain(t)
	_, err := execute(t, NewSyncCommand(jsonOpts()), "--db", db, "--chain", writeChain(t, c.chain), "memo")
	require.NoError(t, err)
	return db, c
}

func TestGet(t *testing.T) {
	db, c := syncedDB(t)

	out, err := execute(t, NewGetCommand(jsonOpts()), "post", "--db", db, "--network", "memo")
	require.NoError(t, err)

	var items []ItemView
	jsonData(t, out, &items)
	require.Len(t, items, 2)
	id, _ := items[0].Fields.Str("id")
	assert.Equal(t, c.post.ID(), id)
	reply, _ := items[1].Fields.Str("reply")
	assert.Equal(t, c.post.ID(), reply)
	assert.Equal(t, "memo", items[1].Origin.Network)
}

func TestGet_Filters(t *testing.T) {
	db, c := syncedDB(t)

	out, err := execute(t, NewGetCommand(jsonOpts()), "post", "--db", db, "--network", "memo",
		"--where", "user="+bob.Address)
	require.NoError(t, err)
	var items []ItemView
	jsonData(t, out, &items)
	require.Len(t, items, 1)
	id, _ := items[0].Fields.Str("id")
	assert.Equal(t, c.reply.ID(), id)

	out, err = execute(t, NewGetCommand(jsonOpts()), "user", "--db", db, "--network", "memo",
		"--limit", "1", "--desc")
	require.NoError(t, err)
	jsonData(t, out, &items)
	require.Len(t, items, 1)
	id, _ = items[0].Fields.Str("id")
	assert.Equal(t, bob.Address, id)
}

func TestGet_Text(t *testing.T) {
	db, c := syncedDB(t)

	out, err := execute(t, NewGetCommand(textOpts()), "post", "--db", db, "--network", "memo", "--id", c.post.ID())
	require.NoError(t, err)
	assert.Contains(t, out, "post "+c.post.ID())
	assert.Contains(t, out, `msg="hello"`)

	out, err = execute(t, NewGetCommand(textOpts()), "topic", "--db", db, "--network", "memo")
	require.NoError(t, err)
	assert.Contains(t, out, "No items found")
}

func TestGet_Errors(t *testing.T) {
	db, _ := syncedDB(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown type", []string{"widget", "--db", db, "--network", "memo"}},
		{"unknown network", []string{"post", "--db", db, "--network", "nope"}},
		{"bad where", []string{"post", "--db", db, "--network", "memo", "--where", "user"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, NewGetCommand(jsonOpts()), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestParseWhere(t *testing.T) {
	post := schema.MustLookup(schema.Post)
	opin := schema.MustLookup(schema.Opinion)

	where, err := parseWhere(post, nil)
	require.NoError(t, err)
	assert.Nil(t, where)

	where, err = parseWhere(post, []string{"kind=poll", "msg=a=b", "poll_type=1", "user=1Alice"})
	require.NoError(t, err)
	assert.Equal(t, record.String("poll"), where["kind"])
	assert.Equal(t, record.String("a=b"), where["msg"])
	assert.Equal(t, record.Int(1), where["poll_type"])
	assert.Equal(t, record.String("1Alice"), where["user"])

	where, err = parseWhere(opin, []string{
		"value=500",
		"time=2018-04-07T00:10:00Z",
		"what=post:abcd:1",
	})
	require.NoError(t, err)
	assert.Equal(t, record.Float(500), where["value"])
	assert.Equal(t, record.T(testutil.Epoch.Add(10*time.Minute)), where["time"])
	assert.Equal(t, record.Ref{Type: "post", ID: "abcd:1"}, where["what"])

	tests := []struct {
		name  string
		e     *schema.Entity
		pairs []string
	}{
		{"missing value", post, []string{"=x"}},
		{"undeclared field", post, []string{"colour=red"}},
		{"not an integer", post, []string{"poll_type=two"}},
		{"not a number", opin, []string{"value=lots"}},
		{"not a time", opin, []string{"time=yesterday"}},
		{"untyped any reference", opin, []string{"what=abcd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseWhere(tt.e, tt.pairs)
			assert.Error(t, err)
		})
	}
}

func TestGet_TypedFilter(t *testing.T) {
	db, c := syncedDB(t)

	out, err := execute(t, NewGetCommand(jsonOpts()), "post", "--db", db, "--network", "memo",
		"--where", "time="+testutil.Epoch.Format(time.RFC3339))
	require.NoError(t, err)
	var items []ItemView
	jsonData(t, out, &items)
	require.Len(t, items, 1)
	id, _ := items[0].Fields.Str("id")
	assert.Equal(t, c.post.ID(), id)

	_, err = execute(t, NewGetCommand(jsonOpts()), "post", "--db", db, "--network", "memo",
		"--where", "time=noon")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMirror(t *testing.T) {
	db, c := syncedDB(t)

	out, err := execute(t, NewGetCommand(jsonOpts()), "post", "--db", db, "--network", "memo", "--id", c.post.ID())
	require.NoError(t, err)
	var items []ItemView
	jsonData(t, out, &items)
	require.Len(t, items, 1)
	content := items[0].Content

	out, err = execute(t, NewMirrorCommand(jsonOpts()), "post", itoa(content), "--db", db, "--to", "archive", "--id", "a-1")
	require.NoError(t, err)
	var res MirrorResult
	jsonData(t, out, &res)
	id, _ := res.Item.Fields.Str("id")
	assert.Equal(t, "a-1", id)
	assert.Equal(t, content, res.Item.Content)
	assert.Equal(t, "memo", res.Item.Origin.Network)
	assert.Equal(t, c.post.ID(), res.Item.Origin.ID)
	msg, _ := res.Item.Fields.Str("msg")
	assert.Equal(t, "hello", msg)

	// Content ids that name nothing are reported as not found.
	out, err = execute(t, NewMirrorCommand(jsonOpts()), "post", itoa(content+1000), "--db", db, "--to", "archive", "--id", "a-1")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", jsonError(t, out).Code)
}

func TestMirror_AliasConflict(t *testing.T) {
	db, _ := syncedDB(t)

	var posts []ItemView
	out, err := execute(t, NewGetCommand(jsonOpts()), "post", "--db", db, "--network", "memo")
	require.NoError(t, err)
	jsonData(t, out, &posts)
	require.Len(t, posts, 2)

	_, err = execute(t, NewMirrorCommand(jsonOpts()), "post", itoa(posts[0].Content), "--db", db, "--to", "archive", "--id", "a-1")
	require.NoError(t, err)

	out, err = execute(t, NewMirrorCommand(jsonOpts()), "post", itoa(posts[1].Content), "--db", db, "--to", "archive", "--id", "a-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "ALIAS_CONFLICT", jsonError(t, out).Code)
}

func TestMirror_InvalidContentID(t *testing.T) {
	db, _ := syncedDB(t)
	_, err := execute(t, NewMirrorCommand(jsonOpts()), "post", "abc", "--db", db, "--to", "archive", "--id", "a-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
