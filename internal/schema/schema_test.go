package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryIsValid(t *testing.T) {
	require.NoError(t, Validate())
}

func TestLookup(t *testing.T) {
	for _, typ := range []Type{Network, User, Profile, Post, Topic, Opinion} {
		e, err := Lookup(typ)
		require.NoError(t, err, "type %s", typ)
		assert.Equal(t, typ, e.Type)
	}

	_, err := Lookup("comment")
	assert.True(t, errors.Is(err, ErrUndeclaredType))

	_, err = Lookup(Any)
	assert.True(t, errors.Is(err, ErrUndeclaredType), "Any is a reference target, not an entity")
}

func TestEntityRefs(t *testing.T) {
	refs := MustLookup(Opinion).Refs()
	require.Len(t, refs, 3)
	assert.Equal(t, "user", refs[0].Name)
	assert.Equal(t, User, refs[0].Target)
	assert.Equal(t, "what", refs[1].Name)
	assert.Equal(t, Any, refs[1].Target)
	assert.True(t, refs[2].Optional)

	assert.Empty(t, MustLookup(User).Refs())
}

func TestFieldAllows(t *testing.T) {
	how, ok := MustLookup(Opinion).Field("how")
	require.True(t, ok)
	assert.True(t, how.Allows(HowPay))
	assert.False(t, how.Allows("retweet"))
}

func TestValidateRejectsBrokenRegistries(t *testing.T) {
	tests := []struct {
		name string
		list []*Entity
	}{
		{
			name: "duplicate type",
			list: []*Entity{
				{Type: User, Table: "a"},
				{Type: User, Table: "b"},
			},
		},
		{
			name: "duplicate table",
			list: []*Entity{
				{Type: User, Table: "a"},
				{Type: Post, Table: "a"},
			},
		},
		{
			name: "reserved field",
			list: []*Entity{
				{Type: User, Table: "users", Fields: []Field{{Name: "cust", Kind: KindString}}},
			},
		},
		{
			name: "dangling reference",
			list: []*Entity{
				{Type: Post, Table: "posts", Fields: []Field{{Name: "user", Kind: KindRef, Target: User}}},
			},
		},
		{
			name: "empty enum",
			list: []*Entity{
				{Type: User, Table: "users", Fields: []Field{{Name: "mood", Kind: KindEnum}}},
			},
		},
		{
			name: "unknown kind",
			list: []*Entity{
				{Type: User, Table: "users", Fields: []Field{{Name: "x"}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, validate(tt.list))
		})
	}
}
