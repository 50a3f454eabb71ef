package schema

// Enum values.
const (
	AttrName   = "name"
	AttrAbout  = "about"
	AttrPicURL = "picurl"

	PostKindPost   = "post"
	PostKindPoll   = "poll"
	PostKindOption = "option"
	PostKindFile   = "file"

	HowFollow = "follow"
	HowLike   = "like"
	HowVote   = "vote"
	HowPay    = "pay"
)

var entities = []*Entity{
	{
		Type:  Network,
		Table: "nets",
		Fields: []Field{
			{Name: "time", Kind: KindTime},
			{Name: "name", Kind: KindString, Optional: true},
			{Name: "site", Kind: KindString, Optional: true},
		},
	},
	{
		Type:  User,
		Table: "users",
		Fields: []Field{
			{Name: "time", Kind: KindTime},
		},
	},
	{
		Type:  Profile,
		Table: "profs",
		Fields: []Field{
			{Name: "time", Kind: KindTime},
			{Name: "user", Kind: KindRef, Target: User},
			{Name: "attr", Kind: KindEnum, Values: []string{AttrName, AttrAbout, AttrPicURL}},
			{Name: "val", Kind: KindString, Optional: true},
		},
	},
	{
		Type:  Post,
		Table: "posts",
		Fields: []Field{
			{Name: "time", Kind: KindTime},
			{Name: "user", Kind: KindRef, Target: User},
			{Name: "reply", Kind: KindRef, Target: Post, Optional: true},
			{Name: "topic", Kind: KindRef, Target: Topic, Optional: true},
			{Name: "share", Kind: KindRef, Target: Post, Optional: true},
			{Name: "msg", Kind: KindString, Optional: true},
			{Name: "kind", Kind: KindEnum, Optional: true, Values: []string{PostKindPost, PostKindPoll, PostKindOption, PostKindFile}},
			{Name: "geo", Kind: KindString, Optional: true},
			{Name: "poll_type", Kind: KindInt, Optional: true},
			{Name: "options", Kind: KindInt, Optional: true},
		},
	},
	{
		Type:  Topic,
		Table: "topics",
		Fields: []Field{
			{Name: "time", Kind: KindTime, Optional: true},
			{Name: "name", Kind: KindString, Optional: true},
		},
	},
	{
		Type:  Opinion,
		Table: "opins",
		Fields: []Field{
			{Name: "time", Kind: KindTime},
			{Name: "user", Kind: KindRef, Target: User},
			{Name: "what", Kind: KindRef, Target: Any},
			{Name: "how", Kind: KindEnum, Values: []string{HowFollow, HowLike, HowVote, HowPay}},
			{Name: "value", Kind: KindFloat},
			{Name: "unit", Kind: KindString, Optional: true},
			{Name: "link", Kind: KindRef, Target: Any, Optional: true},
		},
	},
}

var byType = func() map[Type]*Entity {
	m := make(map[Type]*Entity, len(entities))
	for _, e := range entities {
		m[e.Type] = e
	}
	return m
}()
