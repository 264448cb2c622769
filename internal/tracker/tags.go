package tracker

// BuiltinTags is the tag catalogue every fresh installation starts with:
// the status, type and resolution groups plus their stock child tags.
// IDs are stable slugs so seed runs stay idempotent.
func BuiltinTags() []Tag {
	return []Tag{
		{ID: "group-status", Name: TagGroupStatus, Group: true},
		{ID: "group-type", Name: TagGroupType, Group: true},
		{ID: "group-resolution", Name: TagGroupResolution, Group: true},

		{ID: "type-testing", ParentID: "group-type", Name: "testing", BgColor: "#6c8307"},
		{ID: "type-feature", ParentID: "group-type", Name: "feature", BgColor: "#62cffc"},
		{ID: "type-bug", ParentID: "group-type", Name: "bug", BgColor: "#f89406"},

		{ID: "resolution-wont-fix", ParentID: "group-resolution", Name: "won't fix", BgColor: "#812323"},
		{ID: "resolution-fixed", ParentID: "group-resolution", Name: "fixed", BgColor: "#048383"},
	}
}
