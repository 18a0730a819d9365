package querycache

import "sort"

// ListID marks the tag that stands for "every list of this entity".
const ListID = "LIST"

// Tag names cached data so mutations can invalidate it without knowing which
// queries produced it.
type Tag struct {
	Type string
	ID   string
}

func (t Tag) String() string {
	return t.Type + ":" + t.ID
}

func ListTag(entity string) Tag {
	return Tag{Type: entity, ID: ListID}
}

func ItemTag(entity, id string) Tag {
	return Tag{Type: entity, ID: id}
}

// TagRule describes which tags of one entity a mutation invalidates.
type TagRule struct {
	Entity string
	List   bool
	Item   bool
}

func InvalidatesList(entity string) TagRule {
	return TagRule{Entity: entity, List: true}
}

func InvalidatesItem(entity string) TagRule {
	return TagRule{Entity: entity, Item: true}
}

// InvalidatesListAndItem covers updates that change both the list views and
// the detail view of one record.
func InvalidatesListAndItem(entity string) TagRule {
	return TagRule{Entity: entity, List: true, Item: true}
}

// InvalidationTable is the declarative map of which entities exist and what
// each mutation invalidates. It is pure data and can be inspected in tests
// without a cache or a backend.
type InvalidationTable struct {
	entities  map[string]struct{}
	mutations map[string][]TagRule
}

func NewInvalidationTable() *InvalidationTable {
	return &InvalidationTable{
		entities:  make(map[string]struct{}),
		mutations: make(map[string][]TagRule),
	}
}

func (t *InvalidationTable) Entity(names ...string) *InvalidationTable {
	for _, name := range names {
		t.entities[name] = struct{}{}
	}
	return t
}

func (t *InvalidationTable) Mutation(name string, rules ...TagRule) *InvalidationTable {
	t.mutations[name] = append(t.mutations[name], rules...)
	for _, r := range rules {
		t.entities[r.Entity] = struct{}{}
	}
	return t
}

// Provides returns the tags of a list result: the entity list tag plus one
// tag per contained id.
func (t *InvalidationTable) Provides(entity string, ids ...string) []Tag {
	tags := make([]Tag, 0, len(ids)+1)
	tags = append(tags, ListTag(entity))
	for _, id := range ids {
		tags = append(tags, ItemTag(entity, id))
	}
	return tags
}

// ProvidesItem returns the tags of a single-record result.
func (t *InvalidationTable) ProvidesItem(entity, id string) []Tag {
	return []Tag{ItemTag(entity, id)}
}

// Invalidates returns the tags the named mutation invalidates for the record
// id (which may be empty for creates). Unknown mutations invalidate nothing.
func (t *InvalidationTable) Invalidates(mutation, id string) []Tag {
	var tags []Tag
	for _, r := range t.mutations[mutation] {
		if r.List {
			tags = append(tags, ListTag(r.Entity))
		}
		if r.Item && id != "" {
			tags = append(tags, ItemTag(r.Entity, id))
		}
	}
	return tags
}

func (t *InvalidationTable) Rules(mutation string) []TagRule {
	return append([]TagRule(nil), t.mutations[mutation]...)
}

func (t *InvalidationTable) Mutations() []string {
	names := make([]string, 0, len(t.mutations))
	for name := range t.mutations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *InvalidationTable) Entities() []string {
	names := make([]string, 0, len(t.entities))
	for name := range t.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
