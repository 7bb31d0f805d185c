package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Kind identifies which remote collection a snapshot mirrors.
type Kind string

const (
	KindGroceries  Kind = "groceries"
	KindCategories Kind = "categories"
)

// Item is an entry of a shopping list or of the category list.
type Item struct {
	ID    string
	Value string
	// CategoryID is nil when the remote document carried no categoryId field.
	// A non-nil pointer to "" is an explicit "uncategorized".
	CategoryID *string
	CrossedOff bool
	// Extra holds remote fields grocat does not model, such as "note".
	// They are written back unchanged when the snapshot is persisted.
	Extra map[string]json.RawMessage
}

type itemJSON struct {
	ID         string          `json:"id,omitempty"`
	Value      string          `json:"value"`
	CategoryID json.RawMessage `json:"categoryId,omitempty"`
	CrossedOff bool            `json:"crossedOff,omitempty"`
}

// MarshalJSON keeps the difference between an absent categoryId and a null one.
func (i Item) MarshalJSON() ([]byte, error) {
	out := itemJSON{ID: i.ID, Value: i.Value, CrossedOff: i.CrossedOff}
	if i.CategoryID != nil {
		if *i.CategoryID == "" {
			out.CategoryID = json.RawMessage("null")
		} else {
			raw, err := json.Marshal(*i.CategoryID)
			if err != nil {
				return nil, err
			}
			out.CategoryID = raw
		}
	}
	return withExtra(out, i.Extra)
}

// UnmarshalJSON decodes an item, mapping "categoryId": null to an empty category.
func (i *Item) UnmarshalJSON(data []byte) error {
	var in itemJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	extra, err := extraFields(data, "id", "value", "categoryId", "crossedOff")
	if err != nil {
		return err
	}
	*i = Item{ID: in.ID, Value: in.Value, CrossedOff: in.CrossedOff, Extra: extra}
	if len(in.CategoryID) == 0 {
		return nil
	}
	id := ""
	if !bytes.Equal(bytes.TrimSpace(in.CategoryID), []byte("null")) {
		if err := json.Unmarshal(in.CategoryID, &id); err != nil {
			return err
		}
	}
	i.CategoryID = &id
	return nil
}

// HasCategory reports whether the item carries a categoryId equal to categoryID.
// An item without the field never matches, not even the empty category.
func (i Item) HasCategory(categoryID string) bool {
	return i.CategoryID != nil && *i.CategoryID == categoryID
}

// CategoryRef returns a pointer suitable for Item.CategoryID.
func CategoryRef(categoryID string) *string {
	return &categoryID
}

// SnapshotList is the "list" body of a snapshot document.
type SnapshotList struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	ListType string `json:"listType,omitempty"`
	Items    []Item `json:"items"`
	// Extra holds unmodeled remote fields of the list body.
	Extra map[string]json.RawMessage `json:"-"`
}

type snapshotListJSON SnapshotList

// MarshalJSON writes the list body including its unmodeled fields.
func (l SnapshotList) MarshalJSON() ([]byte, error) {
	return withExtra(snapshotListJSON(l), l.Extra)
}

// UnmarshalJSON decodes the list body and keeps its unmodeled fields.
func (l *SnapshotList) UnmarshalJSON(data []byte) error {
	var in snapshotListJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	extra, err := extraFields(data, "id", "name", "listType", "items")
	if err != nil {
		return err
	}
	in.Extra = extra
	*l = SnapshotList(in)
	return nil
}

// Snapshot is a cached copy of a remote list or of the category list.
type Snapshot struct {
	List SnapshotList `json:"list"`
	// RefreshDate is the unix time (seconds) at which the snapshot was last
	// known equal to the remote state.
	RefreshDate *float64 `json:"refresh_date,omitempty"`
	// Extra holds unmodeled top-level fields of the remote document.
	Extra map[string]json.RawMessage `json:"-"`
}

type snapshotJSON Snapshot

// MarshalJSON writes the document including its unmodeled fields.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return withExtra(snapshotJSON(s), s.Extra)
}

// UnmarshalJSON decodes the document and keeps its unmodeled fields.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var in snapshotJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	extra, err := extraFields(data, "list", "refresh_date")
	if err != nil {
		return err
	}
	in.Extra = extra
	*s = Snapshot(in)
	return nil
}

// withExtra marshals v and adds every field of extra that v does not set.
func withExtra(v interface{}, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := fields[k]; !ok {
			fields[k] = raw
		}
	}
	return json.Marshal(fields)
}

// extraFields returns the fields of the JSON object data not named in known,
// or nil when there are none.
func extraFields(data []byte, known ...string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(fields, k)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

func cloneExtra(extra map[string]json.RawMessage) map[string]json.RawMessage {
	if extra == nil {
		return nil
	}
	c := make(map[string]json.RawMessage, len(extra))
	for k, raw := range extra {
		c[k] = append(json.RawMessage(nil), raw...)
	}
	return c
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := &Snapshot{List: s.List, Extra: cloneExtra(s.Extra)}
	c.List.Extra = cloneExtra(s.List.Extra)
	c.List.Items = make([]Item, len(s.List.Items))
	for i, it := range s.List.Items {
		if it.CategoryID != nil {
			it.CategoryID = CategoryRef(*it.CategoryID)
		}
		it.Extra = cloneExtra(it.Extra)
		c.List.Items[i] = it
	}
	if s.RefreshDate != nil {
		ts := *s.RefreshDate
		c.RefreshDate = &ts
	}
	return c
}

// ListSummary identifies a remote shopping list.
type ListSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListService is the remote shared shopping-list service.
type ListService interface {
	Login(ctx context.Context) error
	ListSummaries(ctx context.Context) ([]ListSummary, error)
	ListItems(ctx context.Context, listID string) (*Snapshot, error)
	CategoryItems(ctx context.Context) (*Snapshot, error)
	AddItem(ctx context.Context, listID, name, categoryID string) error
	CreateCategory(ctx context.Context, name string) error
	CreateList(ctx context.Context, name string) error
	ToggleCrossedOff(ctx context.Context, listID, itemID string, crossOff bool) error

	// Connection management
	Close() error
}

// FindListByName searches for a list by name (case-insensitive) in a slice of lists.
// Returns nil if no match is found.
func FindListByName(lists []ListSummary, name string) *ListSummary {
	for _, l := range lists {
		if strings.EqualFold(l.Name, name) {
			return &l
		}
	}
	return nil
}

// GenerateID generates a unique identifier using UUID v4.
func GenerateID() string {
	return uuid.New().String()
}
