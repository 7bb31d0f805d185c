package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"grocat/backend"
)

// Call records one remote operation made against a FakeService.
type Call struct {
	Op       string
	ListID   string
	Name     string
	Category string
	ItemID   string
	CrossOff bool
}

// FakeService is an in-memory backend.ListService that records every call.
type FakeService struct {
	mu         sync.Mutex
	lists      []backend.ListSummary
	items      map[string][]backend.Item
	categories []backend.Item
	calls      []Call
	failOps    map[string]error
	loggedIn   bool
}

// NewFakeService creates an empty fake service.
func NewFakeService() *FakeService {
	return &FakeService{
		items:   make(map[string][]backend.Item),
		failOps: make(map[string]error),
	}
}

// AddList registers a list and returns its id.
func (f *FakeService) AddList(id, name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, backend.ListSummary{ID: id, Name: name})
	if _, ok := f.items[id]; !ok {
		f.items[id] = []backend.Item{}
	}
	return id
}

// SeedItem places an item on a list without recording a call.
func (f *FakeService) SeedItem(listID string, item backend.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item.ID == "" {
		item.ID = backend.GenerateID()
	}
	f.items[listID] = append(f.items[listID], item)
}

// SeedCategory defines a category without recording a call.
func (f *FakeService) SeedCategory(id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categories = append(f.categories, backend.Item{ID: id, Value: name})
}

// FailOn makes every later call of op return err.
func (f *FakeService) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOps[op] = err
}

// Calls returns a copy of the recorded calls.
func (f *FakeService) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call{}, f.calls...)
}

// CallsTo returns the recorded calls of one operation.
func (f *FakeService) CallsTo(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Items returns a copy of the remote items of a list.
func (f *FakeService) Items(listID string) []backend.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.Item{}, f.items[listID]...)
}

// Lists returns the remote list summaries.
func (f *FakeService) Lists() []backend.ListSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.ListSummary{}, f.lists...)
}

// record appends c and returns the injected failure for its op, if any.
// Callers hold f.mu.
func (f *FakeService) record(c Call) error {
	f.calls = append(f.calls, c)
	return f.failOps[c.Op]
}

func (f *FakeService) Login(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Op: "Login"}); err != nil {
		return err
	}
	f.loggedIn = true
	return nil
}

func (f *FakeService) ListSummaries(_ context.Context) ([]backend.ListSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Op: "ListSummaries"}); err != nil {
		return nil, err
	}
	return append([]backend.ListSummary{}, f.lists...), nil
}

func (f *FakeService) ListItems(_ context.Context, listID string) (*backend.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Op: "ListItems", ListID: listID}); err != nil {
		return nil, err
	}
	items, ok := f.items[listID]
	if !ok {
		return nil, fmt.Errorf("getList failed: status 404")
	}
	snap := &backend.Snapshot{List: backend.SnapshotList{ID: listID, Items: append([]backend.Item{}, items...)}}
	return snap.Clone(), nil
}

func (f *FakeService) CategoryItems(_ context.Context) (*backend.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Op: "CategoryItems"}); err != nil {
		return nil, err
	}
	snap := &backend.Snapshot{List: backend.SnapshotList{ListType: "MASTER", Items: append([]backend.Item{}, f.categories...)}}
	return snap.Clone(), nil
}

func (f *FakeService) AddItem(_ context.Context, listID, name, categoryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Op: "AddItem", ListID: listID, Name: name, Category: categoryID}); err != nil {
		return err
	}
	f.items[listID] = append(f.items[listID], backend.Item{
		ID:         backend.GenerateID(),
		Value:      name,
		CategoryID: backend.CategoryRef(categoryID),
	})
	return nil
}

func (f *FakeService) CreateCategory(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Op: "CreateCategory", Name: name}); err != nil {
		return err
	}
	f.categories = append(f.categories, backend.Item{ID: backend.GenerateID(), Value: name})
	return nil
}

func (f *FakeService) CreateList(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Op: "CreateList", Name: name}); err != nil {
		return err
	}
	id := backend.GenerateID()
	f.lists = append(f.lists, backend.ListSummary{ID: id, Name: name})
	f.items[id] = []backend.Item{}
	return nil
}

func (f *FakeService) ToggleCrossedOff(_ context.Context, listID, itemID string, crossOff bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Op: "ToggleCrossedOff", ListID: listID, ItemID: itemID, CrossOff: crossOff}); err != nil {
		return err
	}
	for i := range f.items[listID] {
		if f.items[listID][i].ID == itemID {
			f.items[listID][i].CrossedOff = crossOff
		}
	}
	return nil
}

func (f *FakeService) Close() error {
	return nil
}

// FakeVoice records spoken lines and answers follow-ups from a queue.
// An exhausted queue answers "absent".
type FakeVoice struct {
	mu       sync.Mutex
	Spoken   []string
	Prompts  []string
	Answers  []string
	FollowUp error
}

// Speak records text.
func (v *FakeVoice) Speak(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Spoken = append(v.Spoken, text)
}

// RequestFollowUp pops the next queued answer.
func (v *FakeVoice) RequestFollowUp(_ context.Context, prompt string) (string, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Prompts = append(v.Prompts, prompt)
	if v.FollowUp != nil {
		return "", false, v.FollowUp
	}
	if len(v.Answers) == 0 {
		return "", false, nil
	}
	answer := v.Answers[0]
	v.Answers = v.Answers[1:]
	return answer, true, nil
}

// Transcript returns everything spoken, joined by newlines.
func (v *FakeVoice) Transcript() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return strings.Join(v.Spoken, "\n")
}
