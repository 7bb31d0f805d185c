// Package reconcile merges add and uncross operations into a cached list
// snapshot and decides which of them need a remote call.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"grocat/backend"
	"grocat/internal/cache"
	"grocat/internal/utils"
)

// Action is the outcome of a reconcile.
type Action int

const (
	NoOp Action = iota
	Added
	Uncrossed
)

func (a Action) String() string {
	switch a {
	case Added:
		return "added"
	case Uncrossed:
		return "uncrossed"
	default:
		return "no-op"
	}
}

// Writer is the subset of backend.ListService the reconciler writes through.
type Writer interface {
	AddItem(ctx context.Context, listID, name, categoryID string) error
	ToggleCrossedOff(ctx context.Context, listID, itemID string, crossOff bool) error
}

// Putter persists a snapshot after a local merge.
type Putter interface {
	Put(key cache.Key, snap *backend.Snapshot) error
}

// Reconciler applies item operations to a snapshot and the remote list.
type Reconciler struct {
	remote Writer
	cache  Putter
}

// New creates a reconciler writing to remote and persisting through c.
func New(remote Writer, c Putter) *Reconciler {
	return &Reconciler{remote: remote, cache: c}
}

// scan is what the snapshot says about itemName.
type scan struct {
	existsInCategory bool
	needsMove        bool
	crossedID        string
}

// inspect looks at every item whose value contains itemName.
func inspect(snap *backend.Snapshot, itemName, categoryID string) scan {
	var s scan
	for _, it := range snap.List.Items {
		if !strings.Contains(it.Value, itemName) {
			continue
		}
		if it.HasCategory(categoryID) {
			s.existsInCategory = true
		} else {
			s.needsMove = true
		}
		if it.CrossedOff {
			s.crossedID = it.ID
		}
	}
	return s
}

// Reconcile makes sure itemName is on list listID in category categoryID
// ("" for uncategorized). Items are identified by substring containment.
//
// When a matching item already sits in the category and no match sits
// elsewhere, nothing is added; a crossed-off match is toggled back instead.
// Otherwise the item is added remotely and every matching entry of snap is
// replaced by a provisional {value, categoryId} entry (appended when there
// was no match), then snap is persisted. On remote failure snap and the
// cache are left as they were.
func (r *Reconciler) Reconcile(ctx context.Context, snap *backend.Snapshot, listID, itemName, categoryID string) (Action, error) {
	s := inspect(snap, itemName, categoryID)
	key := cache.Key{ListID: listID, Kind: backend.KindGroceries}

	if s.existsInCategory && !s.needsMove {
		if s.crossedID == "" {
			utils.Debugf("%q already on list %s", itemName, listID)
			return NoOp, nil
		}
		if err := r.remote.ToggleCrossedOff(ctx, listID, s.crossedID, false); err != nil {
			return NoOp, err
		}
		utils.Debugf("returned crossed off %q to list %s", itemName, listID)
		for i := range snap.List.Items {
			if snap.List.Items[i].ID == s.crossedID {
				snap.List.Items[i].CrossedOff = false
			}
		}
		if err := r.cache.Put(key, snap); err != nil {
			return Uncrossed, fmt.Errorf("failed to persist snapshot: %w", err)
		}
		return Uncrossed, nil
	}

	if err := r.remote.AddItem(ctx, listID, itemName, categoryID); err != nil {
		return NoOp, err
	}
	utils.Debugf("added %q to list %s (category %q)", itemName, listID, categoryID)

	// The provisional entry has no id until the next fetch; it only keeps
	// the next command from adding the item again.
	provisional := backend.Item{Value: itemName, CategoryID: backend.CategoryRef(categoryID)}
	replaced := false
	for i := range snap.List.Items {
		if strings.Contains(snap.List.Items[i].Value, itemName) {
			snap.List.Items[i] = provisional
			replaced = true
		}
	}
	if !replaced {
		snap.List.Items = append(snap.List.Items, provisional)
	}

	if err := r.cache.Put(key, snap); err != nil {
		return Added, fmt.Errorf("failed to persist snapshot: %w", err)
	}
	return Added, nil
}

// UncrossAll toggles every crossed-off item of snap back onto the list.
// Each successful toggle is reflected in snap and persisted before the next
// one is sent; the first failure stops the run.
func (r *Reconciler) UncrossAll(ctx context.Context, snap *backend.Snapshot, listID string) (int, error) {
	key := cache.Key{ListID: listID, Kind: backend.KindGroceries}
	restored := 0
	for i := range snap.List.Items {
		it := &snap.List.Items[i]
		if !it.CrossedOff || it.ID == "" {
			continue
		}
		if err := r.remote.ToggleCrossedOff(ctx, listID, it.ID, false); err != nil {
			return restored, err
		}
		utils.Debugf("returning %q to list %s", it.Value, listID)
		it.CrossedOff = false
		restored++
		if err := r.cache.Put(key, snap); err != nil {
			return restored, fmt.Errorf("failed to persist snapshot: %w", err)
		}
	}
	return restored, nil
}
