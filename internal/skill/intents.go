package skill

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"grocat/backend"
	"grocat/internal/category"
	"grocat/internal/listmatch"
	"grocat/internal/reconcile"
	"grocat/internal/utils"
)

// AddItem puts the Food slot on the named list (or the default list), in the
// category named by the Category slot when one resolves.
func (s *Skill) AddItem(ctx context.Context, slots Slots, v Voice) error {
	food := slots.Get(SlotFood)
	if food == "" {
		v.Speak("Sorry, I didn't catch what to add.")
		return utils.NewMissingSlotError(SlotFood)
	}
	v.Speak(fmt.Sprintf("Adding %s to your list", food))

	list, err := s.resolveList(ctx, slots, v)
	if err != nil {
		return err
	}

	groceries, err := s.cache.Get(ctx, groceriesKey(list.ID))
	if err != nil {
		v.Speak(fmt.Sprintf("Sorry, I couldn't add %s to %s.", food, list.Name))
		return utils.NewRemoteCallError("fetch", list.Name, list.Name, err)
	}
	categories, err := s.cache.Get(ctx, categoriesKey)
	if err != nil {
		v.Speak(fmt.Sprintf("Sorry, I couldn't add %s to %s.", food, list.Name))
		return utils.NewRemoteCallError("fetch", "categories", list.Name, err)
	}

	spokenCategory := slots.Get(SlotCategory)
	categoryID := category.Resolve(spokenCategory, categories)
	if spokenCategory != "" && categoryID == "" {
		utils.Infof("category %q not found, adding %q uncategorized", spokenCategory, food)
	}

	action, err := s.reconciler.Reconcile(ctx, groceries, list.ID, food, categoryID)
	if err != nil {
		if action == reconcile.NoOp {
			v.Speak(fmt.Sprintf("Sorry, I couldn't add %s to %s.", food, list.Name))
			return utils.NewRemoteCallError("add", food, list.Name, err)
		}
		// The remote write went through; only the local copy is behind.
		utils.Warnf("%s %q but could not update the cache: %v", action, food, err)
	}

	switch action {
	case reconcile.Added:
		if spokenCategory != "" && categoryID == "" {
			v.Speak(fmt.Sprintf("I couldn't find a category called %s, so I added %s to %s without one.", spokenCategory, food, list.Name))
		} else {
			v.Speak(fmt.Sprintf("Added %s to %s.", food, list.Name))
		}
	case reconcile.Uncrossed:
		v.Speak(fmt.Sprintf("%s was crossed off, so I put it back on %s.", food, list.Name))
	default:
		v.Speak(fmt.Sprintf("%s is already on %s.", food, list.Name))
	}
	return nil
}

// AddCategory creates the category named by the Category slot unless one
// already resolves. The categories snapshot is refreshed before and after.
func (s *Skill) AddCategory(ctx context.Context, slots Slots, v Voice) error {
	name := slots.Get(SlotCategory)
	if name == "" {
		v.Speak("Sorry, I didn't catch the category name.")
		return utils.NewMissingSlotError(SlotCategory)
	}

	categories, err := s.cache.Refresh(ctx, categoriesKey)
	if err != nil {
		v.Speak(fmt.Sprintf("Sorry, I couldn't add the category %s.", name))
		return utils.NewRemoteCallError("fetch", "categories", "categories", err)
	}
	if category.Exists(name, categories) {
		v.Speak(fmt.Sprintf("The category %s already exists.", name))
		return nil
	}

	if err := s.session.Service.CreateCategory(ctx, name); err != nil {
		v.Speak(fmt.Sprintf("Sorry, I couldn't add the category %s.", name))
		return utils.NewRemoteCallError("create category", name, "categories", err)
	}
	if _, err := s.cache.Refresh(ctx, categoriesKey); err != nil {
		utils.Warnf("category %q created but categories could not be refreshed: %v", name, err)
	}
	v.Speak(fmt.Sprintf("Added the category %s.", name))
	return nil
}

// CreateList creates a list named by the ListName slot, asking for the name
// when the slot is absent. A list with the same name is never duplicated; a
// list whose name contains the new one is only duplicated after the user
// confirms.
func (s *Skill) CreateList(ctx context.Context, slots Slots, v Voice) error {
	name := slots.Get(SlotListName)
	if name == "" {
		const prompt = "What should the new list be called?"
		answer, ok, err := v.RequestFollowUp(ctx, prompt)
		if err != nil {
			v.Speak("Okay, I won't create a list.")
			return utils.WrapWithSuggestion(fmt.Errorf("%w: %v", utils.ErrFollowUpCancelled, err), "Repeat the command with the list name")
		}
		name = strings.TrimSpace(answer)
		if !ok || name == "" {
			v.Speak("Sorry, I didn't catch the list name.")
			return utils.NewMissingSlotError(SlotListName)
		}
	}

	lists, err := s.session.Service.ListSummaries(ctx)
	if err != nil {
		v.Speak(fmt.Sprintf("Sorry, I couldn't create the list %s.", name))
		return utils.NewRemoteCallError("fetch", "lists", name, err)
	}

	match := listmatch.FindSimilar(name, lists)
	switch match.Kind {
	case listmatch.ExactMatch:
		v.Speak(fmt.Sprintf("You already have a list called %s.", match.Name))
		return nil
	case listmatch.SimilarMatch:
		prompt := fmt.Sprintf("You already have a list called %s. Do you still want to create %s?", match.Name, name)
		answer, ok, err := v.RequestFollowUp(ctx, prompt)
		if err != nil || !ok {
			if err != nil {
				utils.Debugf("follow-up failed: %v", err)
			}
			v.Speak(fmt.Sprintf("Okay, I won't create %s.", name))
			return utils.NewFollowUpCancelledError(prompt)
		}
		if !utils.IsAffirmative(answer) {
			v.Speak(fmt.Sprintf("Okay, I won't create %s.", name))
			return nil
		}
	}

	if err := s.session.Service.CreateList(ctx, name); err != nil {
		v.Speak(fmt.Sprintf("Sorry, I couldn't create the list %s.", name))
		return utils.NewRemoteCallError("create list", name, name, err)
	}
	v.Speak(fmt.Sprintf("Created the list %s.", name))
	return nil
}

// UncrossAll puts every crossed-off item of the named list back on it.
func (s *Skill) UncrossAll(ctx context.Context, slots Slots, v Voice) error {
	list, err := s.resolveList(ctx, slots, v)
	if err != nil {
		return err
	}

	groceries, err := s.cache.Get(ctx, groceriesKey(list.ID))
	if err != nil {
		v.Speak(fmt.Sprintf("Sorry, I couldn't read %s.", list.Name))
		return utils.NewRemoteCallError("fetch", list.Name, list.Name, err)
	}

	n, err := s.reconciler.UncrossAll(ctx, groceries, list.ID)
	if err != nil {
		v.Speak(fmt.Sprintf("Sorry, I couldn't put everything back on %s.", list.Name))
		return utils.NewRemoteCallError("uncross", "crossed off items", list.Name, err)
	}

	switch n {
	case 0:
		v.Speak(fmt.Sprintf("Nothing is crossed off on %s.", list.Name))
	case 1:
		v.Speak(fmt.Sprintf("I put 1 item back on %s.", list.Name))
	default:
		v.Speak(fmt.Sprintf("I put %d items back on %s.", n, list.Name))
	}
	return nil
}

// ListLists speaks the names of all lists.
func (s *Skill) ListLists(ctx context.Context, _ Slots, v Voice) error {
	lists, err := s.session.Service.ListSummaries(ctx)
	if err != nil {
		v.Speak("Sorry, I couldn't get your lists.")
		return utils.NewRemoteCallError("fetch", "lists", "", err)
	}
	if len(lists) == 0 {
		v.Speak("You don't have any lists yet.")
		return nil
	}

	names := make([]string, len(lists))
	for i, l := range lists {
		names[i] = l.Name
	}
	v.Speak("Your lists are " + joinSpoken(names) + ".")
	return nil
}

// resolveList maps the ListName slot, or the default list, to a list id.
func (s *Skill) resolveList(ctx context.Context, slots Slots, v Voice) (targetList, error) {
	spoken := slots.Get(SlotListName)
	if spoken == "" {
		spoken = s.defaultList
	}
	if spoken == "" {
		v.Speak("Sorry, which list do you mean?")
		return targetList{}, utils.NewMissingSlotError(SlotListName)
	}

	lists, err := s.session.Service.ListSummaries(ctx)
	if err != nil {
		v.Speak(fmt.Sprintf("Sorry, I couldn't find %s.", spoken))
		return targetList{}, utils.NewRemoteCallError("fetch", "lists", spoken, err)
	}

	id := listmatch.ResolveListID(spoken, lists)
	if id == "" {
		v.Speak(fmt.Sprintf("Sorry, I couldn't find a list called %s.", spoken))
		return targetList{}, utils.NewListNotFoundError(spoken)
	}
	name := spoken
	if l := findByID(lists, id); l != nil {
		name = l.Name
	}
	return targetList{ID: id, Name: name}, nil
}

func findByID(lists []backend.ListSummary, id string) *backend.ListSummary {
	for i := range lists {
		if lists[i].ID == id {
			return &lists[i]
		}
	}
	return nil
}

// joinSpoken joins names as "a", "a and b" or "a, b and c".
func joinSpoken(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}

// IsUserError reports whether err is one of the spoken, non-fatal intent
// failures rather than an internal fault.
func IsUserError(err error) bool {
	return errors.Is(err, utils.ErrMissingSlot) ||
		errors.Is(err, utils.ErrListNotFound) ||
		errors.Is(err, utils.ErrFollowUpCancelled) ||
		errors.Is(err, ErrUnknownIntent)
}
