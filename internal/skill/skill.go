// Package skill turns recognized voice intents into list operations.
//
// A Skill owns one logged-in Session and runs each intent as a single
// sequential chain: cache check, possible fetch, reconcile, possible write,
// persist. Every outcome, including failures, is spoken back through the
// Voice that delivered the intent.
package skill

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"grocat/backend"
	"grocat/internal/cache"
	"grocat/internal/reconcile"
	"grocat/internal/utils"
)

// Voice is the front-end an intent speaks through.
type Voice interface {
	// Speak says text to the user.
	Speak(text string)
	// RequestFollowUp asks prompt and waits for the answer. ok is false when
	// the user gave no answer.
	RequestFollowUp(ctx context.Context, prompt string) (answer string, ok bool, err error)
}

// Slot names delivered with an intent.
const (
	SlotFood     = "Food"
	SlotCategory = "Category"
	SlotListName = "ListName"
)

// Slots maps slot names to the recognized utterance fields.
type Slots map[string]string

// Get returns the trimmed value of slot, or "" when it is absent.
func (s Slots) Get(slot string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(s[slot])
}

// Intent names accepted by Handle.
const (
	IntentAddItem     = "AddItem"
	IntentAddCategory = "AddCategory"
	IntentCreateList  = "CreateList"
	IntentUncrossAll  = "UncrossAll"
	IntentListLists   = "ListLists"
)

// ErrUnknownIntent is returned by Handle for an intent name it does not serve.
var ErrUnknownIntent = errors.New("unknown intent")

// Session is an explicitly owned login against the list service.
type Session struct {
	ID       string
	Username string
	Service  backend.ListService
}

// Open logs in to svc and returns the session.
func Open(ctx context.Context, svc backend.ListService, username string) (*Session, error) {
	if err := svc.Login(ctx); err != nil {
		return nil, err
	}
	s := &Session{
		ID:       uuid.New().String(),
		Username: username,
		Service:  svc,
	}
	utils.Debugf("session %s opened for %s", s.ID, username)
	return s, nil
}

// Skill runs intents against one session.
type Skill struct {
	session     *Session
	cache       *cache.Cache
	reconciler  *reconcile.Reconciler
	defaultList string
	handlers    map[string]handler
}

type handler func(ctx context.Context, slots Slots, v Voice) error

// New creates a skill. defaultList is used when an intent names no list.
func New(session *Session, c *cache.Cache, defaultList string) *Skill {
	s := &Skill{
		session:     session,
		cache:       c,
		reconciler:  reconcile.New(session.Service, c),
		defaultList: defaultList,
	}
	s.handlers = map[string]handler{
		strings.ToLower(IntentAddItem):     s.AddItem,
		strings.ToLower(IntentAddCategory): s.AddCategory,
		strings.ToLower(IntentCreateList):  s.CreateList,
		strings.ToLower(IntentUncrossAll):  s.UncrossAll,
		strings.ToLower(IntentListLists):   s.ListLists,
	}
	return s
}

// Session returns the session the skill runs against.
func (s *Skill) Session() *Session {
	return s.session
}

// Intents returns the names Handle accepts, sorted.
func Intents() []string {
	names := []string{IntentAddItem, IntentAddCategory, IntentCreateList, IntentUncrossAll, IntentListLists}
	sort.Strings(names)
	return names
}

// Handle runs the intent called name. Names compare case-insensitively.
func (s *Skill) Handle(ctx context.Context, name string, slots Slots, v Voice) error {
	h, ok := s.handlers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		v.Speak("Sorry, I don't know how to do that.")
		return fmt.Errorf("%w: %s", ErrUnknownIntent, name)
	}
	utils.Debugf("intent %s slots=%v", name, map[string]string(slots))
	return h(ctx, slots, v)
}

// targetList is a resolved list: its remote id and the name to speak.
type targetList struct {
	ID   string
	Name string
}

var categoriesKey = cache.Key{Kind: backend.KindCategories}

func groceriesKey(listID string) cache.Key {
	return cache.Key{ListID: listID, Kind: backend.KindGroceries}
}
