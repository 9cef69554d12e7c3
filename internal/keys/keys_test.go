package keys

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
)

func TestScreenBindings(t *testing.T) {
	k := DefaultKeyMap()

	thread := k.Screen(ScreenThread)
	if !contains(thread, k.Like) || !contains(thread, k.Dislike) {
		t.Error("thread screen should offer reactions")
	}
	if contains(k.Screen(ScreenInbox), k.Like) {
		t.Error("inbox screen should not offer reactions")
	}
	if k.Screen("Nope") != nil {
		t.Error("unknown screen should have no bindings")
	}
}

func TestNoKeyBoundTwiceOnAScreen(t *testing.T) {
	for _, s := range DefaultKeyMap().Sections() {
		seen := map[string]bool{}
		for _, b := range s.Bindings {
			for _, k := range b.Keys() {
				if seen[k] {
					t.Errorf("%s: key %q bound twice", s.Title, k)
				}
				seen[k] = true
			}
		}
	}
}

func contains(list []key.Binding, b key.Binding) bool {
	want := b.Help().Key
	for _, x := range list {
		if x.Help().Key == want {
			return true
		}
	}
	return false
}
