package tipping

import (
	"sort"
	"sync"

	"aurafeed/internal/models"
)

// Registry holds one Button per post.
type Registry struct {
	deps *Deps

	mu      sync.Mutex
	buttons map[string]*Button
}

// NewRegistry returns an empty registry sharing deps between its buttons.
func NewRegistry(deps Deps) *Registry {
	deps.withDefaults()
	return &Registry{deps: &deps, buttons: make(map[string]*Button)}
}

// Button returns the button for post, creating it on first use. An existing
// button picks up the post's current recipient and last tip amount.
func (r *Registry) Button(post models.Post) *Button {
	r.mu.Lock()
	b, ok := r.buttons[post.ID]
	if !ok {
		b = newButton(r.deps, post)
		r.buttons[post.ID] = b
	}
	r.mu.Unlock()

	if ok {
		b.update(post)
	}
	return b
}

// Get returns the button for postID if one exists.
func (r *Registry) Get(postID string) (*Button, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buttons[postID]
	return b, ok
}

// Statuses returns the status of every button, ordered by post id.
func (r *Registry) Statuses() []Status {
	r.mu.Lock()
	buttons := make([]*Button, 0, len(r.buttons))
	for _, b := range r.buttons {
		buttons = append(buttons, b)
	}
	r.mu.Unlock()

	out := make([]Status, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, b.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostID < out[j].PostID })
	return out
}
