package model

import "sync"

// Resource is one scan target. Content is loaded on first use and cached;
// callers must not mutate the returned bytes.
type Resource struct {
	Kind    ResourceKind
	Locator Locator

	load    func() ([]byte, error)
	once    sync.Once
	content []byte
	err     error
}

func NewResource(kind ResourceKind, loc Locator, load func() ([]byte, error)) *Resource {
	return &Resource{Kind: kind, Locator: loc, load: load}
}

// StaticResource wraps content that is already in memory.
func StaticResource(kind ResourceKind, loc Locator, content []byte) *Resource {
	return &Resource{
		Kind:    kind,
		Locator: loc,
		load:    func() ([]byte, error) { return content, nil },
	}
}

func (r *Resource) Content() ([]byte, error) {
	r.once.Do(func() {
		if r.load == nil {
			return
		}
		r.content, r.err = r.load()
	})
	return r.content, r.err
}
