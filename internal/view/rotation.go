package view

import (
	"context"
)

// View is one screen, Run draws it until ctx is cancelled or it is done.
type View struct {
	Name string
	Run  func(ctx context.Context) error
}

// Rotation cycles through a fixed pair of views.
type Rotation struct {
	views [2]View
	index int
}

func NewRotation(a, b View) *Rotation {
	return &Rotation{views: [2]View{a, b}}
}

func (r *Rotation) Current() View {
	return r.views[r.index]
}

// Next advances the index and returns the new current view.
func (r *Rotation) Next() View {
	r.index = (r.index + 1) % len(r.views)
	return r.views[r.index]
}

func (r *Rotation) Index() int {
	return r.index
}
