package view

import (
	"context"
	"time"
)

// TickDurr is the button sampling period.
var TickDurr = 100 * time.Millisecond

// Button reports whether a push button is held down, see gpio.Button.
type Button interface {
	Pressed() bool
}

// Switcher samples the buttons and switches views on a press of button A.
// Button B shares the press latch and does nothing else yet.
// It is driven by a single goroutine and has no locking.
type Switcher struct {
	rot    *Rotation
	a, b   Button
	active *Task
	// latched is set by a press and cleared once both buttons are released
	latched bool
}

func NewSwitcher(rot *Rotation, a, b Button) *Switcher {
	return &Switcher{
		rot: rot,
		a:   a,
		b:   b,
	}
}

// Run starts the current view and samples the buttons every TickDurr
// until ctx is cancelled, then stops the active view.
func (s *Switcher) Run(ctx context.Context) error {
	s.start(ctx)

	t := time.NewTicker(TickDurr)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.active.Stop(); err != nil {
				logger.Errorf("view %v failed: %v", s.active.Name(), err)
			}
			return nil

		case <-t.C:
			if err := s.Tick(ctx); err != nil {
				logger.Errorf("view failed: %v", err)
			}
		}
	}
}

// Tick reads both buttons once. The error is the failure of a view
// stopped by a switch, the new view is running regardless.
func (s *Switcher) Tick(ctx context.Context) error {
	a, b := s.a.Pressed(), s.b.Pressed()

	var err error
	switch {
	case a && !s.latched:
		s.latched = true
		err = s.switchView(ctx)
	case b && !s.latched:
		s.latched = true
		logger.Debugf("button B pressed")
	}

	if !a && !b {
		s.latched = false
	}
	return err
}

// Active returns the name of the running view.
func (s *Switcher) Active() string {
	if s.active == nil {
		return ""
	}
	return s.active.Name()
}

func (s *Switcher) start(ctx context.Context) {
	if s.active != nil {
		return
	}
	v := s.rot.Current()
	s.active = Start(ctx, v.Name, v.Run)
}

// switchView cancels and joins the active view before starting the next one
func (s *Switcher) switchView(ctx context.Context) error {
	var err error
	if s.active != nil {
		err = s.active.Stop()
	}

	v := s.rot.Next()
	logger.Infof("switching to view %v", v.Name)
	s.active = Start(ctx, v.Name, v.Run)
	return err
}
