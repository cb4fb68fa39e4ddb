// Package wifi keeps the device associated to the configured access point.
package wifi

import (
	"context"
	"errors"
	"time"

	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("main.wifi")

var (
	// ErrBadCredentials aborts a connect sequence, retrying would not help.
	ErrBadCredentials = errors.New("wifi: invalid credentials")
	// ErrExhausted is returned after every attempt failed and the device reset was requested.
	ErrExhausted = errors.New("wifi: connection attempts exhausted")
)

// Static is a static IPv4 configuration, applied after association.
type Static struct {
	IP      string
	Mask    string
	Gateway string
	DNS     string
}

// Radio is the wireless interface, see NMCli.
type Radio interface {
	Connected(ctx context.Context) (bool, error)
	Associate(ctx context.Context, ssid, key string) error
	SetEnabled(ctx context.Context, on bool) error
	ApplyStatic(ctx context.Context, ssid string, s Static) error
}

// Connector runs the connect sequence. It is not safe for concurrent use,
// only the active view reconnects.
type Connector struct {
	Radio       Radio
	SSID        string
	Key         string
	Static      *Static
	MaxAttempts int
	RetryDelay  time.Duration

	// Reset restarts the whole device, called when every attempt failed
	Reset func()
}

// Connect associates to the access point unless already connected.
//
// After the failed attempt number MaxAttempts/2 the radio is switched off
// and on again to clear stuck states. Bad credentials stop the sequence
// right away. When every attempt fails Reset is called and ErrExhausted
// returned.
func (c *Connector) Connect(ctx context.Context) error {
	if ok, err := c.Radio.Connected(ctx); err != nil {
		logger.Debugf("checking connection state failed: %v", err)
	} else if ok {
		return nil
	}

	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		logger.Infof("connecting to %q, attempt %d/%d", c.SSID, attempt, c.MaxAttempts)

		err := c.Radio.Associate(ctx, c.SSID, c.Key)
		if err == nil {
			return c.configure(ctx)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrBadCredentials) {
			logger.Criticalf("wifi configuration error for %q: %v", c.SSID, err)
			return err
		}
		logger.Warningf("connecting to %q failed: %v", c.SSID, err)

		if attempt == c.MaxAttempts {
			break
		}

		if attempt == c.MaxAttempts/2 {
			if err := c.cycle(ctx); err != nil {
				return err
			}
		}

		if err := sleep(ctx, c.RetryDelay); err != nil {
			return err
		}
	}

	logger.Criticalf("could not connect to %q after %d attempts, resetting device", c.SSID, c.MaxAttempts)
	if c.Reset != nil {
		c.Reset()
	}
	return ErrExhausted
}

// cycle switches the radio off and on again
func (c *Connector) cycle(ctx context.Context) error {
	logger.Infof("resetting wireless interface")
	if err := c.Radio.SetEnabled(ctx, false); err != nil {
		logger.Warningf("disabling radio failed: %v", err)
	}
	if err := sleep(ctx, c.RetryDelay); err != nil {
		return err
	}
	if err := c.Radio.SetEnabled(ctx, true); err != nil {
		logger.Warningf("enabling radio failed: %v", err)
	}
	return ctx.Err()
}

func (c *Connector) configure(ctx context.Context) error {
	logger.Infof("connected to %q", c.SSID)
	if c.Static == nil {
		return nil
	}

	if err := c.Radio.ApplyStatic(ctx, c.SSID, *c.Static); err != nil {
		logger.Errorf("applying static ip configuration failed: %v", err)
		return err
	}
	logger.Debugf("static ip configuration applied: %+v", *c.Static)
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
