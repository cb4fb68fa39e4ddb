package adsb

import (
	"context"
	"errors"
	"net/http"

	"code.sztanpet.net/zvpsz/planes-around/internal/planes"
)

// Reconnector re-establishes network connectivity, see wifi.Connector
type Reconnector interface {
	Connect(ctx context.Context) error
}

// Feed fetches the planes around a fixed position.
type Feed struct {
	client *Client
	lat    float64
	lon    float64
	radius float64
	net    Reconnector
}

// NewFeed returns a Feed for the given position, net may be nil when
// there is nothing to reconnect (wired or development setups).
func NewFeed(client *Client, lat, lon, radiusNM float64, net Reconnector) *Feed {
	return &Feed{
		client: client,
		lat:    lat,
		lon:    lon,
		radius: radiusNM,
		net:    net,
	}
}

// Planes returns the records around the position, nearest first.
// Fetch and parse failures are logged and yield an empty list after a
// reconnect attempt. The only error returned is the context's.
func (f *Feed) Planes(ctx context.Context) ([]planes.Record, error) {
	resp, err := f.client.Point(ctx, f.lat, f.lon, f.radius)
	if err == nil {
		logger.Debugf("got %v planes", len(resp.Aircraft))
		return planes.Normalize(resp.Aircraft), nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests {
		logger.Warningf("rate limited by the API, retry after: %v", se.RetryAfter)
	} else {
		logger.Warningf("fetching planes failed: %v", err)
	}

	if f.net != nil {
		if err := f.net.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Errorf("reconnect failed: %v", err)
		}
	}

	return []planes.Record{}, nil
}
