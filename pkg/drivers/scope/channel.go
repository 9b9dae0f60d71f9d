package scope

import (
	"context"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/waveform"
)

// Channel is one scope input. The statistics accessors read the most
// recent successful capture.
type Channel struct {
	driver.CaptureStore

	s     *Scope
	index int
}

func (c *Channel) Index() int { return c.index }

func (c *Channel) Name() string { return fmt.Sprintf("CH%d", c.index) }

// SetVoltsPerDiv snaps v to the family's vertical scale table.
func (c *Channel) SetVoltsPerDiv(ctx context.Context, v float64) (float64, error) {
	applied := c.s.dialect.VoltsPerDiv.Snap(v)
	if err := c.s.send(ctx, PathChannelScale, c.index, applied); err != nil {
		return 0, err
	}
	return applied, nil
}

func (c *Channel) VoltsPerDiv(ctx context.Context) (float64, error) {
	return c.s.queryFloat(ctx, PathChannelScaleQuery, c.index)
}

func (c *Channel) SetCoupling(ctx context.Context, mode string) error {
	return c.s.send(ctx, PathChannelCoupling, c.index, c.s.enum(PathChannelCoupling, mode))
}

func (c *Channel) Coupling(ctx context.Context) (string, error) {
	return c.s.queryEnum(ctx, PathChannelCoupling, c.index)
}

// Capture transfers the current record. A failed capture leaves the
// previous one in place.
func (c *Channel) Capture(ctx context.Context) (*waveform.Waveform, error) {
	w, obs, err := c.s.capture(ctx, c.index)
	if obs != nil {
		samples, clipped := 0, false
		if w != nil {
			samples, clipped = w.Len(), w.Clipped
		}
		obs.CaptureCompleted(samples, clipped, err)
	}
	if err != nil {
		return nil, err
	}
	c.Store(w)
	return w, nil
}
