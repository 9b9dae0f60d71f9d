package scope

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/idn"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/instrument"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/scpi"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/waveform"
)

// Scope is an oscilloscope session. It implements driver.Horizontal,
// driver.Vertical, driver.Trigger and driver.Display; operations whose
// command the dialect lacks return driver.ErrUnsupported.
type Scope struct {
	h        *instrument.Handle
	id       idn.Identity
	dialect  Dialect
	channels []*Channel
	log      logrus.FieldLogger

	// mu keeps multi-command sequences such as a capture together.
	mu       sync.Mutex
	observer driver.CaptureObserver
}

// New binds a dialect to an open session.
func New(h *instrument.Handle, id idn.Identity, d Dialect) (*Scope, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	s := &Scope{
		h:       h,
		id:      id,
		dialect: d,
		log:     h.Logger().WithFields(logrus.Fields{"model": id.Model, "family": d.Family}),
	}
	for i := 1; i <= d.Channels; i++ {
		s.channels = append(s.channels, &Channel{s: s, index: i})
	}
	return s, nil
}

func (s *Scope) Identity() idn.Identity { return s.id }

func (s *Scope) Categories() []driver.Category {
	return []driver.Category{driver.CategoryScope}
}

func (s *Scope) Close() error { return s.h.Close() }

// Handle exposes the underlying session.
func (s *Scope) Handle() *instrument.Handle { return s.h }

// Dialect returns the family description the scope was built with.
func (s *Scope) Dialect() Dialect { return s.dialect }

// SetCaptureObserver registers o for capture events.
func (s *Scope) SetCaptureObserver(o driver.CaptureObserver) {
	s.mu.Lock()
	s.observer = o
	s.mu.Unlock()
}

// unsupported names the capability and operation from a command path, so
// "display.type" reports display.type.
func (s *Scope) unsupported(path string) error {
	path = strings.TrimSuffix(path, ".query")
	capability, op, _ := strings.Cut(path, ".")
	return driver.Unsupported(s.id.Model, capability, op)
}

// enum maps a short, long or differently cased spelling onto the value the
// command table registered for path.
func (s *Scope) enum(path, value string) string {
	for _, v := range s.dialect.Commands.Values(path) {
		if scpi.MatchMnemonic(v, value) {
			return v
		}
	}
	return value
}

func (s *Scope) send(ctx context.Context, path string, args ...any) error {
	if !s.dialect.Commands.Has(path) {
		return s.unsupported(path)
	}
	cmd, err := s.dialect.Commands.Format(path, args...)
	if err != nil {
		return err
	}
	return s.h.Write(ctx, cmd)
}

func (s *Scope) query(ctx context.Context, path string, args ...any) (string, error) {
	if !s.dialect.Commands.Has(path) {
		return "", s.unsupported(path)
	}
	cmd, err := s.dialect.Commands.Format(path, args...)
	if err != nil {
		return "", err
	}
	resp, err := s.h.Query(ctx, cmd)
	return strings.TrimSpace(resp), err
}

func (s *Scope) queryFloat(ctx context.Context, path string, args ...any) (float64, error) {
	resp, err := s.query(ctx, path, args...)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: unexpected reply %q", path, resp)
	}
	return v, nil
}

// queryEnum reads a setting and reports it in the registered spelling of
// the matching set command.
func (s *Scope) queryEnum(ctx context.Context, setPath string, args ...any) (string, error) {
	resp, err := s.query(ctx, setPath+".query", args...)
	if err != nil {
		return "", err
	}
	return s.enum(setPath, resp), nil
}

// SetTimebase snaps secondsPerDiv to the family's timebase table.
func (s *Scope) SetTimebase(ctx context.Context, secondsPerDiv float64) (float64, error) {
	v := s.dialect.Timebase.Snap(secondsPerDiv)
	if err := s.send(ctx, PathTimebase, v); err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"requested": secondsPerDiv, "applied": v}).Debug("timebase set")
	return v, nil
}

func (s *Scope) Timebase(ctx context.Context) (float64, error) {
	return s.queryFloat(ctx, PathTimebaseQuery)
}

func (s *Scope) Channels() int { return len(s.channels) }

// Channel returns input index, counted from 1.
func (s *Scope) Channel(index int) (driver.Channel, error) {
	if index < 1 || index > len(s.channels) {
		return nil, &driver.ChannelNotFoundError{Index: index, Max: len(s.channels)}
	}
	return s.channels[index-1], nil
}

func (s *Scope) checkChannel(index int) error {
	if index < 1 || index > len(s.channels) {
		return &driver.ChannelNotFoundError{Index: index, Max: len(s.channels)}
	}
	return nil
}

func (s *Scope) SetSource(ctx context.Context, channel int) error {
	if err := s.checkChannel(channel); err != nil {
		return err
	}
	return s.send(ctx, PathTriggerSource, ChannelMnemonic(channel))
}

func (s *Scope) SetLevel(ctx context.Context, volts float64) error {
	return s.send(ctx, PathTriggerLevel, volts)
}

func (s *Scope) SetSlope(ctx context.Context, slope string) error {
	return s.send(ctx, PathTriggerSlope, s.enum(PathTriggerSlope, slope))
}

func (s *Scope) SetCoupling(ctx context.Context, mode string) error {
	return s.send(ctx, PathTriggerCoupling, s.enum(PathTriggerCoupling, mode))
}

// EdgeSettings reads back the edge trigger.
func (s *Scope) EdgeSettings(ctx context.Context) (driver.EdgeSettings, error) {
	var (
		es  driver.EdgeSettings
		err error
	)
	if es.Source, err = s.queryEnum(ctx, PathTriggerSource); err != nil {
		return es, err
	}
	if es.Slope, err = s.queryEnum(ctx, PathTriggerSlope); err != nil {
		return es, err
	}
	if es.Coupling, err = s.queryEnum(ctx, PathTriggerCoupling); err != nil {
		return es, err
	}
	if es.Level, err = s.queryFloat(ctx, PathTriggerLevelQuery); err != nil {
		return es, err
	}
	return es, nil
}

func (s *Scope) SetFormat(ctx context.Context, mode string) error {
	return s.send(ctx, PathDisplayType, s.enum(PathDisplayType, mode))
}

func (s *Scope) SetPersistence(ctx context.Context, mode string) error {
	return s.send(ctx, PathDisplayPersistence, s.enum(PathDisplayPersistence, mode))
}

// capture transfers and decodes the current record of input index.
func (s *Scope) capture(ctx context.Context, index int) (*waveform.Waveform, driver.CaptureObserver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs := s.observer

	if err := s.send(ctx, PathWaveformSource, ChannelMnemonic(index)); err != nil {
		return nil, obs, err
	}
	for _, st := range s.dialect.Transfer {
		value := st.Value
		if str, ok := value.(string); ok {
			value = s.enum(st.Path, str)
		}
		if err := s.send(ctx, st.Path, value); err != nil {
			return nil, obs, err
		}
	}

	raw, err := s.query(ctx, PathWaveformPreamble)
	if err != nil {
		return nil, obs, err
	}
	pre, err := s.dialect.ParsePreamble(raw)
	if err != nil {
		return nil, obs, err
	}

	codes, err := s.transfer(ctx, pre.SampleCount)
	if err != nil {
		return nil, obs, err
	}
	w, err := waveform.Decode(codes, pre)
	if err != nil {
		return nil, obs, err
	}
	s.log.WithFields(logrus.Fields{
		"channel": index,
		"samples": w.Len(),
		"clipped": w.Clipped,
	}).Debug("capture decoded")
	return w, obs, nil
}

// transfer reads total points, in ChunkSize windows when the dialect asks
// for it. Windows are one based and inclusive.
func (s *Scope) transfer(ctx context.Context, total int) ([]int, error) {
	chunk := s.dialect.ChunkSize
	if chunk <= 0 {
		return s.readBlock(ctx)
	}

	codes := make([]int, 0, total)
	for start := 1; start <= total; start += chunk {
		stop := min(start+chunk-1, total)
		if err := s.send(ctx, PathWaveformStart, start); err != nil {
			return nil, err
		}
		if err := s.send(ctx, PathWaveformStop, stop); err != nil {
			return nil, err
		}
		part, err := s.readBlock(ctx)
		if err != nil {
			return nil, err
		}
		codes = append(codes, part...)
	}
	return codes, nil
}

func (s *Scope) readBlock(ctx context.Context) ([]int, error) {
	if !s.dialect.Commands.Has(PathWaveformData) {
		return nil, s.unsupported(PathWaveformData)
	}
	cmd, err := s.dialect.Commands.Format(PathWaveformData)
	if err != nil {
		return nil, err
	}
	data, err := s.h.QueryBlock(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return waveform.Unpack(data, s.dialect.Format)
}
