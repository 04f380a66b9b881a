// Package mixer lowers other applications' playback while the microphone
// is open, using PulseAudio's pactl.
package mixer

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const maxVolume = 150

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

type streamInfo struct {
	ID      int
	Volume  int
	AppName string
}

type fadeTarget struct {
	id   int
	from int
	to   int
}

// Ducker fades every sink input except those whose application.name is in
// selfNames.
type Ducker struct {
	mu          sync.Mutex
	active      bool
	selfNames   []string
	originalVol map[int]int // sink input id -> volume before ducking
	minVolume   int
	factor      float64
	fade        time.Duration
}

func NewDucker(selfNames []string, minVolume int, factor float64, fade time.Duration) *Ducker {
	minVolume = clamp(minVolume)
	if factor <= 0 || factor > 1 {
		factor = 0.3
	}

	return &Ducker{
		selfNames:   append([]string(nil), selfNames...),
		originalVol: make(map[int]int),
		minVolume:   minVolume,
		factor:      factor,
		fade:        fade,
	}
}

// Duck fades other streams to volume*factor, never below minVolume.
func (d *Ducker) Duck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := listStreams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	targets := d.duckTargets(streams)

	d.originalVol = make(map[int]int, len(targets))
	for _, t := range targets {
		d.originalVol[t.id] = t.from
	}

	if err := fadeInputs(ctx, targets, d.fade); err != nil {
		return err
	}

	d.active = true
	return nil
}

// Unduck fades ducked streams back. Streams that appeared meanwhile are
// left alone.
func (d *Ducker) Unduck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := listStreams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	if err := fadeInputs(ctx, d.restoreTargets(streams), d.fade); err != nil {
		return err
	}

	d.originalVol = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) duckTargets(streams []streamInfo) []fadeTarget {
	var targets []fadeTarget
	for _, s := range streams {
		if d.isSelfStream(s) {
			continue
		}

		to := math.Max(float64(s.Volume)*d.factor, float64(d.minVolume))
		targets = append(targets, fadeTarget{
			id:   s.ID,
			from: s.Volume,
			to:   clamp(int(math.Round(to))),
		})
	}
	return targets
}

func (d *Ducker) restoreTargets(streams []streamInfo) []fadeTarget {
	var targets []fadeTarget
	for _, s := range streams {
		if d.isSelfStream(s) {
			continue
		}
		orig, ok := d.originalVol[s.ID]
		if !ok {
			continue
		}
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: orig})
	}
	return targets
}

func (d *Ducker) isSelfStream(s streamInfo) bool {
	for _, name := range d.selfNames {
		if s.AppName == name {
			return true
		}
	}
	return false
}

// fadeInputs steps every target linearly from its current to its final
// volume over duration.
func fadeInputs(ctx context.Context, targets []fadeTarget, duration time.Duration) error {
	if len(targets) == 0 {
		return nil
	}

	if duration <= 0 {
		for _, t := range targets {
			if err := setSinkInputVolume(ctx, t.id, t.to); err != nil {
				return fmt.Errorf("set volume id=%d: %w", t.id, err)
			}
		}
		return nil
	}

	const minStepDuration = 10 * time.Millisecond

	steps := max(int(duration/minStepDuration), 1)
	stepDuration := duration / time.Duration(steps)

	for i := 0; i <= steps; i++ {
		frac := float64(i) / float64(steps)

		for _, t := range targets {
			if err := setSinkInputVolume(ctx, t.id, t.at(frac)); err != nil {
				return fmt.Errorf("set volume id=%d: %w", t.id, err)
			}
		}

		if i < steps {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(stepDuration):
			}
		}
	}

	return nil
}

func (t fadeTarget) at(frac float64) int {
	return int(math.Round(float64(t.from) + float64(t.to-t.from)*frac))
}

func listStreams(ctx context.Context) ([]streamInfo, error) {
	out, err := exec.CommandContext(ctx, "pactl", "list", "sink-inputs").Output()
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

// parseSinkInputs reads `pactl list sink-inputs` output.
func parseSinkInputs(text string) []streamInfo {
	parts := strings.Split(text, "Sink Input #")
	if len(parts) <= 1 {
		return nil
	}

	var res []streamInfo

	for _, block := range parts[1:] {
		newline := strings.IndexByte(block, '\n')
		if newline <= 0 {
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(block[:newline]))
		if err != nil {
			continue
		}

		s := streamInfo{ID: id}

		for _, line := range strings.Split(block[newline+1:], "\n") {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && s.Volume == 0 {
				if m := percentRe.FindStringSubmatch(line); len(m) >= 2 {
					if v, err := strconv.Atoi(m[1]); err == nil {
						s.Volume = v
					}
				}
			}

			if strings.HasPrefix(line, "application.name =") && s.AppName == "" {
				// application.name = "Firefox"
				if _, rest, ok := strings.Cut(line, `"`); ok {
					s.AppName, _, _ = strings.Cut(rest, `"`)
				}
			}
		}

		if s.Volume == 0 && s.AppName == "" {
			continue
		}

		res = append(res, s)
	}

	return res
}

func setSinkInputVolume(ctx context.Context, id int, percent int) error {
	arg := fmt.Sprintf("%d%%", clamp(percent))
	return exec.CommandContext(ctx, "pactl", "set-sink-input-volume", strconv.Itoa(id), arg).Run()
}

func clamp(v int) int {
	return min(max(v, 0), maxVolume)
}
