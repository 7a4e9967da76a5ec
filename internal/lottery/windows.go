// windows.go — the Time-Window Resolver.
// Maps a day's tee-sheet configuration (operating hours + interval) onto the
// four named preference windows and the concrete slot list each window covers.
// Nothing is hardcoded to one club's hours: weekend sheets open earlier and
// close later than midweek ones, and the windows stretch proportionally.
package lottery

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fairwaygreens/club-api/internal/models"
)

// SheetConfig is the engine's view of one day's tee sheet. Times are minutes
// since midnight rather than time.Time so the resolver is independent of time
// zones and of how the configuration row stores clock strings.
type SheetConfig struct {
	StartMins    int // First tee time, e.g. 420 for 07:00
	EndMins      int // Exclusive upper bound, e.g. 1020 for 17:00
	IntervalMins int // Gap between consecutive start times
	SlotCapacity int // Max players per start time
}

// ParseSheetConfig converts a stored TeeSheetConfig row ("HH:MM" strings) into
// the engine's minute-based form, validating as it goes.
func ParseSheetConfig(cfg models.TeeSheetConfig) (SheetConfig, error) {
	start, err := parseClock(cfg.StartTime)
	if err != nil {
		return SheetConfig{}, fmt.Errorf("%w: bad start time %q", ErrBadConfiguration, cfg.StartTime)
	}
	end, err := parseClock(cfg.EndTime)
	if err != nil {
		return SheetConfig{}, fmt.Errorf("%w: bad end time %q", ErrBadConfiguration, cfg.EndTime)
	}
	return SheetConfig{
		StartMins:    start,
		EndMins:      end,
		IntervalMins: cfg.IntervalMins,
		SlotCapacity: cfg.SlotCapacity,
	}, nil
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// clockLabel renders minutes since midnight back to "HH:MM".
func clockLabel(mins int) string {
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// Slot is one bookable start time on the day's sheet. Remaining starts at the
// configured capacity and is decremented by the allocator as parties are placed.
type Slot struct {
	StartMins int    // Minutes since midnight
	Label     string // "HH:MM" for bookings and responses
	Window    models.PreferenceWindow
	Capacity  int // Configured max players — never changes during a run
	Remaining int // Seats still open — mutated only by the allocator
}

// WindowSlots is one named window and the ordered slots it contains.
// A window with zero slots (possible on a short winter sheet) is kept in the
// list but is simply unselectable as a placement target that day.
type WindowSlots struct {
	Window models.PreferenceWindow
	Slots  []*Slot
}

// Empty reports whether the window holds no slots for this day's configuration.
func (w WindowSlots) Empty() bool { return len(w.Slots) == 0 }

// ResolveWindows partitions the operating interval into the four windows and
// generates the concrete slot list. The window boundaries sit at the quarter
// points of the operating interval, so a 07:00–17:00 sheet splits differently
// from a 08:00–15:00 one — proportional, not fixed clock times.
//
// Fails with ErrBadConfiguration if start >= end, the interval is not positive,
// or the slot capacity is not positive. An empty window is non-fatal: it is
// logged and left in place, unselectable for the day.
func ResolveWindows(cfg SheetConfig, log *logrus.Logger) ([]WindowSlots, error) {
	if cfg.StartMins >= cfg.EndMins {
		return nil, fmt.Errorf("%w: start %s is not before end %s",
			ErrBadConfiguration, clockLabel(cfg.StartMins), clockLabel(cfg.EndMins))
	}
	if cfg.IntervalMins <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive, got %d", ErrBadConfiguration, cfg.IntervalMins)
	}
	if cfg.SlotCapacity <= 0 {
		return nil, fmt.Errorf("%w: slot capacity must be positive, got %d", ErrBadConfiguration, cfg.SlotCapacity)
	}

	names := models.Windows()
	total := cfg.EndMins - cfg.StartMins

	// boundary[i] is the exclusive upper edge of window i. The last boundary is
	// the sheet's end time so rounding never orphans the final slots.
	boundaries := make([]int, len(names))
	for i := 1; i <= len(names); i++ {
		boundaries[i-1] = cfg.StartMins + total*i/len(names)
	}

	windows := make([]WindowSlots, len(names))
	for i, name := range names {
		windows[i] = WindowSlots{Window: name}
	}

	// Walk the day's start times in order, dropping each into the window whose
	// boundary it falls under. Slot order inside a window follows the tee sheet,
	// which is what makes "earliest available slot" well-defined later.
	w := 0
	for t := cfg.StartMins; t < cfg.EndMins; t += cfg.IntervalMins {
		for t >= boundaries[w] {
			w++
		}
		slot := &Slot{
			StartMins: t,
			Label:     clockLabel(t),
			Window:    names[w],
			Capacity:  cfg.SlotCapacity,
			Remaining: cfg.SlotCapacity,
		}
		windows[w].Slots = append(windows[w].Slots, slot)
	}

	for _, ws := range windows {
		if ws.Empty() && log != nil {
			log.WithField("window", ws.Window).Warn("window contains no slots for this configuration; it is unselectable today")
		}
	}

	return windows, nil
}

// findWindow returns the WindowSlots for a named window, or nil if the name is
// unknown (which should be impossible for validated entries).
func findWindow(windows []WindowSlots, name models.PreferenceWindow) *WindowSlots {
	for i := range windows {
		if windows[i].Window == name {
			return &windows[i]
		}
	}
	return nil
}

// maxSlotCapacity returns the largest configured capacity across the whole
// sheet. A party bigger than this can never be placed, whatever its priority.
func maxSlotCapacity(windows []WindowSlots) int {
	max := 0
	for _, ws := range windows {
		for _, s := range ws.Slots {
			if s.Capacity > max {
				max = s.Capacity
			}
		}
	}
	return max
}
