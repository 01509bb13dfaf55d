package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/example/reminder-engine/internal/alarm"
	"github.com/example/reminder-engine/internal/recurrence"
	"github.com/example/reminder-engine/internal/timeutil"
)

const (
	// DefaultScanInterval is how often the engine re-evaluates the entry list.
	DefaultScanInterval = 10 * time.Second

	// MaxScanInterval bounds the configurable scan cadence so that a
	// minute-granularity trigger can never be skipped.
	MaxScanInterval = 60 * time.Second

	// DefaultGraceDelay is how long a fired temporary entry lingers before it
	// is removed, leaving consumers time to observe the trigger.
	DefaultGraceDelay = 500 * time.Millisecond
)

// AlarmStore persists the entry list.
type AlarmStore interface {
	LoadAlarms(ctx context.Context) ([]alarm.Alarm, error)
	SaveAlarms(ctx context.Context, alarms []alarm.Alarm) error
}

// FocusGate reports whether a focus session is active and collects entries
// suppressed while it is.
type FocusGate interface {
	Active() bool
	RecordMissed(ctx context.Context, a alarm.Alarm, scheduledTime time.Time) error
}

// OutcomeRecorder appends trigger outcomes to the history log.
type OutcomeRecorder interface {
	Record(ctx context.Context, alarmID, title string, wasMissed bool) error
}

// Options tunes engine behaviour. Zero values select the defaults.
type Options struct {
	ScanInterval time.Duration
	GraceDelay   time.Duration
	Location     *time.Location
}

// Service owns the in-memory entry list and drives the periodic trigger scan.
// All mutations go through the service so that dedup bookkeeping stays
// consistent with what is persisted.
type Service struct {
	store      AlarmStore
	recurrence *recurrence.Engine
	focus      FocusGate
	history    OutcomeRecorder

	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger

	scanInterval time.Duration
	graceDelay   time.Duration

	mu     sync.Mutex
	alarms []alarm.Alarm
	onDue  []func(alarm.Alarm)
	seq    uint64

	saveMu   sync.Mutex
	savedSeq uint64
	saves    sync.WaitGroup
}

// NewService wires a trigger engine. The focus gate and outcome recorder are
// optional; a nil gate means triggers are never suppressed.
func NewService(
	store AlarmStore,
	focus FocusGate,
	history OutcomeRecorder,
	idGenerator func() string,
	now func() time.Time,
	logger *slog.Logger,
	opts Options,
) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if idGenerator == nil {
		return nil, fmt.Errorf("engine: id generator is required")
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	interval := opts.ScanInterval
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	if interval > MaxScanInterval {
		return nil, fmt.Errorf("engine: scan interval %s exceeds the %s maximum", interval, MaxScanInterval)
	}

	// A negative grace delay removes fired temporaries synchronously.
	grace := opts.GraceDelay
	if grace == 0 {
		grace = DefaultGraceDelay
	}
	if grace < 0 {
		grace = 0
	}

	return &Service{
		store:        store,
		recurrence:   recurrence.NewEngine(opts.Location),
		focus:        focus,
		history:      history,
		idGenerator:  idGenerator,
		now:          now,
		logger:       logger,
		scanInterval: interval,
		graceDelay:   grace,
	}, nil
}

// OnEntryDue registers a callback invoked for every entry that fires.
// Callbacks run outside the engine lock and may call back into the service.
func (s *Service) OnEntryDue(fn func(alarm.Alarm)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDue = append(s.onDue, fn)
}

// Load replaces the in-memory list with the persisted one.
func (s *Service) Load(ctx context.Context) error {
	alarms, err := s.store.LoadAlarms(ctx)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}

	s.mu.Lock()
	s.alarms = alarms
	count := len(alarms)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "entry list loaded", slog.Int("count", count))
	return nil
}

// Refresh is Load under a name that signals an externally requested reload,
// e.g. after the data file changed on disk.
func (s *Service) Refresh(ctx context.Context) error {
	return s.Load(ctx)
}

// Run loads the entry list and scans it on the configured cadence until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}

	s.Scan(ctx)

	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Close waits for in-flight background persistence to finish.
func (s *Service) Close() {
	s.saves.Wait()
}

// Alarms returns a deep copy of the current entry list.
func (s *Service) Alarms() []alarm.Alarm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.alarms)
}

// Get returns the entry with the given id.
func (s *Service) Get(id string) (alarm.Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alarms {
		if s.alarms[i].ID == id {
			return s.alarms[i].Clone(), nil
		}
	}
	return alarm.Alarm{}, ErrNotFound
}

// Add validates and stores a new entry. A missing id is generated.
func (s *Service) Add(ctx context.Context, a alarm.Alarm) (alarm.Alarm, error) {
	if err := validateAlarm(a); err != nil {
		return alarm.Alarm{}, err
	}

	if a.ID == "" {
		a.ID = s.idGenerator()
	}
	if a.Kind == alarm.KindTimed {
		a.ScheduledAt = timeutil.TruncateToMinute(a.ScheduledAt)
	}

	s.mu.Lock()
	s.alarms = append(s.alarms, a)
	snapshot := cloneAll(s.alarms)
	seq := s.nextSeqLocked()
	s.mu.Unlock()

	if err := s.writeSnapshot(ctx, snapshot, seq); err != nil {
		return alarm.Alarm{}, fmt.Errorf("save entries: %w", err)
	}

	s.logger.InfoContext(ctx, "entry added",
		slog.String("entry_id", a.ID),
		slog.String("title", a.Title))
	return a.Clone(), nil
}

// Update validates and replaces the entry with the given id. The stored dedup
// marker survives the edit unless the scheduled time moved into the future,
// which re-arms the entry.
func (s *Service) Update(ctx context.Context, id string, a alarm.Alarm) (alarm.Alarm, error) {
	if err := validateAlarm(a); err != nil {
		return alarm.Alarm{}, err
	}

	now := s.now()
	a.ID = id
	if a.Kind == alarm.KindTimed {
		a.ScheduledAt = timeutil.TruncateToMinute(a.ScheduledAt)
	}

	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return alarm.Alarm{}, ErrNotFound
	}

	previous := s.alarms[idx]
	if !a.ScheduledAt.Equal(previous.ScheduledAt) && a.ScheduledAt.After(now) {
		a.LastTriggered = nil
	} else {
		a.LastTriggered = previous.LastTriggered
	}

	s.alarms[idx] = a
	snapshot := cloneAll(s.alarms)
	seq := s.nextSeqLocked()
	s.mu.Unlock()

	if err := s.writeSnapshot(ctx, snapshot, seq); err != nil {
		return alarm.Alarm{}, fmt.Errorf("save entries: %w", err)
	}

	s.logger.InfoContext(ctx, "entry updated", slog.String("entry_id", id))
	return a.Clone(), nil
}

// Remove deletes the entry with the given id.
func (s *Service) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.alarms = append(s.alarms[:idx], s.alarms[idx+1:]...)
	snapshot := cloneAll(s.alarms)
	seq := s.nextSeqLocked()
	s.mu.Unlock()

	if err := s.writeSnapshot(ctx, snapshot, seq); err != nil {
		return fmt.Errorf("save entries: %w", err)
	}

	s.logger.InfoContext(ctx, "entry removed", slog.String("entry_id", id))
	return nil
}

// SetEnabled toggles an entry without touching its other fields.
func (s *Service) SetEnabled(ctx context.Context, id string, enabled bool) error {
	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.alarms[idx].IsEnabled = enabled
	snapshot := cloneAll(s.alarms)
	seq := s.nextSeqLocked()
	s.mu.Unlock()

	if err := s.writeSnapshot(ctx, snapshot, seq); err != nil {
		return fmt.Errorf("save entries: %w", err)
	}

	s.logger.InfoContext(ctx, "entry toggled",
		slog.String("entry_id", id),
		slog.Bool("enabled", enabled))
	return nil
}

// Scan evaluates every entry against the current minute exactly once. It is
// called by Run but exposed so callers can force an immediate pass.
func (s *Service) Scan(ctx context.Context) {
	now := s.now()
	currentMinute := timeutil.TruncateToMinute(now)

	s.mu.Lock()
	s.reclaimExpiredLocked(ctx, currentMinute)

	suppressed := s.focus != nil && s.focus.Active()
	fired := s.collectDueLocked(ctx, currentMinute)

	var snapshot []alarm.Alarm
	var seq uint64
	var callbacks []func(alarm.Alarm)
	if len(fired) > 0 {
		snapshot = cloneAll(s.alarms)
		seq = s.nextSeqLocked()
		callbacks = slices.Clone(s.onDue)
	}
	s.mu.Unlock()

	if len(fired) == 0 {
		return
	}

	s.persistAsync(snapshot, seq)

	for _, due := range fired {
		if suppressed {
			s.recordMissedDuringFocus(ctx, due, currentMinute)
			continue
		}

		if s.history != nil {
			if err := s.history.Record(ctx, due.ID, due.Title, true); err != nil {
				s.logger.WarnContext(ctx, "history append failed",
					slog.String("entry_id", due.ID),
					slog.String("error", err.Error()))
			}
		}

		for _, fn := range callbacks {
			fn(due.Clone())
		}

		s.logger.InfoContext(ctx, "entry fired",
			slog.String("entry_id", due.ID),
			slog.String("title", due.Title),
			slog.Time("minute", currentMinute))

		if due.IsTemporary {
			s.removeTemporaryAfterFire(due.ID)
		}
	}
}

// collectDueLocked marks every entry due at the given minute as triggered and
// returns copies of them. The caller holds the lock.
func (s *Service) collectDueLocked(ctx context.Context, currentMinute time.Time) []alarm.Alarm {
	var fired []alarm.Alarm
	for i := range s.alarms {
		entry := &s.alarms[i]
		if !entry.IsEnabled || entry.Kind != alarm.KindTimed {
			continue
		}

		next, ok, err := s.recurrence.Next(*entry, currentMinute)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping entry with unusable schedule",
				slog.String("entry_id", entry.ID),
				slog.String("error", err.Error()))
			continue
		}
		if !ok || !next.Equal(currentMinute) {
			continue
		}

		marker := currentMinute
		entry.LastTriggered = &marker
		fired = append(fired, entry.Clone())
	}
	return fired
}

// recordMissedDuringFocus routes a suppressed trigger to the focus gate and
// still books it into history so the record is complete.
func (s *Service) recordMissedDuringFocus(ctx context.Context, due alarm.Alarm, minute time.Time) {
	if err := s.focus.RecordMissed(ctx, due, minute); err != nil {
		s.logger.WarnContext(ctx, "recording suppressed trigger failed",
			slog.String("entry_id", due.ID),
			slog.String("error", err.Error()))
	}
	if s.history != nil {
		if err := s.history.Record(ctx, due.ID, due.Title, true); err != nil {
			s.logger.WarnContext(ctx, "history append failed",
				slog.String("entry_id", due.ID),
				slog.String("error", err.Error()))
		}
	}
	s.logger.InfoContext(ctx, "entry suppressed by focus session",
		slog.String("entry_id", due.ID),
		slog.Time("minute", minute))
}

// reclaimExpiredLocked drops temporary entries whose moment has passed without
// a trigger still pending in the current minute. The caller holds the lock.
func (s *Service) reclaimExpiredLocked(ctx context.Context, currentMinute time.Time) {
	kept := s.alarms[:0]
	removed := 0
	for _, a := range s.alarms {
		if a.IsTemporary && timeutil.TruncateToMinute(a.ScheduledAt).Before(currentMinute) {
			removed++
			s.logger.InfoContext(ctx, "expired temporary entry reclaimed",
				slog.String("entry_id", a.ID))
			continue
		}
		kept = append(kept, a)
	}
	s.alarms = kept
	if removed > 0 {
		s.persistAsync(cloneAll(s.alarms), s.nextSeqLocked())
	}
}

// removeTemporaryAfterFire deletes a fired temporary entry after the grace
// delay so consumers see the trigger before the entry disappears. Pending
// removals count against the save WaitGroup so Close does not return while
// one is still in its grace window.
func (s *Service) removeTemporaryAfterFire(id string) {
	remove := func() {
		s.mu.Lock()
		idx := s.indexOfLocked(id)
		if idx < 0 {
			s.mu.Unlock()
			return
		}
		s.alarms = append(s.alarms[:idx], s.alarms[idx+1:]...)
		snapshot := cloneAll(s.alarms)
		seq := s.nextSeqLocked()
		s.mu.Unlock()

		s.persistAsync(snapshot, seq)
		s.logger.Info("temporary entry removed after firing", slog.String("entry_id", id))
	}

	if s.graceDelay <= 0 {
		remove()
		return
	}
	s.saves.Add(1)
	time.AfterFunc(s.graceDelay, func() {
		defer s.saves.Done()
		remove()
	})
}

// nextSeqLocked stamps a snapshot taken under the entry-list lock. Stamps
// order every snapshot, so a slow background write can be recognised as stale.
func (s *Service) nextSeqLocked() uint64 {
	s.seq++
	return s.seq
}

// writeSnapshot persists a stamped snapshot unless a newer one already
// reached disk. This keeps an old scan's background write from overwriting
// the result of a later user mutation.
func (s *Service) writeSnapshot(ctx context.Context, snapshot []alarm.Alarm, seq uint64) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if seq <= s.savedSeq {
		return nil
	}
	if err := s.store.SaveAlarms(ctx, snapshot); err != nil {
		return err
	}
	s.savedSeq = seq
	return nil
}

// persistAsync writes the given snapshot in the background so a slow disk
// never delays the scan loop. Close waits for outstanding writes.
func (s *Service) persistAsync(snapshot []alarm.Alarm, seq uint64) {
	s.saves.Add(1)
	go func() {
		defer s.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.writeSnapshot(ctx, snapshot, seq); err != nil {
			s.logger.Warn("background save failed", slog.String("error", err.Error()))
		}
	}()
}

func (s *Service) indexOfLocked(id string) int {
	for i := range s.alarms {
		if s.alarms[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(alarms []alarm.Alarm) []alarm.Alarm {
	out := make([]alarm.Alarm, len(alarms))
	for i := range alarms {
		out[i] = alarms[i].Clone()
	}
	return out
}
