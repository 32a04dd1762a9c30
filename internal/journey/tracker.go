package journey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/pkordes/visit-tracker/internal/domain"
	"github.com/pkordes/visit-tracker/internal/geo"
)

// LegStore is the travel leg store as the tracker consumes it.
type LegStore interface {
	CreateLeg(ctx context.Context, who domain.Identity, in domain.NewLeg) (domain.LegRef, error)
	CompleteLeg(ctx context.Context, who domain.Identity, legID uuid.UUID, c domain.LegCompletion) (float64, error)
	QueryLegs(ctx context.Context, f domain.LegFilter) ([]domain.TravelLeg, error)
}

// AppointmentStore reads appointments and moves their visit status.
type AppointmentStore interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) error
}

// FixSource captures the traveler's position. *geo.Capturer implements it.
type FixSource interface {
	Capture(ctx context.Context, intent geo.Intent) (geo.Fix, error)
}

// Presenter shows the outcome of a failed action. It may be nil.
type Presenter interface {
	Notify(n Notice)
}

var (
	// ErrBusy is returned when an action starts while another is running.
	ErrBusy = errors.New("another action is in progress")
	// ErrNoAppointment is returned by actions called before Load.
	ErrNoAppointment = errors.New("no appointment loaded")
	// ErrNoCurrentLeg is returned when completing without an open leg.
	ErrNoCurrentLeg = errors.New("no leg in progress")
)

// Tracker is the per-session journey state machine. It holds a best-effort
// cache of the open leg and the journey it belongs to; the leg store stays
// authoritative and Recover re-derives the cache from it.
//
// Every action takes the caller's identity explicitly. Actions are serialized
// by a busy flag that is cleared on every exit path.
type Tracker struct {
	legs  LegStore
	appts AppointmentStore
	fixes FixSource
	ui    Presenter
	log   *slog.Logger

	busy atomic.Bool

	mu        sync.Mutex
	appt      domain.Appointment
	loaded    bool
	legID     *uuid.UUID
	legFrom   *uuid.UUID // appointment the held leg leaves, nil from the office
	journeyID *uuid.UUID
}

// NewTracker wires a Tracker. ui and log may be nil.
func NewTracker(legs LegStore, appts AppointmentStore, fixes FixSource, ui Presenter, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{legs: legs, appts: appts, fixes: fixes, ui: ui, log: log}
}

// Snapshot is everything the UI needs to render an appointment's travel controls.
type Snapshot struct {
	Appointment domain.Appointment
	Phase       Phase
	Action      Action
	State       State
	LegID       *uuid.UUID
	JourneyID   *uuid.UUID
	Busy        bool
}

// Snapshot returns the current view. It never calls the store.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := Project(t.legID, t.appt)
	departing := t.departingLocked() && !p.HasReturnStarted
	action := NextAction(t.appt.Status, p)
	if departing {
		// The open leg belongs to the next appointment's screen.
		action = ActionNone
	}
	return Snapshot{
		Appointment: t.appt,
		Phase:       p,
		Action:      action,
		State:       StateOf(t.appt.Status, p, departing),
		LegID:       copyID(t.legID),
		JourneyID:   copyID(t.journeyID),
		Busy:        t.busy.Load(),
	}
}

// Busy reports whether an action is running.
func (t *Tracker) Busy() bool {
	return t.busy.Load()
}

// Load switches the tracker to an appointment and recovers any open leg for
// it. The cached leg and journey survive the switch so a drive to the next
// appointment is found again on arrival. A held leg only counts as departing
// the appointment it left, so after a switch it reads as inbound.
func (t *Tracker) Load(ctx context.Context, appointmentID uuid.UUID) error {
	a, err := t.appts.GetAppointment(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("journey.Tracker.Load: %w", err)
	}
	t.mu.Lock()
	t.appt = a
	t.loaded = true
	t.mu.Unlock()

	t.Recover(ctx)
	return nil
}

// Recover asks the store for open legs on the current appointment. A leg
// departing the appointment is preferred over one arriving at it. A failed or
// empty query leaves the cache untouched. When no journey is cached it is
// recovered from the latest completed, non-final leg into the appointment.
func (t *Tracker) Recover(ctx context.Context) {
	t.mu.Lock()
	if !t.loaded {
		t.mu.Unlock()
		return
	}
	apptID := t.appt.ID
	t.mu.Unlock()

	open, err := t.legs.QueryLegs(ctx, domain.LegFilter{Status: domain.LegInProgress, AppointmentID: &apptID})
	if err != nil {
		t.log.DebugContext(ctx, "leg recovery failed, keeping cached state", "appointment_id", apptID, "error", err)
		return
	}

	if leg, ok := pickOpenLeg(open, apptID); ok {
		t.mu.Lock()
		t.legID = copyID(&leg.ID)
		t.legFrom = copyID(leg.AppointmentIDFrom)
		t.journeyID = copyID(&leg.JourneyID)
		t.mu.Unlock()
		t.log.DebugContext(ctx, "recovered open leg", "leg_id", leg.ID, "journey_id", leg.JourneyID)
		return
	}

	t.mu.Lock()
	needJourney := t.journeyID == nil
	t.mu.Unlock()
	if !needJourney {
		return
	}

	done, err := t.legs.QueryLegs(ctx, domain.LegFilter{Status: domain.LegCompleted, AppointmentID: &apptID})
	if err != nil {
		t.log.DebugContext(ctx, "journey recovery failed", "appointment_id", apptID, "error", err)
		return
	}
	if j, ok := continuingJourney(done, apptID); ok {
		t.mu.Lock()
		if t.journeyID == nil {
			t.journeyID = &j
		}
		t.mu.Unlock()
	}
}

// pickOpenLeg prefers a leg leaving apptID over one arriving at it.
func pickOpenLeg(legs []domain.TravelLeg, apptID uuid.UUID) (domain.TravelLeg, bool) {
	var inbound *domain.TravelLeg
	for i := range legs {
		l := legs[i]
		if l.Status != domain.LegInProgress {
			continue
		}
		if l.Departs(apptID) {
			return l, true
		}
		if inbound == nil && l.Arrives(apptID) {
			inbound = &legs[i]
		}
	}
	if inbound != nil {
		return *inbound, true
	}
	return domain.TravelLeg{}, false
}

// continuingJourney returns the journey of the most recent completed leg
// touching apptID, unless that leg closed its journey or a final leg has
// since left the appointment.
func continuingJourney(legs []domain.TravelLeg, apptID uuid.UUID) (uuid.UUID, bool) {
	var latest *domain.TravelLeg
	for i := range legs {
		l := &legs[i]
		if !l.Arrives(apptID) && !l.Departs(apptID) {
			continue
		}
		if latest == nil || l.StartTimestamp.After(latest.StartTimestamp) {
			latest = l
		}
	}
	if latest == nil || latest.IsFinalLeg {
		return uuid.Nil, false
	}
	return latest.JourneyID, true
}

// StartDrive begins a leg from the office to the current appointment.
func (t *Tracker) StartDrive(ctx context.Context, who domain.Identity) (err error) {
	release, err := t.begin("start_drive")
	if err != nil {
		return err
	}
	defer t.finish(ctx, "start_drive", release, &err)

	appt, journeyID, err := t.readyToCreate()
	if err != nil {
		return err
	}
	fix, err := t.fixes.Capture(ctx, geo.IntentStartDrive)
	if err != nil {
		return err
	}
	ref, err := t.legs.CreateLeg(ctx, who, domain.NewLeg{
		StartLatitude:     fix.Latitude,
		StartLongitude:    fix.Longitude,
		StartTimestamp:    fix.Timestamp,
		StartLocationType: domain.LocationOffice,
		AppointmentIDTo:   &appt.ID,
		JourneyID:         journeyID,
	})
	if err != nil {
		return err
	}
	t.hold(ref, nil)
	t.refresh(ctx)
	return nil
}

// MarkArrived completes the open inbound leg at the current appointment and
// returns its mileage.
func (t *Tracker) MarkArrived(ctx context.Context, who domain.Identity) (miles float64, err error) {
	release, err := t.begin("mark_arrived")
	if err != nil {
		return 0, err
	}
	defer t.finish(ctx, "mark_arrived", release, &err)

	appt, legID, err := t.readyToComplete(true)
	if err != nil {
		return 0, err
	}
	fix, err := t.fixes.Capture(ctx, geo.IntentArrived)
	if err != nil {
		return 0, err
	}
	miles, err = t.legs.CompleteLeg(ctx, who, legID, domain.LegCompletion{
		EndLatitude:     fix.Latitude,
		EndLongitude:    fix.Longitude,
		EndTimestamp:    fix.Timestamp,
		EndLocationName: appt.Address,
		EndLocationType: domain.LocationAppointment,
	})
	if err != nil {
		return 0, err
	}
	t.release(false)
	t.refresh(ctx)
	return miles, nil
}

// EndVisit marks the visit completed. It does not touch any leg.
func (t *Tracker) EndVisit(ctx context.Context) (err error) {
	release, err := t.begin("end_visit")
	if err != nil {
		return err
	}
	defer t.finish(ctx, "end_visit", release, &err)

	appt, err := t.current()
	if err != nil {
		return err
	}
	if err := t.appts.UpdateAppointmentStatus(ctx, appt.ID, domain.AppointmentCompleted); err != nil {
		return err
	}
	t.refresh(ctx)
	return nil
}

// DriveToNext leaves the current appointment for next, continuing the journey.
func (t *Tracker) DriveToNext(ctx context.Context, who domain.Identity, next uuid.UUID) (err error) {
	release, err := t.begin("drive_to_next")
	if err != nil {
		return err
	}
	defer t.finish(ctx, "drive_to_next", release, &err)

	return t.depart(ctx, who, &next, false)
}

// ReturnToOffice leaves the current appointment on the final leg of the journey.
func (t *Tracker) ReturnToOffice(ctx context.Context, who domain.Identity) (err error) {
	release, err := t.begin("return")
	if err != nil {
		return err
	}
	defer t.finish(ctx, "return", release, &err)

	return t.depart(ctx, who, nil, true)
}

// CompleteReturn completes the final leg at the office or home and ends the
// journey. It returns the leg's mileage.
func (t *Tracker) CompleteReturn(ctx context.Context, who domain.Identity, dest domain.LocationType, name string) (miles float64, err error) {
	release, err := t.begin("complete_return")
	if err != nil {
		return 0, err
	}
	defer t.finish(ctx, "complete_return", release, &err)

	_, legID, err := t.readyToComplete(false)
	if err != nil {
		return 0, err
	}
	fix, err := t.fixes.Capture(ctx, geo.IntentReturn)
	if err != nil {
		return 0, err
	}
	if dest == "" {
		dest = domain.LocationOffice
	}
	miles, err = t.legs.CompleteLeg(ctx, who, legID, domain.LegCompletion{
		EndLatitude:     fix.Latitude,
		EndLongitude:    fix.Longitude,
		EndTimestamp:    fix.Timestamp,
		EndLocationName: name,
		EndLocationType: dest,
		IsFinalLeg:      true,
	})
	if err != nil {
		return 0, err
	}
	t.release(true)
	t.refresh(ctx)
	return miles, nil
}

// depart marks the visit completed if needed and opens a leg leaving it.
func (t *Tracker) depart(ctx context.Context, who domain.Identity, to *uuid.UUID, final bool) error {
	appt, journeyID, err := t.readyToCreate()
	if err != nil {
		return err
	}
	if to != nil && *to == appt.ID {
		return fmt.Errorf("%w: next appointment is the current one", domain.ErrValidation)
	}
	if appt.Status != domain.AppointmentCompleted {
		if err := t.appts.UpdateAppointmentStatus(ctx, appt.ID, domain.AppointmentCompleted); err != nil {
			return err
		}
	}
	fix, err := t.fixes.Capture(ctx, geo.IntentLeave)
	if err != nil {
		return err
	}
	ref, err := t.legs.CreateLeg(ctx, who, domain.NewLeg{
		StartLatitude:     fix.Latitude,
		StartLongitude:    fix.Longitude,
		StartTimestamp:    fix.Timestamp,
		StartLocationName: appt.Address,
		StartLocationType: domain.LocationAppointment,
		AppointmentIDFrom: &appt.ID,
		AppointmentIDTo:   to,
		JourneyID:         journeyID,
		IsFinalLeg:        final,
	})
	if err != nil {
		return err
	}
	t.hold(ref, &appt.ID)
	t.refresh(ctx)
	return nil
}

// begin claims the busy flag. The returned func releases it.
func (t *Tracker) begin(action string) (func(), error) {
	if !t.busy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("journey.Tracker: %s: %w", action, ErrBusy)
	}
	return func() { t.busy.Store(false) }, nil
}

// finish always clears the busy flag, turns a panic into an error and shows
// any failure to the presenter.
func (t *Tracker) finish(ctx context.Context, action string, release func(), errp *error) {
	if r := recover(); r != nil {
		*errp = fmt.Errorf("journey.Tracker: %s: panic: %v", action, r)
	}
	release()
	if *errp == nil {
		return
	}
	t.log.WarnContext(ctx, "journey action failed", "action", action, "error", *errp)
	if t.ui != nil {
		t.ui.Notify(Describe(*errp))
	}
}

func (t *Tracker) current() (domain.Appointment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.loaded {
		return domain.Appointment{}, ErrNoAppointment
	}
	return t.appt, nil
}

// readyToCreate refuses to open a leg while one is still held.
func (t *Tracker) readyToCreate() (domain.Appointment, *uuid.UUID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.loaded {
		return domain.Appointment{}, nil, ErrNoAppointment
	}
	if t.legID != nil {
		return domain.Appointment{}, nil, fmt.Errorf("%w: complete leg %s first", domain.ErrLegInProgress, *t.legID)
	}
	return t.appt, copyID(t.journeyID), nil
}

// readyToComplete returns the held leg. With arriving set, a leg leaving the
// current appointment is refused: arrival must not complete a return leg.
func (t *Tracker) readyToComplete(arriving bool) (domain.Appointment, uuid.UUID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.loaded {
		return domain.Appointment{}, uuid.Nil, ErrNoAppointment
	}
	if t.legID == nil {
		return domain.Appointment{}, uuid.Nil, ErrNoCurrentLeg
	}
	if arriving && t.departingLocked() {
		return domain.Appointment{}, uuid.Nil, fmt.Errorf("%w: leg %s leaves this appointment", ErrNoCurrentLeg, *t.legID)
	}
	return t.appt, *t.legID, nil
}

// departingLocked reports whether the held leg leaves the loaded appointment.
func (t *Tracker) departingLocked() bool {
	return t.legID != nil && t.legFrom != nil && *t.legFrom == t.appt.ID
}

func (t *Tracker) hold(ref domain.LegRef, from *uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.legID = copyID(&ref.LegID)
	t.journeyID = copyID(&ref.JourneyID)
	t.legFrom = copyID(from)
}

// release forgets the completed leg. The journey is kept for the next leg
// unless this one closed it.
func (t *Tracker) release(endJourney bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.legID = nil
	t.legFrom = nil
	if endJourney {
		t.journeyID = nil
	}
}

// refresh re-reads the appointment so the projected phase reflects the
// store. A failed read keeps the previous copy.
func (t *Tracker) refresh(ctx context.Context) {
	t.mu.Lock()
	id := t.appt.ID
	t.mu.Unlock()

	a, err := t.appts.GetAppointment(ctx, id)
	if err != nil {
		t.log.DebugContext(ctx, "appointment refresh failed", "appointment_id", id, "error", err)
		return
	}
	t.mu.Lock()
	t.appt = a
	t.mu.Unlock()
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
