package journey_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/visit-tracker/internal/domain"
	"github.com/pkordes/visit-tracker/internal/geo"
	"github.com/pkordes/visit-tracker/internal/journey"
)

// memStore is an in-memory leg and appointment store that behaves like the
// server: it mints journeys, refuses a second open leg per user, completes
// legs once, and derives the appointment flags from the legs.
type memStore struct {
	mu    sync.Mutex
	legs  []domain.TravelLeg
	appts map[uuid.UUID]domain.Appointment

	createErr error
	queryErr  error
	creates   []domain.NewLeg
	// createdWhileOpen counts creates issued while the user had an open leg.
	createdWhileOpen int
}

var (
	_ journey.LegStore         = (*memStore)(nil)
	_ journey.AppointmentStore = (*memStore)(nil)
)

func newMemStore(appts ...domain.Appointment) *memStore {
	s := &memStore{appts: map[uuid.UUID]domain.Appointment{}}
	for _, a := range appts {
		s.appts[a.ID] = a
	}
	return s
}

func (s *memStore) CreateLeg(_ context.Context, who domain.Identity, in domain.NewLeg) (domain.LegRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates = append(s.creates, in)
	if s.createErr != nil {
		return domain.LegRef{}, s.createErr
	}
	for _, l := range s.legs {
		if l.UserID == who.UserID && l.Status == domain.LegInProgress {
			s.createdWhileOpen++
			return domain.LegRef{}, domain.ErrLegInProgress
		}
	}
	journeyID := uuid.New()
	if in.JourneyID != nil {
		journeyID = *in.JourneyID
	}
	leg := domain.TravelLeg{
		ID:                uuid.New(),
		JourneyID:         journeyID,
		UserID:            who.UserID,
		StartLatitude:     in.StartLatitude,
		StartLongitude:    in.StartLongitude,
		StartTimestamp:    in.StartTimestamp,
		StartLocationName: in.StartLocationName,
		StartLocationType: in.StartLocationType,
		AppointmentIDFrom: in.AppointmentIDFrom,
		AppointmentIDTo:   in.AppointmentIDTo,
		IsFinalLeg:        in.IsFinalLeg,
		Status:            domain.LegInProgress,
	}
	s.legs = append(s.legs, leg)
	return domain.LegRef{LegID: leg.ID, JourneyID: leg.JourneyID}, nil
}

func (s *memStore) CompleteLeg(ctx context.Context, _ domain.Identity, legID uuid.UUID, c domain.LegCompletion) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.legs {
		l := &s.legs[i]
		if l.ID != legID {
			continue
		}
		if l.Status == domain.LegCompleted {
			return 0, domain.ErrLegAlreadyCompleted
		}
		miles, _ := geo.GreatCircle{}.Miles(ctx, l.Start(), c.End())
		end := c.EndTimestamp
		l.EndLatitude = &c.EndLatitude
		l.EndLongitude = &c.EndLongitude
		l.EndTimestamp = &end
		l.EndLocationName = c.EndLocationName
		l.EndLocationType = c.EndLocationType
		l.CalculatedMileage = &miles
		l.IsFinalLeg = l.IsFinalLeg || c.IsFinalLeg
		l.Status = domain.LegCompleted
		return miles, nil
	}
	return 0, domain.ErrLegNotFound
}

func (s *memStore) QueryLegs(_ context.Context, f domain.LegFilter) ([]domain.TravelLeg, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []domain.TravelLeg
	for _, l := range s.legs {
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.AppointmentID != nil && !l.Departs(*f.AppointmentID) && !l.Arrives(*f.AppointmentID) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *memStore) GetAppointment(_ context.Context, id uuid.UUID) (domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return domain.Appointment{}, domain.ErrNotFound
	}
	a.HasInProgressLeg, a.HasCompletedLeg, a.HasInProgressReturnLeg, a.ReturnLegID = false, false, false, nil
	for _, l := range s.legs {
		if l.Arrives(id) {
			a.HasInProgressLeg = a.HasInProgressLeg || l.Status == domain.LegInProgress
			a.HasCompletedLeg = a.HasCompletedLeg || l.Status == domain.LegCompleted
		}
		if l.Departs(id) && l.IsFinalLeg {
			a.HasInProgressReturnLeg = a.HasInProgressReturnLeg || l.Status == domain.LegInProgress
			legID := l.ID
			a.ReturnLegID = &legID
			if l.Status == domain.LegCompleted && l.CalculatedMileage != nil {
				a.ReturnMileage = l.CalculatedMileage
			}
		}
	}
	return a, nil
}

func (s *memStore) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, status domain.AppointmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = status
	s.appts[id] = a
	return nil
}

func (s *memStore) leg(id uuid.UUID) domain.TravelLeg {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.legs {
		if l.ID == id {
			return l
		}
	}
	return domain.TravelLeg{}
}

// fixes replays a queue of positions, one per capture.
type fixes struct {
	mu     sync.Mutex
	points []domain.Point
	err    error
	panics bool
	clock  time.Time
}

func (f *fixes) Capture(_ context.Context, intent geo.Intent) (geo.Fix, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("location provider crashed")
	}
	if f.err != nil {
		return geo.Fix{}, f.err
	}
	p := domain.Point{Latitude: 30.27, Longitude: -97.74}
	if len(f.points) > 0 {
		p, f.points = f.points[0], f.points[1:]
	}
	f.clock = f.clock.Add(20 * time.Minute)
	return geo.Fix{Point: p, Timestamp: f.clock, Intent: intent}, nil
}

// notices records what the tracker showed the user.
type notices struct {
	mu  sync.Mutex
	got []journey.Notice
}

func (n *notices) Notify(x journey.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, x)
}

func (n *notices) last() journey.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.got) == 0 {
		return journey.Notice{}
	}
	return n.got[len(n.got)-1]
}
