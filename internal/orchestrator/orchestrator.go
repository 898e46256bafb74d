// Package orchestrator drives the care API on behalf of the dashboard. Every
// operation runs in the background, reports progress as state events, and
// returns a Pending that settles once the operation and everything it spawned
// are done.
//
// Results are tagged with a request token and the selection they were issued
// for; the state store drops any result whose request has been superseded.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ehr/caredesk/internal/domain/care"
	"github.com/ehr/caredesk/internal/state"
)

// DefaultMaxParallel bounds concurrent doctor lookups per batch.
const DefaultMaxParallel = 8

// Gateway is the care API as the orchestrator uses it.
type Gateway interface {
	ListPatients(ctx context.Context) ([]care.Patient, error)
	GetPatient(ctx context.Context, id care.ID) (care.Patient, error)
	ListAppointments(ctx context.Context, patientID care.ID) ([]care.Appointment, error)
	GetDoctor(ctx context.Context, id care.ID) (care.Doctor, error)
	ListDoctors(ctx context.Context) ([]care.Doctor, error)
}

// Tracker is told when operations start and settle.
type Tracker interface {
	OperationStarted()
	OperationSettled()
}

type nopTracker struct{}

func (nopTracker) OperationStarted() {}
func (nopTracker) OperationSettled() {}

// Pending settles when an operation and its follow-up fetches have finished.
type Pending struct {
	done     <-chan struct{}
	rejected bool
}

// Rejected reports whether the store refused the operation before any fetch
// was issued, such as a selection of a patient missing from the loaded list.
func (p Pending) Rejected() bool { return p.rejected }

// Done is closed once the operation has settled.
func (p Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the operation has settled.
func (p Pending) Wait() { <-p.done }

// WaitContext blocks until the operation settles or ctx ends.
func (p Pending) WaitContext(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var closed = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func settled() Pending { return Pending{done: closed} }

func rejected() Pending { return Pending{done: closed, rejected: true} }

func join(ps ...Pending) Pending {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, p := range ps {
			<-p.done
		}
	}()
	return Pending{done: done}
}

// Orchestrator sequences fetches against a Gateway and reports into a Store.
// It never writes the snapshot itself.
type Orchestrator struct {
	store       *state.Store
	gw          Gateway
	logger      zerolog.Logger
	tracker     Tracker
	maxParallel int

	doctors singleflight.Group
	wg      sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithTracker attaches an in-flight operation tracker.
func WithTracker(t Tracker) Option {
	return func(o *Orchestrator) { o.tracker = t }
}

// WithMaxParallel caps concurrent doctor lookups. Values below 1 are ignored.
func WithMaxParallel(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxParallel = n
		}
	}
}

// New creates an Orchestrator writing into store.
func New(store *state.Store, gw Gateway, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		gw:          gw,
		logger:      zerolog.Nop(),
		tracker:     nopTracker{},
		maxParallel: DefaultMaxParallel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Store returns the store the orchestrator reports into.
func (o *Orchestrator) Store() *state.Store { return o.store }

// Wait blocks until every operation started so far has settled.
func (o *Orchestrator) Wait() { o.wg.Wait() }

func (o *Orchestrator) spawn(fn func()) Pending {
	done := make(chan struct{})
	o.wg.Add(1)
	o.tracker.OperationStarted()
	go func() {
		defer close(done)
		defer o.wg.Done()
		defer o.tracker.OperationSettled()
		fn()
	}()
	return Pending{done: done}
}

// LoadList fetches the patient list. When the list changes the selection (a
// first load, or the selected patient disappearing) the new selection is
// loaded as if SelectItem had been called.
func (o *Orchestrator) LoadList(ctx context.Context) Pending {
	return o.spawn(func() {
		token := o.store.NextToken()
		if !o.store.Dispatch(state.ListRequested{Token: token}).Applied {
			return
		}

		patients, err := o.gw.ListPatients(ctx)
		if err != nil {
			o.logger.Warn().Err(err).Msg("load patients failed")
			o.store.Dispatch(state.ListFailed{Token: token, Err: err.Error()})
			return
		}

		t := o.store.Dispatch(state.ListSucceeded{Token: token, Patients: patients})
		if !t.Applied {
			o.logger.Debug().Uint64("token", token).Msg("discarded superseded patient list")
			return
		}
		if next := t.Next.SelectedPatientID; !next.IsZero() && next != t.Prev.SelectedPatientID {
			o.SelectItem(ctx, next).Wait()
		}
	})
}

// Ensure loads the list unless it has already been requested.
func (o *Orchestrator) Ensure(ctx context.Context) Pending {
	if !o.store.Snapshot().PatientsMeta.Idle() {
		return settled()
	}
	return o.LoadList(ctx)
}

// SelectItem selects id and loads its detail and appointments concurrently.
// An empty id, or an id missing from a loaded list, is ignored and the
// returned Pending reports Rejected.
func (o *Orchestrator) SelectItem(ctx context.Context, id care.ID) Pending {
	if id.IsZero() {
		return rejected()
	}
	if !o.store.Dispatch(state.SelectionChanged{PatientID: id}).Applied {
		o.logger.Debug().Str("patient_id", id.String()).Msg("selection ignored")
		return rejected()
	}
	return join(o.LoadDetail(ctx, id), o.LoadDependents(ctx, id))
}

// RetrySelection reloads detail and appointments for the current selection.
func (o *Orchestrator) RetrySelection(ctx context.Context) Pending {
	return o.SelectItem(ctx, o.store.Snapshot().SelectedPatientID)
}

// SetSearch records the search text. It does not touch the network.
func (o *Orchestrator) SetSearch(text string) Pending {
	o.store.Dispatch(state.SearchChanged{Text: text})
	return settled()
}

// LoadDetail fetches the detail record for id.
func (o *Orchestrator) LoadDetail(ctx context.Context, id care.ID) Pending {
	if id.IsZero() {
		return settled()
	}
	return o.spawn(func() {
		token := o.store.NextToken()
		if !o.store.Dispatch(state.DetailRequested{Token: token, PatientID: id}).Applied {
			return
		}

		p, err := o.gw.GetPatient(ctx, id)
		if err == nil {
			if p.ID.IsZero() {
				p.ID = id
			}
			if p.ID != id {
				err = fmt.Errorf("patient %s: response is for patient %s", id, p.ID)
			}
		}
		if err != nil {
			o.logger.Warn().Err(err).Str("patient_id", id.String()).Msg("load patient failed")
			o.store.Dispatch(state.DetailFailed{Token: token, PatientID: id, Err: err.Error()})
			return
		}

		if !o.store.Dispatch(state.DetailSucceeded{Token: token, PatientID: id, Patient: p}).Applied {
			o.logger.Debug().Str("patient_id", id.String()).Msg("discarded stale patient detail")
		}
	})
}

// LoadDependents fetches the appointments of id, then the doctors they
// reference that are not cached yet.
func (o *Orchestrator) LoadDependents(ctx context.Context, id care.ID) Pending {
	if id.IsZero() {
		return settled()
	}
	return o.spawn(func() {
		token := o.store.NextToken()
		if !o.store.Dispatch(state.AppointmentsRequested{Token: token, PatientID: id}).Applied {
			return
		}

		appts, err := o.gw.ListAppointments(ctx, id)
		if err != nil {
			o.logger.Warn().Err(err).Str("patient_id", id.String()).Msg("load appointments failed")
			o.store.Dispatch(state.AppointmentsFailed{Token: token, PatientID: id, Err: err.Error()})
			return
		}

		t := o.store.Dispatch(state.AppointmentsSucceeded{Token: token, PatientID: id, Appointments: appts})
		if !t.Applied {
			o.logger.Debug().Str("patient_id", id.String()).Msg("discarded stale appointments")
			return
		}

		if missing := t.Next.MissingDoctors(appts); len(missing) > 0 {
			o.resolveDoctors(ctx, id, missing)
		}
	})
}

// PrimeDoctors merges the whole doctor directory into the cache.
func (o *Orchestrator) PrimeDoctors(ctx context.Context) Pending {
	return o.spawn(func() {
		token := o.store.NextToken()
		if !o.store.Dispatch(state.DoctorsRequested{Token: token}).Applied {
			return
		}
		docs, err := o.gw.ListDoctors(ctx)
		if err != nil {
			o.logger.Warn().Err(err).Msg("load doctor directory failed")
			o.store.Dispatch(state.DoctorsFailed{Token: token, Err: err.Error()})
			return
		}
		o.store.Dispatch(state.DoctorsMerged{Token: token, Doctors: docs})
	})
}

// resolveDoctors fetches ids in parallel and merges the results in one event.
// Lookups that fail are reported on the doctors resource; the ones that
// resolved are merged anyway.
func (o *Orchestrator) resolveDoctors(ctx context.Context, patientID care.ID, ids []care.ID) {
	token := o.store.NextToken()
	if !o.store.Dispatch(state.DoctorsRequested{Token: token, PatientID: patientID}).Applied {
		return
	}

	docs, err := o.fetchDoctors(ctx, ids)
	if err != nil {
		o.logger.Warn().Err(err).Str("patient_id", patientID.String()).Int("missing", len(ids)).Msg("doctor lookups failed")
		o.store.Dispatch(state.DoctorsFailed{Token: token, PatientID: patientID, Doctors: docs, Err: err.Error()})
		return
	}
	o.store.Dispatch(state.DoctorsMerged{Token: token, PatientID: patientID, Doctors: docs})
}

// fetchDoctors looks up each id once. Concurrent lookups of the same id from
// overlapping batches share one request.
func (o *Orchestrator) fetchDoctors(ctx context.Context, ids []care.ID) ([]care.Doctor, error) {
	found := make([]*care.Doctor, len(ids))
	var (
		mu   sync.Mutex
		errs error
		g    errgroup.Group
	)
	g.SetLimit(o.maxParallel)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			v, err, _ := o.doctors.Do(id.String(), func() (any, error) {
				return o.gw.GetDoctor(ctx, id)
			})
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("doctor %s: %w", id, err))
				mu.Unlock()
				return nil
			}
			d := v.(care.Doctor)
			if d.ID.IsZero() {
				d.ID = id
			}
			found[i] = &d
			return nil
		})
	}
	_ = g.Wait()

	docs := make([]care.Doctor, 0, len(ids))
	for _, d := range found {
		if d != nil {
			docs = append(docs, *d)
		}
	}
	return docs, errs
}
