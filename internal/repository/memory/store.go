// Package memory is an in-process repository.Store used by tests and by the
// development profile (STORE=memory). A single mutex serializes all access;
// RunTx snapshots the data and restores it when fn fails.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketcore/internal/domain"
	"github.com/kirinyoku/ticketcore/internal/repository"
)

type data struct {
	ticketTypes map[uuid.UUID]domain.TicketType
	tickets     map[uuid.UUID]domain.Ticket
	payments    map[uuid.UUID]domain.Payment
	events      map[uuid.UUID]domain.Event
	users       map[uuid.UUID]domain.User
}

func newData() *data {
	return &data{
		ticketTypes: make(map[uuid.UUID]domain.TicketType),
		tickets:     make(map[uuid.UUID]domain.Ticket),
		payments:    make(map[uuid.UUID]domain.Payment),
		events:      make(map[uuid.UUID]domain.Event),
		users:       make(map[uuid.UUID]domain.User),
	}
}

// clone copies the maps. Values are copied by assignment; pointer fields are
// never mutated in place, so sharing them between snapshots is safe.
func (d *data) clone() *data {
	return &data{
		ticketTypes: maps.Clone(d.ticketTypes),
		tickets:     maps.Clone(d.tickets),
		payments:    maps.Clone(d.payments),
		events:      maps.Clone(d.events),
		users:       maps.Clone(d.users),
	}
}

type Store struct {
	mu   sync.Mutex
	data *data
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{data: newData()}
}

// view runs fn against the store data. Inside RunTx the lock is already held.
type view struct {
	s    *Store
	inTx bool
}

func (v view) do(fn func(d *data) error) error {
	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}
	return fn(v.s.data)
}

func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Tx) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(ctx, txRepos{v: view{s: s, inTx: true}}); err != nil {
		s.data = snapshot
		return err
	}

	return nil
}

func (s *Store) TicketTypes() repository.TicketTypeRepository {
	return &TicketTypeRepo{v: view{s: s}}
}

func (s *Store) Tickets() repository.TicketRepository   { return &TicketRepo{v: view{s: s}} }
func (s *Store) Payments() repository.PaymentRepository { return &PaymentRepo{v: view{s: s}} }
func (s *Store) Events() repository.EventRepository     { return &EventRepo{v: view{s: s}} }
func (s *Store) Users() repository.UserRepository       { return &UserRepo{v: view{s: s}} }

type txRepos struct {
	v view
}

func (t txRepos) TicketTypes() repository.TicketTypeRepository { return &TicketTypeRepo{v: t.v} }
func (t txRepos) Tickets() repository.TicketRepository         { return &TicketRepo{v: t.v} }
func (t txRepos) Payments() repository.PaymentRepository       { return &PaymentRepo{v: t.v} }
func (t txRepos) Events() repository.EventRepository           { return &EventRepo{v: t.v} }
func (t txRepos) Users() repository.UserRepository             { return &UserRepo{v: t.v} }
