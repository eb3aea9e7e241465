// Package registry implements the process-wide index of live rooms: a
// single map behind one mailbox, plus a background sweep goroutine
// coordinated with the actor loop via golang.org/x/sync/errgroup, so a
// graceful shutdown can wait on both.
package registry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/DoyleJ11/otrio-backend/internal/apperr"
	"github.com/DoyleJ11/otrio-backend/internal/config"
	"github.com/DoyleJ11/otrio-backend/internal/player"
	"github.com/DoyleJ11/otrio-backend/internal/room"
)

// Msg is the sealed interface for Registry mailbox messages.
type Msg interface{ isRegistryMsg() }

type registerMsg struct {
	room *room.Room
}

func (registerMsg) isRegistryMsg() {}

type removeMsg struct{ id string }

func (removeMsg) isRegistryMsg() {}

type getMsg struct {
	id    string
	reply chan *room.Room
}

func (getMsg) isRegistryMsg() {}

type listMsg struct {
	filter ListFilter
	reply  chan ListResult
}

func (listMsg) isRegistryMsg() {}

type snapshotRoomsMsg struct {
	reply chan []*room.Room
}

func (snapshotRoomsMsg) isRegistryMsg() {}

// Registry owns the roomID -> Room map and is the sole place new rooms
// are minted from.
type Registry struct {
	inbox  chan Msg
	rooms  map[string]*room.Room
	cfg    config.Config
	logger *zap.Logger
	caser  cases.Caser

	ctx    context.Context
	cancel context.CancelFunc
	eg     *errgroup.Group
}

// New constructs a Registry and starts its actor loop plus a background
// sweep goroutine, both tracked by an errgroup so Wait blocks until
// both have exited.
func New(parent context.Context, cfg config.Config, logger *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(parent)
	eg, egCtx := errgroup.WithContext(ctx)

	reg := &Registry{
		inbox:  make(chan Msg, 128),
		rooms:  make(map[string]*room.Room),
		cfg:    cfg,
		logger: logger,
		caser:  cases.Fold(),
		ctx:    ctx,
		cancel: cancel,
		eg:     eg,
	}

	eg.Go(func() error {
		reg.loop()
		return nil
	})
	eg.Go(func() error {
		reg.sweepLoop(egCtx)
		return nil
	})

	return reg
}

// Shutdown stops the actor loop and the sweep goroutine.
func (reg *Registry) Shutdown() { reg.cancel() }

// Wait blocks until both the actor loop and the sweep goroutine have
// exited (i.e. after Shutdown).
func (reg *Registry) Wait() error { return reg.eg.Wait() }

func (reg *Registry) loop() {
	for {
		select {
		case <-reg.ctx.Done():
			return
		case m := <-reg.inbox:
			switch msg := m.(type) {
			case registerMsg:
				reg.rooms[msg.room.ID] = msg.room
			case removeMsg:
				delete(reg.rooms, msg.id)
			case getMsg:
				msg.reply <- reg.rooms[msg.id]
			case listMsg:
				msg.reply <- reg.list(msg.filter)
			case snapshotRoomsMsg:
				out := make([]*room.Room, 0, len(reg.rooms))
				for _, r := range reg.rooms {
					out = append(out, r)
				}
				msg.reply <- out
			}
		}
	}
}

// sweepLoop periodically wakes every known room by asking for its
// summary. A room that is empty or past its TTL discovers this itself
// the next time its actor loop processes any message (see
// room.Room.isTerminal) and tears itself down; the watcher goroutine
// started in Create then removes it here. This reuses the Room's own
// termination check instead of duplicating its expiry rules in the
// Registry.
func (reg *Registry) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(reg.cfg.CleanupSweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.pingAllRooms(ctx)
		}
	}
}

func (reg *Registry) pingAllRooms(ctx context.Context) {
	reply := make(chan []*room.Room, 1)
	select {
	case reg.inbox <- snapshotRoomsMsg{reply: reply}:
	case <-ctx.Done():
		return
	}
	var rooms []*room.Room
	select {
	case rooms = <-reply:
	case <-ctx.Done():
		return
	}
	for _, r := range rooms {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, _ = r.Summary(pingCtx)
		cancel()
	}
}

// Create mints a new room, registers it, and arms a watcher that
// removes it from the index once its Done channel closes.
func (reg *Registry) Create(ctx context.Context, opts room.CreateOptions) (*room.Room, *player.Seat, string, error) {
	if opts.Name == "" {
		return nil, nil, "", apperr.New(apperr.InvalidInput, "room name is required")
	}

	id := uuid.NewString()
	rm, host, code, err := room.New(reg.ctx, id, opts, reg.cfg, reg.logger)
	if err != nil {
		return nil, nil, "", err
	}

	select {
	case reg.inbox <- registerMsg{room: rm}:
	case <-ctx.Done():
		return nil, nil, "", ctx.Err()
	}

	go func() {
		<-rm.Done()
		select {
		case reg.inbox <- removeMsg{id: rm.ID}:
		case <-reg.ctx.Done():
		}
	}()

	return rm, host, code, nil
}

// Get returns the room for id, or nil if unknown.
func (reg *Registry) Get(ctx context.Context, id string) (*room.Room, error) {
	reply := make(chan *room.Room, 1)
	select {
	case reg.inbox <- getMsg{id: id, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// List returns joinable/matching room summaries per filter, along with
// the total count of matching rooms and whether more remain beyond the
// returned page.
func (reg *Registry) List(ctx context.Context, filter ListFilter) (ListResult, error) {
	reply := make(chan ListResult, 1)
	select {
	case reg.inbox <- listMsg{filter: filter, reply: reply}:
	case <-ctx.Done():
		return ListResult{}, ctx.Err()
	}
	select {
	case out := <-reply:
		return out, nil
	case <-ctx.Done():
		return ListResult{}, ctx.Err()
	}
}
