package draft

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fleetmarket/vinfill/internal/decode"
	"github.com/fleetmarket/vinfill/internal/reconcile"
)

// ErrNotFound is returned for unknown or evicted draft ids.
var ErrNotFound = eris.New("draft: not found")

// Decoder resolves a VIN into a provider payload.
type Decoder interface {
	Decode(ctx context.Context, vin string) (decode.Result, error)
}

// Manager keeps the most recently used drafts in memory and runs their
// background decodes.
type Manager struct {
	drafts  *lru.Cache[string, *Draft]
	engine  *reconcile.Engine
	decoder Decoder
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager holding at most size drafts. Decodes
// started by the manager give up after timeout.
func NewManager(size int, decoder Decoder, timeout time.Duration) (*Manager, error) {
	cache, err := lru.New[string, *Draft](size)
	if err != nil {
		return nil, eris.Wrap(err, "draft: create lru")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		drafts:  cache,
		engine:  reconcile.NewEngine(),
		decoder: decoder,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Create starts a new draft.
func (m *Manager) Create() *Draft {
	d := New(uuid.NewString(), m.engine)
	m.drafts.Add(d.ID(), d)
	return d
}

// Get returns a draft by id.
func (m *Manager) Get(id string) (*Draft, error) {
	d, ok := m.drafts.Get(id)
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "draft %s", id)
	}
	return d, nil
}

// Delete forgets a draft.
func (m *Manager) Delete(id string) {
	m.drafts.Remove(id)
}

// Len returns the number of drafts held.
func (m *Manager) Len() int { return m.drafts.Len() }

// Enrich decodes the draft's VIN and applies the result. A result that
// lost the race to a newer VIN is dropped with ErrStaleDecode.
func (m *Manager) Enrich(ctx context.Context, d *Draft) (reconcile.Outcome, error) {
	t, err := d.BeginDecode()
	if err != nil {
		return reconcile.Outcome{}, err
	}
	return m.run(ctx, d, t)
}

// EnrichAsync starts Enrich in the background and returns the ticket.
func (m *Manager) EnrichAsync(d *Draft) (Ticket, error) {
	t, err := d.BeginDecode()
	if err != nil {
		return Ticket{}, err
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
		defer cancel()
		if _, err := m.run(ctx, d, t); err != nil && !eris.Is(err, ErrStaleDecode) {
			zap.L().Warn("draft: background decode failed",
				zap.String("draft_id", d.ID()),
				zap.String("vin", t.VIN),
				zap.Error(err),
			)
		}
	}()
	return t, nil
}

func (m *Manager) run(ctx context.Context, d *Draft, t Ticket) (reconcile.Outcome, error) {
	res, err := m.decoder.Decode(ctx, t.VIN)
	if err != nil {
		d.FailDecode(t, err)
		return reconcile.Outcome{}, eris.Wrapf(err, "draft: decode %s", t.VIN)
	}
	for _, w := range res.Warnings {
		d.AddWarning(t, w)
	}
	return d.ApplyDecode(t, res.Payload)
}

// Close cancels background decodes and waits for them to return.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}
