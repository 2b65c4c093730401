package cashdesk

import (
	"errors"
	"sync"

	"labcaja/internal/apierror"

	"github.com/google/uuid"
)

// Operation names a user-facing operation whose in-flight state is reported as busy.
type Operation string

const (
	OpOpen           Operation = "open"
	OpClose          Operation = "close"
	OpTransfer       Operation = "transfer"
	OpDeposit        Operation = "deposit"
	OpWithdrawal     Operation = "withdrawal"
	OpLiquidation    Operation = "liquidation"
	OpCancelMovement Operation = "cancel_movement"
)

// ErrBusy is returned when the same logical operation is already in flight.
var ErrBusy = errors.New("cashdesk: operation already in progress")

// inflight refuses a second submission of a logical operation while the first is
// outstanding, and mirrors the busy flags into the store.
type inflight struct {
	mu     sync.Mutex
	keys   map[string]struct{}
	counts map[Operation]int
	store  *Store
}

func newInflight(store *Store) *inflight {
	return &inflight{
		keys:   make(map[string]struct{}),
		counts: make(map[Operation]int),
		store:  store,
	}
}

// begin claims key for op. The returned release must be called on every exit path.
func (g *inflight) begin(op Operation, key string) (func(), error) {
	full := string(op) + "|" + key

	g.mu.Lock()
	if _, taken := g.keys[full]; taken {
		g.mu.Unlock()
		return nil, ErrBusy
	}
	g.keys[full] = struct{}{}
	g.counts[op]++
	g.mu.Unlock()
	g.publish(op)

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.keys, full)
			g.counts[op]--
			g.mu.Unlock()
			g.publish(op)
		})
	}, nil
}

func (g *inflight) busy(op Operation) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts[op] > 0
}

func (g *inflight) publish(op Operation) {
	busy := g.busy(op)
	g.store.update(func(st *State) bool {
		if st.Busy[op] == busy {
			return false
		}
		st.Busy[op] = busy
		return true
	})
}

// tokens hands out monotonically increasing request tokens per projection. Only the
// response of the most recently initiated request of a projection may be applied.
type tokens struct {
	mu     sync.Mutex
	issued map[string]uint64
}

func newTokens() *tokens {
	return &tokens{issued: make(map[string]uint64)}
}

func (t *tokens) next(key string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.issued[key]++
	return t.issued[key]
}

func (t *tokens) latest(key string, tok uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.issued[key] == tok
}

// invalidate makes every outstanding token of key stale.
func (t *tokens) invalidate(keys ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range keys {
		t.issued[k]++
	}
}

const (
	projCurrent   = "current"
	projMovements = "movements"
	projSummary   = "summary"
)

func projRegister(id string) string { return "register:" + id }

// submissionKeys remembers the idempotency key of a submission whose outcome is unknown, so
// resubmitting it sends the same key and the backend rejects the duplicate.
type submissionKeys struct {
	mu   sync.Mutex
	keys map[string]string
}

func newSubmissionKeys() *submissionKeys {
	return &submissionKeys{keys: make(map[string]string)}
}

func (k *submissionKeys) acquire(id string) string {
	k.mu.Lock()
	defer k.mu.Unlock()
	key, ok := k.keys[id]
	if !ok {
		key = uuid.NewString()
		k.keys[id] = key
	}
	return key
}

// settle forgets the key once the backend gave a definitive answer. Transport failures keep
// it: the request may have been applied.
func (k *submissionKeys) settle(id string, err error) {
	if err != nil && apierror.KindOf(err) == apierror.KindTransport {
		return
	}
	k.mu.Lock()
	delete(k.keys, id)
	k.mu.Unlock()
}
