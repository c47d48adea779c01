package reward

import (
	"fmt"

	"github.com/geode-social/social-contract/common"
	"github.com/geode-social/social-contract/config"
	"github.com/geode-social/social-contract/host"
	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"go.uber.org/zap"
)

const stateKey = 'R'

// ErrInvalidInterval is returned on attempt to set zero reward interval.
var ErrInvalidInterval = common.NewError(common.Validation, "reward interval must be positive")

// State is the posting reward state.
type State struct {
	Enabled bool
	// Every Interval-th post is rewarded
	Interval uint64
	Amount   uint64
	// Funds dedicated to rewards
	Pool uint64
	// Total amount paid
	Paid uint64
	// Number of posts ever made
	Counter uint64
}

// EncodeBinary implements io.Serializable.
func (s *State) EncodeBinary(w *io.BinWriter) {
	w.WriteB(common.EntityVersion)
	w.WriteBool(s.Enabled)
	w.WriteU64LE(s.Interval)
	w.WriteU64LE(s.Amount)
	w.WriteU64LE(s.Pool)
	w.WriteU64LE(s.Paid)
	w.WriteU64LE(s.Counter)
}

// DecodeBinary implements io.Serializable.
func (s *State) DecodeBinary(r *io.BinReader) {
	if v := r.ReadB(); r.Err == nil && v != common.EntityVersion {
		r.Err = fmt.Errorf("unsupported entity version %d", v)
	}
	s.Enabled = r.ReadBool()
	s.Interval = r.ReadU64LE()
	s.Amount = r.ReadU64LE()
	s.Pool = r.ReadU64LE()
	s.Paid = r.ReadU64LE()
	s.Counter = r.ReadU64LE()
}

// Prm groups parameters of the reward ledger.
type Prm struct {
	Store    common.Store
	Treasury host.Treasury

	// Minimum contract balance left after every payout.
	ReserveFloor uint64

	// Used until the owner configures rewards.
	Initial config.Rewards

	Logger *zap.Logger
}

// Ledger counts posts and rewards every Interval-th of them.
type Ledger struct {
	prm Prm
}

// Claim describes a counted post.
type Claim struct {
	Counter uint64
	// Zero if the post is not rewarded.
	Amount uint64
}

// New returns reward ledger. Nil logger means no logging.
func New(prm Prm) *Ledger {
	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}
	return &Ledger{prm: prm}
}

// State returns current reward state.
func (x *Ledger) State() (State, error) {
	st := State{
		Enabled:  x.prm.Initial.Enabled,
		Interval: x.prm.Initial.Interval,
		Amount:   x.prm.Initial.Amount,
	}

	_, err := common.GetSerialized(x.prm.Store, []byte{stateKey}, &st)
	return st, err
}

// OnPost counts the post of the poster and pays the reward if it is due,
// the pool covers it and the contract keeps its reserve floor. Failed
// reward transfer does not fail the post, the reward is skipped.
func (x *Ledger) OnPost(poster util.Uint160) (Claim, error) {
	st, err := x.State()
	if err != nil {
		return Claim{}, err
	}

	st.Counter, err = common.Inc(st.Counter)
	if err != nil {
		return Claim{}, fmt.Errorf("post counter: %w", err)
	}

	claim := Claim{Counter: st.Counter}

	if x.due(st) {
		pool, err1 := common.Sub(st.Pool, st.Amount)
		paid, err2 := common.Add(st.Paid, st.Amount)
		if err1 != nil || err2 != nil {
			return Claim{}, fmt.Errorf("reward accounting: %w", common.ErrOverflow)
		}

		err := x.prm.Treasury.Transfer(poster, st.Amount, common.RewardTransferDetails(st.Counter))
		if err != nil {
			x.prm.Logger.Warn("posting reward skipped",
				zap.Stringer("poster", poster),
				zap.Uint64("counter", st.Counter),
				zap.Error(err))
		} else {
			st.Pool, st.Paid = pool, paid
			claim.Amount = st.Amount
		}
	}

	return claim, x.put(&st)
}

func (x *Ledger) due(st State) bool {
	if !st.Enabled || st.Amount == 0 || st.Interval == 0 || st.Counter%st.Interval != 0 {
		return false
	}

	if st.Pool <= st.Amount {
		return false
	}

	need, err := common.Add(st.Amount, x.prm.ReserveFloor)
	return err == nil && x.prm.Treasury.Balance() > need
}

// Fund adds funds already transferred to the contract to the reward pool.
func (x *Ledger) Fund(amount uint64) (State, error) {
	st, err := x.State()
	if err != nil {
		return State{}, err
	}

	st.Pool, err = common.Add(st.Pool, amount)
	if err != nil {
		return State{}, fmt.Errorf("reward pool: %w", err)
	}

	return st, x.put(&st)
}

// Configure changes reward parameters.
func (x *Ledger) Configure(enabled bool, interval, amount uint64) (State, error) {
	if interval == 0 {
		return State{}, ErrInvalidInterval
	}

	st, err := x.State()
	if err != nil {
		return State{}, err
	}

	st.Enabled, st.Interval, st.Amount = enabled, interval, amount

	return st, x.put(&st)
}

func (x *Ledger) put(st *State) error {
	return common.SetSerialized(x.prm.Store, []byte{stateKey}, st)
}
