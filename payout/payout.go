package payout

import (
	"fmt"

	"github.com/geode-social/social-contract/common"
	"github.com/geode-social/social-contract/config"
	"github.com/geode-social/social-contract/host"
	"github.com/geode-social/social-contract/ledger"
	"github.com/geode-social/social-contract/message"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

const paidEndorsedPrefix = 'A'

var (
	// ErrNonexistentPaidMessage is returned when the endorsed paid message
	// does not exist.
	ErrNonexistentPaidMessage = common.NewError(common.Validation, "nonexistent paid message")

	// ErrDuplicateEndorsement is returned when the account already
	// endorsed the paid message.
	ErrDuplicateEndorsement = common.NewError(common.Conflict, "duplicate endorsement")

	// ErrNoInterestMatch is returned when the account interests do not
	// match the message target.
	ErrNoInterestMatch = common.NewError(common.Eligibility, "no interest match")

	// ErrNoMorePaidEndorsementsAvailable is returned when the message has
	// paid all its endorsers.
	ErrNoMorePaidEndorsementsAvailable = common.NewError(common.Eligibility, "no more paid endorsements available")

	// ErrZeroBalance is returned when the message stake or the contract
	// balance can't cover the payout.
	ErrZeroBalance = common.NewError(common.Exhausted, "zero balance")

	// ErrEndorserPayoutFailed is returned when the payout transfer fails.
	ErrEndorserPayoutFailed = common.NewError(common.External, "endorser payout failed")
)

// Profiles provides declared interests of accounts.
type Profiles interface {
	Interests(acc util.Uint160) (string, error)
}

// Prm groups parameters of the payout engine.
type Prm struct {
	Store    common.Store
	Messages *message.Store
	Profiles Profiles
	Treasury host.Treasury

	Capacities config.Capacities

	// Minimum contract balance left after every payout.
	ReserveFloor uint64

	Policy InterestPolicy
}

// Engine pays endorsers of paid messages.
type Engine struct {
	prm Prm

	paidEndorsed ledger.IDs
}

// Result describes successful paid endorsement.
type Result struct {
	// Message state after the endorsement.
	Message message.PaidMessage
	Payout  uint64
	// Set when the author took back the remaining stake.
	Reclaim bool
}

// New returns payout engine. Nil policy means SubstringMatch.
func New(prm Prm) *Engine {
	if prm.Policy == nil {
		prm.Policy = SubstringMatch
	}

	return &Engine{
		prm:          prm,
		paidEndorsed: ledger.IDs{Ledger: ledger.New(prm.Store, paidEndorsedPrefix, prm.Capacities.Endorsed, util.Uint256Size, nil)},
	}
}

// ElevatePaid endorses the paid message by the caller and pays the caller
// for it. When the caller is the author, the whole staked balance is
// returned to the author, interests and endorsement cap are not checked,
// and the endorser count stays the same.
//
// Transfer is the last step of the call. All state changes are made before
// it, so the caller must drop them if an error is returned.
func (x *Engine) ElevatePaid(id util.Uint256, caller util.Uint160) (Result, error) {
	m, ok, err := x.prm.Messages.PaidMessage(id)
	if err != nil {
		return Result{}, err
	} else if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNonexistentPaidMessage, id.StringLE())
	}

	endorsed, err := x.prm.Messages.HasPaidEndorser(id, caller)
	if err != nil {
		return Result{}, err
	} else if endorsed {
		return Result{}, ErrDuplicateEndorsement
	}

	res := Result{Reclaim: caller.Equals(m.Author)}

	if res.Reclaim {
		res.Payout = m.StakedBalance
	} else {
		interests, err := x.prm.Profiles.Interests(caller)
		if err != nil {
			return Result{}, err
		}

		if !x.prm.Policy(interests, m.TargetTag) {
			return Result{}, fmt.Errorf("%w: target '%s'", ErrNoInterestMatch, m.TargetTag)
		}

		if m.EndorserCount >= m.MaxEndorsers {
			return Result{}, ErrNoMorePaidEndorsementsAvailable
		}

		res.Payout = m.PaymentPerEndorser
		m.EndorserCount++
	}

	if err := x.checkFunds(m, res.Payout); err != nil {
		return Result{}, err
	}
	m.StakedBalance -= res.Payout

	if err := x.prm.Messages.PutPaid(&m); err != nil {
		return Result{}, err
	}

	if err := x.prm.Messages.AddPaidEndorser(&m, caller); err != nil {
		return Result{}, fmt.Errorf("append to paid endorsers: %w", err)
	}

	var details []byte
	if res.Reclaim {
		details = common.ReclaimTransferDetails(id)
	} else {
		if err := x.paidEndorsed.Append(caller.BytesBE(), id); err != nil {
			return Result{}, fmt.Errorf("append to paid endorsed: %w", err)
		}
		details = common.EndorsementTransferDetails(id)
	}

	if err := x.prm.Treasury.Transfer(caller, res.Payout, details); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrEndorserPayoutFailed, err)
	}

	res.Message = m
	return res, nil
}

// checkFunds checks that both the message stake and the contract balance
// cover the payout. Contract must keep the reserve floor.
func (x *Engine) checkFunds(m message.PaidMessage, payout uint64) error {
	if payout == 0 || m.StakedBalance < payout {
		return fmt.Errorf("%w: stake %d, payout %d", ErrZeroBalance, m.StakedBalance, payout)
	}

	need, err := common.Add(payout, x.prm.ReserveFloor)
	if err != nil {
		return err
	}

	if bal := x.prm.Treasury.Balance(); bal <= need {
		return fmt.Errorf("%w: contract balance %d, need more than %d", ErrZeroBalance, bal, need)
	}

	return nil
}

// PaidEndorsedBy returns identifiers of paid messages endorsed by the
// account, oldest first. Some of them may be deleted already.
func (x *Engine) PaidEndorsedBy(acc util.Uint160) ([]util.Uint256, error) {
	return x.paidEndorsed.List(acc.BytesBE())
}
