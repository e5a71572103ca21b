package ports

import (
	"context"

	"github.com/digitbot/godigit/internal/domain"
)

// Collaborator contracts consumed by the session engine.
//
// NOTE: these interfaces live in a "neutral" package to avoid circular
// dependencies between the engine runtime, session controller and the
// venue infrastructure. Transport details stay behind them.

// AuthResult is the successful outcome of an Authenticate call.
type AuthResult struct {
	AccountID string
	Currency  string
	Balance   domain.Money
}

// Authenticator authenticates a credential against the venue.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*AuthResult, error)
}

// TickHandler consumes one tick. Handlers must be short and non-blocking.
type TickHandler func(tick domain.Tick)

// TickStream delivers ticks for a subscribed instrument.
type TickStream interface {
	// SubscribeTicks registers the handler and returns an unsubscribe func.
	SubscribeTicks(ctx context.Context, instrument string, h TickHandler) (func(), error)
}

// ContractUpdate is one contract-state push from the venue. Only updates
// with IsSold=true are settlement events.
type ContractUpdate struct {
	ContractID     string
	IsSold         bool
	Profit         domain.Money
	SellPrice      domain.Money
	AccountBalance *domain.Money // optional balance snapshot
}

// ContractUpdateStream delivers contract settlement pushes.
type ContractUpdateStream interface {
	SubscribeContractUpdates(ctx context.Context, h func(ContractUpdate)) (func(), error)
}

// ProposalRequest carries the strategy parameters for a price quote.
type ProposalRequest struct {
	Instrument    string
	ContractType  string // DIGITMATCH / DIGITDIFF / DIGITEVEN / DIGITODD / DIGITOVER / DIGITUNDER
	Barrier       string // target digit for digit contracts, empty otherwise
	Stake         domain.Money
	DurationTicks int
	Currency      string
}

// Proposal is a priced quote returned by the venue.
type Proposal struct {
	ID       string
	AskPrice domain.Money
}

// Trader places trades: quote first, then buy against the quote.
type Trader interface {
	Propose(ctx context.Context, req ProposalRequest) (*Proposal, error)
	Buy(ctx context.Context, proposalID string, price domain.Money) (contractID string, err error)
}

// BalanceUpdate is one balance observation (push or poll; consumers cannot
// tell them apart).
type BalanceUpdate struct {
	Balance  domain.Money
	Currency string
}

// BalanceStream is the push balance feed.
type BalanceStream interface {
	SubscribeBalance(ctx context.Context, h func(BalanceUpdate)) (func(), error)
}

// BalancePoller is the poll fallback when the push feed is unavailable.
type BalancePoller interface {
	PollBalance(ctx context.Context) (BalanceUpdate, error)
}

// Gateway is the full venue surface the session controller drives.
type Gateway interface {
	Authenticator
	TickStream
	ContractUpdateStream
	Trader
	BalanceStream
	BalancePoller

	// ForgetAll drops all server-side subscriptions (best-effort).
	ForgetAll(ctx context.Context) error

	// Disconnect tears the connection down (best-effort).
	Disconnect() error
}
