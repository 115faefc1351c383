// Package wallet drives Apple Pay and Google Pay Quick Buy sessions.
//
// Each checkout context (wallet provider plus cart) owns one Orchestrator.
// Wallet SDK callbacks arrive as events and are handled strictly one after
// another; a session accepts a new Start only after it reached a terminal
// state. Cancel aborts the backend call in flight.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"opf-quickbuy/internal/adapter"
	"opf-quickbuy/internal/model"
	"opf-quickbuy/internal/opf"
	"opf-quickbuy/internal/payment"
	"opf-quickbuy/internal/session"
)

// Settings are the service-wide wallet defaults.
type Settings struct {
	// MerchantName labels totals when the cart carries no store name.
	MerchantName string
	// CountryCode is used when the wallet config has none.
	CountryCode string

	ApplePayVersion    int
	ApplePayMinVersion string // semver, e.g. "v3"

	GooglePayEnvironment string // TEST or PRODUCTION

	// Hostname is sent as the Apple Pay initiative context. Defaults to the
	// storefront origin host.
	Hostname string
}

// Default settings.
const (
	DefaultApplePayVersion      = 3
	DefaultGooglePayEnvironment = "TEST"
)

// Options configure a session.
type Options struct {
	Pipeline *payment.Pipeline
	Settings Settings
	Logger   *slog.Logger
	Now      func() time.Time
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID          string                      `json:"id"`
	Provider    model.Provider              `json:"provider"`
	State       State                       `json:"state"`
	InProgress  bool                        `json:"inProgress"`
	Transaction *session.TransactionDetails `json:"transaction,omitempty"`
	AddressIDs  []string                    `json:"addressIds"`
	LastError   *model.PaymentError         `json:"lastError,omitempty"`
	RedirectURL string                      `json:"redirectUrl,omitempty"`
	UpdatedAt   time.Time                   `json:"updatedAt"`
}

// Orchestrator is the state machine shared by both wallets.
type Orchestrator struct {
	id       string
	key      string
	provider model.Provider
	pipeline *payment.Pipeline
	settings Settings
	logger   *slog.Logger
	now      func() time.Time

	lastActive atomic.Int64

	// mu serializes events and guards everything below it.
	mu          sync.Mutex
	sf          adapter.Storefront
	state       State
	inProgress  bool
	guest       bool
	tx          *session.TransactionDetails
	lastError   *model.PaymentError
	redirectURL string

	flightMu sync.Mutex
	flight   context.Context
	stop     context.CancelFunc
}

func newOrchestrator(id, key string, provider model.Provider, opts Options) *Orchestrator {
	if opts.Pipeline == nil {
		opts.Pipeline = payment.NewPipeline(0, opts.Logger)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Settings.ApplePayVersion == 0 {
		opts.Settings.ApplePayVersion = DefaultApplePayVersion
	}
	if opts.Settings.GooglePayEnvironment == "" {
		opts.Settings.GooglePayEnvironment = DefaultGooglePayEnvironment
	}

	o := &Orchestrator{
		id:       id,
		key:      key,
		provider: provider,
		pipeline: opts.Pipeline,
		settings: opts.Settings,
		logger:   opts.Logger.With(slog.String("session_id", id), slog.String("provider", string(provider))),
		now:      opts.Now,
		state:    StateIdle,
		tx:       session.New(),
	}
	o.touch()
	return o
}

// ID is the session id handed to wallet clients.
func (o *Orchestrator) ID() string { return o.id }

// Key identifies the checkout context the session belongs to.
func (o *Orchestrator) Key() string { return o.key }

// Provider is the wallet the session drives.
func (o *Orchestrator) Provider() model.Provider { return o.provider }

// LastActive is the time the session last handled an event.
func (o *Orchestrator) LastActive() time.Time {
	return time.Unix(0, o.lastActive.Load())
}

func (o *Orchestrator) touch() {
	o.lastActive.Store(o.now().UnixNano())
}

// Snapshot returns the current session view. It waits for an event in
// flight to finish.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot()
}

func (o *Orchestrator) snapshot() Snapshot {
	tx := *o.tx
	return Snapshot{
		ID:          o.id,
		Provider:    o.provider,
		State:       o.state,
		InProgress:  o.inProgress,
		Transaction: &tx,
		AddressIDs:  o.tx.AddressIDs(),
		LastError:   o.lastError,
		RedirectURL: o.redirectURL,
		UpdatedAt:   o.LastActive(),
	}
}

// Cancel moves an active session to CANCELLED, clears its addresses and
// releases the in-progress guard. A backend call in flight is aborted.
// Cancelling an inactive session is a no-op.
func (o *Orchestrator) Cancel(ctx context.Context) Snapshot {
	o.flightMu.Lock()
	if o.stop != nil {
		o.stop()
	}
	o.flightMu.Unlock()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inProgress && o.state.CanTransitionTo(StateCancelled) {
		o.state = StateCancelled
		o.lastError = model.NewCancelledError()
		o.logger.InfoContext(ctx, "wallet session cancelled")
	}
	if o.inProgress {
		o.finish(ctx)
	}
	o.touch()
	return o.snapshot()
}

// start runs build as the first event of a new attempt.
func start[T any](ctx context.Context, o *Orchestrator, sf adapter.Storefront, cart *model.Cart, build func(context.Context) (T, error)) (_ T, err error) {
	var zero T
	if cart == nil {
		return zero, model.NewValidationError("cart", "is required")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inProgress {
		return zero, model.NewConflictError(o.provider.DisplayName() + " is already in progress")
	}

	flight, stop := context.WithCancel(context.Background())
	o.flightMu.Lock()
	o.flight, o.stop = flight, stop
	o.flightMu.Unlock()

	o.sf = sf
	o.state = StateIdle
	o.inProgress = true
	o.guest = false
	o.lastError = nil
	o.redirectURL = ""
	o.tx.Reset(cart)
	o.tx.Total.Label = o.merchantName()
	o.tx.DeliveryInfo.Type = cart.DeliveryType()
	if o.tx.DeliveryInfo.Type == model.DeliveryPickup {
		o.tx.DeliveryInfo.PickupDetails = &session.PickupDetails{StoreName: cart.Store}
	}
	o.transition(StateStarted)
	o.touch()

	o.logger.InfoContext(ctx, "wallet session started",
		slog.String("cart", cart.Code),
		slog.String("delivery_type", string(o.tx.DeliveryInfo.Type)),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(flight, cancel)()
	defer o.recoverHandler(ctx, &err)

	res, err := build(ctx)
	if err != nil {
		return zero, o.abort(ctx, err)
	}
	return res, nil
}

// run handles event e with fn. Errors returned by fn fail the session;
// recoverable problems are reported inside the result instead.
func run[T any](ctx context.Context, o *Orchestrator, e Event, fn func(context.Context) (T, error)) (_ T, err error) {
	var zero T
	ctx, done, err := o.begin(ctx, e)
	if err != nil {
		return zero, err
	}
	defer done()
	defer o.recoverHandler(ctx, &err)

	res, err := fn(ctx)
	if err != nil {
		return zero, o.abort(ctx, err)
	}
	return res, nil
}

// begin locks the session for e and moves it to the event's target state.
// The returned context is cancelled by Cancel.
func (o *Orchestrator) begin(ctx context.Context, e Event) (context.Context, func(), error) {
	o.mu.Lock()
	if !o.inProgress {
		o.mu.Unlock()
		return nil, nil, model.NewStateError(o.provider.DisplayName() + " session is not active")
	}
	if e.needsShipping() && o.tx.DeliveryInfo.Type == model.DeliveryPickup {
		o.mu.Unlock()
		return nil, nil, model.NewValidationError(string(e), "not available for pickup orders")
	}
	to := e.Target()
	if !o.state.CanTransitionTo(to) {
		o.mu.Unlock()
		return nil, nil, model.NewStateError(fmt.Sprintf("cannot handle %s in state %s", e, o.state))
	}

	o.flightMu.Lock()
	flight := o.flight
	o.flightMu.Unlock()
	if flight.Err() != nil {
		o.mu.Unlock()
		return nil, nil, model.NewCancelledError()
	}

	o.transition(to)
	o.touch()
	o.logger.DebugContext(ctx, "wallet event", slog.String("event", string(e)))

	ctx, cancel := context.WithCancel(ctx)
	stopAfter := context.AfterFunc(flight, cancel)
	return ctx, func() {
		stopAfter()
		cancel()
		o.touch()
		o.mu.Unlock()
	}, nil
}

func (o *Orchestrator) transition(to State) {
	if !o.state.CanTransitionTo(to) {
		o.logger.Warn("invalid state transition",
			slog.String("from", string(o.state)),
			slog.String("to", string(to)),
		)
		return
	}
	o.state = to
}

// abort turns a handler error into the session outcome: CANCELLED when
// Cancel interrupted the call, FAILED otherwise.
func (o *Orchestrator) abort(ctx context.Context, err error) error {
	if o.cancelled() {
		return model.NewCancelledError()
	}
	o.fail(ctx, err)
	return apiError(err)
}

// recoverHandler fails the session when a handler panics and reports the
// panic as an internal error. It must be deferred while o.mu is held.
func (o *Orchestrator) recoverHandler(ctx context.Context, err *error) {
	p := recover()
	if p == nil {
		return
	}
	o.logger.ErrorContext(ctx, "wallet handler panicked",
		slog.Any("panic", p),
		slog.String("stack", string(debug.Stack())),
	)
	cause := fmt.Errorf("panic: %v", p)
	if o.inProgress {
		o.fail(ctx, cause)
	}
	*err = model.NewInternalError(cause)
}

func (o *Orchestrator) cancelled() bool {
	o.flightMu.Lock()
	defer o.flightMu.Unlock()
	return o.flight != nil && o.flight.Err() != nil && o.inProgress
}

// fail moves the session to FAILED and releases it.
func (o *Orchestrator) fail(ctx context.Context, err error) {
	o.logger.ErrorContext(ctx, "wallet session failed",
		slog.String("state", string(o.state)),
		slog.String("error", err.Error()),
	)
	o.transition(StateFailed)
	var payErr *model.PaymentError
	if !errors.As(err, &payErr) {
		payErr = model.NewPaymentError(model.PaymentErrorUnexpected, payment.UserMessage(err))
	}
	o.lastError = payErr
	o.finish(ctx)
}

// complete moves the session to COMPLETED and releases it.
func (o *Orchestrator) complete(ctx context.Context, redirectURL string) {
	o.transition(StateCompleted)
	o.redirectURL = redirectURL
	o.logger.InfoContext(ctx, "wallet session completed", slog.String("redirect_url", redirectURL))
	o.finish(ctx)
}

// finish runs on every terminal state.
func (o *Orchestrator) finish(ctx context.Context) {
	if cleared := o.tx.ClearAddresses(); len(cleared) > 0 {
		o.logger.DebugContext(ctx, "cleared session addresses", slog.Any("address_ids", cleared))
	}
	o.inProgress = false

	o.flightMu.Lock()
	if o.stop != nil {
		o.stop()
	}
	o.flightMu.Unlock()
}

// ensureGuest converts an anonymous cart to a guest cart once per attempt.
func (o *Orchestrator) ensureGuest(ctx context.Context) error {
	cart := o.tx.Cart
	if o.guest || cart.IsUserLoggedIn() || cart.IsGuestCart() {
		return nil
	}
	if err := o.sf.CreateCartGuestUser(ctx); err != nil {
		return err
	}
	o.guest = true
	return nil
}

// setAddress creates a delivery address and records its id.
func (o *Orchestrator) setAddress(ctx context.Context, addr model.Address) error {
	created, err := o.sf.SetDeliveryAddress(ctx, addr)
	if err != nil {
		return err
	}
	if created != nil {
		o.tx.RecordAddress(created.ID)
	}
	return nil
}

func (o *Orchestrator) updateEmail(ctx context.Context, email string) error {
	if email == "" {
		return nil
	}
	return o.sf.UpdateCartGuestUserEmail(ctx, email)
}

func (o *Orchestrator) merchantName() string {
	if o.tx.Cart != nil && o.tx.Cart.Store != "" {
		return o.tx.Cart.Store
	}
	if o.settings.MerchantName != "" {
		return o.settings.MerchantName
	}
	return model.DefaultMerchantName
}

func (o *Orchestrator) countryCode(configured string) string {
	if configured != "" {
		return configured
	}
	return o.settings.CountryCode
}

func (o *Orchestrator) hostname() string {
	if o.settings.Hostname != "" {
		return o.settings.Hostname
	}
	u, err := url.Parse(o.sf.Origin())
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// apiError maps a failure to the error returned to the wallet client.
func apiError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var reqErr *opf.RequestError
	if errors.As(err, &reqErr) {
		return model.NewUpstreamError("storefront", err)
	}
	var payErr *model.PaymentError
	if errors.As(err, &payErr) {
		return model.NewPaymentAPIError(payErr.Message)
	}
	var flowErr *payment.FlowError
	if errors.As(err, &flowErr) {
		return model.NewPaymentAPIError(flowErr.Message)
	}
	return model.NewInternalError(err)
}
