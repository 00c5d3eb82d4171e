package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/zoobzio/clockz"

	"github.com/angelmondragon/contributions-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/contributions-backend/pkg/errors"
	"github.com/angelmondragon/contributions-backend/pkg/logger"
	"github.com/angelmondragon/contributions-backend/pkg/metrics"
	"github.com/angelmondragon/contributions-backend/pkg/paystack"
	"github.com/angelmondragon/contributions-backend/pkg/reference"
)

// InitializeInput mirrors the initialize endpoint body. AmountMinor is in pesewas.
type InitializeInput struct {
	Reference   string         `json:"reference"`
	Email       string         `json:"email"`
	AmountMinor int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Channels    []string       `json:"channels"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
}

// InitializeResult is returned to the browser to open checkout.
type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Initializer opens gateway checkout sessions. It never writes local state.
type Initializer struct {
	gateway     Gateway
	logg        *logger.Logger
	metrics     *metrics.PaymentMetrics
	callbackURL string
	validate    *validator.Validate
	clock       clockz.Clock
}

// InitializerParams wires an Initializer.
type InitializerParams struct {
	Gateway     Gateway
	Logger      *logger.Logger
	Metrics     *metrics.PaymentMetrics
	CallbackURL string
	Clock       clockz.Clock
}

func NewInitializer(params InitializerParams) (*Initializer, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	clock := params.Clock
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Initializer{
		gateway:     params.Gateway,
		logg:        logg,
		metrics:     params.Metrics,
		callbackURL: strings.TrimSpace(params.CallbackURL),
		validate:    validator.New(),
		clock:       clock,
	}, nil
}

func (i *Initializer) Initialize(ctx context.Context, in InitializeInput) (*InitializeResult, error) {
	if err := i.validateInput(in); err != nil {
		return nil, err
	}
	ctx = i.logg.WithReference(ctx, in.Reference)

	callbackURL := strings.TrimSpace(in.CallbackURL)
	if callbackURL == "" {
		callbackURL = i.callbackURL
	}

	start := i.clock.Now()
	auth, err := i.gateway.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:       strings.TrimSpace(in.Email),
		Amount:      in.AmountMinor,
		Currency:    in.Currency,
		Reference:   in.Reference,
		Channels:    in.Channels,
		Metadata:    in.Metadata,
		CallbackURL: callbackURL,
	})
	if err == nil && auth == nil {
		err = pkgerrors.New(pkgerrors.CodeGateway, "empty initialize response")
	}
	i.metrics.ObserveGateway("initialize", err == nil, i.clock.Since(start))
	i.metrics.IncInitialization(err == nil)
	if err != nil {
		i.logg.Error(ctx, "gateway initialize failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "failed to initialize payment")
	}

	i.logg.Info(i.logg.WithField(ctx, "amount_minor", in.AmountMinor), "checkout initialized")
	ref := auth.Reference
	if ref == "" {
		ref = in.Reference
	}
	return &InitializeResult{
		AuthorizationURL: auth.AuthorizationURL,
		AccessCode:       auth.AccessCode,
		Reference:        ref,
	}, nil
}

func (i *Initializer) validateInput(in InitializeInput) error {
	if err := reference.Validate(in.Reference); err != nil {
		return err
	}
	problems := map[string]string{}
	if err := i.validate.Var(strings.TrimSpace(in.Email), "required,email"); err != nil {
		problems["email"] = "must be a valid email address"
	}
	if in.AmountMinor <= 0 {
		problems["amount"] = "must be a positive integer in minor units"
	}
	if in.Currency != string(enums.CurrencyGHS) {
		problems["currency"] = fmt.Sprintf("must be %s", enums.CurrencyGHS)
	}
	if len(in.Channels) == 0 {
		problems["channels"] = "at least one channel is required"
	}
	for _, ch := range in.Channels {
		if !enums.IsKnownChannel(ch) {
			problems["channels"] = fmt.Sprintf("unknown channel %q", ch)
			break
		}
	}
	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid initialize request").WithDetails(problems)
	}
	return nil
}

// MinorUnits converts a GHS amount to pesewas, rounding half away from zero.
func MinorUnits(amountGHS decimal.Decimal) int64 {
	return amountGHS.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts pesewas back to GHS.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// ChannelsFor returns the gateway channels offered for a donor's chosen method.
func ChannelsFor(method enums.PaymentMethod) []string {
	return method.Channels()
}
