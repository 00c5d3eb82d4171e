package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod is the donor-facing choice; each maps to gateway channel codes.
type PaymentMethod string

const (
	PaymentMethodMobileMoney  PaymentMethod = "MOMO"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodMobileMoney,
	PaymentMethodCard,
	PaymentMethodBankTransfer,
}

// Gateway channel codes accepted by the hosted checkout.
const (
	ChannelCard         = "card"
	ChannelBank         = "bank"
	ChannelBankTransfer = "bank_transfer"
	ChannelMobileMoney  = "mobile_money"
	ChannelUSSD         = "ussd"
	ChannelQR           = "qr"
)

var knownChannels = map[string]struct{}{
	ChannelCard:         {},
	ChannelBank:         {},
	ChannelBankTransfer: {},
	ChannelMobileMoney:  {},
	ChannelUSSD:         {},
	ChannelQR:           {},
}

var channelsByMethod = map[PaymentMethod][]string{
	PaymentMethodMobileMoney:  {ChannelMobileMoney},
	PaymentMethodCard:         {ChannelCard},
	PaymentMethodBankTransfer: {ChannelBank, ChannelBankTransfer},
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// Channels returns a copy of the gateway channel codes for the method.
func (p PaymentMethod) Channels() []string {
	channels := channelsByMethod[p]
	out := make([]string, len(channels))
	copy(out, channels)
	return out
}

// ParsePaymentMethod converts raw input (case-insensitive) into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validPaymentMethods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

// IsKnownChannel reports whether the gateway accepts the channel code.
func IsKnownChannel(channel string) bool {
	_, ok := knownChannels[channel]
	return ok
}
