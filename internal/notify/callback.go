package notify

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"rugwatch/internal/domain"
)

// CallbackKind tags a callback payload.
type CallbackKind string

const (
	KindSweep CallbackKind = "sweep"
	KindSell  CallbackKind = "sell"
)

// Callback wire constants.
const (
	MaxCallbackLen    = 64 // Telegram callback_data limit in bytes
	MaxSweepAmountSol = 100.0
	SellAllAmount     = "100%"
	callbackSep       = "|"
)

// ErrInvalidCallback is returned for any payload that does not match
// kind|mint|amount exactly.
var ErrInvalidCallback = errors.New("invalid callback")

// Callback is a decoded action control.
type Callback struct {
	Kind      CallbackKind
	Mint      string
	AmountSol float64 // sweep only
}

// Encode renders the payload. Mint format is checked on parse, not here.
func (c Callback) Encode() (string, error) {
	if c.Mint == "" || strings.Contains(c.Mint, callbackSep) {
		return "", fmt.Errorf("%w: mint %q", ErrInvalidCallback, c.Mint)
	}

	var amount string
	switch c.Kind {
	case KindSweep:
		if !validSweepAmount(c.AmountSol) {
			return "", fmt.Errorf("%w: amount %v", ErrInvalidCallback, c.AmountSol)
		}
		amount = strconv.FormatFloat(c.AmountSol, 'f', -1, 64)
	case KindSell:
		amount = SellAllAmount
	default:
		return "", fmt.Errorf("%w: kind %q", ErrInvalidCallback, c.Kind)
	}

	s := string(c.Kind) + callbackSep + c.Mint + callbackSep + amount
	if len(s) > MaxCallbackLen {
		return "", fmt.Errorf("%w: %d bytes", ErrInvalidCallback, len(s))
	}
	return s, nil
}

// ParseCallback decodes and validates a payload. A mint outside the base58
// alphabet yields an error wrapping domain.ErrInvalidAddress.
func ParseCallback(s string) (Callback, error) {
	if len(s) > MaxCallbackLen {
		return Callback{}, fmt.Errorf("%w: %d bytes", ErrInvalidCallback, len(s))
	}
	parts := strings.Split(s, callbackSep)
	if len(parts) != 3 {
		return Callback{}, fmt.Errorf("%w: %d fields", ErrInvalidCallback, len(parts))
	}

	c := Callback{Kind: CallbackKind(parts[0]), Mint: parts[1]}
	if err := domain.ValidateAddress(c.Mint); err != nil {
		return Callback{}, fmt.Errorf("%w: %w", ErrInvalidCallback, err)
	}

	switch c.Kind {
	case KindSweep:
		amount, err := parseAmount(parts[2])
		if err != nil {
			return Callback{}, err
		}
		c.AmountSol = amount
	case KindSell:
		if parts[2] != SellAllAmount {
			return Callback{}, fmt.Errorf("%w: sell amount %q", ErrInvalidCallback, parts[2])
		}
	default:
		return Callback{}, fmt.Errorf("%w: kind %q", ErrInvalidCallback, parts[0])
	}
	return c, nil
}

// parseAmount accepts plain decimals only: digits with at most one dot.
func parseAmount(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty amount", ErrInvalidCallback)
	}
	dots := 0
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '.':
			dots++
		case s[i] < '0' || s[i] > '9':
			return 0, fmt.Errorf("%w: amount %q", ErrInvalidCallback, s)
		}
	}
	if dots > 1 || s[0] == '.' || s[len(s)-1] == '.' {
		return 0, fmt.Errorf("%w: amount %q", ErrInvalidCallback, s)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !validSweepAmount(v) {
		return 0, fmt.Errorf("%w: amount %q", ErrInvalidCallback, s)
	}
	return v, nil
}

func validSweepAmount(v float64) bool {
	return v > 0 && v <= MaxSweepAmountSol && !math.IsNaN(v) && !math.IsInf(v, 0)
}
