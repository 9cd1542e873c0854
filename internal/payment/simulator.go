package payment

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RandomSource is satisfied by *rand.Rand from math/rand/v2.
type RandomSource interface {
	Float64() float64
	Uint64() uint64
}

type Family string

const (
	FamilyWallet Family = "wallet"
	FamilyCard   Family = "card"
	FamilyBank   Family = "bank"
)

type SimulatorConfig struct {
	WalletSuccessRate float64
	CardSuccessRate   float64
	WalletMethods     []string
	CardMethods       []string
}

func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		WalletSuccessRate: 0.8,
		CardSuccessRate:   0.9,
		WalletMethods:     []string{"qpay", "socialpay", "monpay", "lendmn"},
		CardMethods:       []string{"visa", "mastercard", "unionpay"},
	}
}

// Simulator is a stand-in Gateway deciding outcomes per method family.
type Simulator struct {
	walletRate float64
	cardRate   float64
	families   map[string]Family

	mu  sync.Mutex
	rnd RandomSource
	now func() time.Time
}

func NewSimulator(cfg SimulatorConfig, rnd RandomSource) *Simulator {
	def := DefaultSimulatorConfig()
	if len(cfg.WalletMethods) == 0 {
		cfg.WalletMethods = def.WalletMethods
	}
	if len(cfg.CardMethods) == 0 {
		cfg.CardMethods = def.CardMethods
	}

	families := make(map[string]Family)
	for _, m := range cfg.WalletMethods {
		families[normalizeMethod(m)] = FamilyWallet
	}
	for _, m := range cfg.CardMethods {
		families[normalizeMethod(m)] = FamilyCard
	}

	return &Simulator{
		walletRate: clampRate(cfg.WalletSuccessRate),
		cardRate:   clampRate(cfg.CardSuccessRate),
		families:   families,
		rnd:        rnd,
		now:        time.Now,
	}
}

func clampRate(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

func normalizeMethod(m string) string {
	return strings.ToLower(strings.TrimSpace(m))
}

// FamilyOf classifies a method. Unknown methods are bank transfers.
func (s *Simulator) FamilyOf(method string) Family {
	if f, ok := s.families[normalizeMethod(method)]; ok {
		return f
	}
	return FamilyBank
}

func (s *Simulator) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return ChargeResult{}, err
	}

	method := normalizeMethod(req.Method)

	var rate float64
	var failure string
	switch s.FamilyOf(method) {
	case FamilyWallet:
		rate, failure = s.walletRate, MsgWalletFailed
	case FamilyCard:
		rate, failure = s.cardRate, MsgCardFailed
	default:
		return ChargeResult{Status: StatePending, Message: MsgAwaitingBank}, nil
	}

	s.mu.Lock()
	roll := s.rnd.Float64()
	suffix := s.rnd.Uint64()
	s.mu.Unlock()

	if roll >= rate {
		return ChargeResult{Status: StateFailed, Message: failure}, nil
	}

	return ChargeResult{
		Status:        StateSuccess,
		Message:       MsgSuccess,
		TransactionID: method + "_" + strconv.FormatUint(suffix, 36),
		PaidAt:        s.now().UTC(),
	}, nil
}
