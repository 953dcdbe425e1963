package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// UnknownMoniker is used when the chain returns a validator without a description
const UnknownMoniker = "Unknown"

// ErrInvalidSnapshot is returned when a snapshot references a validator that is
// not part of its own roster
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Validator represents a bonded validator in the roster
type Validator struct {
	OperatorAddress string `json:"operator_address"`
	Moniker         string `json:"moniker"`
	VotingPower     uint64 `json:"voting_power"`
}

// FeederStatus discriminates the three FeederLink cases
type FeederStatus string

const (
	FeederStatusLinked FeederStatus = "linked"
	FeederStatusNone   FeederStatus = "none"
	FeederStatusError  FeederStatus = "error"
)

// FeederLink is the price-feeder delegation of a validator. A link is either
// an address, an explicit "no feeder configured", or a failed lookup; use the
// constructors below rather than building one by hand.
type FeederLink struct {
	Status  FeederStatus `json:"status"`
	Address string       `json:"address,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// FeederLinked returns a link pointing at a delegated feeder account
func FeederLinked(address string) FeederLink {
	return FeederLink{Status: FeederStatusLinked, Address: address}
}

// FeederNone returns a link for a validator that has delegated no feeder
func FeederNone() FeederLink {
	return FeederLink{Status: FeederStatusNone}
}

// FeederFetchError returns a link for a validator whose feeder lookup failed
func FeederFetchError(reason string) FeederLink {
	return FeederLink{Status: FeederStatusError, Error: reason}
}

// IsLinked reports whether the link carries a feeder address
func (f FeederLink) IsLinked() bool { return f.Status == FeederStatusLinked }

// IsNone reports whether the validator deliberately has no feeder
func (f FeederLink) IsNone() bool { return f.Status == FeederStatusNone }

// IsError reports whether the feeder status is unknown for this cycle
func (f FeederLink) IsError() bool { return f.Status == FeederStatusError }

// ExchangeRateTable maps a denom to its oracle exchange rate
type ExchangeRateTable map[string]decimal.Decimal

// Snapshot is the state of the oracle set captured in one polling cycle.
// A Snapshot is treated as immutable once the fetcher returns it.
type Snapshot struct {
	Validators     map[string]Validator
	Order          []string // roster iteration order
	Misses         map[string]uint64
	FeederLinks    map[string]FeederLink
	FeederBalances map[string]uint64
	// Feeder addresses whose balance request failed this cycle. A feeder
	// listed here has no FeederBalances entry; its balance is unknown.
	BalanceErrors map[string]string
	Rates         ExchangeRateTable
	CapturedAt    time.Time
}

// NewSnapshot returns an empty snapshot with all maps allocated
func NewSnapshot(capturedAt time.Time) *Snapshot {
	return &Snapshot{
		Validators:     make(map[string]Validator),
		Misses:         make(map[string]uint64),
		FeederLinks:    make(map[string]FeederLink),
		FeederBalances: make(map[string]uint64),
		BalanceErrors:  make(map[string]string),
		Rates:          make(ExchangeRateTable),
		CapturedAt:     capturedAt,
	}
}

// AddValidator appends a validator to the roster, keeping the first
// occurrence's position if the address repeats
func (s *Snapshot) AddValidator(v Validator) {
	if _, exists := s.Validators[v.OperatorAddress]; !exists {
		s.Order = append(s.Order, v.OperatorAddress)
	}
	s.Validators[v.OperatorAddress] = v
}

// Validate checks that every miss and feeder entry belongs to the roster
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}
	if len(s.Order) != len(s.Validators) {
		return fmt.Errorf("%w: order has %d entries for %d validators",
			ErrInvalidSnapshot, len(s.Order), len(s.Validators))
	}
	for _, addr := range s.Order {
		if _, ok := s.Validators[addr]; !ok {
			return fmt.Errorf("%w: ordered address %s not in roster", ErrInvalidSnapshot, addr)
		}
	}
	for addr := range s.Misses {
		if _, ok := s.Validators[addr]; !ok {
			return fmt.Errorf("%w: miss counter for unknown validator %s", ErrInvalidSnapshot, addr)
		}
	}
	for addr := range s.FeederLinks {
		if _, ok := s.Validators[addr]; !ok {
			return fmt.Errorf("%w: feeder link for unknown validator %s", ErrInvalidSnapshot, addr)
		}
	}
	for feeder := range s.BalanceErrors {
		if _, ok := s.FeederBalances[feeder]; ok {
			return fmt.Errorf("%w: feeder %s has both a balance and a balance error", ErrInvalidSnapshot, feeder)
		}
	}
	return nil
}

// BalanceKnown reports whether the balance of a feeder was fetched this cycle
func (s *Snapshot) BalanceKnown(feeder string) bool {
	if _, failed := s.BalanceErrors[feeder]; failed {
		return false
	}
	_, ok := s.FeederBalances[feeder]
	return ok
}

// TotalPower sums the voting power of the full roster
func (s *Snapshot) TotalPower() uint64 {
	var total uint64
	for _, v := range s.Validators {
		total += v.VotingPower
	}
	return total
}

// PersistedState is the durable record of the last successful fetch
type PersistedState struct {
	Validators              map[string]Validator `json:"validators"`
	Order                   []string             `json:"order"`
	CurrentMisses           map[string]uint64    `json:"current_misses"`
	FeederAddresses         map[string]string    `json:"feeder_addresses"`
	FeederBalances          map[string]uint64    `json:"feeder_balances"`
	ExchangeRates           ExchangeRateTable    `json:"exchange_rates"`
	ValidatorsWithoutFeeder []string             `json:"validators_without_feeder"`
	FeederErrors            map[string]string    `json:"feeder_errors"`
	BalanceErrors           map[string]string    `json:"balance_errors,omitempty"`
	Timestamp               time.Time            `json:"timestamp"`
}

// FromSnapshot flattens a snapshot into its persisted form
func FromSnapshot(s *Snapshot) *PersistedState {
	ps := &PersistedState{
		Validators:              make(map[string]Validator, len(s.Validators)),
		Order:                   append([]string(nil), s.Order...),
		CurrentMisses:           make(map[string]uint64, len(s.Misses)),
		FeederAddresses:         make(map[string]string),
		FeederBalances:          make(map[string]uint64, len(s.FeederBalances)),
		ExchangeRates:           make(ExchangeRateTable, len(s.Rates)),
		ValidatorsWithoutFeeder: []string{},
		FeederErrors:            make(map[string]string),
		BalanceErrors:           make(map[string]string, len(s.BalanceErrors)),
		Timestamp:               s.CapturedAt,
	}
	for k, v := range s.Validators {
		ps.Validators[k] = v
	}
	for k, v := range s.Misses {
		ps.CurrentMisses[k] = v
	}
	for k, v := range s.FeederBalances {
		ps.FeederBalances[k] = v
	}
	for k, v := range s.BalanceErrors {
		ps.BalanceErrors[k] = v
	}
	for k, v := range s.Rates {
		ps.ExchangeRates[k] = v
	}

	// Walk in roster order so validators_without_feeder is deterministic
	for _, addr := range s.Order {
		link, ok := s.FeederLinks[addr]
		if !ok {
			continue
		}
		switch link.Status {
		case FeederStatusLinked:
			ps.FeederAddresses[addr] = link.Address
		case FeederStatusNone:
			ps.ValidatorsWithoutFeeder = append(ps.ValidatorsWithoutFeeder, addr)
		case FeederStatusError:
			ps.FeederErrors[addr] = link.Error
		}
	}
	return ps
}

// ToSnapshot rebuilds the snapshot that produced this state
func (ps *PersistedState) ToSnapshot() *Snapshot {
	s := NewSnapshot(ps.Timestamp)

	order := ps.Order
	if len(order) == 0 {
		// States written without an order still restore, in sorted order
		order = sortedKeys(ps.Validators)
	}
	for _, addr := range order {
		if v, ok := ps.Validators[addr]; ok {
			s.AddValidator(v)
		}
	}
	for _, addr := range sortedKeys(ps.Validators) {
		if _, ok := s.Validators[addr]; !ok {
			s.AddValidator(ps.Validators[addr])
		}
	}

	for k, v := range ps.CurrentMisses {
		s.Misses[k] = v
	}
	for k, v := range ps.FeederBalances {
		s.FeederBalances[k] = v
	}
	for k, v := range ps.BalanceErrors {
		s.BalanceErrors[k] = v
	}
	for k, v := range ps.ExchangeRates {
		s.Rates[k] = v
	}
	for addr, feeder := range ps.FeederAddresses {
		s.FeederLinks[addr] = FeederLinked(feeder)
	}
	for _, addr := range ps.ValidatorsWithoutFeeder {
		s.FeederLinks[addr] = FeederNone()
	}
	for addr, reason := range ps.FeederErrors {
		s.FeederLinks[addr] = FeederFetchError(reason)
	}
	return s
}

// ReportRecord is a delivered report kept in the history bucket
type ReportRecord struct {
	ID             string          `json:"id"`
	CycleID        string          `json:"cycle_id"`
	SentAt         time.Time       `json:"sent_at"`
	CapturedAt     time.Time       `json:"captured_at"`
	HasIssues      bool            `json:"has_issues"`
	Regressed      int             `json:"regressed"`
	Stable         int             `json:"stable"`
	LowBalance     int             `json:"low_balance"`
	NoFeeder       int             `json:"no_feeder"`
	RegressedPower float64         `json:"regressed_power_pct"`
	Delivered      bool            `json:"delivered"`
	Error          string          `json:"error,omitempty"`
	Report         json.RawMessage `json:"report,omitempty"`
}
