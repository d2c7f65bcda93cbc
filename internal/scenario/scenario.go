// Package scenario replays scripted instruction sequences against an
// in-memory pool. A scenario names its participants, seeds the two price
// feeds and lists steps with optional expectations, so pricing behaviour can
// be explored and regression-tested without a cluster.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/lugondev/go-zion/internal/instruction"
	"github.com/lugondev/go-zion/pkg/types"
)

// Step actions besides the instruction kinds.
const (
	ActionSetFeed   = "set_feed"
	ActionAdvance   = "advance"
	ActionEmergency = "emergency"
)

// DefaultExpo is the feed exponent used when a feed leaves it unset.
const DefaultExpo = -8

// Scenario is a scripted sequence of steps against one pool.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	StartSlot   uint64 `yaml:"start_slot"`

	// Admin names the participant that initializes and administers the pool.
	Admin        string              `yaml:"admin"`
	Participants map[string]Holdings `yaml:"participants"`

	FeedA FeedSpec `yaml:"feed_a"`
	FeedB FeedSpec `yaml:"feed_b"`

	Steps []Step `yaml:"steps"`
}

// Holdings is a participant's opening token balances.
type Holdings struct {
	A uint64 `yaml:"a"`
	B uint64 `yaml:"b"`
}

// FeedSpec describes a feed reading in decimal terms.
type FeedSpec struct {
	Price string `yaml:"price"`
	Conf  string `yaml:"conf"`
	Expo  *int32 `yaml:"expo"`
	// Age is how many slots before the current slot the reading was published.
	Age uint64 `yaml:"age"`
	// Halted publishes the reading with a non-trading status.
	Halted bool `yaml:"halted"`
}

// Step is one action. Which fields apply depends on Action.
type Step struct {
	Name   string `yaml:"name"`
	Action string `yaml:"action"`
	Signer string `yaml:"signer"`

	AmountA uint64 `yaml:"amount_a"`
	AmountB uint64 `yaml:"amount_b"`
	Token   string `yaml:"token"`
	Amount  uint64 `yaml:"amount"`
	Shares  uint64 `yaml:"shares"`
	MinOut  uint64 `yaml:"min_out"`
	MinA    uint64 `yaml:"min_a"`
	MinB    uint64 `yaml:"min_b"`

	Feed    *FeedSpec `yaml:"feed"`
	Slots   uint64    `yaml:"slots"`
	Enabled bool      `yaml:"enabled"`

	Expect Expect `yaml:"expect"`
}

// Expect lists checks made after a step. Unset fields are not checked.
type Expect struct {
	// Error is the expected error code. Empty means the step must succeed.
	Error string `yaml:"error"`

	AmountOut    *uint64 `yaml:"amount_out"`
	AmountAOut   *uint64 `yaml:"amount_a_out"`
	AmountBOut   *uint64 `yaml:"amount_b_out"`
	SharesMinted *uint64 `yaml:"shares_minted"`
	SharesBurned *uint64 `yaml:"shares_burned"`
	Capped       *bool   `yaml:"capped"`

	ReserveA    *uint64 `yaml:"reserve_a"`
	ReserveB    *uint64 `yaml:"reserve_b"`
	ShareSupply *uint64 `yaml:"share_supply"`
	Status      string  `yaml:"status"`
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a scenario. Unknown fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks references between steps, participants and feeds.
func (s *Scenario) Validate() error {
	if _, ok := s.Participants[s.Admin]; !ok {
		return fmt.Errorf("admin %q is not a participant", s.Admin)
	}
	if err := s.FeedA.validate(); err != nil {
		return fmt.Errorf("feed_a: %w", err)
	}
	if err := s.FeedB.validate(); err != nil {
		return fmt.Errorf("feed_b: %w", err)
	}

	var errs []error
	for i, step := range s.Steps {
		if err := s.validateStep(step); err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i+1, step.label(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scenario) validateStep(step Step) error {
	switch step.Action {
	case ActionAdvance:
		if step.Slots == 0 {
			return errors.New("advance needs slots")
		}
		return nil
	case ActionSetFeed:
		if step.Feed == nil {
			return errors.New("set_feed needs a feed")
		}
		if _, err := types.ParseSide(step.Token); err != nil {
			return err
		}
		return step.Feed.validate()
	}

	if _, ok := s.Participants[step.Signer]; !ok {
		return fmt.Errorf("unknown signer %q", step.Signer)
	}
	if step.Action == ActionEmergency {
		return nil
	}

	var kind instruction.Kind
	if err := kind.UnmarshalText([]byte(step.Action)); err != nil {
		return fmt.Errorf("unknown action %q", step.Action)
	}
	if kind == instruction.KindDeposit || kind == instruction.KindSwap {
		if _, err := types.ParseSide(step.Token); err != nil {
			return err
		}
	}
	return nil
}

func (f FeedSpec) validate() error {
	if _, err := decimal.NewFromString(f.Price); err != nil {
		return fmt.Errorf("invalid price %q: %w", f.Price, err)
	}
	if f.Conf != "" {
		if _, err := decimal.NewFromString(f.Conf); err != nil {
			return fmt.Errorf("invalid conf %q: %w", f.Conf, err)
		}
	}
	return nil
}

func (step Step) label() string {
	if step.Name != "" {
		return step.Name
	}
	return step.Action
}
