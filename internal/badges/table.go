package badges

import (
	"errors"
	"fmt"
	"math"
)

// MaxTierReached is reported as the next badge once a user holds the last tier.
const MaxTierReached = "Highest Level Achieved!"

type Tier struct {
	Title   string `json:"title"`
	Minutes int    `json:"minutes"`
}

// DefaultTiers is the threshold table used when no other table is configured.
var DefaultTiers = []Tier{
	{Title: "Member", Minutes: 0},
	{Title: "Entry", Minutes: 60},
	{Title: "Beginner", Minutes: 300},
	{Title: "Intermediate", Minutes: 900},
	{Title: "Proficient", Minutes: 1800},
	{Title: "Advanced", Minutes: 3600},
	{Title: "Expert", Minutes: 7200},
	{Title: "A+ Student", Minutes: 12000},
	{Title: "Master", Minutes: 18000},
	{Title: "Grand Master", Minutes: 24000},
	{Title: "Study Machine", Minutes: 30000},
	{Title: "Study Master", Minutes: 36000},
}

var (
	ErrEmptyTable     = errors.New("badge table is empty")
	ErrFirstThreshold = errors.New("first badge threshold must be 0")
	ErrUnorderedTable = errors.New("badge thresholds must be strictly increasing")
	ErrUntitledTier   = errors.New("badge tier title is required")
)

// Table is an immutable, validated tier list sorted ascending by threshold.
type Table struct {
	tiers []Tier
}

func NewTable(tiers []Tier) (*Table, error) {
	if len(tiers) == 0 {
		return nil, ErrEmptyTable
	}
	if tiers[0].Minutes != 0 {
		return nil, ErrFirstThreshold
	}
	for i, t := range tiers {
		if t.Title == "" {
			return nil, fmt.Errorf("tier %d: %w", i, ErrUntitledTier)
		}
		if i > 0 && t.Minutes <= tiers[i-1].Minutes {
			return nil, fmt.Errorf("tier %q (%d) after %q (%d): %w",
				t.Title, t.Minutes, tiers[i-1].Title, tiers[i-1].Minutes, ErrUnorderedTable)
		}
	}

	cp := make([]Tier, len(tiers))
	copy(cp, tiers)
	return &Table{tiers: cp}, nil
}

// Default returns the built-in table. It panics only if DefaultTiers is edited into an invalid state.
func Default() *Table {
	t, err := NewTable(DefaultTiers)
	if err != nil {
		panic(fmt.Sprintf("invalid default badge table: %v", err))
	}
	return t
}

func (t *Table) Tiers() []Tier {
	cp := make([]Tier, len(t.tiers))
	copy(cp, t.tiers)
	return cp
}

func (t *Table) Lowest() Tier {
	return t.tiers[0]
}

// TierFor returns the highest tier whose threshold is <= totalMinutes.
func (t *Table) TierFor(totalMinutes int) Tier {
	return t.tiers[t.indexFor(totalMinutes)]
}

func (t *Table) indexFor(totalMinutes int) int {
	for i := len(t.tiers) - 1; i >= 0; i-- {
		if totalMinutes >= t.tiers[i].Minutes {
			return i
		}
	}
	return 0
}

// Progress describes where a total sits between the current and next tier.
type Progress struct {
	Current         Tier
	Next            *Tier
	MinutesToNext   int
	ProgressPercent int
}

func (p Progress) NextTitle() string {
	if p.Next == nil {
		return MaxTierReached
	}
	return p.Next.Title
}

func (t *Table) Progress(totalMinutes int) Progress {
	idx := t.indexFor(totalMinutes)
	current := t.tiers[idx]

	if idx == len(t.tiers)-1 {
		return Progress{Current: current, ProgressPercent: 100}
	}

	next := t.tiers[idx+1]
	p := Progress{
		Current:       current,
		Next:          &next,
		MinutesToNext: max(0, next.Minutes-totalMinutes),
	}

	span := next.Minutes - current.Minutes
	if span <= 0 {
		p.ProgressPercent = 100
		return p
	}

	pct := math.Round(100 * float64(totalMinutes-current.Minutes) / float64(span))
	p.ProgressPercent = int(math.Min(100, math.Max(0, pct)))
	return p
}
