// Package scoring computes priority scores as fixed-precision decimal
// strings. All arithmetic goes through shopspring/decimal with pinned
// rounding so the same inputs always produce the same bytes, no matter which
// host computed them.
package scoring

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every rendered score carries.
const Scale = 4

// divPrecision pins the rounding point for every division.
const divPrecision = 8

var (
	joinWeight     = decimal.NewFromInt(10000)
	referralWeight = decimal.NewFromInt(500)
	shareWeight    = decimal.NewFromInt(100)
	timeWeight     = decimal.NewFromInt(250)
)

// timeWindow is the campaign phase over which the time bonus decays to zero.
const timeWindow = 30 * 24 * time.Hour

// Inputs carries everything a score depends on.
type Inputs struct {
	// JoinIndex counts prior entries at join time; TotalAtJoin includes the
	// entry itself.
	JoinIndex   int64
	TotalAtJoin int64

	VerifiedReferrals int64
	VerifiedShares    int64

	// TimeScore is the frozen campaign-phase bonus rendered by TimeScoreAt,
	// or empty for none.
	TimeScore string
}

// Compute renders the priority score for in. The result has exactly Scale
// fractional digits.
func Compute(in Inputs) (string, error) {
	total := in.TotalAtJoin
	if total < 1 {
		total = 1
	}
	joinIdx := decimal.NewFromInt(in.JoinIndex)
	fraction := joinIdx.DivRound(decimal.NewFromInt(total), divPrecision)
	base := joinWeight.Mul(decimal.NewFromInt(1).Sub(fraction))
	base = clamp(base, decimal.Zero, joinWeight)

	score := base
	score = score.Add(referralWeight.Mul(clampCount(in.VerifiedReferrals)))
	score = score.Add(shareWeight.Mul(clampCount(in.VerifiedShares)))

	ts, err := Parse(in.TimeScore)
	if err != nil {
		return "", err
	}
	if ts.IsNegative() {
		ts = decimal.Zero
	}
	score = score.Add(ts)

	return score.StringFixed(Scale), nil
}

// TimeScoreAt renders the campaign-phase bonus for an entry joining at
// joinedAt on a project created at projectCreatedAt. The bonus decays
// linearly from timeWeight to zero across timeWindow. Elapsed time is
// truncated to whole minutes so the result does not depend on sub-minute
// clock jitter.
func TimeScoreAt(projectCreatedAt, joinedAt time.Time) string {
	elapsed := joinedAt.Sub(projectCreatedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	elapsedMin := decimal.NewFromInt(int64(elapsed / time.Minute))
	windowMin := decimal.NewFromInt(int64(timeWindow / time.Minute))
	factor := decimal.NewFromInt(1).Sub(elapsedMin.DivRound(windowMin, divPrecision))
	factor = clamp(factor, decimal.Zero, decimal.NewFromInt(1))
	return timeWeight.Mul(factor).Round(Scale).StringFixed(Scale)
}

// Compare orders two rendered scores. It returns -1, 0, or 1 as a is less
// than, equal to, or greater than b.
func Compare(a, b string) (int, error) {
	da, err := Parse(a)
	if err != nil {
		return 0, err
	}
	db, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return da.Cmp(db), nil
}

// Parse converts a rendered score back to a decimal. The empty string parses
// as zero so unscored entries sort last without a special case.
func Parse(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed score %q: %w", s, err)
	}
	return d, nil
}

func clampCount(n int64) decimal.Decimal {
	if n < 0 {
		n = 0
	}
	return decimal.NewFromInt(n)
}

func clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}
