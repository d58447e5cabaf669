package circulation

import (
	"math"
	"time"
)

// Policy holds the circulation rules that are configurable per deployment.
type Policy struct {
	LoanPeriod  time.Duration
	HoldPeriod  time.Duration
	FinePerDay  float64
	MaxRenewals int
}

func DefaultPolicy() Policy {
	return Policy{
		LoanPeriod:  14 * 24 * time.Hour,
		HoldPeriod:  3 * 24 * time.Hour,
		FinePerDay:  0.50,
		MaxRenewals: 2,
	}
}

// Fine charges perDay for every started day past due, rounded to cents.
func Fine(due, returned time.Time, perDay float64) float64 {
	if !returned.After(due) {
		return 0
	}
	days := math.Ceil(returned.Sub(due).Hours() / 24)
	return math.Round(days*perDay*100) / 100
}
