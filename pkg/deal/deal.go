// Package deal holds the pure deal-qualification rule.
package deal

// Thresholds configures qualification. Percent applies to every source;
// Absolute is a per-source floor in that source's currency (each marketplace
// trades in exactly one currency).
type Thresholds struct {
	Percent  float64
	Absolute map[string]int
}

// Result of evaluating one listing price against its segment baseline.
type Result struct {
	Good           bool
	SavingsAmount  float64
	SavingsPercent float64
}

// Evaluate decides whether price qualifies as a deal against median.
// savings = median - price; a listing qualifies iff savings > 0 and either
// the percent rule or the per-source absolute rule holds. A zero or absent
// median never qualifies: the first listing of a segment seeds the sample
// instead of firing a noisy alert.
func Evaluate(price int, median float64, source string, t Thresholds) Result {
	if median <= 0 {
		return Result{}
	}

	savings := median - float64(price)
	percent := savings / median * 100

	res := Result{SavingsAmount: savings, SavingsPercent: percent}
	if savings <= 0 {
		return res
	}

	abs := float64(t.Absolute[source])
	res.Good = percent >= t.Percent || (abs > 0 && savings >= abs)
	return res
}
