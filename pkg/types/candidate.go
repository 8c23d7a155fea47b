package types

// Candidate is a fully specified trade proposal awaiting risk approval.
// Built by the engine from a constructed spread and a sizing decision;
// immutable once submitted to the gate.
type Candidate struct {
	Spread    *SpreadDefinition `json:"spread"`
	Contracts int               `json:"contracts"`

	// EntryValue is the credit received or debit paid per contract-set,
	// in option points. Always non-negative.
	EntryValue float64 `json:"entryValue"`
	EntrySpot  float64 `json:"entrySpot"`
	EntryVol   float64 `json:"entryVol"`

	ProfitTarget float64 `json:"profitTarget"` // dollars, whole position
	StopLoss     float64 `json:"stopLoss"`     // dollars, whole position
}

// MaxRisk returns the total dollar risk of the candidate.
func (c *Candidate) MaxRisk() float64 {
	return c.Spread.MaxLoss * float64(c.Contracts)
}

// MarginRequired returns the cash the position ties up. For defined-risk
// spreads this equals the max loss.
func (c *Candidate) MarginRequired() float64 {
	return c.MaxRisk()
}
