// Package events delivers the lifecycle event stream to external
// logging and reporting collaborators.
//
// The engine emits OPEN, MONITOR and CLOSE events plus a final summary;
// sinks are injected into the driver, never reached through globals.
package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/raftroch1/0dte-sub001/pkg/types"
)

// Sink receives lifecycle events. Implementations must tolerate being
// called once per position per checkpoint.
type Sink interface {
	PositionOpened(pos *types.Position, account *types.AccountState)
	PositionMonitored(pos *types.Position, at time.Time)
	PositionClosed(pos *types.Position, account *types.AccountState)
	CandidateRejected(reason string, at time.Time)
	RunCompleted(summary RunSummary)
}

// RunSummary is the final account picture emitted at run end.
type RunSummary struct {
	StartBalance decimal.Decimal `json:"startBalance"`
	EndBalance   decimal.Decimal `json:"endBalance"`
	TotalPnL     decimal.Decimal `json:"totalPnl"`
	DaysTraded   int             `json:"daysTraded"`
	DaysSkipped  int             `json:"daysSkipped"`
	Opened       int             `json:"opened"`
	Closed       int             `json:"closed"`
}

// Nop is a Sink that drops everything. Used in tests.
type Nop struct{}

func (Nop) PositionOpened(*types.Position, *types.AccountState) {}
func (Nop) PositionMonitored(*types.Position, time.Time)        {}
func (Nop) PositionClosed(*types.Position, *types.AccountState) {}
func (Nop) CandidateRejected(string, time.Time)                 {}
func (Nop) RunCompleted(RunSummary)                             {}

// Multi fans events out to several sinks in order.
type Multi []Sink

func (m Multi) PositionOpened(p *types.Position, a *types.AccountState) {
	for _, s := range m {
		s.PositionOpened(p, a)
	}
}

func (m Multi) PositionMonitored(p *types.Position, at time.Time) {
	for _, s := range m {
		s.PositionMonitored(p, at)
	}
}

func (m Multi) PositionClosed(p *types.Position, a *types.AccountState) {
	for _, s := range m {
		s.PositionClosed(p, a)
	}
}

func (m Multi) CandidateRejected(reason string, at time.Time) {
	for _, s := range m {
		s.CandidateRejected(reason, at)
	}
}

func (m Multi) RunCompleted(summary RunSummary) {
	for _, s := range m {
		s.RunCompleted(summary)
	}
}
