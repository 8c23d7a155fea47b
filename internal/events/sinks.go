package events

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/raftroch1/0dte-sub001/pkg/types"
)

// ZapSink logs lifecycle events through the injected logger.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a logging sink.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

func (s *ZapSink) PositionOpened(pos *types.Position, account *types.AccountState) {
	s.logger.Info("position opened",
		zap.String("id", pos.ID),
		zap.String("family", string(pos.Spread.Family)),
		zap.Int("contracts", pos.Contracts),
		zap.Float64("entryValue", pos.EntryValue),
		zap.Float64("maxRisk", pos.MaxRisk()),
		zap.Float64("notional", pos.Notional()),
		zap.String("balance", account.Balance.StringFixed(2)),
	)
}

func (s *ZapSink) PositionMonitored(pos *types.Position, at time.Time) {
	s.logger.Debug("position monitored",
		zap.String("id", pos.ID),
		zap.Time("at", at),
		zap.Float64("unrealizedPnl", pos.UnrealizedPnL),
	)
}

func (s *ZapSink) PositionClosed(pos *types.Position, account *types.AccountState) {
	s.logger.Info("position closed",
		zap.String("id", pos.ID),
		zap.String("reason", string(pos.ExitReason)),
		zap.Float64("realizedPnl", pos.RealizedPnL),
		zap.String("balance", account.Balance.StringFixed(2)),
		zap.String("dailyPnl", account.DailyPnL.StringFixed(2)),
	)
}

func (s *ZapSink) CandidateRejected(reason string, at time.Time) {
	s.logger.Info("candidate rejected",
		zap.Time("at", at),
		zap.String("reason", reason),
	)
}

func (s *ZapSink) RunCompleted(summary RunSummary) {
	s.logger.Info("run completed",
		zap.String("startBalance", summary.StartBalance.StringFixed(2)),
		zap.String("endBalance", summary.EndBalance.StringFixed(2)),
		zap.String("totalPnl", summary.TotalPnL.StringFixed(2)),
		zap.Int("daysTraded", summary.DaysTraded),
		zap.Int("daysSkipped", summary.DaysSkipped),
		zap.Int("opened", summary.Opened),
		zap.Int("closed", summary.Closed),
	)
}

// JSONLSink writes one JSON object per event, suitable for downstream
// report tooling.
type JSONLSink struct {
	enc *json.Encoder
}

// NewJSONLSink creates a JSON-lines sink over w.
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{enc: json.NewEncoder(w)}
}

type jsonEvent struct {
	Event     string          `json:"event"`
	At        time.Time       `json:"at,omitempty"`
	Position  *types.Position `json:"position,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Balance   string          `json:"balance,omitempty"`
	Summary   *RunSummary     `json:"summary,omitempty"`
}

func (s *JSONLSink) PositionOpened(pos *types.Position, account *types.AccountState) {
	_ = s.enc.Encode(jsonEvent{Event: "OPEN", At: pos.OpenedAt, Position: pos,
		Balance: account.Balance.StringFixed(2)})
}

func (s *JSONLSink) PositionMonitored(pos *types.Position, at time.Time) {
	_ = s.enc.Encode(jsonEvent{Event: "MONITOR", At: at, Position: pos})
}

func (s *JSONLSink) PositionClosed(pos *types.Position, account *types.AccountState) {
	_ = s.enc.Encode(jsonEvent{Event: "CLOSE", At: pos.ExitedAt, Position: pos,
		Reason: string(pos.ExitReason), Balance: account.Balance.StringFixed(2)})
}

func (s *JSONLSink) CandidateRejected(reason string, at time.Time) {
	_ = s.enc.Encode(jsonEvent{Event: "REJECT", At: at, Reason: reason})
}

func (s *JSONLSink) RunCompleted(summary RunSummary) {
	_ = s.enc.Encode(jsonEvent{Event: "SUMMARY", Summary: &summary})
}

// CSVTradeLog writes one row per closed position: the flat trade log
// human reporting reads.
type CSVTradeLog struct {
	w      *csv.Writer
	header bool
}

// NewCSVTradeLog creates a CSV sink over w.
func NewCSVTradeLog(w io.Writer) *CSVTradeLog {
	return &CSVTradeLog{w: csv.NewWriter(w)}
}

func (s *CSVTradeLog) PositionOpened(*types.Position, *types.AccountState) {}
func (s *CSVTradeLog) PositionMonitored(*types.Position, time.Time)        {}
func (s *CSVTradeLog) CandidateRejected(string, time.Time)                 {}

func (s *CSVTradeLog) PositionClosed(pos *types.Position, account *types.AccountState) {
	if !s.header {
		_ = s.w.Write([]string{
			"id", "family", "opened_at", "exited_at", "contracts",
			"entry_value", "realized_pnl", "exit_reason", "balance_after",
		})
		s.header = true
	}
	_ = s.w.Write([]string{
		pos.ID,
		string(pos.Spread.Family),
		pos.OpenedAt.Format(time.RFC3339),
		pos.ExitedAt.Format(time.RFC3339),
		fmt.Sprintf("%d", pos.Contracts),
		fmt.Sprintf("%.2f", pos.EntryValue),
		fmt.Sprintf("%.2f", pos.RealizedPnL),
		string(pos.ExitReason),
		account.Balance.StringFixed(2),
	})
}

func (s *CSVTradeLog) RunCompleted(RunSummary) {
	s.w.Flush()
}
