// Package models provides domain models for the backtesting engine.
package models

import (
	"strings"
	"time"
)

// InstrumentKind represents the kind of derivative contract.
type InstrumentKind string

const (
	InstrumentOption InstrumentKind = "OPTIDX"
	InstrumentFuture InstrumentKind = "FUTIDX"
)

// ParseInstrumentKind normalizes the exchange spellings of an instrument kind.
func ParseInstrumentKind(s string) (InstrumentKind, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OPTIDX", "OPTION", "OPT", "OPTSTK":
		return InstrumentOption, true
	case "FUTIDX", "FUTURE", "FUT", "FUTSTK":
		return InstrumentFuture, true
	}
	return "", false
}

// OptionSide represents the side of an option contract.
type OptionSide string

const (
	SideCall OptionSide = "CE"
	SidePut  OptionSide = "PE"
	SideNone OptionSide = ""
)

// ParseOptionSide normalizes an option side. Futures rows carry "XX" or
// an empty value in exchange files.
func ParseOptionSide(s string) (OptionSide, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CE", "CALL", "C":
		return SideCall, true
	case "PE", "PUT", "P":
		return SidePut, true
	case "", "XX", "NONE", "FUT":
		return SideNone, true
	}
	return "", false
}

// ContractRecord is one end-of-day row of the derivatives archive.
type ContractRecord struct {
	Date         time.Time      `json:"date"`
	Symbol       string         `json:"symbol"`
	Instrument   InstrumentKind `json:"instrument"`
	Strike       float64        `json:"strike"`
	Side         OptionSide     `json:"side"`
	Expiry       time.Time      `json:"expiry"`
	Open         float64        `json:"open"`
	High         float64        `json:"high"`
	Low          float64        `json:"low"`
	Close        float64        `json:"close"`
	Turnover     float64        `json:"turnover"`
	OpenInterest float64        `json:"open_interest"`
}

// SpotRecord is the closing level of an index on a trading date.
type SpotRecord struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"`
}

// ExpiryWindow represents the contract cycle a strategy trades.
type ExpiryWindow string

const (
	WindowWeekly   ExpiryWindow = "weekly"
	WindowWeeklyT1 ExpiryWindow = "weekly_t1"
	WindowMonthly  ExpiryWindow = "monthly"
)

// Valid reports whether the window is a known one.
func (w ExpiryWindow) Valid() bool {
	switch w {
	case WindowWeekly, WindowWeeklyT1, WindowMonthly:
		return true
	}
	return false
}

// ExpiryMarker is one row of the expiry reference table. For every trading
// date it names the previous, current and next weekly expiry and the
// current monthly expiry. Zero values mean the marker is absent.
type ExpiryMarker struct {
	Symbol   string    `json:"symbol"`
	Date     time.Time `json:"date"`
	Previous time.Time `json:"previous"`
	Current  time.Time `json:"current"`
	Next     time.Time `json:"next"`
	Monthly  time.Time `json:"monthly"`
}

// MarketSpec holds per-symbol contract specifications.
type MarketSpec struct {
	LotSize  int     `json:"lot_size" mapstructure:"lot_size"`
	TickSize float64 `json:"tick_size" mapstructure:"tick_size"`
}
