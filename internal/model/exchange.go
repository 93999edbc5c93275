package model

import "strings"

// Exchange names a venue supported by the market-data source.
type Exchange string

// Supported exchanges.
const (
	Binance        Exchange = "BINANCE"
	BinanceFutures Exchange = "BINANCE_FUTURES"
	Ascendex       Exchange = "ASCENDEX"
	Kucoin         Exchange = "KUCOIN"
	GateIO         Exchange = "GATEIO"
	Serum          Exchange = "SERUM"
	Coinbase       Exchange = "COINBASE"
	Huobi          Exchange = "HUOBI"
	HuobiSwap      Exchange = "HUOBI_SWAP"
	OKX            Exchange = "OKX"
	DYDX           Exchange = "DYDX"
	Bybit          Exchange = "BYBIT"
	Coinmate       Exchange = "COINMATE"
)

var knownExchanges = map[Exchange]bool{
	Binance: true, BinanceFutures: true, Ascendex: true, Kucoin: true,
	GateIO: true, Serum: true, Coinbase: true, Huobi: true, HuobiSwap: true,
	OKX: true, DYDX: true, Bybit: true, Coinmate: true,
}

// ParseExchange normalizes s and reports whether it names a supported exchange.
func ParseExchange(s string) (Exchange, bool) {
	e := Exchange(strings.ToUpper(strings.TrimSpace(s)))
	return e, knownExchanges[e]
}
