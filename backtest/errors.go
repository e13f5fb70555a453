package backtest

import "errors"

var (
	// ErrInvalidParameters is returned before any simulation starts.
	ErrInvalidParameters = errors.New("invalid backtest parameters")
	// ErrMalformedSeries marks a price series the engine refuses to simulate.
	ErrMalformedSeries = errors.New("malformed price series")
)
