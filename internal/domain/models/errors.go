package models

import "errors"

var (
	// ErrLoad is returned when an input table is missing, unreadable or not delimited data.
	ErrLoad = errors.New("load error")

	// ErrNoFeatures signals that none of the candidate feature columns are present.
	ErrNoFeatures = errors.New("no features available")
)
