package cmd

import "errors"

var (
	errNoBudget          = errors.New("a frame budget is required for headless renders")
	errMissingStreamFile = errors.New("missing stream file argument")
)
