// Package errors provides structured, coded errors for the rxbind CLI and
// servers.
//
// Library packages return plain sentinel errors. At the edges (command
// line, configuration loading, live session replies) they are classified
// into an RxError carrying a stable code, a category and a hint:
//
//	err := errors.New("R030").
//	    WithDetail("throttle_ms must be positive, got -5").
//	    WithSuggestion("Set throttle_ms to 50 or remove it to use the default")
//
//	fmt.Print(err.Format())
//	// ERROR R030: Invalid configuration
//	//
//	//   throttle_ms must be positive, got -5
//	//
//	//   Hint: Set throttle_ms to 50 or remove it to use the default
//
// # Error Categories
//
//   - mutation: rejected list edits
//   - command: generator command failures
//   - dispatch: render and dispatch failures
//   - config: configuration file problems
//   - cli: command line usage problems
package errors
