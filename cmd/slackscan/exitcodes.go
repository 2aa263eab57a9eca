package main

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, report write failure)
	ExitConfigError = 2 // Missing SLACK_TOKEN or invalid configuration
	ExitFetchError  = 3 // Channel enumeration stopped early; partial report printed
)
