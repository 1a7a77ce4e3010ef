package main

import "time"

// GlobalFlags holds minimal global/persistent flags for CLI commands
type GlobalFlags struct {
	ConfigPath string
}

// RunFlags holds flags for the run command. Zero values keep the config file value.
type RunFlags struct {
	Spawn         bool
	Debug         bool
	Shell         bool
	Capture       bool
	Port          int
	APIListen     string
	MetricsListen string
	Interval      time.Duration
	Iterations    int
}

// InspectFlags holds API connection flags shared by inspect subcommands
type InspectFlags struct {
	APIUrl     string
	APITimeout time.Duration
	Count      int
	Type       string
}
