package client

import "time"

// LogEntry mirrors a captured log entry.
type LogEntry struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Memory mirrors the memory block of a status snapshot (bytes).
type Memory struct {
	RSS uint64 `json:"rss"`
	VMS uint64 `json:"vms"`
}

// Status mirrors the instance status snapshot.
type Status struct {
	PID         int            `json:"pid"`
	Uptime      float64        `json:"uptime"`
	StartTime   float64        `json:"startTime"`
	Memory      Memory         `json:"memory"`
	CustomState map[string]any `json:"customState"`
	Mode        string         `json:"mode"`
	MonitorPort int            `json:"monitorPort,omitempty"`
	LogCount    int            `json:"logCount"`
}

// LogsRequest selects entries for GetLogs. Zero values mean all entries of every kind.
type LogsRequest struct {
	Count int
	Type  string
}

// StateValue is the body of a single-key state lookup.
type StateValue struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// ChatRequest is the body sent to the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is a successful chat answer.
type ChatResponse struct {
	Response string `json:"response"`
}

// ErrorResponse represents an error response from the API
type ErrorResponse struct {
	Error string `json:"error"`
}
