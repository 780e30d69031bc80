package entity

type ConnectionStatus string

const (
	ConnectionIdle       ConnectionStatus = "idle"
	ConnectionConnecting ConnectionStatus = "connecting"
	ConnectionConnected  ConnectionStatus = "connected"
	// ConnectionDegraded is the soft signal: reconnects keep failing but the
	// channel is still trying.
	ConnectionDegraded ConnectionStatus = "degraded"
	// ConnectionFailed means retries are exhausted and the channel stopped.
	ConnectionFailed ConnectionStatus = "failed"
	ConnectionClosed ConnectionStatus = "closed"
)
