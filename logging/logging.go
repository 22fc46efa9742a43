package logging

import (
	"log"
	"sync/atomic"
)

const (
	// TraceLevel indicates a log message's level of criticality
	TraceLevel = iota
	// DebugLevel indicates a log message's level of criticality
	DebugLevel
	// InfoLevel indicates a log message's level of criticality
	InfoLevel
	// WarnLevel indicates a log message's level of criticality
	WarnLevel
	// ErrorLevel indicates a log message's level of criticality
	ErrorLevel
	// FatalLevel indicates a log message's level of criticality
	FatalLevel
)

var threshold int32 = InfoLevel

// LogLevelToString translates a log level enum to a string representation
func LogLevelToString(level int) string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "TRACE"
	}
}

// SetLevel changes the minimum level of messages written by Logf
func SetLevel(level int) {
	atomic.StoreInt32(&threshold, int32(level))
}

// Enabled returns true iff messages at the given level are currently written
func Enabled(level int) bool {
	return int32(level) >= atomic.LoadInt32(&threshold)
}

// Logf writes a message through the standard logger if its level meets the current threshold.
// FatalLevel messages always exit, matching log.Fatalf.
func Logf(level int, format string, args ...interface{}) {
	if level >= FatalLevel {
		log.Fatalf("[FATAL] "+format, args...)
	}
	if !Enabled(level) {
		return
	}
	log.Printf("["+LogLevelToString(level)+"] "+format, args...)
}
