package memory

import "log"

type LogLevel int

const (
	LogLevel_TRACE LogLevel = iota
	LogLevel_DEBUG
	LogLevel_INFO
	LogLevel_WARN
	LogLevel_ERROR
)

type Logger struct {
	minLevel LogLevel
	indent   int
}

func NewLogger(minLevel LogLevel) *Logger {
	m := new(Logger)
	m.minLevel = minLevel
	m.indent = 0
	return m
}

func (a *Logger) Indent() {
	a.indent = a.indent + 1
}

func (a *Logger) Dedent() {
	a.indent = a.indent - 1
}

func (a *Logger) spaces() string {
	r := ""
	for i := 0; i < a.indent; i++ {
		r += "  "
	}
	return r
}

func (a *Logger) IsTraceEnabled() bool {
	return a.minLevel <= LogLevel_TRACE
}

func (a *Logger) IsDebugEnabled() bool {
	return a.minLevel <= LogLevel_DEBUG
}

func (a *Logger) Trace(msg string, v ...interface{}) {
	if a.minLevel > LogLevel_TRACE {
		return
	}
	log.Printf("[TRACE] "+a.spaces()+msg, v...)
}

func (a *Logger) Debug(msg string, v ...interface{}) {
	if a.minLevel > LogLevel_DEBUG {
		return
	}
	log.Printf("[DEBUG] "+a.spaces()+msg, v...)
}

func (a *Logger) Info(msg string, v ...interface{}) {
	if a.minLevel > LogLevel_INFO {
		return
	}
	log.Printf("[INFO] "+a.spaces()+msg, v...)
}

func (a *Logger) Warn(msg string, v ...interface{}) {
	if a.minLevel > LogLevel_WARN {
		return
	}
	log.Printf("[WARN] "+a.spaces()+msg, v...)
}

func (a *Logger) Error(msg string, v ...interface{}) {
	log.Printf("[ERROR] "+a.spaces()+msg, v...)
}
