// pkg/logging/logging.go - structured session logging for fusiondeploy.
//
// Each deployment run gets a timestamped session directory under the log
// root holding a plain deploy.log plus a JSON event stream for monitoring
// tools. Console output uses ANSI colors when the terminal supports them.

package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sys/windows"
	"gopkg.in/yaml.v3"

	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/config"
)

// LogLevel represents the severity of the log message.
type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the string representation of the LogLevel.
func (ll LogLevel) String() string {
	switch ll {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// LogEntry is one structured record in the JSON event stream.
type LogEntry struct {
	Time       int64                  `json:"time"`
	Timestamp  string                 `json:"timestamp"`
	Level      string                 `json:"level"`
	Message    string                 `json:"message"`
	Component  string                 `json:"component"`
	PID        int64                  `json:"pid"`
	Hostname   string                 `json:"hostname"`
	SessionID  string                 `json:"session_id"`
	DeployType string                 `json:"deploy_type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// SessionSummary is written as YAML when a session ends.
type SessionSummary struct {
	SessionID  string    `yaml:"session_id"`
	DeployType string    `yaml:"deploy_type"`
	Started    time.Time `yaml:"started"`
	Finished   time.Time `yaml:"finished"`
	ExitCode   int       `yaml:"exit_code"`
	Steps      int       `yaml:"steps"`
	Failures   int       `yaml:"failures"`
}

// Logger encapsulates session logging with timestamped directories.
type Logger struct {
	mu           sync.RWMutex
	logger       *log.Logger
	logLevel     LogLevel
	logFile      *os.File
	jsonFile     *os.File
	sessionStart time.Time
	logDir       string
	hostname     string
	sessionID    string
	deployType   string
	consoleOnly  bool
}

var (
	instance *Logger
	once     sync.Once
)

// retained session directories before the oldest get pruned
const keepSessions = 20

// Init initializes the singleton Logger based on the provided configuration.
// It must be called before any logging functions are used.
func Init(cfg *config.Configuration) error {
	var initErr error
	once.Do(func() {
		instance, initErr = newLogger(cfg)
	})
	return initErr
}

// SetDeployType tags every subsequent entry with the deployment type.
func SetDeployType(deployType string) {
	if instance == nil {
		return
	}
	instance.mu.Lock()
	instance.deployType = deployType
	instance.mu.Unlock()
}

func generateSessionID() string {
	return fmt.Sprintf("fusiondeploy-%d-%s", time.Now().Unix(),
		time.Now().Format("2006-01-02-150405"))
}

func newLogger(cfg *config.Configuration) (*Logger, error) {
	sessionStart := time.Now()

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	level := parseLevel(cfg.LogLevel)
	l := &Logger{
		logger:       log.New(os.Stdout, "", 0),
		logLevel:     level,
		sessionStart: sessionStart,
		hostname:     hostname,
		sessionID:    generateSessionID(),
		consoleOnly:  cfg.DisableLogging,
	}

	if cfg.DisableLogging {
		return l, nil
	}

	logDir := filepath.Join(cfg.LogPath, sessionStart.Format("2006-01-02-150405"))
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session log directory %s: %w", logDir, err)
	}
	l.logDir = logDir

	logFile, err := os.OpenFile(filepath.Join(logDir, "deploy.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open deploy.log: %w", err)
	}
	l.logFile = logFile

	jsonFile, err := os.OpenFile(filepath.Join(logDir, "events.json"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("failed to open events.json: %w", err)
	}
	l.jsonFile = jsonFile

	go l.pruneOldSessions(cfg.LogPath)

	return l, nil
}

func parseLevel(s string) LogLevel {
	switch s {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// pruneOldSessions removes the oldest session directories beyond the
// retention count. Runs in the background; failures are not fatal.
func (l *Logger) pruneOldSessions(baseDir string) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) <= keepSessions {
		return
	}

	// Directory names are timestamps, so a lexical sort is chronological.
	sort.Strings(dirs)
	for _, dir := range dirs[:len(dirs)-keepSessions] {
		os.RemoveAll(filepath.Join(baseDir, dir))
	}
}

// CloseLogger closes all log files if they're open.
func CloseLogger() {
	if instance == nil {
		return
	}
	instance.mu.Lock()
	defer instance.mu.Unlock()

	if instance.logFile != nil {
		if err := instance.logFile.Close(); err != nil {
			fmt.Printf("Failed to close deploy.log: %v\n", err)
		}
		instance.logFile = nil
	}
	if instance.jsonFile != nil {
		if err := instance.jsonFile.Close(); err != nil {
			fmt.Printf("Failed to close events.json: %v\n", err)
		}
		instance.jsonFile = nil
	}
}

// GetCurrentLogDir returns the active session directory, or empty when
// file logging is disabled.
func GetCurrentLogDir() string {
	if instance == nil {
		return ""
	}
	instance.mu.RLock()
	defer instance.mu.RUnlock()
	return instance.logDir
}

// EndSession writes the YAML session summary into the session directory.
func EndSession(summary SessionSummary) error {
	if instance == nil || instance.logDir == "" {
		return nil
	}
	instance.mu.RLock()
	summary.SessionID = instance.sessionID
	summary.DeployType = instance.deployType
	summary.Started = instance.sessionStart
	logDir := instance.logDir
	instance.mu.RUnlock()

	summary.Finished = time.Now()
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshaling session summary: %w", err)
	}
	return os.WriteFile(filepath.Join(logDir, "session.yaml"), data, 0644)
}

// logMessage is the core logging method that writes to all configured outputs.
func (l *Logger) logMessage(level LogLevel, message string, keyValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level > l.logLevel {
		return
	}

	properties := make(map[string]interface{})
	for i := 0; i < len(keyValues); i += 2 {
		if i+1 < len(keyValues) {
			key := fmt.Sprintf("%v", keyValues[i])
			properties[key] = keyValues[i+1]
		}
	}

	now := time.Now()
	entry := LogEntry{
		Time:       now.Unix(),
		Timestamp:  now.Format(time.RFC3339),
		Level:      level.String(),
		Message:    message,
		Component:  "fusiondeploy",
		PID:        int64(os.Getpid()),
		Hostname:   l.hostname,
		SessionID:  l.sessionID,
		DeployType: l.deployType,
		Properties: properties,
	}

	l.writeMainLog(entry, keyValues)
	l.writeJSONLog(entry)
}

// writeMainLog writes to deploy.log (and the console) in traditional format.
func (l *Logger) writeMainLog(entry LogEntry, keyValues []interface{}) {
	ts := time.Unix(entry.Time, 0).Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%s] %-5s %s", ts, entry.Level, entry.Message)

	for i := 0; i < len(keyValues); i += 2 {
		if i+1 < len(keyValues) {
			line += fmt.Sprintf(" %v=%v", keyValues[i], keyValues[i+1])
		}
	}

	l.logger.Println(line)
	if l.logFile != nil {
		fmt.Fprintln(l.logFile, line)
		l.logFile.Sync()
	}
}

// writeJSONLog appends one structured entry to events.json.
func (l *Logger) writeJSONLog(entry LogEntry) {
	if l.jsonFile == nil {
		return
	}
	if data, err := json.Marshal(entry); err == nil {
		l.jsonFile.WriteString(string(data) + "\n")
		l.jsonFile.Sync()
	}
}

// Info logs informational messages.
func Info(message string, keyValues ...interface{}) {
	if instance == nil {
		fmt.Printf("LOGGING NOT INITIALIZED: INFO %s %v\n", message, keyValues)
		return
	}
	instance.logMessage(LevelInfo, message, keyValues...)
}

// Debug logs debug messages.
func Debug(message string, keyValues ...interface{}) {
	if instance == nil {
		fmt.Printf("LOGGING NOT INITIALIZED: DEBUG %s %v\n", message, keyValues)
		return
	}
	instance.logMessage(LevelDebug, message, keyValues...)
}

// Warn logs warning messages.
func Warn(message string, keyValues ...interface{}) {
	if instance == nil {
		fmt.Printf("LOGGING NOT INITIALIZED: WARN %s %v\n", message, keyValues)
		return
	}
	instance.logMessage(LevelWarn, message, keyValues...)
}

// Error logs error messages.
func Error(message string, keyValues ...interface{}) {
	if instance == nil {
		fmt.Printf("LOGGING NOT INITIALIZED: ERROR %s %v\n", message, keyValues)
		return
	}
	instance.logMessage(LevelError, message, keyValues...)
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGreen  = "\033[32m"
)

// enableColors enables ANSI colors for the Windows console.
func enableColors() {
	if runtime.GOOS == "windows" {
		for _, stream := range []*os.File{os.Stdout, os.Stderr} {
			handle := windows.Handle(stream.Fd())
			var mode uint32
			if err := windows.GetConsoleMode(handle, &mode); err == nil {
				mode |= windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING
				_ = windows.SetConsoleMode(handle, mode)
			}
		}
	}
}

// New creates a standalone console Logger instance.
func New(verbose bool) *Logger {
	enableColors()

	output := os.Stdout
	if !verbose {
		output = os.Stderr
	}
	return &Logger{
		logger:      log.New(output, "", 0),
		logLevel:    LevelInfo,
		consoleOnly: true,
	}
}

// SetOutput changes the output destination.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.SetOutput(w)
}

// colorPrintf prints a colored message.
func (l *Logger) colorPrintf(color, format string, v ...interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ts := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, v...)
	l.logger.Printf("%s[%s] %s%s", color, ts, msg, colorReset)
}

// Printf prints a regular message.
func (l *Logger) Printf(format string, v ...interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ts := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, v...)
	l.logger.Printf("[%s] %s", ts, msg)
}

// Info prints an informational message.
func (l *Logger) Info(format string, v ...interface{}) {
	l.Printf(format, v...)
}

// Success prints a success message in green.
func (l *Logger) Success(format string, v ...interface{}) {
	l.colorPrintf(colorGreen, format, v...)
}

// Error prints an error message in red.
func (l *Logger) Error(format string, v ...interface{}) {
	l.colorPrintf(colorRed, format, v...)
}

// Warning prints a warning message in yellow.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.colorPrintf(colorYellow, format, v...)
}

// Debug prints a debug message in blue.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.colorPrintf(colorBlue, format, v...)
}

// Fatal prints an error message in red and exits.
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.Error(format, v...)
	os.Exit(1)
}
