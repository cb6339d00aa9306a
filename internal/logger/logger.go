package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	isDevelopment = false // if running in debug mode

	logFile io.Writer = nil

	level = zerolog.InfoLevel

	mu sync.RWMutex

	once sync.Once

	root zerolog.Logger
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

// GetLogger returns a logger tagged with the given service name. The root
// writer is built on first use, so SetDevelopment, SetLogFile and SetLevel
// must be called before the first GetLogger to take effect.
func GetLogger(serviceName string) zerolog.Logger {
	once.Do(build)

	mu.RLock()
	defer mu.RUnlock()
	return root.With().Str("service", serviceName).Logger()
}

func build() {
	mu.Lock()
	defer mu.Unlock()

	if !isDevelopment {
		var out io.Writer = os.Stderr
		if logFile != nil {
			out = zerolog.MultiLevelWriter(os.Stderr, logFile)
		}
		root = zerolog.New(out).Level(level).With().Timestamp().Logger()
		return
	}

	// Set up zerolog for development mode (human-readable logs)
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339,
		FormatLevel: func(i any) string {
			return strings.ToUpper(fmt.Sprintf("[%5s]", i))
		},
		FormatMessage: func(i any) string {
			return fmt.Sprintf("| %s |", i)
		},
		FormatCaller: func(i any) string {
			return filepath.Base(fmt.Sprintf("%s", i))
		},
		PartsExclude: []string{
			zerolog.TimestampFieldName,
		}}

	writers := []io.Writer{consoleWriter}
	if logFile != nil {
		writers = append(writers, logFile)
	}
	multiDev := zerolog.MultiLevelWriter(writers...)
	root = zerolog.New(multiDev).Level(level).With().Timestamp().Caller().Logger()
}

func SetDevelopment(value bool) {
	mu.Lock()
	defer mu.Unlock()
	isDevelopment = value
}

func SetLogFile(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logFile = w
}

// SetLevel parses lvl ("trace", "debug", "info", ...) and applies it to the
// root logger. An empty string keeps the current level.
func SetLevel(lvl string) error {
	if lvl == "" {
		return nil
	}
	parsed, err := zerolog.ParseLevel(lvl)
	if err != nil {
		return fmt.Errorf("parsing log level %q: %w", lvl, err)
	}
	mu.Lock()
	defer mu.Unlock()
	level = parsed
	return nil
}
