// Package logger wires the per-subsystem loggers of the consensus core to a
// shared logs.Backend, with log-rotated file output alongside stdout.
// Grounded on the teacher's logger/logger.go: a package-global backend, one
// logs.Logger per subsystem tag, and InitLogRotators/SetLogLevel(s) entry
// points.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
	"github.com/tos-network/tos/logs"
)

type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	if initiated {
		os.Stdout.Write(p)
		LogRotator.Write(p)
	}
	return len(p), nil
}

type errLogWriter struct{}

func (errLogWriter) Write(p []byte) (int, error) {
	if initiated {
		os.Stdout.Write(p)
		ErrLogRotator.Write(p)
	}
	return len(p), nil
}

var (
	backendLog = logs.NewBackend([]*logs.BackendWriter{
		logs.NewAllLevelsBackendWriter(logWriter{}),
		logs.NewErrorBackendWriter(errLogWriter{}),
	})

	// LogRotator is the all-levels log output. It must be closed on shutdown.
	LogRotator *rotator.Rotator
	// ErrLogRotator is the errors-and-above log output.
	ErrLogRotator *rotator.Rotator

	ghstLog = backendLog.Logger("GHST")
	daaLog  = backendLog.Logger("DAA ")
	exeqLog = backendLog.Logger("EXEQ")
	storLog = backendLog.Logger("STOR")
	txvlLog = backendLog.Logger("TXVL")
	mpolLog = backendLog.Logger("MPOL")
	cnsnLog = backendLog.Logger("CNSN")
	nodeLog = backendLog.Logger("NODE")

	initiated = false
)

// SubsystemTags enumerates the consensus core's logging subsystems.
var SubsystemTags = struct {
	GHST, // GHOSTDAG engine
	DAA, // difficulty adjustment engine
	EXEQ, // parallel execution engine
	STOR, // chain state / storage
	TXVL, // transaction validator
	MPOL, // mempool / nonce checker
	CNSN, // consensus facade / block processor
	NODE string // daemon bootstrap / shutdown
}{
	GHST: "GHST",
	DAA:  "DAA ",
	EXEQ: "EXEQ",
	STOR: "STOR",
	TXVL: "TXVL",
	MPOL: "MPOL",
	CNSN: "CNSN",
	NODE: "NODE",
}

var subsystemLoggers = map[string]logs.Logger{
	SubsystemTags.GHST: ghstLog,
	SubsystemTags.DAA:  daaLog,
	SubsystemTags.EXEQ: exeqLog,
	SubsystemTags.STOR: storLog,
	SubsystemTags.TXVL: txvlLog,
	SubsystemTags.MPOL: mpolLog,
	SubsystemTags.CNSN: cnsnLog,
	SubsystemTags.NODE: nodeLog,
}

// Get returns the logger registered for the given subsystem tag.
func Get(subsystemID string) (logs.Logger, error) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return nil, fmt.Errorf("no logger registered for subsystem %q", subsystemID)
	}
	return logger, nil
}

// InitLogRotators initializes file-rotated log output. It must be called
// before package-global log rotator variables are used.
func InitLogRotators(logFile, errLogFile string) {
	initiated = true
	LogRotator = initLogRotator(logFile)
	ErrLogRotator = initLogRotator(errLogFile)
}

func initLogRotator(logFile string) *rotator.Rotator {
	logDir, _ := filepath.Split(logFile)
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %s\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %s\n", err)
		os.Exit(1)
	}
	return r
}

// SetLogLevel sets the logging level for the given subsystem. Invalid
// subsystems are ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	level, _ := logs.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for every subsystem logger.
func SetLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}
