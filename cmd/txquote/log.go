package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btclog"
	"github.com/btcsuite/txengine/chain"
	"github.com/btcsuite/txengine/prefstore"
	"github.com/btcsuite/txengine/txengine"
	"github.com/btcsuite/txengine/txengine/coinselect"
	"github.com/jrick/logrotate/rotator"
)

// logDirPerm is the mode of a created log directory.
const logDirPerm = 0o700

// logWriter writes to stderr and the log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	_, _ = os.Stderr.Write(p)
	if logRotator != nil {
		_, _ = logRotator.Write(p)
	}

	return len(p), nil
}

var (
	// backendLog is the logging backend used to create all subsystem
	// loggers.
	backendLog = btclog.NewBackend(logWriter{})

	// logRotator is nil until initLogRotator is called.
	logRotator *rotator.Rotator

	mainLog = backendLog.Logger("TXQT")
	txenLog = backendLog.Logger("TXEN")
	cselLog = backendLog.Logger("CSEL")
	chaiLog = backendLog.Logger("CHAI")
	prefLog = backendLog.Logger("PREF")
	rpccLog = backendLog.Logger("RPCC")
)

func init() {
	txengine.UseLogger(txenLog)
	coinselect.UseLogger(cselLog)
	chain.UseLogger(chaiLog)
	prefstore.UseLogger(prefLog)
	rpcclient.UseLogger(rpccLog)
}

// subsystemLoggers maps each subsystem tag to its logger.
var subsystemLoggers = map[string]btclog.Logger{
	"TXQT": mainLog,
	"TXEN": txenLog,
	"CSEL": cselLog,
	"CHAI": chaiLog,
	"PREF": prefLog,
	"RPCC": rpccLog,
}

// initLogRotator creates the log directory and rotates logFile once it
// reaches maxSizeMB.
func initLogRotator(logFile string, maxSizeMB, maxFiles int) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, logDirPerm); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	r, err := rotator.New(logFile, int64(maxSizeMB*1024), false, maxFiles)
	if err != nil {
		return fmt.Errorf("create file rotator: %w", err)
	}

	logRotator = r

	return nil
}

// closeLogRotator flushes and closes the log file.
func closeLogRotator() {
	if logRotator != nil {
		_ = logRotator.Close()
	}
}

// supportedSubsystems returns the sorted subsystem tags.
func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for tag := range subsystemLoggers {
		subsystems = append(subsystems, tag)
	}

	sort.Strings(subsystems)

	return subsystems
}

// setLogLevels sets the level of every subsystem.
func setLogLevels(level btclog.Level) {
	for _, logger := range subsystemLoggers {
		logger.SetLevel(level)
	}
}

// parseAndSetDebugLevels applies either a global level or a comma separated
// list of <subsystem>=<level> pairs.
func parseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, "=") {
		level, ok := btclog.LevelFromString(debugLevel)
		if !ok {
			return fmt.Errorf("invalid debug level %q", debugLevel)
		}

		setLogLevels(level)

		return nil
	}

	for _, pair := range strings.Split(debugLevel, ",") {
		fields := strings.Split(pair, "=")
		if len(fields) != 2 {
			return fmt.Errorf("invalid debug level pair %q, want "+
				"<subsystem>=<level>", pair)
		}

		logger, ok := subsystemLoggers[fields[0]]
		if !ok {
			return fmt.Errorf("unknown subsystem %q, supported "+
				"subsystems %v", fields[0],
				supportedSubsystems())
		}

		level, ok := btclog.LevelFromString(fields[1])
		if !ok {
			return fmt.Errorf("invalid debug level %q for %s",
				fields[1], fields[0])
		}

		logger.SetLevel(level)
	}

	return nil
}
