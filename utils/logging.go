package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	logger "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"

	"github.com/ethpandaops/horizon-monitor/types"
)

// LogWriter holds the open log sinks created by InitLogger.
type LogWriter struct {
	file *os.File
}

// Dispose closes the log file if one was opened.
func (w *LogWriter) Dispose() {
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}
}

// InitLogger configures the standard logger from the logging config section.
// Console output goes to stderr so that reports on stdout stay machine readable.
func InitLogger(cfg *types.Config) (*LogWriter, logger.FieldLogger, error) {
	logWriter := &LogWriter{}
	log := logger.StandardLogger()
	log.SetOutput(io.Discard)

	outputLevel, err := parseLogLevel(cfg.Logging.OutputLevel, logger.InfoLevel)
	if err != nil {
		return logWriter, log, err
	}
	maxLevel := logger.PanicLevel

	if cfg.Logging.OutputStderr {
		log.AddHook(&writer.Hook{
			Writer:    os.Stderr,
			LogLevels: levelsUpTo(outputLevel),
		})
		maxLevel = outputLevel
	}

	if cfg.Logging.FilePath != "" {
		fileLevel, err := parseLogLevel(cfg.Logging.FileLevel, outputLevel)
		if err != nil {
			return logWriter, log, err
		}

		file, err := os.OpenFile(cfg.Logging.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return logWriter, log, fmt.Errorf("error opening log file %v: %w", cfg.Logging.FilePath, err)
		}
		logWriter.file = file

		log.AddHook(&writer.Hook{
			Writer:    file,
			LogLevels: levelsUpTo(fileLevel),
		})
		if fileLevel > maxLevel {
			maxLevel = fileLevel
		}
	}

	log.SetLevel(maxLevel)
	return logWriter, log, nil
}

func parseLogLevel(level string, fallback logger.Level) (logger.Level, error) {
	if level == "" {
		return fallback, nil
	}
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return fallback, fmt.Errorf("invalid log level %v: %w", level, err)
	}
	return lvl, nil
}

func levelsUpTo(max logger.Level) []logger.Level {
	levels := []logger.Level{}
	for _, lvl := range logger.AllLevels {
		if lvl <= max {
			levels = append(levels, lvl)
		}
	}
	return levels
}

// LogError logs an error with callstack info that skips callerSkip many levels with arbitrarily many additional infos.
// callerSkip equal to 0 gives you info directly where LogError is called.
func LogError(err error, errorMsg interface{}, callerSkip int, additionalInfos ...map[string]interface{}) {
	logErrorInfo(err, callerSkip, additionalInfos...).Error(errorMsg)
}

func logErrorInfo(err error, callerSkip int, additionalInfos ...map[string]interface{}) *logger.Entry {
	logFields := logger.NewEntry(logger.StandardLogger())
	if kind := types.ErrorKindOf(err); kind != types.ErrorKindUnknown {
		logFields = logFields.WithField("errKind", kind.String())
	}

	pc, fullFilePath, line, ok := runtime.Caller(callerSkip + 2)
	if ok {
		logFields = logFields.WithFields(logger.Fields{
			"_file":     filepath.Base(fullFilePath),
			"_function": runtime.FuncForPC(pc).Name(),
			"_line":     line,
		})
	} else {
		logFields = logFields.WithField("runtime", "Callstack cannot be read")
	}

	errColl := []string{}
	for {
		errColl = append(errColl, fmt.Sprint(err))
		nextErr := errors.Unwrap(err)
		if nextErr != nil {
			err = nextErr
		} else {
			break
		}
	}

	errMarkSign := "~"
	for idx := 0; idx < (len(errColl) - 1); idx++ {
		errInfoText := fmt.Sprintf("%serrInfo_%v%s", errMarkSign, idx, errMarkSign)
		nextErrInfoText := fmt.Sprintf("%serrInfo_%v%s", errMarkSign, idx+1, errMarkSign)
		if idx == (len(errColl) - 2) {
			nextErrInfoText = fmt.Sprintf("%serror%s", errMarkSign, errMarkSign)
		}

		// Replace the last occurrence of the next error in the current error
		lastIdx := strings.LastIndex(errColl[idx], errColl[idx+1])
		if lastIdx != -1 {
			errColl[idx] = errColl[idx][:lastIdx] + nextErrInfoText + errColl[idx][lastIdx+len(errColl[idx+1]):]
		}

		errInfoText = strings.ReplaceAll(errInfoText, errMarkSign, "")
		logFields = logFields.WithField(errInfoText, errColl[idx])
	}

	if err != nil {
		logFields = logFields.WithField("errType", fmt.Sprintf("%T", err)).WithError(err)
	}

	for _, infoMap := range additionalInfos {
		for name, info := range infoMap {
			logFields = logFields.WithField(name, info)
		}
	}

	return logFields
}
