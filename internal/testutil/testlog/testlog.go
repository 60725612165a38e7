package testlog

import (
	"testing"

	"github.com/danmuck/streamwire/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Start configures test logging and returns a logger tagged with the test
// name for handing to the code under test.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	logger := log.With().Str("test", t.Name()).Logger()
	logger.Info().Msg("start")
	return logger
}
