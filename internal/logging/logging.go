package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the shared application logger. All long-running components
// (scheduler, transport, api server) receive this instance via construction.
func New() *logrus.Logger {
	logg := logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logrus.InfoLevel)
	logg.SetOutput(os.Stdout)
	return logg
}
