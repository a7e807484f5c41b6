package supervisor

import (
	"os"
	"testing"

	"github.com/andresfernandez89/livestore/internal/logging"
)

func TestMain(m *testing.M) {
	logging.InitLogger("info", "text")
	os.Exit(m.Run())
}
