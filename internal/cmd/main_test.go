package cmd

import (
	"os"
	"testing"

	"github.com/muesli/termenv"

	"github.com/dotcommander/cosmos-agent/internal/present"
)

func TestMain(m *testing.M) {
	present.StdoutRenderer().SetColorProfile(termenv.Ascii)
	present.StderrRenderer().SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}
