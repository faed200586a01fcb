package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{" _                _  __ _               ", "#34d399"},
	{"| | ___  __ _  __| |/ _| | _____      __", "#2dd4bf"},
	{"| |/ _ \\/ _` |/ _` | |_| |/ _ \\ \\ /\\ / /", "#22d3ee"},
	{"| |  __/ (_| | (_| |  _| | (_) \\ V  V / ", "#38bdf8"},
	{"|_|\\___|\\__,_|\\__,_|_| |_|\\___/ \\_/\\_/  ", "#60a5fa"},
}

// PrintBanner writes the leadflow banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.EnvColorProfile()
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if v := strings.TrimSpace(version); v != "" {
		fmt.Fprintln(w, termenv.String("  Pixl.ae assistant v"+v).Faint())
	}
	fmt.Fprintln(w)
}
