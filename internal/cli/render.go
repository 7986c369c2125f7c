package cli

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
)

// renderSnapshot prints one line per frame plus a session summary.
func renderSnapshot(w io.Writer, snap arbor.SessionSnapshot) {
	if w == nil {
		return
	}
	p := termenv.ColorProfile()
	failed := 0
	for _, f := range snap.Frames {
		fmt.Fprintln(w, frameLine(p, f))
		if f.Successful != nil && !*f.Successful {
			failed++
		}
	}
	summary := fmt.Sprintf("session %s: %d frames, %d failed", snap.ID, len(snap.Frames), failed)
	if failed > 0 {
		fmt.Fprintln(w, termenv.String(summary).Foreground(p.Color("#fb7185")))
	} else {
		fmt.Fprintln(w, termenv.String(summary).Foreground(p.Color("#34d399")))
	}
}

func frameLine(p termenv.Profile, f arbor.FrameSnapshot) string {
	status, color := frameStatus(f)
	badge := termenv.String(fmt.Sprintf("%-8s", status)).Foreground(p.Color(color)).Bold()
	line := fmt.Sprintf("%s %-20s %s", badge, f.Name, f.Realm)
	if f.Error != "" {
		line += "  " + termenv.String(f.Error).Foreground(p.Color("#f59e0b")).String()
	}
	return line
}

func frameStatus(f arbor.FrameSnapshot) (string, string) {
	switch f.Phase {
	case domain.PhaseLoad:
		return "pending", "#94a3b8"
	case domain.PhaseActive:
		return "running", "#818cf8"
	}
	if f.Successful != nil && *f.Successful {
		return "ok", "#34d399"
	}
	return "failed", "#fb7185"
}
