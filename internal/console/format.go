package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/treadmill"
)

const helpText = "[yellow]Up/Down[white] Speed  |  [yellow]Left/Right[white] Incline  |  [yellow]1-9[white] Speed preset\n" +
	"[yellow]S[white] Start  |  [yellow]P[white] Stop  |  [yellow]f/F[white] Fan  |  [yellow]R[white] Reset  |  [yellow]Q[white] Quit"

func formatMetrics(s treadmill.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n  [gray]Speed:[white]     %5.1f km/h", s.Speed)
	if s.TargetSpeed > 0 {
		fmt.Fprintf(&b, "  [gray](target %.1f)[white]", s.TargetSpeed)
	}
	fmt.Fprintf(&b, "\n  [gray]Incline:[white]   %5.1f %%", s.Incline)
	if s.TargetIncline > 0 {
		fmt.Fprintf(&b, "  [gray](target %.1f)[white]", s.TargetIncline)
	}
	b.WriteString("\n")
	if s.HeartRate > 0 {
		fmt.Fprintf(&b, "  [gray]Heart rate:[white] %4d bpm\n", s.HeartRate)
	} else {
		b.WriteString("  [gray]Heart rate:[white]    --\n")
	}
	fmt.Fprintf(&b, "  [gray]Power:[white]     %5.0f W\n", s.Watts)
	fmt.Fprintf(&b, "\n  [gray]Distance:[white]  %6.2f km\n", s.Distance)
	fmt.Fprintf(&b, "  [gray]Calories:[white]  %6.0f kcal\n", s.Calories)
	fmt.Fprintf(&b, "  [gray]Moving:[white]    %s\n", formatElapsed(s.MovingTime))
	fmt.Fprintf(&b, "  [gray]Odometer:[white]  %6.2f km\n", s.Odometer)
	return b.String()
}

func formatStatus(s treadmill.Status) string {
	state := fmt.Sprintf("[red]%s[white]", s.State)
	if s.Ready() {
		state = fmt.Sprintf("[green]%s[white]", s.State)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n  [gray]Equipment:[white] %s\n", s.Profile)
	fmt.Fprintf(&b, "  [gray]State:[white]     %s\n", state)
	fmt.Fprintf(&b, "  [gray]Session:[white]   %s\n", s.SessionID)
	if s.Fan > 0 {
		fmt.Fprintf(&b, "  [gray]Fan:[white]       %d\n", s.Fan)
	}
	if !s.LastStart.IsZero() {
		fmt.Fprintf(&b, "  [gray]Started:[white]   %s\n", s.LastStart.Format("15:04:05"))
	}
	if !s.LastStop.IsZero() {
		fmt.Fprintf(&b, "  [gray]Stopped:[white]   %s\n", s.LastStop.Format("15:04:05"))
	}
	return b.String()
}

// formatElapsed renders h:mm:ss
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
}
