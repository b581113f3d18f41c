package observability

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorBlue     = "\033[34m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
)

const (
	dashboardRow = 10
	logsFromRow  = 12
)

var radarFrames = []string{"◜", "◝", "◞", "◟"}

// termMu serializes all terminal output so the cursor save/restore in
// PrintLiveStatus is never split by a log write.
var termMu sync.Mutex

var radar struct {
	sync.Mutex
	idx int
}

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

type termWriter struct{}

func (termWriter) Write(p []byte) (int, error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns an io.Writer for log.SetOutput and event logging
// that never interleaves with the dashboard line.
func NewTermWriter() *termWriter {
	return &termWriter{}
}

const banner = `
   __  _________   _______  ______  ____
  /  |/  /  _/   | / ___/ / / / __ \/  _/
 / /|_/ // // /| | \__ \ /_/ / /_/ // /
/ /  / // // ___ |___/ / __  / _, _// /
/_/  /_/___/_/  |_/____/_/ /_/_/ |_/___/

      >> PLAN  ::  EXECUTE  ::  VERIFY <<
`

func PrintBanner() {
	fmt.Print("\033[2J\033[H")
	width := termWidth()
	for _, l := range strings.Split(banner, "\n") {
		pad := max((width-len(l))/2, 0)
		fmt.Printf("%s%s%s%s\n", strings.Repeat(" ", pad), colorNeonCyan, l, colorReset)
	}
}

// InitializeTerminal keeps the banner and dashboard fixed and scrolls logs
// below them.
func InitializeTerminal() {
	fmt.Printf("\033[%d;r", logsFromRow)
	fmt.Printf("\033[%d;1H", logsFromRow)
}

func CleanupTerminal() {
	fmt.Print("\033[r\033[2J\033[H")
}

// PrintLiveStatus redraws the dashboard line in place.
func PrintLiveStatus() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	line := statusLine(GetStatus(), time.Now(), nextRadarFrame(), m.Alloc, m.Sys)

	termMu.Lock()
	fmt.Printf("\033[s\033[%d;1H\033[K%s\033[u", dashboardRow, line)
	termMu.Unlock()
}

func nextRadarFrame() string {
	radar.Lock()
	defer radar.Unlock()
	f := radarFrames[radar.idx]
	radar.idx = (radar.idx + 1) % len(radarFrames)
	return f
}

// pulse grades heartbeat freshness.
func pulse(sinceHeartbeat time.Duration) (icon, text, color string) {
	switch {
	case sinceHeartbeat < 40*time.Second:
		return "🟢", "HEALTHY", colorNeonCyan
	case sinceHeartbeat < 90*time.Second:
		return "🟡", "LAGGING", colorPurple
	default:
		return "🔴", "OFFLINE", colorNeonMag
	}
}

func phaseStyle(p Phase) (icon, color string) {
	switch p {
	case PhasePlanning:
		return "🛰️", colorNeonCyan
	case PhaseExecuting:
		return "⚙️", colorNeonMag
	case PhaseVerifying:
		return "🔎", colorBlue
	default:
		return "💤", colorReset
	}
}

func statusLine(s Snapshot, now time.Time, frame string, alloc, sys uint64) string {
	pIcon, pText, pColor := pulse(now.Sub(s.LastHeartbeat))
	icon, color := phaseStyle(s.Phase)

	if s.Phase == PhaseIdle {
		frame = " "
	}

	task := s.Task
	if task == "" {
		task = "Waiting..."
	}
	if len(task) > 25 {
		task = task[:22] + "..."
	}

	memMB := float64(alloc) / 1024 / 1024
	ratio := 0.0
	if sys > 0 {
		ratio = float64(alloc) / float64(sys)
	}
	const barWidth = 20
	filled := min(max(int(ratio*barWidth), 0), barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("▒", barWidth-filled)
	barColor := colorNeonCyan
	if ratio > 0.7 {
		barColor = colorNeonMag
	}

	return fmt.Sprintf(
		"%s[%s] %s%s %-10s%s | %s%s %-9s%s runs:%d [%s] %s%s%s [%v] [%s%s %.1fMB%s]",
		colorReset, s.LastHeartbeat.Format("15:04:05"),
		pColor, pIcon, pText, colorReset,
		color, icon, s.Phase, colorReset,
		s.ActiveRuns, task,
		colorPurple, frame, colorReset,
		now.Sub(startTime).Round(time.Second),
		barColor, bar, memMB, colorReset,
	)
}
