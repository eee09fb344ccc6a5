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

var bootTime = time.Now()

const (
	ansiReset  = "\033[0m"
	ansiDim    = "\033[2m"
	ansiCyan   = "\033[96m"
	ansiMag    = "\033[95m"
	ansiYellow = "\033[93m"
)

// The status line sits on statusRow; everything below scrollTop scrolls.
const (
	statusRow = 10
	scrollTop = 12
)

var spinFrames = []string{"|", "/", "-", "\\"}
var spinIdx int

// termMu serializes every terminal write so the cursor save/restore
// around the status line is never torn by a concurrent log line.
var termMu sync.Mutex

type termWriter struct{}

func (tw termWriter) Write(p []byte) (int, error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns an io.Writer for log.SetOutput that shares the
// terminal mutex with PrintLiveStatus.
func NewTermWriter() *termWriter {
	return &termWriter{}
}

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

func PrintBanner() {
	fmt.Print("\033[2J\033[H")

	art := []string{
		`   ________  ______  ___________    ____  _____`,
		`  / ____/ / / / __ \/ ___/_  __/ /   /  _/ | / / ____/`,
		` / / __/ /_/ / / / /\__ \ / / / /    / //  |/ / __/`,
		`/ /_/ / __  / /_/ /___/ // / / /____/ // /|  / /___`,
		`\____/_/ /_/\____//____//_/ /_____/___/_/ |_/_____/`,
		``,
		`        >> REMOTE HANDS FOR YOUR MACHINE <<`,
	}

	width := termWidth()
	fmt.Println()
	for _, line := range art {
		pad := (width - len(line)) / 2
		if pad < 0 {
			pad = 0
		}
		fmt.Printf("%s%s%s%s\n", strings.Repeat(" ", pad), ansiCyan, line, ansiReset)
	}
}

// InitializeTerminal confines log output to a scroll region below the
// banner and the live status row.
func InitializeTerminal() {
	fmt.Printf("\033[%d;r", scrollTop)
	fmt.Printf("\033[%d;1H", scrollTop)
}

func CleanupTerminal() {
	fmt.Print("\033[r\033[2J\033[H")
}

// PrintLiveStatus redraws the single dashboard row: heartbeat health,
// current role and task, active goal / pending confirmation counts,
// uptime and heap usage.
func PrintLiveStatus() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	snap := Snapshot()

	health := ansiMag + "DOWN"
	switch age := time.Since(snap.LastHeartbeat); {
	case age < 40*time.Second:
		health = ansiCyan + "OK  "
	case age < 90*time.Second:
		health = ansiYellow + "SLOW"
	}

	spin := " "
	if snap.Role != RoleIdle {
		spin = spinFrames[spinIdx]
		spinIdx = (spinIdx + 1) % len(spinFrames)
	}

	task := snap.Task
	if task == "" {
		task = "waiting"
	}
	if len(task) > 28 {
		task = task[:25] + "..."
	}

	line := fmt.Sprintf(
		"\033[s\033[%d;1H\033[K%s[%s]%s %s%s %s%-9s%s %s %-28s goals:%d pending:%d up:%v heap:%.1fMB\033[u",
		statusRow,
		ansiDim, snap.LastHeartbeat.Format("15:04:05"), ansiReset,
		health, ansiReset,
		ansiCyan, snap.Role, ansiReset,
		spin, task,
		snap.GoalsRunning, snap.PendingConfirms,
		time.Since(bootTime).Round(time.Second),
		float64(m.Alloc)/1024/1024,
	)

	termMu.Lock()
	fmt.Print(line)
	termMu.Unlock()
}
