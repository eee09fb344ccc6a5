package capability

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// PC exposes desktop control and system state: screenshots, app lifecycle,
// GUI input via xdotool, shell commands, and power actions.
type PC struct {
	ScreenshotDir string
}

func NewPC(screenshotDir string) *PC {
	if screenshotDir == "" {
		screenshotDir = "screenshots"
	}
	return &PC{ScreenshotDir: screenshotDir}
}

func (p *PC) Register(r *Registry) error {
	funcs := map[string]Func{
		"screenshot": {
			Description: "Capture the desktop to a PNG file and return its path.",
			Parameters:  objSchema(nil, nil),
			Run:         p.screenshot,
		},
		"system_stats": {
			Description: "Report CPU load, memory, and disk usage.",
			Parameters:  objSchema(nil, nil),
			Run:         p.systemStats,
		},
		"open_app": {
			Description: "Launch an application by command name.",
			Parameters: objSchema(map[string]any{
				"name": strProp("The application command to launch, e.g. 'firefox'"),
			}, []string{"name"}),
			Run: p.openApp,
		},
		"close_app": {
			Description: "Close an application by process name.",
			Parameters: objSchema(map[string]any{
				"name": strProp("The process name to close"),
			}, []string{"name"}),
			Run: p.closeApp,
		},
		"type_text": {
			Description: "Type a string of text into the focused window.",
			Parameters: objSchema(map[string]any{
				"text": strProp("The text to type"),
			}, []string{"text"}),
			Run: p.typeText,
		},
		"press_key": {
			Description: "Press a key or key combination, e.g. 'Return' or 'alt+Tab'.",
			Parameters: objSchema(map[string]any{
				"key": strProp("The key or combination to press"),
			}, []string{"key"}),
			Run: p.pressKey,
		},
		"mouse_move": {
			Description: "Move the mouse pointer to screen coordinates.",
			Parameters: objSchema(map[string]any{
				"x": intProp("X coordinate"),
				"y": intProp("Y coordinate"),
			}, []string{"x", "y"}),
			Run: p.mouseMove,
		},
		"mouse_click": {
			Description: "Click a mouse button (1=left, 2=middle, 3=right).",
			Parameters: objSchema(map[string]any{
				"button": strProp("Mouse button, default 1"),
			}, nil),
			Run: p.mouseClick,
		},
		"run_command": {
			Description: "Execute a shell command and return its output. Destructive: requires confirmation.",
			Parameters: objSchema(map[string]any{
				"command": strProp("The shell command to execute"),
			}, []string{"command"}),
			Run: p.runCommand,
		},
		"kill_process": {
			Description: "Terminate a process by name. Destructive: requires confirmation.",
			Parameters: objSchema(map[string]any{
				"name": strProp("The process name to kill"),
			}, []string{"name"}),
			Run: p.killProcess,
		},
		"lock": {
			Description: "Lock the current session.",
			Parameters:  objSchema(nil, nil),
			Run:         p.lock,
		},
		"restart": {
			Description: "Reboot the machine. Critical: requires confirmation.",
			Parameters:  objSchema(nil, nil),
			Run:         p.restart,
		},
		"shutdown": {
			Description: "Power off the machine. Critical: requires confirmation.",
			Parameters:  objSchema(nil, nil),
			Run:         p.shutdown,
		},
	}
	for name, fn := range funcs {
		if err := r.Register("pc", name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (p *PC) screenshot(ctx context.Context, args map[string]any) (map[string]any, error) {
	if err := os.MkdirAll(p.ScreenshotDir, 0755); err != nil {
		return nil, err
	}
	path := filepath.Join(p.ScreenshotDir, fmt.Sprintf("desktop_%d.png", time.Now().Unix()))

	// ffmpeg first, scrot as fallback
	cmd := exec.CommandContext(ctx, "ffmpeg", "-f", "x11grab", "-i", ":0.0", "-frames:v", "1", path, "-y")
	if output, err := cmd.CombinedOutput(); err != nil {
		cmd = exec.CommandContext(ctx, "scrot", path)
		if output2, err2 := cmd.CombinedOutput(); err2 != nil {
			return nil, fmt.Errorf("screenshot failed: ffmpeg: %v (%s); scrot: %v (%s)",
				err, strings.TrimSpace(string(output)), err2, strings.TrimSpace(string(output2)))
		}
	}

	absPath, _ := filepath.Abs(path)
	return map[string]any{"path": absPath, "file_path": absPath}, nil
}

func (p *PC) systemStats(ctx context.Context, args map[string]any) (map[string]any, error) {
	var parts []string
	for _, c := range [][]string{{"uptime"}, {"free", "-h"}, {"df", "-h", "/"}} {
		out, err := exec.CommandContext(ctx, c[0], c[1:]...).Output()
		if err != nil {
			continue
		}
		parts = append(parts, strings.TrimSpace(string(out)))
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no system stat command available")
	}
	return map[string]any{"text": strings.Join(parts, "\n")}, nil
}

func (p *PC) openApp(ctx context.Context, args map[string]any) (map[string]any, error) {
	name, err := requireString(args, "name")
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(name)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("could not launch %s: %w", name, err)
	}
	go cmd.Wait()
	return map[string]any{"text": fmt.Sprintf("Launched %s (pid %d)", name, cmd.Process.Pid)}, nil
}

func (p *PC) closeApp(ctx context.Context, args map[string]any) (map[string]any, error) {
	name, err := requireString(args, "name")
	if err != nil {
		return nil, err
	}
	if out, err := exec.CommandContext(ctx, "pkill", "-TERM", "-x", name).CombinedOutput(); err != nil {
		return nil, fmt.Errorf("could not close %s: %v (%s)", name, err, strings.TrimSpace(string(out)))
	}
	return map[string]any{"text": "Closed " + name}, nil
}

func (p *PC) typeText(ctx context.Context, args map[string]any) (map[string]any, error) {
	text, err := requireString(args, "text")
	if err != nil {
		return nil, err
	}
	return p.xdotool(ctx, "type", text)
}

func (p *PC) pressKey(ctx context.Context, args map[string]any) (map[string]any, error) {
	key, err := requireString(args, "key")
	if err != nil {
		return nil, err
	}
	return p.xdotool(ctx, "key", key)
}

func (p *PC) mouseMove(ctx context.Context, args map[string]any) (map[string]any, error) {
	x := argInt(args, "x", -1)
	y := argInt(args, "y", -1)
	if x < 0 || y < 0 {
		return nil, fmt.Errorf("mouse_move needs non-negative x and y")
	}
	return p.xdotool(ctx, "mousemove", strconv.Itoa(x), strconv.Itoa(y))
}

func (p *PC) mouseClick(ctx context.Context, args map[string]any) (map[string]any, error) {
	button := argString(args, "button")
	if button == "" {
		button = "1"
	}
	return p.xdotool(ctx, "click", button)
}

func (p *PC) xdotool(ctx context.Context, cmdArgs ...string) (map[string]any, error) {
	out, err := exec.CommandContext(ctx, "xdotool", cmdArgs...).CombinedOutput()
	if err != nil {
		if strings.Contains(err.Error(), "executable file not found") {
			return nil, fmt.Errorf("xdotool is not installed; install it with your package manager")
		}
		return nil, fmt.Errorf("xdotool %s failed: %v (%s)", cmdArgs[0], err, strings.TrimSpace(string(out)))
	}
	return map[string]any{"text": "Executed " + cmdArgs[0]}, nil
}

func (p *PC) runCommand(ctx context.Context, args map[string]any) (map[string]any, error) {
	command, err := requireString(args, "command")
	if err != nil {
		return nil, err
	}
	out, err := exec.CommandContext(ctx, "bash", "-c", command).CombinedOutput()
	result := strings.TrimSpace(string(out))
	if result == "" {
		result = "(no output)"
	}
	if err != nil {
		return nil, fmt.Errorf("command failed: %v\noutput: %s", err, result)
	}
	return map[string]any{"output": result}, nil
}

func (p *PC) killProcess(ctx context.Context, args map[string]any) (map[string]any, error) {
	name, err := requireString(args, "name")
	if err != nil {
		return nil, err
	}
	if out, err := exec.CommandContext(ctx, "pkill", "-KILL", "-x", name).CombinedOutput(); err != nil {
		return nil, fmt.Errorf("could not kill %s: %v (%s)", name, err, strings.TrimSpace(string(out)))
	}
	return map[string]any{"text": "Killed " + name}, nil
}

func (p *PC) lock(ctx context.Context, args map[string]any) (map[string]any, error) {
	if out, err := exec.CommandContext(ctx, "loginctl", "lock-session").CombinedOutput(); err != nil {
		return nil, fmt.Errorf("lock failed: %v (%s)", err, strings.TrimSpace(string(out)))
	}
	return map[string]any{"text": "Session locked"}, nil
}

func (p *PC) restart(ctx context.Context, args map[string]any) (map[string]any, error) {
	if out, err := exec.CommandContext(ctx, "systemctl", "reboot").CombinedOutput(); err != nil {
		return nil, fmt.Errorf("restart failed: %v (%s)", err, strings.TrimSpace(string(out)))
	}
	return map[string]any{"text": "Rebooting"}, nil
}

func (p *PC) shutdown(ctx context.Context, args map[string]any) (map[string]any, error) {
	if out, err := exec.CommandContext(ctx, "systemctl", "poweroff").CombinedOutput(); err != nil {
		return nil, fmt.Errorf("shutdown failed: %v (%s)", err, strings.TrimSpace(string(out)))
	}
	return map[string]any{"text": "Powering off"}, nil
}

// Shared JSON Schema helpers for the planner-facing parameter descriptions.

func objSchema(props map[string]any, required []string) map[string]any {
	if props == nil {
		props = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func strProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func intProp(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}
