// Package console is the line-oriented control surface: it reads commands
// from an input stream and drives the detection engine.
//
// Commands: start, pause, resume, stop, status, tracks, help, quit.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/MrWong99/goalhorn/internal/detect"
	"github.com/MrWong99/goalhorn/pkg/audio"
)

// ErrQuit is returned by [Console.Run] and [Console.Execute] after the quit
// command.
var ErrQuit = errors.New("console: quit")

// Controller is the part of *detect.Engine the console drives.
type Controller interface {
	Start() bool
	Pause() bool
	Resume() bool
	Stop() bool
	Status() detect.Status
}

// TrackLister lists the loaded tracks. It is implemented by *audio.Library.
type TrackLister interface {
	Tracks() []*audio.Track
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Width(12)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

// Console reads commands line by line. It is not safe for concurrent use.
type Console struct {
	ctrl   Controller
	tracks TrackLister
	in     io.Reader
	out    io.Writer
}

// New returns a Console reading from in and writing to out. tracks may be
// nil.
func New(ctrl Controller, tracks TrackLister, in io.Reader, out io.Writer) *Console {
	return &Console{ctrl: ctrl, tracks: tracks, in: in, out: out}
}

// Run processes commands until ctx is cancelled, the input ends, or the quit
// command is read. It returns [ErrQuit] after quit and nil at end of input.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("console: read: %w", err)
					}
				default:
				}
				return nil
			}
			if err := c.Execute(line); err != nil {
				return err
			}
			c.prompt()
		}
	}
}

// Execute runs a single command line.
func (c *Console) Execute(line string) error {
	cmd := strings.ToLower(strings.TrimSpace(line))
	switch cmd {
	case "":
		return nil
	case "start":
		c.report(c.ctrl.Start(), "detection started", "already running")
	case "pause":
		c.report(c.ctrl.Pause(), "detection paused", "not running")
	case "resume":
		c.report(c.ctrl.Resume(), "detection resumed", "not paused")
	case "stop":
		c.report(c.ctrl.Stop(), "detection stopped", "already stopped")
	case "status":
		fmt.Fprintln(c.out, RenderStatus(c.ctrl.Status()))
	case "tracks":
		fmt.Fprintln(c.out, c.renderTracks())
	case "help", "?":
		fmt.Fprintln(c.out, renderHelp())
	case "quit", "exit":
		return ErrQuit
	default:
		fmt.Fprintln(c.out, errorStyle.Render(fmt.Sprintf("unknown command %q", cmd))+" (try help)")
	}
	return nil
}

func (c *Console) prompt() {
	fmt.Fprint(c.out, "goalhorn> ")
}

func (c *Console) report(ok bool, done, noop string) {
	if ok {
		fmt.Fprintln(c.out, okStyle.Render(done))
		return
	}
	fmt.Fprintln(c.out, warnStyle.Render(noop))
}

// RenderStatus formats st as a bordered block.
func RenderStatus(st detect.Status) string {
	row := func(label, value string) string {
		return labelStyle.Render(label) + value
	}

	state := st.State.String()
	switch st.State {
	case detect.Running:
		state = okStyle.Render(state)
	case detect.Paused:
		state = warnStyle.Render(state)
	}

	lines := []string{
		titleStyle.Render("goalhorn"),
		row("state", state),
		row("triggers", fmt.Sprintf("%d", st.Triggers)),
		row("unplayed", fmt.Sprintf("%d", st.Unplayed)),
		row("cycles", fmt.Sprintf("%d", st.Cycles)),
		row("cycle", fmt.Sprintf("p50 %s  p95 %s", round(st.CycleLatency.P50), round(st.CycleLatency.P95))),
		row("trigger", fmt.Sprintf("p50 %s  p95 %s", round(st.TriggerLatency.P50), round(st.TriggerLatency.P95))),
		row("region", st.Config.Region.String()),
	}
	if t := st.Config.Target; t != nil {
		name := t.DisplayName
		if name == "" {
			name = t.Key
		}
		lines = append(lines, row("target", name))
	}
	if st.LastError != "" {
		lines = append(lines, row("last error", errorStyle.Render(st.LastError)+" "+st.LastErrorAt.Format(time.TimeOnly)))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (c *Console) renderTracks() string {
	if c.tracks == nil {
		return warnStyle.Render("no library")
	}
	tracks := c.tracks.Tracks()
	if len(tracks) == 0 {
		return warnStyle.Render("no tracks loaded")
	}
	lines := []string{titleStyle.Render(fmt.Sprintf("%d tracks", len(tracks)))}
	for _, t := range tracks {
		lines = append(lines, labelStyle.Render(t.ID)+fmt.Sprintf("%s (%s)", t.Name, round(t.Duration())))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func renderHelp() string {
	cmds := []struct{ name, help string }{
		{"start", "start detection with a fresh session"},
		{"pause", "stop capturing but keep the session"},
		{"resume", "continue a paused session"},
		{"stop", "end the session"},
		{"status", "show counters, latency and the last error"},
		{"tracks", "list loaded tracks"},
		{"quit", "shut down"},
	}
	lines := []string{titleStyle.Render("commands")}
	for _, c := range cmds {
		lines = append(lines, labelStyle.Render(c.name)+c.help)
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func round(d time.Duration) time.Duration {
	if d > time.Second {
		return d.Round(10 * time.Millisecond)
	}
	return d.Round(10 * time.Microsecond)
}
