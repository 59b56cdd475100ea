package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strconv"
	"strings"

	execute "github.com/alexellis/go-execute/v2"
)

// Compile-time interface assertion.
var _ Source = (*Command)(nil)

// Command captures the screen by running an external tool that writes a PNG
// to stdout, such as "grim -g '{x},{y} {w}x{h}' -" on Wayland or
// "import -window root -crop {w}x{h}+{x}+{y} png:-" on X11.
//
// The placeholders {x}, {y}, {w} and {h} in Args are replaced with the
// region on every call. When the tool returns a full-screen image instead of
// the region, Command crops it.
type Command struct {
	name string
	args []string
}

// NewCommand returns a Command running name with args.
func NewCommand(name string, args ...string) (*Command, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("capture: command name is empty")
	}
	return &Command{name: name, args: args}, nil
}

// Capture implements [Source].
func (c *Command) Capture(ctx context.Context, region Region) (image.Image, error) {
	if err := region.Validate(image.Point{}); err != nil {
		return nil, err
	}
	task := execute.ExecTask{
		Command:     c.name,
		Args:        expandArgs(c.args, region),
		StreamStdio: false,
	}
	res, err := task.Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture: run %s: %w", c.name, err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("capture: %s exited with code %d: %s", c.name, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	img, err := png.Decode(bytes.NewReader([]byte(res.Stdout)))
	if err != nil {
		return nil, fmt.Errorf("capture: decode %s output: %w", c.name, err)
	}
	if img.Bounds().Size() == region.Rect().Size() {
		return img, nil
	}
	return crop(img, region)
}

func expandArgs(args []string, r Region) []string {
	repl := strings.NewReplacer(
		"{x}", strconv.Itoa(r.X),
		"{y}", strconv.Itoa(r.Y),
		"{w}", strconv.Itoa(r.Width),
		"{h}", strconv.Itoa(r.Height),
	)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = repl.Replace(a)
	}
	return out
}
