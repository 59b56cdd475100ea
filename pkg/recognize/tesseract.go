package recognize

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strconv"
	"strings"

	execute "github.com/alexellis/go-execute/v2"
)

// Compile-time interface assertion.
var _ Recognizer = (*Tesseract)(nil)

const (
	// DefaultTesseractCommand is the executable looked up on PATH.
	DefaultTesseractCommand = "tesseract"

	// DefaultLanguage is the tesseract language pack.
	DefaultLanguage = "eng"

	// defaultPageSegMode treats the image as a single uniform block of text,
	// which fits a score banner.
	defaultPageSegMode = 6
)

// TesseractOption configures a [Tesseract] recognizer.
type TesseractOption func(*Tesseract)

// WithCommand overrides the tesseract executable.
func WithCommand(name string) TesseractOption {
	return func(t *Tesseract) {
		if name != "" {
			t.command = name
		}
	}
}

// WithLanguage sets the tesseract language, e.g. "eng+deu".
func WithLanguage(lang string) TesseractOption {
	return func(t *Tesseract) {
		if lang != "" {
			t.language = lang
		}
	}
}

// WithPageSegMode sets tesseract's --psm value.
func WithPageSegMode(psm int) TesseractOption {
	return func(t *Tesseract) {
		t.psm = psm
	}
}

// Tesseract runs the tesseract CLI per frame, passing the image as PNG on
// stdin and reading text from stdout.
type Tesseract struct {
	command  string
	language string
	psm      int
}

// NewTesseract returns a recognizer using the tesseract CLI.
func NewTesseract(opts ...TesseractOption) *Tesseract {
	t := &Tesseract{
		command:  DefaultTesseractCommand,
		language: DefaultLanguage,
		psm:      defaultPageSegMode,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Args returns the command line arguments passed to tesseract.
func (t *Tesseract) Args() []string {
	return []string{"stdin", "stdout", "-l", t.language, "--psm", strconv.Itoa(t.psm)}
}

// Recognize implements [Recognizer].
func (t *Tesseract) Recognize(ctx context.Context, img *image.Gray) (string, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("recognize: encode frame: %w", err)
	}

	task := execute.ExecTask{
		Command:     t.command,
		Args:        t.Args(),
		Stdin:       &buf,
		StreamStdio: false,
	}
	res, err := task.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("recognize: run %s: %w", t.command, err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("recognize: %s exited with code %d: %s", t.command, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res.Stdout, nil
}
