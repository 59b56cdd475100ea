package audio_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"

	"github.com/MrWong99/goalhorn/pkg/audio"
	"github.com/MrWong99/goalhorn/pkg/audio/mock"
)

// constant returns a streamer of n samples with value v on both channels.
func constant(v float64, n int) beep.Streamer {
	return beep.Take(n, beep.StreamerFunc(func(s [][2]float64) (int, bool) {
		for i := range s {
			s[i] = [2]float64{v, v}
		}
		return len(s), true
	}))
}

// writeWAV encodes n samples of value v at rate into dir/name.
func writeWAV(t *testing.T, dir, name string, rate beep.SampleRate, n int, v float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, constant(v, n), format); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	return path
}

// track builds a library track of n samples of value v without touching disk.
func track(t *testing.T, id string, v float64, n int) *audio.Track {
	t.Helper()
	buf, err := audio.Convert(constant(v, n), audio.DefaultFormat, audio.DefaultFormat)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	return &audio.Track{ID: id, Name: id, Buffer: buf}
}

func first(t *testing.T, s beep.Streamer) [2]float64 {
	t.Helper()
	buf := make([][2]float64, 1)
	if n, _ := s.Stream(buf); n != 1 {
		t.Fatal("streamer produced no samples")
	}
	return buf[0]
}

func TestImport_WAVResamples(t *testing.T) {
	t.Parallel()

	path := writeWAV(t, t.TempDir(), "horn.wav", 22050, 2205, 0.5)

	buf, err := audio.Import(path, audio.DefaultFormat)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if buf.Format().SampleRate != audio.DefaultFormat.SampleRate {
		t.Errorf("sample rate = %d, want %d", buf.Format().SampleRate, audio.DefaultFormat.SampleRate)
	}
	// 0.1s of audio at 44.1 kHz.
	if n := buf.Len(); n < 4300 || n > 4500 {
		t.Errorf("Len = %d, want about 4410", n)
	}
}

func TestImport_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := audio.Import(filepath.Join(dir, "missing.wav"), audio.DefaultFormat); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want ErrNotExist", err)
	}

	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := audio.Import(txt, audio.DefaultFormat); !errors.Is(err, audio.ErrUnsupportedFormat) {
		t.Errorf("unsupported error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestGain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		volume int
		want   float64
	}{
		{volume: 100, want: 0.5},
		{volume: 150, want: 0.5},
		{volume: 50, want: 0.0625},
		{volume: 0, want: 0},
		{volume: -10, want: 0},
	}
	for _, tc := range tests {
		got := first(t, audio.Gain(constant(0.5, 4), tc.volume))
		if math.Abs(got[0]-tc.want) > 1e-9 {
			t.Errorf("Gain(volume=%d) = %v, want %v", tc.volume, got[0], tc.want)
		}
	}

	// Roughly -6 dB per 16.7 points.
	got := first(t, audio.Gain(constant(1, 4), 83))
	if got[0] < 0.48 || got[0] > 0.51 {
		t.Errorf("Gain(volume=83) = %v, want about 0.5", got[0])
	}
}

func TestTrigger(t *testing.T) {
	t.Parallel()

	lib := audio.NewLibrary(audio.DefaultFormat)
	lib.Put(track(t, "horn", 0.5, 100))
	lib.Put(track(t, "crowd", 0.25, 100))

	t.Run("primary and ambiance", func(t *testing.T) {
		t.Parallel()
		p := &mock.Player{}
		err := audio.NewTrigger(lib, p).Trigger(audio.Request{
			Primary: "horn", Ambiance: "crowd", PrimaryVolume: 100, AmbianceVolume: 100,
		})
		if err != nil {
			t.Fatalf("Trigger: %v", err)
		}
		if p.CallCount() != 1 || len(p.PlayCalls[0]) != 2 {
			t.Fatalf("PlayCalls = %v, want one call with two streamers", p.PlayCalls)
		}
		if got := first(t, p.PlayCalls[0][0]); math.Abs(got[0]-0.5) > 1e-3 {
			t.Errorf("primary sample = %v, want 0.5", got[0])
		}
		if got := first(t, p.PlayCalls[0][1]); math.Abs(got[0]-0.25) > 1e-3 {
			t.Errorf("ambiance sample = %v, want 0.25", got[0])
		}
	})

	t.Run("missing ambiance plays primary", func(t *testing.T) {
		t.Parallel()
		p := &mock.Player{}
		err := audio.NewTrigger(lib, p).Trigger(audio.Request{Primary: "horn", Ambiance: "nope", PrimaryVolume: 100})
		if err != nil {
			t.Fatalf("Trigger: %v", err)
		}
		if len(p.PlayCalls[0]) != 1 {
			t.Errorf("streamers = %d, want 1", len(p.PlayCalls[0]))
		}
	})

	t.Run("missing primary", func(t *testing.T) {
		t.Parallel()
		p := &mock.Player{}
		err := audio.NewTrigger(lib, p).Trigger(audio.Request{Primary: "nope"})
		if !errors.Is(err, audio.ErrTrackNotLoaded) {
			t.Errorf("err = %v, want ErrTrackNotLoaded", err)
		}
		if p.CallCount() != 0 {
			t.Error("nothing should be played")
		}
	})

	t.Run("no device", func(t *testing.T) {
		t.Parallel()
		err := audio.NewTrigger(lib, nil).Trigger(audio.Request{Primary: "horn"})
		if !errors.Is(err, audio.ErrNoDevice) {
			t.Errorf("err = %v, want ErrNoDevice", err)
		}
	})

	t.Run("player error propagates", func(t *testing.T) {
		t.Parallel()
		busy := errors.New("busy")
		err := audio.NewTrigger(lib, &mock.Player{PlayErr: busy}).Trigger(audio.Request{Primary: "horn"})
		if !errors.Is(err, busy) {
			t.Errorf("err = %v, want %v", err, busy)
		}
	})
}

func TestConvert_Empty(t *testing.T) {
	t.Parallel()

	if _, err := audio.Convert(constant(0, 0), audio.DefaultFormat, audio.DefaultFormat); !errors.Is(err, audio.ErrEmptyTrack) {
		t.Errorf("err = %v, want ErrEmptyTrack", err)
	}
}

func TestTrack_Duration(t *testing.T) {
	t.Parallel()

	tr := track(t, "horn", 0.5, 44100)
	if d := tr.Duration().Seconds(); math.Abs(d-1) > 1e-6 {
		t.Errorf("Duration = %vs, want 1s", d)
	}
	var nilTrack *audio.Track
	if nilTrack.Duration() != 0 {
		t.Error("nil track duration should be 0")
	}
}
