package ffmpeg

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/process"
	"github.com/visualix/visualix/internal/testutil"
)

const sampleProbe = `{
  "streams": [
    {"codec_type": "audio", "codec_name": "aac"},
    {"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080,
     "avg_frame_rate": "30000/1001", "r_frame_rate": "30000/1001", "nb_frames": "300", "duration": "10.010000"}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "10.010000", "size": "2048000"}
}`

func TestProber_Probe(t *testing.T) {
	dir := t.TempDir()
	video := testutil.TempVideo(t, dir, "clip.mp4")

	runner := testutil.NewMockRunner().WithStdout(sampleProbe)
	meta, err := NewProber(runner, "").Probe(context.Background(), video)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	want := core.VideoMetadata{
		Duration:   10.01,
		FPS:        29.97,
		Width:      1920,
		Height:     1080,
		FrameCount: 300,
		Format:     "mp4",
		Codec:      "h264",
		SizeBytes:  2048000,
	}
	if *meta != want {
		t.Errorf("Probe() = %+v, want %+v", *meta, want)
	}

	calls := runner.Calls()
	if len(calls) != 1 || calls[0].Path != "ffprobe" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
	if last := calls[0].Args[len(calls[0].Args)-1]; last != video {
		t.Errorf("last arg = %q, want %q", last, video)
	}
}

func TestProber_MissingFile(t *testing.T) {
	runner := testutil.NewMockRunner()
	_, err := NewProber(runner, "ffprobe").Probe(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"))
	if !core.IsCategory(err, core.ErrCatNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(runner.Calls()) != 0 {
		t.Error("ffprobe should not run for a missing file")
	}
}

func TestProber_RunnerError(t *testing.T) {
	video := testutil.TempVideo(t, t.TempDir(), "clip.mov")
	runner := testutil.NewMockRunner().WithRunFunc(func(context.Context, process.Command) (*process.Result, error) {
		return nil, core.ErrExecution("COMMAND_FAILED", "Invalid data found when processing input")
	})
	if _, err := NewProber(runner, "").Probe(context.Background(), video); !core.HasCode(err, "COMMAND_FAILED") {
		t.Fatalf("expected runner error, got %v", err)
	}
}

func TestParseProbe(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		ext     string
		want    core.VideoMetadata
		wantErr string
	}{
		{
			name: "frame count from duration",
			data: `{"streams":[{"codec_type":"video","codec_name":"vp9","width":640,"height":360,"avg_frame_rate":"25/1"}],
				"format":{"format_name":"matroska,webm","duration":"4.0","size":"1000"}}`,
			ext:  "webm",
			want: core.VideoMetadata{Duration: 4, FPS: 25, Width: 640, Height: 360, FrameCount: 100, Format: "webm", Codec: "vp9", SizeBytes: 1000},
		},
		{
			name: "avg rate missing falls back to r_frame_rate",
			data: `{"streams":[{"codec_type":"video","width":2,"height":2,"avg_frame_rate":"0/0","r_frame_rate":"24/1","duration":"2"}],
				"format":{"format_name":"avi"}}`,
			ext:  "avi",
			want: core.VideoMetadata{Duration: 2, FPS: 24, Width: 2, Height: 2, FrameCount: 48, Format: "avi"},
		},
		{
			name:    "no video stream",
			data:    `{"streams":[{"codec_type":"audio"}],"format":{}}`,
			wantErr: core.CodeUnsupportedFormat,
		},
		{
			name:    "garbage",
			data:    `not json`,
			wantErr: "PROBE_FAILED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProbe([]byte(tt.data), tt.ext)
			if tt.wantErr != "" {
				if !core.HasCode(err, tt.wantErr) {
					t.Fatalf("parseProbe() error = %v, want code %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseProbe() error = %v", err)
			}
			if *got != tt.want {
				t.Errorf("parseProbe() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestParseRate(t *testing.T) {
	tests := map[string]float64{
		"30/1":       30,
		"30000/1001": 29.97,
		"0/0":        0,
		"":           0,
		"25":         25,
	}
	for in, want := range tests {
		if got := parseRate(in); got != want {
			t.Errorf("parseRate(%q) = %v, want %v", in, got, want)
		}
	}
}
