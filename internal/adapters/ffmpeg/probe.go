// Package ffmpeg reads media metadata with ffprobe.
package ffmpeg

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/process"
)

// Prober implements core.MediaProber.
type Prober struct {
	runner  process.Runner
	path    string
	timeout time.Duration
}

// NewProber returns a prober that runs the ffprobe binary at path.
func NewProber(runner process.Runner, path string) *Prober {
	if path == "" {
		path = "ffprobe"
	}
	return &Prober{runner: runner, path: path, timeout: 30 * time.Second}
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
	} `json:"format"`
}

// Probe returns the metadata of the first video stream in path.
func (p *Prober) Probe(ctx context.Context, path string) (*core.VideoMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, core.ErrNotFound("video", path).WithCause(err)
	}

	res, err := p.runner.Run(ctx, process.Command{
		Path:    p.path,
		Args:    []string{"-v", "error", "-print_format", "json", "-show_format", "-show_streams", path},
		Timeout: p.timeout,
	})
	if err != nil {
		return nil, err
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	meta, err := parseProbe([]byte(res.Stdout), ext)
	if err != nil {
		return nil, err
	}
	if meta.SizeBytes == 0 {
		meta.SizeBytes = info.Size()
	}
	return meta, nil
}

func parseProbe(data []byte, ext string) (*core.VideoMetadata, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, core.ErrExecution("PROBE_FAILED", "ffprobe output is not JSON").WithCause(err)
	}

	idx := -1
	for i, s := range out.Streams {
		if s.CodecType == "video" {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, core.ErrValidation(core.CodeUnsupportedFormat, "file has no video stream")
	}
	vs := out.Streams[idx]

	meta := &core.VideoMetadata{
		Width:  vs.Width,
		Height: vs.Height,
		Codec:  vs.CodecName,
		Format: pickFormat(out.Format.FormatName, ext),
	}
	meta.FPS = parseRate(vs.AvgFrameRate)
	if meta.FPS == 0 {
		meta.FPS = parseRate(vs.RFrameRate)
	}
	meta.Duration = parseFloat(out.Format.Duration)
	if meta.Duration == 0 {
		meta.Duration = parseFloat(vs.Duration)
	}
	if n, err := strconv.Atoi(vs.NbFrames); err == nil && n > 0 {
		meta.FrameCount = n
	} else if meta.FPS > 0 {
		meta.FrameCount = int(math.Round(meta.Duration * meta.FPS))
	}
	if size, err := strconv.ParseInt(out.Format.Size, 10, 64); err == nil {
		meta.SizeBytes = size
	}
	return meta, nil
}

// parseRate parses ffprobe's "num/den" rates, rounded to two decimals.
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return round2(parseFloat(s))
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return round2(n / d)
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// pickFormat chooses from a demuxer list like "mov,mp4,m4a", preferring
// the file extension when the demuxer claims it.
func pickFormat(names, ext string) string {
	if names == "" {
		return ext
	}
	list := strings.Split(names, ",")
	for _, n := range list {
		if n == ext {
			return n
		}
	}
	return list[0]
}

var _ core.MediaProber = (*Prober)(nil)
