package tools

import (
	"fmt"
	"math"

	"github.com/visualix/visualix/internal/core"
)

func filterTools() []spec {
	return []spec{
		{
			name:        "apply_blur",
			category:    "filter",
			description: "Applies a simple blur effect to the video. Higher values create stronger blur.",
			params: map[string]core.ParamSpec{
				"strength": intParam("Blur strength (1 to 50, higher = more blur)", 1, 50, 5),
			},
			build: func(name string, p core.Params) (string, error) {
				s, err := p.IntIn(name, "strength", 5, 1, 50)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("boxblur=luma_radius=%d:luma_power=1", s), nil
			},
		},
		{
			name:        "apply_gaussian_blur",
			category:    "filter",
			description: "Applies Gaussian blur for smooth, natural-looking blur effect. Good for background blur or soft focus.",
			params: map[string]core.ParamSpec{
				"strength": intParam("Blur strength (1 to 50, higher = more blur)", 1, 50, 5),
				"sigma":    floatParam("Gaussian sigma value (0.0 = auto, higher = smoother)", 0, 10.0, 0),
			},
			build: func(name string, p core.Params) (string, error) {
				s, err := p.IntIn(name, "strength", 5, 1, 50)
				if err != nil {
					return "", err
				}
				sigma, err := p.FloatIn(name, "sigma", 0, 0, 10.0)
				if err != nil {
					return "", err
				}
				if sigma == 0 {
					sigma = autoSigma(s)
				}
				return fmt.Sprintf("gblur=sigma=%.3f", sigma), nil
			},
		},
		{
			name:        "apply_motion_blur",
			category:    "filter",
			description: "Applies directional motion blur effect to simulate camera or object movement.",
			params: map[string]core.ParamSpec{
				"length": intParam("Motion blur length in pixels (5 to 100)", 5, 100, 15),
				"angle":  intParam("Motion blur angle in degrees (0 to 360, 0 = horizontal)", 0, 360, 0),
			},
			build: func(name string, p core.Params) (string, error) {
				length, err := p.IntIn(name, "length", 15, 5, 100)
				if err != nil {
					return "", err
				}
				angle, err := p.IntIn(name, "angle", 0, 0, 360)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("dblur=angle=%d:radius=%d", angle%360, length), nil
			},
		},
		{
			name:        "apply_sharpen",
			category:    "filter",
			description: "Sharpens the video to enhance detail and edge definition. Good for improving clarity.",
			params: map[string]core.ParamSpec{
				"strength": floatParam("Sharpening strength (0.1 to 3.0, 1.0 = normal sharpening)", 0.1, 3.0, 1.0),
			},
			build: func(name string, p core.Params) (string, error) {
				s, err := p.FloatIn(name, "strength", 1.0, 0.1, 3.0)
				if err != nil {
					return "", err
				}
				return "unsharp=5:5:" + fmtF(s), nil
			},
		},
		{
			name:        "apply_unsharp_mask",
			category:    "filter",
			description: "Unsharp mask with explicit kernel size for precise sharpening or softening.",
			params: map[string]core.ParamSpec{
				"size":   intParam("Kernel size, odd (3 to 23)", 3, 23, 5),
				"amount": floatParam("Amount (-2.0 to 5.0, negative blurs)", -2.0, 5.0, 1.0),
			},
			build: func(name string, p core.Params) (string, error) {
				size, err := p.IntIn(name, "size", 5, 3, 23)
				if err != nil {
					return "", err
				}
				if size%2 == 0 {
					size++
				}
				amount, err := p.FloatIn(name, "amount", 1.0, -2.0, 5.0)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("unsharp=%d:%d:%s", size, size, fmtF(amount)), nil
			},
		},
		{
			name:        "apply_noise_reduction",
			category:    "filter",
			description: "Reduces noise and grain in video while preserving detail. Good for improving low-light footage.",
			params: map[string]core.ParamSpec{
				"strength":       intParam("Noise reduction strength (1 to 10, higher = more reduction)", 1, 10, 3),
				"preserve_edges": boolParam("Whether to preserve edges while reducing noise", true),
			},
			build: func(name string, p core.Params) (string, error) {
				s, err := p.IntIn(name, "strength", 3, 1, 10)
				if err != nil {
					return "", err
				}
				preserve, err := p.Bool(name, "preserve_edges", true)
				if err != nil {
					return "", err
				}
				spatial := float64(s)
				if preserve {
					spatial *= 0.5
				}
				temporal := float64(s) * 1.5
				return fmt.Sprintf("hqdn3d=luma_spatial=%s:chroma_spatial=%s:luma_tmp=%s:chroma_tmp=%s",
					fmtF(spatial), fmtF(spatial*0.75), fmtF(temporal), fmtF(temporal*0.75)), nil
			},
		},
		{
			name:        "apply_bilateral_filter",
			category:    "filter",
			description: "Smooths noise and skin texture while keeping edges sharp.",
			params: map[string]core.ParamSpec{
				"sigma_color": floatParam("How different colors may be and still be blended (10 to 200)", 10, 200, 75),
				"sigma_space": floatParam("How far apart pixels may be and still be blended (10 to 200)", 10, 200, 75),
			},
			build: func(name string, p core.Params) (string, error) {
				c, err := p.FloatIn(name, "sigma_color", 75, 10, 200)
				if err != nil {
					return "", err
				}
				sp, err := p.FloatIn(name, "sigma_space", 75, 10, 200)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("bilateral=sigmaS=%s:sigmaR=%.3f", fmtF(sp/10), c/255), nil
			},
		},
	}
}

// autoSigma mirrors the usual kernel-size-to-sigma rule for an odd kernel
// derived from strength.
func autoSigma(strength int) float64 {
	k := strength*2 + 1
	return math.Max(0.3*(float64(k-1)*0.5-1)+0.8, 0.5)
}
