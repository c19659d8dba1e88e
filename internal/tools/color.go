package tools

import (
	"fmt"

	"github.com/visualix/visualix/internal/core"
)

func colorTools() []spec {
	return []spec{
		{
			name:        "adjust_brightness",
			category:    "color",
			description: "Adjusts the brightness of a video. Use positive values to brighten, negative to darken.",
			params: map[string]core.ParamSpec{
				"brightness": floatParam("Brightness adjustment (-100 to 100, 0 = no change)", -100, 100, 0),
			},
			build: func(name string, p core.Params) (string, error) {
				b, err := p.FloatIn(name, "brightness", 0, -100, 100)
				if err != nil {
					return "", err
				}
				return "eq=brightness=" + fmtF(b/100), nil
			},
		},
		{
			name:        "adjust_contrast",
			category:    "color",
			description: "Adjusts the contrast of a video. Values > 1 increase contrast, < 1 decrease contrast.",
			params: map[string]core.ParamSpec{
				"contrast": floatParam("Contrast multiplier (0.1 to 3.0, 1.0 = no change)", 0.1, 3.0, 1.0),
			},
			build: func(name string, p core.Params) (string, error) {
				c, err := p.FloatIn(name, "contrast", 1.0, 0.1, 3.0)
				if err != nil {
					return "", err
				}
				return "eq=contrast=" + fmtF(c), nil
			},
		},
		{
			name:        "adjust_saturation",
			category:    "color",
			description: "Adjusts the color saturation of a video. Higher values make colors more vivid.",
			params: map[string]core.ParamSpec{
				"saturation": floatParam("Saturation multiplier (0.0 to 2.0, 1.0 = no change, 0.0 = grayscale)", 0, 2.0, 1.0),
			},
			build: func(name string, p core.Params) (string, error) {
				s, err := p.FloatIn(name, "saturation", 1.0, 0, 2.0)
				if err != nil {
					return "", err
				}
				return "eq=saturation=" + fmtF(s), nil
			},
		},
		{
			name:        "adjust_hsv",
			category:    "color",
			description: "Adjusts Hue, Saturation, and Value (brightness) independently for fine color control.",
			params: map[string]core.ParamSpec{
				"hue_shift":  intParam("Hue shift in degrees (-180 to 180, 0 = no change)", -180, 180, 0),
				"saturation": floatParam("Saturation multiplier (0.0 to 2.0, 1.0 = no change)", 0, 2.0, 1.0),
				"value":      floatParam("Value/brightness multiplier (0.0 to 2.0, 1.0 = no change)", 0, 2.0, 1.0),
			},
			build: func(name string, p core.Params) (string, error) {
				h, err := p.IntIn(name, "hue_shift", 0, -180, 180)
				if err != nil {
					return "", err
				}
				s, err := p.FloatIn(name, "saturation", 1.0, 0, 2.0)
				if err != nil {
					return "", err
				}
				v, err := p.FloatIn(name, "value", 1.0, 0, 2.0)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("hue=h=%d:s=%s,colorchannelmixer=rr=%s:gg=%s:bb=%s",
					h, fmtF(s), fmtF(v), fmtF(v), fmtF(v)), nil
			},
		},
		{
			name:        "color_grading",
			category:    "color",
			description: "Professional color grading with separate control over shadows, midtones, and highlights.",
			params: map[string]core.ParamSpec{
				"shadows_gain":    floatParam("Shadows gain (0.0 to 2.0, 1.0 = no change)", 0, 2.0, 1.0),
				"midtones_gain":   floatParam("Midtones gain (0.0 to 2.0, 1.0 = no change)", 0, 2.0, 1.0),
				"highlights_gain": floatParam("Highlights gain (0.0 to 2.0, 1.0 = no change)", 0, 2.0, 1.0),
				"overall_gamma":   floatParam("Overall gamma correction (0.1 to 3.0, 1.0 = no change)", 0.1, 3.0, 1.0),
			},
			build: func(name string, p core.Params) (string, error) {
				sh, err := p.FloatIn(name, "shadows_gain", 1.0, 0, 2.0)
				if err != nil {
					return "", err
				}
				mid, err := p.FloatIn(name, "midtones_gain", 1.0, 0, 2.0)
				if err != nil {
					return "", err
				}
				hi, err := p.FloatIn(name, "highlights_gain", 1.0, 0, 2.0)
				if err != nil {
					return "", err
				}
				gamma, err := p.FloatIn(name, "overall_gamma", 1.0, 0.1, 3.0)
				if err != nil {
					return "", err
				}
				curve := fmt.Sprintf("0/0 0.25/%.3f 0.5/%.3f 0.75/%.3f 1/1",
					clamp(0.25*sh, 0, 1), clamp(0.5*mid, 0, 1), clamp(0.75*hi, 0, 1))
				return fmt.Sprintf("curves=all='%s',eq=gamma=%s", curve, fmtF(gamma)), nil
			},
		},
		{
			name:        "white_balance",
			category:    "color",
			description: "Corrects the color temperature of a video. Lower values look warmer, higher values cooler.",
			params: map[string]core.ParamSpec{
				"temperature": intParam("Target color temperature in Kelvin (2000 to 10000, 6500 = neutral daylight)", 2000, 10000, 6500),
				"mix":         floatParam("Blend with the original (0.0 to 1.0)", 0, 1.0, 1.0),
			},
			build: func(name string, p core.Params) (string, error) {
				k, err := p.IntIn(name, "temperature", 6500, 2000, 10000)
				if err != nil {
					return "", err
				}
				mix, err := p.FloatIn(name, "mix", 1.0, 0, 1.0)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("colortemperature=temperature=%d:mix=%s", k, fmtF(mix)), nil
			},
		},
		{
			name:        "curve_adjustment",
			category:    "color",
			description: "Applies a tone curve preset, for example to add contrast, lift shadows or give a cross-processed look.",
			params: map[string]core.ParamSpec{
				"preset": enumParam("Curve preset", "medium_contrast", curvePresets...),
			},
			build: func(name string, p core.Params) (string, error) {
				preset, err := p.Enum(name, "preset", "medium_contrast", curvePresets...)
				if err != nil {
					return "", err
				}
				return "curves=preset=" + preset, nil
			},
		},
	}
}

// curvePresets are the named tone curves ffmpeg's curves filter ships with.
var curvePresets = []string{
	"lighter", "darker", "increase_contrast", "medium_contrast", "strong_contrast",
	"linear_contrast", "vintage", "cross_process", "color_negative", "negative",
}
