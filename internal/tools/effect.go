package tools

import (
	"fmt"
	"math"
	"strings"

	"github.com/visualix/visualix/internal/core"
)

func effectTools() []spec {
	return []spec{
		{
			name:        "apply_sepia",
			category:    "effect",
			description: "Applies a warm sepia tone effect to give video a vintage, old-fashioned appearance.",
			params: map[string]core.ParamSpec{
				"intensity": floatParam("Sepia effect intensity (0.0 to 1.0, 0.0 = no effect, 1.0 = full sepia)", 0, 1.0, 0.8),
			},
			build: func(name string, p core.Params) (string, error) {
				i, err := p.FloatIn(name, "intensity", 0.8, 0, 1.0)
				if err != nil {
					return "", err
				}
				return sepiaMixer(i), nil
			},
		},
		{
			name:        "apply_vintage",
			category:    "effect",
			description: "Creates a comprehensive vintage film look with sepia tones, vignetting, and grain.",
			params: map[string]core.ParamSpec{
				"sepia_intensity":   floatParam("Sepia tone intensity (0.0 to 1.0)", 0, 1.0, 0.6),
				"vignette_strength": floatParam("Vignette effect strength (0.0 to 1.0)", 0, 1.0, 0.4),
				"grain_amount":      floatParam("Film grain amount (0.0 to 1.0)", 0, 1.0, 0.3),
			},
			build: func(name string, p core.Params) (string, error) {
				sepia, err := p.FloatIn(name, "sepia_intensity", 0.6, 0, 1.0)
				if err != nil {
					return "", err
				}
				vig, err := p.FloatIn(name, "vignette_strength", 0.4, 0, 1.0)
				if err != nil {
					return "", err
				}
				grain, err := p.FloatIn(name, "grain_amount", 0.3, 0, 1.0)
				if err != nil {
					return "", err
				}
				parts := []string{sepiaMixer(sepia)}
				if vig > 0 {
					parts = append(parts, vignette(vig, 1.0))
				}
				if grain > 0 {
					parts = append(parts, fmt.Sprintf("noise=alls=%d:allf=t+u", int(math.Round(grain*40))))
				}
				return strings.Join(parts, ","), nil
			},
		},
		{
			name:        "add_vignette",
			category:    "effect",
			description: "Adds a vignette effect that darkens the edges of the video for artistic focus.",
			params: map[string]core.ParamSpec{
				"strength": floatParam("Vignette strength (0.0 to 1.0, higher = darker edges)", 0, 1.0, 0.5),
				"size":     floatParam("Vignette size (0.1 to 2.0, lower = larger vignette area)", 0.1, 2.0, 1.0),
			},
			build: func(name string, p core.Params) (string, error) {
				s, err := p.FloatIn(name, "strength", 0.5, 0, 1.0)
				if err != nil {
					return "", err
				}
				size, err := p.FloatIn(name, "size", 1.0, 0.1, 2.0)
				if err != nil {
					return "", err
				}
				return vignette(s, size), nil
			},
		},
		{
			name:        "add_film_grain",
			category:    "effect",
			description: "Adds realistic film grain texture to video for authentic film look.",
			params: map[string]core.ParamSpec{
				"amount": floatParam("Grain amount (0.0 to 1.0, higher = more visible grain)", 0, 1.0, 0.3),
				"size":   floatParam("Grain size (0.5 to 3.0, higher = coarser grain)", 0.5, 3.0, 1.0),
			},
			build: func(name string, p core.Params) (string, error) {
				amount, err := p.FloatIn(name, "amount", 0.3, 0, 1.0)
				if err != nil {
					return "", err
				}
				size, err := p.FloatIn(name, "size", 1.0, 0.5, 3.0)
				if err != nil {
					return "", err
				}
				strength := int(math.Round(clamp(amount*40*math.Sqrt(size), 0, 100)))
				return fmt.Sprintf("noise=alls=%d:allf=t+u", strength), nil
			},
		},
		{
			name:        "apply_retro",
			category:    "effect",
			description: "Creates a retro 80s/90s aesthetic with color shifts, glow effects, and stylized processing.",
			params: map[string]core.ParamSpec{
				"color_intensity": floatParam("Retro color shift intensity (0.0 to 1.0)", 0, 1.0, 0.7),
				"glow_amount":     floatParam("Glow effect amount (0.0 to 1.0)", 0, 1.0, 0.3),
				"contrast_boost":  floatParam("Contrast boost (0.0 to 1.0)", 0, 1.0, 0.4),
			},
			build: func(name string, p core.Params) (string, error) {
				color, err := p.FloatIn(name, "color_intensity", 0.7, 0, 1.0)
				if err != nil {
					return "", err
				}
				glow, err := p.FloatIn(name, "glow_amount", 0.3, 0, 1.0)
				if err != nil {
					return "", err
				}
				boost, err := p.FloatIn(name, "contrast_boost", 0.4, 0, 1.0)
				if err != nil {
					return "", err
				}
				grade := fmt.Sprintf("eq=contrast=%s:saturation=%s,hue=h=%s",
					fmtF(1+boost*0.5), fmtF(1+color*0.8), fmtF(math.Round(color*15)))
				if glow == 0 {
					return grade, nil
				}
				return fmt.Sprintf("%s,split[base][halo];[halo]gblur=sigma=12[glow];[base][glow]blend=all_mode=screen:all_opacity=%s",
					grade, fmtF(glow)), nil
			},
		},
		{
			name:        "apply_black_white",
			category:    "effect",
			description: "Converts the video to black and white with optional contrast adjustment.",
			params: map[string]core.ParamSpec{
				"contrast": floatParam("Contrast multiplier (0.1 to 3.0, 1.0 = no change)", 0.1, 3.0, 1.0),
			},
			build: func(name string, p core.Params) (string, error) {
				c, err := p.FloatIn(name, "contrast", 1.0, 0.1, 3.0)
				if err != nil {
					return "", err
				}
				if c == 1.0 {
					return "hue=s=0", nil
				}
				return "hue=s=0,eq=contrast=" + fmtF(c), nil
			},
		},
		{
			name:        "apply_color_pop",
			category:    "effect",
			description: "Makes colors punchier with extra saturation, a little contrast and light sharpening.",
			params: map[string]core.ParamSpec{
				"intensity": floatParam("Effect intensity (0.0 to 2.0)", 0, 2.0, 1.0),
			},
			build: func(name string, p core.Params) (string, error) {
				i, err := p.FloatIn(name, "intensity", 1.0, 0, 2.0)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("eq=saturation=%s:contrast=%s,unsharp=5:5:%s",
					fmtF(1+0.5*i), fmtF(1+0.1*i), fmtF(0.5*i)), nil
			},
		},
	}
}

// sepiaMixer blends the identity matrix with the classic sepia matrix.
func sepiaMixer(intensity float64) string {
	sepia := [9]float64{0.393, 0.769, 0.189, 0.349, 0.686, 0.168, 0.272, 0.534, 0.131}
	identity := [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	keys := [9]string{"rr", "rg", "rb", "gr", "gg", "gb", "br", "bg", "bb"}

	parts := make([]string, len(keys))
	for i, k := range keys {
		v := identity[i]*(1-intensity) + sepia[i]*intensity
		parts[i] = fmt.Sprintf("%s=%.3f", k, v)
	}
	return "colorchannelmixer=" + strings.Join(parts, ":")
}

// vignette maps strength and size onto the vignette filter's lens angle.
func vignette(strength, size float64) string {
	angle := clamp(strength*(math.Pi/2)/size, 0.01, math.Pi/2)
	return fmt.Sprintf("vignette=angle=%.4f", angle)
}
