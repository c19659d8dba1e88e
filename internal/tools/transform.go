package tools

import (
	"fmt"
	"math"

	"github.com/visualix/visualix/internal/core"
)

func transformTools() []spec {
	return []spec{
		{
			name:        "resize_video",
			category:    "transform",
			description: "Resizes video to specified dimensions or scale factor while maintaining aspect ratio if desired.",
			params: map[string]core.ParamSpec{
				"width":           noDefaultInt("Target width in pixels (optional if using scale)", 1, 4096),
				"height":          noDefaultInt("Target height in pixels (optional if using scale)", 1, 4096),
				"scale":           noDefaultFloat("Scale factor (0.1 to 4.0, overrides width/height if specified)", 0.1, 4.0),
				"maintain_aspect": boolParam("Whether to maintain aspect ratio", true),
			},
			build: buildResize,
		},
		{
			name:        "rotate_video",
			category:    "transform",
			description: "Rotates video by specified angle. Supports 90-degree increments for perfect rotation or any angle.",
			params: map[string]core.ParamSpec{
				"angle":  floatParam("Rotation angle in degrees (positive = clockwise)", -360, 360, 90),
				"expand": boolParam("Whether to expand image to fit full rotated content", true),
			},
			build: buildRotate,
		},
		{
			name:        "crop_video",
			category:    "transform",
			description: "Crops video to specified region using pixel coordinates.",
			params: map[string]core.ParamSpec{
				"x":      intParam("X coordinate of top-left corner (pixels)", 0, 8192, 0),
				"y":      intParam("Y coordinate of top-left corner (pixels)", 0, 8192, 0),
				"width":  noDefaultInt("Crop width in pixels (required)", 1, 0),
				"height": noDefaultInt("Crop height in pixels (required)", 1, 0),
			},
			build: func(name string, p core.Params) (string, error) {
				x, err := p.IntIn(name, "x", 0, 0, 8192)
				if err != nil {
					return "", err
				}
				y, err := p.IntIn(name, "y", 0, 0, 8192)
				if err != nil {
					return "", err
				}
				w, err := p.RequireInt(name, "width")
				if err != nil {
					return "", err
				}
				h, err := p.RequireInt(name, "height")
				if err != nil {
					return "", err
				}
				if w < 1 || h < 1 {
					return "", core.ErrInvalidParameter(name, "width", "crop width and height must be positive")
				}
				return fmt.Sprintf("crop=%d:%d:%d:%d", w, h, x, y), nil
			},
		},
		{
			name:        "flip_video",
			category:    "transform",
			description: "Flips video horizontally, vertically, or both. Good for mirror effects or orientation correction.",
			params: map[string]core.ParamSpec{
				"direction": enumParam("Flip direction: 'horizontal', 'vertical', or 'both'", "horizontal", "horizontal", "vertical", "both"),
			},
			build: func(name string, p core.Params) (string, error) {
				dir, err := p.Enum(name, "direction", "horizontal", "horizontal", "vertical", "both")
				if err != nil {
					return "", err
				}
				switch dir {
				case "vertical":
					return "vflip", nil
				case "both":
					return "hflip,vflip", nil
				default:
					return "hflip", nil
				}
			},
		},
		{
			name:        "apply_perspective",
			category:    "transform",
			description: "Applies perspective transformation to correct angle or create artistic perspective effects.",
			params: map[string]core.ParamSpec{
				"corners": {
					Type:        core.ParamList,
					Description: "Four corner points [[x1,y1],[x2,y2],[x3,y3],[x4,y4]] in clockwise order",
				},
				"output_width":  noDefaultInt("Output width (optional, defaults to original)", 1, 4096),
				"output_height": noDefaultInt("Output height (optional, defaults to original)", 1, 4096),
			},
			build: buildPerspective,
		},
		{
			name:        "apply_stabilization",
			category:    "transform",
			description: "Reduces camera shake by estimating and compensating frame-to-frame motion.",
			params: map[string]core.ParamSpec{
				"search_range": intParam("Maximum motion search range in pixels (4 to 64)", 4, 64, 16),
				"edge":         enumParam("How to fill uncovered borders", "mirror", "blank", "original", "clamp", "mirror"),
			},
			build: func(name string, p core.Params) (string, error) {
				r, err := p.IntIn(name, "search_range", 16, 4, 64)
				if err != nil {
					return "", err
				}
				edge, err := p.Enum(name, "edge", "mirror", "blank", "original", "clamp", "mirror")
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("deshake=rx=%d:ry=%d:edge=%s", r, r, edge), nil
			},
		},
	}
}

func buildResize(name string, p core.Params) (string, error) {
	keep, err := p.Bool(name, "maintain_aspect", true)
	if err != nil {
		return "", err
	}
	scale, hasScale, err := p.OptionalFloat(name, "scale")
	if err != nil {
		return "", err
	}
	if hasScale {
		if scale < 0.1 || scale > 4.0 {
			return "", core.ErrInvalidParameter(name, "scale", fmt.Sprintf("must be between 0.1 and 4, got %g", scale))
		}
		s := fmtF(scale)
		return fmt.Sprintf("scale=trunc(iw*%s/2)*2:trunc(ih*%s/2)*2", s, s), nil
	}

	w, hasW, err := p.OptionalInt(name, "width")
	if err != nil {
		return "", err
	}
	h, hasH, err := p.OptionalInt(name, "height")
	if err != nil {
		return "", err
	}
	if hasW && (w < 1 || w > 4096) {
		return "", core.ErrInvalidParameter(name, "width", fmt.Sprintf("must be between 1 and 4096, got %d", w))
	}
	if hasH && (h < 1 || h > 4096) {
		return "", core.ErrInvalidParameter(name, "height", fmt.Sprintf("must be between 1 and 4096, got %d", h))
	}

	switch {
	case hasW && hasH && keep:
		return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,scale=trunc(iw/2)*2:trunc(ih/2)*2", w, h), nil
	case hasW && hasH:
		return fmt.Sprintf("scale=%d:%d", w, h), nil
	case hasW:
		return fmt.Sprintf("scale=%d:-2", w), nil
	case hasH:
		return fmt.Sprintf("scale=-2:%d", h), nil
	}
	return "", core.ErrInvalidParameter(name, "scale", "one of width, height or scale is required")
}

func buildRotate(name string, p core.Params) (string, error) {
	angle, err := p.FloatIn(name, "angle", 90, -360, 360)
	if err != nil {
		return "", err
	}
	expand, err := p.Bool(name, "expand", true)
	if err != nil {
		return "", err
	}

	norm := math.Mod(angle, 360)
	if norm < 0 {
		norm += 360
	}
	switch norm {
	case 0:
		return "null", nil
	case 90:
		return "transpose=clock", nil
	case 180:
		return "hflip,vflip", nil
	case 270:
		return "transpose=cclock", nil
	}

	rad := fmt.Sprintf("%.6f", angle*math.Pi/180)
	if expand {
		return fmt.Sprintf("rotate=%s:ow=rotw(%s):oh=roth(%s):fillcolor=black", rad, rad, rad), nil
	}
	return fmt.Sprintf("rotate=%s:fillcolor=black", rad), nil
}

func buildPerspective(name string, p core.Params) (string, error) {
	corners, err := p.PointList(name, "corners", 4)
	if err != nil {
		return "", err
	}
	// Corners arrive clockwise (TL, TR, BR, BL); the filter wants TL, TR, BL, BR.
	tl, tr, br, bl := corners[0], corners[1], corners[2], corners[3]
	filter := fmt.Sprintf("perspective=x0=%s:y0=%s:x1=%s:y1=%s:x2=%s:y2=%s:x3=%s:y3=%s",
		fmtF(tl[0]), fmtF(tl[1]), fmtF(tr[0]), fmtF(tr[1]),
		fmtF(bl[0]), fmtF(bl[1]), fmtF(br[0]), fmtF(br[1]))

	w, hasW, err := p.OptionalInt(name, "output_width")
	if err != nil {
		return "", err
	}
	h, hasH, err := p.OptionalInt(name, "output_height")
	if err != nil {
		return "", err
	}
	switch {
	case hasW && hasH:
		filter += fmt.Sprintf(",scale=%d:%d", w, h)
	case hasW:
		filter += fmt.Sprintf(",scale=%d:-2", w)
	case hasH:
		filter += fmt.Sprintf(",scale=-2:%d", h)
	}
	return filter, nil
}
