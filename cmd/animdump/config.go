package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/pion/animdecode"
	"github.com/pion/animdecode/pkg/codec"
	"github.com/pion/animdecode/pkg/io/video"
)

// Config is the content of an animdump TOML file.
//
//	capability = 28
//	format = "webp"
//	repeat = 2
//	min_frame_duration = "20ms"
//
//	[limits]
//	max_width = 4096
//	max_frames = 500
//
//	[[transforms]]
//	name = "rounded_corners"
//	radius = 12
type Config struct {
	Capability       *int         `toml:"capability"`
	Format           string       `toml:"format"`
	Repeat           *int         `toml:"repeat"`
	MinFrameDuration duration     `toml:"min_frame_duration"`
	Limits           LimitsConfig `toml:"limits"`
	Transforms       []Transform  `toml:"transforms"`
}

// LimitsConfig overrides codec.DefaultLimits. Zero fields keep the default.
type LimitsConfig struct {
	MaxWidth  int   `toml:"max_width"`
	MaxHeight int   `toml:"max_height"`
	MaxPixels int64 `toml:"max_pixels"`
	MaxFrames int   `toml:"max_frames"`
	MaxBytes  int64 `toml:"max_bytes"`
}

// Transform names a built-in transformation.
type Transform struct {
	Name   string `toml:"name"`
	Radius int    `toml:"radius"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func loadConfig(path string) (*Config, error) {
	var c Config
	if path == "" {
		return &c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	md, err := toml.Decode(string(b), &c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("%s: unknown keys %v", path, undecoded)
	}
	return &c, nil
}

// parseTransforms parses a comma separated list such as
// "invert,rounded_corners:8".
func parseTransforms(s string) ([]Transform, error) {
	var out []Transform
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		name, arg, hasArg := strings.Cut(field, ":")
		t := Transform{Name: name}
		if hasArg {
			if _, err := fmt.Sscanf(arg, "%d", &t.Radius); err != nil {
				return nil, fmt.Errorf("transform %q: %w", field, err)
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func (t Transform) build() (video.TransformFunc, error) {
	switch t.Name {
	case "identity":
		return video.Identity, nil
	case "invert":
		return video.Invert(), nil
	case "grayscale":
		return video.Grayscale(), nil
	case "rounded_corners":
		if t.Radius < 0 {
			return nil, fmt.Errorf("transform %s: negative radius %d", t.Name, t.Radius)
		}
		return video.RoundedCorners(t.Radius), nil
	default:
		return nil, fmt.Errorf("unknown transform %q", t.Name)
	}
}

// options turns c into decoder options.
func (c *Config) options() ([]animdecode.DecoderOption, error) {
	var opts []animdecode.DecoderOption

	if c.Capability != nil {
		opts = append(opts, animdecode.WithCapabilityLevel(*c.Capability))
	}
	if c.Format != "" {
		f, err := codec.ParseFormat(c.Format)
		if err != nil {
			return nil, err
		}
		opts = append(opts, animdecode.WithFormat(f))
	}
	if c.Repeat != nil {
		opts = append(opts, animdecode.WithRepeatCount(*c.Repeat))
	}
	if c.MinFrameDuration.Duration > 0 {
		opts = append(opts, animdecode.WithMinFrameDuration(c.MinFrameDuration.Duration))
	}

	limits := codec.DefaultLimits()
	if c.Limits.MaxWidth > 0 {
		limits.MaxWidth = c.Limits.MaxWidth
	}
	if c.Limits.MaxHeight > 0 {
		limits.MaxHeight = c.Limits.MaxHeight
	}
	if c.Limits.MaxPixels > 0 {
		limits.MaxPixels = c.Limits.MaxPixels
	}
	if c.Limits.MaxFrames > 0 {
		limits.MaxFrames = c.Limits.MaxFrames
	}
	if c.Limits.MaxBytes > 0 {
		limits.MaxBytes = c.Limits.MaxBytes
	}
	opts = append(opts, animdecode.WithLimits(limits))

	if len(c.Transforms) != 0 {
		transforms := make([]video.TransformFunc, 0, len(c.Transforms))
		for _, t := range c.Transforms {
			fn, err := t.build()
			if err != nil {
				return nil, err
			}
			transforms = append(transforms, fn)
		}
		opts = append(opts, animdecode.WithTransform(video.Merge(transforms...)))
	}
	return opts, nil
}
