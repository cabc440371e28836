// Command animdump decodes an animated GIF, HEIF or WebP file and writes its
// frames as PNG files.
//
//	animdump -config animdump.toml -transform rounded_corners:8 -out frames anim.webp
//	animdump -at 1.5s -out still.png anim.gif
//	animdump -watch -out frames anim.gif
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/pion/animdecode"
	"github.com/pion/animdecode/internal/logging"
	"github.com/pion/animdecode/pkg/io/video"
)

var logger = logging.NewLogger("animdump")

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "animdump:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("animdump", flag.ContinueOnError)
	configPath := fs.String("config", "", "TOML configuration file")
	capability := fs.Int("capability", 0, "host capability level")
	format := fs.String("format", "", "source format (gif, heif or webp), sniffed when empty")
	repeat := fs.Int("repeat", 0, "repeat count override, -1 repeats forever")
	transforms := fs.String("transform", "", "comma separated transforms: identity, invert, grayscale, rounded_corners:RADIUS")
	out := fs.String("out", "frames", "output directory, or PNG file with -at")
	at := fs.Duration("at", -1, "write only the frame shown at this time")
	play := fs.Bool("play", false, "play the animation in real time instead of writing frames")
	watchInput := fs.Bool("watch", false, "write the frames again each time FILE changes")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: animdump [flags] FILE")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected one input file, got %d", fs.NArg())
	}

	c, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	// Flags win over the configuration file.
	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "capability":
			c.Capability = capability
		case "format":
			c.Format = *format
		case "repeat":
			c.Repeat = repeat
		case "transform":
			c.Transforms, flagErr = parseTransforms(*transforms)
		}
	})
	if flagErr != nil {
		return flagErr
	}
	opts, err := c.options()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	path := fs.Arg(0)
	if *play {
		seq, err := decodeFile(ctx, path, opts)
		if err != nil {
			return err
		}
		return playback(ctx, seq)
	}

	write := func() error {
		seq, err := decodeFile(ctx, path, opts)
		if err != nil {
			return err
		}
		if *at >= 0 {
			return writePNG(*out, seq.BitmapAt(*at))
		}
		return dump(*out, seq)
	}
	if err := write(); err != nil {
		return err
	}
	if *watchInput {
		return watch(ctx, path, watchDebounce, write)
	}
	return nil
}

func decodeFile(ctx context.Context, path string, opts []animdecode.DecoderOption) (*animdecode.Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	start := time.Now()
	seq, err := animdecode.Decode(ctx, f, opts...)
	if err != nil {
		return nil, err
	}
	logger.Infof("%s: %dx%d, %d frames, %v per loop, loop count %d, decoded in %v",
		path, seq.Width(), seq.Height(), seq.Len(), seq.TotalDuration(), seq.LoopCount(), time.Since(start))
	return seq, nil
}

// playback prints one line per displayed frame, paced by the frame
// durations, until the animation ends or ctx is done.
func playback(ctx context.Context, seq *animdecode.Sequence) error {
	start := time.Now()
	r := video.Throttle(seq.NewReader(animdecode.ReaderOptions{
		OnStart: func() { logger.Info("animation started") },
		OnEnd:   func() { logger.Infof("animation ended after %v", time.Since(start)) },
	}))
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		img, delay, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("%v\t%d\t%v\t%v\n", time.Since(start).Round(time.Millisecond), n, img.Bounds().Size(), delay)
	}
}

// dump writes every frame of seq into dir as frame-NNN.png and prints one
// line per frame with its duration.
func dump(dir string, seq *animdecode.Sequence) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i := 0; i < seq.Len(); i++ {
		name := filepath.Join(dir, fmt.Sprintf("frame-%03d.png", i))
		if err := writePNG(name, seq.Frame(i).Image()); err != nil {
			return err
		}
		fmt.Printf("%s\t%v\n", name, seq.Duration(i))
	}
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
