// Package codectest provides shared test for codec backend implementations.
package codectest

import (
	"bytes"
	"io"
	"testing"

	"github.com/pion/animdecode/pkg/codec"
	"github.com/pion/animdecode/pkg/frame"
)

func assertNoPanic(t *testing.T, fn func() error, msg string) error {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("panic: %v: %s", r, msg)
		}
	}()
	return fn()
}

// BackendCloseTwiceTest checks that Close can be called twice, both on a
// backend that was never opened and on one that decoded data.
func BackendCloseTwiceTest(t *testing.T, c codec.BackendBuilder, data []byte) {
	b := c(codec.DefaultLimits())
	if err := assertNoPanic(t, b.Close, "on first Close() before Open()"); err != nil {
		t.Fatal(err)
	}
	if err := assertNoPanic(t, b.Close, "on second Close() before Open()"); err != nil {
		t.Fatal(err)
	}

	b = c(codec.DefaultLimits())
	if _, err := b.Open(bytes.NewReader(data)); err != nil {
		t.Fatal(err)
	}
	if _, err := b.NextFrame(); err != nil {
		t.Fatal(err)
	}
	if err := assertNoPanic(t, b.Close, "on first Close()"); err != nil {
		t.Fatal(err)
	}
	if err := assertNoPanic(t, b.Close, "on second Close()"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.NextFrame(); err == nil {
		t.Error("Expected NextFrame() after Close() to fail")
	}
}

// BackendContractTest decodes data and checks the properties every backend
// guarantees: deltas fit the canvas, Final is only set on the last delta,
// and io.EOF is sticky. It returns the header and the deltas.
func BackendContractTest(t *testing.T, c codec.BackendBuilder, data []byte) (codec.Header, []*frame.Delta) {
	b := c(codec.DefaultLimits())
	defer b.Close()

	hdr, err := b.Open(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if hdr.Width <= 0 || hdr.Height <= 0 {
		t.Fatalf("Invalid canvas size %dx%d", hdr.Width, hdr.Height)
	}
	if hdr.LoopCount < 0 {
		t.Errorf("Negative loop count %d", hdr.LoopCount)
	}

	var deltas []*frame.Delta
	for {
		d, err := b.NextFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextFrame() %d failed: %v", len(deltas), err)
		}
		if err := d.Validate(hdr.Width, hdr.Height); err != nil {
			t.Errorf("Frame %d: %v", len(deltas), err)
		}
		if len(deltas) > 0 && deltas[len(deltas)-1].Final {
			t.Errorf("Frame %d follows a final frame", len(deltas))
		}
		deltas = append(deltas, d)
	}
	if len(deltas) == 0 {
		t.Fatal("Expected at least one frame")
	}
	if hdr.FrameCount >= 0 && hdr.FrameCount != len(deltas) {
		t.Errorf("Header announced %d frames, decoded %d", hdr.FrameCount, len(deltas))
	}

	for i := 0; i < 2; i++ {
		if _, err := b.NextFrame(); err != io.EOF {
			t.Errorf("Expected io.EOF after the last frame, got %v", err)
		}
	}
	return hdr, deltas
}
