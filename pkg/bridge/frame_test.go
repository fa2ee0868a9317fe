package bridge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"testing"
)

func bufReadFull(r io.Reader) readFullFunc {
	return ctxReadFull(context.Background(), r)
}

func TestReadFrameResyncsToHeader(t *testing.T) {
	want := []byte{0x01, 0x00, 0xA4}
	raw := bytes.NewBuffer([]byte{
		0x00, 0x48, 0x22, // noise, including a lone first header byte
		frameHeader[0], frameHeader[0], frameHeader[1],
		0x00, 0x03,
		0x01, 0x00, 0xA4,
	})

	got, err := readFrame(bufReadFull(raw))
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("payload mismatch: got %x want %x", got, want)
	}
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	raw := bytes.NewBuffer([]byte{
		frameHeader[0], frameHeader[1],
		0x00, 0x00,
	})

	_, err := readFrame(bufReadFull(raw))
	if err == nil {
		t.Fatalf("expected error for zero-length frame, got nil")
	}
	if !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
}

func TestEncodeFramePayloadTooLarge(t *testing.T) {
	payload := make([]byte, math.MaxUint16+1)
	if _, err := encodeFrame(payload); err == nil {
		t.Fatalf("expected payload size error, got nil")
	}
}

func TestEncodeFrameAndReadFrameRoundTrip(t *testing.T) {
	payload := []byte{0x02, 0x90, 0x00}
	frame, err := encodeFrame(payload)
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	if !bytes.Equal(frame[:4], []byte{0x48, 0x43, 0x00, 0x03}) {
		t.Fatalf("unexpected frame prefix % X", frame[:4])
	}

	got, err := readFrame(bufReadFull(bytes.NewReader(frame)))
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %x want %x", got, payload)
	}
}

func TestReadFramePayloadEOF(t *testing.T) {
	raw := bytes.NewBuffer([]byte{
		frameHeader[0], frameHeader[1],
		0x00, 0x04,
		0x01, 0x02,
	})

	_, err := readFrame(bufReadFull(raw))
	if err == nil {
		t.Fatalf("expected payload read error, got nil")
	}
	if errors.Is(err, io.EOF) {
		t.Fatalf("expected wrapped error, got raw io.EOF")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestReadFrameCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := readFrame(ctxReadFull(ctx, bytes.NewReader([]byte{0x48, 0x43, 0x00, 0x01, 0x01})))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
