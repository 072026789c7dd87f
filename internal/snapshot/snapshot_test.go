package snapshot

import (
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMailbox_Overwrite(t *testing.T) {
	m := NewMailbox()
	ts := time.Now()

	m.Publish(&Frame{Seq: 1, Timestamp: ts})
	m.Publish(&Frame{Seq: 2, Timestamp: ts})
	m.Publish(&Frame{Seq: 3, Timestamp: ts})

	if got := m.Next(); got == nil || got.Seq != 3 {
		t.Fatalf("Next() = %+v, want seq 3", got)
	}

	published, dropped := m.Stats()
	if published != 3 || dropped != 2 {
		t.Errorf("Stats() = (%d, %d), want (3, 2)", published, dropped)
	}
}

func TestMailbox_BlocksUntilPublish(t *testing.T) {
	m := NewMailbox()

	got := make(chan *Frame)
	go func() { got <- m.Next() }()

	select {
	case f := <-got:
		t.Fatalf("Next() returned %+v before publish", f)
	case <-time.After(20 * time.Millisecond):
	}

	m.Publish(&Frame{Seq: 7})
	select {
	case f := <-got:
		if f == nil || f.Seq != 7 {
			t.Errorf("Next() = %+v, want seq 7", f)
		}
	case <-time.After(time.Second):
		t.Fatal("Next() did not wake after publish")
	}
}

func TestMailbox_CloseWakesConsumer(t *testing.T) {
	m := NewMailbox()

	var wg sync.WaitGroup
	wg.Add(1)
	var got *Frame
	go func() {
		defer wg.Done()
		got = m.Next()
	}()

	time.Sleep(10 * time.Millisecond)
	m.Close()
	m.Close()
	wg.Wait()

	if got != nil {
		t.Errorf("Next() after Close = %+v, want nil", got)
	}

	m.Publish(&Frame{Seq: 1})
	if f := m.Next(); f != nil {
		t.Errorf("Next() on closed mailbox = %+v, want nil", f)
	}
}

func TestMailbox_DrainsOnClose(t *testing.T) {
	m := NewMailbox()
	m.Publish(&Frame{Seq: 5})
	m.Close()

	if f := m.Next(); f == nil || f.Seq != 5 {
		t.Fatalf("Next() after Close = %+v, want pending seq 5", f)
	}
	if f := m.Next(); f != nil {
		t.Errorf("second Next() = %+v, want nil", f)
	}
}

func TestCopyFrame_Detached(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	f := CopyFrame(1, time.Now(), 1, 1, buf)
	buf[0] = 99
	if f.Data[0] != 1 {
		t.Errorf("frame shares memory with capture buffer")
	}
}

func TestSaver_PNG(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	s, err := NewSaver(dir, "png", 0)
	if err != nil {
		t.Fatalf("NewSaver() error = %v", err)
	}

	data := []byte{
		255, 0, 0, 255, 0, 255, 0, 255,
		0, 0, 255, 255, 255, 255, 255, 255,
	}
	ts := time.Date(2025, 11, 5, 23, 45, 17, 123e6, time.UTC)
	path, err := s.SaveFrame(&Frame{Seq: 42, Timestamp: ts, Width: 2, Height: 2, Data: data})
	if err != nil {
		t.Fatalf("SaveFrame() error = %v", err)
	}
	if filepath.Base(path) != "frame_000042_20251105_234517.123.png" {
		t.Errorf("path = %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	r, g, b, a := img.At(1, 0).RGBA()
	if r != 0 || g != 0xffff || b != 0 || a != 0xffff {
		t.Errorf("pixel (1,0) = %04x %04x %04x %04x, want green", r, g, b, a)
	}

	if saved, dropped := s.Stats(); saved != 1 || dropped != 0 {
		t.Errorf("Stats() = (%d, %d), want (1, 0)", saved, dropped)
	}
}

func TestSaver_JPEG(t *testing.T) {
	s, err := NewSaver(t.TempDir(), "jpeg", 80)
	if err != nil {
		t.Fatalf("NewSaver() error = %v", err)
	}

	data := make([]byte, 8*8*4)
	path, err := s.SaveFrame(&Frame{Seq: 1, Timestamp: time.Now(), Width: 8, Height: 8, Data: data})
	if err != nil {
		t.Fatalf("SaveFrame() error = %v", err)
	}
	if !strings.HasSuffix(path, ".jpeg") {
		t.Errorf("path = %s, want .jpeg suffix", path)
	}
}

func TestSaver_Errors(t *testing.T) {
	if _, err := NewSaver(t.TempDir(), "bmp", 0); err == nil {
		t.Error("NewSaver(bmp) error = nil, want error")
	}

	s, err := NewSaver(t.TempDir(), "png", 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveFrame(&Frame{Width: 2, Height: 2, Data: make([]byte, 15)}); err == nil {
		t.Error("SaveFrame(short) error = nil, want error")
	}
	if _, dropped := s.Stats(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}
