package printer

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func TestEncoder_Image(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 2))
	for x := 0; x < 10; x++ {
		img.Set(x, 0, color.White)
		img.Set(x, 1, color.White)
	}
	img.Set(0, 0, color.Black)
	img.Set(9, 1, color.Black)

	e := NewEncoder()
	e.Image(img, 0)
	got := e.Bytes()

	header := []byte{GS, 'v', '0', 0, 2, 0, 2, 0}
	if !bytes.HasPrefix(got, header) {
		t.Fatalf("Expected GS v 0 header %v, got %v", header, got[:len(header)])
	}
	data := got[len(header):]
	want := []byte{0x80, 0x00, 0x00, 0x40}
	if !bytes.Equal(data, want) {
		t.Errorf("Expected bitmap %v, got %v", want, data)
	}
}

func TestEncoder_Bands(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, bandHeight+10))

	e := NewEncoder()
	e.Image(img, 0)

	if n := bytes.Count(e.Bytes(), []byte{GS, 'v', '0'}); n != 2 {
		t.Errorf("Expected 2 raster bands, got %d", n)
	}
}

func TestEncoder_ScalesToHead(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 800, 20))

	e := NewEncoder()
	e.Image(img, 576)

	got := e.Bytes()
	if got[4] != 576/8 || got[5] != 0 {
		t.Errorf("Expected %d bytes per line, got %d", 576/8, int(got[4])|int(got[5])<<8)
	}
}

func TestEncode_Framing(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 1))
	data := Encode(img, 0)

	if !bytes.HasPrefix(data, []byte{ESC, '@'}) {
		t.Error("Expected job to start with initialize")
	}
	if !bytes.HasSuffix(data, []byte{ESC, 'd', 4, GS, 'V', 1}) {
		t.Errorf("Expected feed and partial cut at the end, got %v", data[len(data)-6:])
	}
}
