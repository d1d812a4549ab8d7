package evidence

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/smagulov/fieldtask/internal/models"
)

const jpegQuality = 80

// Encoder turns captured binary files into self-contained data-URI strings
// that embed directly into the session JSON — no external reference, no
// separate upload step. Images are downscaled first so an encoded photo
// stays cache-friendly.
type Encoder struct {
	maxDim int // longest edge in pixels, 0 = keep original size
}

func NewEncoder(maxDim int) *Encoder {
	return &Encoder{maxDim: maxDim}
}

// EncodeFile encodes one file. Decodable images are re-oriented, fitted to
// maxDim and re-encoded as JPEG; anything else is embedded verbatim with a
// sniffed MIME type.
func (e *Encoder) EncodeFile(path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return e.encodeRaw(path)
	}

	if e.maxDim > 0 {
		bounds := img.Bounds()
		if bounds.Dx() > e.maxDim || bounds.Dy() > e.maxDim {
			img = imaging.Fit(img, e.maxDim, e.maxDim, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", path, err)
	}

	return dataURI("image/jpeg", buf.Bytes()), nil
}

func (e *Encoder) encodeRaw(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return dataURI(http.DetectContentType(raw), raw), nil
}

// EncodeAll encodes the files concurrently and returns the results in input
// order. One unreadable file fails the whole batch; partial evidence is
// worse than a retryable error at the capture step.
func (e *Encoder) EncodeAll(paths []string) ([]string, error) {
	results := make([]string, len(paths))
	errs := make([]error, len(paths))

	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			results[i], errs[i] = e.EncodeFile(path)
		}(i, path)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// AppendCapped appends items onto a photo sequence and truncates the result
// to the photo cap. Oldest entries are retained; the excess newest entries
// are silently dropped — the defined policy, not a failure.
func AppendCapped(dst []string, items ...string) []string {
	out := append(append([]string{}, dst...), items...)
	if len(out) > models.MaxPhotos {
		out = out[:models.MaxPhotos]
	}
	return out
}

func dataURI(mime string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}
