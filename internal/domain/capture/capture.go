// Package capture abstracts the device-side item capture paths. The barcode
// decoder and camera are external collaborators running in the browser; the
// frontend only receives their single result, either a decoded code string
// or an image payload.
package capture

import "context"

// Kind distinguishes the capture variants.
type Kind string

const (
	KindBarcode Kind = "barcode"
	KindImage   Kind = "image"
)

// Result is the outcome of one capture. Exactly two variants exist:
// Barcode and Image.
type Result interface {
	Kind() Kind
}

// Barcode is a decoded EAN code from the barcode scanner.
type Barcode struct {
	Code string
}

func (Barcode) Kind() Kind { return KindBarcode }

// Image is a camera snapshot, data-URL encoded.
type Image struct {
	Data string
}

func (Image) Kind() Kind { return KindImage }

// Source yields exactly one capture result or failure. Page controllers
// depend on this interface rather than on a specific device library.
type Source interface {
	Capture(ctx context.Context) (Result, error)
}

type staticSource struct {
	res Result
}

func (s staticSource) Capture(context.Context) (Result, error) { return s.res, nil }

// Static wraps an already-obtained result as a Source. Web handlers use it
// for results posted by the browser-side adapters.
func Static(res Result) Source {
	return staticSource{res: res}
}
