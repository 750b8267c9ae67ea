package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mohammed-shakir/band-algebra/internal/cloudmask"
	"github.com/mohammed-shakir/band-algebra/internal/core/model"
	"github.com/mohammed-shakir/band-algebra/internal/raster"
	"github.com/mohammed-shakir/band-algebra/internal/spectral"
)

const maxBody = 1 << 20

// ErrBadRequest marks malformed input; handlers answer it with 400.
var ErrBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

// decode reads one JSON object and rejects unknown fields and trailing data.
func decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		return badRequest("read body: %v", err)
	}
	if len(body) > maxBody {
		return badRequest("body larger than %d bytes", maxBody)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("decode json: %v", err)
	}
	if dec.More() {
		return badRequest("trailing data after json object")
	}
	return nil
}

func rasterFrom(ref model.RasterRef) (raster.Raster, error) {
	if err := ref.Validate(); err != nil {
		return nil, badRequest("%v", err)
	}
	if ref.Image != "" {
		return raster.Load(strings.TrimSpace(ref.Image), ref.Bands...), nil
	}
	return raster.LoadCollection(strings.TrimSpace(ref.Collection), ref.Bands...), nil
}

// selectorField accepts "NDVI", ["NDVI","kernel"] or omission (all).
type selectorField []string

func (s *selectorField) UnmarshalJSON(raw []byte) error {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		*s = selectorField{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return fmt.Errorf("index: want a string or a list of strings")
	}
	*s = many
	return nil
}

func (s selectorField) selector() spectral.Selector {
	if len(s) == 0 {
		return spectral.All()
	}
	return spectral.Names(s...)
}

// sigmaField accepts a number or a formula over a and b.
type sigmaField struct{ spectral.Sigma }

func (s *sigmaField) UnmarshalJSON(raw []byte) error {
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		s.Sigma = spectral.SigmaValue(v)
		return nil
	}
	var expr string
	if err := json.Unmarshal(raw, &expr); err != nil {
		return fmt.Errorf("sigma: want a number or a formula string")
	}
	s.Sigma = spectral.ParseSigma(expr)
	return nil
}

type kernelBody struct {
	Type  string      `json:"type,omitempty"`
	Sigma *sigmaField `json:"sigma,omitempty"`
	P     *float64    `json:"p,omitempty"`
	C     *float64    `json:"c,omitempty"`
}

func (k *kernelBody) spec() spectral.KernelSpec {
	if k == nil {
		return spectral.KernelSpec{}
	}
	out := spectral.KernelSpec{Type: spectral.KernelType(k.Type), P: k.P, C: k.C}
	if k.Sigma != nil {
		out.Sigma = k.Sigma.Sigma
	}
	return out
}

type indicesBody struct {
	model.RasterRef
	Index  selectorField      `json:"index,omitempty"`
	Params map[string]float64 `json:"params,omitempty"`
	Kernel *kernelBody        `json:"kernel,omitempty"`
	Online bool               `json:"online,omitempty"`
}

func (b indicesBody) request() spectral.IndexRequest {
	return spectral.IndexRequest{
		Selector: b.Index.selector(),
		Params:   b.Params,
		Kernel:   b.Kernel.spec(),
		Online:   b.Online,
	}
}

type maskOptions struct {
	Method      *string  `json:"method,omitempty"`
	Prob        *float64 `json:"prob,omitempty"`
	MaskCirrus  *bool    `json:"maskCirrus,omitempty"`
	MaskShadows *bool    `json:"maskShadows,omitempty"`
	ScaledImage *bool    `json:"scaledImage,omitempty"`
	Dark        *float64 `json:"dark,omitempty"`
	CloudDist   *float64 `json:"cloudDist,omitempty"`
	Buffer      *float64 `json:"buffer,omitempty"`
	CDI         *float64 `json:"cdi,omitempty"`
}

// options overlays the set fields on the defaults.
func (m *maskOptions) options() cloudmask.Options {
	o := cloudmask.DefaultOptions()
	if m == nil {
		return o
	}
	if m.Method != nil {
		o.Method = cloudmask.Method(*m.Method)
	}
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setB := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setF(&o.Prob, m.Prob)
	setB(&o.MaskCirrus, m.MaskCirrus)
	setB(&o.MaskShadows, m.MaskShadows)
	setB(&o.ScaledImage, m.ScaledImage)
	setF(&o.Dark, m.Dark)
	setF(&o.CloudDist, m.CloudDist)
	setF(&o.Buffer, m.Buffer)
	o.CDI = m.CDI
	return o
}

type maskBody struct {
	model.RasterRef
	Options *maskOptions `json:"options,omitempty"`
}

type scaleBody struct {
	model.RasterRef
}

type resolveBody struct {
	model.RasterRef
}

type summaryBody struct {
	model.RasterRef
	Band   string       `json:"band,omitempty"`
	Index  string       `json:"index,omitempty"`
	Region model.Region `json:"region"`
	Res    *int         `json:"res,omitempty"`
	// Mask and Scale run the cloud mask and the scale/offset normalizer
	// before the reduction, in that order.
	Mask  *maskOptions `json:"mask,omitempty"`
	Scale bool         `json:"scale,omitempty"`
}

func (b summaryBody) validate() error {
	if b.Collection != "" {
		return badRequest("summaries reduce a single image, not a collection")
	}
	if (b.Band == "") == (b.Index == "") {
		return badRequest("set exactly one of band or index")
	}
	if err := b.Region.Validate(); err != nil {
		return badRequest("%v", err)
	}
	return nil
}
