// Package cloudmask builds cloud and shadow masks for the supported
// platforms and applies them to images and collections.
package cloudmask

import (
	"errors"
	"fmt"
)

type Method string

const (
	MethodCloudProb Method = "cloud_prob"
	MethodQA        Method = "qa"
)

var ErrInvalidOption = errors.New("invalid mask option")

// Options tune the mask. Method and the Sentinel-2 specific fields are ignored
// for bitmask platforms.
type Options struct {
	Method      Method
	Prob        float64
	MaskCirrus  bool
	MaskShadows bool
	ScaledImage bool
	Dark        float64
	CloudDist   float64
	Buffer      float64
	// CDI enables the cloud displacement refinement when set.
	CDI *float64
}

func DefaultOptions() Options {
	return Options{
		Method:      MethodCloudProb,
		Prob:        60,
		MaskCirrus:  true,
		MaskShadows: true,
		Dark:        0.15,
		CloudDist:   1000,
		Buffer:      250,
	}
}

func (o Options) Validate() error {
	switch o.Method {
	case MethodCloudProb, MethodQA:
	default:
		return fmt.Errorf("%w: method %q, want cloud_prob or qa", ErrInvalidOption, o.Method)
	}
	if o.Prob < 0 || o.Prob > 100 {
		return fmt.Errorf("%w: prob %v outside [0, 100]", ErrInvalidOption, o.Prob)
	}
	if o.Dark < 0 {
		return fmt.Errorf("%w: dark %v < 0", ErrInvalidOption, o.Dark)
	}
	if o.CloudDist <= 0 {
		return fmt.Errorf("%w: cloudDist %v <= 0", ErrInvalidOption, o.CloudDist)
	}
	if o.Buffer < 0 {
		return fmt.Errorf("%w: buffer %v < 0", ErrInvalidOption, o.Buffer)
	}
	if o.CDI != nil && (*o.CDI < -1 || *o.CDI > 1) {
		return fmt.Errorf("%w: cdi %v outside [-1, 1]", ErrInvalidOption, *o.CDI)
	}
	return nil
}
