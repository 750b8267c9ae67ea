package cloudmask

import (
	"github.com/mohammed-shakir/band-algebra/internal/graph"
	"github.com/mohammed-shakir/band-algebra/internal/platform"
	"github.com/mohammed-shakir/band-algebra/internal/raster"
)

const (
	CloudProbabilityCollection = "COPERNICUS/S2_CLOUD_PROBABILITY"
	TOACollection              = "COPERNICUS/S2_HARMONIZED"

	sceneKey     = "system:index"
	cloudProbKey = "cloud_mask"

	qaBand    = "QA60"
	sclBand   = "SCL"
	nirBand   = "B8"
	sclWater  = 6
	qaCloud   = 10
	qaCirrus  = 11
	erosionM  = 20.0
	shadowRes = 10.0
)

// s2Pipeline masks Sentinel-2 scenes in stages: classify, optional CDI
// refinement, optional shadow projection, morphological cleanup, apply.
type s2Pipeline struct {
	opts Options
	desc platform.Descriptor
}

// run attaches the cloud probability scene first when needed. A single image
// goes through the same join as a collection.
func (p s2Pipeline) run(r raster.Raster) raster.Raster {
	if p.opts.Method != MethodCloudProb {
		return raster.Apply(r, p.maskImage)
	}
	probs := raster.LoadCollection(CloudProbabilityCollection, "probability")
	return raster.Lift(r, func(c *raster.Collection) *raster.Collection {
		return c.JoinSaveFirst(probs, sceneKey, cloudProbKey).Map(p.maskImage)
	})
}

func (p s2Pipeline) maskImage(img *raster.Image) *raster.Image {
	cloud := p.classify(img)
	if p.opts.CDI != nil {
		cloud = cloud.And(p.displacement(img).Lt(raster.Scalar(*p.opts.CDI)))
	}
	combined := cloud
	if p.opts.MaskShadows {
		combined = combined.Or(p.shadows(img, cloud))
	}
	combined = combined.FocalMin(erosionM, "meters").FocalMax(p.opts.Buffer, "meters")
	return img.UpdateMask(combined.Not())
}

func (p s2Pipeline) classify(img *raster.Image) *raster.Image {
	if p.opts.Method == MethodCloudProb {
		return img.GetImage(cloudProbKey).Select("probability").Gte(raster.Scalar(p.opts.Prob))
	}
	qa := img.Select(qaBand)
	cloud := qa.BitwiseAnd(1 << qaCloud).Neq(raster.Scalar(0))
	if p.opts.MaskCirrus {
		cloud = cloud.Or(qa.BitwiseAnd(1 << qaCirrus).Neq(raster.Scalar(0)))
	}
	return cloud
}

// displacement computes the cloud displacement index from the top of
// atmosphere scene sharing img's scene id.
func (p s2Pipeline) displacement(img *raster.Image) *raster.Image {
	toa := raster.LoadCollection(TOACollection).FilterEq(sceneKey, img.Get(sceneKey)).First()
	return raster.FromNode(graph.CloudDisplacementIndex(toa.Node()), "cdi")
}

// shadows projects cloud along the solar azimuth and keeps dark, non-water
// pixels it reaches.
func (p s2Pipeline) shadows(img, cloud *raster.Image) *raster.Image {
	threshold := p.opts.Dark
	if !p.opts.ScaledImage {
		threshold *= 1e4
	}
	dark := img.Select(nirBand).Lt(raster.Scalar(threshold))
	if p.desc.SurfaceReflectance {
		dark = dark.Multiply(img.Select(sclBand).Neq(raster.Scalar(sclWater)))
	}
	azimuth := raster.Scalar(90).Subtract(img.Get("MEAN_SOLAR_AZIMUTH_ANGLE"))
	projection := cloud.DirectionalDistanceTransform(azimuth, p.opts.CloudDist/10).
		Reproject(img, shadowRes).
		Select("distance").
		Mask()
	return projection.Multiply(dark)
}
