package facematch

import (
	"sort"

	"github.com/kozaktomas/facelog/internal/fingerprint"
)

// groupIoU is the overlap above which two raw cascade hits confirm the same face.
const groupIoU = 0.2

// Detection is a raw classifier hit: a square of side Scale centred on (Row, Col).
type Detection struct {
	Row   int
	Col   int
	Scale int
	Q     float32
}

// Classifier runs a pretrained face model over a row-major luma plane and returns
// every raw hit, before any neighbour confirmation.
type Classifier interface {
	Classify(pixels []uint8, rows, cols, minSize int, scaleFactor float64) []Detection
}

// Profile is one parameterization of a detection pass.
type Profile struct {
	Name         string
	ScaleFactor  float64
	MinNeighbors int  // a face needs more than this many overlapping raw hits
	MinSize      int  // smallest face side in pixels
	Equalize     bool // run on a histogram-equalized copy of the luma plane
}

// DefaultProfiles returns the standard, lenient and equalized passes.
func DefaultProfiles() []Profile {
	return []Profile{
		{Name: "standard", ScaleFactor: 1.1, MinNeighbors: 3, MinSize: 30},
		{Name: "lenient", ScaleFactor: 1.05, MinNeighbors: 2, MinSize: 20},
		{Name: "equalized", ScaleFactor: 1.1, MinNeighbors: 3, MinSize: 30, Equalize: true},
	}
}

// DetectionResult is the outcome of the winning pass.
type DetectionResult struct {
	Profile string               `json:"profile,omitempty"`
	Regions []fingerprint.Region `json:"regions"`
}

// Detector resolves faces in a grid by running every profile and keeping the
// pass that found the most faces.
type Detector struct {
	classifier Classifier
	profiles   []Profile
}

// NewDetector creates a detector. An empty profile list selects DefaultProfiles.
func NewDetector(classifier Classifier, profiles []Profile) *Detector {
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}
	return &Detector{
		classifier: classifier,
		profiles:   append([]Profile(nil), profiles...),
	}
}

// Profiles returns the passes in run order.
func (d *Detector) Profiles() []Profile {
	return append([]Profile(nil), d.profiles...)
}

// Detect returns the face regions of the winning pass. An empty or nil grid yields no regions.
func (d *Detector) Detect(g *fingerprint.Grid) []fingerprint.Region {
	return d.DetectAll(g).Regions
}

// DetectAll runs every pass and reports which one won. Ties go to the earlier pass.
func (d *Detector) DetectAll(g *fingerprint.Grid) DetectionResult {
	result := DetectionResult{Regions: []fingerprint.Region{}}
	if g.Empty() || d.classifier == nil {
		return result
	}

	var equalized []uint8
	for _, p := range d.profiles {
		pixels := g.Gray
		if p.Equalize {
			if equalized == nil {
				equalized = equalizeHist(g.Gray)
			}
			pixels = equalized
		}

		regions := d.runProfile(g, pixels, p)
		if len(regions) > len(result.Regions) {
			result = DetectionResult{Profile: p.Name, Regions: regions}
		}
	}
	return result
}

// DetectLargest returns the largest face of the winning pass.
func (d *Detector) DetectLargest(g *fingerprint.Grid) (fingerprint.Region, bool) {
	return Largest(d.Detect(g))
}

// FaceSignature detects the largest face in g and extracts its signature.
func (d *Detector) FaceSignature(g *fingerprint.Grid) (fingerprint.Signature, fingerprint.Region, error) {
	region, ok := d.DetectLargest(g)
	if !ok {
		return fingerprint.Signature{}, fingerprint.Region{}, ErrNoFaceDetected
	}
	sig, err := fingerprint.Extract(g, region)
	if err != nil {
		return fingerprint.Signature{}, region, err
	}
	return sig, region, nil
}

func (d *Detector) runProfile(g *fingerprint.Grid, pixels []uint8, p Profile) []fingerprint.Region {
	raw := d.classifier.Classify(pixels, g.Height, g.Width, p.MinSize, p.ScaleFactor)
	groups := groupDetections(raw, groupIoU)

	regions := make([]fingerprint.Region, 0, len(groups))
	for _, grp := range groups {
		if grp.members <= p.MinNeighbors {
			continue
		}
		rect := detectionRect(grp.Detection, g.Width, g.Height)
		region, err := g.Region(rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy())
		if err != nil {
			continue
		}
		regions = append(regions, region)
	}
	return regions
}

type detectionGroup struct {
	Detection
	members int
}

// groupDetections merges raw hits whose overlap exceeds iou, strongest hit first.
// Each group is the average of its members.
func groupDetections(dets []Detection, iou float64) []detectionGroup {
	sorted := append([]Detection(nil), dets...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Q > sorted[j].Q })

	assigned := make([]bool, len(sorted))
	var groups []detectionGroup
	for i := range sorted {
		if assigned[i] {
			continue
		}
		seed := squareRect(sorted[i])
		var r, c, s, n int
		var q float32
		for j := range sorted {
			if assigned[j] {
				continue
			}
			if ComputeIoU(seed, squareRect(sorted[j])) > iou {
				assigned[j] = true
				r += sorted[j].Row
				c += sorted[j].Col
				s += sorted[j].Scale
				q += sorted[j].Q
				n++
			}
		}
		if n > 0 {
			groups = append(groups, detectionGroup{
				Detection: Detection{Row: r / n, Col: c / n, Scale: s / n, Q: q},
				members:   n,
			})
		}
	}
	return groups
}
