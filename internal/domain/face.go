package domain

// Side identifies which of the two request images a value belongs to.
type Side string

const (
	SideSource Side = "source"
	SideTarget Side = "target"
)

// EmbeddingSize is the length of an ArcFace identity embedding.
const EmbeddingSize = 512

type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Landmarks holds the five alignment points in template order:
// left eye, right eye, nose tip, left mouth corner, right mouth corner.
type Landmarks [5]Point

type BoundingBox struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

func (b BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

func (b BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

func (b BoundingBox) Area() float32 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU returns the intersection over union of two boxes.
func (b BoundingBox) IoU(o BoundingBox) float32 {
	x1 := max(b.X1, o.X1)
	y1 := max(b.Y1, o.Y1)
	x2 := min(b.X2, o.X2)
	y2 := min(b.Y2, o.Y2)
	if x1 >= x2 || y1 >= y2 {
		return 0
	}

	inter := (x2 - x1) * (y2 - y1)
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// FaceRecord is one detected face. Embedding is L2-normalized and may be
// nil when the analyzer was asked for detection only.
type FaceRecord struct {
	BoundingBox BoundingBox `json:"bbox"`
	Landmarks   Landmarks   `json:"landmarks"`
	Score       float32     `json:"score"`
	Embedding   []float32   `json:"-"`
}
