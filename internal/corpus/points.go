package corpus

// Point is the row the scatterplot consumes, both from the HTTP API and from
// the exported data.js.
type Point struct {
	ImagePath string  `json:"image_path"`
	ImageURL  string  `json:"image_url"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	ClassName string  `json:"class_name"`
	Labels    int     `json:"labels"`
	Author    string  `json:"author"`
	ClusterID int     `json:"cluster_id"`
}

// Points converts records to scatterplot rows in record order. The result is
// never nil so it encodes as an empty array.
func Points(records []ImageRecord) []Point {
	out := make([]Point, 0, len(records))
	for _, r := range records {
		out = append(out, Point{
			ImagePath: r.Path,
			ImageURL:  r.ImageURL(),
			X:         r.X,
			Y:         r.Y,
			ClassName: r.ClassName(),
			Labels:    r.ClassID,
			Author:    r.Author,
			ClusterID: r.ClusterID,
		})
	}
	return out
}
