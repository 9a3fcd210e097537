package grid

// Substation is a membership grouping of buses, used by grid reduction's
// boundary/internal partition and by scenario loaders. No topology
// "wizard" behavior lives here.
type Substation struct {
	UID  string
	Name string
}

// VoltageLevel groups buses by nominal voltage tier.
type VoltageLevel struct {
	UID     string
	Name    string
	Vnom    float64
}
