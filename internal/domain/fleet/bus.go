package fleet

// Bus is one vehicle in the school fleet catalog.
type Bus struct {
	ID          string `json:"id"`
	PlateNumber string `json:"plateNumber"`
	Capacity    int    `json:"capacity"`
	Active      bool   `json:"active"`
}
