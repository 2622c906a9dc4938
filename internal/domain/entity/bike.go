package entity

import "fmt"

// BikeStatus describes a docked bike's availability
type BikeStatus string

const (
	BikeAvailable   BikeStatus = "AVAILABLE"
	BikeRented      BikeStatus = "RENTED"
	BikeMaintenance BikeStatus = "MAINTENANCE"
)

// String returns the string representation of the bike status
func (s BikeStatus) String() string {
	return string(s)
}

// Bike is a single docked bike
type Bike struct {
	ID     int
	Number string
	Status BikeStatus
}

// Fleet is the ordered set of bikes docked at the station
type Fleet struct {
	bikes []*Bike
}

// NewDemoFleet builds the standard 16-bike demo station: bikes 5 and 12
// under maintenance, bikes 3, 7, 10 and 15 already rented, the rest
// available. These positions are fixed demo fixtures.
func NewDemoFleet() *Fleet {
	const totalBikes = 16

	maintenance := map[int]bool{5: true, 12: true}
	rented := map[int]bool{3: true, 7: true, 10: true, 15: true}

	f := &Fleet{}
	for i := 1; i <= totalBikes; i++ {
		status := BikeAvailable
		if maintenance[i] {
			status = BikeMaintenance
		} else if rented[i] {
			status = BikeRented
		}
		f.bikes = append(f.bikes, &Bike{
			ID:     i,
			Number: fmt.Sprintf("B%03d", i),
			Status: status,
		})
	}
	return f
}

// Find returns the bike with the given id, or nil
func (f *Fleet) Find(id int) *Bike {
	for _, b := range f.bikes {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// Bikes returns the bikes in dock order
func (f *Fleet) Bikes() []*Bike {
	return f.bikes
}

// AvailableCount returns how many bikes can currently be rented
func (f *Fleet) AvailableCount() int {
	count := 0
	for _, b := range f.bikes {
		if b.Status == BikeAvailable {
			count++
		}
	}
	return count
}

// Total returns the number of docked slots
func (f *Fleet) Total() int {
	return len(f.bikes)
}
