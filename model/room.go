package model

import "fmt"

type Room struct {
	SquareMeters  int     `json:"square_meters"`
	CeilingHeight float64 `json:"ceiling_height"`
}

func (r Room) String() string {
	return fmt.Sprintf("Room{SquareMeters: %d, CeilingHeight: %.2f}", r.SquareMeters, r.CeilingHeight)
}
