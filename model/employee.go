// Package model holds the payload types served over the HTTP surface.
// Payloads are plain structs: the engine pins them to their periods, the
// types themselves know nothing about time.
package model

import "fmt"

type Employee struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Title     string `json:"title"`
}

func (e Employee) String() string {
	return fmt.Sprintf("Employee{Name: %s %s, Title: %s}", e.FirstName, e.LastName, e.Title)
}
