package model

// Student rides a bus, referenced by its display number ("Bus 101").
type Student struct {
	Name string `json:"name"`
	Bus  string `json:"bus"`
}
