package uuid

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid"
)

// Generator entity id generator
type Generator interface {
	Generate() (string, error)
}

// NanoIDGenerator id implementation using NanoID
type NanoIDGenerator struct {
	Length int
}

var _ Generator = &NanoIDGenerator{}

// NewNanoIDGenerator create a new `NanoIDGenerator` instance
func NewNanoIDGenerator(length int) (*NanoIDGenerator, error) {
	if length < 1 {
		return nil, fmt.Errorf("id length must be positive, got %d", length)
	}
	return &NanoIDGenerator{Length: length}, nil
}

// Generate generate a random url-safe id
func (ns *NanoIDGenerator) Generate() (string, error) {
	return gonanoid.Nanoid(ns.Length)
}
