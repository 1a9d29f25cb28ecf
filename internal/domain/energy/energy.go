// Package energy computes per-stem RMS energy and the share of total energy
// each stem contributes.
package energy

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/okian/stemai/internal/domain/model"
)

// RMS returns sqrt(mean(x^2)) over every sample of s, all channels included.
func RMS(s model.Signal) (float64, error) {
	if s.Len() == 0 {
		return 0, &InvalidInputError{Reason: "empty signal"}
	}
	samples := s.Samples()
	for _, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, &InvalidInputError{Reason: "non-finite sample"}
		}
	}
	sumSq := floats.Dot(samples, samples)
	if math.IsInf(sumSq, 0) {
		return 0, &InvalidInputError{Reason: "sample magnitude overflows"}
	}
	return math.Sqrt(sumSq / float64(len(samples))), nil
}

// Energies computes RMS for every stem.
func Energies(stems model.StemSet) (model.EnergyMap, error) {
	if len(stems) == 0 {
		return nil, &InvalidInputError{Reason: "empty stem set"}
	}
	out := make(model.EnergyMap, len(stems))
	for _, label := range stems.Labels() {
		e, err := RMS(stems[label])
		if err != nil {
			var inv *InvalidInputError
			if errors.As(err, &inv) {
				return nil, &InvalidInputError{Label: label, Reason: inv.Reason}
			}
			return nil, err
		}
		out[label] = e
	}
	return out, nil
}

// FromEnergies turns per-stem energies into percentages of their sum.
func FromEnergies(energies model.EnergyMap) (model.DistributionMap, error) {
	if len(energies) == 0 {
		return nil, &InvalidInputError{Reason: "empty stem set"}
	}
	var total float64
	for label, e := range energies {
		if e < 0 || math.IsNaN(e) || math.IsInf(e, 0) {
			return nil, &InvalidInputError{Label: label, Reason: "energy must be finite and non-negative"}
		}
		total += e
	}
	if total == 0 {
		return nil, &DegenerateInputError{Stems: len(energies)}
	}
	out := make(model.DistributionMap, len(energies))
	for label, e := range energies {
		out[label] = 100 * e / total
	}
	return out, nil
}

// Distribution maps each stem to its percentage of the total RMS energy.
// No partial map is returned on error.
func Distribution(stems model.StemSet) (model.DistributionMap, error) {
	energies, err := Energies(stems)
	if err != nil {
		return nil, err
	}
	return FromEnergies(energies)
}
