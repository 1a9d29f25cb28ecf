package stemclient

import (
	"fmt"

	"github.com/okian/stemai/internal/adapters/audiofile"
	"github.com/okian/stemai/internal/domain/energy"
	"github.com/okian/stemai/internal/domain/model"
)

// AnalyzeDir computes the ranked energy distribution of the <label>.wav
// stems in dir without contacting the service.
func AnalyzeDir(dir string) ([]energy.Share, model.EnergyMap, error) {
	stems, err := audiofile.ReadStems(dir)
	if err != nil {
		return nil, nil, err
	}
	if len(stems) == 0 {
		return nil, nil, fmt.Errorf("%w in %s", ErrNoStems, dir)
	}
	energies, err := energy.Energies(stems)
	if err != nil {
		return nil, nil, err
	}
	dist, err := energy.FromEnergies(energies)
	if err != nil {
		return nil, energies, err
	}
	return energy.Ranked(dist), energies, nil
}
