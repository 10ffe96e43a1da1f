package utils

import (
	"math/rand"
	"sync"

	"github.com/Pallinder/go-randomdata"
)

var randomdataLock sync.Mutex
var randomdataSeed sync.Once

// RandomNameGenerator hands out silly names that are unique per generator.
type RandomNameGenerator map[string]struct{}

// Reserve marks an existing name as taken.
func (rng *RandomNameGenerator) Reserve(name string) {
	if *rng == nil {
		*rng = make(map[string]struct{})
	}
	(*rng)[name] = struct{}{}
}

func (rng *RandomNameGenerator) RandomName() string {
	if *rng == nil {
		*rng = make(map[string]struct{})
	}
	randomdataSeed.Do(func() {
		randomdata.CustomRand(rand.New(rand.NewSource(0)))
	})
	for {
		randomdataLock.Lock()
		name := randomdata.SillyName()
		randomdataLock.Unlock()
		// avoid duplicate names
		if _, exists := (*rng)[name]; !exists {
			(*rng)[name] = struct{}{}
			return name
		}
	}
}
