package config

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

var (
	encodingLock   sync.RWMutex
	currentCharMap *charmap.Charmap = charmap.Windows1252
)

// SetEncoding selects the charmap used for fixed-width names in binary formats.
func SetEncoding(name string) error {
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			if cm.String() == name {
				encodingLock.Lock()
				currentCharMap = cm
				encodingLock.Unlock()
				return nil
			}
		}
	}
	return errors.Errorf("Failed to find encoding %q", name)
}

func ListEncodings() []string {
	list := make([]string, 0)
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	return list
}

func GetEncoding() *charmap.Charmap {
	encodingLock.RLock()
	defer encodingLock.RUnlock()
	return currentCharMap
}
