package props_test

import (
	"testing"

	"github.com/marmos91/dittodav/pkg/props"
	"github.com/marmos91/dittodav/pkg/props/propstest"
)

func TestMemoryStore(t *testing.T) {
	propstest.RunSuite(t, func(t *testing.T) props.Store {
		return props.NewMemoryStore()
	})
}
