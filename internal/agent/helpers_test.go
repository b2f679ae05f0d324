package agent

import (
	"github.com/noesis-run/noesis/internal/catalog"
	"github.com/noesis-run/noesis/internal/statemodel"
)

func newTestCatalog() *catalog.Catalog {
	c := catalog.New()
	catalog.RegisterBuiltins(c)
	return c
}

func statemodelCoupling(active bool) statemodel.Coupling {
	return statemodel.Coupling{Active: active}
}
