package instance

import (
	"github.com/modpit/craftd/internal/fetch"
	"github.com/modpit/craftd/internal/resolver"
)

// Wire builds the provisioner, supervisor and registry over one root with
// a shared per-name lock set, so lifecycle and metadata mutations on the
// same instance serialize across all three.
func Wire(root string, res resolver.Resolver, fetcher *fetch.Fetcher, defaults Defaults) (*Provisioner, *Supervisor, *Registry) {
	locks := newNameLocks()
	prov := NewProvisioner(root, res, fetcher, defaults, locks)
	sup := NewSupervisor(root, locks)
	reg := NewRegistry(root, sup)
	return prov, sup, reg
}
