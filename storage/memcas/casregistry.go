package memcas

import (
	"flag"

	"xdao.co/wallet/storage"
	"xdao.co/wallet/storage/casregistry"
)

func init() {
	open := func() (storage.CAS, func() error, error) {
		return New(), nil, nil
	}
	casregistry.MustRegister(casregistry.Backend{
		Name:          "mem",
		Description:   "In-memory CAS (nothing is persisted)",
		Usage:         casregistry.UsageCLI,
		RegisterFlags: func(fs *flag.FlagSet) {},
		Open:          open,
		OpenConfig: func(map[string]string) (storage.CAS, func() error, error) {
			return open()
		},
	})
}
