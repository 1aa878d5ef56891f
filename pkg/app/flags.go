package app

import (
	"github.com/spf13/pflag"
)

// NamedFlagSets stores named flag sets in the order of calling FlagSet.
type NamedFlagSets struct {
	// order is an ordered list of flag set names.
	order []string
	// sets stores the flag sets by name.
	sets map[string]*pflag.FlagSet
}

// FlagSet returns the flag set with the given name, creating it if needed.
func (nfs *NamedFlagSets) FlagSet(name string) *pflag.FlagSet {
	if nfs.sets == nil {
		nfs.sets = map[string]*pflag.FlagSet{}
	}
	if _, ok := nfs.sets[name]; !ok {
		nfs.sets[name] = pflag.NewFlagSet(name, pflag.ExitOnError)
		nfs.order = append(nfs.order, name)
	}
	return nfs.sets[name]
}

// FlagSets returns all flag sets in registration order.
func (nfs *NamedFlagSets) FlagSets() []*pflag.FlagSet {
	out := make([]*pflag.FlagSet, 0, len(nfs.order))
	for _, name := range nfs.order {
		out = append(out, nfs.sets[name])
	}
	return out
}
