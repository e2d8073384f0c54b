// Package surface holds what the presentation surfaces share: a snapshot
// of view-model state taken on the surface's execution context.
package surface

import (
	"github.com/vango-dev/rxbind/pkg/viewmodel"
)

// Snapshot is the view-model state one render draws.
type Snapshot struct {
	Running           bool   `json:"running"`
	RunningObservable bool   `json:"running_observable"`
	NumbersChanged    uint64 `json:"numbers_changed"`
	Count             int    `json:"count"`
	Items             []int  `json:"items"`
	Renders           uint64 `json:"renders"`
}

// Take reads vm. renders is the number of renders completed before this
// one.
func Take(vm *viewmodel.ViewModel, renders uint64) Snapshot {
	if vm == nil {
		return Snapshot{Items: []int{}, Renders: renders}
	}
	items := vm.Numbers().Items()
	if items == nil {
		items = []int{}
	}
	return Snapshot{
		Running:           vm.Running(),
		RunningObservable: vm.RunningObservable(),
		NumbersChanged:    vm.NumbersChanged(),
		Count:             len(items),
		Items:             items,
		Renders:           renders,
	}
}
