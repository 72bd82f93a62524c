// Package compute provides the data-parallel loop used by every solver pass.
//
// Two backends are available:
//
//   - cpu: splits the range into chunks over GOMAXPROCS goroutines
//   - serial: runs the whole range on the calling goroutine
//
// Every pass writes only the slots of the particles in its own chunk, so
// chunks never need locking:
//
//	backend := compute.NewCPUBackend(0)
//	backend.For(len(densities), func(start, end int) {
//		for i := start; i < end; i++ {
//			densities[i] = ...
//		}
//	})
//
// Small ranges run inline; the goroutine cost only pays off from a few
// hundred particles up.
package compute
