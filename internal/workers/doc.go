// Package workers sizes and runs the background worker pool.
//
// Count and ForCPU derive a worker count from GOMAXPROCS, which Go sets
// from the container CPU quota, so a pod limited to two CPUs on a large
// node gets two workers rather than one per host core. THUMBNAIL_WORKERS
// overrides the computed count.
//
// Pool wraps an ants goroutine pool with a wait group so a caller can
// submit a batch and wait for it:
//
//	pool, err := workers.NewPool(workers.ForCPU(4))
//	if err != nil {
//		return err
//	}
//	defer pool.Release()
//
//	for _, job := range jobs {
//		if err := pool.Go(func() { process(job) }); err != nil {
//			break
//		}
//	}
//	pool.Wait()
package workers
