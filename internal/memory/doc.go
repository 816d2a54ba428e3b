// Package memory keeps background thumbnail work inside the container's
// memory budget.
//
// [ConfigureFromEnv] derives the runtime soft limit (GOMEMLIMIT) from the
// MEMORY_LIMIT and MEMORY_RATIO environment variables, which in Kubernetes
// are usually filled from the Downward API:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//
// A [Monitor] samples heap usage against that limit. Workers call
// [Monitor.WaitIfPaused] before each unit of work; it blocks while usage is
// above the pause mark and until it drops below the resume mark.
package memory
