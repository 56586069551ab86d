// Package analyzer implements the reflection analyzer: given a
// response's reflected-parameter deltas, it decides which single
// candidate name (if any) is the finding, and whether the batch needs a
// later recheck.
package analyzer

import "github.com/bcfsec/paramhunt/internal/response"

// Verdict is the outcome of analyzing one Response Record's reflected
// parameters.
type Verdict struct {
	// Name is the single reflected candidate identified as a finding.
	// Empty when no verdict was reached.
	Name string
	// Found reports whether Name is meaningful.
	Found bool
	// Recheck reports whether the batch's reflection signal was unstable
	// and should be re-probed in a later pass.
	Recheck bool
}

// Analyze inspects r.ReflectedParameters against sentinel (the
// additional random parameter name injected alongside the batch, if
// any, empty string for none) and batchSize (the total count of
// prepared parameters in the request that produced r, sentinel
// included), returning a Verdict per the five branches in order:
//
//  1. nothing reflected -> no verdict, no recheck.
//  2. exactly one reflected parameter -> that one is the finding.
//  3. the batch held exactly one real candidate plus the sentinel
//     (batchSize == 2) and both reflected -> the non-sentinel one is
//     the finding, no recheck.
//  4. grouping by delta yields exactly two groups, one a singleton ->
//     the singleton is the finding, recheck the rest.
//  5. otherwise: unstable, recheck.
func Analyze(r *response.Record, sentinel string, batchSize int) Verdict {
	reflected := r.ReflectedParameters
	switch len(reflected) {
	case 0:
		return Verdict{}
	case 1:
		for name := range reflected {
			return Verdict{Name: name, Found: true}
		}
	}

	if sentinel != "" && batchSize == 2 && len(reflected) == 2 {
		if _, sentinelReflected := reflected[sentinel]; sentinelReflected {
			for name := range reflected {
				if name != sentinel {
					return Verdict{Name: name, Found: true}
				}
			}
		}
	}

	groups := groupByDelta(reflected)
	if len(groups) == 2 {
		if name, ok := soleSingleton(groups); ok {
			return Verdict{Name: name, Found: true, Recheck: true}
		}
	}

	return Verdict{Recheck: true}
}

func groupByDelta(reflected map[string]int) map[int][]string {
	groups := map[int][]string{}
	for name, delta := range reflected {
		groups[delta] = append(groups[delta], name)
	}
	return groups
}

// soleSingleton returns the member of the one group of size 1, if
// exactly one of the two groups has exactly one member.
func soleSingleton(groups map[int][]string) (string, bool) {
	var singleton string
	singletons := 0
	for _, members := range groups {
		if len(members) == 1 {
			singletons++
			singleton = members[0]
		}
	}
	if singletons == 1 {
		return singleton, true
	}
	return "", false
}
