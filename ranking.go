package cadence

import (
	"sort"

	"github.com/cadence-rt/cadence/internal/infra/tagcache"
)

// untestedPriorityWeight weighs normalised priority in the exploration rank.
// It is chosen so that even the least preferred untested tag ranks at least
// as high as the most preferred stabilised tag whose success probability has
// settled just below the FOR threshold:
// 0.8*0.5 + w*1 <= 1*1 + w*0 requires w <= 0.6.
const untestedPriorityWeight = 0.6

// rankingTag picks a decision tag by reinforcement ranking over the
// hierarchical decision sets for this exec frame's decision parameter.
//
// Three tiers: when ancestors have identified tags that discriminate FOR
// their objectives, exploit the best of them. Otherwise explore the
// unclassified pool (including never-tried tags, seeded optimistically).
// Only when everything known argues AGAINST does the least harmful tag run.
func (e *Engine) rankingTag(s *execState) int {
	sch := s.schema
	forSet, uncSet, againstSet, _ := e.decisionSets(s.decisionParam, s.curParent)

	// Constraint pre-filter on candidate tags.
	// TODO: VerifyDecisions always reports satisfied until three-valued
	// evaluation over partial assignments lands; at that point candidates
	// it rejects must be dropped from these sets for real.
	constraints := e.activeConstraints(s.curParent)
	forSet = e.satisfiable(constraints, sch, forSet)
	uncSet = e.satisfiable(constraints, sch, uncSet)

	numVectors := float64(sch.numDecisionVectors())

	if len(forSet) > 0 {
		// Exploit: probability first, then tried-and-tested weight, then
		// programmatic preference as the tie-break.
		best := 0
		bestRank := rankFor(forSet[0], numVectors)
		for i := 1; i < len(forSet); i++ {
			if r := rankFor(forSet[i], numVectors); r > bestRank {
				best = i
				bestRank = r
			}
		}
		s.stickyRemaining = 0
		return forSet[best].Tag
	}

	// Explore: the unclassified pool plus every decision vector not yet
	// classified at all, seeded with count 0 and optimistic probability 1.
	pool := append(weighted(nil), uncSet...)
	vec := sch.highestPriorityVector()
	for {
		tag := sch.encode(vec)
		if !hasTag(pool, tag) && !hasTag(againstSet, tag) {
			pool = append(pool, tagcache.DiscTag{Tag: tag, Count: 0, Prob: 1})
		}
		next := sch.nextLowerPriorityVector(vec)
		if equalInts(next, vec) {
			break
		}
		vec = next
	}

	totalCount := 0.0
	for _, c := range pool {
		totalCount += c.Count
	}
	if totalCount == 0 {
		totalCount = 1
	}

	order := make([]int, len(pool))
	ranks := make([]float64, len(pool))
	for i, c := range pool {
		order[i] = i
		normalizedPriority := 1.0 - float64(c.Tag)/numVectors
		ranks[i] = c.Prob*(1.0-c.Count/totalCount) + untestedPriorityWeight*normalizedPriority
	}
	sort.SliceStable(order, func(i, j int) bool { return ranks[order[i]] > ranks[order[j]] })

	chosen := -1
	firstSkipped := -1
	firstSkippedStickiness := 0
	s.stickyRemaining = 0
	for _, i := range order {
		chosen = pool[i].Tag
		if pool[i].Count < float64(s.stickinessLength) {
			s.stickyRemaining = s.stickinessLength
			s.stickyTag = chosen
		}

		if e.features.exploration > 0 {
			u := float64(e.rng.Intn(1000)) / 1000.0
			if e.features.exploration > u {
				// Forced past a workable candidate; remember the first one
				// skipped in case nothing else works out.
				if firstSkipped == -1 {
					firstSkipped = chosen
					firstSkippedStickiness = s.stickyRemaining
				}
				chosen = -1
				s.stickyRemaining = 0
			}
		}

		if chosen != -1 {
			return chosen
		}
	}

	if firstSkipped != -1 {
		s.stickyRemaining = firstSkippedStickiness
		return firstSkipped
	}

	// Only AGAINST remains: pick the least harmful.
	if len(againstSet) == 0 {
		return sch.encode(sch.highestPriorityVector())
	}
	best := 0
	bestRank := rankAgainst(againstSet[0], numVectors)
	for i := 1; i < len(againstSet); i++ {
		if r := rankAgainst(againstSet[i], numVectors); r > bestRank {
			best = i
			bestRank = r
		}
	}
	chosen = againstSet[best].Tag
	if againstSet[best].Count < float64(s.stickinessLength) {
		s.stickyRemaining = s.stickinessLength
		s.stickyTag = chosen
	}
	return chosen
}

// satisfiable drops candidates the constraint verifier rules out.
func (e *Engine) satisfiable(constraints []Constraint, sch *decisionSchema, set weighted) weighted {
	if len(set) == 0 {
		return set
	}
	out := set[:0]
	for _, t := range set {
		if e.verifier.VerifyDecisions(constraints, sch.varIDs, sch.decode(t.Tag)) != LogicFalse {
			out = append(out, t)
		}
	}
	return out
}

func rankFor(t tagcache.DiscTag, numVectors float64) float64 {
	return t.Prob*100.0 + t.Count*10.0 - float64(t.Tag)/numVectors
}

func rankAgainst(t tagcache.DiscTag, numVectors float64) float64 {
	return -t.Prob*100.0 - t.Count*10.0 - float64(t.Tag)/numVectors
}

func hasTag(set weighted, tag int) bool {
	for _, t := range set {
		if t.Tag == tag {
			return true
		}
	}
	return false
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
