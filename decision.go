package cadence

import "github.com/cadence-rt/cadence/internal/infra/tagcache"

// weighted is a tag set with per-tag merge weights, kept sorted ascending by
// tag with no repeats. Count sums across merges; Prob takes the minimum on
// intersection (weakest link) and the maximum on union (best evidence).
type weighted []tagcache.DiscTag

func intersectWeighted(a, b weighted) weighted {
	var out weighted
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Tag < b[j].Tag:
			i++
		case a[i].Tag > b[j].Tag:
			j++
		default:
			p := a[i].Prob
			if b[j].Prob < p {
				p = b[j].Prob
			}
			out = append(out, tagcache.DiscTag{Tag: a[i].Tag, Count: a[i].Count + b[j].Count, Prob: p})
			i++
			j++
		}
	}
	return out
}

func unionWeighted(a, b weighted) weighted {
	var out weighted
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Tag < b[j].Tag:
			out = append(out, a[i])
			i++
		case a[i].Tag > b[j].Tag:
			out = append(out, b[j])
			j++
		default:
			p := a[i].Prob
			if b[j].Prob > p {
				p = b[j].Prob
			}
			out = append(out, tagcache.DiscTag{Tag: a[i].Tag, Count: a[i].Count + b[j].Count, Prob: p})
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// subtractTags returns the members of a whose tag is not in b. Both inputs
// are sorted ascending by tag.
func subtractTags(a weighted, b weighted) weighted {
	var out weighted
	j := 0
	for _, t := range a {
		for j < len(b) && b[j].Tag < t.Tag {
			j++
		}
		if j < len(b) && b[j].Tag == t.Tag {
			continue
		}
		out = append(out, t)
	}
	return out
}

func tagsOf(w weighted) []int {
	out := make([]int, len(w))
	for i, t := range w {
		out[i] = t.Tag
	}
	return out
}

// forDiscriminationFactor is the evidence threshold for classifying a tag as
// helping (FOR) or hurting (AGAINST) an ancestor's objective: at least 80%
// of the tag's occurrences must fall in the queried bin set.
const forDiscriminationFactor = 0.80

// decisionSets computes the hierarchical FOR/UNCLASSIFIED/AGAINST tag sets
// for a parameter, walking the active ancestor chain of start (start
// included) from outermost to innermost and considering only frames that
// consume the parameter.
//
// Per consuming ancestor, FOR candidates are the tags discriminating toward
// its active FOR bins, AGAINST candidates those discriminating toward its
// active AGAINST bins, and the rest are unclassified. Unclassified sets of
// preference-less ancestors accumulate onto the next ancestor that does
// impose a preference (the outermost consumer always forms a level, even
// preference-less). Levels then merge progressively from the outermost in:
// intersection of FOR, union of AGAINST and UNCLASSIFIED.
//
// The returned sets are those at the deepest level whose progressive FOR is
// non-empty while the next deeper one is empty (early termination). blocked
// reports that at least one deeper ancestor was prevented from expressing
// its preference.
func (e *Engine) decisionSets(param *parameter, start *frame) (forSet, uncSet, againstSet weighted, blocked bool) {
	chain := append([]*frame{start}, enclosingFrames(start)...)

	var mostLevels, uncLevels, leastLevels []weighted
	var accUnc weighted

	for fi := len(chain) - 1; fi >= 0; fi-- { // outermost first
		ancestor := chain[fi]
		s := ancestor.state
		if !param.hasConsumer(s) {
			continue
		}
		spread := s.spreads[param]

		most := weighted(spread.Discriminating(append([]int(nil), s.forBins...), forDiscriminationFactor))
		least := weighted(spread.Discriminating(append([]int(nil), s.againstBins...), forDiscriminationFactor))
		all := weighted(spread.Discriminating(append([]int(nil), s.forBins...), 0))

		unc := subtractTags(subtractTags(all, most), least)
		accUnc = unionWeighted(accUnc, unc)

		// A preference-less ancestor only contributes its unclassified tags,
		// unless it is the outermost consumer, which always forms a level.
		if len(mostLevels) > 0 && len(most) == 0 && len(least) == 0 {
			continue
		}

		mostLevels = append(mostLevels, most)
		uncLevels = append(uncLevels, accUnc)
		leastLevels = append(leastLevels, least)
		accUnc = nil
	}

	n := len(mostLevels)
	if n == 0 {
		return nil, nil, nil, false
	}

	// After this reversal index 0 is the innermost level and n-1 the
	// outermost, so the progressive merge runs from the outermost level at the
	// end of the slices toward the innermost at 0.
	reverseLevels(mostLevels)
	reverseLevels(uncLevels)
	reverseLevels(leastLevels)

	forLevels := make([]weighted, n)
	uncMerged := make([]weighted, n)
	againstLevels := make([]weighted, n)
	for dli := n - 1; dli >= 0; dli-- {
		if dli == n-1 {
			forLevels[dli] = mostLevels[dli]
			uncMerged[dli] = uncLevels[dli]
			againstLevels[dli] = leastLevels[dli]
			continue
		}
		forLevels[dli] = intersectWeighted(forLevels[dli+1], mostLevels[dli])
		uncMerged[dli] = unionWeighted(uncMerged[dli+1], uncLevels[dli])
		againstLevels[dli] = unionWeighted(againstLevels[dli+1], leastLevels[dli])
	}

	if n == 1 {
		return forLevels[0], uncMerged[0], againstLevels[0], false
	}

	decIndex := n - 1
	for decIndex > 0 {
		if len(forLevels[decIndex]) > 0 && len(forLevels[decIndex-1]) == 0 {
			break
		}
		decIndex--
	}

	forSet = forLevels[decIndex]
	againstSet = againstLevels[decIndex]
	uncSet = subtractTags(uncMerged[decIndex], againstSet)
	return forSet, uncSet, againstSet, decIndex != 0
}

func reverseLevels(levels []weighted) {
	for i, j := 0, len(levels)-1; i < j; i, j = i+1, j-1 {
		levels[i], levels[j] = levels[j], levels[i]
	}
}

// activateDecisionModel runs on the Start edge of a measured frame: it
// resolves the objective on the first activation, registers the parent as a
// consumer of this frame's execution-time parameter, and computes the
// frame's active FOR/AGAINST bin decision from the ancestor preferences and
// the local objective.
func (e *Engine) activateDecisionModel(f *frame) error {
	s := f.state

	if s.parent != nil && !s.execTimeParam.hasConsumer(s.parent.state) {
		s.execTimeParam.addConsumer(s.parent.state)
	}

	if !s.objectiveInit {
		if obj := f.objective; obj != nil {
			mean := obj.Mean
			if obj.isRelative() {
				ref := e.lookup(obj.ReferenceFrame)
				if ref == nil || ref.kind != kindMeasured {
					return ErrUnresolvedReference
				}
				rs := ref.state
				if !rs.objectiveInit || !rs.hasMean {
					return ErrUnresolvedReference
				}
				mean = rs.mean * obj.RelativeMeanFrac
			}
			s.initObjective(true, mean, obj.WindowFracLower, obj.WindowFracUpper,
				obj.Prob, obj.SlidingWindowSize, obj.ImpactRescaler)
		} else {
			s.initObjective(false, 0, 0, 0, 0, 1, nil)
		}
	}

	localFor, localAgainst := s.localObjectiveBins()

	var forSet, againstSet weighted
	blocked := false
	if s.parent != nil {
		forSet, _, againstSet, blocked = e.decisionSets(s.execTimeParam, s.parent)
	}

	switch {
	case blocked:
		// An upper consumer already blocked deeper ancestors; the local
		// objective is blocked with them.
		s.forBins = tagsOf(forSet)
		s.againstBins = tagsOf(againstSet)

	case len(forSet) == 0 && len(againstSet) == 0:
		// No ancestor preference; the local objective stands alone.
		s.forBins = localFor
		s.againstBins = localAgainst

	default:
		localForW := make(weighted, len(localFor))
		for i, b := range localFor {
			localForW[i] = tagcache.DiscTag{Tag: b}
		}
		localAgainstW := make(weighted, len(localAgainst))
		for i, b := range localAgainst {
			localAgainstW[i] = tagcache.DiscTag{Tag: b}
		}

		merged := intersectWeighted(forSet, localForW)
		if len(merged) == 0 {
			// Ancestors override the local objective entirely.
			s.forBins = tagsOf(forSet)
			s.againstBins = tagsOf(againstSet)
		} else {
			s.forBins = tagsOf(merged)
			s.againstBins = tagsOf(unionWeighted(againstSet, localAgainstW))
		}
	}
	return nil
}
