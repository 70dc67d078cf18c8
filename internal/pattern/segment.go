package pattern

import (
	"fmt"
	"sort"
)

// segment is the compiled form of a StepConfig. next is the index of the
// following segment; the last segment wraps to the first.
type segment struct {
	id          string
	start, end  float64
	eval        evaluator
	mutators    []mutator
	transition  transition
	next        int
	nextInitial float64
}

func (s *segment) length() float64 { return s.end - s.start }

// mutatedAt evaluates the step shape and its mutators at a step-relative
// offset, without transition blending.
func (s *segment) mutatedAt(offset float64) float64 {
	length := s.length()
	progress := 0.0
	if length > 0 {
		progress = offset / length
	}
	v := s.eval.valueAt(progress)
	for _, m := range s.mutators {
		v = m.apply(v, offset)
	}
	return v
}

func (s *segment) valueAt(patternMillis float64) float64 {
	offset := patternMillis - s.start
	v := s.mutatedAt(offset)
	return s.transition.apply(v, s.nextInitial, offset, s.length())
}

func compileSegments(cfg Config, durationMillis float64, seeds SeedResolver) ([]segment, error) {
	segments := make([]segment, 0, len(cfg.Steps))
	for i, step := range cfg.Steps {
		path := fmt.Sprintf("steps[%d]", i)
		id := step.ID
		if id == "" {
			id = fmt.Sprintf("step-%d", i)
		}
		start := step.Start.millis(durationMillis)
		end := step.End.millis(durationMillis)
		if end < start {
			end = start
		}
		length := end - start

		eval, err := newEvaluator(step.Mode, step.Params, length)
		if err != nil {
			return nil, configErr(path+".mode", err)
		}
		muts := make([]mutator, 0, len(step.Mutators))
		for j, mc := range step.Mutators {
			m, err := newMutator(mc, id, length, seeds)
			if err != nil {
				return nil, configErr(fmt.Sprintf("%s.mutators[%d]", path, j), err)
			}
			muts = append(muts, m)
		}
		tr, err := newTransition(step.Transition, length)
		if err != nil {
			return nil, configErr(path+".transition", err)
		}
		segments = append(segments, segment{
			id:         id,
			start:      start,
			end:        end,
			eval:       eval,
			mutators:   muts,
			transition: tr,
		})
	}
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].start < segments[j].start })
	for i := range segments {
		segments[i].next = (i + 1) % len(segments)
	}
	for i := range segments {
		segments[i].nextInitial = segments[segments[i].next].mutatedAt(0)
	}
	return segments, nil
}

// lookup returns the segment containing t. The last segment also accepts its
// exact end so the whole cycle is covered.
func lookup(segments []segment, t float64) *segment {
	for i := range segments {
		s := &segments[i]
		if t >= s.start && t < s.end {
			return s
		}
	}
	if n := len(segments); n > 0 {
		last := &segments[n-1]
		if t >= last.start && t <= last.end {
			return last
		}
	}
	return nil
}
