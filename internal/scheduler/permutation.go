package scheduler

import (
	"time"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// permutable reports whether rotating teacher pairs across links can change the outcome.
func (g *Generator) permutable(course *models.Course, links []*models.ClassLink) bool {
	if g.opts.MaxPermutations <= 0 || course.Type.Aggregates() || len(links) < 2 {
		return false
	}
	pairs := defaultPairs(links)
	for _, p := range pairs[1:] {
		if !samePair(p, pairs[0]) {
			return true
		}
	}
	return false
}

// permute rolls the dataset back and retries with the teacher pairs rotated across links,
// up to MaxPermutations rotations. It returns the first attempt without shortfall, leaving its
// sessions in the dataset, or nil with the dataset rolled back.
func (g *Generator) permute(course *models.Course, links []*models.ClassLink, days []time.Time, target int, start, end time.Time, checkpoint int) (*attempt, int) {
	base := defaultPairs(links)
	rotations := min(g.opts.MaxPermutations, len(links)-1)
	for r := 1; r <= rotations; r++ {
		g.ds.RollbackTo(checkpoint)
		pairs := rotatePairs(base, r)
		out := g.run(course, g.buildUnits(course, links, pairs), days, target, start, end, nopRecorder{})
		if out.shortfall == 0 {
			return &out, r
		}
		g.logger.Sugar().Debugw("teacher rotation fell short", "course_id", course.ID, "rotation", r, "shortfall", out.shortfall)
	}
	g.ds.RollbackTo(checkpoint)
	return nil, 0
}

func rotatePairs(pairs []teacherPair, r int) []teacherPair {
	out := make([]teacherPair, len(pairs))
	for i := range pairs {
		out[i] = pairs[(i+r)%len(pairs)]
	}
	return out
}

func samePair(a, b teacherPair) bool {
	return sameID(a.a, b.a) && sameID(a.b, b.b)
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
