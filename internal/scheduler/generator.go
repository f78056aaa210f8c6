package scheduler

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/progress"
)

// Options configures the generator and its placer.
type Options struct {
	AllowSplit        bool
	EnforceChronology bool
	Chronology        Chronology
	// MaxPermutations bounds the teacher rotations tried when a multi-class course falls short.
	MaxPermutations int
}

// GenerateRequest narrows one generation run.
type GenerateRequest struct {
	WindowStart *time.Time
	WindowEnd   *time.Time
	// WeeklyTarget caps the hours per ISO week for each audience; zero means uncapped.
	WeeklyTarget int
	ClosedDays   []time.Time
	Recorder     progress.Recorder
}

// GenerateResult reports what one run produced.
type GenerateResult struct {
	CourseID    int64
	Sessions    []*models.Session
	RunLog      *models.RunLog
	NeededHours int
	PlacedHours int
	Shortfall   int
}

// Generator drives the placer across the remaining hours of one course.
type Generator struct {
	grid   *Grid
	ds     *Dataset
	placer *Placer
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// NewGenerator wires a generator over the dataset.
func NewGenerator(grid *Grid, ds *Dataset, opts Options, logger *zap.Logger) *Generator {
	if grid == nil {
		grid = DefaultGrid()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Chronology == nil {
		opts.Chronology = DefaultChronology()
	}
	placer := NewPlacer(grid, ds, PlacerOptions{
		AllowSplit:        opts.AllowSplit,
		EnforceChronology: opts.EnforceChronology,
		Chronology:        opts.Chronology,
	})
	return &Generator{grid: grid, ds: ds, placer: placer, opts: opts, logger: logger, now: time.Now}
}

// Dataset exposes the arena the generator writes into.
func (g *Generator) Dataset() *Dataset {
	return g.ds
}

type teacherPair struct {
	a *int64
	b *int64
}

// unit is one audience scheduled independently: the whole aggregate, or one link subgroup.
type unit struct {
	label     string
	groups    []*models.ClassGroup
	subgroup  string
	seats     int
	preferred []int64
	remaining int
}

type attempt struct {
	sessions  []*models.Session
	warnings  []string
	needed    int
	placed    int
	shortfall int
}

type nopRecorder struct{}

func (nopRecorder) Record(int, int) {}

type initialiser interface {
	Initialise(totalHours int)
}

// GenerateSchedule places the outstanding hours of a course inside the resolved window.
// Configuration and precondition failures abort the course; block failures become warnings.
// The returned result always carries a finalized RunLog.
func (g *Generator) GenerateSchedule(ctx context.Context, courseID int64, req GenerateRequest) (*GenerateResult, error) {
	rl := newRunLogger(courseID, g.now(), g.logger)
	result := &GenerateResult{CourseID: courseID}
	fail := func(err error) (*GenerateResult, error) {
		result.RunLog = rl.fail(err)
		return result, err
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	course, ok := g.ds.Course(courseID)
	if !ok {
		return fail(appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course %d not found", courseID)))
	}
	start, end, err := resolveWindow(course, req)
	if err != nil {
		return fail(err)
	}
	rl.window(start, end)

	links := g.ds.Links(courseID)
	if len(links) == 0 {
		return fail(appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("course %s has no class group", course.Name)))
	}
	if err := g.checkBlockLength(course); err != nil {
		return fail(err)
	}

	recorder := req.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	days := workingDays(start, end, req.ClosedDays)
	rl.info("window %s to %s, %d working day(s)", start.Format("2006-01-02"), end.Format("2006-01-02"), len(days))

	pairs := defaultPairs(links)
	checkpoint := g.ds.Checkpoint()
	units := g.buildUnits(course, links, pairs)
	needed := g.neededHours(course, units, req.WeeklyTarget, start, end)
	if tracker, ok := recorder.(initialiser); ok {
		tracker.Initialise(needed)
	}

	best := g.run(course, units, days, req.WeeklyTarget, start, end, recorder)
	if best.shortfall > 0 && g.permutable(course, links) {
		if alt, rotation := g.permute(course, links, days, req.WeeklyTarget, start, end, checkpoint); alt != nil {
			rl.info("teacher rotation %d placed every block", rotation)
			if delta := len(alt.sessions) - len(best.sessions); delta != 0 {
				recorder.Record(0, delta)
			}
			best = *alt
		} else {
			g.ds.RollbackTo(checkpoint)
			best = g.run(course, g.buildUnits(course, links, pairs), days, req.WeeklyTarget, start, end, nopRecorder{})
		}
	}

	for _, w := range best.warnings {
		rl.warn("%s", w)
	}
	if best.shortfall > 0 {
		rl.warn("%dh of %dh could not be placed", best.shortfall, best.needed)
	}
	result.Sessions = best.sessions
	result.NeededHours = best.needed
	result.PlacedHours = best.placed
	result.Shortfall = best.shortfall
	result.RunLog = rl.finish(fmt.Sprintf("%d session(s) created, %dh of %dh placed", len(best.sessions), best.placed, best.needed))
	return result, nil
}

// Remaining reports the largest outstanding hours of any audience of the course and their sum.
func (g *Generator) Remaining(courseID int64) (int, int) {
	course, ok := g.ds.Course(courseID)
	if !ok {
		return 0, 0
	}
	links := g.ds.Links(courseID)
	maxHours, sum := 0, 0
	for _, u := range g.buildUnits(course, links, defaultPairs(links)) {
		maxHours = max(maxHours, u.remaining)
		sum += u.remaining
	}
	return maxHours, sum
}

// Audiences counts the independently scheduled audiences of a course.
func (g *Generator) Audiences(courseID int64) int {
	course, ok := g.ds.Course(courseID)
	if !ok {
		return 0
	}
	links := g.ds.Links(courseID)
	return len(g.buildUnits(course, links, defaultPairs(links)))
}

func (g *Generator) checkBlockLength(course *models.Course) error {
	if course.SessionLength <= 0 {
		return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("course %s has no session length", course.Name))
	}
	if course.SessionLength*slotMinutes <= g.grid.LongestWindow() {
		return nil
	}
	if !g.opts.AllowSplit {
		return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("a %dh block of %s exceeds every working window and split sessions are disabled", course.SessionLength, course.Name))
	}
	if len(g.grid.SplitRuns(course.SessionLength)) == 0 {
		return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("a %dh block of %s cannot be split across the grid", course.SessionLength, course.Name))
	}
	return nil
}

func (g *Generator) buildUnits(course *models.Course, links []*models.ClassLink, pairs []teacherPair) []unit {
	total := course.TotalRequiredHours()
	if course.Type.Aggregates() {
		u := unit{label: "all classes"}
		seen := make(map[int64]bool)
		for i, link := range links {
			group, ok := g.ds.Group(link.ClassGroupID)
			if !ok {
				continue
			}
			if !seen[group.ID] {
				seen[group.ID] = true
				u.groups = append(u.groups, group)
				u.seats += link.Seats(group.Size)
			}
			u.preferred = appendUnique(u.preferred, PreferredTeachers(course.Type, pairs[i].a, pairs[i].b, "")...)
		}
		if len(u.groups) == 0 {
			return nil
		}
		u.remaining = max(0, total-g.ds.ScheduledHours(course.ID, u.groups[0].ID, "", time.Time{}, time.Time{}))
		return []unit{u}
	}

	var units []unit
	for i, link := range links {
		group, ok := g.ds.Group(link.ClassGroupID)
		if !ok {
			continue
		}
		for _, subgroup := range link.Subgroups() {
			label := group.Name
			if subgroup != "" {
				label = fmt.Sprintf("%s/%s", group.Name, link.SubgroupDisplayName(subgroup))
			}
			units = append(units, unit{
				label:     label,
				groups:    []*models.ClassGroup{group},
				subgroup:  subgroup,
				seats:     link.Seats(group.Size),
				preferred: PreferredTeachers(course.Type, pairs[i].a, pairs[i].b, subgroup),
				remaining: max(0, total-g.ds.ScheduledHours(course.ID, group.ID, subgroup, time.Time{}, time.Time{})),
			})
		}
	}
	return units
}

// neededHours sums, over units, the hours that can still be placed in the window.
func (g *Generator) neededHours(course *models.Course, units []unit, target int, start, end time.Time) int {
	sum := 0
	for _, u := range units {
		sum += g.unitNeed(course, u, target, start, end)
	}
	return sum
}

func (g *Generator) unitNeed(course *models.Course, u unit, target int, start, end time.Time) int {
	if target <= 0 || u.remaining == 0 {
		return u.remaining
	}
	capacity := 0
	for week := WeekStart(start); !week.After(end); week = week.AddDate(0, 0, 7) {
		scheduled := g.ds.ScheduledHours(course.ID, u.groups[0].ID, u.subgroup, week, week.AddDate(0, 0, 7))
		capacity += max(0, target-scheduled)
	}
	return min(u.remaining, capacity)
}

func (g *Generator) run(course *models.Course, units []unit, days []time.Time, target int, start, end time.Time, recorder progress.Recorder) attempt {
	var out attempt
	starts := len(g.grid.StartTimes())
	for ui, u := range units {
		need := g.unitNeed(course, u, target, start, end)
		if need == 0 {
			continue
		}
		out.needed += need

		unitDays := availableDays(days, u.groups)
		if len(unitDays) == 0 {
			out.warnings = append(out.warnings, fmt.Sprintf("%s: no working day available in the window", u.label))
			out.shortfall += need
			recorder.Record(need, 0)
			continue
		}
		dayHours := make([]int, len(unitDays))
		for i, day := range unitDays {
			dayHours[i] = g.ds.ScheduledHours(course.ID, u.groups[0].ID, u.subgroup, day, day.AddDate(0, 0, 1))
		}

		blocks := splitBlocks(need, course.SessionLength)
		for bi, hours := range blocks {
			anchor := anchorIndex(bi, len(blocks), len(unitDays))
			req := BlockRequest{
				Course:       course,
				Groups:       u.groups,
				Subgroup:     u.subgroup,
				Seats:        u.seats,
				Hours:        hours,
				Preferred:    u.preferred,
				WeeklyTarget: target,
			}
			reason := "no candidate day"
			var placed []*models.Session
			for _, idx := range orderDays(dayHours, anchor) {
				placed, reason = g.placer.Place(req, unitDays[idx], (ui+bi)%starts)
				if placed != nil {
					dayHours[idx] += hours
					break
				}
			}
			if placed == nil {
				out.warnings = append(out.warnings, fmt.Sprintf("%s: block %d/%d (%dh) not placed: %s", u.label, bi+1, len(blocks), hours, reason))
				out.shortfall += hours
				recorder.Record(hours, 0)
				continue
			}
			out.sessions = append(out.sessions, placed...)
			out.placed += hours
			recorder.Record(hours, len(placed))
		}
	}
	return out
}

func defaultPairs(links []*models.ClassLink) []teacherPair {
	pairs := make([]teacherPair, len(links))
	for i, link := range links {
		pairs[i] = teacherPair{a: link.TeacherAID, b: link.TeacherBID}
	}
	return pairs
}

// resolveWindow intersects the course span with the requested bounds, by calendar date.
func resolveWindow(course *models.Course, req GenerateRequest) (time.Time, time.Time, error) {
	start := latest(course.StartDate, req.WindowStart)
	end := earliest(course.EndDate, req.WindowEnd)
	if start == nil || end == nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("no start/end window resolvable for course %s", course.Name))
	}
	from, to := dateOf(*start), dateOf(*end)
	if from.After(to) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("window start %s is after end %s for course %s", from.Format("2006-01-02"), to.Format("2006-01-02"), course.Name))
	}
	return from, to, nil
}

func latest(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || a.After(*b) {
		return a
	}
	return b
}

func earliest(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || a.Before(*b) {
		return a
	}
	return b
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// workingDays lists Monday-Friday dates in [start,end] that are not closed.
func workingDays(start, end time.Time, closed []time.Time) []time.Time {
	var days []time.Time
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if isWeekend(day) || models.DateList(closed).Contains(day) {
			continue
		}
		days = append(days, day)
	}
	return days
}

func availableDays(days []time.Time, groups []*models.ClassGroup) []time.Time {
	var out []time.Time
	for _, day := range days {
		open := true
		for _, group := range groups {
			if group.BlackoutDates.Contains(day) {
				open = false
				break
			}
		}
		if open {
			out = append(out, day)
		}
	}
	return out
}

func splitBlocks(hours, length int) []int {
	var blocks []int
	for hours > 0 {
		b := min(length, hours)
		blocks = append(blocks, b)
		hours -= b
	}
	return blocks
}

// anchorIndex spreads block i of n evenly over the day list.
func anchorIndex(i, n, days int) int {
	if n <= 1 || days <= 1 {
		return 0
	}
	anchor := int(math.Round(float64(i) * float64(days-1) / float64(n-1)))
	return min(max(anchor, 0), days-1)
}

// orderDays sorts day indexes by load, then distance to the anchor, then position.
func orderDays(dayHours []int, anchor int) []int {
	order := make([]int, len(dayHours))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		a, b := order[x], order[y]
		if dayHours[a] != dayHours[b] {
			return dayHours[a] < dayHours[b]
		}
		da, db := abs(a-anchor), abs(b-anchor)
		if da != db {
			return da < db
		}
		return a < b
	})
	return order
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func appendUnique(dst []int64, ids ...int64) []int64 {
	for _, id := range ids {
		found := false
		for _, existing := range dst {
			if existing == id {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, id)
		}
	}
	return dst
}
