package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/progress"
)

func newGenerator(ds *Dataset, opts Options) *Generator {
	return NewGenerator(DefaultGrid(), ds, opts, nil)
}

func defaultOptions() Options {
	return Options{AllowSplit: true, EnforceChronology: true, MaxPermutations: 3}
}

func TestGenerateTutorialPlacesTwoBlocks(t *testing.T) {
	in := baseInput()
	in.Courses = []models.Course{course(1, "Algebra TD", models.CourseTypeTutorial, 2, 2)}
	in.Links = []models.ClassLink{link(1, 1, 1, 1, 1)}
	ds := newDataset(t, in)
	gen := newGenerator(ds, defaultOptions())
	tracker := progress.NewTracker("job", "algebra", nil)

	res, err := gen.GenerateSchedule(context.Background(), 1, GenerateRequest{Recorder: tracker})
	require.NoError(t, err)
	require.Len(t, res.Sessions, 2)
	assert.Equal(t, 0, res.Shortfall)
	assert.Equal(t, 4, totalHours(res.Sessions))
	assert.Equal(t, models.RunLogStatusSuccess, res.RunLog.Status)

	grid := DefaultGrid()
	for _, s := range res.Sessions {
		assert.Equal(t, 2, s.Hours())
		assert.True(t, grid.FitsInWindow(MinuteOfDay(s.Start), MinuteOfDay(s.End)))
	}
	assertNoDoubleBooking(t, res.Sessions)

	// blocks are spread to both ends of the week
	assert.Equal(t, At(day(0), clock(8, 0)), res.Sessions[0].Start)
	assert.Equal(t, At(day(4), clock(10, 15)), res.Sessions[1].Start)

	remaining, _ := gen.Remaining(1)
	assert.Equal(t, 0, remaining)

	snap := tracker.Snapshot()
	assert.Equal(t, 4, snap.TotalHours)
	assert.Equal(t, 4, snap.CompletedHours)
	assert.Equal(t, 2, snap.SessionsCreated)
	assert.Equal(t, 99, snap.Percent)
}

func TestGenerateRerunIsNoop(t *testing.T) {
	in := baseInput()
	in.Courses = []models.Course{course(1, "Algebra TD", models.CourseTypeTutorial, 2, 2)}
	in.Links = []models.ClassLink{link(1, 1, 1, 1, 1)}
	ds := newDataset(t, in)
	gen := newGenerator(ds, defaultOptions())

	_, err := gen.GenerateSchedule(context.Background(), 1, GenerateRequest{})
	require.NoError(t, err)
	res, err := gen.GenerateSchedule(context.Background(), 1, GenerateRequest{})
	require.NoError(t, err)
	assert.Empty(t, res.Sessions)
	assert.Equal(t, models.RunLogStatusSuccess, res.RunLog.Status)
	assert.Len(t, ds.CourseSessions(1), 2)
}

func TestGenerateRejectsOversizedBlockWithoutSplit(t *testing.T) {
	in := baseInput()
	in.Teachers = []models.Teacher{{ID: 1, Name: "Ada", Availability: models.AvailabilityRules{
		{Weekday: 1, Start: "08:00", End: "09:00"},
		{Weekday: 3, Start: "14:30", End: "15:30"},
	}}}
	in.Courses = []models.Course{course(1, "Capstone", models.CourseTypeProject, 4, 1)}
	in.Links = []models.ClassLink{link(1, 1, 1, 1, 1)}
	ds := newDataset(t, in)
	gen := newGenerator(ds, Options{AllowSplit: false})

	res, err := gen.GenerateSchedule(context.Background(), 1, GenerateRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConfiguration))
	require.NotNil(t, res.RunLog)
	assert.Equal(t, models.RunLogStatusError, res.RunLog.Status)
	assert.Contains(t, res.RunLog.Summary, "split sessions are disabled")
	assert.Empty(t, ds.Sessions())
}

func TestGenerateWindowAndPreconditionErrors(t *testing.T) {
	in := baseInput()
	noSpan := course(1, "Unbounded", models.CourseTypeTutorial, 2, 1)
	noSpan.StartDate, noSpan.EndDate = nil, nil
	in.Courses = []models.Course{noSpan, course(2, "Orphan", models.CourseTypeTutorial, 2, 1), course(3, "Late", models.CourseTypeTutorial, 2, 1)}
	in.Links = []models.ClassLink{link(1, 1, 1, 1), link(3, 3, 1, 1)}
	ds := newDataset(t, in)
	gen := newGenerator(ds, defaultOptions())
	ctx := context.Background()

	res, err := gen.GenerateSchedule(ctx, 1, GenerateRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrConfiguration))
	assert.Equal(t, models.RunLogStatusError, res.RunLog.Status)

	_, err = gen.GenerateSchedule(ctx, 2, GenerateRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))

	after := day(10)
	_, err = gen.GenerateSchedule(ctx, 3, GenerateRequest{WindowStart: &after})
	assert.True(t, errors.Is(err, appErrors.ErrConfiguration))

	_, err = gen.GenerateSchedule(ctx, 99, GenerateRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.True(t, appErrors.IsDomain(err))
}

func TestGenerateBlockFailureBecomesWarning(t *testing.T) {
	in := baseInput()
	in.Teachers = []models.Teacher{{ID: 1, Name: "Ada", Availability: models.AvailabilityRules{
		{Weekday: 1, Start: "08:00", End: "10:00"},
	}}}
	in.Courses = []models.Course{course(1, "Algebra TD", models.CourseTypeTutorial, 2, 2)}
	in.Links = []models.ClassLink{link(1, 1, 1, 1, 1)}
	ds := newDataset(t, in)
	gen := newGenerator(ds, defaultOptions())

	res, err := gen.GenerateSchedule(context.Background(), 1, GenerateRequest{})
	require.NoError(t, err)
	assert.Len(t, res.Sessions, 1)
	assert.Equal(t, 2, res.Shortfall)
	assert.Equal(t, models.RunLogStatusWarning, res.RunLog.Status)

	var warnings int
	for _, e := range res.RunLog.Entries {
		if e.Level == models.RunLogLevelWarning {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestGenerateLectureAggregatesClasses(t *testing.T) {
	in := baseInput()
	in.Groups = append(in.Groups, models.ClassGroup{ID: 2, Name: "X2", Size: 20})
	in.Rooms = append(in.Rooms, models.Room{ID: 2, Name: "Amphi", Capacity: 50})
	in.Courses = []models.Course{course(1, "Algebra CM", models.CourseTypeLecture, 2, 1)}
	in.Links = []models.ClassLink{link(1, 1, 1, 1, 1), link(2, 1, 2, 1, 1)}
	ds := newDataset(t, in)
	gen := newGenerator(ds, defaultOptions())

	res, err := gen.GenerateSchedule(context.Background(), 1, GenerateRequest{})
	require.NoError(t, err)
	require.Len(t, res.Sessions, 1)
	s := res.Sessions[0]
	assert.Equal(t, int64(2), s.RoomID, "44 seats need the amphitheatre")
	assert.Equal(t, int64(1), s.ClassGroupID)
	assert.ElementsMatch(t, []int64{1, 2}, []int64(s.AttendeeIDs))
	assert.Len(t, ds.GroupSessions(2), 1)
}

func TestGeneratePracticalSchedulesSubgroupsWithTheirTeachers(t *testing.T) {
	in := baseInput()
	in.Teachers = append(in.Teachers, models.Teacher{ID: 2, Name: "Bea", Availability: weekdays("08:00", "18:00")})
	in.Courses = []models.Course{course(1, "Algebra TP", models.CourseTypePractical, 2, 1)}
	l := link(1, 1, 1, 2, 1, 2)
	l.SubgroupNameB = "Beta"
	in.Links = []models.ClassLink{l}
	ds := newDataset(t, in)
	gen := newGenerator(ds, defaultOptions())

	res, err := gen.GenerateSchedule(context.Background(), 1, GenerateRequest{})
	require.NoError(t, err)
	require.Len(t, res.Sessions, 2)
	bySubgroup := map[string]*models.Session{}
	for _, s := range res.Sessions {
		bySubgroup[s.Subgroup] = s
	}
	assert.Equal(t, int64(1), bySubgroup[models.SubgroupA].TeacherID)
	assert.Equal(t, int64(2), bySubgroup[models.SubgroupB].TeacherID)
	assertNoDoubleBooking(t, res.Sessions)
}

func TestGenerateSplitsLongBlocksAcrossWindows(t *testing.T) {
	in := baseInput()
	in.Courses = []models.Course{course(1, "Workshop", models.CourseTypeTutorial, 3, 2)}
	in.Links = []models.ClassLink{link(1, 1, 1, 1, 1)}
	ds := newDataset(t, in)
	gen := newGenerator(ds, defaultOptions())

	res, err := gen.GenerateSchedule(context.Background(), 1, GenerateRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Shortfall)
	assert.Equal(t, 6, totalHours(res.Sessions))
	require.Len(t, res.Sessions, 4)

	grid := DefaultGrid()
	for i, s := range res.Sessions {
		assert.True(t, grid.FitsInWindow(MinuteOfDay(s.Start), MinuteOfDay(s.End)))
		if i%2 == 1 {
			prev := res.Sessions[i-1]
			assert.Equal(t, prev.TeacherID, s.TeacherID, "one teacher covers a split block")
			gap := MinuteOfDay(s.Start) - MinuteOfDay(prev.End)
			assert.True(t, gap <= grid.MaxGap || grid.IsExtendedBreak(MinuteOfDay(prev.End), MinuteOfDay(s.Start)))
		}
	}
	assertNoDoubleBooking(t, res.Sessions)
}

func TestGenerateHonoursWeeklyTarget(t *testing.T) {
	in := baseInput()
	c := course(1, "Algebra TD", models.CourseTypeTutorial, 2, 4)
	c.EndDate = ptr(day(11))
	in.Courses = []models.Course{c}
	in.Links = []models.ClassLink{link(1, 1, 1, 1, 1)}
	ds := newDataset(t, in)
	gen := newGenerator(ds, defaultOptions())

	res, err := gen.GenerateSchedule(context.Background(), 1, GenerateRequest{WeeklyTarget: 4})
	require.NoError(t, err)
	assert.Equal(t, 8, totalHours(res.Sessions))

	perWeek := map[time.Time]int{}
	for _, s := range res.Sessions {
		perWeek[WeekStart(s.Start)] += s.Hours()
	}
	assert.Equal(t, map[time.Time]int{monday: 4, monday.AddDate(0, 0, 7): 4}, perWeek)
}

func TestGenerateKeepsWeeklyChronology(t *testing.T) {
	in := baseInput()
	lecture := course(1, "Algebra CM", models.CourseTypeLecture, 2, 1)
	lecture.Subject = "Algebra"
	tutorial := course(2, "Algebra TD", models.CourseTypeTutorial, 2, 2)
	tutorial.Subject = "Algebra"
	in.Courses = []models.Course{lecture, tutorial}
	in.Links = []models.ClassLink{link(1, 1, 1, 1, 1), link(2, 2, 1, 1, 1)}
	ds := newDataset(t, in)
	gen := newGenerator(ds, defaultOptions())

	_, err := gen.GenerateSchedule(context.Background(), 2, GenerateRequest{})
	require.NoError(t, err)
	res, err := gen.GenerateSchedule(context.Background(), 1, GenerateRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.RunLogStatusWarning, res.RunLog.Status, "the tutorial already scheduled blocks the lecture that week")
	assertChronology(t, ds)

	fresh := newDataset(t, in)
	gen = newGenerator(fresh, defaultOptions())
	_, err = gen.GenerateSchedule(context.Background(), 1, GenerateRequest{})
	require.NoError(t, err)
	res, err = gen.GenerateSchedule(context.Background(), 2, GenerateRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Shortfall)
	assertChronology(t, fresh)
}

func TestGenerateRejectsEarlierTypeOnceLaterTypeScheduled(t *testing.T) {
	in := baseInput()
	lecture := course(1, "Algebra CM", models.CourseTypeLecture, 2, 1)
	lecture.Subject = "Algebra"
	practical := course(2, "Algebra TP", models.CourseTypePractical, 2, 1)
	practical.Subject = "Algebra"
	in.Courses = []models.Course{lecture, practical}
	in.Links = []models.ClassLink{link(1, 1, 1, 1, 1)}
	in.Sessions = []models.Session{{ID: 700, CourseID: 2, TeacherID: 1, RoomID: 1, ClassGroupID: 1,
		Start: At(day(3), clock(8, 0)), End: At(day(3), clock(10, 0))}}
	ds := newDataset(t, in)
	gen := newGenerator(ds, defaultOptions())

	res, err := gen.GenerateSchedule(context.Background(), 1, GenerateRequest{})
	require.NoError(t, err)
	assert.Empty(t, res.Sessions)
	assert.Positive(t, res.Shortfall)
	assert.Equal(t, models.RunLogStatusWarning, res.RunLog.Status)
	assertChronology(t, ds)
}

func assertChronology(t *testing.T, ds *Dataset) {
	t.Helper()
	order := DefaultChronology()
	sessions := ds.Sessions()
	for _, a := range sessions {
		for _, b := range sessions {
			ca, _ := ds.Course(a.CourseID)
			cb, _ := ds.Course(b.CourseID)
			if ca.SubjectName() != cb.SubjectName() || !WeekStart(a.Start).Equal(WeekStart(b.Start)) {
				continue
			}
			if a.ClassGroupID != b.ClassGroupID || !a.SharesStudents(b.Subgroup) {
				continue
			}
			if order[ca.Type] < order[cb.Type] {
				assert.False(t, a.Start.After(b.Start), "%s after %s", ca.Type, cb.Type)
			}
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	build := func() DatasetInput {
		in := baseInput()
		in.Groups = append(in.Groups, models.ClassGroup{ID: 2, Name: "X2", Size: 28})
		in.Teachers = append(in.Teachers, models.Teacher{ID: 2, Name: "Bea"})
		in.Rooms = append(in.Rooms, models.Room{ID: 2, Name: "R40", Capacity: 40})
		in.Courses = []models.Course{
			course(1, "Algebra TD", models.CourseTypeTutorial, 2, 3),
			course(2, "Physics TP", models.CourseTypePractical, 2, 2),
		}
		in.Links = []models.ClassLink{link(1, 1, 1, 1, 1), link(2, 1, 2, 1, 2), link(3, 2, 1, 2, 1, 2)}
		return in
	}
	type key struct {
		start, end           time.Time
		teacher, room, group int64
		subgroup             string
	}
	run := func() []key {
		ds := newDataset(t, build())
		gen := newGenerator(ds, defaultOptions())
		for _, id := range ds.CourseIDs() {
			_, err := gen.GenerateSchedule(context.Background(), id, GenerateRequest{})
			require.NoError(t, err)
		}
		assertNoDoubleBooking(t, ds.Sessions())
		var keys []key
		for _, s := range ds.Sessions() {
			keys = append(keys, key{s.Start, s.End, s.TeacherID, s.RoomID, s.ClassGroupID, s.Subgroup})
		}
		return keys
	}
	first := run()
	assert.NotEmpty(t, first)
	assert.ElementsMatch(t, first, run())
}

func TestGenerateNeverDoubleBooksSharedResources(t *testing.T) {
	in := baseInput()
	in.Groups = append(in.Groups, models.ClassGroup{ID: 2, Name: "X2", Size: 20})
	for i := int64(1); i <= 4; i++ {
		in.Courses = append(in.Courses, course(i, "Course", models.CourseTypeTutorial, 2, 3))
		in.Links = append(in.Links, link(i*10, i, 1, 1, 1), link(i*10+1, i, 2, 1, 1))
	}
	ds := newDataset(t, in)
	gen := newGenerator(ds, defaultOptions())
	for _, id := range ds.CourseIDs() {
		res, err := gen.GenerateSchedule(context.Background(), id, GenerateRequest{})
		require.NoError(t, err)
		if res.Shortfall == 0 {
			assert.Equal(t, 12, totalHours(ds.CourseSessions(id)))
		}
	}
	assertNoDoubleBooking(t, ds.Sessions())
}

func TestAnchorIndexAndDayOrder(t *testing.T) {
	assert.Equal(t, 0, anchorIndex(0, 1, 5))
	assert.Equal(t, 0, anchorIndex(0, 3, 5))
	assert.Equal(t, 2, anchorIndex(1, 3, 5))
	assert.Equal(t, 4, anchorIndex(2, 3, 5))

	assert.Equal(t, []int{4, 3, 2, 1, 0}, orderDays([]int{2, 0, 0, 0, 0}, 4))
	assert.Equal(t, []int{1, 0, 2, 3}, orderDays([]int{0, 0, 1, 1}, 2))
}
