package scheduler

import (
	"fmt"
	"time"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// BlockRequest describes one block to place for a course audience.
type BlockRequest struct {
	Course *models.Course
	// Groups lists the attendee class groups; the first one is the primary group.
	Groups    []*models.ClassGroup
	Subgroup  string
	Seats     int
	Hours     int
	Preferred []int64
	// WeeklyTarget caps the hours of this audience in one ISO week; zero disables the cap.
	WeeklyTarget int
}

func (r BlockRequest) groupIDs() []int64 {
	ids := make([]int64, len(r.Groups))
	for i, g := range r.Groups {
		ids[i] = g.ID
	}
	return ids
}

// PlacerOptions toggles optional placement behaviour.
type PlacerOptions struct {
	AllowSplit        bool
	EnforceChronology bool
	Chronology        Chronology
}

// Placer finds feasible placements for blocks on a given day and records them in the dataset.
type Placer struct {
	grid *Grid
	ds   *Dataset
	opts PlacerOptions
}

// NewPlacer constructs a placer.
func NewPlacer(grid *Grid, ds *Dataset, opts PlacerOptions) *Placer {
	if opts.Chronology == nil {
		opts.Chronology = DefaultChronology()
	}
	return &Placer{grid: grid, ds: ds, opts: opts}
}

// preferenceOrder maps the link's teacher pair to the order in which they are tried.
type preferenceOrder func(teacherA, teacherB *int64, subgroup string) []int64

func primaryFirst(teacherA, teacherB *int64, _ string) []int64 {
	return compactIDs(teacherA, teacherB)
}

func subgroupAware(teacherA, teacherB *int64, subgroup string) []int64 {
	if subgroup == models.SubgroupB {
		return compactIDs(teacherB, teacherA)
	}
	return compactIDs(teacherA, teacherB)
}

var teacherPreferences = map[models.CourseType]preferenceOrder{
	models.CourseTypeLecture:   primaryFirst,
	models.CourseTypeProject:   primaryFirst,
	models.CourseTypeExam:      primaryFirst,
	models.CourseTypeTutorial:  subgroupAware,
	models.CourseTypePractical: subgroupAware,
}

// PreferredTeachers resolves the link-preferred teachers for a course type and subgroup.
func PreferredTeachers(courseType models.CourseType, teacherA, teacherB *int64, subgroup string) []int64 {
	order, ok := teacherPreferences[courseType]
	if !ok {
		order = primaryFirst
	}
	return order(teacherA, teacherB, subgroup)
}

func compactIDs(ids ...*int64) []int64 {
	var out []int64
	for _, id := range ids {
		if id != nil {
			out = append(out, *id)
		}
	}
	return out
}

// Place tries a full block on day, then a split block when allowed. It returns the created
// sessions, or nil and the last rejection reason.
func (p *Placer) Place(req BlockRequest, day time.Time, baseOffset int) ([]*models.Session, string) {
	if req.Hours <= 0 || len(req.Groups) == 0 {
		return nil, "empty block request"
	}
	reason := "no start time fits a working window"
	starts := p.grid.StartTimes()
	for k := range starts {
		start := starts[(baseOffset+k)%len(starts)]
		end := start + req.Hours*slotMinutes
		if !p.grid.FitsInWindow(start, end) {
			continue
		}
		sessions, why := p.tryBlock(req, day, []Segment{{Start: start, End: end}})
		if sessions != nil {
			return sessions, ""
		}
		reason = why
	}

	if req.Hours > 1 && p.opts.AllowSplit {
		for _, run := range p.grid.SplitRuns(req.Hours) {
			sessions, why := p.tryBlock(req, day, run)
			if sessions != nil {
				return sessions, ""
			}
			reason = why
		}
	}
	return nil, reason
}

func (p *Placer) tryBlock(req BlockRequest, day time.Time, segments []Segment) ([]*models.Session, string) {
	type span struct{ start, end time.Time }
	spans := make([]span, len(segments))
	for i, seg := range segments {
		if !p.grid.FitsInWindow(seg.Start, seg.End) {
			return nil, "segment outside working windows"
		}
		spans[i] = span{start: At(day, seg.Start), end: At(day, seg.End)}
	}

	primary := req.Groups[0]
	weekStart := WeekStart(day)
	scheduled := p.ds.ScheduledHours(req.Course.ID, primary.ID, req.Subgroup, weekStart, weekStart.AddDate(0, 0, 7))
	if ok, why := WeeklyHourCapRespected(scheduled, req.Hours, req.WeeklyTarget); !ok {
		return nil, why
	}

	for _, sp := range spans {
		for _, group := range req.Groups {
			if ok, why := ClassGroupAvailable(group, p.ds.GroupSessions(group.ID), req.Subgroup, sp.start, sp.end, 0); !ok {
				return nil, why
			}
		}
		if p.opts.EnforceChronology {
			if ok, why := RespectsWeeklyChronology(p.ds, p.opts.Chronology, req.Course, req.groupIDs(), req.Subgroup, sp.start); !ok {
				return nil, why
			}
		}
	}

	var teacher *models.Teacher
	reason := "no teacher available"
	for _, candidate := range p.teacherCandidates(req) {
		ok := true
		for _, sp := range spans {
			if ok, reason = TeacherAvailable(candidate, sp.start, sp.end); !ok {
				break
			}
			if ok, reason = NoOverlap(p.ds.TeacherSessions(candidate.ID), sp.start, sp.end, 0); !ok {
				reason = fmt.Sprintf("%s: %s", candidate.Name, reason)
				break
			}
		}
		if ok {
			if ok, reason = TeacherWeeklyBudget(candidate, p.ds.TeacherSessions(candidate.ID), spans[0].start, req.Hours); ok {
				teacher = candidate
				break
			}
		}
	}
	if teacher == nil {
		return nil, reason
	}

	rooms := make([]*models.Room, len(spans))
	for i, sp := range spans {
		room, why := p.selectRoom(req, sp.start, sp.end)
		if room == nil {
			return nil, why
		}
		rooms[i] = room
	}

	created := make([]*models.Session, len(spans))
	for i, sp := range spans {
		session := &models.Session{
			CourseID:     req.Course.ID,
			TeacherID:    teacher.ID,
			RoomID:       rooms[i].ID,
			ClassGroupID: primary.ID,
			Subgroup:     req.Subgroup,
			AttendeeIDs:  req.groupIDs(),
			Start:        sp.start,
			End:          sp.end,
		}
		p.ds.Add(session)
		created[i] = session
	}
	return created, ""
}

// teacherCandidates returns preferred teachers, then course teachers, then the whole pool,
// without duplicates.
func (p *Placer) teacherCandidates(req BlockRequest) []*models.Teacher {
	seen := make(map[int64]bool)
	var out []*models.Teacher
	add := func(t *models.Teacher) {
		if t == nil || seen[t.ID] {
			return
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	for _, id := range req.Preferred {
		if t, ok := p.ds.Teacher(id); ok {
			add(t)
		}
	}
	for _, t := range p.ds.CourseTeachers(req.Course.ID) {
		add(t)
	}
	for _, t := range p.ds.TeacherPool() {
		add(t)
	}
	return out
}

// selectRoom picks the smallest feasible room, preferring fewer missing software titles.
func (p *Placer) selectRoom(req BlockRequest, start, end time.Time) (*models.Room, string) {
	computers := 0
	if req.Course.RequiresComputers {
		computers = req.Seats
	}
	var best *models.Room
	bestMissing := 0
	reason := "no room available"
	for _, room := range p.ds.Rooms() {
		if ok, why := RoomFits(room, req.Seats, req.Course.EquipmentIDs, computers); !ok {
			reason = why
			continue
		}
		if ok, why := NoOverlap(p.ds.RoomSessions(room.ID), start, end, 0); !ok {
			reason = fmt.Sprintf("room %s: %s", room.Name, why)
			continue
		}
		missing := room.MissingSoftware(req.Course.Software)
		if missing == 0 {
			return room, ""
		}
		if best == nil || missing < bestMissing {
			best = room
			bestMissing = missing
		}
	}
	if best == nil {
		return nil, reason
	}
	return best, ""
}
