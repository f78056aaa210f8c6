package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// Dataset is the in-memory arena the engine works on. Entities are keyed by id and related
// through id indexes; sessions added during a run are journaled until committed or rolled back.
type Dataset struct {
	courses  map[int64]*models.Course
	links    map[int64][]*models.ClassLink
	groups   map[int64]*models.ClassGroup
	teachers map[int64]*models.Teacher
	rooms    []*models.Room
	pool     []*models.Teacher

	sessions  []*models.Session
	byTeacher map[int64][]*models.Session
	byRoom    map[int64][]*models.Session
	byGroup   map[int64][]*models.Session
	byCourse  map[int64][]*models.Session

	journal []*models.Session
	// provisional ids for unsaved sessions count down from -1
	nextID int64
}

// DatasetInput carries the entities loaded from the repository.
type DatasetInput struct {
	Courses  []models.Course
	Links    []models.ClassLink
	Groups   []models.ClassGroup
	Teachers []models.Teacher
	Rooms    []models.Room
	Sessions []models.Session
}

// NewDataset indexes the input. Links are validated; sessions are assumed consistent.
func NewDataset(in DatasetInput) (*Dataset, error) {
	ds := &Dataset{
		courses:   make(map[int64]*models.Course, len(in.Courses)),
		links:     make(map[int64][]*models.ClassLink),
		groups:    make(map[int64]*models.ClassGroup, len(in.Groups)),
		teachers:  make(map[int64]*models.Teacher, len(in.Teachers)),
		byTeacher: make(map[int64][]*models.Session),
		byRoom:    make(map[int64][]*models.Session),
		byGroup:   make(map[int64][]*models.Session),
		byCourse:  make(map[int64][]*models.Session),
	}
	for i := range in.Courses {
		c := in.Courses[i]
		ds.courses[c.ID] = &c
	}
	for i := range in.Groups {
		g := in.Groups[i]
		ds.groups[g.ID] = &g
	}
	for i := range in.Teachers {
		t := in.Teachers[i]
		ds.teachers[t.ID] = &t
		ds.pool = append(ds.pool, &t)
	}
	sort.SliceStable(ds.pool, func(i, j int) bool { return teacherLess(ds.pool[i], ds.pool[j]) })

	for i := range in.Rooms {
		r := in.Rooms[i]
		ds.rooms = append(ds.rooms, &r)
	}
	sort.SliceStable(ds.rooms, func(i, j int) bool {
		if ds.rooms[i].Capacity == ds.rooms[j].Capacity {
			return ds.rooms[i].ID < ds.rooms[j].ID
		}
		return ds.rooms[i].Capacity < ds.rooms[j].Capacity
	})

	for i := range in.Links {
		l := in.Links[i]
		if err := l.Validate(); err != nil {
			return nil, err
		}
		if _, ok := ds.groups[l.ClassGroupID]; !ok {
			return nil, fmt.Errorf("class link %d references unknown class group %d", l.ID, l.ClassGroupID)
		}
		ds.links[l.CourseID] = append(ds.links[l.CourseID], &l)
	}
	for courseID := range ds.links {
		items := ds.links[courseID]
		sort.SliceStable(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	}

	for i := range in.Sessions {
		s := in.Sessions[i]
		ds.index(&s)
	}
	ds.nextID = -1
	return ds, nil
}

func teacherLess(a, b *models.Teacher) bool {
	an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if an == bn {
		return a.ID < b.ID
	}
	return an < bn
}

// Course returns the course with the given id.
func (d *Dataset) Course(id int64) (*models.Course, bool) {
	c, ok := d.courses[id]
	return c, ok
}

// CourseIDs lists every course id in ascending order.
func (d *Dataset) CourseIDs() []int64 {
	ids := make([]int64, 0, len(d.courses))
	for id := range d.courses {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Links returns the class links of a course ordered by id.
func (d *Dataset) Links(courseID int64) []*models.ClassLink {
	return d.links[courseID]
}

// Group returns the class group with the given id.
func (d *Dataset) Group(id int64) (*models.ClassGroup, bool) {
	g, ok := d.groups[id]
	return g, ok
}

// Teacher returns the teacher with the given id.
func (d *Dataset) Teacher(id int64) (*models.Teacher, bool) {
	t, ok := d.teachers[id]
	return t, ok
}

// TeacherPool returns every teacher ordered by name.
func (d *Dataset) TeacherPool() []*models.Teacher {
	return d.pool
}

// Rooms returns every room ordered by ascending capacity.
func (d *Dataset) Rooms() []*models.Room {
	return d.rooms
}

// Sessions returns every known session, committed or not.
func (d *Dataset) Sessions() []*models.Session {
	return d.sessions
}

// TeacherSessions returns the sessions taught by a teacher.
func (d *Dataset) TeacherSessions(id int64) []*models.Session {
	return d.byTeacher[id]
}

// RoomSessions returns the sessions held in a room.
func (d *Dataset) RoomSessions(id int64) []*models.Session {
	return d.byRoom[id]
}

// GroupSessions returns the sessions a class group attends, directly or as an aggregated attendee.
func (d *Dataset) GroupSessions(id int64) []*models.Session {
	return d.byGroup[id]
}

// CourseSessions returns the sessions of a course.
func (d *Dataset) CourseSessions(id int64) []*models.Session {
	return d.byCourse[id]
}

// CourseTeachers lists the teachers already associated with a course, ordered by name.
func (d *Dataset) CourseTeachers(courseID int64) []*models.Teacher {
	seen := make(map[int64]bool)
	var result []*models.Teacher
	add := func(id int64) {
		if seen[id] {
			return
		}
		if t, ok := d.teachers[id]; ok {
			seen[id] = true
			result = append(result, t)
		}
	}
	for _, l := range d.links[courseID] {
		if l.TeacherAID != nil {
			add(*l.TeacherAID)
		}
		if l.TeacherBID != nil {
			add(*l.TeacherBID)
		}
	}
	for _, s := range d.byCourse[courseID] {
		add(s.TeacherID)
	}
	sort.SliceStable(result, func(i, j int) bool { return teacherLess(result[i], result[j]) })
	return result
}

// ScheduledHours sums the hours of a course attended by a group (and subgroup when set) that
// start inside [from, to). Zero bounds are open.
func (d *Dataset) ScheduledHours(courseID, groupID int64, subgroup string, from, to time.Time) int {
	total := 0
	for _, s := range d.byCourse[courseID] {
		if groupID != 0 && !s.Attends(groupID) {
			continue
		}
		if subgroup != "" && s.Subgroup != subgroup {
			continue
		}
		if !from.IsZero() && s.Start.Before(from) {
			continue
		}
		if !to.IsZero() && !s.Start.Before(to) {
			continue
		}
		total += s.Hours()
	}
	return total
}

// Add stores a new session, assigning a provisional negative id, and journals it.
func (d *Dataset) Add(s *models.Session) {
	if s.ID == 0 {
		s.ID = d.nextID
		d.nextID--
	}
	if len(s.AttendeeIDs) == 0 {
		s.AttendeeIDs = []int64{s.ClassGroupID}
	}
	d.index(s)
	d.journal = append(d.journal, s)
}

func (d *Dataset) index(s *models.Session) {
	d.sessions = append(d.sessions, s)
	d.byTeacher[s.TeacherID] = append(d.byTeacher[s.TeacherID], s)
	d.byRoom[s.RoomID] = append(d.byRoom[s.RoomID], s)
	d.byCourse[s.CourseID] = append(d.byCourse[s.CourseID], s)
	seen := map[int64]bool{}
	for _, id := range append([]int64{s.ClassGroupID}, s.AttendeeIDs...) {
		if seen[id] {
			continue
		}
		seen[id] = true
		d.byGroup[id] = append(d.byGroup[id], s)
	}
}

// Checkpoint marks the current journal position.
func (d *Dataset) Checkpoint() int {
	return len(d.journal)
}

// RollbackTo removes every session journaled after the checkpoint.
func (d *Dataset) RollbackTo(checkpoint int) {
	if checkpoint < 0 || checkpoint >= len(d.journal) {
		return
	}
	dropped := make(map[*models.Session]bool, len(d.journal)-checkpoint)
	for _, s := range d.journal[checkpoint:] {
		dropped[s] = true
	}
	d.journal = d.journal[:checkpoint]
	d.sessions = without(d.sessions, dropped)
	for _, index := range []map[int64][]*models.Session{d.byTeacher, d.byRoom, d.byGroup, d.byCourse} {
		for key, items := range index {
			index[key] = without(items, dropped)
		}
	}
}

// Pending returns the sessions journaled since the last commit.
func (d *Dataset) Pending() []*models.Session {
	out := make([]*models.Session, len(d.journal))
	copy(out, d.journal)
	return out
}

// Commit clears the journal; the sessions stay in the arena.
func (d *Dataset) Commit() []*models.Session {
	out := d.Pending()
	d.journal = nil
	return out
}

func without(items []*models.Session, dropped map[*models.Session]bool) []*models.Session {
	kept := items[:0]
	for _, s := range items {
		if !dropped[s] {
			kept = append(kept, s)
		}
	}
	return kept
}
