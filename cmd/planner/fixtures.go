package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
)

const dateLayout = "2006-01-02"

type courseRecord struct {
	ID                  int64  `csv:"id"`
	Name                string `csv:"name"`
	Subject             string `csv:"subject"`
	Type                string `csv:"type"`
	SessionLength       int    `csv:"session_length"`
	RequiredOccurrences int    `csv:"required_occurrences"`
	SessionsPerWeek     int    `csv:"sessions_per_week"`
	StartDate           string `csv:"start_date"`
	EndDate             string `csv:"end_date"`
	RequiresComputers   bool   `csv:"requires_computers"`
	Priority            int    `csv:"priority"`
	Software            string `csv:"software"`
	Equipment           string `csv:"equipment"`
}

type linkRecord struct {
	ID            int64  `csv:"id"`
	CourseID      int64  `csv:"course_id"`
	ClassGroupID  int64  `csv:"class_group_id"`
	GroupCount    int    `csv:"group_count"`
	TeacherA      string `csv:"teacher_a_id"`
	TeacherB      string `csv:"teacher_b_id"`
	SubgroupNameA string `csv:"subgroup_name_a"`
	SubgroupNameB string `csv:"subgroup_name_b"`
}

type teacherRecord struct {
	ID             int64  `csv:"id"`
	Name           string `csv:"name"`
	MaxWeeklyHours int    `csv:"max_weekly_hours"`
	// weekday@HH:MM-HH:MM entries separated by ';'
	Availability string `csv:"availability"`
}

type roomRecord struct {
	ID        int64  `csv:"id"`
	Name      string `csv:"name"`
	Capacity  int    `csv:"capacity"`
	Computers int    `csv:"computers"`
	Software  string `csv:"software"`
	Equipment string `csv:"equipment"`
}

type closingRecord struct {
	Label     string `csv:"label"`
	StartDate string `csv:"start_date"`
	EndDate   string `csv:"end_date"`
}

// fixtures is everything the offline planner reads from a fixture directory.
type fixtures struct {
	input   scheduler.DatasetInput
	closing []models.ClosingPeriod
}

// loadFixtures reads courses, links, groups, teachers and rooms from dir. closing.csv is optional.
func loadFixtures(dir string, loc *time.Location) (*fixtures, error) {
	var (
		courses  []*courseRecord
		links    []*linkRecord
		groups   []*models.ClassGroup
		teachers []*teacherRecord
		rooms    []*roomRecord
		closing  []*closingRecord
	)
	for name, dest := range map[string]interface{}{
		"courses.csv":  &courses,
		"links.csv":    &links,
		"groups.csv":   &groups,
		"teachers.csv": &teachers,
		"rooms.csv":    &rooms,
	} {
		if err := readCSV(filepath.Join(dir, name), dest); err != nil {
			return nil, err
		}
	}
	if err := readCSV(filepath.Join(dir, "closing.csv"), &closing); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	out := &fixtures{}
	for _, rec := range courses {
		course, err := rec.toModel(loc)
		if err != nil {
			return nil, err
		}
		out.input.Courses = append(out.input.Courses, course)
	}
	for _, rec := range links {
		link, err := rec.toModel()
		if err != nil {
			return nil, err
		}
		out.input.Links = append(out.input.Links, link)
	}
	for _, g := range groups {
		out.input.Groups = append(out.input.Groups, *g)
	}
	for _, rec := range teachers {
		teacher, err := rec.toModel()
		if err != nil {
			return nil, err
		}
		out.input.Teachers = append(out.input.Teachers, teacher)
	}
	for _, rec := range rooms {
		room, err := rec.toModel()
		if err != nil {
			return nil, err
		}
		out.input.Rooms = append(out.input.Rooms, room)
	}
	for i, rec := range closing {
		start, err := time.ParseInLocation(dateLayout, rec.StartDate, loc)
		if err != nil {
			return nil, fmt.Errorf("closing %q: %w", rec.Label, err)
		}
		end, err := time.ParseInLocation(dateLayout, rec.EndDate, loc)
		if err != nil {
			return nil, fmt.Errorf("closing %q: %w", rec.Label, err)
		}
		out.closing = append(out.closing, models.ClosingPeriod{ID: int64(i + 1), Label: rec.Label, StartDate: start, EndDate: end})
	}
	return out, nil
}

func readCSV(path string, dest interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gocsv.UnmarshalFile(f, dest); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (r *courseRecord) toModel(loc *time.Location) (models.Course, error) {
	course := models.Course{
		ID:                  r.ID,
		Name:                r.Name,
		Subject:             r.Subject,
		Type:                models.CourseType(strings.ToUpper(r.Type)),
		SessionLength:       r.SessionLength,
		RequiredOccurrences: r.RequiredOccurrences,
		SessionsPerWeek:     r.SessionsPerWeek,
		RequiresComputers:   r.RequiresComputers,
		Priority:            r.Priority,
		Software:            splitList(r.Software),
	}
	equipment, err := parseIDs(r.Equipment)
	if err != nil {
		return course, fmt.Errorf("course %d equipment: %w", r.ID, err)
	}
	course.EquipmentIDs = equipment
	if r.StartDate != "" {
		start, err := time.ParseInLocation(dateLayout, r.StartDate, loc)
		if err != nil {
			return course, fmt.Errorf("course %d start_date: %w", r.ID, err)
		}
		course.StartDate = &start
	}
	if r.EndDate != "" {
		end, err := time.ParseInLocation(dateLayout, r.EndDate, loc)
		if err != nil {
			return course, fmt.Errorf("course %d end_date: %w", r.ID, err)
		}
		course.EndDate = &end
	}
	return course, nil
}

func (r *linkRecord) toModel() (models.ClassLink, error) {
	link := models.ClassLink{
		ID:            r.ID,
		CourseID:      r.CourseID,
		ClassGroupID:  r.ClassGroupID,
		GroupCount:    r.GroupCount,
		SubgroupNameA: r.SubgroupNameA,
		SubgroupNameB: r.SubgroupNameB,
	}
	var err error
	if link.TeacherAID, err = optionalID(r.TeacherA); err != nil {
		return link, fmt.Errorf("link %d teacher_a_id: %w", r.ID, err)
	}
	if link.TeacherBID, err = optionalID(r.TeacherB); err != nil {
		return link, fmt.Errorf("link %d teacher_b_id: %w", r.ID, err)
	}
	return link, nil
}

func (r *teacherRecord) toModel() (models.Teacher, error) {
	teacher := models.Teacher{ID: r.ID, Name: r.Name, MaxWeeklyHours: r.MaxWeeklyHours}
	for _, entry := range splitList(r.Availability) {
		day, span, ok := strings.Cut(entry, "@")
		if !ok {
			return teacher, fmt.Errorf("teacher %d: availability %q must look like 1@08:00-12:00", r.ID, entry)
		}
		weekday, err := strconv.Atoi(day)
		if err != nil || weekday < 1 || weekday > 7 {
			return teacher, fmt.Errorf("teacher %d: invalid weekday %q", r.ID, day)
		}
		start, end, ok := strings.Cut(span, "-")
		if !ok {
			return teacher, fmt.Errorf("teacher %d: availability %q has no end", r.ID, entry)
		}
		interval := models.AvailabilityInterval{Weekday: weekday, Start: start, End: end}
		if _, _, err := interval.Minutes(); err != nil {
			return teacher, fmt.Errorf("teacher %d: %w", r.ID, err)
		}
		teacher.Availability = append(teacher.Availability, interval)
	}
	return teacher, nil
}

func (r *roomRecord) toModel() (models.Room, error) {
	room := models.Room{ID: r.ID, Name: r.Name, Capacity: r.Capacity, Computers: r.Computers, Software: splitList(r.Software)}
	equipment, err := parseIDs(r.Equipment)
	if err != nil {
		return room, fmt.Errorf("room %d equipment: %w", r.ID, err)
	}
	room.EquipmentIDs = equipment
	return room, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ";") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(raw) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func optionalID(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
