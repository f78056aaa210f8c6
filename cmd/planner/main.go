// Command planner runs the weekly planner offline against CSV fixtures and writes the sessions it places.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
	"github.com/noah-isme/sma-timetable/pkg/config"
	"github.com/noah-isme/sma-timetable/pkg/export"
	"github.com/noah-isme/sma-timetable/pkg/logger"
	"github.com/noah-isme/sma-timetable/pkg/progress"
)

func main() {
	dir := flag.String("fixtures", "./testdata", "directory holding courses.csv, links.csv, groups.csv, teachers.csv, rooms.csv and closing.csv")
	out := flag.String("out", "sessions.csv", "output file; a .pdf suffix renders a PDF")
	tz := flag.String("tz", "UTC", "timezone of the fixture dates")
	noSplit := flag.Bool("no-split", false, "disable split blocks")
	noChronology := flag.Bool("no-chronology", false, "disable the weekly chronology rule")
	permutations := flag.Int("permutations", 6, "teacher rotations tried for multi-class courses")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logr, err := logger.New(&config.Config{Env: config.EnvDevelopment, Log: config.LogConfig{Level: *level, Format: "console"}})
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	loc := config.SchedulerConfig{Timezone: *tz}.Location()
	fx, err := loadFixtures(*dir, loc)
	if err != nil {
		logr.Fatal("failed to load fixtures", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ds, err := scheduler.NewDataset(fx.input)
	if err != nil {
		logr.Fatal("invalid fixtures", zap.Error(err))
	}
	gen := scheduler.NewGenerator(scheduler.DefaultGrid(), ds, scheduler.Options{
		AllowSplit:        !*noSplit,
		EnforceChronology: !*noChronology,
		MaxPermutations:   *permutations,
	}, logr)

	tracker := progress.NewTracker("offline", "offline weekly plan", progress.SystemClock{})
	started := time.Now()
	result, err := scheduler.NewPlanner(gen, fx.closing, nil, logr).Run(ctx, ds.CourseIDs(), tracker)
	if err != nil {
		logr.Fatal("weekly plan aborted", zap.Error(err))
	}

	rows := sessionRows(ds, loc)
	var data []byte
	if strings.HasSuffix(strings.ToLower(*out), ".pdf") {
		data, err = export.NewPDFExporter().Render(rows, "Timetable")
	} else {
		data, err = export.NewCSVExporter().Render(rows)
	}
	if err != nil {
		logr.Fatal("failed to render sessions", zap.Error(err))
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logr.Fatal("failed to write output", zap.Error(err))
	}

	fmt.Printf("%d session(s) over %d week(s) in %s, written to %s\n", result.Created, result.Weeks, time.Since(started).Round(time.Millisecond), *out)
	for _, week := range result.Skipped {
		fmt.Printf("  week %s closed\n", week)
	}
	for _, issue := range result.Errors {
		fmt.Printf("  %s\n", describe(issue))
	}
	if len(result.Errors) > 0 {
		os.Exit(2)
	}
}

// sessionRows flattens every placed session into export rows ordered by start time.
func sessionRows(ds *scheduler.Dataset, loc *time.Location) []export.SessionRow {
	sessions := append([]*models.Session(nil), ds.Sessions()...)
	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].Start.Before(sessions[j].Start) })
	rows := make([]export.SessionRow, 0, len(sessions))
	for _, s := range sessions {
		start, end := s.Start.In(loc), s.End.In(loc)
		row := export.SessionRow{
			Date:     start.Format(dateLayout),
			Weekday:  start.Weekday().String(),
			Start:    start.Format("15:04"),
			End:      end.Format("15:04"),
			Subgroup: s.Subgroup,
		}
		if course, ok := ds.Course(s.CourseID); ok {
			row.Course = course.Name
			row.Type = string(course.Type)
		}
		if teacher, ok := ds.Teacher(s.TeacherID); ok {
			row.Teacher = teacher.Name
		}
		for _, room := range ds.Rooms() {
			if room.ID == s.RoomID {
				row.Room = room.Name
				break
			}
		}
		names := make([]string, 0, len(s.AttendeeIDs))
		for _, id := range s.AttendeeIDs {
			if group, ok := ds.Group(id); ok {
				names = append(names, group.Name)
			}
		}
		row.Groups = strings.Join(names, " ")
		rows = append(rows, row)
	}
	return rows
}

func describe(issue scheduler.CourseError) string {
	var b strings.Builder
	if issue.CourseName != "" {
		b.WriteString(issue.CourseName)
	} else if issue.CourseID != 0 {
		fmt.Fprintf(&b, "course %d", issue.CourseID)
	}
	if issue.Week != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "(%s)", issue.Week)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	b.WriteString(issue.Message)
	return b.String()
}
