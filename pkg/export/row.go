package export

// SessionRow is one timetable line of a class group export.
type SessionRow struct {
	Date     string `csv:"date"`
	Weekday  string `csv:"weekday"`
	Start    string `csv:"start"`
	End      string `csv:"end"`
	Course   string `csv:"course"`
	Type     string `csv:"type"`
	Subgroup string `csv:"subgroup"`
	Teacher  string `csv:"teacher"`
	Room     string `csv:"room"`
	Groups   string `csv:"groups"`
}

// Headers lists the column titles in render order.
var Headers = []string{"Date", "Weekday", "Start", "End", "Course", "Type", "Subgroup", "Teacher", "Room", "Groups"}

func (r SessionRow) cells() []string {
	return []string{r.Date, r.Weekday, r.Start, r.End, r.Course, r.Type, r.Subgroup, r.Teacher, r.Room, r.Groups}
}
