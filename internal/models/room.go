package models

import (
	"time"

	"github.com/lib/pq"
)

// Room is a teaching space with its capacity and installed resources.
type Room struct {
	ID           int64          `db:"id" json:"id" csv:"id"`
	Name         string         `db:"name" json:"name" csv:"name"`
	Capacity     int            `db:"capacity" json:"capacity" csv:"capacity"`
	Computers    int            `db:"computers" json:"computers" csv:"computers"`
	EquipmentIDs pq.Int64Array  `db:"equipment_ids" json:"equipment_ids" csv:"-"`
	Software     pq.StringArray `db:"software" json:"software" csv:"-"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at" csv:"-"`
}

// HasEquipment reports whether every required equipment id is installed.
func (r *Room) HasEquipment(required []int64) bool {
	if len(required) == 0 {
		return true
	}
	installed := make(map[int64]struct{}, len(r.EquipmentIDs))
	for _, id := range r.EquipmentIDs {
		installed[id] = struct{}{}
	}
	for _, id := range required {
		if _, ok := installed[id]; !ok {
			return false
		}
	}
	return true
}

// MissingSoftware counts the wanted titles not installed in the room.
func (r *Room) MissingSoftware(wanted []string) int {
	if len(wanted) == 0 {
		return 0
	}
	installed := make(map[string]struct{}, len(r.Software))
	for _, title := range r.Software {
		installed[title] = struct{}{}
	}
	missing := 0
	for _, title := range wanted {
		if _, ok := installed[title]; !ok {
			missing++
		}
	}
	return missing
}
