package tables

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/johndauphine/crosswalk/internal/catalog"
	"github.com/johndauphine/crosswalk/internal/source"
)

// sampleNamespace seeds the deterministic GUIDs used by the sample data.
var sampleNamespace = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")

// LegacyGUID renders a deterministic GUID for name the way the desktop
// database stores them: upper case inside braces.
func LegacyGUID(name string) string {
	return "{" + strings.ToUpper(uuid.NewSHA1(sampleNamespace, []byte(name)).String()) + "}"
}

// SampleOrphanPark is the park code location L7 points at. It is missing
// from tlu_Park, so the sample has exactly one referential violation.
const SampleOrphanPark = "XXXX"

// Sample returns a small legacy data set in the shape of the desktop
// database. It backs the "memory" source type.
func Sample() *source.Memory {
	day := func(d int) time.Time { return time.Date(2023, time.May, d, 0, 0, 0, 0, time.UTC) }

	parks := catalog.NewFrame("Park_Code", "Park_Name").
		MustAppend("ANTI", "Antietam National Battlefield").
		MustAppend("CATO", "Catoctin Mountain Park").
		MustAppend("MONO", "Monocacy National Battlefield")

	species := catalog.NewFrame("AOU_Code", "Common_Name", "Scientific_Name").
		MustAppend("AMRO", "American Robin", "Turdus migratorius").
		MustAppend("REVI", "Red-eyed Vireo", "Vireo olivaceus").
		MustAppend("WOTH", "Wood Thrush", "Hylocichla mustelina").
		MustAppend("UNBI", "Unidentified Bird", nil)

	locations := catalog.NewFrame("Location_ID", "Admin_Unit_Code", "Plot_Name", "Active_Date", "Location_Notes").
		MustAppend(LegacyGUID("L1"), "ANTI", "ANTI-0036", day(1), nil).
		MustAppend(LegacyGUID("L2"), "ANTI", "ANTI-0041", day(1), "near Bloody Lane").
		MustAppend(LegacyGUID("L3"), "CATO", "CATO-0112", day(2), nil).
		MustAppend(LegacyGUID("L4"), "CATO", "CATO-0117", nil, "retired 2019").
		MustAppend(LegacyGUID("L5"), "MONO", "MONO-0008", day(3), nil).
		MustAppend(LegacyGUID("L6"), "MONO", "MONO-0010", day(3), nil).
		MustAppend(LegacyGUID("L7"), SampleOrphanPark, "XXXX-0001", day(4), "park code never assigned")

	events := catalog.NewFrame("Event_ID", "Location_ID", "Start_Date", "Visit", "Observer").
		MustAppend(LegacyGUID("E1"), LegacyGUID("L1"), day(10), int64(1), " kmiller ").
		MustAppend(LegacyGUID("E2"), LegacyGUID("L2"), day(10), int64(1), "kmiller").
		MustAppend(LegacyGUID("E3"), LegacyGUID("L3"), day(11), int64(1), "jdoe").
		MustAppend(LegacyGUID("E4"), LegacyGUID("L3"), day(25), int64(2), "jdoe").
		MustAppend(LegacyGUID("E5"), LegacyGUID("L5"), day(12), int64(1), "").
		MustAppend(LegacyGUID("E6"), LegacyGUID("L7"), day(13), int64(1), "asmith")

	detections := catalog.NewFrame("Data_ID", "Event_ID", "AOU_Code", "Interval", "Distance_id", "Sex", "Flyover_Observed").
		MustAppend(LegacyGUID("D1"), LegacyGUID("E1"), "AMRO", int64(1), "0-25", int64(0), nil).
		MustAppend(LegacyGUID("D2"), LegacyGUID("E1"), "REVI", int64(2), "25-50", int64(1), nil).
		MustAppend(LegacyGUID("D3"), LegacyGUID("E2"), "WOTH", int64(1), "0-25", int64(2), nil).
		MustAppend(LegacyGUID("D4"), LegacyGUID("E3"), "REVI", nil, "50-100", nil, "Y").
		MustAppend(LegacyGUID("D5"), LegacyGUID("E4"), "UNBI", int64(3), nil, int64(0), nil).
		MustAppend(LegacyGUID("D6"), LegacyGUID("E5"), "AMRO", int64(4), "0-25", int64(1), nil).
		MustAppend(LegacyGUID("D7"), LegacyGUID("E6"), "WOTH", int64(2), "25-50", int64(2), nil)

	return source.NewMemory().
		Put(ParkSource, parks).
		Put(SpeciesSource, species).
		Put(LocationSource, locations).
		Put(EventSource, events).
		Put(DetectionSource, detections)
}
