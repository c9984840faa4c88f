// Package tables holds the crosswalk from the legacy NCRN forest bird
// monitoring database to its relational destination, together with the
// embedded destination schema.
package tables

import (
	_ "embed"
	"fmt"

	"github.com/johndauphine/crosswalk/internal/catalog"
	cw "github.com/johndauphine/crosswalk/internal/crosswalk"
	"github.com/johndauphine/crosswalk/internal/schema"
)

//go:embed schema.yaml
var schemaYAML []byte

var (
	ParkID      = catalog.ID("ncrn", "park")
	SpeciesID   = catalog.ID("ncrn", "species")
	LocationID  = catalog.ID("ncrn", "location")
	EventID     = catalog.ID("ncrn", "event")
	DetectionID = catalog.ID("ncrn", "detection")
	SitePhotoID = catalog.ID("ncrn", "site_photo")
)

// Legacy source table names.
const (
	ParkSource      = "tlu_Park"
	SpeciesSource   = "tlu_Species"
	LocationSource  = "tbl_Locations"
	EventSource     = "tbl_Events"
	DetectionSource = "tbl_Field_Data"
	SitePhotoSource = "tbl_Photos"
)

// SexCodes recodes the legacy 0-based sex codes into the destination's
// 1-based ones (0 unknown, 1 male, 2 female).
var SexCodes = map[string]any{
	"0": int64(1),
	"1": int64(2),
	"2": int64(3),
}

// Schema parses the embedded destination schema. Each call returns a fresh
// copy, so callers may mark tables expected-empty without sharing state.
func Schema() (*schema.Schema, error) {
	s, err := schema.Parse(schemaYAML)
	if err != nil {
		return nil, fmt.Errorf("embedded schema: %w", err)
	}
	return s, nil
}

// LoadSchema reads path when it is set and falls back to the embedded schema.
func LoadSchema(path string) (*schema.Schema, error) {
	if path == "" {
		return Schema()
	}
	return schema.Load(path)
}

// Registry returns a registry holding every table rule, in declaration order.
func Registry() *cw.Registry {
	r := cw.NewRegistry()
	r.MustRegister(ParkID, park)
	r.MustRegister(SpeciesID, species)
	r.MustRegister(LocationID, location)
	r.MustRegister(EventID, event)
	r.MustRegister(DetectionID, detection)
	r.MustRegister(SitePhotoID, sitePhoto)
	return r
}

func park() cw.TableRules {
	return cw.TableRules{
		Table:     ParkID,
		Source:    ParkSource,
		CodeKeyed: true,
		Fields: []catalog.FieldMapping{
			cw.PK(cw.Calc("park_code", cw.Trim("Park_Code"))),
			cw.Direct("park_name", "Park_Name"),
		},
	}
}

func species() cw.TableRules {
	return cw.TableRules{
		Table:     SpeciesID,
		Source:    SpeciesSource,
		CodeKeyed: true,
		Fields: []catalog.FieldMapping{
			cw.PK(cw.Calc("aou_code", cw.Trim("AOU_Code"))),
			cw.Direct("common_name", "Common_Name"),
			cw.Direct("scientific_name", "Scientific_Name"),
		},
	}
}

func location() cw.TableRules {
	return cw.TableRules{
		Table:  LocationID,
		Source: LocationSource,
		Fields: []catalog.FieldMapping{
			cw.PK(cw.Calc("location_id", cw.GUID("Location_ID"))),
			cw.FK(cw.Calc("park_code", cw.Trim("Admin_Unit_Code")), ParkID, "park_code"),
			cw.Direct("plot_name", "Plot_Name"),
			cw.Calc("is_active", cw.NotNull("Active_Date")),
			cw.Direct("notes", "Location_Notes"),
		},
	}
}

func event() cw.TableRules {
	return cw.TableRules{
		Table:  EventID,
		Source: EventSource,
		Fields: []catalog.FieldMapping{
			cw.PK(cw.Calc("event_id", cw.GUID("Event_ID"))),
			cw.FK(cw.Calc("location_id", cw.GUID("Location_ID")), LocationID, "location_id"),
			cw.Direct("event_date", "Start_Date"),
			cw.Direct("visit", "Visit"),
			cw.Calc("observer", cw.Trim("Observer")),
		},
	}
}

func detection() cw.TableRules {
	return cw.TableRules{
		Table:  DetectionID,
		Source: DetectionSource,
		Fields: []catalog.FieldMapping{
			cw.PK(cw.Calc("detection_id", cw.GUID("Data_ID"))),
			cw.FK(cw.Calc("event_id", cw.GUID("Event_ID")), EventID, "event_id"),
			cw.FK(cw.Calc("aou_code", cw.Trim("AOU_Code")), SpeciesID, "aou_code"),
			cw.Direct("interval_minute", "Interval"),
			cw.Direct("distance_band", "Distance_id"),
			cw.Calc("sex_code", cw.Recode("Sex", SexCodes)),
			cw.Calc("is_flyover", cw.NotNull("Flyover_Observed")),
		},
	}
}

func sitePhoto() cw.TableRules {
	return cw.TableRules{
		Table:  SitePhotoID,
		Source: SitePhotoSource,
		Fields: []catalog.FieldMapping{
			cw.PK(cw.Calc("photo_id", cw.GUID("Photo_ID"))),
			cw.FK(cw.Calc("location_id", cw.GUID("Location_ID")), LocationID, "location_id"),
			cw.Direct("file_name", "File_Name"),
		},
	}
}
