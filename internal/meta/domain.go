// Package meta serves the read-only reference vocabulary: the sport
// catalog and the predetermined level hierarchy used by league setup.
package meta

// Sports is the static catalog offered during league creation.
var Sports = []string{
	"Soccer", "Basketball", "Football", "Baseball", "Softball",
	"Volleyball", "Tennis", "Track", "Wrestling", "Swimming",
	"Hockey", "Lacrosse", "Golf", "Cross Country", "Other",
}

// PredeterminedLevel is one row of the curated sport/category/level
// hierarchy.
type PredeterminedLevel struct {
	ID           int64
	Sport        string
	Category     string
	LevelName    string
	DisplayOrder int
	Description  string
}

// LevelFilters narrow the predetermined level list.
type LevelFilters struct {
	Sport    string
	Category string
}
