package models

// AgeBracket identifies one construction-period bucket.
type AgeBracket int

const (
	BracketPre1970 AgeBracket = iota
	Bracket1971to1980
	Bracket1981to1990
	Bracket1991to2000
	Bracket2001to2010
	Bracket2011to2020
	Bracket2021to2023
)

var bracketNames = [...]string{
	"pre_1970",
	"y1971_1980",
	"y1981_1990",
	"y1991_2000",
	"y2001_2010",
	"y2011_2020",
	"y2021_2023",
}

func (b AgeBracket) String() string {
	if b < 0 || int(b) >= len(bracketNames) {
		return "unknown"
	}
	return bracketNames[b]
}

// AgeRecord holds dwelling counts by construction period for one region and survey year.
type AgeRecord struct {
	RegionCode  string `json:"region_code" db:"region_code"`
	Year        int    `json:"year" db:"year"`
	Pre1970     int    `json:"pre_1970" db:"pre_1970"`
	Y1971to1980 int    `json:"y1971_1980" db:"y1971_1980"`
	Y1981to1990 int    `json:"y1981_1990" db:"y1981_1990"`
	Y1991to2000 int    `json:"y1991_2000" db:"y1991_2000"`
	Y2001to2010 int    `json:"y2001_2010" db:"y2001_2010"`
	Y2011to2020 int    `json:"y2011_2020" db:"y2011_2020"`
	Y2021to2023 int    `json:"y2021_2023" db:"y2021_2023"`
}

// Set stores the count for a bracket, replacing any earlier value.
func (r *AgeRecord) Set(b AgeBracket, count int) {
	switch b {
	case BracketPre1970:
		r.Pre1970 = count
	case Bracket1971to1980:
		r.Y1971to1980 = count
	case Bracket1981to1990:
		r.Y1981to1990 = count
	case Bracket1991to2000:
		r.Y1991to2000 = count
	case Bracket2001to2010:
		r.Y2001to2010 = count
	case Bracket2011to2020:
		r.Y2011to2020 = count
	case Bracket2021to2023:
		r.Y2021to2023 = count
	}
}

// Total adds up all brackets.
func (r *AgeRecord) Total() int {
	return r.Pre1970 + r.Y1971to1980 + r.Y1981to1990 + r.Y1991to2000 +
		r.Y2001to2010 + r.Y2011to2020 + r.Y2021to2023
}
