package scraper

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/samber/mo"
)

// NormalizedJob is the typed output of normalization, ready for scoring and
// reconciliation.
type NormalizedJob struct {
	Title         string
	Description   string
	DescriptionMd string
	Department    string
	Qualification string
	Location      string

	TotalPosts mo.Option[int]
	Fee        mo.Option[float64]
	MinSalary  mo.Option[int]
	MaxSalary  mo.Option[int]
	MinAge     mo.Option[int]
	MaxAge     mo.Option[int]

	NotificationDate *time.Time
	LastDate         *time.Time
	ExamDate         *time.Time

	ApplicationLink string
	NotificationPDF string
	SourceURL       string

	ContentHash  string
	QualityScore int
}

// departmentAbbreviations expands the acronyms government notices use in
// place of full department names.
var departmentAbbreviations = map[string]string{
	"UPSC":  "Union Public Service Commission",
	"SSC":   "Staff Selection Commission",
	"RRB":   "Railway Recruitment Board",
	"IBPS":  "Institute of Banking Personnel Selection",
	"DRDO":  "Defence Research and Development Organisation",
	"ISRO":  "Indian Space Research Organisation",
	"ESIC":  "Employees' State Insurance Corporation",
	"AIIMS": "All India Institute of Medical Sciences",
	"BSF":   "Border Security Force",
	"CRPF":  "Central Reserve Police Force",
	"NTPC":  "National Thermal Power Corporation",
	"ONGC":  "Oil and Natural Gas Corporation",
}

var indianStates = []string{
	"Andhra Pradesh", "Arunachal Pradesh", "Assam", "Bihar", "Chhattisgarh",
	"Goa", "Gujarat", "Haryana", "Himachal Pradesh", "Jharkhand", "Karnataka",
	"Kerala", "Madhya Pradesh", "Maharashtra", "Manipur", "Meghalaya",
	"Mizoram", "Nagaland", "Odisha", "Punjab", "Rajasthan", "Sikkim",
	"Tamil Nadu", "Telangana", "Tripura", "Uttar Pradesh", "Uttarakhand",
	"West Bengal", "Delhi", "Jammu and Kashmir", "Ladakh", "Puducherry",
	"Chandigarh",
}

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	numberRe     = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

	// Explicit two-sided ranges: "18-27", "18 to 27 years", "between 18
	// and 27", "from 18 to 27".
	rangeRe = regexp.MustCompile(`(?i)(?:between\s+|from\s+)?(\d[\d,]*)\s*(?:years?)?\s*(?:-|–|—|to|and)\s*(?:rs\.?\s*|₹\s*)?(\d[\d,]*)`)

	maxOnlyRe = regexp.MustCompile(`(?i)(?:max(?:imum)?|up\s*to|not\s+(?:more|exceeding)\s+than|below|under)\D*(\d[\d,]*)`)
	minOnlyRe = regexp.MustCompile(`(?i)(?:min(?:imum)?|at\s*least|above|over)\D*(\d[\d,]*)`)
)

// Layouts for the four supported date pattern families. Within a family the
// variants only differ in separator or month abbreviation.
var dateLayouts = [][]string{
	{"02/01/2006", "2/1/2006", "02-01-2006", "2-1-2006"},                   // DD/MM/YYYY
	{"2006/01/02", "2006-01-02"},                                           // YYYY/MM/DD
	{"02 January 2006", "2 January 2006", "02 Jan 2006", "2 Jan 2006"},     // DD Month YYYY
	{"January 02, 2006", "January 2, 2006", "Jan 02, 2006", "Jan 2, 2006"}, // Month DD, YYYY
}

var feeZeroWords = map[string]bool{
	"free": true, "nil": true, "exempt": true, "exempted": true,
	"no fee": true, "na": true, "n/a": true, "-": true, "": true,
}

var mdConverter = md.NewConverter("", true, nil)

// CleanText strips markup and collapses whitespace.
func CleanText(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ExpandDepartment replaces known acronyms in a department string with their
// full names. Unknown text passes through cleaned.
func ExpandDepartment(s string) string {
	s = CleanText(s)
	if s == "" {
		return ""
	}

	upper := strings.ToUpper(s)
	if full, ok := departmentAbbreviations[upper]; ok {
		return full
	}

	words := strings.Fields(s)
	for i, w := range words {
		token := strings.ToUpper(strings.Trim(w, "().,"))
		if full, ok := departmentAbbreviations[token]; ok {
			words[i] = full
		}
	}
	return strings.Join(words, " ")
}

// ParseDate tries the four supported date families in order; the first match
// wins. Returns nil when nothing matches.
func ParseDate(s string) *time.Time {
	s = CleanText(s)
	if s == "" {
		return nil
	}

	// Date strings are often embedded in labels like "Last Date: 01/02/2025".
	if idx := strings.LastIndex(s, ":"); idx >= 0 && idx < len(s)-1 {
		s = strings.TrimSpace(s[idx+1:])
	}

	for _, family := range dateLayouts {
		for _, layout := range family {
			if t, err := time.Parse(layout, s); err == nil {
				return &t
			}
		}
	}
	return nil
}

// ParseFee parses an application fee. Words meaning "no fee" normalize to
// zero; otherwise the first number wins, currency symbols and commas
// stripped. Unparseable text yields None.
func ParseFee(s string) mo.Option[float64] {
	s = strings.ToLower(CleanText(s))
	if feeZeroWords[s] {
		if s == "" {
			return mo.None[float64]()
		}
		return mo.Some(0.0)
	}

	match := numberRe.FindString(s)
	if match == "" {
		// Text without a number that still mentions exemption counts as
		// free, anything else is unparseable.
		for word := range feeZeroWords {
			if word != "" && word != "-" && strings.Contains(s, word) {
				return mo.Some(0.0)
			}
		}
		return mo.None[float64]()
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return mo.None[float64]()
	}
	return mo.Some(value)
}

// ParseRange parses a salary or age expression. Priority: explicit two-sided
// range, then maximum-only, then minimum-only, then a bare single value
// (which fills both ends).
func ParseRange(s string) (mo.Option[int], mo.Option[int]) {
	s = CleanText(s)
	if s == "" {
		return mo.None[int](), mo.None[int]()
	}

	if m := rangeRe.FindStringSubmatch(s); m != nil {
		lo, err1 := parseRangeInt(m[1])
		hi, err2 := parseRangeInt(m[2])
		if err1 == nil && err2 == nil {
			if lo > hi {
				lo, hi = hi, lo
			}
			return mo.Some(lo), mo.Some(hi)
		}
	}

	if m := maxOnlyRe.FindStringSubmatch(s); m != nil {
		if v, err := parseRangeInt(m[1]); err == nil {
			return mo.None[int](), mo.Some(v)
		}
	}

	if m := minOnlyRe.FindStringSubmatch(s); m != nil {
		if v, err := parseRangeInt(m[1]); err == nil {
			return mo.Some(v), mo.None[int]()
		}
	}

	if match := numberRe.FindString(s); match != "" {
		if v, err := parseRangeInt(match); err == nil {
			return mo.Some(v), mo.Some(v)
		}
	}

	return mo.None[int](), mo.None[int]()
}

func parseRangeInt(s string) (int, error) {
	return strconv.Atoi(strings.ReplaceAll(s, ",", ""))
}

// DetectState finds an Indian state name mentioned anywhere in the text.
func DetectState(s string) string {
	s = strings.ToLower(CleanText(s))
	if s == "" {
		return ""
	}
	for _, state := range indianStates {
		if strings.Contains(s, strings.ToLower(state)) {
			return state
		}
	}
	return ""
}

// ContentHash computes the deduplication key: SHA-256 over the ordered,
// lower-cased concatenation of the five key fields, truncated to 32 hex
// characters. It must stay a pure function of exactly these fields.
func ContentHash(title, description, deadline, posts, qualification string) string {
	parts := []string{title, description, deadline, posts, qualification}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:32]
}

// Normalize converts one raw posting into a typed record. It returns a
// validation ScrapeError when the record cannot become a valid job.
func Normalize(raw RawPosting) (*NormalizedJob, error) {
	job := &NormalizedJob{
		Title:         CleanText(raw.Title),
		Description:   CleanText(raw.Fields["description"]),
		Department:    ExpandDepartment(raw.Fields["department"]),
		Qualification: CleanText(raw.Fields["qualification"]),
	}

	if descHTML := raw.Fields["description_html"]; descHTML != "" {
		if markdown, err := mdConverter.ConvertString(descHTML); err == nil {
			job.DescriptionMd = strings.TrimSpace(markdown)
		}
	}

	if posts := numberRe.FindString(CleanText(raw.Fields["total_posts"])); posts != "" {
		if v, err := parseRangeInt(posts); err == nil {
			job.TotalPosts = mo.Some(v)
		}
	}

	job.NotificationDate = ParseDate(raw.Fields["notification_date"])
	job.LastDate = ParseDate(raw.Fields["last_date"])
	job.ExamDate = ParseDate(raw.Fields["exam_date"])

	job.Fee = ParseFee(raw.Fields["fee"])
	job.MinSalary, job.MaxSalary = ParseRange(raw.Fields["salary"])
	job.MinAge, job.MaxAge = ParseRange(raw.Fields["age_limit"])

	job.Location = DetectState(raw.Fields["location"])
	if job.Location == "" {
		job.Location = CleanText(raw.Fields["location"])
	}

	job.ApplicationLink = raw.Fields["application_link"]
	job.NotificationPDF = raw.Fields["notification_pdf"]
	job.SourceURL = normalizeURL(raw.SourceURL)

	deadline := ""
	if job.LastDate != nil {
		deadline = job.LastDate.Format("2006-01-02")
	}
	posts := ""
	if v, ok := job.TotalPosts.Get(); ok {
		posts = strconv.Itoa(v)
	}
	job.ContentHash = ContentHash(job.Title, job.Description, deadline, posts, job.Qualification)

	if err := job.validate(); err != nil {
		return nil, err
	}

	job.QualityScore = ScoreQuality(job)
	return job, nil
}

func (j *NormalizedJob) validate() error {
	if len(j.Title) < 10 {
		return NewScrapeError(ErrorTypeValidation, j.SourceURL,
			fmt.Errorf("title too short after cleaning: %q", j.Title))
	}
	if j.SourceURL == "" {
		return NewScrapeError(ErrorTypeValidation, "", fmt.Errorf("missing source url"))
	}
	u, err := url.Parse(j.SourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return NewScrapeError(ErrorTypeValidation, j.SourceURL,
			fmt.Errorf("source url is not http(s): %q", j.SourceURL))
	}
	return nil
}

// normalizeURL does a best-effort cleanup so scheme validation sees through
// trivial formatting noise.
func normalizeURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "//") {
		return "https:" + s
	}
	return s
}
